package extract

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/cellarium/catalog-cli/internal/cost"
	"github.com/cellarium/catalog-cli/internal/model"
	"github.com/cellarium/catalog-cli/internal/resilience"
	"github.com/cellarium/catalog-cli/pkg/aiextract"
)

// ErrUnsupportedType marks a product type no schema exists for.
const ErrUnsupportedType = "unsupported_type"

// Extractor validates AI service output against the product-type schema
// and merges in deterministically derived meta fields. Transient service
// failures are retried with backoff before surfacing.
type Extractor struct {
	client aiextract.Client
	costs  *cost.Recorder
	retry  resilience.RetryConfig
}

func New(client aiextract.Client, costs *cost.Recorder) *Extractor {
	retry := resilience.DefaultRetryConfig()
	retry.OnRetry = resilience.RetryLogger("ai_extract", "extract")
	return &Extractor{client: client, costs: costs, retry: retry}
}

// Extract runs one page through the AI service. Fields failing schema
// validation are dropped, not fatal; the AI value wins over a derived one
// for the same field.
func (e *Extractor) Extract(ctx context.Context, content, pageURL string, typ model.ProductType, src *model.Source) (*model.ExtractionResult, error) {
	schema, ok := SchemaFor(typ)
	if !ok {
		return &model.ExtractionResult{Success: false, Error: ErrUnsupportedType}, nil
	}

	result := &model.ExtractionResult{
		Fields:      map[string]any{},
		Confidences: map[string]float64{},
	}
	for name, v := range DeriveMeta(content, pageURL) {
		if coerced, err := validateField(schema, name, v); err == nil {
			result.Fields[name] = coerced
			result.Confidences[name] = derivedConfidence
		}
	}

	req := aiextract.ExtractRequest{
		URL:         pageURL,
		Content:     content,
		ProductType: string(typ),
	}
	if src != nil {
		req.Hints = string(src.Category)
	}

	resp, err := resilience.DoVal(ctx, e.retry, func(ctx context.Context) (*aiextract.ExtractResponse, error) {
		return e.client.Extract(ctx, req)
	})
	if e.costs != nil {
		e.costs.RecordAI(ctx, "")
	}
	if err != nil {
		return nil, eris.Wrapf(err, "extract: ai call for %s", pageURL)
	}
	if resp.Error != "" {
		result.Success = false
		result.Error = resp.Error
		return result, nil
	}

	for name, v := range resp.Fields {
		coerced, err := validateField(schema, name, v)
		if err != nil {
			zap.L().Warn("dropping extracted field",
				zap.String("field", name),
				zap.String("url", pageURL),
				zap.Error(err))
			continue
		}
		result.Fields[name] = coerced
		if c, ok := resp.Confidences[name]; ok {
			result.Confidences[name] = c
		} else {
			result.Confidences[name] = 1
		}
	}

	result.Success = len(result.Fields) > 0
	if !result.Success {
		result.Error = "no_fields"
	}
	return result, nil
}

// ExtractBatch fans a set of pages through the batch endpoint, validating
// each response the same way Extract does. Order follows the input.
func (e *Extractor) ExtractBatch(ctx context.Context, reqs []PageRequest) ([]model.ExtractionResult, error) {
	wire := make([]aiextract.ExtractRequest, 0, len(reqs))
	for _, r := range reqs {
		wire = append(wire, aiextract.ExtractRequest{
			URL:         r.URL,
			Content:     r.Content,
			ProductType: string(r.Type),
		})
	}

	resps, err := resilience.DoVal(ctx, e.retry, func(ctx context.Context) ([]aiextract.ExtractResponse, error) {
		return e.client.ExtractBatch(ctx, wire)
	})
	if e.costs != nil {
		for range reqs {
			e.costs.RecordAI(ctx, "")
		}
	}
	if err != nil {
		return nil, eris.Wrap(err, "extract: batch ai call")
	}

	results := make([]model.ExtractionResult, len(resps))
	for i, resp := range resps {
		schema, ok := SchemaFor(reqs[i].Type)
		if !ok {
			results[i] = model.ExtractionResult{Success: false, Error: ErrUnsupportedType}
			continue
		}
		r := model.ExtractionResult{Fields: map[string]any{}, Confidences: map[string]float64{}}
		if resp.Error != "" {
			r.Error = resp.Error
			results[i] = r
			continue
		}
		for name, v := range resp.Fields {
			coerced, err := validateField(schema, name, v)
			if err != nil {
				continue
			}
			r.Fields[name] = coerced
			r.Confidences[name] = resp.Confidences[name]
		}
		r.Success = len(r.Fields) > 0
		results[i] = r
	}
	return results, nil
}

// PageRequest is one page in a batch extraction.
type PageRequest struct {
	URL     string
	Content string
	Type    model.ProductType
}

func validateField(schema map[string]FieldSpec, name string, v any) (any, error) {
	spec, ok := schema[name]
	if !ok {
		return nil, eris.Errorf("field not in schema: %s", name)
	}
	coerced, err := Coerce(v, spec.Kind)
	if err != nil {
		return nil, err
	}
	if spec.Validate != nil {
		if err := spec.Validate(coerced); err != nil {
			return nil, err
		}
	}
	return coerced, nil
}
