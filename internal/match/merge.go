package match

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/cellarium/catalog-cli/internal/extract"
	"github.com/cellarium/catalog-cli/internal/model"
)

// MergeOutcome reports what one source's fields did to a product.
type MergeOutcome struct {
	Filled    []string
	Agreed    []string
	Conflicts []model.FieldConflict
}

// Merge folds a validated field map from one source into a product.
// Empty current values are filled; equal values mark the field verified;
// disagreements are recorded and the first observation kept.
func Merge(p *model.Product, fields map[string]any, sourceURL string) MergeOutcome {
	out := MergeOutcome{}
	for name, newVal := range fields {
		if isEmptyValue(newVal) {
			continue
		}
		cur := extract.FieldValue(p, name)
		if cur == nil && !knownField(p.ProductType, name) {
			continue
		}

		if isEmptyValue(cur) {
			extract.ApplyField(p, name, newVal)
			out.Filled = append(out.Filled, name)
			continue
		}
		if ValuesEqual(cur, newVal) {
			p.AddVerifiedField(name)
			out.Agreed = append(out.Agreed, name)
			continue
		}
		conflict := model.FieldConflict{
			Field:   name,
			Current: Stringify(cur),
			New:     Stringify(newVal),
			Source:  sourceURL,
		}
		p.HasConflicts = true
		p.ConflictDetails = append(p.ConflictDetails, conflict)
		out.Conflicts = append(out.Conflicts, conflict)
	}
	return out
}

func knownField(typ model.ProductType, name string) bool {
	schema, ok := extract.SchemaFor(typ)
	if !ok {
		return false
	}
	_, ok = schema[name]
	return ok
}

// ValuesEqual compares two field values type-aware: numbers numerically,
// strings case-folded, lists order-independently.
func ValuesEqual(a, b any) bool {
	if af, aok := asFloat(a); aok {
		bf, bok := asFloat(b)
		return bok && math.Abs(af-bf) < 1e-9
	}
	if ab, aok := a.(bool); aok {
		bb, bok := b.(bool)
		return bok && ab == bb
	}
	if as, aok := a.(string); aok {
		bs, bok := b.(string)
		return bok && strings.EqualFold(strings.TrimSpace(as), strings.TrimSpace(bs))
	}
	if al, aok := a.([]string); aok {
		bl, bok := b.([]string)
		if !bok || len(al) != len(bl) {
			return false
		}
		as, bs := foldedSorted(al), foldedSorted(bl)
		for i := range as {
			if as[i] != bs[i] {
				return false
			}
		}
		return true
	}
	return false
}

func asFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	}
	return 0, false
}

func foldedSorted(list []string) []string {
	out := make([]string, len(list))
	for i, s := range list {
		out[i] = strings.ToLower(strings.TrimSpace(s))
	}
	sort.Strings(out)
	return out
}

func isEmptyValue(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case []string:
		return len(t) == 0
	case float64:
		return t == 0
	case int:
		return t == 0
	case bool:
		// false is indistinguishable from unset for boolean flags
		return !t
	}
	return false
}

// Stringify renders a field value the way provenance and conflict rows
// store it.
func Stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []string:
		return strings.Join(t, ", ")
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case bool:
		return strconv.FormatBool(t)
	}
	return ""
}
