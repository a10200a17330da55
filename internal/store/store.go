// Package store persists the product catalog. Scalars and lists live in
// typed columns; JSONB is reserved for genuinely open schemas (ratings,
// conflict details, age-gate descriptors).
package store

import (
	"context"
	"time"

	"github.com/cellarium/catalog-cli/internal/model"
)

// ProductFilter specifies criteria for listing products.
type ProductFilter struct {
	Type     model.ProductType   `json:"product_type,omitempty"`
	Status   model.ProductStatus `json:"status,omitempty"`
	BrandID  string              `json:"brand_id,omitempty"`
	MinScore int                 `json:"min_score,omitempty"`
	Limit    int                 `json:"limit,omitempty"`
	Offset   int                 `json:"offset,omitempty"`
}

// ErrorFilter specifies criteria for listing crawl errors.
type ErrorFilter struct {
	SourceID   string          `json:"source_id,omitempty"`
	Kind       model.ErrorKind `json:"kind,omitempty"`
	Unresolved bool            `json:"unresolved,omitempty"`
	Since      time.Time       `json:"since,omitempty"`
	Limit      int             `json:"limit,omitempty"`
}

// Store defines the persistence interface for the catalog pipeline.
type Store interface {
	// Products
	CreateProduct(ctx context.Context, p *model.Product) error
	UpdateProduct(ctx context.Context, p *model.Product) error
	GetProduct(ctx context.Context, id string) (*model.Product, error)
	GetProductByFingerprint(ctx context.Context, fp string) (*model.Product, error)
	GetProductByGTIN(ctx context.Context, gtin string) (*model.Product, error)
	FindProductsByName(ctx context.Context, nameSubstring string, ptype model.ProductType) ([]model.Product, error)
	ListProducts(ctx context.Context, filter ProductFilter) ([]model.Product, error)
	ListEnrichmentCandidates(ctx context.Context, limit int) ([]model.Product, error)
	CountProductsByStatus(ctx context.Context) (map[model.ProductStatus]int, error)
	MarkProductMerged(ctx context.Context, dupID, canonicalID string) error
	// WithProductLock runs fn while holding an advisory lock on the product,
	// serializing concurrent merges into the same row.
	WithProductLock(ctx context.Context, productID string, fn func(ctx context.Context) error) error

	// Brands
	UpsertBrand(ctx context.Context, b *model.Brand) error
	GetBrandByName(ctx context.Context, name string) (*model.Brand, error)

	// Sources
	UpsertSource(ctx context.Context, s *model.Source) error
	GetSource(ctx context.Context, id string) (*model.Source, error)
	GetSourceBySlug(ctx context.Context, slug string) (*model.Source, error)
	ListSources(ctx context.Context, activeOnly bool) ([]model.Source, error)
	ListDueSources(ctx context.Context, now time.Time) ([]model.Source, error)
	UpdateSourceCrawlTimes(ctx context.Context, sourceID string, lastCrawl, nextCrawl time.Time) error
	MarkSourceDue(ctx context.Context, sourceID string) error
	GetSourceFingerprint(ctx context.Context, sourceID string) (string, error)
	SaveSourceFingerprint(ctx context.Context, sourceID, fingerprint string) error

	// Awards
	UpsertAward(ctx context.Context, a *model.Award) (bool, error)
	ListAwards(ctx context.Context, productID string) ([]model.Award, error)

	// Field provenance
	InsertProvenance(ctx context.Context, rows []model.FieldProvenance) error
	ListProvenance(ctx context.Context, productID string) ([]model.FieldProvenance, error)

	// Crawl jobs
	CreateJob(ctx context.Context, job *model.CrawlJob) error
	UpdateJobStatus(ctx context.Context, jobID string, status model.JobStatus) error
	FinishJob(ctx context.Context, job *model.CrawlJob) error
	GetJob(ctx context.Context, jobID string) (*model.CrawlJob, error)
	ListJobs(ctx context.Context, sourceID string, limit int) ([]model.CrawlJob, error)

	// Crawl errors
	InsertCrawlError(ctx context.Context, ce model.CrawlError) error
	ListCrawlErrors(ctx context.Context, filter ErrorFilter) ([]model.CrawlError, error)
	ResolveCrawlError(ctx context.Context, id int64) error
	ErrorRateSince(ctx context.Context, sourceID string, since time.Time) (failures, total int, err error)

	// Cost records
	InsertCostRecord(ctx context.Context, rec model.CostRecord) error
	SumCostSince(ctx context.Context, since time.Time) (int, error)

	// Lifecycle
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}
