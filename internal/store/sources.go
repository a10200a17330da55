package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/cellarium/catalog-cli/internal/model"
)

func (s *PostgresStore) UpsertBrand(ctx context.Context, b *model.Brand) error {
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	// Keep the existing row's ID on name conflict so product references stay
	// stable; the RETURNING clause feeds it back.
	err := s.pool.QueryRow(ctx,
		`INSERT INTO brands (id, name, slug, country, region) VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (name) DO UPDATE SET
			country = CASE WHEN EXCLUDED.country <> '' THEN EXCLUDED.country ELSE brands.country END,
			region  = CASE WHEN EXCLUDED.region  <> '' THEN EXCLUDED.region  ELSE brands.region  END
		 RETURNING id`,
		b.ID, b.Name, b.Slug, b.Country, b.Region,
	).Scan(&b.ID)
	return eris.Wrapf(err, "postgres: upsert brand %s", b.Name)
}

func (s *PostgresStore) GetBrandByName(ctx context.Context, name string) (*model.Brand, error) {
	var b model.Brand
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, slug, country, region FROM brands WHERE lower(name) = lower($1)`,
		name,
	).Scan(&b.ID, &b.Name, &b.Slug, &b.Country, &b.Region)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get brand %s", name)
	}
	return &b, nil
}

const sourceColumns = `id, name, slug, base_url, category, product_types, priority,
	crawl_frequency_hours, rate_limit_rpm, requires_js, requires_proxy, requires_managed_proxy,
	age_gate, discovered_via, robots_ok, tos_ok, active, last_crawl_at, next_crawl_at,
	created_at, updated_at`

func scanSource(row rowScanner) (*model.Source, error) {
	var src model.Source
	var types []string
	var ageGateJSON []byte

	err := row.Scan(
		&src.ID, &src.Name, &src.Slug, &src.BaseURL, &src.Category, &types, &src.Priority,
		&src.CrawlFreqHrs, &src.RateLimitRPM, &src.RequiresJS, &src.RequiresProxy, &src.RequiresManagedProxy,
		&ageGateJSON, &src.DiscoveredVia, &src.RobotsOK, &src.TosOK, &src.Active,
		&src.LastCrawlAt, &src.NextCrawlAt, &src.CreatedAt, &src.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	for _, t := range types {
		src.ProductTypes = append(src.ProductTypes, model.ProductType(t))
	}
	if len(ageGateJSON) > 0 {
		src.AgeGate = &model.AgeGate{}
		if err := json.Unmarshal(ageGateJSON, src.AgeGate); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal age gate")
		}
	}
	return &src, nil
}

func (s *PostgresStore) UpsertSource(ctx context.Context, src *model.Source) error {
	if src.ID == "" {
		src.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if src.CreatedAt.IsZero() {
		src.CreatedAt = now
	}
	src.UpdatedAt = now

	types := make([]string, 0, len(src.ProductTypes))
	for _, t := range src.ProductTypes {
		types = append(types, string(t))
	}
	var ageGateJSON []byte
	if src.AgeGate != nil {
		var err error
		ageGateJSON, err = json.Marshal(src.AgeGate)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal age gate")
		}
	}

	err := s.pool.QueryRow(ctx,
		`INSERT INTO sources (`+sourceColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
		 ON CONFLICT (slug) DO UPDATE SET
			name = EXCLUDED.name, base_url = EXCLUDED.base_url, category = EXCLUDED.category,
			product_types = EXCLUDED.product_types, priority = EXCLUDED.priority,
			crawl_frequency_hours = EXCLUDED.crawl_frequency_hours, rate_limit_rpm = EXCLUDED.rate_limit_rpm,
			requires_js = EXCLUDED.requires_js, requires_proxy = EXCLUDED.requires_proxy,
			requires_managed_proxy = EXCLUDED.requires_managed_proxy, age_gate = EXCLUDED.age_gate,
			robots_ok = EXCLUDED.robots_ok, tos_ok = EXCLUDED.tos_ok, active = EXCLUDED.active,
			updated_at = EXCLUDED.updated_at
		 RETURNING id`,
		src.ID, src.Name, src.Slug, src.BaseURL, string(src.Category), types, src.Priority,
		src.CrawlFreqHrs, src.RateLimitRPM, src.RequiresJS, src.RequiresProxy, src.RequiresManagedProxy,
		ageGateJSON, string(src.DiscoveredVia), src.RobotsOK, src.TosOK, src.Active,
		src.LastCrawlAt, src.NextCrawlAt, src.CreatedAt, src.UpdatedAt,
	).Scan(&src.ID)
	return eris.Wrapf(err, "postgres: upsert source %s", src.Slug)
}

func (s *PostgresStore) getSourceBy(ctx context.Context, where string, arg any) (*model.Source, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+sourceColumns+` FROM sources WHERE `+where, arg)
	src, err := scanSource(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: get source")
	}
	return src, nil
}

func (s *PostgresStore) GetSource(ctx context.Context, id string) (*model.Source, error) {
	return s.getSourceBy(ctx, `id = $1`, id)
}

func (s *PostgresStore) GetSourceBySlug(ctx context.Context, slug string) (*model.Source, error) {
	return s.getSourceBy(ctx, `slug = $1`, slug)
}

func (s *PostgresStore) ListSources(ctx context.Context, activeOnly bool) ([]model.Source, error) {
	query := `SELECT ` + sourceColumns + ` FROM sources`
	if activeOnly {
		query += ` WHERE active`
	}
	query += ` ORDER BY priority DESC, slug`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list sources")
	}
	defer rows.Close()
	return collectSources(rows)
}

func (s *PostgresStore) ListDueSources(ctx context.Context, now time.Time) ([]model.Source, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+sourceColumns+` FROM sources
		 WHERE active AND (next_crawl_at IS NULL OR next_crawl_at <= $1)
		 ORDER BY priority DESC, next_crawl_at NULLS FIRST`,
		now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list due sources")
	}
	defer rows.Close()
	return collectSources(rows)
}

func collectSources(rows pgx.Rows) ([]model.Source, error) {
	var sources []model.Source
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan source")
		}
		sources = append(sources, *src)
	}
	return sources, eris.Wrap(rows.Err(), "postgres: iterate sources")
}

// MarkSourceDue pulls a source's next crawl slot to now so the next
// scheduler sweep picks it up.
func (s *PostgresStore) MarkSourceDue(ctx context.Context, sourceID string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE sources SET next_crawl_at = now(), updated_at = now() WHERE id = $1`,
		sourceID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: mark source due %s", sourceID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("source not found: %s", sourceID)
	}
	return nil
}

func (s *PostgresStore) GetSourceFingerprint(ctx context.Context, sourceID string) (string, error) {
	var fp string
	err := s.pool.QueryRow(ctx,
		`SELECT fingerprint FROM source_fingerprints WHERE source_id = $1`, sourceID,
	).Scan(&fp)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", eris.Wrapf(err, "postgres: get fingerprint %s", sourceID)
	}
	return fp, nil
}

func (s *PostgresStore) SaveSourceFingerprint(ctx context.Context, sourceID, fingerprint string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO source_fingerprints (source_id, fingerprint, updated_at) VALUES ($1, $2, now())
		 ON CONFLICT (source_id) DO UPDATE SET fingerprint = EXCLUDED.fingerprint, updated_at = now()`,
		sourceID, fingerprint,
	)
	return eris.Wrapf(err, "postgres: save fingerprint %s", sourceID)
}

func (s *PostgresStore) UpdateSourceCrawlTimes(ctx context.Context, sourceID string, lastCrawl, nextCrawl time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE sources SET last_crawl_at = $1, next_crawl_at = $2, updated_at = now() WHERE id = $3`,
		lastCrawl, nextCrawl, sourceID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update source crawl times %s", sourceID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("source not found: %s", sourceID)
	}
	return nil
}
