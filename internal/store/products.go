package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/cellarium/catalog-cli/internal/model"
)

const productColumns = `id, product_type, name, gtin, brand_id, abv, volume_ml, age_statement,
	country, region, category, description,
	primary_cask, finishing_cask, wood_type, cask_treatment,
	best_price_cents, images, ratings,
	completeness_score, status, source_count, verified_fields, extraction_confidence,
	source_url, discovery_source, discovery_sources,
	fingerprint, match_confidence, has_conflicts, conflict_details,
	award_count, rating_count, price_count, mention_count,
	discovered_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*model.Product, error) {
	var p model.Product
	var brandID *string
	var ratingsJSON, conflictsJSON []byte

	err := row.Scan(
		&p.ID, &p.ProductType, &p.Name, &p.GTIN, &brandID, &p.ABV, &p.VolumeML, &p.AgeStatement,
		&p.Country, &p.Region, &p.Category, &p.Description,
		&p.PrimaryCask, &p.FinishingCask, &p.WoodType, &p.CaskTreatment,
		&p.BestPriceCents, &p.Images, &ratingsJSON,
		&p.CompletenessScore, &p.Status, &p.SourceCount, &p.VerifiedFields, &p.ExtractionConfidence,
		&p.SourceURL, &p.DiscoverySource, &p.DiscoverySources,
		&p.Fingerprint, &p.MatchConfidence, &p.HasConflicts, &conflictsJSON,
		&p.AwardCount, &p.RatingCount, &p.PriceCount, &p.MentionCount,
		&p.DiscoveredAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if brandID != nil {
		p.BrandID = *brandID
	}
	if len(ratingsJSON) > 0 {
		if err := json.Unmarshal(ratingsJSON, &p.Ratings); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal ratings")
		}
	}
	if len(conflictsJSON) > 0 {
		if err := json.Unmarshal(conflictsJSON, &p.ConflictDetails); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal conflict details")
		}
	}
	return &p, nil
}

func productArgs(p *model.Product) ([]any, error) {
	ratingsJSON, err := json.Marshal(orEmptyMap(p.Ratings))
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal ratings")
	}
	conflictsJSON, err := json.Marshal(orEmptySlice(p.ConflictDetails))
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal conflict details")
	}
	var brandID *string
	if p.BrandID != "" {
		brandID = &p.BrandID
	}
	return []any{
		p.ID, string(p.ProductType), p.Name, p.GTIN, brandID, p.ABV, p.VolumeML, p.AgeStatement,
		p.Country, p.Region, p.Category, p.Description,
		orEmpty(p.PrimaryCask), orEmpty(p.FinishingCask), orEmpty(p.WoodType), orEmpty(p.CaskTreatment),
		p.BestPriceCents, orEmpty(p.Images), ratingsJSON,
		p.CompletenessScore, string(p.Status), p.SourceCount, orEmpty(p.VerifiedFields), p.ExtractionConfidence,
		p.SourceURL, p.DiscoverySource, orEmpty(p.DiscoverySources),
		p.Fingerprint, p.MatchConfidence, p.HasConflicts, conflictsJSON,
		p.AwardCount, p.RatingCount, p.PriceCount, p.MentionCount,
		p.DiscoveredAt, p.UpdatedAt,
	}, nil
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func orEmptyMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

func orEmptySlice(c []model.FieldConflict) []model.FieldConflict {
	if c == nil {
		return []model.FieldConflict{}
	}
	return c
}

func placeholders(n int) string {
	s := ""
	for i := 1; i <= n; i++ {
		if i > 1 {
			s += ", "
		}
		s += fmt.Sprintf("$%d", i)
	}
	return s
}

func (s *PostgresStore) CreateProduct(ctx context.Context, p *model.Product) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if p.DiscoveredAt.IsZero() {
		p.DiscoveredAt = now
	}
	p.UpdatedAt = now

	args, err := productArgs(p)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO products (`+productColumns+`) VALUES (`+placeholders(len(args))+`)`,
		args...,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: insert product %s", p.Name)
	}

	if err := s.upsertTasting(ctx, p.ID, &p.Tasting); err != nil {
		return err
	}
	return s.upsertDetails(ctx, p)
}

func (s *PostgresStore) UpdateProduct(ctx context.Context, p *model.Product) error {
	p.UpdatedAt = time.Now().UTC()

	args, err := productArgs(p)
	if err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE products SET
			product_type = $2, name = $3, gtin = $4, brand_id = $5, abv = $6, volume_ml = $7, age_statement = $8,
			country = $9, region = $10, category = $11, description = $12,
			primary_cask = $13, finishing_cask = $14, wood_type = $15, cask_treatment = $16,
			best_price_cents = $17, images = $18, ratings = $19,
			completeness_score = $20, status = $21, source_count = $22, verified_fields = $23, extraction_confidence = $24,
			source_url = $25, discovery_source = $26, discovery_sources = $27,
			fingerprint = $28, match_confidence = $29, has_conflicts = $30, conflict_details = $31,
			award_count = $32, rating_count = $33, price_count = $34, mention_count = $35,
			discovered_at = $36, updated_at = $37
		 WHERE id = $1`,
		args...,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update product %s", p.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("product not found: %s", p.ID)
	}

	if err := s.upsertTasting(ctx, p.ID, &p.Tasting); err != nil {
		return err
	}
	return s.upsertDetails(ctx, p)
}

func (s *PostgresStore) getProductBy(ctx context.Context, where string, arg any) (*model.Product, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE `+where, arg)
	p, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: get product")
	}

	if err := s.loadTasting(ctx, p); err != nil {
		return nil, err
	}
	if err := s.loadDetails(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *PostgresStore) GetProduct(ctx context.Context, id string) (*model.Product, error) {
	return s.getProductBy(ctx, `id = $1`, id)
}

func (s *PostgresStore) GetProductByFingerprint(ctx context.Context, fp string) (*model.Product, error) {
	return s.getProductBy(ctx, `fingerprint = $1`, fp)
}

func (s *PostgresStore) GetProductByGTIN(ctx context.Context, gtin string) (*model.Product, error) {
	if gtin == "" {
		return nil, nil
	}
	return s.getProductBy(ctx, `gtin = $1 AND gtin <> ''`, gtin)
}

func (s *PostgresStore) FindProductsByName(ctx context.Context, nameSubstring string, ptype model.ProductType) ([]model.Product, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+productColumns+` FROM products
		 WHERE product_type = $1 AND status <> 'merged' AND lower(name) LIKE '%' || lower($2) || '%'
		 ORDER BY updated_at DESC LIMIT 200`,
		string(ptype), nameSubstring,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: find products by name")
	}
	defer rows.Close()
	return collectProducts(rows)
}

func (s *PostgresStore) ListProducts(ctx context.Context, filter ProductFilter) ([]model.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Type != "" {
		query += fmt.Sprintf(` AND product_type = $%d`, argIdx)
		args = append(args, string(filter.Type))
		argIdx++
	}
	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if filter.BrandID != "" {
		query += fmt.Sprintf(` AND brand_id = $%d`, argIdx)
		args = append(args, filter.BrandID)
		argIdx++
	}
	if filter.MinScore > 0 {
		query += fmt.Sprintf(` AND completeness_score >= $%d`, argIdx)
		args = append(args, filter.MinScore)
		argIdx++
	}
	query += ` ORDER BY updated_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list products")
	}
	defer rows.Close()
	return collectProducts(rows)
}

func (s *PostgresStore) ListEnrichmentCandidates(ctx context.Context, limit int) ([]model.Product, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+productColumns+` FROM products
		 WHERE status IN ('skeleton', 'incomplete', 'partial')
		 ORDER BY completeness_score ASC, updated_at ASC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list enrichment candidates")
	}
	defer rows.Close()
	return collectProducts(rows)
}

func collectProducts(rows pgx.Rows) ([]model.Product, error) {
	var products []model.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan product")
		}
		products = append(products, *p)
	}
	return products, eris.Wrap(rows.Err(), "postgres: iterate products")
}

func (s *PostgresStore) CountProductsByStatus(ctx context.Context) (map[model.ProductStatus]int, error) {
	rows, err := s.pool.Query(ctx, `SELECT status, COUNT(*) FROM products GROUP BY status`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: count products by status")
	}
	defer rows.Close()

	counts := make(map[model.ProductStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, eris.Wrap(err, "postgres: scan status count")
		}
		counts[model.ProductStatus(status)] = n
	}
	return counts, eris.Wrap(rows.Err(), "postgres: iterate status counts")
}

func (s *PostgresStore) MarkProductMerged(ctx context.Context, dupID, canonicalID string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE products SET status = 'merged', discovery_source = 'merged:' || $2, updated_at = now()
		 WHERE id = $1`,
		dupID, canonicalID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: mark product merged %s", dupID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("product not found: %s", dupID)
	}
	return nil
}

// WithProductLock serializes writers of one product row using a transaction-
// scoped advisory lock keyed on the product ID.
func (s *PostgresStore) WithProductLock(ctx context.Context, productID string, fn func(ctx context.Context) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin lock tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, productID); err != nil {
		return eris.Wrapf(err, "postgres: acquire product lock %s", productID)
	}
	if err := fn(ctx); err != nil {
		return err
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit lock tx")
}
