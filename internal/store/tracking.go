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

	"github.com/cellarium/catalog-cli/internal/db"
	"github.com/cellarium/catalog-cli/internal/model"
)

// UpsertAward inserts an award, deduplicating on
// (product, competition, year, medal). Returns true if a new row was added.
func (s *PostgresStore) UpsertAward(ctx context.Context, a *model.Award) (bool, error) {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}

	// xmax = 0 distinguishes a fresh insert from a conflict-update.
	var isNew bool
	err := s.pool.QueryRow(ctx,
		`INSERT INTO awards (id, product_id, competition, year, medal, score, category, award_category, image_url, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (product_id, competition, year, medal) DO UPDATE SET
			score          = CASE WHEN EXCLUDED.score > 0 THEN EXCLUDED.score ELSE awards.score END,
			category       = CASE WHEN EXCLUDED.category <> '' THEN EXCLUDED.category ELSE awards.category END,
			award_category = CASE WHEN EXCLUDED.award_category <> '' THEN EXCLUDED.award_category ELSE awards.award_category END,
			image_url      = CASE WHEN EXCLUDED.image_url <> '' THEN EXCLUDED.image_url ELSE awards.image_url END
		 RETURNING (xmax = 0)`,
		a.ID, a.ProductID, a.Competition, a.Year, a.Medal, a.Score, a.Category, a.AwardCategory, a.ImageURL, a.CreatedAt,
	).Scan(&isNew)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: upsert award %s/%s/%d", a.ProductID, a.Competition, a.Year)
	}
	if isNew {
		_, err = s.pool.Exec(ctx,
			`UPDATE products SET award_count = award_count + 1, updated_at = now() WHERE id = $1`,
			a.ProductID,
		)
		if err != nil {
			return true, eris.Wrapf(err, "postgres: bump award count %s", a.ProductID)
		}
	}
	return isNew, nil
}

func (s *PostgresStore) ListAwards(ctx context.Context, productID string) ([]model.Award, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, product_id, competition, year, medal, score, category, award_category, image_url, created_at
		 FROM awards WHERE product_id = $1 ORDER BY year DESC, competition`,
		productID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list awards")
	}
	defer rows.Close()

	var awards []model.Award
	for rows.Next() {
		var a model.Award
		if err := rows.Scan(&a.ID, &a.ProductID, &a.Competition, &a.Year, &a.Medal,
			&a.Score, &a.Category, &a.AwardCategory, &a.ImageURL, &a.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan award")
		}
		awards = append(awards, a)
	}
	return awards, eris.Wrap(rows.Err(), "postgres: iterate awards")
}

// InsertProvenance bulk-upserts field provenance rows, one per
// (product, field, source). Re-extracting the same page refreshes the
// existing row instead of stacking duplicates. The batch is deduplicated
// on the conflict key first: ON CONFLICT cannot touch a row twice in one
// statement.
func (s *PostgresStore) InsertProvenance(ctx context.Context, rows []model.FieldProvenance) error {
	if len(rows) == 0 {
		return nil
	}
	type provKey struct{ product, field, source string }
	seen := make(map[provKey]int, len(rows))
	upsertRows := make([][]any, 0, len(rows))
	for _, r := range rows {
		at := r.ExtractedAt
		if at.IsZero() {
			at = time.Now().UTC()
		}
		row := []any{r.ProductID, r.FieldName, r.SourceURL, r.RawValue, r.Confidence, at}
		key := provKey{r.ProductID, r.FieldName, r.SourceURL}
		if i, dup := seen[key]; dup {
			upsertRows[i] = row
			continue
		}
		seen[key] = len(upsertRows)
		upsertRows = append(upsertRows, row)
	}
	_, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "field_provenance",
		Columns:      []string{"product_id", "field_name", "source_url", "raw_value", "confidence", "extracted_at"},
		ConflictKeys: []string{"product_id", "field_name", "source_url"},
		UpdateCols:   []string{"raw_value", "confidence", "extracted_at"},
	}, upsertRows)
	return eris.Wrap(err, "postgres: insert provenance")
}

func (s *PostgresStore) ListProvenance(ctx context.Context, productID string) ([]model.FieldProvenance, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, product_id, field_name, source_url, raw_value, confidence, extracted_at
		 FROM field_provenance WHERE product_id = $1 ORDER BY extracted_at DESC`,
		productID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list provenance")
	}
	defer rows.Close()

	var out []model.FieldProvenance
	for rows.Next() {
		var fp model.FieldProvenance
		if err := rows.Scan(&fp.ID, &fp.ProductID, &fp.FieldName, &fp.SourceURL, &fp.RawValue, &fp.Confidence, &fp.ExtractedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan provenance")
		}
		out = append(out, fp)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate provenance")
}

func (s *PostgresStore) CreateJob(ctx context.Context, job *model.CrawlJob) error {
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	if job.Status == "" {
		job.Status = model.JobPending
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO crawl_jobs (id, source_id, status, created_at) VALUES ($1, $2, $3, $4)`,
		job.ID, job.SourceID, string(job.Status), job.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: insert job for source %s", job.SourceID)
}

func (s *PostgresStore) UpdateJobStatus(ctx context.Context, jobID string, status model.JobStatus) error {
	current, err := s.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if current == nil {
		return eris.Errorf("job not found: %s", jobID)
	}
	if !current.Status.CanTransition(status) {
		return eris.Errorf("job %s: invalid transition %s -> %s", jobID, current.Status, status)
	}

	set := `status = $1`
	args := []any{string(status)}
	if status == model.JobRunning {
		set += `, started_at = now()`
	}

	args = append(args, jobID)
	_, err = s.pool.Exec(ctx,
		fmt.Sprintf(`UPDATE crawl_jobs SET %s WHERE id = $%d`, set, len(args)),
		args...,
	)
	return eris.Wrapf(err, "postgres: update job status %s", jobID)
}

// FinishJob writes the terminal status and counters in one statement.
func (s *PostgresStore) FinishJob(ctx context.Context, job *model.CrawlJob) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE crawl_jobs SET
			status = $1, pages_crawled = $2, products_found = $3, products_new = $4,
			products_updated = $5, error_count = $6, duration_ms = $7, summary = $8, finished_at = now()
		 WHERE id = $9`,
		string(job.Status), job.PagesCrawled, job.ProductsFound, job.ProductsNew,
		job.ProductsUpdated, job.ErrorCount, job.DurationMS, job.Summary, job.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: finish job %s", job.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("job not found: %s", job.ID)
	}
	return nil
}

const jobColumns = `id, source_id, status, pages_crawled, products_found, products_new,
	products_updated, error_count, duration_ms, summary, started_at, finished_at, created_at`

func scanJob(row rowScanner) (*model.CrawlJob, error) {
	var j model.CrawlJob
	err := row.Scan(&j.ID, &j.SourceID, &j.Status, &j.PagesCrawled, &j.ProductsFound, &j.ProductsNew,
		&j.ProductsUpdated, &j.ErrorCount, &j.DurationMS, &j.Summary, &j.StartedAt, &j.FinishedAt, &j.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &j, nil
}

func (s *PostgresStore) GetJob(ctx context.Context, jobID string) (*model.CrawlJob, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM crawl_jobs WHERE id = $1`, jobID)
	j, err := scanJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get job %s", jobID)
	}
	return j, nil
}

func (s *PostgresStore) ListJobs(ctx context.Context, sourceID string, limit int) ([]model.CrawlJob, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + jobColumns + ` FROM crawl_jobs`
	args := []any{}
	if sourceID != "" {
		query += ` WHERE source_id = $1`
		args = append(args, sourceID)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, len(args)+1)
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list jobs")
	}
	defer rows.Close()

	var jobs []model.CrawlJob
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan job")
		}
		jobs = append(jobs, *j)
	}
	return jobs, eris.Wrap(rows.Err(), "postgres: iterate jobs")
}

func (s *PostgresStore) InsertCrawlError(ctx context.Context, ce model.CrawlError) error {
	var headersJSON []byte
	if len(ce.Headers) > 0 {
		var err error
		headersJSON, err = json.Marshal(ce.Headers)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal error headers")
		}
	}
	at := ce.OccurredAt
	if at.IsZero() {
		at = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO crawl_errors (source_id, url, kind, message, stack, tier, http_status, headers, occurred_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		ce.SourceID, ce.URL, string(ce.Kind), ce.Message, ce.Stack, ce.Tier, ce.HTTPStatus, headersJSON, at,
	)
	return eris.Wrap(err, "postgres: insert crawl error")
}

func (s *PostgresStore) ListCrawlErrors(ctx context.Context, filter ErrorFilter) ([]model.CrawlError, error) {
	query := `SELECT id, source_id, url, kind, message, stack, tier, http_status, headers, resolved, occurred_at
	          FROM crawl_errors WHERE true`
	args := []any{}
	argIdx := 1

	if filter.SourceID != "" {
		query += fmt.Sprintf(` AND source_id = $%d`, argIdx)
		args = append(args, filter.SourceID)
		argIdx++
	}
	if filter.Kind != "" {
		query += fmt.Sprintf(` AND kind = $%d`, argIdx)
		args = append(args, string(filter.Kind))
		argIdx++
	}
	if filter.Unresolved {
		query += ` AND NOT resolved`
	}
	if !filter.Since.IsZero() {
		query += fmt.Sprintf(` AND occurred_at >= $%d`, argIdx)
		args = append(args, filter.Since)
		argIdx++
	}
	query += ` ORDER BY occurred_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list crawl errors")
	}
	defer rows.Close()

	var out []model.CrawlError
	for rows.Next() {
		var ce model.CrawlError
		var headersJSON []byte
		if err := rows.Scan(&ce.ID, &ce.SourceID, &ce.URL, &ce.Kind, &ce.Message, &ce.Stack,
			&ce.Tier, &ce.HTTPStatus, &headersJSON, &ce.Resolved, &ce.OccurredAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan crawl error")
		}
		if len(headersJSON) > 0 {
			if err := json.Unmarshal(headersJSON, &ce.Headers); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal error headers")
			}
		}
		out = append(out, ce)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate crawl errors")
}

func (s *PostgresStore) ResolveCrawlError(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `UPDATE crawl_errors SET resolved = true WHERE id = $1`, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: resolve crawl error %d", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("crawl_error not found: %d", id)
	}
	return nil
}

// ErrorRateSince returns failures and total request-ish events for a source
// in the window. Totals come from job page counters; failures from the error
// log.
func (s *PostgresStore) ErrorRateSince(ctx context.Context, sourceID string, since time.Time) (int, int, error) {
	var failures int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM crawl_errors WHERE source_id = $1 AND occurred_at >= $2`,
		sourceID, since,
	).Scan(&failures)
	if err != nil {
		return 0, 0, eris.Wrap(err, "postgres: count errors")
	}

	var pages int
	err = s.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(pages_crawled), 0) FROM crawl_jobs WHERE source_id = $1 AND created_at >= $2`,
		sourceID, since,
	).Scan(&pages)
	if err != nil {
		return 0, 0, eris.Wrap(err, "postgres: sum job pages")
	}
	return failures, pages + failures, nil
}

func (s *PostgresStore) InsertCostRecord(ctx context.Context, rec model.CostRecord) error {
	at := rec.RecordedAt
	if at.IsZero() {
		at = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO cost_records (service, cost_cents, requests, crawl_job_id, recorded_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		string(rec.Service), rec.CostCents, rec.Requests, rec.CrawlJobID, at,
	)
	return eris.Wrap(err, "postgres: insert cost record")
}

func (s *PostgresStore) SumCostSince(ctx context.Context, since time.Time) (int, error) {
	var total int
	err := s.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(cost_cents), 0) FROM cost_records WHERE recorded_at >= $1`,
		since,
	).Scan(&total)
	return total, eris.Wrap(err, "postgres: sum cost")
}
