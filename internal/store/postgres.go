package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/cellarium/catalog-cli/internal/db"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the hottest store operations.
var preparedStatements = map[string]string{
	"get_product_by_fp":   `SELECT id FROM products WHERE fingerprint = $1`,
	"get_product_by_gtin": `SELECT id FROM products WHERE gtin = $1 AND gtin <> ''`,
	"insert_crawl_error": `INSERT INTO crawl_errors (source_id, url, kind, message, stack, tier, http_status, headers, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
	"insert_cost_record": `INSERT INTO cost_records (service, cost_cents, requests, crawl_job_id, recorded_at)
		VALUES ($1, $2, $3, $4, $5)`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool. Used by tests with pgxmock.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Pool returns the underlying database pool for subsystems that need direct
// query access (bulk loads, maintenance).
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS brands (
	id      TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	name    TEXT NOT NULL UNIQUE,
	slug    TEXT NOT NULL UNIQUE,
	country TEXT NOT NULL DEFAULT '',
	region  TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS products (
	id                    TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	product_type          TEXT NOT NULL,
	name                  TEXT NOT NULL,
	gtin                  TEXT NOT NULL DEFAULT '',
	brand_id              TEXT REFERENCES brands(id),
	abv                   DOUBLE PRECISION NOT NULL DEFAULT 0,
	volume_ml             INTEGER NOT NULL DEFAULT 0,
	age_statement         TEXT NOT NULL DEFAULT '',
	country               TEXT NOT NULL DEFAULT '',
	region                TEXT NOT NULL DEFAULT '',
	category              TEXT NOT NULL DEFAULT '',
	description           TEXT NOT NULL DEFAULT '',
	primary_cask          TEXT[] NOT NULL DEFAULT '{}',
	finishing_cask        TEXT[] NOT NULL DEFAULT '{}',
	wood_type             TEXT[] NOT NULL DEFAULT '{}',
	cask_treatment        TEXT[] NOT NULL DEFAULT '{}',
	best_price_cents      INTEGER NOT NULL DEFAULT 0,
	images                TEXT[] NOT NULL DEFAULT '{}',
	ratings               JSONB NOT NULL DEFAULT '{}',
	completeness_score    INTEGER NOT NULL DEFAULT 0,
	status                TEXT NOT NULL DEFAULT 'skeleton',
	source_count          INTEGER NOT NULL DEFAULT 0,
	verified_fields       TEXT[] NOT NULL DEFAULT '{}',
	extraction_confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
	source_url            TEXT NOT NULL DEFAULT '',
	discovery_source      TEXT NOT NULL DEFAULT '',
	discovery_sources     TEXT[] NOT NULL DEFAULT '{}',
	fingerprint           TEXT NOT NULL UNIQUE,
	match_confidence      DOUBLE PRECISION NOT NULL DEFAULT 0,
	has_conflicts         BOOLEAN NOT NULL DEFAULT false,
	conflict_details      JSONB NOT NULL DEFAULT '[]',
	award_count           INTEGER NOT NULL DEFAULT 0,
	rating_count          INTEGER NOT NULL DEFAULT 0,
	price_count           INTEGER NOT NULL DEFAULT 0,
	mention_count         INTEGER NOT NULL DEFAULT 0,
	discovered_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at            TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_products_gtin ON products(gtin) WHERE gtin <> '';
CREATE INDEX IF NOT EXISTS idx_products_status_discovered ON products(status, discovered_at);
CREATE INDEX IF NOT EXISTS idx_products_type ON products(product_type);
CREATE INDEX IF NOT EXISTS idx_products_score ON products(completeness_score);
CREATE INDEX IF NOT EXISTS idx_products_brand ON products(brand_id);
CREATE INDEX IF NOT EXISTS idx_products_name_lower ON products(lower(name));
CREATE INDEX IF NOT EXISTS idx_products_country ON products(country);
CREATE INDEX IF NOT EXISTS idx_products_region ON products(region);
CREATE INDEX IF NOT EXISTS idx_products_abv ON products(abv);

CREATE TABLE IF NOT EXISTS product_tasting (
	product_id             TEXT PRIMARY KEY REFERENCES products(id) ON DELETE CASCADE,
	color_description      TEXT NOT NULL DEFAULT '',
	color_intensity        TEXT NOT NULL DEFAULT '',
	clarity                TEXT NOT NULL DEFAULT '',
	viscosity              TEXT NOT NULL DEFAULT '',
	nose_description       TEXT NOT NULL DEFAULT '',
	primary_aromas         TEXT[] NOT NULL DEFAULT '{}',
	nose_intensity         TEXT NOT NULL DEFAULT '',
	secondary_aromas       TEXT[] NOT NULL DEFAULT '{}',
	nose_evolution         TEXT NOT NULL DEFAULT '',
	initial_taste          TEXT NOT NULL DEFAULT '',
	mid_palate_evolution   TEXT NOT NULL DEFAULT '',
	palate_description     TEXT NOT NULL DEFAULT '',
	palate_flavors         TEXT[] NOT NULL DEFAULT '{}',
	flavor_intensity       TEXT NOT NULL DEFAULT '',
	complexity             TEXT NOT NULL DEFAULT '',
	mouthfeel              TEXT NOT NULL DEFAULT '',
	finish_description     TEXT NOT NULL DEFAULT '',
	finish_flavors         TEXT[] NOT NULL DEFAULT '{}',
	finish_length          TEXT NOT NULL DEFAULT '',
	warmth                 TEXT NOT NULL DEFAULT '',
	dryness                TEXT NOT NULL DEFAULT '',
	finish_evolution       TEXT NOT NULL DEFAULT '',
	final_notes            TEXT NOT NULL DEFAULT '',
	balance                TEXT NOT NULL DEFAULT '',
	overall_complexity     TEXT NOT NULL DEFAULT '',
	uniqueness             TEXT NOT NULL DEFAULT '',
	drinkability           TEXT NOT NULL DEFAULT '',
	price_quality_ratio    TEXT NOT NULL DEFAULT '',
	experience_level       TEXT NOT NULL DEFAULT '',
	serving_recommendation TEXT NOT NULL DEFAULT '',
	food_pairings          TEXT[] NOT NULL DEFAULT '{}'
);

CREATE TABLE IF NOT EXISTS whiskey_details (
	product_id         TEXT PRIMARY KEY REFERENCES products(id) ON DELETE CASCADE,
	whiskey_type       TEXT NOT NULL DEFAULT '',
	distillery         TEXT NOT NULL DEFAULT '',
	mash_bill          TEXT NOT NULL DEFAULT '',
	cask_strength      BOOLEAN NOT NULL DEFAULT false,
	single_cask        BOOLEAN NOT NULL DEFAULT false,
	peated             BOOLEAN NOT NULL DEFAULT false,
	natural_color      BOOLEAN NOT NULL DEFAULT false,
	non_chill_filtered BOOLEAN NOT NULL DEFAULT false,
	peat_level         TEXT NOT NULL DEFAULT '',
	peat_ppm           INTEGER NOT NULL DEFAULT 0,
	vintage_year       INTEGER NOT NULL DEFAULT 0,
	bottling_year      INTEGER NOT NULL DEFAULT 0,
	batch_number       TEXT NOT NULL DEFAULT '',
	cask_number        TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_whiskey_distillery ON whiskey_details(distillery);

CREATE TABLE IF NOT EXISTS port_details (
	product_id         TEXT PRIMARY KEY REFERENCES products(id) ON DELETE CASCADE,
	style              TEXT NOT NULL DEFAULT '',
	indication_age     INTEGER NOT NULL DEFAULT 0,
	harvest_year       INTEGER NOT NULL DEFAULT 0,
	bottling_year      INTEGER NOT NULL DEFAULT 0,
	producer_house     TEXT NOT NULL DEFAULT '',
	quinta             TEXT NOT NULL DEFAULT '',
	douro_subregion    TEXT NOT NULL DEFAULT '',
	grape_varieties    TEXT[] NOT NULL DEFAULT '{}',
	decanting_required BOOLEAN NOT NULL DEFAULT false,
	drinking_window    TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_port_harvest_year ON port_details(harvest_year);
CREATE INDEX IF NOT EXISTS idx_port_producer ON port_details(producer_house);

CREATE TABLE IF NOT EXISTS sources (
	id                     TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	name                   TEXT NOT NULL,
	slug                   TEXT NOT NULL UNIQUE,
	base_url               TEXT NOT NULL,
	category               TEXT NOT NULL,
	product_types          TEXT[] NOT NULL DEFAULT '{}',
	priority               INTEGER NOT NULL DEFAULT 5,
	crawl_frequency_hours  INTEGER NOT NULL DEFAULT 168,
	rate_limit_rpm         INTEGER NOT NULL DEFAULT 30,
	requires_js            BOOLEAN NOT NULL DEFAULT false,
	requires_proxy         BOOLEAN NOT NULL DEFAULT false,
	requires_managed_proxy BOOLEAN NOT NULL DEFAULT false,
	age_gate               JSONB,
	discovered_via         TEXT NOT NULL DEFAULT 'manual',
	robots_ok              BOOLEAN NOT NULL DEFAULT false,
	tos_ok                 BOOLEAN NOT NULL DEFAULT false,
	active                 BOOLEAN NOT NULL DEFAULT true,
	last_crawl_at          TIMESTAMPTZ,
	next_crawl_at          TIMESTAMPTZ,
	created_at             TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at             TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_sources_next_crawl ON sources(next_crawl_at) WHERE active;
CREATE INDEX IF NOT EXISTS idx_sources_category ON sources(category);

CREATE TABLE IF NOT EXISTS awards (
	id             TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	product_id     TEXT NOT NULL REFERENCES products(id) ON DELETE CASCADE,
	competition    TEXT NOT NULL,
	year           INTEGER NOT NULL,
	medal          TEXT NOT NULL,
	score          DOUBLE PRECISION NOT NULL DEFAULT 0,
	category       TEXT NOT NULL DEFAULT '',
	award_category TEXT NOT NULL DEFAULT '',
	image_url      TEXT NOT NULL DEFAULT '',
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (product_id, competition, year, medal)
);

CREATE INDEX IF NOT EXISTS idx_awards_product ON awards(product_id);
CREATE INDEX IF NOT EXISTS idx_awards_competition_year ON awards(competition, year);

CREATE TABLE IF NOT EXISTS field_provenance (
	id           BIGSERIAL PRIMARY KEY,
	product_id   TEXT NOT NULL REFERENCES products(id) ON DELETE CASCADE,
	field_name   TEXT NOT NULL,
	source_url   TEXT NOT NULL,
	raw_value    TEXT NOT NULL DEFAULT '',
	confidence   DOUBLE PRECISION NOT NULL DEFAULT 0,
	extracted_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (product_id, field_name, source_url)
);

CREATE INDEX IF NOT EXISTS idx_provenance_product ON field_provenance(product_id);

CREATE TABLE IF NOT EXISTS crawl_jobs (
	id               TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	source_id        TEXT NOT NULL,
	status           TEXT NOT NULL DEFAULT 'pending',
	pages_crawled    INTEGER NOT NULL DEFAULT 0,
	products_found   INTEGER NOT NULL DEFAULT 0,
	products_new     INTEGER NOT NULL DEFAULT 0,
	products_updated INTEGER NOT NULL DEFAULT 0,
	error_count      INTEGER NOT NULL DEFAULT 0,
	duration_ms      BIGINT NOT NULL DEFAULT 0,
	summary          TEXT NOT NULL DEFAULT '',
	started_at       TIMESTAMPTZ,
	finished_at      TIMESTAMPTZ,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_jobs_source ON crawl_jobs(source_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_jobs_status ON crawl_jobs(status);

CREATE TABLE IF NOT EXISTS crawl_errors (
	id          BIGSERIAL PRIMARY KEY,
	source_id   TEXT NOT NULL DEFAULT '',
	url         TEXT NOT NULL,
	kind        TEXT NOT NULL,
	message     TEXT NOT NULL DEFAULT '',
	stack       TEXT NOT NULL DEFAULT '',
	tier        INTEGER NOT NULL DEFAULT 0,
	http_status INTEGER NOT NULL DEFAULT 0,
	headers     JSONB,
	resolved    BOOLEAN NOT NULL DEFAULT false,
	occurred_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_errors_occurred ON crawl_errors(occurred_at DESC);
CREATE INDEX IF NOT EXISTS idx_errors_source ON crawl_errors(source_id, occurred_at DESC);
CREATE INDEX IF NOT EXISTS idx_errors_kind ON crawl_errors(kind) WHERE NOT resolved;

CREATE TABLE IF NOT EXISTS cost_records (
	id           BIGSERIAL PRIMARY KEY,
	service      TEXT NOT NULL,
	cost_cents   INTEGER NOT NULL DEFAULT 0,
	requests     INTEGER NOT NULL DEFAULT 0,
	crawl_job_id TEXT NOT NULL DEFAULT '',
	recorded_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_costs_recorded ON cost_records(recorded_at DESC);
CREATE INDEX IF NOT EXISTS idx_costs_service ON cost_records(service, recorded_at DESC);

CREATE TABLE IF NOT EXISTS source_fingerprints (
	source_id   TEXT PRIMARY KEY,
	fingerprint TEXT NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}
