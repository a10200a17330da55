package frontier

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// SeenSet records URL keys that have already been enqueued or fetched.
// Entries expire after a TTL so sources can be recrawled on schedule.
type SeenSet interface {
	// MarkSeen records a key. Returns true if the key was newly added,
	// false if it was already present and unexpired.
	MarkSeen(ctx context.Context, key string) (bool, error)
	// Sweep removes expired entries and returns how many were removed.
	Sweep(ctx context.Context) (int64, error)
	Close() error
}

// MemorySeen is an in-process SeenSet for tests and one-shot runs.
type MemorySeen struct {
	mu    sync.Mutex
	ttl   time.Duration
	items map[string]time.Time
}

// NewMemorySeen creates an in-memory seen-set with the given TTL.
func NewMemorySeen(ttl time.Duration) *MemorySeen {
	return &MemorySeen{ttl: ttl, items: make(map[string]time.Time)}
}

func (m *MemorySeen) MarkSeen(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	if exp, ok := m.items[key]; ok && now.Before(exp) {
		return false, nil
	}
	m.items[key] = now.Add(m.ttl)
	return true, nil
}

func (m *MemorySeen) Sweep(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	var removed int64
	for k, exp := range m.items {
		if !now.Before(exp) {
			delete(m.items, k)
			removed++
		}
	}
	return removed, nil
}

func (m *MemorySeen) Close() error { return nil }

// SQLiteSeen persists the seen-set across process restarts.
type SQLiteSeen struct {
	db  *sql.DB
	ttl time.Duration
}

const seenMigration = `
CREATE TABLE IF NOT EXISTS seen_urls (
	key        TEXT PRIMARY KEY,
	expires_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_seen_urls_expires_at ON seen_urls(expires_at);
`

// NewSQLiteSeen opens (or creates) the seen-set database at the given path
// and configures WAL mode.
func NewSQLiteSeen(dsn string, ttl time.Duration) (*SQLiteSeen, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "frontier: open seen db")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "frontier: exec %s", pragma)
		}
	}
	if _, err := db.Exec(seenMigration); err != nil {
		db.Close()
		return nil, eris.Wrap(err, "frontier: migrate seen db")
	}
	return &SQLiteSeen{db: db, ttl: ttl}, nil
}

func (s *SQLiteSeen) MarkSeen(ctx context.Context, key string) (bool, error) {
	now := time.Now().UTC()

	var expires time.Time
	err := s.db.QueryRowContext(ctx,
		`SELECT expires_at FROM seen_urls WHERE key = ?`, key,
	).Scan(&expires)
	switch {
	case err == nil:
		if now.Before(expires) {
			return false, nil
		}
		_, err = s.db.ExecContext(ctx,
			`UPDATE seen_urls SET expires_at = ? WHERE key = ?`,
			now.Add(s.ttl), key,
		)
		return err == nil, eris.Wrap(err, "frontier: refresh seen key")
	case eris.Is(err, sql.ErrNoRows):
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO seen_urls (key, expires_at) VALUES (?, ?)
			 ON CONFLICT(key) DO UPDATE SET expires_at = excluded.expires_at`,
			key, now.Add(s.ttl),
		)
		if err != nil {
			return false, eris.Wrap(err, "frontier: insert seen key")
		}
		return true, nil
	default:
		return false, eris.Wrap(err, "frontier: query seen key")
	}
}

func (s *SQLiteSeen) Sweep(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM seen_urls WHERE expires_at <= ?`, time.Now().UTC(),
	)
	if err != nil {
		return 0, eris.Wrap(err, "frontier: sweep seen set")
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (s *SQLiteSeen) Close() error {
	return s.db.Close()
}
