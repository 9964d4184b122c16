// Package probelog persists operator diagnostics: the outcome of each live
// provider probe and every circuit-breaker state transition. It is an
// append-only journal for postmortems; request traffic is never recorded
// here.
package probelog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Event kinds stored in the journal.
const (
	KindProbe   = "probe"
	KindBreaker = "breaker"
)

// Entry is a single journal record. For KindProbe, OK and LatencyMS carry
// the probe outcome; for KindBreaker, Detail carries the "from -> to"
// transition.
type Entry struct {
	Provider  string
	Kind      string
	OK        bool
	LatencyMS int64
	Detail    string
	CreatedAt time.Time
}

// Recorder persists journal entries.
type Recorder interface {
	Record(ctx context.Context, entry Entry) error
}

// NoopRecorder ignores all writes. Used when no journal is configured.
type NoopRecorder struct{}

func (NoopRecorder) Record(_ context.Context, _ Entry) error { return nil }

// SQLRecorder persists entries to SQLite or Postgres.
type SQLRecorder struct {
	db      *sql.DB
	dialect string
}

// NewSQLite opens (creating if needed) a SQLite-backed journal.
func NewSQLite(dsn string) (*SQLRecorder, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		dsn = "failoverd-diagnostics.db"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite probe journal: %w", err)
	}
	r := &SQLRecorder{db: db, dialect: "sqlite"}
	if err := r.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return r, nil
}

// NewPostgres opens a Postgres-backed journal.
func NewPostgres(dsn string) (*SQLRecorder, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("postgres dsn is required")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres probe journal: %w", err)
	}
	r := &SQLRecorder{db: db, dialect: "postgres"}
	if err := r.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return r, nil
}

func (r *SQLRecorder) init() error {
	if err := r.db.Ping(); err != nil {
		return fmt.Errorf("ping %s probe journal: %w", r.dialect, err)
	}

	ddl := `
CREATE TABLE IF NOT EXISTS diagnostics (
	id INTEGER PRIMARY KEY,
	provider TEXT NOT NULL,
	kind TEXT NOT NULL,
	ok INTEGER NOT NULL,
	latency_ms INTEGER NOT NULL,
	detail TEXT,
	created_at TIMESTAMP NOT NULL
);`

	if r.dialect == "postgres" {
		ddl = `
CREATE TABLE IF NOT EXISTS diagnostics (
	id BIGSERIAL PRIMARY KEY,
	provider TEXT NOT NULL,
	kind TEXT NOT NULL,
	ok BOOLEAN NOT NULL,
	latency_ms BIGINT NOT NULL,
	detail TEXT,
	created_at TIMESTAMPTZ NOT NULL
);`
	}

	if _, err := r.db.Exec(ddl); err != nil {
		return fmt.Errorf("initialize probe journal schema: %w", err)
	}
	return nil
}

// Record appends an entry to the journal.
func (r *SQLRecorder) Record(ctx context.Context, entry Entry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	query := `INSERT INTO diagnostics(provider, kind, ok, latency_ms, detail, created_at)
	VALUES(?, ?, ?, ?, ?, ?)`
	if r.dialect == "postgres" {
		query = `INSERT INTO diagnostics(provider, kind, ok, latency_ms, detail, created_at)
		VALUES($1, $2, $3, $4, $5, $6)`
	}

	_, err := r.db.ExecContext(ctx, query,
		entry.Provider,
		entry.Kind,
		entry.OK,
		entry.LatencyMS,
		entry.Detail,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("write probe journal: %w", err)
	}
	return nil
}

// Recent returns up to n most recent entries, newest first.
func (r *SQLRecorder) Recent(ctx context.Context, n int) ([]Entry, error) {
	if n <= 0 {
		n = 50
	}
	query := `SELECT provider, kind, ok, latency_ms, detail, created_at
	FROM diagnostics ORDER BY id DESC LIMIT ?`
	if r.dialect == "postgres" {
		query = `SELECT provider, kind, ok, latency_ms, detail, created_at
		FROM diagnostics ORDER BY id DESC LIMIT $1`
	}

	rows, err := r.db.QueryContext(ctx, query, n)
	if err != nil {
		return nil, fmt.Errorf("read probe journal: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Provider, &e.Kind, &e.OK, &e.LatencyMS, &e.Detail, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan probe journal row: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close releases the underlying database handle.
func (r *SQLRecorder) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}
