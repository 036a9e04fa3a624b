// Package postgres mirrors the record table into a Postgres table so other
// tools can query the catalog without opening the spreadsheet.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/catalog-crawler/internal/catalog"
)

const defaultTable = "catalog_records"

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection pool used for record rows.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// RecordStore upserts catalog records keyed by item id.
//
// Expected schema:
//
//	CREATE TABLE catalog_records (
//		id         integer PRIMARY KEY,
//		url        text NOT NULL,
//		fields     jsonb NOT NULL,
//		updated_at timestamptz NOT NULL
//	);
type RecordStore struct {
	pool  execCloser
	table string
	now   func() time.Time
}

// New creates a Postgres-backed RecordStore using the provided config.
func New(ctx context.Context, cfg Config) (*RecordStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("postgres.dsn is required")
	}
	table, err := resolveTable(cfg.Table)
	if err != nil {
		return nil, err
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &RecordStore{pool: pool, table: table, now: time.Now}, nil
}

// NewWithPool constructs a store from an existing pool (primarily for testing).
func NewWithPool(pool execCloser, table string, now func() time.Time) (*RecordStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	resolved, err := resolveTable(table)
	if err != nil {
		return nil, err
	}
	if now == nil {
		now = time.Now
	}
	return &RecordStore{pool: pool, table: resolved, now: now}, nil
}

func resolveTable(table string) (string, error) {
	if table == "" {
		table = defaultTable
	}
	if !validTableName.MatchString(table) {
		return "", fmt.Errorf("invalid table name %q", table)
	}
	return table, nil
}

// Close releases the underlying pool resources.
func (s *RecordStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Name implements checkpoint.Mirror.
func (s *RecordStore) Name() string { return "postgres" }

// Mirror upserts every record in one statement and returns the table name.
func (s *RecordStore) Mirror(ctx context.Context, records []catalog.Record) (string, error) {
	if s == nil || s.pool == nil {
		return "", fmt.Errorf("record store is not configured")
	}
	location := "postgres:" + s.table
	if len(records) == 0 {
		return location, nil
	}

	ids := make([]int, len(records))
	urls := make([]string, len(records))
	fields := make([]string, len(records))
	for i, rec := range records {
		raw, err := json.Marshal(normalizeFields(rec.Fields))
		if err != nil {
			return "", fmt.Errorf("marshal fields for id %d: %w", rec.ID, err)
		}
		ids[i] = rec.ID
		urls[i] = rec.URL
		fields[i] = string(raw)
	}

	query := fmt.Sprintf(`
INSERT INTO %s (id, url, fields, updated_at)
SELECT r.id, r.url, r.fields, $4
FROM unnest($1::integer[], $2::text[], $3::jsonb[]) AS r(id, url, fields)
ON CONFLICT (id) DO UPDATE SET
	url = EXCLUDED.url,
	fields = EXCLUDED.fields,
	updated_at = EXCLUDED.updated_at`, s.table)

	if _, err := s.pool.Exec(ctx, query, ids, urls, fields, s.now().UTC()); err != nil {
		return "", fmt.Errorf("upsert records: %w", err)
	}
	return location, nil
}

func normalizeFields(in map[string]string) map[string]string {
	if len(in) == 0 {
		return map[string]string{}
	}
	return in
}
