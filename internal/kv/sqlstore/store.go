// Package sqlstore implements kv.Store on SQLite or PostgreSQL.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dvloznov/finsight/internal/kv"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Dialect selects the SQL database flavour.
type Dialect string

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
)

// Validate reports whether the dialect is supported.
func (d Dialect) Validate() error {
	switch d {
	case SQLite, Postgres:
		return nil
	default:
		return fmt.Errorf("sqlstore: unsupported dialect %q", string(d))
	}
}

// driverName is the database/sql driver registered for the dialect.
func (d Dialect) driverName() string {
	return string(d)
}

const (
	getQuery = `SELECT value FROM kv_entries WHERE name = ?`
	putQuery = `INSERT INTO kv_entries (name, value, updated_at) VALUES (?, ?, ?)
ON CONFLICT (name) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`
)

// Store is a kv.Store backed by the kv_entries table.
type Store struct {
	db      *sql.DB
	dialect Dialect
	get     string
	put     string
	now     func() time.Time
}

// Open connects to the database, applies migrations and returns a ready store.
// For SQLite the dsn is a file path whose directory is created if missing.
func Open(ctx context.Context, dialect Dialect, dsn string) (*Store, error) {
	if err := dialect.Validate(); err != nil {
		return nil, err
	}

	if dialect == SQLite && dsn != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dsn), 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open(dialect.driverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", dialect, err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if dialect == SQLite {
		// SQLite allows a single writer
		db.SetMaxOpenConns(1)
	}

	if err := RunMigrations(dialect, dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{
		db:      db,
		dialect: dialect,
		get:     rebind(dialect, getQuery),
		put:     rebind(dialect, putQuery),
		now:     time.Now,
	}, nil
}

// Get implements kv.Store.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, s.get, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("Get: query %q: %w", key, err)
	}
	return []byte(value), true, nil
}

// Put implements kv.Store.
func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	if _, err := s.db.ExecContext(ctx, s.put, key, string(value), s.now().UTC()); err != nil {
		return fmt.Errorf("Put: upsert %q: %w", key, err)
	}
	return nil
}

// Close implements kv.Store.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// rebind rewrites ? placeholders to $n for PostgreSQL.
func rebind(dialect Dialect, query string) string {
	if dialect != Postgres {
		return query
	}

	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Ensure Store implements kv.Store.
var _ kv.Store = (*Store)(nil)
