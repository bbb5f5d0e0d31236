package sqlstore

import (
	"context"
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T, path string) *Store {
	t.Helper()
	s, err := Open(context.Background(), SQLite, path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return s
}

func TestStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, filepath.Join(t.TempDir(), "data", "finsight.db"))
	defer s.Close()

	if _, ok, err := s.Get(ctx, "fs_accounts"); err != nil || ok {
		t.Fatalf("Get on empty store: ok=%v err=%v", ok, err)
	}

	if err := s.Put(ctx, "fs_accounts", []byte(`[{"id":"a"}]`)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Put(ctx, "fs_accounts", []byte(`[]`)); err != nil {
		t.Fatalf("Put overwrite: %v", err)
	}

	got, ok, err := s.Get(ctx, "fs_accounts")
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if string(got) != "[]" {
		t.Errorf("got %q, want %q", got, "[]")
	}
}

func TestStore_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "finsight.db")

	s := openTestStore(t, path)
	if err := s.Put(ctx, "fs_transactions", []byte(`[1]`)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	s.Close()

	reopened := openTestStore(t, path)
	defer reopened.Close()

	got, ok, err := reopened.Get(ctx, "fs_transactions")
	if err != nil || !ok || string(got) != "[1]" {
		t.Errorf("after reopen: got %q ok=%v err=%v", got, ok, err)
	}

	version, dirty, err := SchemaVersion(SQLite, path)
	if err != nil {
		t.Fatalf("SchemaVersion: %v", err)
	}
	if version != 1 || dirty {
		t.Errorf("schema version = %d dirty=%v, want 1 clean", version, dirty)
	}
}

func TestOpen_UnsupportedDialect(t *testing.T) {
	if _, err := Open(context.Background(), Dialect("mysql"), "x"); err == nil {
		t.Error("expected error for unsupported dialect")
	}
}

func TestRebind(t *testing.T) {
	tests := []struct {
		dialect Dialect
		in      string
		want    string
	}{
		{SQLite, "SELECT a FROM t WHERE b = ?", "SELECT a FROM t WHERE b = ?"},
		{Postgres, "SELECT a FROM t WHERE b = ?", "SELECT a FROM t WHERE b = $1"},
		{Postgres, "VALUES (?, ?, ?)", "VALUES ($1, $2, $3)"},
	}

	for _, tt := range tests {
		t.Run(string(tt.dialect)+" "+tt.in, func(t *testing.T) {
			if got := rebind(tt.dialect, tt.in); got != tt.want {
				t.Errorf("rebind() = %q, want %q", got, tt.want)
			}
		})
	}
}
