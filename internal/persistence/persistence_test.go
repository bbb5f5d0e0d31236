package persistence

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/finsight/internal/domain"
	"github.com/dvloznov/finsight/internal/jobs"
	"github.com/dvloznov/finsight/internal/kv/memory"
	"github.com/rs/zerolog"
)

// MockKV is a kv.Store whose calls can be made to fail.
type MockKV struct {
	GetFunc func(ctx context.Context, key string) ([]byte, bool, error)
	PutFunc func(ctx context.Context, key string, value []byte) error
}

func (m *MockKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, key)
	}
	return nil, false, nil
}

func (m *MockKV) Put(ctx context.Context, key string, value []byte) error {
	if m.PutFunc != nil {
		return m.PutFunc(ctx, key, value)
	}
	return nil
}

func (m *MockKV) Close() error { return nil }

var today = civil.Date{Year: 2025, Month: 11, Day: 14}

func TestAdapter_SaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	adapter := New(memory.New(), zerolog.Nop())
	snap := domain.DemoSnapshot(today)

	if err := adapter.Save(ctx, snap); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got := adapter.Load(ctx)
	if len(got.Accounts) != 3 || len(got.Transactions) != 4 {
		t.Fatalf("unexpected sizes: %d accounts, %d transactions", len(got.Accounts), len(got.Transactions))
	}
	if !got.Accounts[2].Balance.Equal(snap.Accounts[2].Balance) {
		t.Errorf("balance changed across round trip: %s", got.Accounts[2].Balance)
	}
	if got.Transactions[0].Date != today || got.Transactions[0].Type != domain.Expense {
		t.Errorf("transaction changed across round trip: %+v", got.Transactions[0])
	}
}

func TestAdapter_LayoutUsesFixedKeys(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	adapter := New(store, zerolog.Nop())

	if err := adapter.Save(ctx, domain.DemoSnapshot(today)); err != nil {
		t.Fatalf("Save: %v", err)
	}

	raw, ok, _ := store.Get(ctx, TransactionsKey)
	if !ok {
		t.Fatalf("expected %s to be written", TransactionsKey)
	}
	var records []map[string]any
	if err := json.Unmarshal(raw, &records); err != nil {
		t.Fatalf("expected JSON array: %v", err)
	}
	for _, field := range []string{"id", "accountId", "amount", "type", "category", "date", "note"} {
		if _, ok := records[0][field]; !ok {
			t.Errorf("missing field %q in %v", field, records[0])
		}
	}
	if records[0]["date"] != "2025-11-14" {
		t.Errorf("date = %v, want 2025-11-14", records[0]["date"])
	}

	if _, ok, _ := store.Get(ctx, AccountsKey); !ok {
		t.Errorf("expected %s to be written", AccountsKey)
	}
}

func TestAdapter_LoadEmptyStore(t *testing.T) {
	got := New(memory.New(), zerolog.Nop()).Load(context.Background())
	if got.Accounts == nil || got.Transactions == nil {
		t.Error("expected empty, non-nil sequences")
	}
	if len(got.Accounts) != 0 || len(got.Transactions) != 0 {
		t.Errorf("expected empty snapshot, got %+v", got)
	}
}

func TestAdapter_LoadIsFailureTolerant(t *testing.T) {
	ctx := context.Background()
	accounts, _ := json.Marshal(domain.DemoSnapshot(today).Accounts)

	tests := []struct {
		name             string
		get              func(ctx context.Context, key string) ([]byte, bool, error)
		wantAccounts     int
		wantTransactions int
		wantWarning      string
	}{
		{
			name: "store unavailable",
			get: func(ctx context.Context, key string) ([]byte, bool, error) {
				return nil, false, errors.New("connection refused")
			},
			wantWarning: "Durable store unavailable",
		},
		{
			name: "malformed transactions only",
			get: func(ctx context.Context, key string) ([]byte, bool, error) {
				if key == AccountsKey {
					return accounts, true, nil
				}
				return []byte(`{"not":"an array"`), true, nil
			},
			wantAccounts: 3,
			wantWarning:  "Malformed persisted data",
		},
		{
			name: "null values",
			get: func(ctx context.Context, key string) ([]byte, bool, error) {
				return []byte("null"), true, nil
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			adapter := New(&MockKV{GetFunc: tt.get}, zerolog.New(zerolog.SyncWriter(buf)))

			got := adapter.Load(ctx)
			if len(got.Accounts) != tt.wantAccounts || len(got.Transactions) != tt.wantTransactions {
				t.Errorf("got %d accounts, %d transactions", len(got.Accounts), len(got.Transactions))
			}
			if got.Accounts == nil || got.Transactions == nil {
				t.Error("expected non-nil sequences")
			}
			if tt.wantWarning != "" && !strings.Contains(buf.String(), tt.wantWarning) {
				t.Errorf("expected warning %q, got log: %s", tt.wantWarning, buf.String())
			}
		})
	}
}

func TestAdapter_SaveError(t *testing.T) {
	adapter := New(&MockKV{PutFunc: func(context.Context, string, []byte) error {
		return errors.New("quota exceeded")
	}}, zerolog.Nop())

	err := adapter.Save(context.Background(), domain.DemoSnapshot(today))
	if err == nil || !strings.Contains(err.Error(), AccountsKey) {
		t.Errorf("expected wrapped error naming %s, got %v", AccountsKey, err)
	}
}

func TestAdapter_SaveSeqDropsStaleSnapshots(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	adapter := New(store, zerolog.Nop())

	newer := domain.Snapshot{Accounts: []domain.Account{{ID: "newer"}}}
	older := domain.Snapshot{Accounts: []domain.Account{{ID: "older"}}}

	if err := adapter.SaveSeq(ctx, 2, newer); err != nil {
		t.Fatalf("SaveSeq(2): %v", err)
	}
	if err := adapter.SaveSeq(ctx, 1, older); !errors.Is(err, jobs.ErrSuperseded) {
		t.Fatalf("SaveSeq(1): expected ErrSuperseded, got %v", err)
	}
	if err := adapter.SaveSeq(ctx, 2, older); !errors.Is(err, jobs.ErrSuperseded) {
		t.Fatalf("SaveSeq(2) again: expected ErrSuperseded, got %v", err)
	}

	got := adapter.Load(ctx)
	if len(got.Accounts) != 1 || got.Accounts[0].ID != "newer" {
		t.Errorf("stale snapshot overwrote newer one: %+v", got.Accounts)
	}
	if adapter.LastWritten() != 2 {
		t.Errorf("LastWritten = %d, want 2", adapter.LastWritten())
	}
}

func TestAdapter_SaveSeqFailureDoesNotAdvance(t *testing.T) {
	ctx := context.Background()
	fail := true
	adapter := New(&MockKV{PutFunc: func(context.Context, string, []byte) error {
		if fail {
			return errors.New("offline")
		}
		return nil
	}}, zerolog.Nop())

	if err := adapter.SaveSeq(ctx, 1, domain.Snapshot{}); err == nil {
		t.Fatal("expected error")
	}
	fail = false
	if err := adapter.SaveSeq(ctx, 1, domain.Snapshot{}); err != nil {
		t.Errorf("retry of the same seq should succeed, got %v", err)
	}
}

func TestAdapter_HandleSaveJob(t *testing.T) {
	ctx := context.Background()
	adapter := New(memory.New(), zerolog.Nop())

	job := &jobs.SaveSnapshotJob{JobID: "j1", Seq: 1, Snapshot: domain.DemoSnapshot(today)}
	if err := adapter.HandleSaveJob(ctx, job); err != nil {
		t.Fatalf("HandleSaveJob: %v", err)
	}
	if err := adapter.HandleSaveJob(ctx, job); !errors.Is(err, jobs.ErrSuperseded) {
		t.Errorf("expected replay to be superseded, got %v", err)
	}
}
