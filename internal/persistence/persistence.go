// Package persistence reads and writes ledger snapshots in the durable
// key-value store. Accounts and transactions live under two fixed keys,
// each holding a JSON array.
package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/dvloznov/finsight/internal/domain"
	"github.com/dvloznov/finsight/internal/jobs"
	"github.com/dvloznov/finsight/internal/kv"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const (
	AccountsKey     = "fs_accounts"
	TransactionsKey = "fs_transactions"
)

// Adapter moves snapshots between the ledger and a kv.Store.
type Adapter struct {
	store kv.Store
	log   zerolog.Logger

	mu      sync.Mutex
	written uint64
}

// New creates an adapter over store.
func New(store kv.Store, log zerolog.Logger) *Adapter {
	return &Adapter{
		store: store,
		log:   log.With().Str("component", "persistence").Logger(),
	}
}

// Load returns the last saved snapshot. It never fails: a key that is
// missing, unreadable or malformed yields an empty sequence and a warning.
// Each key is judged on its own.
func (a *Adapter) Load(ctx context.Context) domain.Snapshot {
	var snap domain.Snapshot

	var g errgroup.Group
	g.Go(func() error {
		snap.Accounts = loadKey[domain.Account](ctx, a, AccountsKey)
		return nil
	})
	g.Go(func() error {
		snap.Transactions = loadKey[domain.Transaction](ctx, a, TransactionsKey)
		return nil
	})
	_ = g.Wait()

	a.log.Debug().
		Int("accounts", len(snap.Accounts)).
		Int("transactions", len(snap.Transactions)).
		Msg("Loaded snapshot")

	return snap
}

func loadKey[T any](ctx context.Context, a *Adapter, key string) []T {
	out := []T{}

	raw, ok, err := a.store.Get(ctx, key)
	if err != nil {
		a.log.Warn().Err(err).Str("key", key).Msg("Durable store unavailable, treating as empty")
		return out
	}
	if !ok {
		return out
	}

	var decoded []T
	if err := json.Unmarshal(raw, &decoded); err != nil {
		a.log.Warn().Err(err).Str("key", key).Msg("Malformed persisted data, treating as empty")
		return out
	}
	if decoded == nil {
		return out
	}
	return decoded
}

// Save writes both keys unconditionally.
func (a *Adapter) Save(ctx context.Context, snap domain.Snapshot) error {
	accounts, err := json.Marshal(nonNil(snap.Accounts))
	if err != nil {
		return fmt.Errorf("Save: marshal accounts: %w", err)
	}
	transactions, err := json.Marshal(nonNil(snap.Transactions))
	if err != nil {
		return fmt.Errorf("Save: marshal transactions: %w", err)
	}

	if err := a.store.Put(ctx, AccountsKey, accounts); err != nil {
		return fmt.Errorf("Save: %s: %w", AccountsKey, err)
	}
	if err := a.store.Put(ctx, TransactionsKey, transactions); err != nil {
		return fmt.Errorf("Save: %s: %w", TransactionsKey, err)
	}
	return nil
}

// SaveSeq writes snap unless a snapshot with the same or a higher sequence
// number was already written, in which case it returns jobs.ErrSuperseded.
func (a *Adapter) SaveSeq(ctx context.Context, seq uint64, snap domain.Snapshot) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if seq <= a.written {
		return jobs.ErrSuperseded
	}
	if err := a.Save(ctx, snap); err != nil {
		return err
	}
	a.written = seq
	return nil
}

// HandleSaveJob is the jobs.JobHandler for snapshot saves.
func (a *Adapter) HandleSaveJob(ctx context.Context, job *jobs.SaveSnapshotJob) error {
	err := a.SaveSeq(ctx, job.Seq, job.Snapshot)
	switch {
	case err == nil:
		a.log.Debug().Str("job_id", job.JobID).Uint64("seq", job.Seq).Msg("Snapshot saved")
	case errors.Is(err, jobs.ErrSuperseded):
		a.log.Debug().Str("job_id", job.JobID).Uint64("seq", job.Seq).Msg("Snapshot superseded, skipping")
	default:
		a.log.Warn().Err(err).Str("job_id", job.JobID).Uint64("seq", job.Seq).Int("retry", job.RetryCount).Msg("Snapshot save failed")
	}
	return err
}

// LastWritten returns the sequence number of the newest snapshot written.
func (a *Adapter) LastWritten() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.written
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
