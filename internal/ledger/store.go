package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/finsight/internal/domain"
	"github.com/google/uuid"
)

var ErrAccountNotFound = errors.New("account not found")

// ChangeKind names the mutation that produced a Change.
type ChangeKind string

const (
	ChangeTransactionAdded ChangeKind = "transaction.added"
	ChangeAccountAdded     ChangeKind = "account.added"
	ChangeAccountDeleted   ChangeKind = "account.deleted"
)

// Change describes a successful mutation.
type Change struct {
	Kind          ChangeKind
	AccountID     string
	TransactionID string
	// Removed is the number of transactions dropped by a cascading delete.
	Removed int
	// Version is the store version produced by this change. Versions grow
	// strictly with every mutation and Replace, in lock order.
	Version uint64
	// Tag is the label given to the contents by the last Replace, read under
	// the same lock as the mutation.
	Tag string
}

// Listener is notified after every successful mutation with the resulting snapshot.
// It runs outside the store lock.
type Listener func(ctx context.Context, change Change, snap domain.Snapshot)

// Store holds the accounts and transactions of the current session and is the
// only place they are mutated. It is safe for concurrent use.
type Store struct {
	mu           sync.RWMutex
	accounts     []domain.Account
	transactions []domain.Transaction
	listener     Listener
	version      uint64
	tag          string

	now   func() time.Time
	newID func() string
}

// Option customises a Store.
type Option func(*Store)

// WithClock overrides the clock used to default transaction dates.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDGenerator overrides id generation.
func WithIDGenerator(gen func() string) Option {
	return func(s *Store) { s.newID = gen }
}

// New creates a store seeded with a copy of snap.
func New(snap domain.Snapshot, opts ...Option) *Store {
	s := &Store{
		now:   time.Now,
		newID: func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(s)
	}
	c := snap.Clone()
	s.accounts, s.transactions = c.Accounts, c.Transactions
	return s
}

// SetListener registers the mutation listener, replacing any previous one.
func (s *Store) SetListener(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listener = l
}

// Today returns the store's notion of the current calendar date.
func (s *Store) Today() civil.Date {
	return civil.DateOf(s.now())
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() domain.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() domain.Snapshot {
	return domain.Snapshot{Accounts: s.accounts, Transactions: s.transactions}.Clone()
}

// Version returns the current store version.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Replace swaps the whole state for snap, labels it with tag and returns the
// new version. Every later Change carries tag until the next Replace.
// Listeners are not notified.
func (s *Store) Replace(snap domain.Snapshot, tag string) uint64 {
	c := snap.Clone()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts, s.transactions = c.Accounts, c.Transactions
	s.tag = tag
	s.version++
	return s.version
}

// Tag returns the label set by the last Replace.
func (s *Store) Tag() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tag
}

// AddTransaction records a new transaction at the head of the list and adjusts
// the balance of the referenced account. If no account matches, the
// transaction is still recorded and no balance changes.
func (s *Store) AddTransaction(ctx context.Context, in domain.TransactionInput) (domain.Transaction, error) {
	if err := in.Validate(); err != nil {
		return domain.Transaction{}, fmt.Errorf("AddTransaction: %w", err)
	}

	tx := domain.Transaction{
		ID:        s.newID(),
		AccountID: strings.TrimSpace(in.AccountID),
		Amount:    in.Amount,
		Type:      in.Type,
		Category:  strings.TrimSpace(in.Category),
		Note:      in.Note,
	}
	if in.Date != nil {
		tx.Date = *in.Date
	} else {
		tx.Date = s.Today()
	}

	s.mu.Lock()
	s.transactions = append([]domain.Transaction{tx}, s.transactions...)
	for i := range s.accounts {
		if s.accounts[i].ID == tx.AccountID {
			s.accounts[i].Balance = s.accounts[i].Balance.Add(tx.Signed())
			break
		}
	}
	s.version++
	snap, listener, version, tag := s.snapshotLocked(), s.listener, s.version, s.tag
	s.mu.Unlock()

	if listener != nil {
		listener(ctx, Change{Kind: ChangeTransactionAdded, AccountID: tx.AccountID, TransactionID: tx.ID, Version: version, Tag: tag}, snap)
	}
	return tx, nil
}

// AddAccount appends a new account. Balance is taken as the opening balance.
func (s *Store) AddAccount(ctx context.Context, in domain.AccountInput) (domain.Account, error) {
	if err := in.Validate(); err != nil {
		return domain.Account{}, fmt.Errorf("AddAccount: %w", err)
	}

	acc := domain.Account{
		ID:      s.newID(),
		Name:    strings.TrimSpace(in.Name),
		Balance: in.Balance,
		Color:   in.Color,
		Type:    strings.TrimSpace(in.Type),
	}
	if acc.Type == "" {
		acc.Type = domain.AccountTypeChecking
	}

	s.mu.Lock()
	if acc.Color == "" {
		acc.Color = domain.AccountColors[len(s.accounts)%len(domain.AccountColors)]
	}
	s.accounts = append(s.accounts, acc)
	s.version++
	snap, listener, version, tag := s.snapshotLocked(), s.listener, s.version, s.tag
	s.mu.Unlock()

	if listener != nil {
		listener(ctx, Change{Kind: ChangeAccountAdded, AccountID: acc.ID, Version: version, Tag: tag}, snap)
	}
	return acc, nil
}

// DeleteAccount removes the account and every transaction that references it.
// It returns the number of transactions removed.
func (s *Store) DeleteAccount(ctx context.Context, id string) (int, error) {
	id = strings.TrimSpace(id)
	s.mu.Lock()
	idx := -1
	for i, a := range s.accounts {
		if a.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return 0, fmt.Errorf("DeleteAccount: %w: %s", ErrAccountNotFound, id)
	}

	s.accounts = append(s.accounts[:idx:idx], s.accounts[idx+1:]...)
	kept := make([]domain.Transaction, 0, len(s.transactions))
	for _, tx := range s.transactions {
		if tx.AccountID != id {
			kept = append(kept, tx)
		}
	}
	removed := len(s.transactions) - len(kept)
	s.transactions = kept
	s.version++
	snap, listener, version, tag := s.snapshotLocked(), s.listener, s.version, s.tag
	s.mu.Unlock()

	if listener != nil {
		listener(ctx, Change{Kind: ChangeAccountDeleted, AccountID: id, Removed: removed, Version: version, Tag: tag}, snap)
	}
	return removed, nil
}
