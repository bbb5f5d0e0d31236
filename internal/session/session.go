// Package session holds the application context: the current user, the
// persistence mode and the ledger store, plus the collaborators that react
// to ledger changes.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/dvloznov/finsight/internal/domain"
	"github.com/dvloznov/finsight/internal/events"
	"github.com/dvloznov/finsight/internal/jobs"
	"github.com/dvloznov/finsight/internal/ledger"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Mode selects where ledger data comes from and goes to.
type Mode string

const (
	// ModeDemo serves fixture data; nothing is saved.
	ModeDemo Mode = "DEMO"
	// ModeDurable loads from and saves to the durable store.
	ModeDurable Mode = "DURABLE"
)

// DemoEmail is the address used by DemoLogin.
const DemoEmail = "demo@example.com"

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 6

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNotLoggedIn        = errors.New("not logged in")
	ErrInvalidMode        = errors.New("invalid mode")
)

// ParseMode accepts DEMO or DURABLE in any case.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToUpper(strings.TrimSpace(s))) {
	case ModeDemo:
		return ModeDemo, nil
	case ModeDurable:
		return ModeDurable, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidMode, s)
	}
}

// Loader reads the last saved snapshot. It must not fail.
type Loader interface {
	Load(ctx context.Context) domain.Snapshot
}

// Session is the explicit application context. It is safe for concurrent use.
type Session struct {
	mu   sync.RWMutex
	user *domain.User
	mode Mode
	// switching serializes SetMode calls.
	switching sync.Mutex

	store  *ledger.Store
	loader Loader
	saves  jobs.Publisher
	events events.Publisher
	log    zerolog.Logger
	newID  func() string
}

// Option customises a Session.
type Option func(*Session)

// WithIDGenerator overrides user id generation.
func WithIDGenerator(gen func() string) Option {
	return func(s *Session) { s.newID = gen }
}

// New creates a session in DEMO mode with fixture data and no user, and
// registers itself as the store's change listener.
func New(store *ledger.Store, loader Loader, saves jobs.Publisher, publisher events.Publisher, log zerolog.Logger, opts ...Option) *Session {
	if publisher == nil {
		publisher = events.Noop{}
	}
	s := &Session{
		mode:   ModeDemo,
		store:  store,
		loader: loader,
		saves:  saves,
		events: publisher,
		log:    log.With().Str("component", "session").Logger(),
		newID:  func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(s)
	}

	store.Replace(domain.DemoSnapshot(store.Today()), string(ModeDemo))
	store.SetListener(s.onChange)
	return s
}

// Store returns the ledger store.
func (s *Session) Store() *ledger.Store {
	return s.store
}

// User returns the logged-in user.
func (s *Session) User() (domain.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return domain.User{}, false
	}
	return *s.user, true
}

// RequireUser returns the logged-in user or ErrNotLoggedIn.
func (s *Session) RequireUser() (domain.User, error) {
	u, ok := s.User()
	if !ok {
		return domain.User{}, ErrNotLoggedIn
	}
	return u, nil
}

// Mode returns the current persistence mode.
func (s *Session) Mode() Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode
}

// Login accepts any non-empty email with a password of at least
// MinPasswordLength characters.
func (s *Session) Login(ctx context.Context, email, password string) (domain.User, error) {
	email = strings.TrimSpace(email)
	if email == "" || len([]rune(password)) < MinPasswordLength {
		return domain.User{}, ErrInvalidCredentials
	}
	return s.login(ctx, email), nil
}

// DemoLogin switches to DEMO mode and logs in as DemoEmail.
func (s *Session) DemoLogin(ctx context.Context) domain.User {
	_ = s.SetMode(ctx, ModeDemo)
	return s.login(ctx, DemoEmail)
}

func (s *Session) login(ctx context.Context, email string) domain.User {
	u := domain.User{
		ID:          s.newID(),
		Email:       email,
		DisplayName: domain.DisplayNameFromEmail(email),
	}

	s.mu.Lock()
	s.user = &u
	mode := s.mode
	s.mu.Unlock()

	s.log.Info().Str("user_id", u.ID).Str("mode", string(mode)).Msg("User logged in")

	e := events.New(events.KindSessionLogin)
	e.UserID = u.ID
	e.Mode = string(mode)
	s.publish(ctx, e)
	return u
}

// Logout clears the user. Ledger data stays as it is.
func (s *Session) Logout(ctx context.Context) {
	s.mu.Lock()
	u := s.user
	s.user = nil
	s.mu.Unlock()

	if u == nil {
		return
	}

	s.log.Info().Str("user_id", u.ID).Msg("User logged out")

	e := events.New(events.KindSessionLogout)
	e.UserID = u.ID
	s.publish(ctx, e)
}

// SetMode switches persistence mode. Entering DEMO replaces the ledger with
// fixtures; entering DURABLE replaces it with the last saved snapshot.
// Both replace whatever the ledger held. Mutations made while the snapshot
// loads belong to the previous mode.
func (s *Session) SetMode(ctx context.Context, mode Mode) error {
	if mode != ModeDemo && mode != ModeDurable {
		return fmt.Errorf("SetMode: %w: %q", ErrInvalidMode, mode)
	}

	s.switching.Lock()
	defer s.switching.Unlock()

	var snap domain.Snapshot
	switch mode {
	case ModeDurable:
		if s.loader != nil {
			snap = s.loader.Load(ctx)
		}
	default:
		snap = domain.DemoSnapshot(s.store.Today())
	}
	s.store.Replace(snap, string(mode))

	s.mu.Lock()
	s.mode = mode
	s.mu.Unlock()

	s.log.Info().
		Str("mode", string(mode)).
		Int("accounts", len(snap.Accounts)).
		Int("transactions", len(snap.Transactions)).
		Msg("Persistence mode changed")

	e := events.New(events.KindModeChanged)
	e.Mode = string(mode)
	s.publish(ctx, e)
	return nil
}

// ToggleMode flips between DEMO and DURABLE and returns the new mode.
func (s *Session) ToggleMode(ctx context.Context) Mode {
	next := ModeDurable
	if s.Mode() == ModeDurable {
		next = ModeDemo
	}
	_ = s.SetMode(ctx, next)
	return next
}

// onChange is the ledger listener: it queues a save when the change was made
// to DURABLE contents with a user, and publishes an activity event.
func (s *Session) onChange(ctx context.Context, change ledger.Change, snap domain.Snapshot) {
	mode := Mode(change.Tag)
	s.mu.RLock()
	loggedIn := s.user != nil
	s.mu.RUnlock()

	if mode == ModeDurable && loggedIn && s.saves != nil {
		job := &jobs.SaveSnapshotJob{Seq: change.Version, Snapshot: snap}
		if err := s.saves.PublishSaveSnapshot(ctx, job); err != nil {
			s.log.Error().Err(err).Uint64("seq", change.Version).Msg("Failed to enqueue snapshot save")
		}
	}

	e := events.New(events.Kind(change.Kind))
	e.AccountID = change.AccountID
	e.TransactionID = change.TransactionID
	e.Removed = change.Removed
	e.Mode = string(mode)
	s.publish(ctx, e)
}

// publish sends e and logs failures; activity events never fail a request.
func (s *Session) publish(ctx context.Context, e events.Event) {
	if err := s.events.Publish(ctx, e); err != nil {
		s.log.Warn().Err(err).Str("kind", string(e.Kind)).Msg("Failed to publish event")
	}
}
