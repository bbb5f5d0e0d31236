// Package events carries activity notifications about ledger and session
// changes through an external broker.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Kind names what happened.
type Kind string

const (
	KindTransactionAdded Kind = "transaction.added"
	KindAccountAdded     Kind = "account.added"
	KindAccountDeleted   Kind = "account.deleted"
	KindModeChanged      Kind = "mode.changed"
	KindSessionLogin     Kind = "session.login"
	KindSessionLogout    Kind = "session.logout"
)

// Event is one activity notification.
type Event struct {
	ID            string    `json:"id"`
	Kind          Kind      `json:"kind"`
	OccurredAt    time.Time `json:"occurredAt"`
	AccountID     string    `json:"accountId,omitempty"`
	TransactionID string    `json:"transactionId,omitempty"`
	Mode          string    `json:"mode,omitempty"`
	UserID        string    `json:"userId,omitempty"`
	// Removed counts transactions dropped by a cascading account delete.
	Removed int `json:"removed,omitempty"`
}

// New creates an event of the given kind with a fresh id and timestamp.
func New(kind Kind) Event {
	return Event{
		ID:         uuid.New().String(),
		Kind:       kind,
		OccurredAt: time.Now().UTC(),
	}
}

// ToJSON converts the event to JSON bytes
func (e Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// FromJSON decodes an event.
func FromJSON(data []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return Event{}, err
	}
	return e, nil
}

// Publisher sends events to a broker.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// Noop discards every event.
type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }
func (Noop) Close() error                        { return nil }

var _ Publisher = Noop{}
