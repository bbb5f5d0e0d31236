package events

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Handler processes one received event. A non-nil error asks the consumer to
// redeliver it.
type Handler func(ctx context.Context, e Event) error

// Consumer receives events from a broker until ctx is cancelled.
type Consumer interface {
	Consume(ctx context.Context, handler Handler) error
	Close() error
}

// KindCount is the number of events seen for one kind.
type KindCount struct {
	Kind  Kind `json:"kind"`
	Count int  `json:"count"`
}

// Tally counts received events per kind. It is safe for concurrent use and
// its Handle method satisfies Handler.
type Tally struct {
	mu       sync.Mutex
	counts   map[Kind]int
	lastSeen time.Time
	seen     map[string]struct{}
}

func NewTally() *Tally {
	return &Tally{
		counts: make(map[Kind]int),
		seen:   make(map[string]struct{}),
	}
}

// Handle records e. Redelivered events with an id already seen are ignored.
func (t *Tally) Handle(ctx context.Context, e Event) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if e.ID != "" {
		if _, dup := t.seen[e.ID]; dup {
			return nil
		}
		t.seen[e.ID] = struct{}{}
	}
	t.counts[e.Kind]++
	if e.OccurredAt.After(t.lastSeen) {
		t.lastSeen = e.OccurredAt
	}
	return nil
}

// Counts returns per-kind totals ordered by kind.
func (t *Tally) Counts() []KindCount {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]KindCount, 0, len(t.counts))
	for k, n := range t.counts {
		out = append(out, KindCount{Kind: k, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Kind < out[j].Kind })
	return out
}

// Total is the number of distinct events handled.
func (t *Tally) Total() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	total := 0
	for _, n := range t.counts {
		total += n
	}
	return total
}

// LastSeen is the latest OccurredAt among handled events.
func (t *Tally) LastSeen() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastSeen
}
