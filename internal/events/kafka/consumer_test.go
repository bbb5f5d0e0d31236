package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/dvloznov/finsight/internal/events"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

var errDrained = errors.New("no more messages")

type fakeReader struct {
	msgs      []kafka.Message
	committed []int64
	closed    bool
}

func (f *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if err := ctx.Err(); err != nil {
		return kafka.Message{}, err
	}
	if len(f.msgs) == 0 {
		return kafka.Message{}, errDrained
	}
	msg := f.msgs[0]
	f.msgs = f.msgs[1:]
	return msg, nil
}

func (f *fakeReader) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	for _, m := range msgs {
		f.committed = append(f.committed, m.Offset)
	}
	return nil
}

func (f *fakeReader) Close() error {
	f.closed = true
	return nil
}

func message(t *testing.T, offset int64, e events.Event) kafka.Message {
	t.Helper()
	data, err := e.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON: %v", err)
	}
	return kafka.Message{Offset: offset, Value: data}
}

func TestConsumer_Consume(t *testing.T) {
	good := events.New(events.KindTransactionAdded)
	flaky := events.New(events.KindAccountAdded)
	broken := events.New(events.KindAccountDeleted)

	r := &fakeReader{msgs: []kafka.Message{
		message(t, 10, good),
		{Offset: 11, Value: []byte("{")},
		message(t, 12, flaky),
		message(t, 13, broken),
	}}
	c := &Consumer{reader: r, log: zerolog.Nop()}

	calls := map[string]int{}
	handler := func(ctx context.Context, e events.Event) error {
		calls[e.ID]++
		switch {
		case e.ID == flaky.ID && calls[e.ID] < 2:
			return errors.New("transient")
		case e.ID == broken.ID:
			return errors.New("permanent")
		}
		return nil
	}

	err := c.Consume(context.Background(), handler)
	if !errors.Is(err, errDrained) {
		t.Fatalf("Consume error = %v, want errDrained", err)
	}

	if calls[good.ID] != 1 || calls[flaky.ID] != 2 || calls[broken.ID] != maxAttempts {
		t.Errorf("handler calls = %v", calls)
	}

	want := []int64{10, 11, 12, 13}
	if len(r.committed) != len(want) {
		t.Fatalf("committed = %v, want %v", r.committed, want)
	}
	for i := range want {
		if r.committed[i] != want[i] {
			t.Errorf("committed[%d] = %d, want %d", i, r.committed[i], want[i])
		}
	}
}

func TestConsumer_ConsumeCancelled(t *testing.T) {
	c := &Consumer{reader: &fakeReader{}, log: zerolog.Nop()}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := c.Consume(ctx, nil); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestConsumer_Close(t *testing.T) {
	r := &fakeReader{}
	c := &Consumer{reader: r}
	if err := c.Close(); err != nil || !r.closed {
		t.Errorf("Close err=%v closed=%v", err, r.closed)
	}
}
