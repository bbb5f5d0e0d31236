package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/dvloznov/finsight/internal/kv"
)

func TestStore_GetMissing(t *testing.T) {
	s := New()
	_, ok, err := s.Get(context.Background(), "fs_accounts")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("expected missing key to report ok=false")
	}
}

func TestStore_PutOverwrites(t *testing.T) {
	ctx := context.Background()
	s := New()

	if err := s.Put(ctx, "k", []byte("first")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Put(ctx, "k", []byte("second")); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, ok, err := s.Get(ctx, "k")
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if string(got) != "second" {
		t.Errorf("got %q, want %q", got, "second")
	}
}

func TestStore_ValuesAreCopied(t *testing.T) {
	ctx := context.Background()
	s := New()

	in := []byte("abc")
	_ = s.Put(ctx, "k", in)
	in[0] = 'x'

	got, _, _ := s.Get(ctx, "k")
	got[1] = 'y'

	again, _, _ := s.Get(ctx, "k")
	if string(again) != "abc" {
		t.Errorf("stored value was mutated: %q", again)
	}
}

func TestStore_Closed(t *testing.T) {
	ctx := context.Background()
	s := New()
	_ = s.Close()

	if err := s.Put(ctx, "k", nil); !errors.Is(err, kv.ErrClosed) {
		t.Errorf("Put after close: got %v, want ErrClosed", err)
	}
	if _, _, err := s.Get(ctx, "k"); !errors.Is(err, kv.ErrClosed) {
		t.Errorf("Get after close: got %v, want ErrClosed", err)
	}
}
