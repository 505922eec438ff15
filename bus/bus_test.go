package bus

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

func TestPublishRunsHandlersInRegistrationOrder(t *testing.T) {
	b := New(zerolog.Nop())
	var order []int

	b.Subscribe("turn.test", func(ctx context.Context, payload any) error {
		order = append(order, 1)
		return nil
	})
	b.Subscribe("turn.test", func(ctx context.Context, payload any) error {
		order = append(order, 2)
		return nil
	})
	b.Subscribe("turn.test", func(ctx context.Context, payload any) error {
		order = append(order, 3)
		return nil
	})

	b.Publish(context.Background(), "turn.test", nil)

	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Fatalf("expected handlers in registration order, got %v", order)
	}
}

func TestFailingHandlerDoesNotStopSiblings(t *testing.T) {
	b := New(zerolog.Nop())
	var ran []string

	b.Subscribe("turn.test", func(ctx context.Context, payload any) error {
		ran = append(ran, "first")
		return errors.New("boom")
	})
	b.Subscribe("turn.test", func(ctx context.Context, payload any) error {
		ran = append(ran, "second")
		panic("worse")
	})
	b.Subscribe("turn.test", func(ctx context.Context, payload any) error {
		ran = append(ran, "third")
		return nil
	})

	b.Publish(context.Background(), "turn.test", nil)

	if len(ran) != 3 {
		t.Fatalf("expected all 3 handlers to run, got %v", ran)
	}
}

func TestUnsubscribeRemovesHandler(t *testing.T) {
	b := New(zerolog.Nop())
	calls := 0

	unsub := b.Subscribe("turn.test", func(ctx context.Context, payload any) error {
		calls++
		return nil
	})

	b.Publish(context.Background(), "turn.test", nil)
	unsub()
	unsub() // second call is a no-op
	b.Publish(context.Background(), "turn.test", nil)

	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestClearRemovesAllSubscriptions(t *testing.T) {
	b := New(zerolog.Nop())
	calls := 0

	b.Subscribe("a", func(ctx context.Context, payload any) error { calls++; return nil })
	b.Subscribe("b", func(ctx context.Context, payload any) error { calls++; return nil })
	b.Clear()

	b.Publish(context.Background(), "a", nil)
	b.Publish(context.Background(), "b", nil)

	if calls != 0 {
		t.Fatalf("expected no calls after Clear, got %d", calls)
	}
}

func TestPublishDeliversPayload(t *testing.T) {
	b := New(zerolog.Nop())
	var got any

	b.Subscribe("turn.test", func(ctx context.Context, payload any) error {
		got = payload
		return nil
	})

	b.Publish(context.Background(), "turn.test", 42)

	if got != 42 {
		t.Fatalf("expected payload 42, got %v", got)
	}
}
