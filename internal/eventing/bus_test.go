package eventing_test

import (
	"context"
	"errors"
	"testing"

	"telemetry-store/internal/eventing"
)

type recordsWritten struct {
	Count int
}

type unrelated struct{}

func TestBus_PublishReachesSubscribers(t *testing.T) {
	bus := eventing.NewBus()
	var got []int
	eventing.Subscribe[recordsWritten](bus, func(_ context.Context, event any) error {
		got = append(got, event.(recordsWritten).Count)
		return nil
	})
	eventing.Subscribe[recordsWritten](bus, func(_ context.Context, event any) error {
		got = append(got, event.(recordsWritten).Count*10)
		return nil
	})

	if err := bus.Publish(context.Background(), recordsWritten{Count: 3}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(got) != 2 || got[0] != 3 || got[1] != 30 {
		t.Fatalf("handlers not all invoked: %v", got)
	}
}

func TestBus_TypeIsolation(t *testing.T) {
	bus := eventing.NewBus()
	var calls int
	eventing.Subscribe[recordsWritten](bus, func(_ context.Context, _ any) error {
		calls++
		return nil
	})

	if err := bus.Publish(context.Background(), unrelated{}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if calls != 0 {
		t.Fatalf("handler for a different event type was invoked")
	}
}

func TestBus_FirstErrorWinsButAllRun(t *testing.T) {
	bus := eventing.NewBus()
	first := errors.New("first")
	var ran int
	eventing.Subscribe[recordsWritten](bus, func(_ context.Context, _ any) error {
		ran++
		return first
	})
	eventing.Subscribe[recordsWritten](bus, func(_ context.Context, _ any) error {
		ran++
		return errors.New("second")
	})

	err := bus.Publish(context.Background(), recordsWritten{})
	if !errors.Is(err, first) {
		t.Fatalf("expected first handler error, got %v", err)
	}
	if ran != 2 {
		t.Fatalf("a handler error must not stop later handlers, ran %d", ran)
	}
}

func TestBus_NilEventRejected(t *testing.T) {
	bus := eventing.NewBus()
	if err := bus.Publish(context.Background(), nil); !errors.Is(err, eventing.ErrNilEvent) {
		t.Fatalf("expected ErrNilEvent, got %v", err)
	}
}

func TestBus_PointerEventsShareSubscription(t *testing.T) {
	bus := eventing.NewBus()
	var calls int
	eventing.Subscribe[recordsWritten](bus, func(_ context.Context, _ any) error {
		calls++
		return nil
	})

	if err := bus.Publish(context.Background(), &recordsWritten{Count: 1}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if calls != 1 {
		t.Fatalf("pointer and value events should hit the same handlers, got %d", calls)
	}
}

func TestNewEventID_Unique(t *testing.T) {
	a, b := eventing.NewEventID(), eventing.NewEventID()
	if a == "" || a == b {
		t.Fatalf("event ids must be non-empty and unique: %q %q", a, b)
	}
}
