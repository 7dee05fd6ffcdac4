package engine

import (
	"context"
	"testing"
	"time"

	"partyboard/core"
)

func TestEventBusSync(t *testing.T) {
	bus := NewEventBus(DispatchSync)
	count := 0
	bus.Subscribe(core.EventScoreCreated, func(ctx context.Context, e core.Event) { count++ })
	bus.Publish(context.Background(), core.NewSubmissionEvent("u", core.Created(1)))
	if count != 1 {
		t.Fatalf("want 1 got %d", count)
	}
}

func TestEventBusAsync(t *testing.T) {
	bus := NewEventBus(DispatchAsync)
	defer bus.Close()
	ch := make(chan struct{})
	bus.Subscribe(core.EventScoreCreated, func(ctx context.Context, e core.Event) { close(ch) })
	bus.Publish(context.Background(), core.NewSubmissionEvent("u", core.Created(1)))
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("timeout")
	}
}

func TestEventBusSubscribeAllAndUnsubscribe(t *testing.T) {
	bus := NewEventBus(DispatchSync)
	var seen []core.EventType
	unsub := bus.SubscribeAll(func(ctx context.Context, e core.Event) { seen = append(seen, e.Type) })
	bus.Publish(context.Background(), core.NewSubmissionEvent("u", core.Created(1)))
	bus.Publish(context.Background(), core.NewSubmissionEvent("u", core.Rejected(1, 5)))
	unsub()
	bus.Publish(context.Background(), core.NewLeader("u", 5))
	if len(seen) != 2 || seen[0] != core.EventScoreCreated || seen[1] != core.EventScoreRejected {
		t.Fatalf("unexpected events: %v", seen)
	}
}
