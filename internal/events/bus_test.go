package events

import (
	"context"
	"testing"
	"time"
)

func receive(t *testing.T, ch <-chan Signal) Signal {
	t.Helper()
	select {
	case sig, ok := <-ch:
		if !ok {
			t.Fatal("subscription closed unexpectedly")
		}
		return sig
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for signal")
	}
	return Signal{}
}

func TestMemoryBusFansOutToEverySubscriber(t *testing.T) {
	bus := NewMemoryBus()
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	records, _ := bus.Subscribe(ctx)
	analytics, _ := bus.Subscribe(ctx)

	if err := bus.Publish(ctx, Signal{Reason: ReasonSubmission, AttemptID: "a1"}); err != nil {
		t.Fatalf("Publish error: %v", err)
	}

	for _, ch := range []<-chan Signal{records, analytics} {
		sig := receive(t, ch)
		if sig.Reason != ReasonSubmission || sig.AttemptID != "a1" {
			t.Errorf("unexpected signal %+v", sig)
		}
		if sig.At.IsZero() {
			t.Error("signal timestamp must be set")
		}
	}
}

func TestMemoryBusPublishNeverBlocks(t *testing.T) {
	bus := NewMemoryBus()
	defer bus.Close()

	ch, _ := bus.Subscribe(context.Background())

	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer*10; i++ {
			bus.Publish(context.Background(), Signal{Reason: ReasonPoll})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a slow subscriber")
	}
	if got := len(ch); got != subscriberBuffer {
		t.Errorf("buffered signals = %d, want %d", got, subscriberBuffer)
	}
}

func TestMemoryBusUnsubscribeOnContextDone(t *testing.T) {
	bus := NewMemoryBus()
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	ch, _ := bus.Subscribe(ctx)
	cancel()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatal("subscription not closed after context cancel")
	}
}

func TestMemoryBusClose(t *testing.T) {
	bus := NewMemoryBus()
	ch, _ := bus.Subscribe(context.Background())
	bus.Close()
	if _, ok := <-ch; ok {
		t.Fatal("expected channel closed by Close")
	}

	late, _ := bus.Subscribe(context.Background())
	if _, ok := <-late; ok {
		t.Fatal("subscribing to a closed bus must return a closed channel")
	}
	if err := bus.Close(); err != nil {
		t.Fatalf("second Close error: %v", err)
	}
}
