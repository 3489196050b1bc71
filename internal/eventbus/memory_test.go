package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type testEvent struct {
	TraceID string `json:"traceId"`
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting: %s", msg)
}

func TestMemoryBusDeliversToEachGroup(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bus := NewMemoryBus()

	var a, b atomic.Int32
	bus.Go(ctx, "topic", "group-a", func(ctx context.Context, payload []byte) error {
		a.Add(1)
		return nil
	})
	bus.Go(ctx, "topic", "group-b", func(ctx context.Context, payload []byte) error {
		b.Add(1)
		return nil
	})

	if err := bus.Publish(ctx, "topic", testEvent{TraceID: "t1"}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	waitFor(t, func() bool { return a.Load() == 1 && b.Load() == 1 }, "both groups delivered")
}

func TestMemoryBusPayloadRoundTrip(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bus := NewMemoryBus()

	var got atomic.Value
	bus.Go(ctx, "topic", "g", func(ctx context.Context, payload []byte) error {
		var ev testEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			return err
		}
		got.Store(ev.TraceID)
		return nil
	})

	if err := bus.Publish(ctx, "topic", testEvent{TraceID: "trace-42"}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	waitFor(t, func() bool { v, _ := got.Load().(string); return v == "trace-42" }, "payload decoded")
}

func TestMemoryBusRedeliversOnHandlerError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bus := NewMemoryBus()

	var attempts atomic.Int32
	bus.Go(ctx, "topic", "g", func(ctx context.Context, payload []byte) error {
		if attempts.Add(1) == 1 {
			return errors.New("transient")
		}
		return nil
	})

	if err := bus.Publish(ctx, "topic", testEvent{TraceID: "t1"}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	waitFor(t, func() bool { return attempts.Load() >= 2 }, "message redelivered after error")
}

func TestMemoryBusPublishAfterClose(t *testing.T) {
	bus := NewMemoryBus()
	_ = bus.Close()
	if err := bus.Publish(context.Background(), "topic", testEvent{}); err == nil {
		t.Fatalf("publish after close should fail")
	}
}
