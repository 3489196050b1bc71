package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
)

// MemoryBus is an in-process Bus used by tests that need the delivery
// contract without a redis server: per-group fan-out,
// asynchronous delivery, and redelivery on handler error.
type MemoryBus struct {
	mu     sync.Mutex
	subs   map[string]map[string]chan []byte // topic -> group -> queue
	wg     sync.WaitGroup
	closed bool
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{subs: make(map[string]map[string]chan []byte)}
}

func (b *MemoryBus) Publish(ctx context.Context, topic string, event any) error {
	raw, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("eventbus: marshal event for %s: %w", topic, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return fmt.Errorf("eventbus: bus closed")
	}
	for _, queue := range b.subs[topic] {
		select {
		case queue <- raw:
		default:
			return fmt.Errorf("eventbus: queue full for %s", topic)
		}
	}
	return nil
}

func (b *MemoryBus) Subscribe(ctx context.Context, topic, group string, h Handler) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return fmt.Errorf("eventbus: bus closed")
	}
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[string]chan []byte)
	}
	queue, ok := b.subs[topic][group]
	if !ok {
		queue = make(chan []byte, 256)
		b.subs[topic][group] = queue
	}
	b.mu.Unlock()

	b.wg.Add(1)
	defer b.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case payload := <-queue:
			if err := h(ctx, payload); err != nil {
				slog.WarnContext(ctx, "event handler failed, requeueing",
					"topic", topic, "group", group, "error", err)
				select {
				case queue <- payload:
				default:
				}
			}
		}
	}
}

// Go runs Subscribe on its own goroutine, matching how the redis bus is
// deployed in the daemons.
func (b *MemoryBus) Go(ctx context.Context, topic, group string, h Handler) {
	go func() { _ = b.Subscribe(ctx, topic, group, h) }()
}

func (b *MemoryBus) Close() error {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	return nil
}
