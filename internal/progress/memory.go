package progress

import (
	"context"
	"sync"
)

// MemoryStore is an in-process Store used by tests that need the progress
// contract without a redis server. It mirrors the redis implementation's observable
// behaviour: snapshot replacement, clamping, and terminal-closed
// subscriptions.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]Record
	subs    map[string][]*memorySubscription
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]Record),
		subs:    make(map[string][]*memorySubscription),
	}
}

func (s *MemoryStore) Set(ctx context.Context, traceID string, rec Record) error {
	rec, err := normalize(rec)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.records[traceID] = rec
	subs := append([]*memorySubscription(nil), s.subs[traceID]...)
	if rec.Stage.Terminal() {
		delete(s.subs, traceID)
	}
	s.mu.Unlock()

	for _, sub := range subs {
		sub.deliver(rec)
		if rec.Stage.Terminal() {
			sub.closeOnce()
		}
	}
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, traceID string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[traceID]
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

func (s *MemoryStore) Delete(ctx context.Context, traceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, traceID)
	return nil
}

func (s *MemoryStore) Subscribe(ctx context.Context, traceID string) (Subscription, error) {
	sub := &memorySubscription{
		store:   s,
		traceID: traceID,
		out:     make(chan Record, 16),
	}

	s.mu.Lock()
	s.subs[traceID] = append(s.subs[traceID], sub)
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		_ = sub.Close()
	}()

	return sub, nil
}

type memorySubscription struct {
	store   *MemoryStore
	traceID string
	out     chan Record

	mu     sync.Mutex
	closed bool
}

func (s *memorySubscription) Updates() <-chan Record { return s.out }

func (s *memorySubscription) deliver(rec Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.out <- rec:
	default:
	}
}

func (s *memorySubscription) closeOnce() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.out)
}

func (s *memorySubscription) Close() error {
	s.store.mu.Lock()
	subs := s.store.subs[s.traceID]
	for i, cand := range subs {
		if cand == s {
			s.store.subs[s.traceID] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	s.store.mu.Unlock()

	s.closeOnce()
	return nil
}
