package progress

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix     = "progress:"
	channelPrefix = "progress:updates:"
)

// redisStore keeps snapshots as JSON values keyed by trace and publishes
// every write on a per-trace pub/sub channel for live subscribers.
type redisStore struct {
	rdb *redis.Client
}

// NewRedisStore connects to redis and verifies the connection.
func NewRedisStore(addr string) (Store, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("progress: redis ping: %w", err)
	}

	return &redisStore{rdb: rdb}, nil
}

func (s *redisStore) Set(ctx context.Context, traceID string, rec Record) error {
	rec, err := normalize(rec)
	if err != nil {
		return err
	}

	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("progress: marshal record: %w", err)
	}

	if err := s.rdb.Set(ctx, keyPrefix+traceID, raw, 0).Err(); err != nil {
		return fmt.Errorf("progress: set %s: %w", traceID, err)
	}

	// Best-effort fan-out; a missed publish only delays live subscribers
	// until the next write, the snapshot itself is already durable.
	if err := s.rdb.Publish(ctx, channelPrefix+traceID, raw).Err(); err != nil {
		slog.WarnContext(ctx, "progress publish failed", "trace_id", traceID, "error", err)
	}
	return nil
}

func (s *redisStore) Get(ctx context.Context, traceID string) (Record, error) {
	raw, err := s.rdb.Get(ctx, keyPrefix+traceID).Result()
	if err == redis.Nil {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("progress: get %s: %w", traceID, err)
	}

	var rec Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return Record{}, fmt.Errorf("progress: decode %s: %w", traceID, err)
	}
	return rec, nil
}

func (s *redisStore) Delete(ctx context.Context, traceID string) error {
	return s.rdb.Del(ctx, keyPrefix+traceID).Err()
}

func (s *redisStore) Subscribe(ctx context.Context, traceID string) (Subscription, error) {
	sub := s.rdb.Subscribe(ctx, channelPrefix+traceID)

	// Confirm the subscription is live before handing it out.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("progress: subscribe %s: %w", traceID, err)
	}

	out := make(chan Record, 16)
	rs := &redisSubscription{sub: sub, out: out}

	go func() {
		defer close(out)
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					return
				}
				var rec Record
				if err := json.Unmarshal([]byte(m.Payload), &rec); err != nil {
					slog.WarnContext(ctx, "bad progress payload", "trace_id", traceID, "error", err)
					continue
				}
				select {
				case out <- rec:
				default:
					// Slow consumer: drop rather than stall the pump; the
					// next write carries the full snapshot anyway.
				}
				if rec.Stage.Terminal() {
					_ = sub.Close()
					return
				}
			}
		}
	}()

	return rs, nil
}

type redisSubscription struct {
	sub *redis.PubSub
	out chan Record
}

func (s *redisSubscription) Updates() <-chan Record { return s.out }

func (s *redisSubscription) Close() error { return s.sub.Close() }
