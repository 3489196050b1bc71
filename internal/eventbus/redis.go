package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const payloadField = "payload"

// redisBus implements Bus on Redis Streams. Each topic is a stream; each
// subscriber group is a consumer group, which gives at-least-once delivery
// with explicit acks and pending-entry recovery after a crash.
type redisBus struct {
	rdb *redis.Client
}

// NewRedisBus connects to redis and verifies the connection.
func NewRedisBus(addr string) (Bus, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("eventbus: redis ping: %w", err)
	}

	return &redisBus{rdb: rdb}, nil
}

func (b *redisBus) Publish(ctx context.Context, topic string, event any) error {
	raw, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("eventbus: marshal event for %s: %w", topic, err)
	}

	if err := b.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: topic,
		Values: map[string]interface{}{payloadField: raw},
	}).Err(); err != nil {
		return fmt.Errorf("eventbus: publish to %s: %w", topic, err)
	}
	return nil
}

func (b *redisBus) Subscribe(ctx context.Context, topic, group string, h Handler) error {
	if err := b.ensureGroup(ctx, topic, group); err != nil {
		return err
	}

	consumer := consumerName()

	// First drain this consumer's pending entries (deliveries that were
	// read but never acked before a previous crash), then follow new ones.
	if err := b.consume(ctx, topic, group, consumer, "0", h); err != nil {
		return err
	}

	for {
		if err := b.consume(ctx, topic, group, consumer, ">", h); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// consume runs one XREADGROUP round and feeds every message to the handler.
// Messages are acked only when the handler returns nil.
func (b *redisBus) consume(ctx context.Context, topic, group, consumer, cursor string, h Handler) error {
	streams, err := b.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    group,
		Consumer: consumer,
		Streams:  []string{topic, cursor},
		Count:    16,
		Block:    5 * time.Second,
	}).Result()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("eventbus: read %s: %w", topic, err)
	}

	for _, stream := range streams {
		for _, msg := range stream.Messages {
			payload, _ := msg.Values[payloadField].(string)
			if err := h(ctx, []byte(payload)); err != nil {
				slog.WarnContext(ctx, "event handler failed, leaving pending",
					"topic", topic, "group", group, "id", msg.ID, "error", err)
				continue
			}
			if err := b.rdb.XAck(ctx, topic, group, msg.ID).Err(); err != nil {
				slog.WarnContext(ctx, "event ack failed",
					"topic", topic, "group", group, "id", msg.ID, "error", err)
			}
		}
	}
	return nil
}

func (b *redisBus) ensureGroup(ctx context.Context, topic, group string) error {
	err := b.rdb.XGroupCreateMkStream(ctx, topic, group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("eventbus: create group %s on %s: %w", group, topic, err)
	}
	return nil
}

func (b *redisBus) Close() error {
	return b.rdb.Close()
}

func consumerName() string {
	host, err := os.Hostname()
	if err != nil {
		host = "consumer"
	}
	return host + "-" + uuid.NewString()[:8]
}
