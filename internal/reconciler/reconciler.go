// Package reconciler consumes the worker's terminal events and makes the
// durable store consistent with them: exactly one record per succeeded
// trace, a logged failure (no record) per failed trace, regardless of
// duplicate or out-of-order delivery.
package reconciler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"

	"github.com/roadmapai/backend/internal/eventbus"
	"github.com/roadmapai/backend/internal/pathgen"
	"github.com/roadmapai/backend/internal/store/sqlite"
)

// Group is the consumer group name; every reconciler replica shares it.
const Group = "reconciler"

// Reconciler is the single writer of record for completion.
type Reconciler struct {
	bus   eventbus.Bus
	store *sqlite.Store
}

func New(bus eventbus.Bus, store *sqlite.Store) *Reconciler {
	return &Reconciler{bus: bus, store: store}
}

// Run subscribes to both terminal topics and blocks until ctx is cancelled.
// A dropped subscription reconnects with exponential backoff.
func (r *Reconciler) Run(ctx context.Context) error {
	errCh := make(chan error, 2)
	for _, topic := range []string{pathgen.TopicPathGenerated, pathgen.TopicPathFailed} {
		topic := topic
		go func() {
			errCh <- r.consumeLoop(ctx, topic)
		}()
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

func (r *Reconciler) consumeLoop(ctx context.Context, topic string) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Second

	for {
		err := r.bus.Subscribe(ctx, topic, Group, r.HandleOutcome)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		slog.WarnContext(ctx, "terminal subscription dropped, reconnecting", "topic", topic, "error", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(bo.NextBackOff()):
		}
	}
}

// HandleOutcome processes one terminal event. Returning nil acknowledges the
// delivery; only transient store failures propagate (and trigger
// redelivery). A malformed payload is logged and acknowledged; redelivering
// it forever would change nothing.
func (r *Reconciler) HandleOutcome(ctx context.Context, payload []byte) error {
	var outcome pathgen.WorkOutcome
	if err := json.Unmarshal(payload, &outcome); err != nil {
		slog.WarnContext(ctx, "malformed terminal event, dropping", "error", err)
		return nil
	}
	if !outcome.WellFormed() {
		slog.WarnContext(ctx, "unrecognized terminal event shape, dropping",
			"kind", outcome.Kind, "trace_id", outcome.TraceID)
		return nil
	}

	switch outcome.Kind {
	case pathgen.OutcomeSucceeded:
		return r.reconcileSuccess(ctx, outcome)
	case pathgen.OutcomeFailed:
		return r.reconcileFailure(ctx, outcome)
	}
	return nil
}

func (r *Reconciler) reconcileSuccess(ctx context.Context, outcome pathgen.WorkOutcome) error {
	now := time.Now().UTC()
	rec := &sqlite.PathRecord{
		ID:        uuid.NewString(),
		UserID:    outcome.UserID,
		TraceID:   outcome.TraceID,
		Topic:     outcome.Topic,
		GoalLevel: goalLevelFromResult(outcome.Result),
		Status:    pathgen.StatusCompleted,
		Content:   outcome.Result,
		CreatedAt: now,
		UpdatedAt: now,
	}

	first, err := r.store.RecordOutcome(ctx, outcome.TraceID, outcome.Kind, rec)
	if err != nil {
		return fmt.Errorf("reconciler: persist success for %q: %w", outcome.TraceID, err)
	}
	if !first {
		slog.InfoContext(ctx, "terminal event for already-settled trace, ignoring",
			"trace_id", outcome.TraceID, "kind", outcome.Kind)
		return nil
	}

	slog.InfoContext(ctx, "learning path persisted",
		"trace_id", outcome.TraceID, "user_id", outcome.UserID, "topic", outcome.Topic, "path_id", rec.ID)
	return nil
}

// reconcileFailure records the terminal guard and logs the failure with full
// context. No learning_paths row is written: callers polling the progress
// store see the error stage, but there is no durable row to retrieve later.
func (r *Reconciler) reconcileFailure(ctx context.Context, outcome pathgen.WorkOutcome) error {
	first, err := r.store.RecordOutcome(ctx, outcome.TraceID, outcome.Kind, nil)
	if err != nil {
		return fmt.Errorf("reconciler: record failure for %q: %w", outcome.TraceID, err)
	}
	if !first {
		slog.InfoContext(ctx, "terminal event for already-settled trace, ignoring",
			"trace_id", outcome.TraceID, "kind", outcome.Kind)
		return nil
	}

	slog.ErrorContext(ctx, "learning path generation failed",
		"trace_id", outcome.TraceID, "user_id", outcome.UserID,
		"topic", outcome.Topic, "error", outcome.Error)
	return nil
}

// goalLevelFromResult pulls the goal level out of the result payload for the
// record's own column; absent or unreadable payloads leave it empty.
func goalLevelFromResult(result json.RawMessage) string {
	var partial struct {
		GoalLevel string `json:"goalLevel"`
	}
	if err := json.Unmarshal(result, &partial); err != nil {
		return ""
	}
	return partial.GoalLevel
}
