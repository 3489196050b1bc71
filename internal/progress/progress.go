// Package progress holds the per-trace progress snapshot: the latest stage,
// message, and percentage for a generation request. The store keeps one
// current record per trace (a snapshot, not a log) and supports live
// subscription to subsequent writes.
package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/roadmapai/backend/internal/pathgen"
)

// ErrNotFound is returned by Get when no snapshot exists for a trace.
var ErrNotFound = errors.New("progress: trace not found")

// Record is the current snapshot for one trace.
type Record struct {
	Stage     pathgen.Stage   `json:"stage"`
	Message   string          `json:"message"`
	Progress  int             `json:"progress"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// Store is the progress snapshot store. Set replaces the current snapshot
// for a trace; writes carry no cross-writer ordering guarantee (the worker
// is the single writer for a trace's intermediate stages).
type Store interface {
	Set(ctx context.Context, traceID string, rec Record) error
	Get(ctx context.Context, traceID string) (Record, error)
	Delete(ctx context.Context, traceID string) error
	// Subscribe delivers every Set for the trace after the call. The
	// updates channel is closed when the trace reaches a terminal stage,
	// the subscription is closed, or ctx is cancelled.
	Subscribe(ctx context.Context, traceID string) (Subscription, error)
}

// Subscription is a live attachment to one trace's snapshot writes.
type Subscription interface {
	Updates() <-chan Record
	Close() error
}

// normalize applies the store's boundary policy: the stage must be one of
// the enumerated set, progress is clamped to [0,100], and a missing
// timestamp is filled with the write time.
func normalize(rec Record) (Record, error) {
	if !rec.Stage.Valid() {
		return Record{}, fmt.Errorf("progress: unknown stage %q", rec.Stage)
	}
	rec.Progress = pathgen.ClampProgress(rec.Progress)
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	return rec, nil
}
