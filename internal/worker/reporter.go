package worker

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/roadmapai/backend/internal/pathgen"
	"github.com/roadmapai/backend/internal/progress"
)

// reporter writes stage progress for one trace. Percentages are clamped and
// never move backwards, and a late write cannot move the trace to an earlier
// stage, so snapshot readers always see a monotonic pipeline regardless of
// how the stages interleave their updates.
type reporter struct {
	store     progress.Store
	traceID   string
	lastPct   int
	lastStage pathgen.Stage
}

func newReporter(store progress.Store, traceID string) *reporter {
	return &reporter{store: store, traceID: traceID}
}

func (r *reporter) update(ctx context.Context, stage pathgen.Stage, pct int, msg string) {
	r.updateWithData(ctx, stage, pct, msg, nil)
}

func (r *reporter) updateWithData(ctx context.Context, stage pathgen.Stage, pct int, msg string, data json.RawMessage) {
	pct = pathgen.ClampProgress(pct)
	if pct < r.lastPct {
		pct = r.lastPct
	}
	r.lastPct = pct

	if stage.Before(r.lastStage) {
		stage = r.lastStage
	}
	r.lastStage = stage

	err := r.store.Set(ctx, r.traceID, progress.Record{
		Stage:    stage,
		Message:  msg,
		Progress: pct,
		Data:     data,
	})
	if err != nil {
		// Progress is advisory; generation carries on without it.
		slog.WarnContext(ctx, "progress update failed",
			"trace_id", r.traceID, "stage", stage, "error", err)
	}
}

func (r *reporter) fail(ctx context.Context, msg string) {
	err := r.store.Set(ctx, r.traceID, progress.Record{
		Stage:    pathgen.StageError,
		Message:  msg,
		Progress: r.lastPct,
	})
	if err != nil {
		slog.WarnContext(ctx, "error progress update failed", "trace_id", r.traceID, "error", err)
	}
}
