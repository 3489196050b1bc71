package worker

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/roadmapai/backend/internal/pathgen"
	"github.com/roadmapai/backend/internal/progress"
)

func TestReporterKeepsLatestStage(t *testing.T) {
	ctx := context.Background()
	store := progress.NewMemoryStore()
	traceID := uuid.NewString()
	rep := newReporter(store, traceID)

	rep.update(ctx, pathgen.StageResearching, 30, "mapping")
	rep.update(ctx, pathgen.StageAnalyzing, 10, "stale write")

	rec, err := store.Get(ctx, traceID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.Stage != pathgen.StageResearching {
		t.Fatalf("stale write moved the stage back to %s", rec.Stage)
	}
	if rec.Progress != 30 {
		t.Fatalf("stale write moved progress back to %d", rec.Progress)
	}
}

func TestReporterFloorsProgress(t *testing.T) {
	ctx := context.Background()
	store := progress.NewMemoryStore()
	traceID := uuid.NewString()
	rep := newReporter(store, traceID)

	rep.update(ctx, pathgen.StageGenerating, 60, "structure ready")
	rep.update(ctx, pathgen.StageGenerating, 40, "late lower value")

	rec, err := store.Get(ctx, traceID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.Progress != 60 {
		t.Fatalf("progress = %d, want floor at 60", rec.Progress)
	}
}

func TestReporterFailKeepsLastProgress(t *testing.T) {
	ctx := context.Background()
	store := progress.NewMemoryStore()
	traceID := uuid.NewString()
	rep := newReporter(store, traceID)

	rep.update(ctx, pathgen.StageEnriching, 75, "finding resources")
	rep.fail(ctx, "generation blew up")

	rec, err := store.Get(ctx, traceID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.Stage != pathgen.StageError {
		t.Fatalf("stage = %s, want error", rec.Stage)
	}
	if rec.Progress != 75 {
		t.Fatalf("progress = %d, want 75", rec.Progress)
	}
}
