package worker

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/roadmapai/backend/internal/eventbus"
	"github.com/roadmapai/backend/internal/pathgen"
	"github.com/roadmapai/backend/internal/progress"
)

// capturingBus records published events synchronously.
type capturingBus struct {
	mu     sync.Mutex
	events []capturedEvent
}

type capturedEvent struct {
	topic   string
	payload []byte
}

func (b *capturingBus) Publish(ctx context.Context, topic string, event any) error {
	raw, err := json.Marshal(event)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, capturedEvent{topic: topic, payload: raw})
	return nil
}

func (b *capturingBus) Subscribe(ctx context.Context, topic, group string, h eventbus.Handler) error {
	<-ctx.Done()
	return ctx.Err()
}

func (b *capturingBus) Close() error { return nil }

func (b *capturingBus) captured() []capturedEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]capturedEvent(nil), b.events...)
}

func workRequest(traceID string) pathgen.WorkRequest {
	return pathgen.WorkRequest{
		UserID:     uuid.NewString(),
		Topic:      "Rust",
		Background: "knows C++",
		GoalLevel:  pathgen.GoalIntermediate,
		Preferences: pathgen.Preferences{
			IncludeVideos:   true,
			IncludeArticles: true,
		},
		TraceID:     traceID,
		RequestedAt: time.Now().UTC(),
	}
}

func TestHandleEmitsSingleSuccessOutcome(t *testing.T) {
	ctx := context.Background()
	bus := &capturingBus{}
	store := progress.NewMemoryStore()
	gen := NewGenerator(bus, store, 0)

	traceID := uuid.NewString()
	req := workRequest(traceID)
	payload, _ := json.Marshal(req)

	if err := gen.Handle(ctx, payload); err != nil {
		t.Fatalf("handle: %v", err)
	}

	events := bus.captured()
	if len(events) != 1 {
		t.Fatalf("want exactly one terminal event, got %d", len(events))
	}
	if events[0].topic != pathgen.TopicPathGenerated {
		t.Fatalf("terminal topic = %q", events[0].topic)
	}

	var outcome pathgen.WorkOutcome
	if err := json.Unmarshal(events[0].payload, &outcome); err != nil {
		t.Fatalf("decode outcome: %v", err)
	}
	if !outcome.WellFormed() || outcome.Kind != pathgen.OutcomeSucceeded {
		t.Fatalf("bad outcome: %+v", outcome)
	}
	if outcome.TraceID != traceID || outcome.UserID != req.UserID {
		t.Fatalf("outcome identity mismatch: %+v", outcome)
	}

	var path pathgen.LearningPath
	if err := json.Unmarshal(outcome.Result, &path); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if len(path.Curriculum.Modules) < 4 {
		t.Fatalf("curriculum too small: %d modules", len(path.Curriculum.Modules))
	}
}

func TestHandleDrivesStagesToCompleted(t *testing.T) {
	ctx := context.Background()
	bus := &capturingBus{}
	store := progress.NewMemoryStore()
	gen := NewGenerator(bus, store, 0)

	traceID := uuid.NewString()
	sub, err := store.Subscribe(ctx, traceID)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	payload, _ := json.Marshal(workRequest(traceID))
	if err := gen.Handle(ctx, payload); err != nil {
		t.Fatalf("handle: %v", err)
	}

	var stages []pathgen.Stage
	lastPct := -1
	for rec := range sub.Updates() {
		stages = append(stages, rec.Stage)
		if rec.Progress < lastPct {
			t.Fatalf("progress went backwards: %d after %d (stage %s)", rec.Progress, lastPct, rec.Stage)
		}
		lastPct = rec.Progress
	}

	if len(stages) == 0 || stages[len(stages)-1] != pathgen.StageCompleted {
		t.Fatalf("stages did not end at completed: %v", stages)
	}
	for i := 1; i < len(stages); i++ {
		if stages[i] != stages[i-1] && !stages[i-1].Before(stages[i]) {
			t.Fatalf("stage order violated: %s -> %s", stages[i-1], stages[i])
		}
	}

	final, err := store.Get(ctx, traceID)
	if err != nil {
		t.Fatalf("get final: %v", err)
	}
	if final.Progress != 100 {
		t.Fatalf("final progress = %d, want 100", final.Progress)
	}
}

func TestHandleDropsMalformedRequests(t *testing.T) {
	ctx := context.Background()
	bus := &capturingBus{}
	gen := NewGenerator(bus, progress.NewMemoryStore(), 0)

	if err := gen.Handle(ctx, []byte(`{oops`)); err != nil {
		t.Fatalf("malformed request must be acked: %v", err)
	}
	if err := gen.Handle(ctx, []byte(`{"topic":"Rust"}`)); err != nil {
		t.Fatalf("incomplete request must be acked: %v", err)
	}
	if got := bus.captured(); len(got) != 0 {
		t.Fatalf("dropped requests must emit nothing, got %d events", len(got))
	}
}

func TestBuildResourcesHonoursPreferences(t *testing.T) {
	m := pathgen.Module{Title: "Ownership"}

	all := buildResources(m, pathgen.Preferences{IncludeVideos: true, IncludeArticles: true, IncludeDocs: true})
	if len(all) != 3 {
		t.Fatalf("want 3 resources, got %d", len(all))
	}

	none := buildResources(m, pathgen.Preferences{})
	if len(none) != 0 {
		t.Fatalf("want no resources, got %d", len(none))
	}

	videos := buildResources(m, pathgen.Preferences{IncludeVideos: true})
	if len(videos) != 1 || videos[0].Type != "video" {
		t.Fatalf("unexpected resources: %+v", videos)
	}
}
