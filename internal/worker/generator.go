// Package worker is a development stand-in for the external generation
// worker: it consumes work-requested events, advances the stage machine
// with progress writes, and publishes exactly one terminal event per trace.
// Curricula are produced from deterministic templates; real content
// generation belongs to the external system this package substitutes for.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/roadmapai/backend/internal/eventbus"
	"github.com/roadmapai/backend/internal/pathgen"
	"github.com/roadmapai/backend/internal/progress"
)

// Group is the consumer group shared by worker replicas.
const Group = "workers"

// Generator turns work requests into learning paths.
type Generator struct {
	bus      eventbus.Bus
	progress progress.Store
	// stageDelay spaces the stage transitions out so streamed progress is
	// observable during local development. Zero means no pacing.
	stageDelay time.Duration
}

func NewGenerator(bus eventbus.Bus, prog progress.Store, stageDelay time.Duration) *Generator {
	return &Generator{bus: bus, progress: prog, stageDelay: stageDelay}
}

// Handle processes one work request. Domain failures end the trace with a
// failed terminal event and acknowledge the delivery; only a failed terminal
// publish propagates, since without a terminal event the trace would be
// stuck forever.
func (g *Generator) Handle(ctx context.Context, payload []byte) error {
	var req pathgen.WorkRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		slog.WarnContext(ctx, "malformed work request, dropping", "error", err)
		return nil
	}
	if req.TraceID == "" || req.UserID == "" || req.Topic == "" {
		slog.WarnContext(ctx, "incomplete work request, dropping", "trace_id", req.TraceID)
		return nil
	}

	slog.InfoContext(ctx, "generation started",
		"trace_id", req.TraceID, "user_id", req.UserID, "topic", req.Topic, "goal_level", req.GoalLevel)

	rep := newReporter(g.progress, req.TraceID)

	path, err := g.generate(ctx, req, rep)
	if err != nil {
		rep.fail(ctx, fmt.Sprintf("Failed to generate learning path: %v", err))
		return g.publishOutcome(ctx, pathgen.TopicPathFailed, pathgen.WorkOutcome{
			Kind:    pathgen.OutcomeFailed,
			UserID:  req.UserID,
			Topic:   req.Topic,
			TraceID: req.TraceID,
			Error:   err.Error(),
		})
	}

	result, err := json.Marshal(path)
	if err != nil {
		rep.fail(ctx, "Failed to encode learning path")
		return g.publishOutcome(ctx, pathgen.TopicPathFailed, pathgen.WorkOutcome{
			Kind:    pathgen.OutcomeFailed,
			UserID:  req.UserID,
			Topic:   req.Topic,
			TraceID: req.TraceID,
			Error:   fmt.Sprintf("encode result: %v", err),
		})
	}

	rep.updateWithData(ctx, pathgen.StageCompleted, 100,
		fmt.Sprintf("Your %s learning path is ready!", req.Topic), result)

	return g.publishOutcome(ctx, pathgen.TopicPathGenerated, pathgen.WorkOutcome{
		Kind:    pathgen.OutcomeSucceeded,
		UserID:  req.UserID,
		Topic:   req.Topic,
		TraceID: req.TraceID,
		Result:  result,
	})
}

func (g *Generator) publishOutcome(ctx context.Context, topic string, outcome pathgen.WorkOutcome) error {
	if err := g.bus.Publish(ctx, topic, outcome); err != nil {
		return fmt.Errorf("worker: publish terminal event for %q: %w", outcome.TraceID, err)
	}
	return nil
}

func (g *Generator) generate(ctx context.Context, req pathgen.WorkRequest, rep *reporter) (*pathgen.LearningPath, error) {
	rep.update(ctx, pathgen.StageAnalyzing, 15,
		fmt.Sprintf("Analyzing your background for %s...", req.Topic))
	analysis := buildAnalysis(req)
	if err := g.pace(ctx); err != nil {
		return nil, err
	}

	rep.update(ctx, pathgen.StageResearching, 30,
		fmt.Sprintf("Mapping what you already know about %s...", req.Topic))
	if err := g.pace(ctx); err != nil {
		return nil, err
	}

	rep.update(ctx, pathgen.StageGenerating, 40,
		fmt.Sprintf("Creating curriculum structure for %s...", req.Topic))
	curriculum := buildCurriculum(req)
	rep.update(ctx, pathgen.StageGenerating, 60, "Curriculum structure ready")
	if err := g.pace(ctx); err != nil {
		return nil, err
	}

	rep.update(ctx, pathgen.StageEnriching, 75, "Finding the best learning resources...")
	for i := range curriculum.Modules {
		curriculum.Modules[i].Resources = buildResources(curriculum.Modules[i], req.Preferences)
		pct := 75 + (i+1)*15/len(curriculum.Modules)
		rep.update(ctx, pathgen.StageEnriching, pct,
			fmt.Sprintf("Enriched module %d/%d", i+1, len(curriculum.Modules)))
	}
	if err := g.pace(ctx); err != nil {
		return nil, err
	}

	return &pathgen.LearningPath{
		UserID:      req.UserID,
		Topic:       req.Topic,
		Background:  req.Background,
		GoalLevel:   req.GoalLevel,
		Preferences: req.Preferences,
		Analysis:    analysis,
		Curriculum:  curriculum,
		CreatedAt:   time.Now().UTC(),
		TraceID:     req.TraceID,
	}, nil
}

func (g *Generator) pace(ctx context.Context) error {
	if g.stageDelay <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(g.stageDelay):
		return nil
	}
}
