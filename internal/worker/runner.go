package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/roadmapai/backend/internal/eventbus"
	"github.com/roadmapai/backend/internal/pathgen"
)

// Runner keeps the generator attached to the work-requested topic,
// reconnecting with backoff when the subscription drops.
type Runner struct {
	bus eventbus.Bus
	gen *Generator
}

func NewRunner(bus eventbus.Bus, gen *Generator) *Runner {
	return &Runner{bus: bus, gen: gen}
}

// Run blocks until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Second

	for {
		err := r.bus.Subscribe(ctx, pathgen.TopicPathRequested, Group, r.gen.Handle)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		slog.WarnContext(ctx, "work subscription dropped, reconnecting", "error", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(bo.NextBackOff()):
		}
	}
}
