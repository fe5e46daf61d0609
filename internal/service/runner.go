package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"jobs_ingest/internal/domain"
)

// Runner fans one ingestion run out across all configured sources.
type Runner struct {
	pipelines []*Pipeline
	logger    *slog.Logger
}

func NewRunner(pipelines []*Pipeline, logger *slog.Logger) *Runner {
	return &Runner{
		pipelines: pipelines,
		logger:    logger,
	}
}

// RunAll runs every source concurrently and returns one summary per
// pipeline in input order. An empty runID generates one per pipeline;
// a caller-supplied id is used as-is, scoped per source when the cycle
// spans several. Sources fail independently: an aborted run is logged
// and reported via its summary, never propagated to the siblings.
func (r *Runner) RunAll(ctx context.Context, runID string) []*domain.RunSummary {
	summaries := make([]*domain.RunSummary, len(r.pipelines))

	var g errgroup.Group
	for i, pipeline := range r.pipelines {
		g.Go(func() error {
			runID := r.runID(runID, pipeline)
			summary, err := pipeline.Run(ctx, runID)
			if err != nil {
				r.logger.Error("run aborted",
					"source", summary.Source,
					"run_id", runID,
					"error", err,
				)
			}
			summaries[i] = summary
			return nil
		})
	}
	_ = g.Wait()

	return summaries
}

// runID resolves the id for one pipeline's run. Run ids key the
// ingestion_runs table, so a shared base id gets a source suffix when
// more than one pipeline runs in the cycle.
func (r *Runner) runID(base string, pipeline *Pipeline) string {
	if base == "" {
		return uuid.NewString()
	}
	if len(r.pipelines) > 1 {
		return fmt.Sprintf("%s-%s", base, pipeline.Source())
	}
	return base
}
