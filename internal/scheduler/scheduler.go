package scheduler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"

	"jobs_ingest/internal/domain"
)

// Ingestor runs one ingestion cycle across all sources. Scheduled
// cycles pass an empty run id and let the ingestor generate one.
type Ingestor interface {
	RunAll(ctx context.Context, runID string) []*domain.RunSummary
}

// Scheduler wraps robfig/cron and triggers periodic ingestion runs.
type Scheduler struct {
	cron     *cron.Cron
	ingestor Ingestor
	spec     string
	logger   *slog.Logger
}

func NewScheduler(ingestor Ingestor, spec string, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		cron:     cron.New(),
		ingestor: ingestor,
		spec:     spec,
		logger:   logger,
	}
}

// Start registers the job and starts the cron loop. One cycle runs
// immediately so a fresh deployment does not wait for the first tick.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.spec, func() {
		s.runCycle(ctx)
	})
	if err != nil {
		return fmt.Errorf("register cron job: %w", err)
	}

	s.cron.Start()
	s.logger.Info("scheduler started", "spec", s.spec)

	go s.runCycle(ctx)

	return nil
}

// Stop shuts the scheduler down, waiting for a running cycle to finish.
func (s *Scheduler) Stop() {
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) runCycle(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	s.logger.Info("ingestion cycle started")
	summaries := s.ingestor.RunAll(ctx, "")

	for _, summary := range summaries {
		if summary == nil {
			continue
		}
		s.logger.Info("cycle source finished",
			"source", summary.Source,
			"run_id", summary.RunID,
			"status", summary.Status,
			"new", summary.New,
			"updated", summary.Updated,
			"unchanged", summary.Unchanged,
		)
	}
	s.logger.Info("ingestion cycle complete")
}
