package service

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"jobs_ingest/internal/config"
	"jobs_ingest/internal/dedup"
	"jobs_ingest/internal/domain"
	"jobs_ingest/internal/lake"
	"jobs_ingest/internal/service/mocks"
)

type RunnerTestSuite struct {
	suite.Suite
	ctrl   *gomock.Controller
	logger *slog.Logger
}

func (s *RunnerTestSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func (s *RunnerTestSuite) TearDownTest() {
	s.ctrl.Finish()
}

func TestRunnerTestSuite(t *testing.T) {
	suite.Run(t, new(RunnerTestSuite))
}

// idlePipeline builds a pipeline whose source yields no listings, so a
// run completes without sink traffic.
func (s *RunnerTestSuite) idlePipeline(src domain.Source) *Pipeline {
	adapter := mocks.NewMockAdapter(s.ctrl)
	adapter.EXPECT().ID().Return(src).AnyTimes()
	adapter.EXPECT().Name().Return(string(src)).AnyTimes()

	fetcher := mocks.NewMockFetcher(s.ctrl)
	fetcher.EXPECT().FetchAll(gomock.Any(), 1).Return(nil, nil, nil)

	postings := mocks.NewMockPostingStore(s.ctrl)
	postings.EXPECT().GetContentHashes(gomock.Any(), src, gomock.Any()).Return(map[string]string{}, nil)

	runs := mocks.NewMockRunStore(s.ctrl)
	runs.EXPECT().Save(gomock.Any(), gomock.Any()).Return(nil)

	txManager := mocks.NewMockTransactionManager(s.ctrl)
	txManager.EXPECT().WithTransaction(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, fn func(context.Context) error) error {
			return fn(ctx)
		},
	)

	lakeWriter := mocks.NewMockLakeWriter(s.ctrl)
	lakeWriter.EXPECT().Write(gomock.Any(), gomock.Any(), gomock.Any()).Return(lake.WriteResult{}, nil)

	return NewPipeline(
		adapter,
		fetcher,
		postings,
		runs,
		txManager,
		nil,
		lakeWriter,
		dedup.Policy{},
		config.PipelineConfig{MaxHistoricalDays: 30},
		s.logger,
	)
}

func (s *RunnerTestSuite) TestRunAll_GeneratesRunIDs() {
	runner := NewRunner([]*Pipeline{
		s.idlePipeline(domain.SourceDjinni),
		s.idlePipeline(domain.SourceDou),
	}, s.logger)

	summaries := runner.RunAll(context.Background(), "")

	s.Require().Len(summaries, 2)
	s.Equal(domain.SourceDjinni, summaries[0].Source)
	s.Equal(domain.SourceDou, summaries[1].Source)
	s.NotEmpty(summaries[0].RunID)
	s.NotEmpty(summaries[1].RunID)
	s.NotEqual(summaries[0].RunID, summaries[1].RunID)
}

func (s *RunnerTestSuite) TestRunAll_UsesProvidedRunID() {
	runner := NewRunner([]*Pipeline{
		s.idlePipeline(domain.SourceDjinni),
	}, s.logger)

	summaries := runner.RunAll(context.Background(), "manual-run-1")

	s.Require().Len(summaries, 1)
	s.Equal("manual-run-1", summaries[0].RunID)
}

func (s *RunnerTestSuite) TestRunAll_ScopesProvidedRunIDPerSource() {
	runner := NewRunner([]*Pipeline{
		s.idlePipeline(domain.SourceDjinni),
		s.idlePipeline(domain.SourceDou),
	}, s.logger)

	summaries := runner.RunAll(context.Background(), "nightly")

	s.Require().Len(summaries, 2)
	s.Equal("nightly-djinni", summaries[0].RunID)
	s.Equal("nightly-dou", summaries[1].RunID)
}
