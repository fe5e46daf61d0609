package domain

import "time"

// RunStatus is the terminal state of a pipeline run.
type RunStatus string

const (
	RunDone    RunStatus = "done"    // both sinks committed
	RunPartial RunStatus = "partial" // exactly one sink committed
	RunFailed  RunStatus = "failed"  // failed before any sink ran
)

// FailedRecord is one entry in the bounded failure sample of a run summary.
type FailedRecord struct {
	SourceID string `json:"source_id"`
	Stage    string `json:"stage"`
	Reason   string `json:"reason"`
}

// SinkResult reports a single sink's outcome for the run. The two sinks are
// independently committable, so each carries its own success flag.
type SinkResult struct {
	OK      bool   `json:"ok"`
	Records int    `json:"records"`
	Path    string `json:"path,omitempty"`
	Error   string `json:"error,omitempty"`
}

// MaxFailedSamples bounds the failure sample carried by a run summary.
const MaxFailedSamples = 10

// RunSummary is the structured output returned to the orchestration trigger.
type RunSummary struct {
	RunID       string         `json:"run_id"`
	Source      Source         `json:"source"`
	Status      RunStatus      `json:"status"`
	StartedAt   time.Time      `json:"started_at"`
	FinishedAt  time.Time      `json:"finished_at"`
	Fetched     int            `json:"fetched"`
	Parsed      int            `json:"parsed"`
	New         int            `json:"new"`
	Updated     int            `json:"updated"`
	Unchanged   int            `json:"unchanged"`
	FetchErrors int            `json:"fetch_errors"`
	ParseErrors int            `json:"parse_errors"`
	Published   int            `json:"published"`
	Lake        SinkResult     `json:"lake"`
	Store       SinkResult     `json:"store"`
	Failures    []FailedRecord `json:"failures,omitempty"`
}

// RecordFailure appends to the failure sample, dropping entries past the cap.
// Counts are tracked separately so nothing is lost, only detail.
func (s *RunSummary) RecordFailure(sourceID, stage, reason string) {
	if len(s.Failures) >= MaxFailedSamples {
		return
	}
	s.Failures = append(s.Failures, FailedRecord{SourceID: sourceID, Stage: stage, Reason: reason})
}
