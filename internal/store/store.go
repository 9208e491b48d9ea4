package store

import (
	"context"

	"github.com/sells-group/callrouter/internal/model"
)

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	CallID string          `json:"call_id,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for attribution runs.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, callID string) (*model.AttributionRun, error)
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error
	UpdateRunResult(ctx context.Context, runID string, result *model.RunResult) error
	GetRun(ctx context.Context, runID string) (*model.AttributionRun, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.AttributionRun, error)

	// Span verdicts
	SaveSpanVerdicts(ctx context.Context, runID string, verdicts []model.SpanVerdict) error
	ListSpanVerdicts(ctx context.Context, runID string) ([]model.SpanAttribution, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
