package model

import "time"

// RunStatus tracks an attribution run through its lifecycle.
type RunStatus string

const (
	RunStatusQueued    RunStatus = "queued"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusJunk      RunStatus = "junk"
	RunStatusFailed    RunStatus = "failed"
)

// AttributionRun is one call's trip through the attribution pipeline.
type AttributionRun struct {
	ID        string     `json:"id"`
	CallID    string     `json:"call_id"`
	Status    RunStatus  `json:"status"`
	Result    *RunResult `json:"result,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// RunResult summarizes a completed run.
type RunResult struct {
	Junk            bool     `json:"junk"`
	JunkReasonCodes []string `json:"junk_reason_codes,omitempty"`
	Resegment       bool     `json:"resegment"`
	SpanCount       int      `json:"span_count"`
	AssignedCount   int      `json:"assigned_count"`
}

// SpanAttribution is the persisted verdict for one span of a run.
type SpanAttribution struct {
	ID        string      `json:"id"`
	RunID     string      `json:"run_id"`
	SpanIndex int         `json:"span_index"`
	Verdict   SpanVerdict `json:"verdict"`
	CreatedAt time.Time   `json:"created_at"`
}
