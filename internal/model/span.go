package model

// SpanContext is the segmentation layer's view of one transcript span.
type SpanContext struct {
	SpanIndex      int    `json:"span_index"` // 1-based within the call
	TranscriptText string `json:"transcript_text"`

	// CurrentProjectID is a pre-existing assignment for the span, if any.
	// The coherence guardrail scrutinizes it when no cascade winner exists.
	CurrentProjectID    string   `json:"current_project_id,omitempty"`
	CandidateProjects   []string `json:"candidate_project_ids,omitempty"`
	PriorAssignedIDs    []string `json:"prior_assigned_project_ids,omitempty"`
	SpanChars           int      `json:"span_chars,omitempty"`
	AdditionalStrongIDs []string `json:"additional_strong_project_ids,omitempty"`
}

// SpanVerdict is the single authoritative outcome persisted per span.
type SpanVerdict struct {
	Decision    Decision `json:"decision"`
	ProjectID   string   `json:"project_id,omitempty"`
	Confidence  float64  `json:"confidence"`
	ReasonCodes []string `json:"reason_codes"`
	Warnings    []string `json:"warnings,omitempty"`

	// Audit flags.
	ConsensusAssign bool `json:"consensus_assign"`
	Downgraded      bool `json:"downgraded"`
	Boosted         bool `json:"boosted"`
	Enforced        bool `json:"enforced"`
	Overridden      bool `json:"overridden"`
	ResegmentNeeded bool `json:"resegment_needed"`
}

// Severity grades a validation issue.
type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Issue is a structured input-validation finding. Issues are reported, not
// thrown: callers decide whether to block or merely log.
type Issue struct {
	Severity Severity `json:"severity"`
	Field    string   `json:"field"`
	Message  string   `json:"message"`
}
