package guardrail

import (
	"strings"

	"github.com/sells-group/callrouter/internal/model"
)

// MaxSpanChars is the largest span the attribution layer will trust as a
// single-project unit.
const MaxSpanChars = 3000

// ResegmentOutcome flags spans whose segmentation should be revisited. It
// never mutates a decision; it only signals upstream.
type ResegmentOutcome struct {
	Triggered                bool     `json:"triggered"`
	Reasons                  []string `json:"reasons,omitempty"`
	SpanChars                int      `json:"span_chars"`
	StrongAnchorProjectCount int      `json:"strong_anchor_project_count"`
}

// CountStrongAnchorProjects counts distinct non-blank project ids referenced
// by strong-typed anchors.
func CountStrongAnchorProjects(anchors []model.Anchor) int {
	ids := make(map[string]bool)
	collectStrongAnchorProjects(anchors, ids)
	return len(ids)
}

func collectStrongAnchorProjects(anchors []model.Anchor, ids map[string]bool) {
	for _, a := range anchors {
		if !model.IsStrongAnchorType(a.MatchType) {
			continue
		}
		id := strings.TrimSpace(a.CandidateProjectID)
		if id == "" {
			continue
		}
		ids[id] = true
	}
}

// EvaluateAutoResegmentInvariant checks whether a span is too large or
// contains competing strong anchors. Both reasons are recorded when both
// hold. additionalStrongIDs lets callers union in strong project ids from
// outside the anchor list, e.g. homeowner context.
func EvaluateAutoResegmentInvariant(spanChars int, anchors []model.Anchor, additionalStrongIDs []string) ResegmentOutcome {
	if spanChars < 0 {
		spanChars = 0
	}

	ids := make(map[string]bool)
	collectStrongAnchorProjects(anchors, ids)
	for _, raw := range additionalStrongIDs {
		if id := strings.TrimSpace(raw); id != "" {
			ids[id] = true
		}
	}

	var reasons []string
	if spanChars > MaxSpanChars {
		reasons = append(reasons, "span_chars_over_3000")
	}
	if len(ids) > 1 {
		reasons = append(reasons, "multiple_strong_anchor_projects")
	}

	return ResegmentOutcome{
		Triggered:                len(reasons) > 0,
		Reasons:                  reasons,
		SpanChars:                spanChars,
		StrongAnchorProjectCount: len(ids),
	}
}
