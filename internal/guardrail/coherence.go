package guardrail

import (
	"regexp"
	"strings"
)

// Explicit project-switch phrases. Any hit means the hop away from the
// prior baseline is intentional and must not be suppressed.
var switchSignalPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\banother\s+(?:project|job|house|site|one)\b`),
	regexp.MustCompile(`(?i)\bdifferent\s+(?:project|job|house|site|one)\b`),
	regexp.MustCompile(`(?i)\bother\s+(?:project|job|house|site)\b`),
	regexp.MustCompile(`(?i)\bswitch(?:ing)?\s+(?:to|over|back)\b`),
	regexp.MustCompile(`(?i)\bmove(?:d|ing)?\s+(?:to|over to)\b`),
	regexp.MustCompile(`(?i)\bseparate\s+(?:project|job|site)\b`),
	regexp.MustCompile(`(?i)\bnew\s+project\b`),
	regexp.MustCompile(`(?i)\bnext\s+project\b`),
	regexp.MustCompile(`(?i)\bon\s+the\s+other\s+job\b`),
}

// HasSwitchSignal reports whether the transcript announces a project switch.
func HasSwitchSignal(transcript string) bool {
	if transcript == "" {
		return false
	}
	for _, re := range switchSignalPatterns {
		if re.MatchString(transcript) {
			return true
		}
	}
	return false
}

// CoherenceInput is the span-level context for the adjacent-span guardrail.
type CoherenceInput struct {
	SpanIndex           int
	TranscriptText      string
	CurrentProjectID    string
	PriorAssignedIDs    []string
	CandidateProjectIDs []string
}

// CoherenceOutcome reports whether the guardrail enforced the prior
// baseline. Enforced=false with null fields is the default, conservative
// outcome for every unmet precondition.
type CoherenceOutcome struct {
	Enforced          bool   `json:"enforced"`
	BaselineProjectID string `json:"baseline_project_id,omitempty"`
	OverrideProjectID string `json:"override_project_id,omitempty"`
	DowngradeToReview bool   `json:"downgrade_to_review"`
	Reason            string `json:"reason,omitempty"`
}

// EvaluateAdjacentSpanCoherence suppresses spurious project hops on early
// spans of a multi-span call. It applies only on spans 1-3 when every prior
// span agreed on a single baseline project.
func EvaluateAdjacentSpanCoherence(in CoherenceInput) CoherenceOutcome {
	current := strings.TrimSpace(in.CurrentProjectID)
	if current == "" || in.SpanIndex < 1 || in.SpanIndex > 3 {
		return CoherenceOutcome{}
	}

	var prior []string
	for _, raw := range in.PriorAssignedIDs {
		if id := strings.TrimSpace(raw); id != "" {
			prior = append(prior, id)
		}
	}
	if len(prior) == 0 {
		return CoherenceOutcome{}
	}

	baseline := prior[0]
	for _, id := range prior[1:] {
		if id != baseline {
			// Mixed history: no single baseline to stabilize around.
			return CoherenceOutcome{}
		}
	}

	if current == baseline {
		return CoherenceOutcome{BaselineProjectID: baseline}
	}

	if HasSwitchSignal(in.TranscriptText) {
		return CoherenceOutcome{BaselineProjectID: baseline}
	}

	for _, raw := range in.CandidateProjectIDs {
		if strings.TrimSpace(raw) == baseline {
			return CoherenceOutcome{
				Enforced:          true,
				BaselineProjectID: baseline,
				OverrideProjectID: baseline,
				Reason:            "adjacent_span_coherence_override",
			}
		}
	}

	// Baseline is not a candidate here: forcing it would be a guess, so
	// hand the span to a human instead.
	return CoherenceOutcome{
		Enforced:          true,
		BaselineProjectID: baseline,
		DowngradeToReview: true,
		Reason:            "adjacent_span_coherence_needs_review",
	}
}
