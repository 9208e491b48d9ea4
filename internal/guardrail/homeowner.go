// Package guardrail implements the deterministic post-inference rules that
// can override, downgrade, or boost a cascade verdict. Every guardrail is a
// pure function of (decision-so-far, context) and fails toward review or
// no-op, never toward an unchecked assign.
package guardrail

import "strings"

// HomeownerMeta is the context-assembly layer's homeowner override fields.
// A populated conflict field deactivates the override.
type HomeownerMeta struct {
	Override          bool   `json:"homeowner_override"`
	ProjectID         string `json:"homeowner_override_project_id,omitempty"`
	ConflictProjectID string `json:"homeowner_override_conflict_project_id,omitempty"`
	ConflictTerm      string `json:"homeowner_override_conflict_term,omitempty"`
}

// HomeownerOutcome reports whether the deterministic override applies.
type HomeownerOutcome struct {
	StrongAnchorActive     bool   `json:"strong_anchor_active"`
	DeterministicProjectID string `json:"deterministic_project_id,omitempty"`
	SkipReason             string `json:"skip_reason,omitempty"`
}

// HomeownerActsAsStrongAnchor reports whether the homeowner role should be
// treated as a strong anchor signal: override set and no conflicting
// project or term recorded. It deliberately ignores whether a project id is
// available; the deterministic gate checks that separately.
func HomeownerActsAsStrongAnchor(meta *HomeownerMeta) bool {
	if meta == nil || !meta.Override {
		return false
	}
	return strings.TrimSpace(meta.ConflictProjectID) == "" &&
		strings.TrimSpace(meta.ConflictTerm) == ""
}

// EvaluateHomeownerOverride decides whether the homeowner override pins the
// span to one project. The override is authoritative only when the span's
// candidates all agree with it; any second distinct candidate makes the
// span ambiguous and the gate steps aside.
func EvaluateHomeownerOverride(meta *HomeownerMeta, candidateProjectIDs []string) HomeownerOutcome {
	if !HomeownerActsAsStrongAnchor(meta) {
		return HomeownerOutcome{}
	}

	overrideID := strings.TrimSpace(meta.ProjectID)
	if overrideID == "" {
		return HomeownerOutcome{SkipReason: "missing_project_id"}
	}

	for _, raw := range candidateProjectIDs {
		id := strings.TrimSpace(raw)
		if id == "" {
			continue
		}
		if id != overrideID {
			return HomeownerOutcome{SkipReason: "multi_project_span"}
		}
	}

	return HomeownerOutcome{
		StrongAnchorActive:     true,
		DeterministicProjectID: overrideID,
	}
}
