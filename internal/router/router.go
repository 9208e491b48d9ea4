// Package router composes the prefilter, cascade, and guardrail chain into
// the single authoritative verdict persisted per span. Precedence, lowest
// to highest: cascade verdict, RRF-tier guardrail, adjacent-span coherence,
// homeowner deterministic override. The auto-resegment invariant runs
// alongside and only signals; it never mutates the decision.
package router

import (
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/callrouter/internal/cascade"
	"github.com/sells-group/callrouter/internal/guardrail"
	"github.com/sells-group/callrouter/internal/model"
	"github.com/sells-group/callrouter/internal/prefilter"
	"github.com/sells-group/callrouter/internal/rerank"
)

// Policy bundles every tunable consumed by the routing chain. Components
// receive their slice of it explicitly so alternate thresholds are trivial
// to test.
type Policy struct {
	Prefilter prefilter.Config     `yaml:"prefilter" mapstructure:"prefilter"`
	Cascade   cascade.Config       `yaml:"cascade" mapstructure:"cascade"`
	Rerank    rerank.Config        `yaml:"rerank" mapstructure:"rerank"`
	Tier      guardrail.TierConfig `yaml:"tier" mapstructure:"tier"`
}

// DefaultPolicy returns the production policy values.
func DefaultPolicy() Policy {
	return Policy{
		Prefilter: prefilter.DefaultConfig(),
		Cascade:   cascade.Config{StrongAssignConfidence: cascade.DefaultStrongAssignConfidence},
		Rerank:    rerank.DefaultConfig(),
		Tier:      guardrail.TierConfig{SmokingGunFloor: guardrail.DefaultSmokingGunFloor},
	}
}

// SpanInput is everything the collaborator layers hand over for one span.
type SpanInput struct {
	Context    model.SpanContext         `json:"context"`
	Stages     []model.StagePair         `json:"stages"`
	Candidates []model.EvidenceCandidate `json:"candidates"`
	Anchors    []model.Anchor            `json:"anchors,omitempty"`
	Homeowner  *guardrail.HomeownerMeta  `json:"homeowner,omitempty"`
}

// SpanOutcome is the verdict plus per-component audit metadata.
type SpanOutcome struct {
	Verdict   model.SpanVerdict          `json:"verdict"`
	Cascade   cascade.Outcome            `json:"cascade"`
	Tier      guardrail.TierOutcome      `json:"tier"`
	Coherence guardrail.CoherenceOutcome `json:"coherence"`
	Homeowner guardrail.HomeownerOutcome `json:"homeowner"`
	Resegment guardrail.ResegmentOutcome `json:"resegment"`
	Issues    []model.Issue              `json:"issues,omitempty"`
}

// ValidateSpanInput reports structural problems without blocking: callers
// decide whether an error-severity issue stops the span.
func ValidateSpanInput(in SpanInput) []model.Issue {
	var issues []model.Issue
	if in.Context.SpanIndex < 1 {
		issues = append(issues, model.Issue{
			Severity: model.SeverityError,
			Field:    "span_index",
			Message:  "span index must be 1-based",
		})
	}
	if strings.TrimSpace(in.Context.TranscriptText) == "" {
		issues = append(issues, model.Issue{
			Severity: model.SeverityWarning,
			Field:    "transcript_text",
			Message:  "empty transcript text",
		})
	}
	for _, pair := range in.Stages {
		if pair.First == nil && pair.Second == nil {
			issues = append(issues, model.Issue{
				Severity: model.SeverityWarning,
				Field:    "stages",
				Message:  "stage has no provider results",
			})
		}
	}
	for _, c := range in.Candidates {
		if strings.TrimSpace(c.ProjectID) == "" {
			issues = append(issues, model.Issue{
				Severity: model.SeverityWarning,
				Field:    "candidates",
				Message:  "candidate with blank project id",
			})
		}
	}
	return issues
}

// RouteSpan runs the full decision chain for one span.
func RouteSpan(in SpanInput, policy Policy) SpanOutcome {
	out := SpanOutcome{Issues: ValidateSpanInput(in)}

	reranked := rerank.Rerank(in.Candidates, policy.Rerank)
	candidates := reranked.Candidates

	out.Cascade = cascade.Reduce(in.Stages, policy.Cascade)

	decision := model.DecisionNone
	projectID := ""
	confidence := 0.0
	if out.Cascade.Winner != nil {
		decision = out.Cascade.Winner.Decision
		projectID = out.Cascade.Winner.ProjectID
		confidence = out.Cascade.Winner.Confidence
	}

	reasons := newReasonList(out.Cascade.ReasonCodes)

	// RRF-tier guardrail.
	out.Tier = guardrail.ApplyTierGuardrail(guardrail.TierInput{
		Decision:   decision,
		ProjectID:  projectID,
		Confidence: confidence,
		Candidates: candidates,
	}, policy.Tier)
	decision = out.Tier.Decision
	confidence = out.Tier.Confidence
	if out.Tier.Downgraded {
		projectID = ""
	}
	if out.Tier.ReasonCode != "" {
		reasons.add(out.Tier.ReasonCode)
	}

	// Adjacent-span coherence. With no cascade winner the segmentation
	// layer's pre-existing assignment is the hop under scrutiny.
	coherenceCurrent := projectID
	if coherenceCurrent == "" {
		coherenceCurrent = in.Context.CurrentProjectID
	}
	out.Coherence = guardrail.EvaluateAdjacentSpanCoherence(guardrail.CoherenceInput{
		SpanIndex:           in.Context.SpanIndex,
		TranscriptText:      in.Context.TranscriptText,
		CurrentProjectID:    coherenceCurrent,
		PriorAssignedIDs:    in.Context.PriorAssignedIDs,
		CandidateProjectIDs: candidateIDs(in, candidates),
	})
	if out.Coherence.Enforced {
		reasons.add(out.Coherence.Reason)
		if out.Coherence.DowngradeToReview {
			decision = model.DecisionReview
			projectID = ""
		} else {
			decision = model.DecisionAssign
			projectID = out.Coherence.OverrideProjectID
		}
	}

	// Homeowner deterministic override has the last word.
	out.Homeowner = guardrail.EvaluateHomeownerOverride(in.Homeowner, candidateIDs(in, candidates))
	if out.Homeowner.StrongAnchorActive {
		decision = model.DecisionAssign
		projectID = out.Homeowner.DeterministicProjectID
		reasons.add("homeowner_override_applied")
	}

	// Resegment invariant observes; it does not decide.
	additionalStrong := append([]string(nil), in.Context.AdditionalStrongIDs...)
	if guardrail.HomeownerActsAsStrongAnchor(in.Homeowner) && in.Homeowner.ProjectID != "" {
		additionalStrong = append(additionalStrong, in.Homeowner.ProjectID)
	}
	spanChars := in.Context.SpanChars
	if spanChars == 0 {
		spanChars = len(in.Context.TranscriptText)
	}
	out.Resegment = guardrail.EvaluateAutoResegmentInvariant(spanChars, in.Anchors, additionalStrong)

	// assign always carries a project id; review/none never do.
	if decision == model.DecisionAssign && projectID == "" {
		decision = model.DecisionReview
		reasons.add("assign_without_project_id")
	}
	if decision != model.DecisionAssign {
		projectID = ""
	}

	out.Verdict = model.SpanVerdict{
		Decision:        decision,
		ProjectID:       projectID,
		Confidence:      confidence,
		ReasonCodes:     reasons.codes,
		Warnings:        out.Cascade.Warnings,
		ConsensusAssign: out.Cascade.ConsensusAssign,
		Downgraded:      out.Tier.Downgraded || out.Coherence.DowngradeToReview,
		Boosted:         out.Tier.Boosted,
		Enforced:        out.Coherence.Enforced,
		Overridden:      out.Homeowner.StrongAnchorActive,
		ResegmentNeeded: out.Resegment.Triggered,
	}

	zap.L().Debug("router: span routed",
		zap.Int("span_index", in.Context.SpanIndex),
		zap.String("decision", string(out.Verdict.Decision)),
		zap.String("project_id", out.Verdict.ProjectID),
		zap.Float64("confidence", out.Verdict.Confidence),
		zap.Strings("reason_codes", out.Verdict.ReasonCodes),
	)

	return out
}

// candidateIDs prefers the segmentation layer's explicit candidate list and
// falls back to the retrieval candidates.
func candidateIDs(in SpanInput, candidates []model.EvidenceCandidate) []string {
	if len(in.Context.CandidateProjects) > 0 {
		return in.Context.CandidateProjects
	}
	return model.DistinctProjectIDs(candidates)
}

type reasonList struct {
	seen  map[string]bool
	codes []string
}

// Reason codes are append-only within one evaluation.
func newReasonList(initial []string) *reasonList {
	l := &reasonList{seen: make(map[string]bool)}
	for _, c := range initial {
		l.add(c)
	}
	return l
}

func (l *reasonList) add(code string) {
	if code == "" || l.seen[code] {
		return
	}
	l.seen[code] = true
	l.codes = append(l.codes, code)
}
