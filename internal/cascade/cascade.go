// Package cascade reduces already-collected per-stage provider judgments
// into a single pre-guardrail verdict. It never invokes a provider: the
// judge layer materializes every stage before reduction, which keeps this
// package a pure, independently testable function of its inputs.
package cascade

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/sells-group/callrouter/internal/model"
)

// DefaultStrongAssignConfidence is the confidence bar a provider result
// must clear to count as a strong assign.
const DefaultStrongAssignConfidence = 0.75

// Config holds the cascade policy knobs.
type Config struct {
	StrongAssignConfidence float64 `yaml:"strong_assign_confidence" mapstructure:"strong_assign_confidence"`
}

// Outcome is the reduction result across all stages.
type Outcome struct {
	Winner           *model.ProviderResult `json:"winner,omitempty"`
	WinnerStage      int                   `json:"winner_stage,omitempty"` // 1-based, 0 when no winner
	ConsensusAssign  bool                  `json:"consensus_assign"`
	Warnings         []string              `json:"warnings"`
	ReasonCodes      []string              `json:"reason_codes"`
	SawProviderError bool                  `json:"saw_provider_error"`
}

// IsStrongAssign reports whether a result clears the strong-assign bar:
// successful, assign with a concrete project, confident, and anchored.
func IsStrongAssign(r *model.ProviderResult, minConfidence float64) bool {
	if minConfidence <= 0 {
		minConfidence = DefaultStrongAssignConfidence
	}
	return r != nil &&
		r.OK &&
		r.Decision == model.DecisionAssign &&
		r.ProjectID != "" &&
		r.Confidence >= minConfidence &&
		len(r.Anchors) > 0 &&
		r.StrongAnchor
}

// chooseHigherConfidence keeps the first-given result on an exact tie.
func chooseHigherConfidence(a, b *model.ProviderResult) *model.ProviderResult {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	if a.Confidence >= b.Confidence {
		return a
	}
	return b
}

type reasonSet struct {
	seen  map[string]bool
	codes []string
}

func (s *reasonSet) add(code string) {
	if s.seen == nil {
		s.seen = make(map[string]bool)
	}
	if s.seen[code] {
		return
	}
	s.seen[code] = true
	s.codes = append(s.codes, code)
}

// Reduce runs the stage-by-stage consensus policy. Stages are reduced
// strictly in the order supplied; a stage-level consensus terminates the
// cascade immediately.
func Reduce(stages []model.StagePair, cfg Config) Outcome {
	var (
		warnings    []string
		reasons     reasonSet
		fallback    *model.ProviderResult
		fallbackStg int
		sawError    bool
	)

	for i, pair := range stages {
		stage := i + 1
		results := pair.Results()

		for _, r := range results {
			if r.Failed() {
				sawError = true
			}
		}

		firstAssign := IsStrongAssign(pair.First, cfg.StrongAssignConfidence)
		secondAssign := IsStrongAssign(pair.Second, cfg.StrongAssignConfidence)

		switch {
		case firstAssign && secondAssign && pair.First.ProjectID == pair.Second.ProjectID:
			winner := chooseHigherConfidence(pair.First, pair.Second)
			warnings = append(warnings, fmt.Sprintf("stage_%d_consensus_assign", stage))
			zap.L().Debug("cascade: consensus assign",
				zap.Int("stage", stage),
				zap.String("project_id", winner.ProjectID),
				zap.Float64("confidence", winner.Confidence),
			)
			w := *winner
			return Outcome{
				Winner:           &w,
				WinnerStage:      stage,
				ConsensusAssign:  true,
				Warnings:         warnings,
				ReasonCodes:      reasons.codes,
				SawProviderError: sawError,
			}
		case firstAssign && secondAssign:
			reasons.add("model_disagreement")
			warnings = append(warnings, fmt.Sprintf("stage_%d_model_disagreement", stage))
		case firstAssign || secondAssign:
			// A single strong assign is not yet trusted.
			reasons.add("model_disagreement")
			warnings = append(warnings, fmt.Sprintf("stage_%d_single_provider_assign", stage))
		default:
			if len(results) > 0 && allFailed(results) {
				warnings = append(warnings, fmt.Sprintf("stage_%d_all_provider_failed", stage))
			}
		}

		// Highest-confidence successful result seen so far; earlier stage
		// and first-given provider win exact ties.
		for _, r := range results {
			if !r.OK {
				continue
			}
			if fallback == nil || r.Confidence > fallback.Confidence {
				c := *r
				fallback = &c
				fallbackStg = stage
			}
		}
	}

	if fallback != nil && fallback.Decision == model.DecisionAssign {
		fallback.Decision = model.DecisionReview
		fallback.ProjectID = ""
		fallback.Reasoning += " [downgraded: model_disagreement_after_final_stage]"
		reasons.add("model_disagreement")
	}

	if sawError {
		reasons.add("model_error")
	}
	if len(warnings) == 0 {
		// The audit trail is never empty.
		warnings = append(warnings, "model_disagreement")
	}

	return Outcome{
		Winner:           fallback,
		WinnerStage:      fallbackStg,
		Warnings:         warnings,
		ReasonCodes:      reasons.codes,
		SawProviderError: sawError,
	}
}

func allFailed(results []*model.ProviderResult) bool {
	for _, r := range results {
		if !r.Failed() {
			return false
		}
	}
	return true
}
