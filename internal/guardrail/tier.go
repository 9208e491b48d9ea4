package guardrail

import (
	"fmt"

	"github.com/sells-group/callrouter/internal/model"
)

// DefaultSmokingGunFloor is the confidence floor applied when the chosen
// project carries a smoking_gun tier.
const DefaultSmokingGunFloor = 0.85

// TierConfig holds the tier guardrail policy knobs.
type TierConfig struct {
	SmokingGunFloor float64 `yaml:"smoking_gun_floor" mapstructure:"smoking_gun_floor"`
}

// TierInput is the cascade verdict plus the retrieval candidates it chose
// from.
type TierInput struct {
	Decision   model.Decision
	ProjectID  string
	Confidence float64
	Candidates []model.EvidenceCandidate
}

// TierOutcome is the adjusted verdict plus audit fields. ChosenTier and
// ChosenRRFScore are reported even on pass-through paths.
type TierOutcome struct {
	Decision       model.Decision `json:"decision"`
	Confidence     float64        `json:"confidence"`
	Downgraded     bool           `json:"downgraded"`
	Boosted        bool           `json:"boosted"`
	ReasonCode     string         `json:"reason_code,omitempty"`
	ChosenTier     string         `json:"chosen_tier,omitempty"`
	ChosenRRFScore *float64       `json:"chosen_rrf_score,omitempty"`
}

// ApplyTierGuardrail adjusts the cascade decision by the chosen project's
// evidence tier. Rule 1 (weak/anti downgrade) strictly precedes rule 2
// (smoking_gun confidence floor); at most one fires per invocation.
func ApplyTierGuardrail(in TierInput, cfg TierConfig) TierOutcome {
	if cfg.SmokingGunFloor <= 0 {
		cfg.SmokingGunFloor = DefaultSmokingGunFloor
	}

	out := TierOutcome{
		Decision:   in.Decision,
		Confidence: in.Confidence,
	}

	if in.ProjectID == "" {
		return out
	}

	var chosen *model.EvidenceCandidate
	for i := range in.Candidates {
		if in.Candidates[i].ProjectID == in.ProjectID {
			chosen = &in.Candidates[i]
			break
		}
	}
	if chosen == nil {
		return out
	}

	out.ChosenRRFScore = chosen.Evidence.RRFScore

	tier := chosen.Evidence.TierLabel
	if !tier.Valid() {
		// No tier info means no guardrail signal.
		return out
	}
	out.ChosenTier = string(tier)

	if in.Decision == model.DecisionAssign && (tier == model.TierWeak || tier == model.TierAnti) {
		out.Decision = model.DecisionReview
		out.Downgraded = true
		out.ReasonCode = fmt.Sprintf("rrf_tier_%s_downgrade", tier)
		return out
	}

	if tier == model.TierSmokingGun && in.Confidence < cfg.SmokingGunFloor {
		out.Confidence = cfg.SmokingGunFloor
		out.Boosted = true
		out.ReasonCode = "rrf_tier_smoking_gun_boost"
	}

	return out
}
