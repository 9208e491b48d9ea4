package rerank

import (
	"sort"

	"github.com/rotisserie/eris"

	"github.com/sells-group/callrouter/internal/model"
)

// DefaultK is the RRF smoothing constant (Cormack et al.).
const DefaultK = 60

// Config holds the reranker policy knobs. Thresholds are policy, not a
// structural contract; alternate values only move the tier boundaries.
type Config struct {
	K     int            `yaml:"k" mapstructure:"k"`
	TopN  int            `yaml:"top_n" mapstructure:"top_n"`
	Tiers TierThresholds `yaml:"tiers" mapstructure:"tiers"`
}

// TierThresholds are minimum fused scores per tier. Scores at or above
// SmokingGun classify as smoking_gun, and so on down; positive scores below
// Moderate are weak, and everything else is anti.
type TierThresholds struct {
	SmokingGun float64 `yaml:"smoking_gun" mapstructure:"smoking_gun"`
	Strong     float64 `yaml:"strong" mapstructure:"strong"`
	Moderate   float64 `yaml:"moderate" mapstructure:"moderate"`
}

// DefaultConfig returns the production reranker configuration. The
// smoking_gun boundary is set so a candidate ranked first in three of four
// channels at k=60 clears it.
func DefaultConfig() Config {
	return Config{
		K:    DefaultK,
		TopN: 20,
		Tiers: TierThresholds{
			SmokingGun: 0.045,
			Strong:     0.030,
			Moderate:   0.015,
		},
	}
}

// Validate checks that the thresholds are usable and strictly descending.
func (c Config) Validate() error {
	if c.K < 0 {
		return eris.New("rerank: k must be >= 0")
	}
	t := c.Tiers
	if t.SmokingGun <= 0 || t.Strong <= 0 || t.Moderate <= 0 {
		return eris.New("rerank: tier thresholds must be > 0")
	}
	if !(t.SmokingGun > t.Strong && t.Strong > t.Moderate) {
		return eris.New("rerank: tier thresholds must be strictly descending")
	}
	return nil
}

// ClassifyTier buckets a fused score.
func ClassifyTier(score float64, t TierThresholds) model.EvidenceTier {
	switch {
	case score >= t.SmokingGun:
		return model.TierSmokingGun
	case score >= t.Strong:
		return model.TierStrong
	case score >= t.Moderate:
		return model.TierModerate
	case score > 0:
		return model.TierWeak
	default:
		return model.TierAnti
	}
}

// Result is the reranked candidate list plus whether reranking applied.
type Result struct {
	Candidates []model.EvidenceCandidate `json:"candidates"`
	Reranked   bool                      `json:"reranked"`
}

// Rerank orders evidence candidates by fused RRF score and labels each
// scored candidate's tier. If no candidate carries a fused score the input
// is returned untouched: downstream treats a missing tier as no guardrail
// signal. Ties break on source strength, then insertion order, so repeated
// runs over identical inputs yield identical output.
func Rerank(candidates []model.EvidenceCandidate, cfg Config) Result {
	if len(candidates) == 0 {
		return Result{}
	}

	hasScore := false
	for _, c := range candidates {
		if c.Evidence.RRFScore != nil {
			hasScore = true
			break
		}
	}
	if !hasScore {
		return Result{Candidates: candidates}
	}

	tiers := cfg.Tiers
	if tiers == (TierThresholds{}) {
		tiers = DefaultConfig().Tiers
	}

	out := make([]model.EvidenceCandidate, len(candidates))
	copy(out, candidates)
	for i := range out {
		if out[i].Evidence.RRFScore == nil {
			continue
		}
		if out[i].Evidence.TierLabel == "" {
			out[i].Evidence.TierLabel = ClassifyTier(*out[i].Evidence.RRFScore, tiers)
		}
	}

	sort.SliceStable(out, func(a, b int) bool {
		sa, sb := fusedScore(out[a]), fusedScore(out[b])
		if sa != sb {
			return sa > sb
		}
		return out[a].Evidence.SourceStrength > out[b].Evidence.SourceStrength
	})

	return Result{Candidates: out, Reranked: true}
}

func fusedScore(c model.EvidenceCandidate) float64 {
	if c.Evidence.RRFScore == nil {
		return 0
	}
	return *c.Evidence.RRFScore
}
