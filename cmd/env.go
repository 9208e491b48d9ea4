package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/callrouter/internal/cascade"
	"github.com/sells-group/callrouter/internal/guardrail"
	"github.com/sells-group/callrouter/internal/judge"
	"github.com/sells-group/callrouter/internal/prefilter"
	"github.com/sells-group/callrouter/internal/rerank"
	"github.com/sells-group/callrouter/internal/router"
	"github.com/sells-group/callrouter/internal/store"
)

// policyFromConfig maps the loaded config onto the routing policy knobs.
func policyFromConfig() router.Policy {
	return router.Policy{
		Prefilter: prefilter.Config{
			MinWordCount:         cfg.Prefilter.MinWordCount,
			ShortDurationSeconds: cfg.Prefilter.ShortDurationSeconds,
		},
		Cascade: cascade.Config{
			StrongAssignConfidence: cfg.Cascade.StrongAssignConfidence,
		},
		Rerank: rerank.Config{
			K:    cfg.Rerank.K,
			TopN: cfg.Rerank.TopN,
			Tiers: rerank.TierThresholds{
				SmokingGun: cfg.Rerank.SmokingGunCutoff,
				Strong:     cfg.Rerank.StrongCutoff,
				Moderate:   cfg.Rerank.ModerateCutoff,
			},
		},
		Tier: guardrail.TierConfig{
			SmokingGunFloor: cfg.Guardrail.SmokingGunFloor,
		},
	}
}

// openStore builds the configured persistence backend.
func openStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "callrouter.db"
		}
		return store.NewSQLite(dsn)
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// newRunner wires the two-stage provider cascade: the cheap models judge
// first, the larger models only run when the first stage disagrees.
func newRunner() (*judge.Runner, error) {
	stages := []judge.Stage{
		{
			First:  judge.NewOpenAIJudge(cfg.OpenAI.Key, judge.WithOpenAIBaseURL(cfg.OpenAI.BaseURL), judge.WithOpenAIModel(cfg.OpenAI.MiniModel)),
			Second: judge.NewAnthropicJudge(cfg.Anthropic.Key, cfg.Anthropic.HaikuModel),
		},
		{
			First:  judge.NewOpenAIJudge(cfg.OpenAI.Key, judge.WithOpenAIBaseURL(cfg.OpenAI.BaseURL), judge.WithOpenAIModel(cfg.OpenAI.LargeModel)),
			Second: judge.NewAnthropicJudge(cfg.Anthropic.Key, cfg.Anthropic.SonnetModel),
		},
	}

	return judge.NewRunner(stages, judge.RunnerConfig{
		RequestsPerSecond: cfg.Judge.RequestsPerSecond,
		Burst:             cfg.Judge.Burst,
		Cascade: cascade.Config{
			StrongAssignConfidence: cfg.Cascade.StrongAssignConfidence,
		},
	})
}
