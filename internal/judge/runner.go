package judge

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/sells-group/callrouter/internal/cascade"
	"github.com/sells-group/callrouter/internal/model"
)

// Stage pairs two judges for one cascade stage.
type Stage struct {
	First  Judge
	Second Judge
}

// RunnerConfig tunes stage collection.
type RunnerConfig struct {
	// RequestsPerSecond caps provider calls across all stages.
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	Burst             int     `yaml:"burst" mapstructure:"burst"`
	Cascade           cascade.Config
}

// DefaultRunnerConfig returns the stock limits.
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		RequestsPerSecond: 4,
		Burst:             2,
		Cascade:           cascade.Config{StrongAssignConfidence: cascade.DefaultStrongAssignConfidence},
	}
}

// Runner collects per-stage provider judgments. Stages run sequentially;
// the two providers inside a stage run concurrently. After each stage the
// accumulated pairs are reduced, and a consensus stops further stages so
// later (costlier) models are never invoked unnecessarily.
type Runner struct {
	stages  []Stage
	limiter *rate.Limiter
	cfg     RunnerConfig
}

// NewRunner builds a runner over the given stages.
func NewRunner(stages []Stage, cfg RunnerConfig) (*Runner, error) {
	if len(stages) == 0 {
		return nil, eris.New("judge: at least one stage is required")
	}
	for i, s := range stages {
		if s.First == nil && s.Second == nil {
			return nil, eris.Errorf("judge: stage %d has no judges", i+1)
		}
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = DefaultRunnerConfig().RequestsPerSecond
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	return &Runner{
		stages:  stages,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		cfg:     cfg,
	}, nil
}

// Collect runs the stages for one span and returns every pair that was
// actually invoked. The caller feeds the pairs into the routing policy;
// Collect itself only uses the reduction to decide whether to continue.
func (r *Runner) Collect(ctx context.Context, req Request) ([]model.StagePair, error) {
	var collected []model.StagePair

	for i, stage := range r.stages {
		pair, err := r.runStage(ctx, stage, req)
		if err != nil {
			return collected, err
		}
		collected = append(collected, pair)

		out := cascade.Reduce(collected, r.cfg.Cascade)
		if out.ConsensusAssign {
			zap.L().Debug("judge: consensus reached, skipping later stages",
				zap.String("call_id", req.CallID),
				zap.Int("span_index", req.Span.SpanIndex),
				zap.Int("stage", i+1),
				zap.Int("stages_skipped", len(r.stages)-i-1),
			)
			break
		}
	}

	return collected, nil
}

func (r *Runner) runStage(ctx context.Context, stage Stage, req Request) (model.StagePair, error) {
	var pair model.StagePair

	g, gctx := errgroup.WithContext(ctx)
	if stage.First != nil {
		g.Go(func() error {
			res, err := r.invoke(gctx, stage.First, req)
			pair.First = res
			return err
		})
	}
	if stage.Second != nil {
		g.Go(func() error {
			res, err := r.invoke(gctx, stage.Second, req)
			pair.Second = res
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return pair, err
	}
	return pair, nil
}

// invoke waits for limiter headroom and calls the judge. Only a dead
// context is an error; provider failures are already terminal results.
func (r *Runner) invoke(ctx context.Context, j Judge, req Request) (*model.ProviderResult, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrapf(err, "judge: rate limit wait for %s", j.Provider())
	}
	res := j.Judge(ctx, req)
	return &res, nil
}
