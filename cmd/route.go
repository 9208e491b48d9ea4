package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/callrouter/internal/judge"
	"github.com/sells-group/callrouter/internal/model"
	"github.com/sells-group/callrouter/internal/router"
)

var (
	routeFile string
	routeLive bool
	routeSave bool
)

var routeCmd = &cobra.Command{
	Use:   "route",
	Short: "Route one call's spans to project verdicts",
	Long:  "Reads a call file (transcript, spans, candidates), runs the prefilter and per-span cascade, applies guardrails, and prints the verdicts as JSON. With --live the provider models are invoked for spans that carry no judgments.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		data, err := os.ReadFile(routeFile)
		if err != nil {
			return eris.Wrapf(err, "read call file %s", routeFile)
		}

		var call router.CallInput
		if err := json.Unmarshal(data, &call); err != nil {
			return eris.Wrap(err, "decode call file")
		}
		if call.CallID == "" {
			return eris.New("call file missing call_id")
		}

		if routeLive {
			if err := cfg.Validate("route"); err != nil {
				return err
			}
			runner, err := newRunner()
			if err != nil {
				return err
			}
			for i := range call.Spans {
				if len(call.Spans[i].Stages) > 0 {
					continue
				}
				pairs, err := runner.Collect(ctx, judge.Request{
					CallID:     call.CallID,
					Span:       call.Spans[i].Context,
					Candidates: call.Spans[i].Candidates,
				})
				if err != nil {
					return eris.Wrapf(err, "collect judgments for span %d", call.Spans[i].Context.SpanIndex)
				}
				call.Spans[i].Stages = pairs
			}
		}

		outcome := router.RouteCall(call, policyFromConfig())

		if routeSave {
			if err := persistOutcome(ctx, outcome); err != nil {
				return err
			}
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return eris.Wrap(enc.Encode(outcome), "encode outcome")
	},
}

func persistOutcome(ctx context.Context, outcome router.CallOutcome) error {
	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.Migrate(ctx); err != nil {
		return err
	}

	run, err := st.CreateRun(ctx, outcome.CallID)
	if err != nil {
		return err
	}
	if err := st.SaveSpanVerdicts(ctx, run.ID, outcome.Verdicts); err != nil {
		return err
	}
	if err := st.UpdateRunResult(ctx, run.ID, runResultFrom(outcome)); err != nil {
		return err
	}

	zap.L().Info("saved run",
		zap.String("run_id", run.ID),
		zap.String("call_id", outcome.CallID),
		zap.Int("spans", len(outcome.Verdicts)),
	)
	return nil
}

func runResultFrom(outcome router.CallOutcome) *model.RunResult {
	assigned := 0
	for _, v := range outcome.Verdicts {
		if v.Decision == model.DecisionAssign {
			assigned++
		}
	}
	return &model.RunResult{
		Junk:            outcome.Junk.IsJunk,
		JunkReasonCodes: outcome.Junk.ReasonCodes,
		Resegment:       outcome.Resegment,
		SpanCount:       len(outcome.Verdicts),
		AssignedCount:   assigned,
	}
}

func init() {
	routeCmd.Flags().StringVar(&routeFile, "file", "", "path to call JSON file (required)")
	routeCmd.Flags().BoolVar(&routeLive, "live", false, "invoke provider models for spans without judgments")
	routeCmd.Flags().BoolVar(&routeSave, "save", false, "persist the run and its verdicts")
	routeCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(routeCmd)
}
