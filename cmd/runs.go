package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/callrouter/internal/model"
	"github.com/sells-group/callrouter/internal/store"
)

var (
	runsStatus string
	runsCallID string
	runsLimit  int
	runsJSON   bool
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List attribution runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		runs, err := st.ListRuns(ctx, store.RunFilter{
			Status: model.RunStatus(runsStatus),
			CallID: runsCallID,
			Limit:  runsLimit,
		})
		if err != nil {
			return err
		}

		if runsJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return eris.Wrap(enc.Encode(runs), "encode runs")
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "RUN ID\tCALL ID\tSTATUS\tSPANS\tASSIGNED\tCREATED")
		for _, r := range runs {
			spans, assigned := "-", "-"
			if r.Result != nil {
				spans = fmt.Sprintf("%d", r.Result.SpanCount)
				assigned = fmt.Sprintf("%d", r.Result.AssignedCount)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				r.ID, r.CallID, r.Status, spans, assigned, r.CreatedAt.Format("2006-01-02 15:04"))
		}
		return eris.Wrap(w.Flush(), "flush table")
	},
}

func init() {
	runsCmd.Flags().StringVar(&runsStatus, "status", "", "filter by run status")
	runsCmd.Flags().StringVar(&runsCallID, "call-id", "", "filter by call id")
	runsCmd.Flags().IntVar(&runsLimit, "limit", 50, "max runs to list")
	runsCmd.Flags().BoolVar(&runsJSON, "json", false, "output JSON")
	rootCmd.AddCommand(runsCmd)
}
