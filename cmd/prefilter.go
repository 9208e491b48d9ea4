package main

import (
	"encoding/json"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/callrouter/internal/prefilter"
)

var (
	prefilterFile     string
	prefilterDuration float64
)

var prefilterCmd = &cobra.Command{
	Use:   "prefilter",
	Short: "Screen a transcript for junk before any model call",
	Long:  "Runs the deterministic junk screen (voicemail, connection failure, minimal content) against a transcript file or stdin and prints the result as JSON.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("prefilter"); err != nil {
			return err
		}

		var raw []byte
		var err error
		if prefilterFile == "" || prefilterFile == "-" {
			raw, err = io.ReadAll(cmd.InOrStdin())
		} else {
			raw, err = os.ReadFile(prefilterFile)
		}
		if err != nil {
			return eris.Wrap(err, "read transcript")
		}

		var duration *float64
		if cmd.Flags().Changed("duration") {
			duration = &prefilterDuration
		}

		result := prefilter.Evaluate(string(raw), duration, prefilter.Config{
			MinWordCount:         cfg.Prefilter.MinWordCount,
			ShortDurationSeconds: cfg.Prefilter.ShortDurationSeconds,
		})

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return eris.Wrap(enc.Encode(result), "encode result")
	},
}

func init() {
	prefilterCmd.Flags().StringVar(&prefilterFile, "file", "-", "transcript file path ('-' for stdin)")
	prefilterCmd.Flags().Float64Var(&prefilterDuration, "duration", 0, "call duration in seconds (milliseconds tolerated)")
	rootCmd.AddCommand(prefilterCmd)
}
