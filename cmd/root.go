package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/callrouter/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "callrouter",
	Short: "Call transcript to project attribution pipeline",
	Long:  "Screens call transcripts for junk, runs a multi-model attribution cascade per span, applies evidence and coherence guardrails, and persists span verdicts.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
