package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter config.yaml and create the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		const path = "config.yaml"
		if _, err := os.Stat(path); err == nil && !initForce {
			return eris.Errorf("%s already exists (use --force to overwrite)", path)
		}

		out, err := yaml.Marshal(cfg)
		if err != nil {
			return eris.Wrap(err, "marshal config")
		}
		if err := os.WriteFile(path, out, 0o644); err != nil {
			return eris.Wrapf(err, "write %s", path)
		}
		zap.L().Info("wrote config", zap.String("path", path))

		st, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.Migrate(cmd.Context()); err != nil {
			return err
		}
		zap.L().Info("schema ready", zap.String("driver", cfg.Store.Driver))

		return nil
	},
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite existing config.yaml")
	rootCmd.AddCommand(initCmd)
}
