package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/xref-cli/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "xref-cli",
	Short: "Parametric cross-reference matching for electronic components",
	Long:  "Finds replacement parts for an MPN by rule-based parametric comparison, and validates uploaded parts lists against the component catalog in bulk.",
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
