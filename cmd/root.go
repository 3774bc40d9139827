package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/streetcover/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "streetcover",
	Short: "Street-level land-cover estimation from Street View imagery",
	Long:  "Fetches Street View images around sensor sites, classifies vegetation and sky cover per image, and aggregates per-site means.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return eris.Wrap(err, "load config")
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return eris.Wrap(err, "init logger")
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
