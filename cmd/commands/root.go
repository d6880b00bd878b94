package commands

import (
	"fmt"
	"os"

	"ghostwriter/config"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	configFile string
	cfg        *config.Config
	logger     *zap.Logger
)

func Execute() error {
	root := &cobra.Command{
		Use:           "ghostwriter",
		Short:         "Generate or check text and find similar content on the web",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if configFile != "" {
				if err := os.Setenv("CONFIG_FILE", configFile); err != nil {
					return err
				}
			}

			var err error
			cfg, err = config.Load()
			if err != nil {
				return err
			}

			if cfg.LogDevelopment {
				logger, err = zap.NewDevelopment()
			} else {
				logger, err = zap.NewProduction()
			}
			if err != nil {
				return fmt.Errorf("failed to create logger: %w", err)
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logger != nil {
				_ = logger.Sync()
			}
		},
	}

	root.PersistentFlags().StringVar(&configFile, "config", "", "YAML config file (overrides CONFIG_FILE)")

	root.AddCommand(serveCmd(), generateCmd(), checkCmd(), extractCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}
