package commands

import (
	"os"
	"os/signal"
	"syscall"

	"ghostwriter/api"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := buildApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			if a.cache != nil {
				if n, err := a.cache.Purge(); err != nil {
					logger.Warn("failed to purge search cache", zap.Error(err))
				} else if n > 0 {
					logger.Info("purged expired search results", zap.Int("entries", n))
				}
			}

			server := api.NewServer(a.service, a.extractor, a.metrics, logger, cfg.AppPort, cfg.MaxUploadBytes)
			return server.Start(ctx)
		},
	}
}
