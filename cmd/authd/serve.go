package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dmitrymomot/authkit/internal/app"
	"github.com/dmitrymomot/authkit/pkg/logger"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			log := newLogger(cfg)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := app.New(ctx, cfg, log)
			defer func() {
				if cerr := a.Close(); cerr != nil {
					log.Error("failed to release resources", logger.Error(cerr))
				}
			}()
			if err != nil {
				log.ErrorContext(ctx, "failed to start", logger.Error(err))
				return err
			}

			return a.Run(ctx)
		},
	}
}
