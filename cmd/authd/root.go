package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/dmitrymomot/authkit/internal/api"
	"github.com/dmitrymomot/authkit/internal/app"
	"github.com/dmitrymomot/authkit/pkg/config"
	"github.com/dmitrymomot/authkit/pkg/logger"
)

type rootOptions struct {
	envFiles []string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:          "authd",
		Short:        "Authentication and session service",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringSliceVar(&opts.envFiles, "env-file", nil, "dotenv files to load before reading the environment")

	cmd.AddCommand(
		newServeCmd(opts),
		newMigrateCmd(opts),
		newSecretCmd(),
	)
	return cmd
}

func (o *rootOptions) loadConfig() (app.Config, error) {
	var copts []config.Option
	if len(o.envFiles) > 0 {
		copts = append(copts, config.WithEnvFiles(o.envFiles...))
	}
	return app.LoadConfig(copts...)
}

func newLogger(cfg app.Config) *slog.Logger {
	return logger.New(
		logger.WithEnvironment(cfg.Auth.Environment, cfg.ServiceName),
		logger.WithConfig(cfg.Log),
		logger.WithContextExtractors(api.RequestIDExtractor),
	)
}
