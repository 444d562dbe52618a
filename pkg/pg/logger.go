package pg

import (
	"context"
	"fmt"

	"github.com/pressly/goose/v3"
)

// logger is the part of *slog.Logger the migrator writes to.
type logger interface {
	InfoContext(ctx context.Context, msg string, args ...any)
	ErrorContext(ctx context.Context, msg string, args ...any)
}

// gooseLogger routes goose's printf output to a structured logger.
type gooseLogger struct {
	log logger
}

var _ goose.Logger = gooseLogger{}

func (l gooseLogger) Fatalf(format string, v ...any) {
	l.log.ErrorContext(context.Background(), fmt.Sprintf(format, v...))
}

func (l gooseLogger) Printf(format string, v ...any) {
	l.log.InfoContext(context.Background(), fmt.Sprintf(format, v...))
}
