package logger

import (
	"context"

	"go.uber.org/fx"
)

// FXModule integrates the logger into an fx-based application.
//
// It provides the NewLoggerClient factory to the container and
// registers a shutdown hook that flushes buffered log entries.
//
// A logger.Config must be available in the container.
var FXModule = fx.Module("logger",
	fx.Provide(
		NewLoggerClient,
	),
	fx.Invoke(RegisterLoggerLifecycle),
)

// RegisterLoggerLifecycle flushes buffered log entries on shutdown.
func RegisterLoggerLifecycle(lc fx.Lifecycle, client *Logger) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return client.Zap.Sync()
		},
	})
}
