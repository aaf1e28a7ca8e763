package tracer

import (
	"context"

	"go.uber.org/fx"
)

// FXModule provides *Tracer via dependency injection and shuts the
// provider down on application stop.
//
// A tracer.Config and a tracer.Logger must be available in the
// container.
var FXModule = fx.Module("tracer",
	fx.Provide(NewClient),
	fx.Invoke(RegisterTracerLifecycle),
)

// RegisterTracerLifecycle flushes pending spans on shutdown.
func RegisterTracerLifecycle(lc fx.Lifecycle, t *Tracer) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return t.Shutdown(ctx)
		},
	})
}
