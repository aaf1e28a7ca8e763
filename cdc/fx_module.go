package cdc

import (
	"context"

	"go.uber.org/fx"
)

// FXModule integrates the CDC transport into an fx-based application.
//
// It provides the configuration and the NewTransport factory, and
// registers a shutdown hook closing the transport. In local mode the
// provided transport is nil; consumers must treat that as in-process
// routing.
var FXModule = fx.Module("cdc",
	fx.Provide(
		NewConfig,
		NewTransport,
	),
	fx.Invoke(RegisterTransportLifecycle),
)

// RegisterTransportLifecycle closes the transport on shutdown.
func RegisterTransportLifecycle(lc fx.Lifecycle, transport Transport) {
	if transport == nil {
		return
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return transport.GracefulShutdown()
		},
	})
}
