package postgres

import (
	"context"

	"go.uber.org/fx"
)

// FXModule integrates the postgres store into an fx-based application.
//
// It provides the configuration and the NewStore factory, and
// registers a shutdown hook closing the connection pool.
var FXModule = fx.Module("postgres",
	fx.Provide(
		NewConfig,
		NewStore,
	),
	fx.Invoke(RegisterStoreLifecycle),
)

// RegisterStoreLifecycle closes the connection pool on shutdown.
func RegisterStoreLifecycle(lc fx.Lifecycle, store *Store) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return store.GracefulShutdown()
		},
	})
}
