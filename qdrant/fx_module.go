package qdrant

import (
	"context"

	"go.uber.org/fx"

	"github.com/outfield-ai/outfield/vectordb"
)

// FXModule integrates the Qdrant client into an fx-based application.
var FXModule = fx.Module("qdrant",
	fx.Provide(
		NewConfig,
		NewClient,
		Factory,
	),
	fx.Invoke(RegisterClientLifecycle),
)

// Factory builds vector-index search backends on the Qdrant client. It
// satisfies the datalayer's searcher factory contract.
func Factory(client *Client) func(context.Context, string, vectordb.Measure, int) (vectordb.Searcher, error) {
	return func(ctx context.Context, identifier string, measure vectordb.Measure, dimensions int) (vectordb.Searcher, error) {
		return NewSearcher(ctx, client, identifier, measure, dimensions)
	}
}

// RegisterClientLifecycle closes the gRPC connection on shutdown.
func RegisterClientLifecycle(lc fx.Lifecycle, client *Client) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return client.GracefulShutdown()
		},
	})
}
