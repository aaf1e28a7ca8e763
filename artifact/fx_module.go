package artifact

import (
	"go.uber.org/fx"
)

// FXModule integrates the artifact store into an fx-based application.
var FXModule = fx.Module("artifact",
	fx.Provide(
		NewConfig,
		NewStore,
		NewFetcherFromConfig,
		NewDownloader,
	),
)

// NewFetcherFromConfig builds the default fetcher, wired to the store
// for s3:// URIs.
func NewFetcherFromConfig(store *Store) *Fetcher {
	return NewFetcher(nil).WithStore(store)
}
