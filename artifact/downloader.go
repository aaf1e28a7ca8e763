package artifact

import (
	"context"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/outfield-ai/outfield/logger"
	"github.com/outfield-ai/outfield/query"
)

// Update receives the bytes fetched for one URI. id and key locate the
// row field the URI came from.
type Update func(ctx context.Context, id, key, uri string, data []byte) error

// StoreUpdater writes fetched content into the artifact store under
// the given datatype.
func StoreUpdater(store *Store, datatype string) Update {
	return func(ctx context.Context, id, key, uri string, data []byte) error {
		return store.Save(ctx, Artifact{URI: uri, Datatype: datatype, Bytes: data})
	}
}

// RowUpdater writes fetched content back into the row field the URI
// was read from.
func RowUpdater(sel query.SupportsDownloadUpdate) Update {
	return func(ctx context.Context, id, key, uri string, data []byte) error {
		return sel.DownloadUpdate(ctx, id, key, data)
	}
}

// Downloader fetches a batch of URIs with a bounded worker pool and
// hands each payload to an Update.
type Downloader struct {
	fetcher *Fetcher
	cfg     Config
	log     *logger.Logger

	// ContinueOnError makes individual download failures non-fatal;
	// they are logged and counted instead.
	ContinueOnError bool

	failed atomic.Int64
}

// NewDownloader builds a downloader on a fetcher. NumWorkers and
// Timeout come from the config.
func NewDownloader(fetcher *Fetcher, cfg Config) *Downloader {
	return &Downloader{fetcher: fetcher, cfg: cfg}
}

// WithLogger attaches a logger used for non-fatal download failures.
func (d *Downloader) WithLogger(log *logger.Logger) *Downloader {
	d.log = log
	return d
}

// Failed counts the downloads skipped over since construction. Only
// grows when ContinueOnError is set.
func (d *Downloader) Failed() int64 { return d.failed.Load() }

// Go downloads uris[i] and hands the bytes to update together with
// ids[i] and keys[i]. The pool size follows the config; zero workers
// means sequential.
func (d *Downloader) Go(ctx context.Context, uris, ids, keys []string, update Update) error {
	if len(ids) != len(uris) {
		return fmt.Errorf("artifact: %d uris but %d ids", len(uris), len(ids))
	}
	if len(keys) != len(uris) {
		return fmt.Errorf("artifact: %d uris but %d keys", len(uris), len(keys))
	}

	g, gctx := errgroup.WithContext(ctx)
	if d.cfg.NumWorkers > 0 {
		g.SetLimit(d.cfg.NumWorkers)
	} else {
		g.SetLimit(1)
	}

	for i := range uris {
		g.Go(func() error {
			err := d.downloadOne(gctx, uris[i], ids[i], keys[i], update)
			if err == nil {
				return nil
			}
			if !d.ContinueOnError {
				return err
			}
			d.failed.Add(1)
			if d.log != nil {
				d.log.Warn("Download failed, continuing", err, map[string]interface{}{
					"uri": uris[i],
					"id":  ids[i],
				})
			}
			return nil
		})
	}
	return g.Wait()
}

func (d *Downloader) downloadOne(ctx context.Context, uri, id, key string, update Update) error {
	if d.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.cfg.Timeout)
		defer cancel()
	}

	data, err := d.fetcher.Fetch(ctx, uri)
	if err != nil {
		return err
	}
	return update(ctx, id, key, uri, data)
}
