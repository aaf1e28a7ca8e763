package artifact

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// Fetcher downloads raw bytes from a URI. Supported schemes are
// file://, s3:// and http(s)://.
type Fetcher struct {
	headers map[string]string
	http    *http.Client
	store   *Store
}

// NewFetcher builds a fetcher. Headers are sent on every HTTP request.
func NewFetcher(headers map[string]string) *Fetcher {
	return &Fetcher{
		headers: headers,
		http: &http.Client{
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// WithStore enables s3:// URIs through the artifact store's
// connection.
func (f *Fetcher) WithStore(store *Store) *Fetcher {
	f.store = store
	return f
}

// Fetch downloads the content behind a URI.
func (f *Fetcher) Fetch(ctx context.Context, uri string) ([]byte, error) {
	switch {
	case strings.HasPrefix(uri, "file://"):
		return f.fetchFile(uri)
	case strings.HasPrefix(uri, "s3://"):
		return f.fetchS3(ctx, uri)
	case strings.HasPrefix(uri, "http://"), strings.HasPrefix(uri, "https://"):
		return f.fetchHTTP(ctx, uri)
	default:
		return nil, fmt.Errorf("artifact: unsupported URI scheme in %q", uri)
	}
}

func (f *Fetcher) fetchFile(uri string) ([]byte, error) {
	data, err := os.ReadFile(strings.TrimPrefix(uri, "file://"))
	if err != nil {
		return nil, fmt.Errorf("artifact: reading %q: %w", uri, err)
	}
	return data, nil
}

func (f *Fetcher) fetchS3(ctx context.Context, uri string) ([]byte, error) {
	if f.store == nil {
		return nil, fmt.Errorf("artifact: no object store bound for %q", uri)
	}
	path := strings.TrimPrefix(uri, "s3://")
	bucket, key, ok := strings.Cut(path, "/")
	if !ok || bucket == "" || key == "" {
		return nil, fmt.Errorf("artifact: malformed s3 URI %q", uri)
	}
	data, err := f.store.fetchObject(ctx, bucket, key)
	if err != nil {
		return nil, fmt.Errorf("artifact: fetching %q: %w", uri, err)
	}
	return data, nil
}

func (f *Fetcher) fetchHTTP(ctx context.Context, uri string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, fmt.Errorf("artifact: building request for %q: %w", uri, err)
	}
	for k, v := range f.headers {
		req.Header.Set(k, v)
	}

	resp, err := f.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("artifact: fetching %q: %w", uri, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("artifact: fetching %q: status %s", uri, resp.Status)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("artifact: reading %q: %w", uri, err)
	}
	return data, nil
}
