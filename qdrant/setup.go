package qdrant

import (
	"context"
	"fmt"
	"log"
	"slices"
	"strings"
	"time"

	qdrant "github.com/qdrant/go-client/qdrant"

	"github.com/outfield-ai/outfield/vectordb"
)

// Client wraps the Qdrant SDK client with collection management.
type Client struct {
	api *qdrant.Client
	cfg Config
}

// NewClient connects to Qdrant and verifies the server is reachable.
func NewClient(cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	api, err := qdrant.NewClient(&qdrant.Config{
		Host:                   cfg.Endpoint,
		Port:                   cfg.Port,
		APIKey:                 cfg.ApiKey,
		SkipCompatibilityCheck: !cfg.CheckCompatibility,
	})
	if err != nil {
		return nil, fmt.Errorf("[Qdrant] failed to create client: %w", err)
	}

	c := &Client{api: api, cfg: cfg}
	if err := c.healthCheck(); err != nil {
		return nil, err
	}
	log.Printf("[Qdrant] Connected to %s:%d", cfg.Endpoint, cfg.Port)
	return c, nil
}

func (c *Client) healthCheck() error {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if _, err := c.api.HealthCheck(ctx); err != nil {
		return fmt.Errorf("[Qdrant] health check failed: %w", err)
	}
	return nil
}

// collectionName namespaces an index identifier under the configured
// prefix. Identifier characters outside Qdrant's collection-name
// alphabet are mapped to underscores.
func (c *Client) collectionName(identifier string) string {
	sanitized := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			return r
		default:
			return '_'
		}
	}, identifier)
	return c.cfg.CollectionPrefix + "_" + sanitized
}

// distanceOf maps a similarity measure onto a Qdrant distance.
func distanceOf(measure vectordb.Measure) (qdrant.Distance, error) {
	switch measure {
	case vectordb.Cosine:
		return qdrant.Distance_Cosine, nil
	case vectordb.Dot:
		return qdrant.Distance_Dot, nil
	case vectordb.L2:
		return qdrant.Distance_Euclid, nil
	default:
		return qdrant.Distance_UnknownDistance, fmt.Errorf("[Qdrant] unsupported measure %q", measure)
	}
}

// EnsureCollection creates the collection for a vector index if it does
// not exist yet. Safe to call repeatedly.
func (c *Client) EnsureCollection(ctx context.Context, name string, measure vectordb.Measure, dimensions int) error {
	if name == "" {
		return fmt.Errorf("[Qdrant] collection name cannot be empty")
	}
	if dimensions <= 0 {
		return fmt.Errorf("[Qdrant] collection %q needs a positive dimensionality", name)
	}

	distance, err := distanceOf(measure)
	if err != nil {
		return err
	}

	collections, err := c.api.ListCollections(ctx)
	if err != nil {
		return fmt.Errorf("[Qdrant] failed to list collections: %w", err)
	}
	if slices.Contains(collections, name) {
		return nil
	}

	log.Printf("[Qdrant] Collection '%s' not found, creating it...", name)
	req := &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dimensions),
			Distance: distance,
		}),
	}
	if err := c.api.CreateCollection(ctx, req); err != nil {
		return fmt.Errorf("[Qdrant] failed to create collection '%s': %w", name, err)
	}

	log.Printf("[Qdrant] Created collection '%s' successfully", name)
	return nil
}

// GracefulShutdown closes the underlying gRPC connection.
func (c *Client) GracefulShutdown() error {
	return c.api.Close()
}
