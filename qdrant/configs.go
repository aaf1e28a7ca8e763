package qdrant

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds the connection settings for a Qdrant instance.
type Config struct {
	// Endpoint is the Qdrant host.
	Endpoint string

	// Port is the Qdrant gRPC port, typically 6334.
	Port int

	// ApiKey authenticates against managed Qdrant deployments; empty
	// for unauthenticated instances.
	ApiKey string

	// CollectionPrefix namespaces the collections this process
	// creates, one collection per vector index.
	CollectionPrefix string

	// CheckCompatibility makes the SDK verify client/server version
	// compatibility on connect.
	CheckCompatibility bool
}

// NewConfig reads the Qdrant configuration from environment variables.
func NewConfig() Config {
	port := 6334
	if v := os.Getenv("QDRANT_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			port = p
		}
	}
	prefix := os.Getenv("QDRANT_COLLECTION_PREFIX")
	if prefix == "" {
		prefix = "outfield"
	}
	return Config{
		Endpoint:           os.Getenv("QDRANT_ENDPOINT"),
		Port:               port,
		ApiKey:             os.Getenv("QDRANT_API_KEY"),
		CollectionPrefix:   prefix,
		CheckCompatibility: os.Getenv("QDRANT_CHECK_COMPATIBILITY") == "true",
	}
}

// Validate checks that the endpoint is specified.
func (c Config) Validate() error {
	if c.Endpoint == "" {
		return fmt.Errorf("qdrant: missing QDRANT_ENDPOINT")
	}
	return nil
}
