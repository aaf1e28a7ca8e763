package datalayer

import (
	"fmt"
	"os"
	"strconv"
)

// Backend names accepted by Config.Backend.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
)

// Config controls the datalayer's databackend and job execution.
type Config struct {
	// Backend selects the databackend, "memory" or "postgres".
	Backend string

	// NumWorkers bounds the number of concurrently executing jobs.
	NumWorkers int

	// ServerMode marks processes that only serve queries; they skip
	// local CDC registration because a dedicated worker consumes the
	// change stream.
	ServerMode bool
}

// NewConfig reads the datalayer configuration from environment
// variables.
func NewConfig() Config {
	backend := os.Getenv("DATALAYER_BACKEND")
	if backend == "" {
		backend = BackendMemory
	}

	workers := 4
	if v := os.Getenv("DATALAYER_NUM_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			workers = n
		}
	}

	return Config{
		Backend:    backend,
		NumWorkers: workers,
		ServerMode: os.Getenv("DATALAYER_SERVER_MODE") == "true",
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendMemory, BackendPostgres:
	default:
		return fmt.Errorf("datalayer: unknown backend %q", c.Backend)
	}
	if c.NumWorkers < 1 {
		return fmt.Errorf("datalayer: num workers must be positive, got %d", c.NumWorkers)
	}
	return nil
}
