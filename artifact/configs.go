package artifact

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds the artifact store and downloader settings.
type Config struct {
	Connection ConnectionConfig

	// NumWorkers bounds concurrent URI downloads. Zero means
	// sequential.
	NumWorkers int

	// Timeout caps a single URI download. Zero disables the cap.
	Timeout time.Duration
}

// ConnectionConfig contains the object storage connection details.
type ConnectionConfig struct {
	Endpoint        string // e.g. "localhost:9000"
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
	BucketName      string
	Region          string
}

// NewConfig reads the artifact configuration from environment
// variables.
func NewConfig() Config {
	workers := 20
	if v := os.Getenv("ARTIFACT_NUM_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			workers = n
		}
	}
	timeout := time.Duration(0)
	if v := os.Getenv("ARTIFACT_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			timeout = d
		}
	}
	bucket := os.Getenv("ARTIFACT_BUCKET")
	if bucket == "" {
		bucket = "outfield-artifacts"
	}
	return Config{
		Connection: ConnectionConfig{
			Endpoint:        os.Getenv("ARTIFACT_ENDPOINT"),
			AccessKeyID:     os.Getenv("ARTIFACT_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("ARTIFACT_SECRET_ACCESS_KEY"),
			UseSSL:          os.Getenv("ARTIFACT_USE_SSL") == "true",
			BucketName:      bucket,
			Region:          os.Getenv("ARTIFACT_REGION"),
		},
		NumWorkers: workers,
		Timeout:    timeout,
	}
}

// Validate checks the connection details required to reach the store.
func (c Config) Validate() error {
	if c.Connection.Endpoint == "" {
		return fmt.Errorf("artifact: missing ARTIFACT_ENDPOINT")
	}
	if c.Connection.BucketName == "" {
		return fmt.Errorf("artifact: missing ARTIFACT_BUCKET")
	}
	if c.NumWorkers < 0 {
		return fmt.Errorf("artifact: ARTIFACT_NUM_WORKERS must not be negative")
	}
	return nil
}
