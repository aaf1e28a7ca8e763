package postgres

import (
	"fmt"
	"os"
	"time"
)

// Config defines the configuration for the postgres databackend.
type Config struct {
	Connection        Connection
	ConnectionDetails ConnectionDetails
}

// Connection contains the parameters for establishing a connection.
type Connection struct {
	Host     string
	Port     string
	User     string
	Password string
	DbName   string
	SSLMode  string
}

// ConnectionDetails tunes the connection pool.
type ConnectionDetails struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewConfig reads the postgres configuration from environment
// variables.
func NewConfig() Config {
	sslMode := os.Getenv("POSTGRES_SSL_MODE")
	if sslMode == "" {
		sslMode = "disable"
	}
	port := os.Getenv("POSTGRES_PORT")
	if port == "" {
		port = "5432"
	}
	return Config{
		Connection: Connection{
			Host:     os.Getenv("POSTGRES_HOST"),
			Port:     port,
			User:     os.Getenv("POSTGRES_USER"),
			Password: os.Getenv("POSTGRES_PASSWORD"),
			DbName:   os.Getenv("POSTGRES_DB"),
			SSLMode:  sslMode,
		},
	}
}

// Validate checks that the connection is fully specified.
func (c Config) Validate() error {
	if c.Connection.Host == "" {
		return fmt.Errorf("postgres: missing POSTGRES_HOST")
	}
	if c.Connection.User == "" {
		return fmt.Errorf("postgres: missing POSTGRES_USER")
	}
	if c.Connection.DbName == "" {
		return fmt.Errorf("postgres: missing POSTGRES_DB")
	}
	return nil
}
