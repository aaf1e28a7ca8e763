package tracer

import "os"

// Config controls the OpenTelemetry tracer provider.
type Config struct {
	// ServiceName identifies this service in trace backends.
	ServiceName string

	// AppEnv is the deployment environment (e.g. "production").
	AppEnv string

	// EnableExport turns on the OTLP HTTP exporter. The exporter
	// endpoint is taken from the standard OTEL_* environment variables.
	EnableExport bool
}

// NewConfig reads the tracer configuration from environment variables.
func NewConfig() Config {
	return Config{
		ServiceName:  os.Getenv("TRACER_SERVICE_NAME"),
		AppEnv:       os.Getenv("APP_ENV"),
		EnableExport: os.Getenv("TRACER_ENABLE_EXPORT") == "true",
	}
}
