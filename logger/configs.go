package logger

import "os"

// Level names accepted by Config.Level.
const (
	Debug   = "debug"
	Info    = "info"
	Warning = "warning"
	Error   = "error"
)

// Config controls the behavior of the zap-backed logger.
type Config struct {
	// Level is the minimum level that will be emitted.
	Level string

	// ServiceName is attached to every log entry as a constant field.
	ServiceName string

	// EnableTracing makes the *WithContext methods extract trace and
	// span IDs from the context and attach them to log entries.
	EnableTracing bool
}

// NewConfig reads the logger configuration from environment variables.
func NewConfig() Config {
	level := os.Getenv("LOGGER_LEVEL")
	if level == "" {
		level = Info
	}
	return Config{
		Level:         level,
		ServiceName:   os.Getenv("LOGGER_SERVICE_NAME"),
		EnableTracing: os.Getenv("LOGGER_ENABLE_TRACING") == "true",
	}
}
