// Package logger provides structured, zap-backed logging for outfield
// services.
//
// The wrapper keeps a deliberately small surface: leveled methods that
// take a message, an optional error, and optional field maps, plus
// *WithContext variants that attach OpenTelemetry trace/span IDs when
// tracing is enabled.
//
// Direct usage:
//
//	log := logger.NewLoggerClient(logger.Config{
//		Level:       logger.Info,
//		ServiceName: "outfield",
//	})
//	log.Info("listener registered", nil, map[string]interface{}{
//		"listener": "my-model/x",
//	})
//
// With fx, use FXModule and provide a logger.Config; a lifecycle hook
// flushes buffered entries on shutdown.
package logger
