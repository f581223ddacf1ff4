// Package logger provides a structured logging facility based on Zap.
//
// Development mode ("debug" level) uses zap's development config with ISO8601
// timestamps; every other level uses the production config. Output is either
// json or console encoded.
//
// # Request correlation
//
// WithRayID extracts the ray id set by the rayid middleware from a Fiber
// context and attaches it to the logger, so every line written while serving a
// request can be correlated.
//
// # Usage
//
//	log, _ := logger.New(&logger.Config{Level: "info", Format: "json"})
//	log.Info("Server started")
//
//	// In a request handler:
//	l := logger.WithRayID(log, c)
//	l.Error("Handler failed", zap.Error(err))
package logger
