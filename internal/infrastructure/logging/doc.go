// Package logging provides structured logging for the onroad manager.
//
// This package wraps Go's standard log/slog package to provide
// consistent, structured logging across the entire application.
//
// # Features
//
//   - JSON output for production (machine-parsable)
//   - Text output for development (human-readable)
//   - Default fields (service, version) on all log entries
//   - Optional size-rotated log file alongside the console stream
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr, none
//	  file:
//	    path: "/data/log/manager.log"
//	    max_size: 10     # megabytes
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "0.9.8")
//	defer logger.Close()
//	logger.Info("manager starting", "dongle_id", id)
//
// Never log device keys or registration tokens.
package logging
