// Package logging provides structured logging utilities for cmtsmon components.
//
// # Overview
//
// This package wraps the standard library slog package with project defaults
// so every command and the delivery server log the same way. It supports
// environment-based log level configuration, module/version context injection,
// and automatic source location tracking for debug logs.
//
// # Usage
//
// Setting the default logger early in main or in the CLI Before hook:
//
//	logging.SetDefaultStructuredLoggerWithLevel("cmtsmon", version, "info")
//	slog.Info("ingest complete", "devices", 42, "capture", 1700000000)
//
// Creating a custom logger:
//
//	logger := logging.NewStructuredLogger("cmtsmon-server", "v1.0.0", "debug")
//	logger.Info("server starting", "port", 8001)
//
// # Environment Configuration
//
// The LOG_LEVEL environment variable controls verbosity when no explicit level
// is given:
//
//	LOG_LEVEL=debug cmtsmon ingest --dump output.txt
//
// # Output Format
//
// All logs are written to stderr in JSON format:
//
//	{
//	    "time": "2025-01-15T10:30:00.123Z",
//	    "level": "INFO",
//	    "msg": "snapshot appended",
//	    "module": "cmtsmon",
//	    "version": "v1.0.0",
//	    "capture": 1736937000
//	}
//
// Debug logs include source location.
package logging
