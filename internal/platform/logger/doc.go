// Package logger provides structured logging functionality for the application.
//
// It builds log/slog loggers with configurable levels: JSON output for
// production and colorized console output (github.com/lmittmann/tint) for
// local development. Request-scoped loggers travel in a context.Context.
package logger
