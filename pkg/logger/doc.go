// Package logger builds the slog loggers used across the server. Output is
// JSON in production and text elsewhere, filtered by a configurable level
// and tagged with the running environment.
package logger
