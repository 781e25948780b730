// Package logging provides slog-based structured logging for the pipeline:
// a colored console handler, a JSON handler, context-derived standard fields
// (job id, stage, lane, correlation id), and typed attribute helpers.
package logging
