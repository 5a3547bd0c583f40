// Package logging centralizes slog construction and the structured field
// conventions used across the pipeline (component, session_id, stage,
// correlation_id). Console output uses a compact human-readable handler;
// JSON output is available for machine consumption.
package logging
