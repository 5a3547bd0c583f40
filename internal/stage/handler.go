// Package stage defines the contract each pipeline stage implements.
package stage

import (
	"context"
	"log/slog"

	"podforge/internal/session"
)

// Handler describes the contract the pipeline needs from each stage.
type Handler interface {
	Prepare(context.Context, *session.Session) error
	Execute(context.Context, *session.Session) error
	HealthCheck(context.Context) Health
}

// LoggerAware lets the execution helper hand stages a context-scoped logger.
type LoggerAware interface {
	SetLogger(*slog.Logger)
}
