// Package stageexec executes a single pipeline stage with session persistence
// semantics shared by all one-shot runs.
package stageexec

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	"podforge/internal/logging"
	"podforge/internal/notifications"
	"podforge/internal/services"
	"podforge/internal/session"
	"podforge/internal/stage"
)

// Handler is the stage contract used by the execution helper.
type Handler interface {
	Prepare(context.Context, *session.Session) error
	Execute(context.Context, *session.Session) error
}

// Options controls stage execution and session persistence behavior.
type Options struct {
	Logger     *slog.Logger
	Store      *session.Store
	Notifier   notifications.Service
	Handler    Handler
	StageName  string
	Processing session.Status
	Done       session.Status
	Session    *session.Session
	// Timeout bounds Prepare and Execute together; zero means no bound.
	// Session persistence is not subject to it so a timed-out stage still
	// records its failure.
	Timeout time.Duration
}

// Run executes a stage and applies the session transition semantics used by
// one-shot pipeline runs: processing status before, done status after, failed
// status with the error message on any stage error.
func Run(ctx context.Context, opts Options) error {
	if opts.Handler == nil {
		return fmt.Errorf("stage handler unavailable: %s", opts.StageName)
	}
	if opts.Store == nil {
		return fmt.Errorf("session store is required")
	}
	if opts.Session == nil {
		return fmt.Errorf("session is required")
	}

	stageCtx := services.WithStage(services.WithSessionID(ctx, opts.Session.ID), opts.StageName)
	stageCtx = services.WithRequestID(stageCtx, uuid.NewString())
	handlerCtx := stageCtx
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		handlerCtx, cancel = context.WithTimeout(stageCtx, opts.Timeout)
		defer cancel()
	}
	stageLogger := logging.WithContext(stageCtx, opts.Logger)
	if aware, ok := opts.Handler.(stage.LoggerAware); ok {
		aware.SetLogger(stageLogger)
	}

	stageLogger.Info(
		"stage started",
		logging.String(logging.FieldEventType, "stage_start"),
		logging.String("processing_status", string(opts.Processing)),
		logging.String("topic", strings.TrimSpace(opts.Session.Topic)),
	)

	setProcessingState(opts.Session, opts.Processing)
	if err := opts.Store.Update(stageCtx, opts.Session); err != nil {
		return fmt.Errorf("persist processing transition: %w", err)
	}

	if err := opts.Handler.Prepare(handlerCtx, opts.Session); err != nil {
		return handleFailure(stageCtx, stageLogger, opts, err)
	}
	if err := opts.Store.Update(stageCtx, opts.Session); err != nil {
		return fmt.Errorf("persist stage preparation: %w", err)
	}

	if err := opts.Handler.Execute(handlerCtx, opts.Session); err != nil {
		return handleFailure(stageCtx, stageLogger, opts, err)
	}

	if opts.Session.Status == opts.Processing || opts.Session.Status == "" {
		opts.Session.Status = opts.Done
	}
	if err := opts.Store.Update(stageCtx, opts.Session); err != nil {
		return fmt.Errorf("persist stage result: %w", err)
	}

	stageLogger.Info(
		"stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.String("next_status", string(opts.Session.Status)),
		logging.String("progress_message", strings.TrimSpace(opts.Session.ProgressMessage)),
	)

	return nil
}

func handleFailure(ctx context.Context, logger *slog.Logger, opts Options, stageErr error) error {
	message := "stage failed"
	if stageErr != nil {
		message = strings.TrimSpace(stageErr.Error())
	}
	opts.Session.SetFailed(message)

	logger.Error(
		"stage failed",
		logging.String(logging.FieldEventType, "stage_failure"),
		logging.String("error_message", message),
		logging.Error(stageErr),
	)
	if err := opts.Store.Update(ctx, opts.Session); err != nil {
		logger.Error("failed to persist stage failure", logging.Error(err))
	}

	if opts.Notifier != nil && stageErr != nil {
		contextLabel := fmt.Sprintf("%s (session %s)", opts.StageName, opts.Session.ID)
		if err := opts.Notifier.NotifyError(ctx, stageErr, contextLabel); err != nil {
			logger.Debug("stage error notification failed", logging.Error(err))
		}
	}

	return stageErr
}

func setProcessingState(sess *session.Session, processing session.Status) {
	sess.Status = processing
	if sess.ProgressStage == "" {
		sess.ProgressStage = deriveStageLabel(processing)
	}
	if sess.ProgressMessage == "" {
		sess.ProgressMessage = fmt.Sprintf("%s started", deriveStageLabel(processing))
	}
	sess.ErrorMessage = ""
}

func deriveStageLabel(status session.Status) string {
	if status == "" {
		return ""
	}
	parts := strings.Fields(strings.ReplaceAll(string(status), "_", " "))
	for i, part := range parts {
		if part == "" {
			continue
		}
		runes := []rune(strings.ToLower(part))
		runes[0] = unicode.ToUpper(runes[0])
		parts[i] = string(runes)
	}
	return strings.Join(parts, " ")
}
