package producer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"podforge/internal/logging"
	"podforge/internal/pipeline"
	"podforge/internal/script"
	"podforge/internal/segments"
	"podforge/internal/services"
	"podforge/internal/session"
	"podforge/internal/stage"
)

// Stage adapts the producer to the stage handler contract. The orchestrator
// injects the parsed script before running it; script parse failures are a
// pipeline-level concern and never reach this stage.
type Stage struct {
	producer *Producer
	script   script.Script
	report   *Report
	logger   *slog.Logger
}

// NewStage wraps a producer for execution under the stage runner.
func NewStage(producer *Producer, logger *slog.Logger) *Stage {
	return &Stage{
		producer: producer,
		logger:   logging.NewComponentLogger(logger, "producer"),
	}
}

// SetScript injects the parsed dialogue script to synthesize.
func (s *Stage) SetScript(scr script.Script) {
	s.script = scr
}

// Report returns the outcome of the last Execute call.
func (s *Stage) Report() *Report {
	return s.report
}

// SetLogger implements stage.LoggerAware.
func (s *Stage) SetLogger(logger *slog.Logger) {
	s.logger = logging.NewComponentLogger(logger, "producer")
	s.producer.SetLogger(logger)
}

// Prepare validates the injected script and the session output directory.
func (s *Stage) Prepare(_ context.Context, sess *session.Session) error {
	if s.producer == nil {
		return services.Wrap(services.ErrConfiguration, "synthesize", "prepare", "synthesizer not configured", nil)
	}
	if s.script.SpeakableTurns() == 0 {
		return services.Wrap(services.ErrValidation, "synthesize", "prepare", "script has no speakable turns", nil)
	}
	if sess.OutputDir == "" {
		return services.Wrap(services.ErrValidation, "synthesize", "prepare", "session has no output directory", nil)
	}
	sess.SetProgress("Synthesize", fmt.Sprintf("Synthesizing %d dialogue turns", s.script.SpeakableTurns()))
	return nil
}

// Execute renders the script into the session output directory and records
// the segment count on the session. Soft per-turn errors stay in the report.
func (s *Stage) Execute(ctx context.Context, sess *session.Session) error {
	store, err := segments.NewStore(sess.OutputDir)
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "synthesize", "execute", "create segment directory", err)
	}
	report, err := s.producer.Synthesize(ctx, s.script, store)
	s.report = report
	if err != nil {
		return err
	}
	if report.Synthesized() == 0 && len(report.Errors) > 0 {
		return services.Wrap(services.ErrExternalTool, "synthesize", "execute",
			"every dialogue turn failed to synthesize", errors.Join(flatten(report.Errors)...))
	}
	sess.SegmentCount = report.Synthesized()
	sess.SetProgress("Synthesize", fmt.Sprintf("Synthesized %d segments (%d failed, %d empty)",
		report.Synthesized(), len(report.Errors), report.Skipped))
	return nil
}

// HealthCheck reports whether a synthesizer is wired in.
func (s *Stage) HealthCheck(_ context.Context) stage.Health {
	if s.producer == nil || s.producer.synth == nil {
		return stage.Unhealthy("synthesize", "no speech synthesizer configured")
	}
	return stage.Healthy("synthesize")
}

func flatten(errs []*pipeline.SegmentSynthesisError) []error {
	out := make([]error, len(errs))
	for i, e := range errs {
		out[i] = e
	}
	return out
}
