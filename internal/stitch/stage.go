package stitch

import (
	"context"
	"fmt"
	"log/slog"

	"podforge/internal/logging"
	"podforge/internal/services"
	"podforge/internal/session"
	"podforge/internal/stage"
)

// Stage adapts the stitcher to the stage handler contract.
type Stage struct {
	stitcher *Stitcher
	result   *StitchedPodcast
	logger   *slog.Logger
}

// NewStage wraps a stitcher for execution under the stage runner.
func NewStage(stitcher *Stitcher, logger *slog.Logger) *Stage {
	return &Stage{
		stitcher: stitcher,
		logger:   logging.NewComponentLogger(logger, "stitch-stage"),
	}
}

// Result returns the stitched podcast from the last Execute call.
func (s *Stage) Result() *StitchedPodcast {
	return s.result
}

// SetLogger implements stage.LoggerAware.
func (s *Stage) SetLogger(logger *slog.Logger) {
	s.logger = logging.NewComponentLogger(logger, "stitch-stage")
	s.stitcher.SetLogger(logger)
}

// Prepare validates the session output directory.
func (s *Stage) Prepare(_ context.Context, sess *session.Session) error {
	if s.stitcher == nil {
		return services.Wrap(services.ErrConfiguration, "stitch", "prepare", "stitcher not configured", nil)
	}
	if sess.OutputDir == "" {
		return services.Wrap(services.ErrValidation, "stitch", "prepare", "session has no output directory", nil)
	}
	sess.SetProgress("Stitch", "Concatenating audio segments")
	return nil
}

// Execute concatenates the session's segments and records the result on the
// session.
func (s *Stage) Execute(ctx context.Context, sess *session.Session) error {
	result, err := s.stitcher.Stitch(ctx, sess.OutputDir, DefaultOutputName)
	if err != nil {
		return err
	}
	s.result = result
	sess.SegmentCount = result.SegmentCount
	sess.DurationSeconds = result.DurationSeconds
	sess.SetProgress("Stitch", fmt.Sprintf("Wrote %s (%.1fs, %d segments)",
		DefaultOutputName, result.DurationSeconds, result.SegmentCount))
	return nil
}

// HealthCheck reports whether the stitcher is wired in.
func (s *Stage) HealthCheck(_ context.Context) stage.Health {
	if s.stitcher == nil {
		return stage.Unhealthy("stitch", "stitcher not configured")
	}
	return stage.Healthy("stitch")
}
