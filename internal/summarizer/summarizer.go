// Package summarizer implements the second pipeline stage: condensing raw
// research notes into a structured summary for the scriptwriter.
package summarizer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"podforge/internal/logging"
	"podforge/internal/pipeline"
	"podforge/internal/services"
	"podforge/internal/services/llm"
	"podforge/internal/session"
	"podforge/internal/stage"
)

// ProducerName attributes generation events emitted by this stage.
const ProducerName = "summarizer"

const systemPrompt = `You are a skilled data analyst and content strategist specializing in synthesizing complex information.

You are the second step in a podcast creation pipeline. You receive raw research notes and must synthesize them into a compelling, exhaustive summary for the podcast scriptwriter.

Guidelines:
1. Identify the 3-5 most important themes or key takeaways.
2. Highlight controversial or debate-worthy points that would make good discussion.
3. Find surprising facts or statistics that would engage listeners.
4. Note any human interest stories or relatable examples.
5. Ignore irrelevant metadata or duplicate information.

Format your output with these sections:
1. Podcast Summary: Topic Title
2. Main Thesis
3. Key Themes
4. Discussion Points
5. Compelling Facts & Statistics
6. Human Interest Elements
7. Conclusion Angle

Do not include source URLs in the output.`

// TextGenerator is the streamed text-generation capability the stage consumes.
type TextGenerator interface {
	Stream(ctx context.Context, producer, systemPrompt, userPrompt string, emit func(llm.Event)) (string, error)
}

// Stage condenses research notes for a session.
type Stage struct {
	store     *session.Store
	generator TextGenerator
	emit      func(llm.Event)
	logger    *slog.Logger

	notes string
}

// NewStage constructs the summarize stage. emit may be nil.
func NewStage(store *session.Store, generator TextGenerator, emit func(llm.Event), logger *slog.Logger) *Stage {
	return &Stage{
		store:     store,
		generator: generator,
		emit:      emit,
		logger:    logging.NewComponentLogger(logger, "summarize-stage"),
	}
}

// SetLogger routes stage logs into the session-scoped logger.
func (s *Stage) SetLogger(logger *slog.Logger) {
	if s == nil {
		return
	}
	s.logger = logging.NewComponentLogger(logger, "summarize-stage")
}

// Prepare loads the upstream research artifact.
func (s *Stage) Prepare(ctx context.Context, sess *session.Session) error {
	if s == nil || s.generator == nil {
		return services.Wrap(services.ErrConfiguration, "summarize", "prepare", "summarize stage is not configured", nil)
	}
	notes, err := s.store.GetArtifact(ctx, sess.ID, string(pipeline.StageResearch))
	if err != nil {
		if errors.Is(err, session.ErrArtifactNotFound) {
			return services.Wrap(services.ErrValidation, "summarize", "prepare", "research notes missing; rerun research", err)
		}
		return services.Wrap(services.ErrTransient, "summarize", "prepare", "load research artifact", err)
	}
	if strings.TrimSpace(notes) == "" {
		return services.Wrap(services.ErrValidation, "summarize", "prepare", "research notes are empty", nil)
	}
	s.notes = notes
	sess.SetProgress("Summarize", "Synthesizing research notes")
	return nil
}

// Execute generates and persists the summary artifact.
func (s *Stage) Execute(ctx context.Context, sess *session.Session) error {
	prompt := fmt.Sprintf("Research notes to analyze:\n\n%s\n\nProduce the structured summary now.", s.notes)
	summary, err := s.generator.Stream(ctx, ProducerName, systemPrompt, prompt, s.emit)
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "summarize", "generate", "summary generation failed", err)
	}
	if err := s.store.SaveArtifact(ctx, sess.ID, string(pipeline.StageSummarize), summary); err != nil {
		return services.Wrap(services.ErrTransient, "summarize", "persist", "save summary artifact", err)
	}

	sess.SetProgress("Summarize", "Summary ready for scripting")
	s.logger.Info("summary generated", logging.Int("summary_bytes", len(summary)))
	return nil
}

// HealthCheck reports stage readiness.
func (s *Stage) HealthCheck(ctx context.Context) stage.Health {
	if s == nil || s.generator == nil {
		return stage.Unhealthy("summarize", "text generator unavailable")
	}
	return stage.Healthy("summarize")
}
