// Package scriptwriter implements the third pipeline stage: turning the
// summary into a two-voice dialogue script with a strict JSON contract.
package scriptwriter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"podforge/internal/logging"
	"podforge/internal/pipeline"
	"podforge/internal/script"
	"podforge/internal/services"
	"podforge/internal/services/llm"
	"podforge/internal/session"
	"podforge/internal/stage"
)

// ProducerName attributes generation events emitted by this stage.
const ProducerName = "scriptwriter"

const systemPrompt = `You are a professional podcast scriptwriter known for creating engaging, natural-sounding dialogue.

You are the third step in a podcast creation pipeline. You receive a structured summary and must convert it into a compelling podcast script with dialogue between two hosts.

Characters:
1. Host: an enthusiastic, curious interviewer who asks great questions and keeps the conversation flowing.
2. Expert: a knowledgeable analyst who explains complex topics simply and speaks with authority while remaining accessible.

Script guidelines:
1. Create natural, conversational dialogue; avoid robotic or overly formal language.
2. Start with a hook that grabs attention; the Host opens with "Welcome to The Podcast Engine!".
3. Build the conversation logically through the key themes.
4. Keep individual speaking turns to 2-4 sentences for natural pacing.
5. Include occasional verbal fillers and short Host interjections for realism.
6. End with a memorable conclusion.

CRITICAL output format:
You MUST output ONLY a valid JSON array. Each element must have exactly two keys: "speaker" and "text". "speaker" is either "Host" or "Expert". No additional text, markdown, or explanations.`

// TextGenerator is the streamed text-generation capability the stage consumes.
type TextGenerator interface {
	Stream(ctx context.Context, producer, systemPrompt, userPrompt string, emit func(llm.Event)) (string, error)
}

// Stage writes the dialogue script for a session.
type Stage struct {
	store     *session.Store
	generator TextGenerator
	emit      func(llm.Event)
	logger    *slog.Logger

	summary string
}

// NewStage constructs the script stage. emit may be nil.
func NewStage(store *session.Store, generator TextGenerator, emit func(llm.Event), logger *slog.Logger) *Stage {
	return &Stage{
		store:     store,
		generator: generator,
		emit:      emit,
		logger:    logging.NewComponentLogger(logger, "script-stage"),
	}
}

// SetLogger routes stage logs into the session-scoped logger.
func (s *Stage) SetLogger(logger *slog.Logger) {
	if s == nil {
		return
	}
	s.logger = logging.NewComponentLogger(logger, "script-stage")
}

// Prepare loads the upstream summary artifact.
func (s *Stage) Prepare(ctx context.Context, sess *session.Session) error {
	if s == nil || s.generator == nil {
		return services.Wrap(services.ErrConfiguration, "script", "prepare", "script stage is not configured", nil)
	}
	summary, err := s.store.GetArtifact(ctx, sess.ID, string(pipeline.StageSummarize))
	if err != nil {
		if errors.Is(err, session.ErrArtifactNotFound) {
			return services.Wrap(services.ErrValidation, "script", "prepare", "summary missing; rerun summarize", err)
		}
		return services.Wrap(services.ErrTransient, "script", "prepare", "load summary artifact", err)
	}
	if strings.TrimSpace(summary) == "" {
		return services.Wrap(services.ErrValidation, "script", "prepare", "summary is empty", nil)
	}
	s.summary = summary
	sess.SetProgress("Script", "Writing dialogue")
	return nil
}

// Execute generates the script text and persists it as an artifact. The text
// is persisted raw; structural parsing happens at the audio boundary so that
// the artifact survives even when parsing fails.
func (s *Stage) Execute(ctx context.Context, sess *session.Session) error {
	prompt := fmt.Sprintf("Summary to convert:\n\n%s\n\nOutput the JSON dialogue array now.", s.summary)
	raw, err := s.generator.Stream(ctx, ProducerName, systemPrompt, prompt, s.emit)
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "script", "generate", "script generation failed", err)
	}
	if err := s.store.SaveArtifact(ctx, sess.ID, string(pipeline.StageScript), raw); err != nil {
		return services.Wrap(services.ErrTransient, "script", "persist", "save script artifact", err)
	}

	if parsed, parseErr := script.Parse(raw); parseErr == nil {
		sess.SetProgress("Script", fmt.Sprintf("Dialogue ready: %d turns", len(parsed)))
	} else {
		// Not fatal here: parsing is re-attempted at the audio boundary and
		// surfaces there as a script format failure.
		s.logger.Warn("script text does not parse yet", logging.Error(parseErr))
		sess.SetProgress("Script", "Dialogue text produced")
	}
	s.logger.Info("script generated", logging.Int("script_bytes", len(raw)))
	return nil
}

// HealthCheck reports stage readiness.
func (s *Stage) HealthCheck(ctx context.Context) stage.Health {
	if s == nil || s.generator == nil {
		return stage.Unhealthy("script", "text generator unavailable")
	}
	return stage.Healthy("script")
}
