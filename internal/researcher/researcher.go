// Package researcher implements the first pipeline stage: gathering raw
// background material on the topic via web search and expanding it into
// structured research notes.
package researcher

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"podforge/internal/logging"
	"podforge/internal/pipeline"
	"podforge/internal/services"
	"podforge/internal/services/llm"
	"podforge/internal/services/websearch"
	"podforge/internal/session"
	"podforge/internal/stage"
)

// ProducerName attributes generation events emitted by this stage.
const ProducerName = "researcher"

const systemPrompt = `You are an expert researcher specializing in gathering comprehensive information on any topic.

You are the first step in a podcast creation pipeline. Given a topic and a set of web search results, produce in-depth, exhaustive research notes that a later agent will summarize.

Guidelines:
1. Cover different aspects of the topic: recent developments, statistics, key facts.
2. Include expert opinions and diverse perspectives.
3. Identify interesting stories, case studies, or examples.
4. Note any controversies or debates around the topic.
5. Do NOT summarize yet; collect raw structured notes.

Format your output with these sections:
1. Research Notes: [Topic]
2. Key Facts & Statistics
3. Recent Developments
4. Expert Perspectives
5. Interesting Examples/Stories
6. Controversies/Debates

Do not include source URLs in the output.`

// TextGenerator is the streamed text-generation capability the stage consumes.
type TextGenerator interface {
	Stream(ctx context.Context, producer, systemPrompt, userPrompt string, emit func(llm.Event)) (string, error)
}

// Searcher is the web search capability.
type Searcher interface {
	Search(ctx context.Context, query string) ([]websearch.Result, error)
}

// Stage runs topic research for a session.
type Stage struct {
	store      *session.Store
	generator  TextGenerator
	searcher   Searcher
	maxResults int
	emit       func(llm.Event)
	logger     *slog.Logger
}

// NewStage constructs the research stage. emit may be nil.
func NewStage(store *session.Store, generator TextGenerator, searcher Searcher, maxResults int, emit func(llm.Event), logger *slog.Logger) *Stage {
	return &Stage{
		store:      store,
		generator:  generator,
		searcher:   searcher,
		maxResults: maxResults,
		emit:       emit,
		logger:     logging.NewComponentLogger(logger, "research-stage"),
	}
}

// SetLogger routes stage logs into the session-scoped logger.
func (s *Stage) SetLogger(logger *slog.Logger) {
	if s == nil {
		return
	}
	s.logger = logging.NewComponentLogger(logger, "research-stage")
}

// Prepare primes session progress fields before executing the stage.
func (s *Stage) Prepare(ctx context.Context, sess *session.Session) error {
	if s == nil || s.generator == nil {
		return services.Wrap(services.ErrConfiguration, "research", "prepare", "research stage is not configured", nil)
	}
	if strings.TrimSpace(sess.Topic) == "" {
		return services.Wrap(services.ErrValidation, "research", "prepare", "topic is required", nil)
	}
	sess.SetProgress("Research", "Gathering background material")
	return nil
}

// Execute performs web search and research note generation.
func (s *Stage) Execute(ctx context.Context, sess *session.Session) error {
	results := s.searchWithFallback(ctx, sess.Topic)

	var prompt strings.Builder
	fmt.Fprintf(&prompt, "Topic: %s\n\nWeb search results:\n", sess.Topic)
	for i, result := range results {
		fmt.Fprintf(&prompt, "%d. %s\n%s\n", i+1, result.Title, result.Snippet)
	}
	prompt.WriteString("\nProduce the research notes now.")

	notes, err := s.generator.Stream(ctx, ProducerName, systemPrompt, prompt.String(), s.emit)
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "research", "generate", "research generation failed", err)
	}
	if err := s.store.SaveArtifact(ctx, sess.ID, string(pipeline.StageResearch), notes); err != nil {
		return services.Wrap(services.ErrTransient, "research", "persist", "save research artifact", err)
	}

	sess.SetProgress("Research", fmt.Sprintf("Collected notes from %d search results", len(results)))
	s.logger.Info("research notes generated",
		logging.Int("search_results", len(results)),
		logging.Int("notes_bytes", len(notes)))
	return nil
}

// HealthCheck reports stage readiness.
func (s *Stage) HealthCheck(ctx context.Context) stage.Health {
	if s == nil || s.generator == nil {
		return stage.Unhealthy("research", "text generator unavailable")
	}
	return stage.Healthy("research")
}

// searchWithFallback degrades to a simulated result set so the pipeline keeps
// functioning without live search.
func (s *Stage) searchWithFallback(ctx context.Context, topic string) []websearch.Result {
	if s.searcher != nil {
		results, err := s.searcher.Search(ctx, topic)
		if err == nil && len(results) > 0 {
			return results
		}
		if err != nil {
			s.logger.Warn("web search failed, using simulated results", logging.Error(err))
		}
	}
	return websearch.Simulated(topic, s.maxResults)
}
