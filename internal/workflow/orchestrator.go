// Package workflow drives a complete podcast run: it owns session creation,
// the fixed stage order, artifact reconciliation at the text/audio boundary,
// and terminal status handling.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"podforge/internal/config"
	"podforge/internal/logging"
	"podforge/internal/notifications"
	"podforge/internal/pipeline"
	"podforge/internal/producer"
	"podforge/internal/researcher"
	"podforge/internal/script"
	"podforge/internal/scriptwriter"
	"podforge/internal/services/llm"
	"podforge/internal/session"
	"podforge/internal/stage"
	"podforge/internal/stageexec"
	"podforge/internal/stitch"
	"podforge/internal/summarizer"
)

// TextGenerator is the streamed text-generation capability shared by the
// three text stages.
type TextGenerator interface {
	Stream(ctx context.Context, producer, systemPrompt, userPrompt string, emit func(llm.Event)) (string, error)
}

// Searcher is the web search capability used by the research stage.
type Searcher = researcher.Searcher

// Dependencies holds the external capabilities a run needs. Notifier and
// Emit are optional.
type Dependencies struct {
	Generator   TextGenerator
	Searcher    Searcher
	Synthesizer producer.Synthesizer
	Notifier    notifications.Service
	// Emit observes streamed generation events (for live display). The
	// orchestrator always records events in its own collector regardless.
	Emit func(llm.Event)
}

// RunResult carries everything a run produced, including partial artifacts
// when the run failed or was cancelled part-way.
type RunResult struct {
	SessionID string
	Topic     string
	OutputDir string
	Artifacts *pipeline.State
	Script    script.Script
	Report    *producer.Report
	Podcast   *stitch.StitchedPodcast
}

// Orchestrator executes podcast runs.
type Orchestrator struct {
	cfg      *config.Config
	store    *session.Store
	deps     Dependencies
	notifier notifications.Service
	logger   *slog.Logger
}

// New constructs an orchestrator.
func New(cfg *config.Config, store *session.Store, deps Dependencies, logger *slog.Logger) (*Orchestrator, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if store == nil {
		return nil, fmt.Errorf("session store is required")
	}
	if deps.Generator == nil {
		return nil, fmt.Errorf("text generator is required")
	}
	if deps.Synthesizer == nil {
		return nil, fmt.Errorf("speech synthesizer is required")
	}
	notifier := deps.Notifier
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}
	return &Orchestrator{
		cfg:      cfg,
		store:    store,
		deps:     deps,
		notifier: notifier,
		logger:   logging.NewComponentLogger(logger, "workflow"),
	}, nil
}

type textStage struct {
	name       pipeline.StageName
	producer   string
	handler    stageexec.Handler
	processing session.Status
	done       session.Status
	kind       pipeline.ArtifactKind
}

// Run executes the full pipeline for a topic. The returned RunResult is
// non-nil even on failure so callers can inspect partial artifacts.
func (o *Orchestrator) Run(ctx context.Context, topic string) (*RunResult, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, fmt.Errorf("topic is required")
	}

	runDir := filepath.Join(o.cfg.Paths.OutputDir,
		fmt.Sprintf("podcast_%s", time.Now().Format("20060102_150405")))
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return nil, fmt.Errorf("create run directory: %w", err)
	}

	sess, err := o.store.New(ctx, uuid.NewString(), topic, runDir)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	result := &RunResult{
		SessionID: sess.ID,
		Topic:     topic,
		OutputDir: runDir,
		Artifacts: pipeline.NewState(),
	}

	if err := o.notifier.NotifyRunStarted(ctx, topic); err != nil {
		o.logger.Debug("run start notification failed", logging.Error(err))
	}

	collector := pipeline.NewCollector()
	emit := func(ev llm.Event) {
		collector.OnEvent(ev)
		if o.deps.Emit != nil {
			o.deps.Emit(ev)
		}
	}

	stages := []textStage{
		{
			name:       pipeline.StageResearch,
			producer:   researcher.ProducerName,
			handler:    researcher.NewStage(o.store, o.deps.Generator, o.deps.Searcher, o.cfg.Search.MaxResults, emit, o.logger),
			processing: session.StatusResearching,
			done:       session.StatusResearched,
			kind:       pipeline.KindResearchNotes,
		},
		{
			name:       pipeline.StageSummarize,
			producer:   summarizer.ProducerName,
			handler:    summarizer.NewStage(o.store, o.deps.Generator, emit, o.logger),
			processing: session.StatusSummarizing,
			done:       session.StatusSummarized,
			kind:       pipeline.KindSummary,
		},
		{
			name:       pipeline.StageScript,
			producer:   scriptwriter.ProducerName,
			handler:    scriptwriter.NewStage(o.store, o.deps.Generator, emit, o.logger),
			processing: session.StatusScripting,
			done:       session.StatusScripted,
			kind:       pipeline.KindScript,
		},
	}

	for _, ts := range stages {
		err := stageexec.Run(ctx, stageexec.Options{
			Logger:     o.logger,
			Store:      o.store,
			Notifier:   o.notifier,
			Handler:    ts.handler,
			StageName:  string(ts.name),
			Processing: ts.processing,
			Done:       ts.done,
			Session:    sess,
			Timeout:    o.stageTimeout(),
		})
		o.reconcile(ctx, sess.ID, collector, result.Artifacts, ts)
		if err != nil {
			if cancelErr := o.markCancelled(ctx, sess, err); cancelErr != nil {
				return result, cancelErr
			}
			return result, &pipeline.StageExecutionError{Stage: ts.name, Err: err}
		}
		if err := o.notifier.NotifyStageCompleted(ctx, string(ts.name), topic); err != nil {
			o.logger.Debug("stage notification failed", logging.Error(err))
		}
	}

	scr, err := o.parseScript(ctx, sess, result.Artifacts)
	if err != nil {
		return result, err
	}
	result.Script = scr

	prodStage := producer.NewStage(producer.New(o.deps.Synthesizer, o.cfg.TTS.Workers, o.logger), o.logger)
	prodStage.SetScript(scr)
	err = stageexec.Run(ctx, stageexec.Options{
		Logger:     o.logger,
		Store:      o.store,
		Notifier:   o.notifier,
		Handler:    prodStage,
		StageName:  string(pipeline.StageSynthesize),
		Processing: session.StatusSynthesizing,
		Done:       session.StatusSynthesized,
		Session:    sess,
		Timeout:    o.stageTimeout(),
	})
	result.Report = prodStage.Report()
	if err != nil {
		if cancelErr := o.markCancelled(ctx, sess, err); cancelErr != nil {
			return result, cancelErr
		}
		return result, &pipeline.StageExecutionError{Stage: pipeline.StageSynthesize, Err: err}
	}

	stitchStage := stitch.NewStage(stitch.New(o.logger), o.logger)
	err = stageexec.Run(ctx, stageexec.Options{
		Logger:     o.logger,
		Store:      o.store,
		Notifier:   o.notifier,
		Handler:    stitchStage,
		StageName:  string(pipeline.StageStitch),
		Processing: session.StatusStitching,
		Done:       session.StatusCompleted,
		Session:    sess,
		Timeout:    o.stageTimeout(),
	})
	result.Podcast = stitchStage.Result()
	if err != nil {
		if cancelErr := o.markCancelled(ctx, sess, err); cancelErr != nil {
			return result, cancelErr
		}
		return result, &pipeline.StageExecutionError{Stage: pipeline.StageStitch, Err: err}
	}

	if result.Podcast != nil {
		duration := time.Duration(result.Podcast.DurationSeconds * float64(time.Second))
		if err := o.notifier.NotifyPodcastCompleted(ctx, topic, result.Podcast.OutputPath, duration, result.Podcast.SegmentCount); err != nil {
			o.logger.Debug("completion notification failed", logging.Error(err))
		}
	}
	return result, nil
}

// HealthCheck probes every stage handler without starting a session.
func (o *Orchestrator) HealthCheck(ctx context.Context) []stage.Health {
	handlers := []stage.Handler{
		researcher.NewStage(o.store, o.deps.Generator, o.deps.Searcher, o.cfg.Search.MaxResults, nil, o.logger),
		summarizer.NewStage(o.store, o.deps.Generator, nil, o.logger),
		scriptwriter.NewStage(o.store, o.deps.Generator, nil, o.logger),
		producer.NewStage(producer.New(o.deps.Synthesizer, o.cfg.TTS.Workers, o.logger), o.logger),
		stitch.NewStage(stitch.New(o.logger), o.logger),
	}
	checks := make([]stage.Health, 0, len(handlers))
	for _, handler := range handlers {
		checks = append(checks, handler.HealthCheck(ctx))
	}
	return checks
}

// reconcile adopts the stage's artifact into the run state. The session store
// is authoritative; when reading it fails the collector's latest emission for
// the producer is used instead. A read failure is never fatal here.
func (o *Orchestrator) reconcile(ctx context.Context, sessionID string, collector *pipeline.Collector, state *pipeline.State, ts textStage) {
	text, err := o.store.GetArtifact(ctx, sessionID, string(ts.name))
	if err != nil {
		if !errors.Is(err, session.ErrArtifactNotFound) {
			o.logger.Warn("artifact read failed, falling back to streamed text",
				logging.String(logging.FieldStage, string(ts.name)), logging.Error(err))
		}
		text, _ = collector.Latest(ts.producer)
	}
	if text == "" {
		return
	}
	state.Commit(ts.name, pipeline.Artifact{Kind: ts.kind, Text: text})
}

// parseScript enforces the structural contract at the text/audio boundary.
// Failures here are fatal to the audio path only: the session is marked
// failed but the text artifacts remain in the result.
func (o *Orchestrator) parseScript(ctx context.Context, sess *session.Session, state *pipeline.State) (script.Script, error) {
	raw := state.Text(pipeline.StageScript)
	if strings.TrimSpace(raw) == "" {
		missingErr := &pipeline.MissingScriptError{}
		o.failSession(ctx, sess, missingErr)
		return nil, missingErr
	}
	scr, err := script.Parse(raw)
	if err != nil {
		o.failSession(ctx, sess, err)
		return nil, err
	}
	if artifact, ok := state.Get(pipeline.StageScript); ok {
		artifact.Script = scr
		// Re-commit is a no-op on the write-once map; mutate via replace.
		state.Replace(pipeline.StageScript, artifact)
	}
	return scr, nil
}

func (o *Orchestrator) failSession(ctx context.Context, sess *session.Session, cause error) {
	sess.SetFailed(cause.Error())
	if err := o.store.Update(ctx, sess); err != nil {
		o.logger.Error("failed to persist session failure", logging.Error(err))
	}
	if err := o.notifier.NotifyError(ctx, cause, fmt.Sprintf("script (session %s)", sess.ID)); err != nil {
		o.logger.Debug("error notification failed", logging.Error(err))
	}
}

// markCancelled converts a stage failure caused by context cancellation into
// the cancelled terminal status. Returns the context error when the run was
// cancelled, nil otherwise.
func (o *Orchestrator) markCancelled(ctx context.Context, sess *session.Session, stageErr error) error {
	// A stage-level timeout also surfaces as context.DeadlineExceeded, so
	// the run context alone decides whether the user cancelled.
	if ctx.Err() == nil {
		return nil
	}
	sess.Status = session.StatusCancelled
	sess.SetProgress("Cancelled", "Run cancelled; partial artifacts retained")
	// Persist with a fresh context: the run context is already dead.
	persistCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := o.store.Update(persistCtx, sess); err != nil {
		o.logger.Error("failed to persist cancellation", logging.Error(err))
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return stageErr
}

// stageTimeout converts the configured per-stage bound to a duration.
func (o *Orchestrator) stageTimeout() time.Duration {
	if o.cfg.Pipeline.StageTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(o.cfg.Pipeline.StageTimeoutSeconds) * time.Second
}
