package workflow_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"podforge/internal/logging"
	"podforge/internal/media/wav"
	"podforge/internal/pipeline"
	"podforge/internal/script"
	"podforge/internal/services/llm"
	"podforge/internal/services/websearch"
	"podforge/internal/session"
	"podforge/internal/testsupport"
	"podforge/internal/workflow"
)

const scriptJSON = `[
  {"speaker": "Host", "text": "Welcome to The Podcast Engine! Today: solar energy."},
  {"speaker": "Expert", "text": "Thanks for having me. Solar has grown enormously."}
]`

// scriptedGenerator returns canned text per producer name. When quiet it
// never emits streaming events, so artifacts only exist in the session store.
type scriptedGenerator struct {
	mu      sync.Mutex
	outputs map[string]string
	errs    map[string]error
	onCall  func(producer string)
	quiet   bool
}

func newScriptedGenerator() *scriptedGenerator {
	return &scriptedGenerator{
		outputs: map[string]string{
			"researcher":   "Research Notes: solar energy",
			"summarizer":   "Podcast Summary: Solar Energy",
			"scriptwriter": scriptJSON,
		},
		errs: map[string]error{},
	}
}

func (g *scriptedGenerator) Stream(ctx context.Context, producer, _, _ string, emit func(llm.Event)) (string, error) {
	if g.onCall != nil {
		g.onCall(producer)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	g.mu.Lock()
	out, err := g.outputs[producer], g.errs[producer]
	g.mu.Unlock()
	if err != nil {
		return "", err
	}
	if emit != nil && !g.quiet {
		emit(llm.Event{Producer: producer, Content: out, Final: true})
	}
	return out, nil
}

// stallingGenerator blocks on one producer until its context expires.
type stallingGenerator struct {
	*scriptedGenerator
	stall string
}

func (g *stallingGenerator) Stream(ctx context.Context, producer, systemPrompt, userPrompt string, emit func(llm.Event)) (string, error) {
	if producer == g.stall {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return g.scriptedGenerator.Stream(ctx, producer, systemPrompt, userPrompt, emit)
}

// interruptedGenerator emits a partial accumulation and then fails, so the
// stage never persists an artifact to the store.
type interruptedGenerator struct{}

func (interruptedGenerator) Stream(_ context.Context, producer, _, _ string, emit func(llm.Event)) (string, error) {
	if emit != nil {
		emit(llm.Event{Producer: producer, Content: "Partial notes: solar energy"})
	}
	return "", errors.New("stream interrupted")
}

type stubSearcher struct{}

func (stubSearcher) Search(context.Context, string) ([]websearch.Result, error) {
	return []websearch.Result{{Title: "Solar doubles", Snippet: "Installs surged."}}, nil
}

type stubSynth struct{}

func (stubSynth) Synthesize(context.Context, string, script.Speaker) ([]byte, wav.Format, error) {
	format := wav.Format{SampleRate: 16000, Channels: 1, BitsPerSample: 16}
	return make([]byte, format.BlockAlign()*160), format, nil
}

func newOrchestrator(t *testing.T, gen workflow.TextGenerator, opts ...testsupport.ConfigOption) (*workflow.Orchestrator, *session.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	store := testsupport.MustOpenStore(t, cfg)
	orch, err := workflow.New(cfg, store, workflow.Dependencies{
		Generator:   gen,
		Searcher:    stubSearcher{},
		Synthesizer: stubSynth{},
	}, logging.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return orch, store
}

func TestRunProducesFinalPodcast(t *testing.T) {
	orch, store := newOrchestrator(t, newScriptedGenerator())

	result, err := orch.Run(context.Background(), "solar energy")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Podcast == nil {
		t.Fatal("no stitched podcast in result")
	}
	if result.Podcast.SegmentCount != 2 {
		t.Errorf("segment count = %d, want 2", result.Podcast.SegmentCount)
	}
	if filepath.Base(result.Podcast.OutputPath) != "final_podcast.wav" {
		t.Errorf("output = %s, want final_podcast.wav", result.Podcast.OutputPath)
	}
	if _, err := os.Stat(result.Podcast.OutputPath); err != nil {
		t.Errorf("final podcast missing on disk: %v", err)
	}
	for _, name := range []string{"segment_000_host.wav", "segment_001_expert.wav"} {
		if _, err := os.Stat(filepath.Join(result.OutputDir, name)); err != nil {
			t.Errorf("segment missing: %v", err)
		}
	}

	sess, err := store.GetByID(context.Background(), result.SessionID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if sess.Status != session.StatusCompleted {
		t.Errorf("status = %s, want completed", sess.Status)
	}
	if sess.SegmentCount != 2 {
		t.Errorf("session segment count = %d, want 2", sess.SegmentCount)
	}

	if got := result.Artifacts.Text(pipeline.StageResearch); got != "Research Notes: solar energy" {
		t.Errorf("research artifact = %q", got)
	}
	if len(result.Script) != 2 {
		t.Errorf("parsed script turns = %d, want 2", len(result.Script))
	}
}

func TestRunScriptFormatErrorKeepsTextArtifacts(t *testing.T) {
	gen := newScriptedGenerator()
	gen.outputs["scriptwriter"] = "Sure, here is the script you asked for."
	orch, store := newOrchestrator(t, gen)

	result, err := orch.Run(context.Background(), "solar energy")
	var formatErr *script.FormatError
	if !errors.As(err, &formatErr) {
		t.Fatalf("err = %v, want script format error", err)
	}
	if result == nil {
		t.Fatal("result should carry partial artifacts")
	}
	if result.Artifacts.Text(pipeline.StageResearch) == "" {
		t.Error("research artifact should survive the script failure")
	}
	if result.Artifacts.Text(pipeline.StageSummarize) == "" {
		t.Error("summary artifact should survive the script failure")
	}
	if result.Artifacts.Text(pipeline.StageScript) == "" {
		t.Error("raw script text should still be in the result")
	}
	if result.Podcast != nil {
		t.Error("no podcast should be produced")
	}

	sess, getErr := store.GetByID(context.Background(), result.SessionID)
	if getErr != nil {
		t.Fatalf("GetByID: %v", getErr)
	}
	if sess.Status != session.StatusFailed {
		t.Errorf("status = %s, want failed", sess.Status)
	}
}

func TestRunMissingScriptArtifact(t *testing.T) {
	gen := newScriptedGenerator()
	gen.outputs["scriptwriter"] = ""
	orch, _ := newOrchestrator(t, gen)

	result, err := orch.Run(context.Background(), "solar energy")
	var missing *pipeline.MissingScriptError
	if !errors.As(err, &missing) {
		t.Fatalf("err = %v, want missing script error", err)
	}
	if result.Artifacts.Text(pipeline.StageSummarize) == "" {
		t.Error("summary artifact should survive")
	}
}

func TestRunStageFailureWrapsStage(t *testing.T) {
	gen := newScriptedGenerator()
	gen.errs["summarizer"] = errors.New("model blew up")
	orch, store := newOrchestrator(t, gen)

	result, err := orch.Run(context.Background(), "solar energy")
	var stageErr *pipeline.StageExecutionError
	if !errors.As(err, &stageErr) {
		t.Fatalf("err = %v, want stage execution error", err)
	}
	if stageErr.Stage != pipeline.StageSummarize {
		t.Errorf("failing stage = %s, want summary", stageErr.Stage)
	}
	if result.Artifacts.Text(pipeline.StageResearch) == "" {
		t.Error("research artifact should survive a later stage failure")
	}

	sess, getErr := store.GetByID(context.Background(), result.SessionID)
	if getErr != nil {
		t.Fatalf("GetByID: %v", getErr)
	}
	if sess.Status != session.StatusFailed {
		t.Errorf("status = %s, want failed", sess.Status)
	}
}

func TestRunCancellationReturnsPartials(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	gen := newScriptedGenerator()
	gen.onCall = func(producer string) {
		if producer == "summarizer" {
			cancel()
		}
	}
	orch, store := newOrchestrator(t, gen)

	result, err := orch.Run(ctx, "solar energy")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if result.Artifacts.Text(pipeline.StageResearch) == "" {
		t.Error("research artifact should survive cancellation")
	}

	sess, getErr := store.GetByID(context.Background(), result.SessionID)
	if getErr != nil {
		t.Fatalf("GetByID: %v", getErr)
	}
	if sess.Status != session.StatusCancelled {
		t.Errorf("status = %s, want cancelled", sess.Status)
	}
}

func TestRunRejectsEmptyTopic(t *testing.T) {
	orch, _ := newOrchestrator(t, newScriptedGenerator())
	if _, err := orch.Run(context.Background(), "   "); err == nil {
		t.Fatal("empty topic should be rejected")
	}
}

func TestRunStageTimeoutFailsStage(t *testing.T) {
	gen := &stallingGenerator{scriptedGenerator: newScriptedGenerator(), stall: "summarizer"}
	orch, store := newOrchestrator(t, gen, testsupport.WithStageTimeout(1), testsupport.WithTTSWorkers(1))

	result, err := orch.Run(context.Background(), "solar energy")
	var stageErr *pipeline.StageExecutionError
	if !errors.As(err, &stageErr) {
		t.Fatalf("err = %v, want stage execution error", err)
	}
	if stageErr.Stage != pipeline.StageSummarize {
		t.Errorf("failing stage = %s, want summary", stageErr.Stage)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want wrapped deadline exceeded", err)
	}

	// A stage timeout is a failure, not a user cancellation.
	sess, getErr := store.GetByID(context.Background(), result.SessionID)
	if getErr != nil {
		t.Fatalf("GetByID: %v", getErr)
	}
	if sess.Status != session.StatusFailed {
		t.Errorf("status = %s, want failed", sess.Status)
	}
}

func TestRunReconcilesFromStoreWithoutStreaming(t *testing.T) {
	gen := newScriptedGenerator()
	gen.quiet = true
	orch, _ := newOrchestrator(t, gen)

	result, err := orch.Run(context.Background(), "solar energy")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	// Nothing was ever streamed, so every artifact came out of the store.
	if got := result.Artifacts.Text(pipeline.StageResearch); got != "Research Notes: solar energy" {
		t.Errorf("research artifact = %q", got)
	}
	if got := result.Artifacts.Text(pipeline.StageSummarize); got != "Podcast Summary: Solar Energy" {
		t.Errorf("summary artifact = %q", got)
	}
	if result.Podcast == nil {
		t.Error("run should still produce a podcast")
	}
}

func TestRunFallsBackToStreamedTextOnStageFailure(t *testing.T) {
	orch, _ := newOrchestrator(t, interruptedGenerator{})

	result, err := orch.Run(context.Background(), "solar energy")
	var stageErr *pipeline.StageExecutionError
	if !errors.As(err, &stageErr) {
		t.Fatalf("err = %v, want stage execution error", err)
	}
	if stageErr.Stage != pipeline.StageResearch {
		t.Errorf("failing stage = %s, want research", stageErr.Stage)
	}
	// The stage died before persisting, so the result falls back to the
	// last streamed accumulation.
	if got := result.Artifacts.Text(pipeline.StageResearch); got != "Partial notes: solar energy" {
		t.Errorf("research artifact = %q", got)
	}
}
