package researcher_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"podforge/internal/logging"
	"podforge/internal/pipeline"
	"podforge/internal/researcher"
	"podforge/internal/services/llm"
	"podforge/internal/services/websearch"
	"podforge/internal/testsupport"
)

type fakeGenerator struct {
	output     string
	err        error
	lastUser   string
	lastSystem string
	producer   string
}

func (f *fakeGenerator) Stream(_ context.Context, producer, systemPrompt, userPrompt string, emit func(llm.Event)) (string, error) {
	f.producer = producer
	f.lastSystem = systemPrompt
	f.lastUser = userPrompt
	if f.err != nil {
		return "", f.err
	}
	if emit != nil {
		emit(llm.Event{Producer: producer, Content: f.output, Final: true})
	}
	return f.output, nil
}

type fakeSearcher struct {
	results []websearch.Result
	err     error
}

func (f *fakeSearcher) Search(context.Context, string) ([]websearch.Result, error) {
	return f.results, f.err
}

func TestExecuteSavesResearchArtifact(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	sess := testsupport.NewSession(t, store, "sess-research", "solar energy", t.TempDir())

	gen := &fakeGenerator{output: "Research Notes: solar energy"}
	searcher := &fakeSearcher{results: []websearch.Result{
		{Title: "Solar capacity doubles", Snippet: "Global installs surged."},
	}}
	stg := researcher.NewStage(store, gen, searcher, 5, nil, logging.NewNop())

	ctx := context.Background()
	if err := stg.Prepare(ctx, sess); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := stg.Execute(ctx, sess); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if gen.producer != researcher.ProducerName {
		t.Errorf("producer = %q, want %q", gen.producer, researcher.ProducerName)
	}
	if !strings.Contains(gen.lastUser, "Solar capacity doubles") {
		t.Errorf("search results not in prompt: %q", gen.lastUser)
	}
	saved, err := store.GetArtifact(ctx, sess.ID, string(pipeline.StageResearch))
	if err != nil {
		t.Fatalf("GetArtifact: %v", err)
	}
	if saved != gen.output {
		t.Errorf("artifact = %q, want %q", saved, gen.output)
	}
}

func TestExecuteFallsBackToSimulatedSearch(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	sess := testsupport.NewSession(t, store, "sess-fallback", "fusion power", t.TempDir())

	gen := &fakeGenerator{output: "notes"}
	searcher := &fakeSearcher{err: errors.New("network down")}
	stg := researcher.NewStage(store, gen, searcher, 3, nil, logging.NewNop())

	if err := stg.Execute(context.Background(), sess); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(gen.lastUser, "fusion power") {
		t.Errorf("topic missing from prompt: %q", gen.lastUser)
	}
	// Simulated results mention the topic in every title.
	if !strings.Contains(gen.lastUser, "Research Result 1: fusion power") {
		t.Errorf("simulated results not in prompt: %q", gen.lastUser)
	}
}

func TestPrepareRejectsEmptyTopic(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	sess := testsupport.NewSession(t, store, "sess-empty", "placeholder", t.TempDir())
	sess.Topic = "   "

	stg := researcher.NewStage(store, &fakeGenerator{}, nil, 5, nil, logging.NewNop())
	if err := stg.Prepare(context.Background(), sess); err == nil {
		t.Fatal("Prepare should reject an empty topic")
	}
}

func TestExecuteWrapsGenerationFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	sess := testsupport.NewSession(t, store, "sess-genfail", "ai safety", t.TempDir())

	cause := errors.New("model unavailable")
	stg := researcher.NewStage(store, &fakeGenerator{err: cause}, nil, 5, nil, logging.NewNop())
	err := stg.Execute(context.Background(), sess)
	if !errors.Is(err, cause) {
		t.Fatalf("err = %v, want wrapped %v", err, cause)
	}
}
