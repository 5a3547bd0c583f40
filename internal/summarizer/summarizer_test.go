package summarizer_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"podforge/internal/logging"
	"podforge/internal/pipeline"
	"podforge/internal/services"
	"podforge/internal/services/llm"
	"podforge/internal/summarizer"
	"podforge/internal/testsupport"
)

type fakeGenerator struct {
	output   string
	err      error
	lastUser string
}

func (f *fakeGenerator) Stream(_ context.Context, producer, _, userPrompt string, emit func(llm.Event)) (string, error) {
	f.lastUser = userPrompt
	if f.err != nil {
		return "", f.err
	}
	if emit != nil {
		emit(llm.Event{Producer: producer, Content: f.output, Final: true})
	}
	return f.output, nil
}

func TestPrepareLoadsResearchNotes(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	sess := testsupport.NewSession(t, store, "sess-sum", "wind power", t.TempDir())

	ctx := context.Background()
	if err := store.SaveArtifact(ctx, sess.ID, string(pipeline.StageResearch), "notes about wind"); err != nil {
		t.Fatalf("SaveArtifact: %v", err)
	}

	gen := &fakeGenerator{output: "Podcast Summary: Wind Power"}
	stg := summarizer.NewStage(store, gen, nil, logging.NewNop())
	if err := stg.Prepare(ctx, sess); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := stg.Execute(ctx, sess); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(gen.lastUser, "notes about wind") {
		t.Errorf("research notes not in prompt: %q", gen.lastUser)
	}
	saved, err := store.GetArtifact(ctx, sess.ID, string(pipeline.StageSummarize))
	if err != nil {
		t.Fatalf("GetArtifact: %v", err)
	}
	if saved != gen.output {
		t.Errorf("artifact = %q, want %q", saved, gen.output)
	}
}

func TestPrepareFailsWithoutResearchArtifact(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	sess := testsupport.NewSession(t, store, "sess-noresearch", "wind power", t.TempDir())

	stg := summarizer.NewStage(store, &fakeGenerator{}, nil, logging.NewNop())
	err := stg.Prepare(context.Background(), sess)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("err = %v, want validation marker", err)
	}
}

func TestExecuteWrapsGenerationFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	sess := testsupport.NewSession(t, store, "sess-sumfail", "wind power", t.TempDir())

	ctx := context.Background()
	if err := store.SaveArtifact(ctx, sess.ID, string(pipeline.StageResearch), "notes"); err != nil {
		t.Fatalf("SaveArtifact: %v", err)
	}
	cause := errors.New("upstream 503")
	stg := summarizer.NewStage(store, &fakeGenerator{err: cause}, nil, logging.NewNop())
	if err := stg.Prepare(ctx, sess); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := stg.Execute(ctx, sess); !errors.Is(err, cause) {
		t.Fatalf("err = %v, want wrapped %v", err, cause)
	}
}
