package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"podforge/internal/services"
)

func TestPrettyHandlerFormatsComponentAndFields(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	logger := slog.New(newPrettyHandler(&buf, lvl, false))

	logger.Info("stage started",
		String(FieldComponent, "researcher"),
		String(FieldStage, "research"),
		Int(FieldSegmentIndex, 3),
	)

	out := buf.String()
	if !strings.Contains(out, "INFO researcher: stage started") {
		t.Fatalf("unexpected output: %q", out)
	}
	if !strings.Contains(out, "stage=research") || !strings.Contains(out, "segment_index=3") {
		t.Fatalf("missing fields: %q", out)
	}
}

func TestPrettyHandlerQuotesValuesWithSpaces(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	logger := slog.New(newPrettyHandler(&buf, lvl, false))

	logger.Warn("segment skipped", String("reason", "zero channels"))

	if !strings.Contains(buf.String(), `reason="zero channels"`) {
		t.Fatalf("expected quoted value: %q", buf.String())
	}
}

func TestWithContextAddsSessionFields(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	base := slog.New(newPrettyHandler(&buf, lvl, false))

	ctx := services.WithSessionID(context.Background(), "abc123")
	ctx = services.WithStage(ctx, "summarize")

	WithContext(ctx, base).Info("hello")

	out := buf.String()
	if !strings.Contains(out, "session_id=abc123") || !strings.Contains(out, "stage=summarize") {
		t.Fatalf("context fields missing: %q", out)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "yaml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}
