package script

import (
	"errors"
	"testing"
)

func TestParsePlainJSON(t *testing.T) {
	t.Parallel()

	got, err := Parse(`[{"speaker":"Host","text":"Welcome to the show."},{"speaker":"Expert","text":"Thanks for having me."}]`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("turns = %d, want 2", len(got))
	}
	if got[0].Speaker != SpeakerHost || got[1].Speaker != SpeakerExpert {
		t.Fatalf("unexpected speakers: %v, %v", got[0].Speaker, got[1].Speaker)
	}
}

func TestParseFencedJSONMatchesPlain(t *testing.T) {
	t.Parallel()

	plain := `[{"speaker":"Host","text":"Hello."}]`
	fenced := "```json\n" + plain + "\n```"

	a, err := Parse(plain)
	if err != nil {
		t.Fatalf("Parse plain: %v", err)
	}
	b, err := Parse(fenced)
	if err != nil {
		t.Fatalf("Parse fenced: %v", err)
	}
	if len(a) != len(b) || a[0] != b[0] {
		t.Fatalf("fenced parse diverged: %v vs %v", a, b)
	}
}

func TestParseNormalizesSpeakerCase(t *testing.T) {
	t.Parallel()

	got, err := Parse(`[{"speaker":"host","text":"Hi."},{"speaker":"EXPERT","text":"Hi back."}]`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got[0].Speaker != SpeakerHost || got[1].Speaker != SpeakerExpert {
		t.Fatalf("speakers not canonicalized: %v, %v", got[0].Speaker, got[1].Speaker)
	}
}

func TestParseRejectsUnknownSpeaker(t *testing.T) {
	t.Parallel()

	_, err := Parse(`[{"speaker":"Narrator","text":"Hi."}]`)
	var formatErr *FormatError
	if !errors.As(err, &formatErr) {
		t.Fatalf("expected FormatError, got %v", err)
	}
}

func TestParseRejectsExtraKeys(t *testing.T) {
	t.Parallel()

	_, err := Parse(`[{"speaker":"Host","text":"Hi.","mood":"upbeat"}]`)
	var formatErr *FormatError
	if !errors.As(err, &formatErr) {
		t.Fatalf("expected FormatError, got %v", err)
	}
}

func TestParseRejectsNonArray(t *testing.T) {
	t.Parallel()

	for _, payload := range []string{`{"speaker":"Host","text":"Hi."}`, `"just a string"`, "not json at all", ""} {
		if _, err := Parse(payload); err == nil {
			t.Fatalf("expected error for payload %q", payload)
		}
	}
}

func TestSpeakableTurnsSkipsEmpty(t *testing.T) {
	t.Parallel()

	s := Script{
		{Speaker: SpeakerHost, Text: "Hello."},
		{Speaker: SpeakerExpert, Text: "   "},
		{Speaker: SpeakerHost, Text: ""},
	}
	if got := s.SpeakableTurns(); got != 1 {
		t.Fatalf("SpeakableTurns = %d, want 1", got)
	}
}

func TestSpeakerFileTag(t *testing.T) {
	t.Parallel()

	if SpeakerHost.FileTag() != "host" || SpeakerExpert.FileTag() != "expert" {
		t.Fatalf("unexpected file tags: %q, %q", SpeakerHost.FileTag(), SpeakerExpert.FileTag())
	}
}
