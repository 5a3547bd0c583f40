// Package script defines the dialogue structure produced by the scripting
// stage and the strict parse boundary between free-form model output and the
// audio pipeline.
package script

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Speaker identifies which podcast voice delivers a dialogue turn.
type Speaker string

const (
	SpeakerHost   Speaker = "Host"
	SpeakerExpert Speaker = "Expert"
)

var titleCaser = cases.Title(language.English)

// ParseSpeaker canonicalizes a speaker tag. Case variations produced by the
// model ("host", "HOST") are accepted; anything outside the two-voice cast is
// an error.
func ParseSpeaker(raw string) (Speaker, error) {
	canonical := titleCaser.String(strings.ToLower(strings.TrimSpace(raw)))
	switch Speaker(canonical) {
	case SpeakerHost, SpeakerExpert:
		return Speaker(canonical), nil
	default:
		return "", fmt.Errorf("unknown speaker %q", raw)
	}
}

// FileTag returns the lower-cased form embedded in segment filenames.
func (s Speaker) FileTag() string {
	return strings.ToLower(string(s))
}

// String returns the display label.
func (s Speaker) String() string {
	return string(s)
}

// DialogueTurn is one utterance of the script.
type DialogueTurn struct {
	Speaker Speaker `json:"speaker"`
	Text    string  `json:"text"`
}

// Empty reports whether the turn carries no speakable text.
func (t DialogueTurn) Empty() bool {
	return strings.TrimSpace(t.Text) == ""
}

// Script is the ordered dialogue produced by the scripting stage.
type Script []DialogueTurn

// SpeakableTurns counts turns that will produce audio.
func (s Script) SpeakableTurns() int {
	n := 0
	for _, turn := range s {
		if !turn.Empty() {
			n++
		}
	}
	return n
}

// FormatError reports that script text failed structural parsing. It carries
// the raw parser message so callers can surface it verbatim.
type FormatError struct {
	Detail string
}

func (e *FormatError) Error() string {
	return "script format error: " + e.Detail
}

func formatErrorf(format string, args ...any) error {
	return &FormatError{Detail: fmt.Sprintf(format, args...)}
}

//go:embed schema.json
var schemaJSON []byte

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("script.schema.json", bytes.NewReader(schemaJSON)); err != nil {
			schemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}
		schema, schemaErr = compiler.Compile("script.schema.json")
	})
	return schema, schemaErr
}

// Parse turns raw model output into a Script. Markdown code fences around the
// payload are stripped first; the remainder must be a JSON array of two-key
// {speaker, text} objects. Structural failures return *FormatError.
func Parse(content string) (Script, error) {
	trimmed := strings.TrimSpace(stripCodeFence(content))
	if trimmed == "" {
		return nil, formatErrorf("empty script payload")
	}

	var payload any
	if err := json.Unmarshal([]byte(trimmed), &payload); err != nil {
		return nil, formatErrorf("%v", err)
	}
	compiled, err := compiledSchema()
	if err != nil {
		return nil, err
	}
	if err := compiled.Validate(payload); err != nil {
		return nil, formatErrorf("%v", err)
	}

	var raw []struct {
		Speaker string `json:"speaker"`
		Text    string `json:"text"`
	}
	decoder := json.NewDecoder(strings.NewReader(trimmed))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&raw); err != nil {
		return nil, formatErrorf("%v", err)
	}

	out := make(Script, 0, len(raw))
	for i, turn := range raw {
		speaker, err := ParseSpeaker(turn.Speaker)
		if err != nil {
			return nil, formatErrorf("turn %d: %v", i, err)
		}
		out = append(out, DialogueTurn{Speaker: speaker, Text: turn.Text})
	}
	return out, nil
}

// stripCodeFence removes a single markdown fence wrapper (``` or ```json)
// around the payload. Content without a leading fence passes through.
func stripCodeFence(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	body := trimmed[3:]
	body = strings.TrimLeft(body, " \t")
	if len(body) >= 4 && strings.EqualFold(body[:4], "json") {
		body = body[4:]
	}
	body = strings.TrimLeft(body, " \t\r\n")
	if idx := strings.LastIndex(body, "```"); idx >= 0 {
		body = body[:idx]
	}
	return strings.TrimSpace(body)
}
