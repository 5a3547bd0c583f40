package pipeline

import (
	"fmt"

	"podforge/internal/script"
)

// StageExecutionError reports that a text-generation stage never produced a
// usable artifact. It aborts the whole run.
type StageExecutionError struct {
	Stage StageName
	Err   error
}

func (e *StageExecutionError) Error() string {
	return fmt.Sprintf("stage %s failed: %v", e.Stage, e.Err)
}

func (e *StageExecutionError) Unwrap() error {
	return e.Err
}

// MissingScriptError reports that no script artifact was present after
// reconciliation. The audio stages are never attempted without a script, but
// upstream text artifacts are still returned.
type MissingScriptError struct{}

func (e *MissingScriptError) Error() string {
	return "no script present after reconciliation"
}

// ScriptFormatError is the structural parse failure surfaced by the script
// boundary. Fatal to the audio path only.
type ScriptFormatError = script.FormatError

// SegmentSynthesisError records one dialogue turn that failed to synthesize.
// Soft: collected into the run report, never aborts remaining turns.
type SegmentSynthesisError struct {
	Index   int
	Speaker script.Speaker
	Err     error
}

func (e *SegmentSynthesisError) Error() string {
	return fmt.Sprintf("segment %d (%s): %v", e.Index, e.Speaker, e.Err)
}

func (e *SegmentSynthesisError) Unwrap() error {
	return e.Err
}
