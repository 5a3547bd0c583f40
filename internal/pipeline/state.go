// Package pipeline orchestrates the fixed five-stage podcast run: research,
// summarize, script, synthesize, stitch. Text artifacts flow through a
// write-once state map backed by the session store; audio stages consume the
// parsed script and the segment directory.
package pipeline

import (
	"sync"

	"podforge/internal/script"
)

// StageName identifies one step of the fixed pipeline.
type StageName string

const (
	StageResearch   StageName = "research"
	StageSummarize  StageName = "summary"
	StageScript     StageName = "script"
	StageSynthesize StageName = "synthesize"
	StageStitch     StageName = "stitch"
)

// ArtifactKind tags the variant held by an Artifact.
type ArtifactKind string

const (
	KindResearchNotes ArtifactKind = "research_notes"
	KindSummary       ArtifactKind = "summary"
	KindScript        ArtifactKind = "script"
)

// Artifact is the tagged output of one text stage. Research and summary
// artifacts are opaque text; the script artifact additionally carries its
// parsed dialogue once validation succeeds.
type Artifact struct {
	Kind   ArtifactKind
	Text   string
	Script script.Script
}

// State accumulates stage artifacts across a run. Each stage's slot is
// write-once: the first commit wins and later commits are ignored, so a
// reconciliation pass can never clobber what a stage already produced.
type State struct {
	mu        sync.Mutex
	artifacts map[StageName]Artifact
}

// NewState returns an empty state map.
func NewState() *State {
	return &State{artifacts: make(map[StageName]Artifact)}
}

// Commit stores the artifact for a stage if the slot is still empty and
// reports whether the write took effect.
func (s *State) Commit(stage StageName, artifact Artifact) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.artifacts[stage]; exists {
		return false
	}
	s.artifacts[stage] = artifact
	return true
}

// Replace overwrites a stage's artifact unconditionally. Used at the script
// boundary to attach the parsed dialogue to an already committed text
// artifact.
func (s *State) Replace(stage StageName, artifact Artifact) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.artifacts[stage] = artifact
}

// Get returns the artifact committed for a stage.
func (s *State) Get(stage StageName) (Artifact, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	artifact, ok := s.artifacts[stage]
	return artifact, ok
}

// Text returns the committed text for a stage, or "" when unset.
func (s *State) Text(stage StageName) string {
	artifact, _ := s.Get(stage)
	return artifact.Text
}
