package session

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a pipeline session.
type Status string

const (
	StatusPending      Status = "pending"
	StatusResearching  Status = "researching"
	StatusResearched   Status = "researched"
	StatusSummarizing  Status = "summarizing"
	StatusSummarized   Status = "summarized"
	StatusScripting    Status = "scripting"
	StatusScripted     Status = "scripted"
	StatusSynthesizing Status = "synthesizing"
	StatusSynthesized  Status = "synthesized"
	StatusStitching    Status = "stitching"
	StatusCompleted    Status = "completed"
	StatusFailed       Status = "failed"
	StatusCancelled    Status = "cancelled"
)

var allStatuses = []Status{
	StatusPending,
	StatusResearching,
	StatusResearched,
	StatusSummarizing,
	StatusSummarized,
	StatusScripting,
	StatusScripted,
	StatusSynthesizing,
	StatusSynthesized,
	StatusStitching,
	StatusCompleted,
	StatusFailed,
	StatusCancelled,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

var processingStatuses = map[Status]struct{}{
	StatusResearching:  {},
	StatusSummarizing:  {},
	StatusScripting:    {},
	StatusSynthesizing: {},
	StatusStitching:    {},
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsProcessingStatus reports whether a status reflects an in-flight stage.
func IsProcessingStatus(status Status) bool {
	_, ok := processingStatuses[status]
	return ok
}

// IsTerminal reports whether a status ends the session lifecycle.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// Session represents one pipeline run persisted in SQLite.
type Session struct {
	ID              string
	Topic           string
	Status          Status
	OutputDir       string
	ProgressStage   string
	ProgressMessage string
	ErrorMessage    string
	SegmentCount    int
	DurationSeconds float64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// IsProcessing returns true when the session is inside a stage.
func (s Session) IsProcessing() bool {
	return IsProcessingStatus(s.Status)
}

// SetFailed marks the session as failed with the given error message.
func (s *Session) SetFailed(message string) {
	s.Status = StatusFailed
	s.ErrorMessage = message
	s.ProgressStage = "Failed"
	s.ProgressMessage = message
}

// SetProgress updates the progress fields together.
func (s *Session) SetProgress(stage, message string) {
	s.ProgressStage = stage
	s.ProgressMessage = message
}
