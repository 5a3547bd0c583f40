// Package stitch merges persisted audio segments into a single podcast file.
// The stitcher trusts the filesystem: every invocation rediscovers segments
// from scratch and rewrites the destination wholesale, so re-running it on an
// unchanged directory is idempotent.
package stitch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/gofrs/flock"

	"podforge/internal/logging"
	"podforge/internal/media/wav"
	"podforge/internal/segments"
)

// DefaultOutputName is the final artifact filename when the caller does not
// override it.
const DefaultOutputName = "final_podcast.wav"

// State tracks the stitcher through a single invocation.
type State string

const (
	StateIdle        State = "idle"
	StateDiscovering State = "discovering"
	StateWriting     State = "writing"
	StateFinalized   State = "finalized"
	StateFailed      State = "failed"
)

// NoSegmentsFoundError reports that discovery matched nothing.
type NoSegmentsFoundError struct {
	Dir string
}

func (e *NoSegmentsFoundError) Error() string {
	return fmt.Sprintf("no audio segments found in %s", e.Dir)
}

// NoValidSegmentsError reports that every discovered segment was malformed or
// unreadable, so no output format could be established.
type NoValidSegmentsError struct {
	Dir string
}

func (e *NoValidSegmentsError) Error() string {
	return fmt.Sprintf("no structurally valid audio segments in %s", e.Dir)
}

// SkippedSegment records one segment left out of the output and why.
type SkippedSegment struct {
	Path   string
	Reason string
}

// StitchedPodcast summarizes a finalized stitch.
type StitchedPodcast struct {
	OutputPath      string
	Format          wav.Format
	DurationSeconds float64
	SegmentCount    int
	SegmentFiles    []string
	Skipped         []SkippedSegment
}

// Stitcher combines segment files. A Stitcher is single-use per invocation of
// Stitch; concurrent invocations against the same directory are serialized via
// a lock file next to the destination.
type Stitcher struct {
	logger *slog.Logger
	state  State
}

// New returns an idle stitcher.
func New(logger *slog.Logger) *Stitcher {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Stitcher{
		logger: logger.With(logging.String(logging.FieldComponent, "stitcher")),
		state:  StateIdle,
	}
}

// SetLogger routes stitcher logs into the session-scoped logger.
func (s *Stitcher) SetLogger(logger *slog.Logger) {
	if logger == nil {
		return
	}
	s.logger = logger.With(logging.String(logging.FieldComponent, "stitcher"))
}

// State reports the most recent lifecycle state.
func (s *Stitcher) State() State {
	return s.state
}

func (s *Stitcher) transition(next State) {
	s.logger.Debug("stitcher state change", slog.String("from", string(s.state)), slog.String("to", string(next)))
	s.state = next
}

// Stitch discovers all segments under dir and concatenates them into
// dir/outputName. The first structurally valid segment fixes the output
// format; malformed or unreadable segments are skipped with a warning. Later
// format mismatches are warned about but appended verbatim.
func (s *Stitcher) Stitch(ctx context.Context, dir, outputName string) (*StitchedPodcast, error) {
	if outputName == "" {
		outputName = DefaultOutputName
	}
	outputPath := filepath.Join(dir, outputName)

	lock := flock.New(outputPath + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		s.transition(StateFailed)
		return nil, fmt.Errorf("acquire stitch lock: %w", err)
	}
	if !locked {
		s.transition(StateFailed)
		return nil, fmt.Errorf("another stitch is already running for %s", outputPath)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			s.logger.Warn("failed to release stitch lock", logging.Error(err))
		}
	}()

	s.transition(StateDiscovering)
	discovered, err := segments.Discover(dir, outputName)
	if err != nil {
		s.transition(StateFailed)
		return nil, err
	}
	if len(discovered) == 0 {
		s.transition(StateFailed)
		return nil, &NoSegmentsFoundError{Dir: dir}
	}
	s.logger.Info("discovered segments", slog.Int("count", len(discovered)), slog.String("directory", dir))

	s.transition(StateWriting)
	result, err := s.write(ctx, discovered, outputPath)
	if err != nil {
		s.transition(StateFailed)
		return nil, err
	}
	s.transition(StateFinalized)
	s.logger.Info("stitch finalized",
		slog.String("output", result.OutputPath),
		slog.Int("segments", result.SegmentCount),
		slog.Float64("duration_seconds", result.DurationSeconds))
	return result, nil
}

func (s *Stitcher) write(ctx context.Context, discovered []string, outputPath string) (*StitchedPodcast, error) {
	result := &StitchedPodcast{OutputPath: outputPath}

	var writer *wav.Writer
	defer func() {
		if writer != nil {
			_ = writer.Close()
		}
	}()

	for _, path := range discovered {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		seg, err := wav.Open(path)
		if err != nil {
			s.skip(result, path, fmt.Sprintf("unreadable segment: %v", err))
			continue
		}
		if seg.Info.Format.Channels == 0 {
			_ = seg.Close()
			s.skip(result, path, "segment declares zero channels")
			continue
		}

		if writer == nil {
			writer, err = wav.NewWriter(outputPath, seg.Info.Format)
			if err != nil {
				_ = seg.Close()
				return nil, fmt.Errorf("open output %s: %w", outputPath, err)
			}
			s.logger.Info("output format fixed",
				slog.String("segment", filepath.Base(path)),
				slog.Int("sample_rate", seg.Info.Format.SampleRate),
				slog.Int("channels", seg.Info.Format.Channels),
				slog.Int("bits", seg.Info.Format.BitsPerSample))
		} else if seg.Info.Format != writer.Format() {
			// Appended verbatim regardless; the output header keeps the
			// first segment's format.
			s.logger.Warn("segment format differs from fixed output format",
				slog.String("segment", filepath.Base(path)),
				slog.Int("sample_rate", seg.Info.Format.SampleRate),
				slog.Int("channels", seg.Info.Format.Channels))
		}

		if _, err := writer.ReadFrom(seg.Data()); err != nil {
			_ = seg.Close()
			s.skip(result, path, fmt.Sprintf("copy frames: %v", err))
			continue
		}
		_ = seg.Close()

		result.SegmentFiles = append(result.SegmentFiles, path)
		result.SegmentCount++
		result.DurationSeconds += seg.Info.Duration()
	}

	if writer == nil {
		return nil, &NoValidSegmentsError{Dir: filepath.Dir(outputPath)}
	}
	result.Format = writer.Format()

	w := writer
	writer = nil
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("finalize output %s: %w", outputPath, err)
	}
	return result, nil
}

func (s *Stitcher) skip(result *StitchedPodcast, path, reason string) {
	s.logger.Warn("skipping segment", slog.String("segment", filepath.Base(path)), slog.String("reason", reason))
	result.Skipped = append(result.Skipped, SkippedSegment{Path: path, Reason: reason})
}
