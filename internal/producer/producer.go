// Package producer implements the fourth pipeline stage: synthesizing one
// audio segment per dialogue turn. Per-turn synthesis runs on a bounded
// worker pool; ordering is never derived from completion time because every
// segment's filename embeds the turn index and stitching re-sorts by name.
package producer

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"podforge/internal/logging"
	"podforge/internal/media/wav"
	"podforge/internal/pipeline"
	"podforge/internal/script"
	"podforge/internal/segments"
)

// Synthesizer is the speech synthesis capability consumed per turn.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, speaker script.Speaker) ([]byte, wav.Format, error)
}

// Report aggregates the outcome of a synthesis pass. Per-turn failures are
// soft: they are collected here and never abort the remaining turns.
type Report struct {
	SegmentFiles []string
	Skipped      int
	Errors       []*pipeline.SegmentSynthesisError
}

// Synthesized returns the number of segments written.
func (r *Report) Synthesized() int {
	return len(r.SegmentFiles)
}

// Producer fans dialogue turns out to the synthesizer.
type Producer struct {
	synth   Synthesizer
	workers int
	logger  *slog.Logger
}

// New constructs a producer with a bounded worker count.
func New(synth Synthesizer, workers int, logger *slog.Logger) *Producer {
	if workers < 1 {
		workers = 1
	}
	return &Producer{
		synth:   synth,
		workers: workers,
		logger:  logging.NewComponentLogger(logger, "producer"),
	}
}

// SetLogger routes producer logs into the session-scoped logger.
func (p *Producer) SetLogger(logger *slog.Logger) {
	if p == nil {
		return
	}
	p.logger = logging.NewComponentLogger(logger, "producer")
}

type job struct {
	index int
	turn  script.DialogueTurn
}

// Synthesize renders every speakable turn of the script into the store. Turns
// are dispatched in strict index order; turns with empty text are skipped
// without counting. The only hard failure is context cancellation.
func (p *Producer) Synthesize(ctx context.Context, scr script.Script, store *segments.Store) (*Report, error) {
	report := &Report{}

	jobs := make(chan job)
	var mu sync.Mutex
	var wg sync.WaitGroup

	for range p.workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				path, err := p.renderTurn(ctx, j, store)
				mu.Lock()
				if err != nil {
					report.Errors = append(report.Errors, &pipeline.SegmentSynthesisError{
						Index:   j.index,
						Speaker: j.turn.Speaker,
						Err:     err,
					})
				} else {
					report.SegmentFiles = append(report.SegmentFiles, path)
				}
				mu.Unlock()
			}
		}()
	}

	var cancelled error
dispatch:
	for index, turn := range scr {
		if turn.Empty() {
			report.Skipped++
			continue
		}
		select {
		case jobs <- job{index: index, turn: turn}:
		case <-ctx.Done():
			cancelled = ctx.Err()
			break dispatch
		}
	}
	close(jobs)
	wg.Wait()

	sort.Strings(report.SegmentFiles)

	p.logger.Info("synthesis pass finished",
		logging.Int("synthesized", report.Synthesized()),
		logging.Int("skipped", report.Skipped),
		logging.Int("failed", len(report.Errors)))
	if cancelled != nil {
		return report, cancelled
	}
	return report, nil
}

func (p *Producer) renderTurn(ctx context.Context, j job, store *segments.Store) (string, error) {
	logger := p.logger.With(
		logging.Int(logging.FieldSegmentIndex, j.index),
		logging.String(logging.FieldSpeaker, j.turn.Speaker.String()))

	pcm, format, err := p.synth.Synthesize(ctx, j.turn.Text, j.turn.Speaker)
	if err != nil {
		logger.Warn("turn synthesis failed", logging.Error(err))
		return "", err
	}
	path, err := store.Persist(pcm, format, j.turn.Speaker, j.index)
	if err != nil {
		logger.Warn("segment persist failed", logging.Error(err))
		return "", err
	}
	logger.Debug("segment written", logging.String("path", path))
	return path, nil
}
