package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"podforge/internal/logging"
	"podforge/internal/notifications"
	"podforge/internal/services/llm"
	"podforge/internal/services/polly"
	"podforge/internal/services/websearch"
	"podforge/internal/session"
	"podforge/internal/workflow"
)

func newGenerateCommand(ctx *commandContext) *cobra.Command {
	var quiet bool

	cmd := &cobra.Command{
		Use:   "generate <topic>",
		Short: "Run the full pipeline for a topic",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			topic := strings.TrimSpace(strings.Join(args, " "))

			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return fmt.Errorf("initialize logging: %w", err)
			}

			store, err := session.Open(cfg)
			if err != nil {
				return fmt.Errorf("open session store: %w", err)
			}
			defer store.Close()

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			synth, err := polly.NewSynthesizer(runCtx, polly.Config{
				Region:       cfg.TTS.Region,
				Engine:       cfg.TTS.Engine,
				SampleRateHz: cfg.TTS.SampleRateHz,
				HostVoice:    cfg.TTS.HostVoice,
				ExpertVoice:  cfg.TTS.ExpertVoice,
			})
			if err != nil {
				return fmt.Errorf("initialize speech synthesis: %w", err)
			}

			deps := workflow.Dependencies{
				Generator: llm.NewClient(llm.Config{
					APIKey:         cfg.LLM.APIKey,
					BaseURL:        cfg.LLM.BaseURL,
					Model:          cfg.LLM.Model,
					Referer:        cfg.LLM.Referer,
					Title:          cfg.LLM.Title,
					TimeoutSeconds: cfg.LLM.TimeoutSeconds,
				}),
				Searcher: websearch.NewClient(websearch.Config{
					BaseURL:        cfg.Search.BaseURL,
					MaxResults:     cfg.Search.MaxResults,
					TimeoutSeconds: cfg.Search.TimeoutSeconds,
				}),
				Synthesizer: synth,
				Notifier:    notifications.NewService(cfg),
			}

			out := cmd.OutOrStdout()
			if !quiet && writerIsTerminal(out) {
				deps.Emit = newStreamPrinter(out).print
			}

			orch, err := workflow.New(cfg, store, deps, logger)
			if err != nil {
				return err
			}

			result, err := orch.Run(runCtx, topic)
			if result != nil {
				printRunSummary(out, result)
			}
			return err
		},
	}

	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Suppress streamed stage text")
	return cmd
}

func printRunSummary(out io.Writer, result *workflow.RunResult) {
	fmt.Fprintf(out, "\nSession:  %s\n", result.SessionID)
	fmt.Fprintf(out, "Output:   %s\n", result.OutputDir)
	if result.Report != nil {
		fmt.Fprintf(out, "Segments: %d synthesized, %d failed, %d empty\n",
			result.Report.Synthesized(), len(result.Report.Errors), result.Report.Skipped)
		for _, segErr := range result.Report.Errors {
			fmt.Fprintf(out, "  failed: %v\n", segErr)
		}
	}
	if result.Podcast != nil {
		fmt.Fprintf(out, "Podcast:  %s (%.1fs from %d segments)\n",
			result.Podcast.OutputPath, result.Podcast.DurationSeconds, result.Podcast.SegmentCount)
		for _, skipped := range result.Podcast.Skipped {
			fmt.Fprintf(out, "  skipped: %s (%s)\n", skipped.Path, skipped.Reason)
		}
	}
}

// streamPrinter renders accumulated generation events as incremental text,
// printing only the suffix that is new since the previous event for the same
// producer.
type streamPrinter struct {
	mu      sync.Mutex
	out     io.Writer
	printed map[string]int
	current string
}

func newStreamPrinter(out io.Writer) *streamPrinter {
	return &streamPrinter{out: out, printed: map[string]int{}}
}

func (p *streamPrinter) print(ev llm.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if ev.Producer != p.current {
		fmt.Fprintf(p.out, "\n--- %s ---\n", ev.Producer)
		p.current = ev.Producer
	}
	seen := p.printed[ev.Producer]
	if len(ev.Content) > seen {
		fmt.Fprint(p.out, ev.Content[seen:])
		p.printed[ev.Producer] = len(ev.Content)
	}
	if ev.Final {
		fmt.Fprintln(p.out)
	}
}

func writerIsTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
