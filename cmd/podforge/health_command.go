package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"podforge/internal/logging"
	"podforge/internal/services/llm"
	"podforge/internal/services/polly"
	"podforge/internal/services/websearch"
	"podforge/internal/session"
	"podforge/internal/workflow"
)

func newHealthCommand(ctx *commandContext) *cobra.Command {
	var live bool

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check that every pipeline stage is ready to run",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return fmt.Errorf("initialize logging: %w", err)
			}
			store, err := session.Open(cfg)
			if err != nil {
				return fmt.Errorf("open session store: %w", err)
			}
			defer store.Close()

			client := llm.NewClient(llm.Config{APIKey: cfg.LLM.APIKey, BaseURL: cfg.LLM.BaseURL, Model: cfg.LLM.Model, TimeoutSeconds: cfg.LLM.TimeoutSeconds})

			synth, err := polly.NewSynthesizer(cmd.Context(), polly.Config{
				Region:       cfg.TTS.Region,
				Engine:       cfg.TTS.Engine,
				SampleRateHz: cfg.TTS.SampleRateHz,
				HostVoice:    cfg.TTS.HostVoice,
				ExpertVoice:  cfg.TTS.ExpertVoice,
			})
			if err != nil {
				return fmt.Errorf("initialize speech synthesis: %w", err)
			}

			orch, err := workflow.New(cfg, store, workflow.Dependencies{
				Generator:   client,
				Searcher:    websearch.NewClient(websearch.Config{BaseURL: cfg.Search.BaseURL, MaxResults: cfg.Search.MaxResults, TimeoutSeconds: cfg.Search.TimeoutSeconds}),
				Synthesizer: synth,
			}, logger)
			if err != nil {
				return err
			}

			ready := true
			rows := make([][]string, 0, 5)
			for _, check := range orch.HealthCheck(cmd.Context()) {
				status := "ready"
				if !check.Ready {
					status = "not ready"
					ready = false
				}
				rows = append(rows, []string{check.Name, status, check.Detail})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Stage", "Status", "Detail"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft},
			))
			if !ready {
				return errors.New("one or more stages are not ready")
			}
			if live {
				out, err := client.Complete(cmd.Context(),
					"You are a connectivity check. Reply with the single word OK.", "ping")
				if err != nil {
					return fmt.Errorf("language model unreachable: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Language model reachable (%q)\n", strings.TrimSpace(out))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&live, "live", false, "Also issue a round-trip request to the language model")
	return cmd
}
