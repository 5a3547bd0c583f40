package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"podforge/internal/session"
)

func newSessionsCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var statusFilter string

	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List recent pipeline sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			var wantStatus session.Status
			if statusFilter != "" {
				status, ok := session.ParseStatus(statusFilter)
				if !ok {
					return fmt.Errorf("unknown status %q (valid: %s)", statusFilter, knownStatuses())
				}
				wantStatus = status
			}
			store, err := session.Open(cfg)
			if err != nil {
				return fmt.Errorf("open session store: %w", err)
			}
			defer store.Close()

			sessions, err := store.List(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("list sessions: %w", err)
			}
			out := cmd.OutOrStdout()
			if wantStatus != "" {
				sessions = filterByStatus(sessions, wantStatus)
				if len(sessions) == 0 {
					fmt.Fprintf(out, "No sessions with status %q\n", wantStatus)
					return nil
				}
			}
			if len(sessions) == 0 {
				fmt.Fprintln(out, "No sessions recorded yet")
				return nil
			}

			rows := make([][]string, 0, len(sessions))
			for _, sess := range sessions {
				rows = append(rows, []string{
					sess.ID,
					sess.Topic,
					colorizeStatus(sess.Status, writerIsTerminal(out)),
					fmt.Sprintf("%d", sess.SegmentCount),
					formatDuration(sess.DurationSeconds),
					sess.UpdatedAt.Local().Format(time.DateTime),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"ID", "Topic", "Status", "Segments", "Duration", "Updated"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of sessions to show")
	cmd.Flags().StringVarP(&statusFilter, "status", "s", "", "Only show sessions with this status")
	return cmd
}

func filterByStatus(sessions []*session.Session, status session.Status) []*session.Session {
	kept := sessions[:0]
	for _, sess := range sessions {
		if sess.Status == status {
			kept = append(kept, sess)
		}
	}
	return kept
}

func knownStatuses() string {
	all := session.AllStatuses()
	names := make([]string, len(all))
	for i, status := range all {
		names[i] = string(status)
	}
	return strings.Join(names, ", ")
}

func formatDuration(seconds float64) string {
	if seconds <= 0 {
		return "-"
	}
	return fmt.Sprintf("%.1fs", seconds)
}
