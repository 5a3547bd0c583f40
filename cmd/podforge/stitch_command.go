package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"podforge/internal/logging"
	"podforge/internal/stitch"
)

func newStitchCommand(ctx *commandContext) *cobra.Command {
	var outputName string

	cmd := &cobra.Command{
		Use:   "stitch <directory>",
		Short: "Concatenate segment WAVs in a directory into one podcast file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return fmt.Errorf("initialize logging: %w", err)
			}

			result, err := stitch.New(logger).Stitch(cmd.Context(), args[0], outputName)
			if err != nil {
				var noSegments *stitch.NoSegmentsFoundError
				var noValid *stitch.NoValidSegmentsError
				switch {
				case errors.As(err, &noSegments):
					return fmt.Errorf("no segment files found in %s", args[0])
				case errors.As(err, &noValid):
					return fmt.Errorf("segments found in %s, but none were readable", args[0])
				}
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote %s (%.1fs from %d segments)\n",
				result.OutputPath, result.DurationSeconds, result.SegmentCount)
			for _, skipped := range result.Skipped {
				fmt.Fprintf(out, "  skipped: %s (%s)\n", skipped.Path, skipped.Reason)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputName, "output", "o", stitch.DefaultOutputName, "Output file name inside the directory")
	return cmd
}
