package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/intrack/internal/event"
	"github.com/roach88/intrack/internal/eventlog"
	"github.com/roach88/intrack/internal/harness"
)

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	vopts := harness.DefaultVerifyOptions

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check that the logs replay to one state",
		Long: `Replay the logs several ways and compare the resulting states: twice in
a row, with the log files read in reverse and shuffled orders, resuming from
snapshots taken part way, and against the view built from the cache.

Exits with code 1 when any two replays differ.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(rootOpts, cmd, func(ctx context.Context, s *session) error {
				return runVerify(ctx, s, vopts)
			})
		},
	}

	cmd.Flags().IntVar(&vopts.Shuffles, "shuffles", vopts.Shuffles, "number of shuffled discovery orders")
	cmd.Flags().Int64Var(&vopts.Seed, "seed", vopts.Seed, "seed of the first shuffle")
	cmd.Flags().IntVar(&vopts.Cuts, "cuts", vopts.Cuts, "number of snapshot positions to resume from")

	return cmd
}

func runVerify(ctx context.Context, s *session, vopts harness.VerifyOptions) error {
	files, err := s.loadLogs(ctx)
	if err != nil {
		return err
	}
	for _, w := range eventlog.Warnings(files) {
		s.logger.Warn("skipped line", "file", w.File, "line", w.Line, "error", w.Err)
	}
	vopts.State = s.tracker.State()

	report, err := harness.Verify(eventlog.Events(files), vopts)
	if err != nil {
		return err
	}

	if s.out.Format == "json" {
		if report.Pass {
			return s.out.Success(report)
		}
		return s.out.Report(ExitFailure, ErrCodeDiverged, "replays disagree", report)
	}

	for _, c := range report.Checks {
		mark := "ok  "
		if !c.Pass {
			mark = "FAIL"
		}
		line := fmt.Sprintf("%s %s", mark, c.Name)
		if c.Detail != "" {
			line += ": " + c.Detail
		}
		fmt.Fprintln(s.out.Writer, line)
	}
	if !report.Pass {
		return s.out.Report(ExitFailure, ErrCodeDiverged,
			fmt.Sprintf("%d of %d checks failed", len(report.Failed()), len(report.Checks)), nil)
	}
	fmt.Fprintf(s.out.Writer, "Verified %d events in %d files: state %s\n",
		report.Events, len(files), event.ShortID(report.Digest))
	return nil
}
