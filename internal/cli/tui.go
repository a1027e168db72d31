package cli

import (
	"bytes"
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/intrack/internal/tui"
)

// NewTUICommand creates the tui command.
func NewTUICommand(rootOpts *RootOptions) *cobra.Command {
	opts := &listOptions{}

	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Browse issues interactively",
		Long: `Open the interactive issue table. Press ? inside for the key bindings.

Log messages are held back while the table owns the terminal and printed
when it exits.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			stderr := cmd.ErrOrStderr()
			var logs bytes.Buffer
			cmd.SetErr(&logs)
			defer func() {
				cmd.SetErr(stderr)
				io.Copy(stderr, &logs)
			}()

			return withSession(rootOpts, cmd, func(ctx context.Context, s *session) error {
				return runTUI(ctx, s, opts, cmd, stderr)
			})
		},
	}

	cmd.Flags().StringVar(&opts.status, "status", "all", "show only issues with this status (open, closed, all)")
	cmd.Flags().StringSliceVar(&opts.tags, "tag", nil, "show only issues with all of these tags")
	cmd.Flags().StringVarP(&opts.search, "search", "q", "", "initial search text")
	cmd.Flags().StringVar(&opts.sort, "sort", "", "sort keys, e.g. priority:desc,created")
	cmd.Flags().StringVar(&opts.columns, "columns", "", "comma-separated columns")

	return cmd
}

func runTUI(ctx context.Context, s *session, opts *listOptions, cmd *cobra.Command, stderr io.Writer) error {
	filter, err := listFilter(opts)
	if err != nil {
		return err
	}
	layout, err := listLayout(s.cfg.Table, opts)
	if err != nil {
		return err
	}
	ed := s.editor(cmd)
	// The editor gets the terminal, not the log buffer.
	ed.Stderr = stderr

	return tui.Run(ctx, tui.Options{
		Tracker: s.tracker,
		Editor:  ed,
		Layout:  layout,
		Filter:  filter,
		Input:   cmd.InOrStdin(),
		Output:  cmd.OutOrStdout(),
	})
}
