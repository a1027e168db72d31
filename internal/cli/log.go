package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/roach88/intrack/internal/event"
)

// NewLogCommand creates the log command.
func NewLogCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		issue string
		limit int
	)

	cmd := &cobra.Command{
		Use:   "log",
		Short: "Show events in causal order",
		Long: `Show the merged events of all replicas in the order every replica
applies them: parents before children, ties broken by id.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(rootOpts, cmd, func(ctx context.Context, s *session) error {
				events := s.tracker.Events()
				if issue != "" {
					i, err := s.tracker.Issue(issue)
					if err != nil {
						return err
					}
					var mine []event.Event
					for _, e := range events {
						if e.Issue() == i.ID {
							mine = append(mine, e)
						}
					}
					events = mine
				}
				if limit > 0 && len(events) > limit {
					events = events[len(events)-limit:]
				}
				if s.out.Format == "json" {
					return s.out.Success(eventViews(events))
				}
				return renderLog(s.out.Writer, events)
			})
		},
	}

	cmd.Flags().StringVar(&issue, "issue", "", "only events of this issue")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "show only the last n events")

	return cmd
}
