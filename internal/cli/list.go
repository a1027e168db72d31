package cli

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/intrack/internal/config"
	"github.com/roach88/intrack/internal/event"
	"github.com/roach88/intrack/internal/projector"
	"github.com/roach88/intrack/internal/query"
)

type listOptions struct {
	status  string
	tags    []string
	search  string
	sort    string
	columns string
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &listOptions{}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List issues",
		Long: `List issues as a table.

--sort takes comma separated columns, each optionally suffixed with :desc,
e.g. "priority:desc,created". Custom fields are addressed as field:<key>.
The default columns and sort come from the table section of config.yaml.`,
		Aliases:       []string{"ls"},
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(rootOpts, cmd, func(ctx context.Context, s *session) error {
				return runList(s, opts)
			})
		},
	}

	cmd.Flags().StringVarP(&opts.status, "status", "s", "open", "status to show (open|closed|all)")
	cmd.Flags().StringSliceVar(&opts.tags, "tag", nil, "only issues carrying all these tags")
	cmd.Flags().StringVarP(&opts.search, "search", "q", "", "text every word of which must appear in the issue")
	cmd.Flags().StringVar(&opts.sort, "sort", "", "sort keys, e.g. priority:desc,created")
	cmd.Flags().StringVar(&opts.columns, "columns", "", "comma separated columns")

	return cmd
}

func runList(s *session, opts *listOptions) error {
	filter, err := listFilter(opts)
	if err != nil {
		return err
	}
	layout, err := listLayout(s.cfg.Table, opts)
	if err != nil {
		return err
	}

	rows := s.tracker.View(filter, layout)
	if s.out.Format == "json" {
		issues := make([]*projector.Issue, len(rows))
		for i, r := range rows {
			issues[i] = r.Issue
		}
		return s.out.Success(issues)
	}
	return renderTable(s.out.Writer, layout.Columns, rows)
}

func listFilter(opts *listOptions) (query.Filter, error) {
	filter := query.Filter{Tags: opts.tags, Text: opts.search}
	if st := strings.TrimSpace(opts.status); st != "" && st != "all" {
		status, err := event.ParseStatus(st)
		if err != nil {
			return query.Filter{}, invalidArg("%v", err)
		}
		filter.Status = []event.Status{status}
	}
	return filter, nil
}

// listLayout starts from the configured table and applies the flags.
func listLayout(table config.Table, opts *listOptions) (query.Layout, error) {
	layout := query.DefaultLayout()
	if len(table.Columns) > 0 {
		cols, err := query.ParseColumns(strings.Join(table.Columns, ","))
		if err != nil {
			return layout, err
		}
		layout.SetColumns(cols)
	}
	if table.SortBy != "" {
		keys, err := query.ParseSort(table.SortBy)
		if err != nil {
			return layout, err
		}
		layout.SetSort(keys)
		if table.SortDesc {
			layout.SetDesc(true)
		}
	}

	if opts.columns != "" {
		cols, err := query.ParseColumns(opts.columns)
		if err != nil {
			return layout, invalidArg("%v", err)
		}
		layout.SetColumns(cols)
	}
	if opts.sort != "" {
		keys, err := query.ParseSort(opts.sort)
		if err != nil {
			return layout, invalidArg("%v", err)
		}
		layout.SetSort(keys)
	}
	return layout, nil
}
