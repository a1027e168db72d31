package cli

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/intrack/internal/config"
	"github.com/roach88/intrack/internal/eventlog"
)

// InitResult is the output of the init command.
type InitResult struct {
	Replica        string `json:"replica,omitempty"`
	LogFile        string `json:"log_file"`
	CreatedConfig  bool   `json:"created_config"`
	CreatedReplica bool   `json:"created_replica"`
}

// mergeDriverHint tells users how to route log merges through merge-driver.
const mergeDriverHint = `To merge event logs with intrack instead of git's union driver, run:
  git config merge.intrack.driver 'intrack merge-driver %O %A %B'
and set the attribute in ATTRIBUTES to:
  *.jsonl merge=intrack`

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	var author string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create .intrack/ in the repository",
		Long: `Create the .intrack directory: configuration, this clone's replica id,
the events directory and its .gitattributes. Running init again, or in a
fresh clone, keeps existing files and only adds what is missing.

With --file, only the single log file is created.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(rootOpts, author, cmd)
		},
	}

	cmd.Flags().StringVar(&author, "author", "", "author written to config.yaml")

	return cmd
}

func runInit(opts *RootOptions, author string, cmd *cobra.Command) error {
	out := newFormatter(opts, cmd)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	res, err := initRepository(ctx, opts, author, cmd)
	if err != nil {
		return out.Fail(err)
	}

	if out.Format == "json" {
		return out.Success(res)
	}
	if opts.File != "" {
		fmt.Fprintf(out.Writer, "Initialized event log %s\n", res.LogFile)
		return nil
	}
	fmt.Fprintf(out.Writer, "Initialized intrack in %s (replica %s)\n",
		filepath.Join(opts.Dir, config.Dir), res.Replica)
	if res.CreatedConfig {
		fmt.Fprintln(out.Writer)
		attrs := path.Join(path.Dir(res.LogFile), ".gitattributes")
		fmt.Fprintln(out.Writer, strings.Replace(mergeDriverHint, "ATTRIBUTES", attrs, 1))
	}
	return nil
}

func initRepository(ctx context.Context, opts *RootOptions, author string, cmd *cobra.Command) (*InitResult, error) {
	if opts.File != "" {
		_, logger, err := loadConfig(opts, cmd)
		if err != nil {
			return nil, err
		}
		store, err := eventlog.New(eventlog.FSRepo{}, eventlog.Options{File: filepath.ToSlash(opts.File), Logger: logger})
		if err != nil {
			return nil, err
		}
		if err := store.Init(ctx); err != nil {
			return nil, err
		}
		return &InitResult{LogFile: store.Path()}, nil
	}

	created, err := config.Init(opts.Dir, config.Config{Author: author})
	if err != nil {
		return nil, err
	}
	cfg, logger, err := loadConfig(opts, cmd)
	if err != nil {
		return nil, err
	}
	store, err := eventlog.New(eventlog.FSRepo{Root: opts.Dir}, eventlog.Options{
		Dir:     cfg.EventsDir,
		Replica: created.Replica,
		Logger:  logger,
	})
	if err != nil {
		return nil, err
	}
	if err := store.Init(ctx); err != nil {
		return nil, err
	}
	logger.Debug("initialized", "replica", created.Replica, "log", store.Path())
	return &InitResult{
		Replica:        created.Replica,
		LogFile:        store.Path(),
		CreatedConfig:  created.CreatedConfig,
		CreatedReplica: created.CreatedReplica,
	}, nil
}
