package cli

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/intrack/internal/event"
	"github.com/roach88/intrack/internal/eventlog"
	"github.com/roach88/intrack/internal/merge"
)

// MergeResult is the output of the merge command.
type MergeResult struct {
	Files       int    `json:"files"`
	Events      int    `json:"events"`
	Output      string `json:"output,omitempty"`
	Warnings    int    `json:"warnings"`
	Unresolved  int    `json:"unresolved"`
	Ambiguities int    `json:"ambiguities"`
}

// NewMergeCommand creates the merge command.
func NewMergeCommand(rootOpts *RootOptions) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "merge <file>...",
		Short: "Merge event log files into one",
		Long: `Merge event log files into one log holding their union in causal order.
The result goes to --output, or to stdout when no output is given.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMerge(rootOpts, args, output, cmd)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")

	return cmd
}

func runMerge(opts *RootOptions, files []string, output string, cmd *cobra.Command) error {
	out := newFormatter(opts, cmd)
	logger := commandLogger(opts, cmd)

	var (
		logs     [][]event.Event
		warnings int
	)
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			return out.Fail(&eventlog.IOError{Op: "read", Path: f, Err: err})
		}
		events, warns, err := event.DecodeLog(f, bytes.NewReader(data))
		if err != nil {
			return out.Fail(err)
		}
		for _, w := range warns {
			logger.Warn("skipped line", "file", w.File, "line", w.Line, "error", w.Err)
		}
		warnings += len(warns)
		logs = append(logs, events)
	}

	res := merge.Merge(logs...)
	reportMerge(logger, res)
	data, err := event.EncodeAll(res.Events)
	if err != nil {
		return out.Fail(err)
	}

	result := MergeResult{
		Files:       len(files),
		Events:      len(res.Events),
		Output:      output,
		Warnings:    warnings,
		Unresolved:  len(res.Unresolved),
		Ambiguities: len(res.Ambiguities),
	}
	if output == "" {
		// The log itself is the output.
		_, err := out.Writer.Write(data)
		return err
	}
	abs, err := filepath.Abs(output)
	if err != nil {
		return out.Fail(err)
	}
	if err := (eventlog.FSRepo{}).ReplaceFile(abs, data); err != nil {
		return out.Fail(&eventlog.IOError{Op: "write", Path: output, Err: err})
	}
	if out.Format == "json" {
		return out.Success(result)
	}
	fmt.Fprintf(out.Writer, "Merged %d events from %d files into %s\n", result.Events, result.Files, output)
	return nil
}

// reportMerge logs what a merge could not settle on its own.
func reportMerge(logger *slog.Logger, res merge.Result) {
	for _, u := range res.Unresolved {
		logger.Warn("unresolved parent", "error", u)
	}
	if res.Cycle != nil {
		logger.Warn("cycle in event graph", "error", res.Cycle)
	}
	for _, a := range res.Ambiguities {
		logger.Info("concurrent edits", "issue", event.ShortID(a.Issue), "field", a.Field,
			"winner", event.ShortID(a.Winner), "loser", event.ShortID(a.Loser))
	}
}

// NewMergeDriverCommand creates the merge-driver command.
func NewMergeDriverCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "merge-driver <base> <ours> <theirs> [path]",
		Short: "Git merge driver for event logs",
		Long: `Merge two versions of an event log for git. Configure it with

  git config merge.intrack.driver 'intrack merge-driver %O %A %B %P'

and "*.jsonl merge=intrack" in the events directory's .gitattributes.
The union of both versions is written to <ours>: its bytes are kept as
they are and the events only <theirs> has are appended in causal order.
Lines that cannot be decoded are carried over, so the merge never fails
on content.`,
		Args:          cobra.RangeArgs(3, 4),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMergeDriver(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runMergeDriver(opts *RootOptions, args []string, cmd *cobra.Command) error {
	out := newFormatter(opts, cmd)
	logger := commandLogger(opts, cmd)
	name := args[1]
	if len(args) == 4 {
		name = args[3]
	}

	read := func(p string) ([]byte, error) {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, &eventlog.IOError{Op: "read", Path: p, Err: err}
		}
		return data, nil
	}
	base, err := read(args[0])
	if err != nil {
		return out.Fail(err)
	}
	ours, err := read(args[1])
	if err != nil {
		return out.Fail(err)
	}
	theirs, err := read(args[2])
	if err != nil {
		return out.Fail(err)
	}

	merged, res := merge.MergeFiles(base, ours, theirs)
	for _, w := range res.Warnings {
		logger.Warn("undecodable line", "file", name, "line", w.Line, "error", w.Err)
	}
	reportMerge(logger, res.Result)

	target, err := filepath.Abs(args[1])
	if err != nil {
		return out.Fail(err)
	}
	if err := (eventlog.FSRepo{}).ReplaceFile(target, merged); err != nil {
		return out.Fail(&eventlog.IOError{Op: "write", Path: args[1], Err: err})
	}
	logger.Debug("merged event log", "file", name, "added", res.Added, "carried", res.Carried)
	return nil
}

// commandLogger returns the configured logger, or a default one when the
// configuration cannot be read. Merges must not fail on configuration.
func commandLogger(opts *RootOptions, cmd *cobra.Command) *slog.Logger {
	_, logger, err := loadConfig(opts, cmd)
	if err != nil {
		logger = newLogger(cmd.ErrOrStderr(), slog.LevelInfo, opts.Verbose)
		logger.Warn("ignoring configuration", "error", err)
	}
	return logger
}
