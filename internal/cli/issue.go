package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/intrack/internal/editor"
	"github.com/roach88/intrack/internal/event"
	"github.com/roach88/intrack/internal/projector"
)

func invalidArg(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errInvalidArg, fmt.Sprintf(format, args...))
}

// EventResult is the output of commands that append events.
type EventResult struct {
	Issue  string       `json:"issue"`
	Events []EventEntry `json:"events"`
}

// EventEntry names one appended event.
type EventEntry struct {
	ID   string     `json:"id"`
	Kind event.Kind `json:"kind"`
}

// reportEvents prints the outcome of an appending command. verb is the text
// form, like "Closed".
func reportEvents(out *OutputFormatter, verb, issue string, events []event.Event) error {
	res := EventResult{Issue: issue, Events: []EventEntry{}}
	for _, e := range events {
		res.Events = append(res.Events, EventEntry{ID: e.ID, Kind: e.Kind})
	}
	if out.Format == "json" {
		return out.Success(res)
	}
	if len(events) == 0 {
		fmt.Fprintf(out.Writer, "Nothing to change on %s\n", event.ShortID(issue))
		return nil
	}
	fmt.Fprintf(out.Writer, "%s %s\n", verb, event.ShortID(issue))
	return nil
}

// appendAll appends payloads one after another, each on the heads left by
// the previous one.
func appendAll(ctx context.Context, s *session, payloads []event.Payload) ([]event.Event, error) {
	var out []event.Event
	for _, p := range payloads {
		e, err := s.tracker.Append(ctx, p, nil)
		if err != nil {
			return out, err
		}
		out = append(out, e)
	}
	return out, nil
}

// NewNewCommand creates the new command.
func NewNewCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		title    string
		body     string
		priority string
		tags     []string
		fields   []string
	)

	cmd := &cobra.Command{
		Use:   "new",
		Short: "Create an issue",
		Long: `Create an issue. Without --title an editor opens on a template with
front matter for the priority and tags followed by the title and body.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(rootOpts, cmd, func(ctx context.Context, s *session) error {
				prio := event.DefaultPriority
				if priority != "" {
					p, err := event.ParsePriority(priority)
					if err != nil {
						return invalidArg("%v", err)
					}
					prio = p
				}
				kv, err := parseFields(fields)
				if err != nil {
					return err
				}

				p := event.CreateIssue{Title: title, Body: body, Priority: prio, Tags: tags}
				if title == "" {
					text, err := s.editor(cmd).Edit(ctx, editor.IssueTemplate(prio, tags), ".md")
					if err != nil {
						return err
					}
					if p, err = editor.ParseIssue(text); err != nil {
						return err
					}
				}
				if len(kv) > 0 {
					p.Fields = make(map[string]string, len(kv))
					for _, f := range kv {
						p.Fields[f[0]] = f[1]
					}
				}

				e, err := s.tracker.Append(ctx, p, nil)
				if err != nil {
					return err
				}
				return reportEvents(s.out, "Created", e.ID, []event.Event{e})
			})
		},
	}

	cmd.Flags().StringVarP(&title, "title", "t", "", "issue title (opens the editor when empty)")
	cmd.Flags().StringVarP(&body, "body", "b", "", "issue body")
	cmd.Flags().StringVarP(&priority, "priority", "p", "", "priority (trivial|low|medium|high|critical|blocker)")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "tags (repeatable or comma separated)")
	cmd.Flags().StringArrayVar(&fields, "field", nil, "custom field key=value (repeatable)")

	return cmd
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "show <id>",
		Short:         "Show an issue with its comments",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(rootOpts, cmd, func(ctx context.Context, s *session) error {
				issue, err := s.tracker.Issue(args[0])
				if err != nil {
					return err
				}
				if s.out.Format == "json" {
					return s.out.Success(issue)
				}
				return renderIssue(s.out.Writer, issue)
			})
		},
	}
}

// NewCommentCommand creates the comment command.
func NewCommentCommand(rootOpts *RootOptions) *cobra.Command {
	var message string

	cmd := &cobra.Command{
		Use:           "comment <id>",
		Short:         "Add a comment to an issue",
		Long:          "Add a comment to an issue. Without -m an editor opens.",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(rootOpts, cmd, func(ctx context.Context, s *session) error {
				issue, err := s.tracker.Issue(args[0])
				if err != nil {
					return err
				}
				text := message
				if strings.TrimSpace(text) == "" {
					edited, err := s.editor(cmd).Edit(ctx, editor.CommentTemplate(issue.Title), ".md")
					if err != nil {
						return err
					}
					if text, err = editor.ParseComment(edited); err != nil {
						return err
					}
				}
				e, err := s.tracker.Append(ctx, event.AddComment{IssueID: issue.ID, Body: text}, nil)
				if err != nil {
					return err
				}
				return reportEvents(s.out, "Commented on", issue.ID, []event.Event{e})
			})
		},
	}

	cmd.Flags().StringVarP(&message, "message", "m", "", "comment text")

	return cmd
}

// NewEditCommand creates the edit command.
func NewEditCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		title   string
		body    string
		comment string
	)

	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Edit the title, body or a comment of an issue",
		Long: `Edit an issue. --title and --body replace the title and body. Without
either, an editor opens on the body. With --comment, the comment whose id
starts with the given prefix is edited instead, from --body or the editor.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(rootOpts, cmd, func(ctx context.Context, s *session) error {
				issue, err := s.tracker.Issue(args[0])
				if err != nil {
					return err
				}
				bodySet := cmd.Flags().Changed("body")
				edit := func(current, what string) (string, error) {
					edited, err := s.editor(cmd).Edit(ctx, editor.EditTemplate(current, what), ".md")
					if err != nil {
						return "", err
					}
					return editor.ParseComment(edited)
				}

				var payloads []event.Payload
				if comment != "" {
					c, err := findComment(issue, comment)
					if err != nil {
						return err
					}
					text := body
					if !bodySet {
						if text, err = edit(c.Body, "comment"); err != nil {
							return err
						}
					}
					if text != c.Body {
						payloads = append(payloads, event.EditComment{IssueID: issue.ID, CommentID: c.ID, Body: text})
					}
				} else {
					if title != "" && title != issue.Title {
						payloads = append(payloads, event.EditTitle{IssueID: issue.ID, Title: title})
					}
					text := body
					if !bodySet && title == "" {
						if text, err = edit(issue.Body, "body"); err != nil {
							return err
						}
						bodySet = true
					}
					if bodySet && text != issue.Body {
						payloads = append(payloads, event.EditBody{IssueID: issue.ID, Body: text})
					}
				}

				events, err := appendAll(ctx, s, payloads)
				if err != nil {
					return err
				}
				return reportEvents(s.out, "Edited", issue.ID, events)
			})
		},
	}

	cmd.Flags().StringVarP(&title, "title", "t", "", "new title")
	cmd.Flags().StringVarP(&body, "body", "b", "", "new body")
	cmd.Flags().StringVar(&comment, "comment", "", "id prefix of the comment to edit")

	return cmd
}

func findComment(issue *projector.Issue, prefix string) (*projector.Comment, error) {
	ids := make([]string, len(issue.Comments))
	for k, c := range issue.Comments {
		ids[k] = c.ID
	}
	id, err := event.MatchPrefix(prefix, ids)
	if err != nil {
		return nil, fmt.Errorf("comment: %w", err)
	}
	c, _ := issue.Comment(id)
	return c, nil
}

// NewStatusCommand creates the close or reopen command.
func NewStatusCommand(rootOpts *RootOptions, name string) *cobra.Command {
	status, verb, short := event.StatusClosed, "Closed", "Close an issue"
	if name == "reopen" {
		status, verb, short = event.StatusOpen, "Reopened", "Reopen a closed issue"
	}

	return &cobra.Command{
		Use:           name + " <id>...",
		Short:         short,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(rootOpts, cmd, func(ctx context.Context, s *session) error {
				for _, arg := range args {
					issue, err := s.tracker.Issue(arg)
					if err != nil {
						return err
					}
					var payloads []event.Payload
					if issue.Status != status {
						payloads = append(payloads, event.ChangeStatus{IssueID: issue.ID, Status: status})
					}
					events, err := appendAll(ctx, s, payloads)
					if err != nil {
						return err
					}
					if err := reportEvents(s.out, verb, issue.ID, events); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
}

// NewPriorityCommand creates the priority command.
func NewPriorityCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "priority <id> <level>",
		Short:         "Change the priority of an issue",
		Long:          "Change the priority: trivial, low, medium, high, critical or blocker (or t/l/m/h/c/b).",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(rootOpts, cmd, func(ctx context.Context, s *session) error {
				prio, err := event.ParsePriority(args[1])
				if err != nil {
					return invalidArg("%v", err)
				}
				issue, err := s.tracker.Issue(args[0])
				if err != nil {
					return err
				}
				var payloads []event.Payload
				if issue.Priority != prio {
					payloads = append(payloads, event.ChangePriority{IssueID: issue.ID, Priority: prio})
				}
				events, err := appendAll(ctx, s, payloads)
				if err != nil {
					return err
				}
				return reportEvents(s.out, "Set priority of", issue.ID, events)
			})
		},
	}
}

// NewTagCommand creates the tag command.
func NewTagCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tag <id> [+tag|-tag]...",
		Short: "Add or remove tags",
		Long: `Add or remove tags. +name or a bare name adds the tag, -name removes it.
Tags already in the requested state are left alone.`,
		Args:          cobra.MinimumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(rootOpts, cmd, func(ctx context.Context, s *session) error {
				issue, err := s.tracker.Issue(args[0])
				if err != nil {
					return err
				}
				payloads, err := tagPayloads(issue, args[1:])
				if err != nil {
					return err
				}
				events, err := appendAll(ctx, s, payloads)
				if err != nil {
					return err
				}
				return reportEvents(s.out, "Tagged", issue.ID, events)
			})
		},
	}
	// Everything after the id is an argument, so -tag is not read as a flag.
	cmd.Flags().SetInterspersed(false)

	return cmd
}

func tagPayloads(issue *projector.Issue, ops []string) ([]event.Payload, error) {
	want := map[string]bool{}
	var order []string
	for _, op := range ops {
		add := true
		tag := op
		switch {
		case strings.HasPrefix(op, "+"):
			tag = op[1:]
		case strings.HasPrefix(op, "-"):
			add, tag = false, op[1:]
		}
		tag = strings.TrimSpace(tag)
		if tag == "" {
			return nil, invalidArg("empty tag in %q", op)
		}
		if _, seen := want[tag]; !seen {
			order = append(order, tag)
		}
		want[tag] = add
	}

	var payloads []event.Payload
	for _, tag := range order {
		switch has := issue.HasTag(tag); {
		case want[tag] && !has:
			payloads = append(payloads, event.AddTag{IssueID: issue.ID, Tag: tag})
		case !want[tag] && has:
			payloads = append(payloads, event.RemoveTag{IssueID: issue.ID, Tag: tag})
		}
	}
	return payloads, nil
}

// NewSetCommand creates the set command.
func NewSetCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "set <id> key=value...",
		Short:         "Set custom fields",
		Long:          "Set custom key/value fields. An empty value (key=) clears the field.",
		Args:          cobra.MinimumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(rootOpts, cmd, func(ctx context.Context, s *session) error {
				issue, err := s.tracker.Issue(args[0])
				if err != nil {
					return err
				}
				kv, err := parseFields(args[1:])
				if err != nil {
					return err
				}
				var payloads []event.Payload
				for _, f := range kv {
					cur, ok := issue.Fields[f[0]]
					if cur == f[1] && (ok || f[1] == "") {
						continue
					}
					payloads = append(payloads, event.SetField{IssueID: issue.ID, Key: f[0], Value: f[1]})
				}
				events, err := appendAll(ctx, s, payloads)
				if err != nil {
					return err
				}
				return reportEvents(s.out, "Updated", issue.ID, events)
			})
		},
	}
	cmd.Flags().SetInterspersed(false)

	return cmd
}

// parseFields splits key=value arguments, keeping their order.
func parseFields(args []string) ([][2]string, error) {
	var out [][2]string
	for _, a := range args {
		key, value, ok := strings.Cut(a, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, invalidArg("expected key=value, got %q", a)
		}
		out = append(out, [2]string{key, value})
	}
	return out, nil
}
