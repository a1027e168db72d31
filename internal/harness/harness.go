package harness

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"path"
	"strings"

	"github.com/roach88/intrack/internal/event"
	"github.com/roach88/intrack/internal/eventlog"
	"github.com/roach88/intrack/internal/merge"
	"github.com/roach88/intrack/internal/testutil"
	"github.com/roach88/intrack/internal/tracker"
)

// replica is one simulated clone: its own repository, clock and tracker.
type replica struct {
	name    string
	repo    *eventlog.MemRepo
	tracker *tracker.Tracker
}

// Harness executes scenario steps against simulated replicas.
type Harness struct {
	ctx      context.Context
	replicas map[string]*replica
	order    []string
	refs     map[string]string
	logger   *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Every replica starts empty, with its own in-memory repository and
// deterministic clock. Steps run in order; a failing step aborts the run
// with an error, while failed assertions are reported in the result.
func Run(scenario *Scenario) (*Result, error) {
	ctx := context.Background()
	h := &Harness{
		ctx:      ctx,
		replicas: make(map[string]*replica, len(scenario.Replicas)),
		order:    scenario.Replicas,
		refs:     make(map[string]string),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
	}

	for _, name := range scenario.Replicas {
		repo := eventlog.NewMemRepo()
		tr, err := tracker.Open(ctx, tracker.Options{
			Repo:   repo,
			Log:    eventlog.Options{Replica: name},
			Author: name,
			Clock:  testutil.NewDeterministicClock().Now,
			Logger: h.logger,
		})
		if err != nil {
			return nil, fmt.Errorf("open replica %s: %w", name, err)
		}
		h.replicas[name] = &replica{name: name, repo: repo, tracker: tr}
	}

	for i, step := range scenario.Steps {
		if err := h.execute(step); err != nil {
			return nil, fmt.Errorf("step %d (%s): %w", i, step.Do, err)
		}
	}

	result := NewResult()
	for ref, id := range h.refs {
		result.Refs[ref] = id
	}
	for _, name := range h.order {
		rs, err := h.snapshot(h.replicas[name])
		if err != nil {
			return nil, err
		}
		result.Replicas = append(result.Replicas, rs)
	}

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

func (h *Harness) snapshot(r *replica) (*ReplicaState, error) {
	state := r.tracker.State()
	digest, err := state.Digest()
	if err != nil {
		return nil, fmt.Errorf("digest of %s: %w", r.name, err)
	}
	ids := make([]string, 0, len(r.tracker.Events()))
	for _, e := range r.tracker.Events() {
		ids = append(ids, e.ID)
	}
	return &ReplicaState{
		Name:        r.name,
		Events:      ids,
		Digest:      digest,
		Ambiguities: len(r.tracker.Report().Ambiguities),
		State:       state,
	}, nil
}

func (h *Harness) execute(step Step) error {
	switch step.Do {
	case StepPull:
		return h.pull(h.replicas[step.Replica], h.replicas[step.From])
	case StepSync:
		for _, dst := range h.order {
			for _, src := range h.order {
				if src == dst {
					continue
				}
				if err := h.pull(h.replicas[dst], h.replicas[src]); err != nil {
					return err
				}
			}
		}
		return nil
	}

	r := h.replicas[step.Replica]
	p, err := h.payload(step)
	if err != nil {
		return err
	}
	e, err := r.tracker.Append(h.ctx, p, nil)
	if err != nil {
		return err
	}
	if step.Ref != "" {
		h.refs[step.Ref] = e.ID
	}
	return nil
}

// payload builds the event payload of an appending step.
func (h *Harness) payload(step Step) (event.Payload, error) {
	if step.Do == StepCreate {
		p := event.CreateIssue{Title: step.Title, Body: step.Body, Tags: step.Tags, Fields: step.Fields}
		if step.Priority != "" {
			prio, err := event.ParsePriority(step.Priority)
			if err != nil {
				return nil, err
			}
			p.Priority = prio
		}
		return p, nil
	}

	issue, ok := h.refs[step.Issue]
	if !ok {
		return nil, fmt.Errorf("unknown issue ref %q", step.Issue)
	}
	switch step.Do {
	case StepTitle:
		return event.EditTitle{IssueID: issue, Title: step.Title}, nil
	case StepBody:
		return event.EditBody{IssueID: issue, Body: step.Body}, nil
	case StepComment:
		return event.AddComment{IssueID: issue, Body: step.Body}, nil
	case StepEditComment:
		comment, ok := h.refs[step.Comment]
		if !ok {
			return nil, fmt.Errorf("unknown comment ref %q", step.Comment)
		}
		return event.EditComment{IssueID: issue, CommentID: comment, Body: step.Body}, nil
	case StepStatus:
		st, err := event.ParseStatus(step.Status)
		if err != nil {
			return nil, err
		}
		return event.ChangeStatus{IssueID: issue, Status: st}, nil
	case StepPriority:
		prio, err := event.ParsePriority(step.Priority)
		if err != nil {
			return nil, err
		}
		return event.ChangePriority{IssueID: issue, Priority: prio}, nil
	case StepTag, StepUntag:
		if len(step.Tags) != 1 {
			return nil, fmt.Errorf("%s takes exactly one tag, got %d", step.Do, len(step.Tags))
		}
		if step.Do == StepUntag {
			return event.RemoveTag{IssueID: issue, Tag: step.Tags[0]}, nil
		}
		return event.AddTag{IssueID: issue, Tag: step.Tags[0]}, nil
	case StepField:
		if len(step.Fields) != 1 {
			return nil, fmt.Errorf("field takes exactly one key, got %d", len(step.Fields))
		}
		for k, v := range step.Fields {
			return event.SetField{IssueID: issue, Key: k, Value: v}, nil
		}
	}
	return nil, fmt.Errorf("unknown step type %q", step.Do)
}

// pull merges every log file of src into dst, as a git pull with the merge
// driver would, and reloads dst.
func (h *Harness) pull(dst, src *replica) error {
	names, err := src.repo.List(eventlog.DefaultDir)
	if err != nil {
		return err
	}
	for _, name := range names {
		if !strings.HasSuffix(name, eventlog.Ext) {
			continue
		}
		p := path.Join(eventlog.DefaultDir, name)
		theirs, err := src.repo.ReadFile(p)
		if err != nil {
			return err
		}
		ours, err := dst.repo.ReadFile(p)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		merged, res := merge.MergeFiles(nil, ours, theirs)
		if len(res.Warnings) > 0 {
			return fmt.Errorf("pull %s: %w", p, res.Warnings[0])
		}
		if bytes.Equal(merged, ours) {
			continue
		}
		if err := dst.repo.ReplaceFile(p, merged); err != nil {
			return err
		}
	}
	_, err = dst.tracker.Reload(h.ctx)
	return err
}
