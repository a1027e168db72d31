package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/roach88/intrack/internal/cache"
	"github.com/roach88/intrack/internal/dag"
	"github.com/roach88/intrack/internal/event"
	"github.com/roach88/intrack/internal/eventlog"
	"github.com/roach88/intrack/internal/merge"
	"github.com/roach88/intrack/internal/projector"
	"github.com/roach88/intrack/internal/query"
)

// ErrUnknownIssue is returned when appending to an issue that does not exist.
var ErrUnknownIssue = errors.New("unknown issue")

// ErrUnknownParent is returned by Append for a parent id not in the log.
var ErrUnknownParent = errors.New("unknown parent")

// Options configures Open.
type Options struct {
	Repo   eventlog.Repo
	Log    eventlog.Options
	Author string
	// Cache stores snapshots between runs. Optional.
	Cache *cache.Cache
	// CacheKey names the snapshot; defaults to the events location.
	CacheKey string
	// Clock defaults to time.Now.
	Clock  func() time.Time
	Logger *slog.Logger
}

// ReloadReport summarizes one synchronization with the on-disk logs.
type ReloadReport struct {
	// Events is the total number of events after the reload.
	Events int
	// New lists the ids that were not loaded before, in order.
	New         []string
	Warnings    []*event.DecodeError
	Unresolved  []*dag.UnresolvedParentError
	Ambiguities []merge.MergeAmbiguity
	// Skipped lists events that had no effect on the projection.
	Skipped []projector.Warning
	Resume  projector.ResumeStats
}

// Tracker is the materialized view of an event log.
// It is safe for concurrent use.
type Tracker struct {
	store    *eventlog.Store
	cache    *cache.Cache
	cacheKey string
	author   string
	now      func() time.Time
	logger   *slog.Logger

	mu     sync.RWMutex
	events []event.Event
	state  *projector.State
	index  *query.Index
	report ReloadReport
	// dirty is set when appends changed the state since the last snapshot.
	dirty bool
}

// Open loads the logs and builds the initial view.
func Open(ctx context.Context, opts Options) (*Tracker, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logOpts := opts.Log
	logOpts.Logger = logger
	store, err := eventlog.New(opts.Repo, logOpts)
	if err != nil {
		return nil, err
	}

	t := &Tracker{
		store:    store,
		cache:    opts.Cache,
		cacheKey: opts.CacheKey,
		author:   opts.Author,
		now:      opts.Clock,
		logger:   logger,
		state:    projector.New(),
		index:    query.NewIndex(),
	}
	if t.cacheKey == "" {
		t.cacheKey = store.Dir()
		if opts.Log.File != "" {
			t.cacheKey = store.Path()
		}
	}
	if t.now == nil {
		t.now = time.Now
	}

	if _, err := t.reload(ctx, true); err != nil {
		return nil, err
	}
	return t, nil
}

// Reload re-reads the logs from disk and resynchronizes the view.
func (t *Tracker) Reload(ctx context.Context) (ReloadReport, error) {
	return t.reload(ctx, false)
}

func (t *Tracker) reload(ctx context.Context, initial bool) (ReloadReport, error) {
	files, err := t.store.Load(ctx)
	if err != nil {
		return ReloadReport{}, fmt.Errorf("reload: %w", err)
	}
	res := merge.Merge(eventlog.Events(files)...)

	t.mu.Lock()
	defer t.mu.Unlock()

	snap := projector.Snapshot{State: t.state}
	if initial {
		snap = t.loadSnapshot(ctx)
	}
	state, stats := projector.Resume(snap, res.Events)

	if stats.Resumed {
		touched := make([]string, 0, stats.Applied)
		for _, e := range res.Events[snap.Len():] {
			if id := e.Issue(); id != "" {
				touched = append(touched, id)
			}
		}
		t.index.Refresh(state, slices.Compact(slices.Sorted(slices.Values(touched))))
	} else {
		t.index.Rebuild(state)
	}

	known := make(map[string]bool, len(t.events))
	for _, e := range t.events {
		known[e.ID] = true
	}
	report := ReloadReport{
		Events:      len(res.Events),
		Warnings:    eventlog.Warnings(files),
		Unresolved:  res.Unresolved,
		Ambiguities: res.Ambiguities,
		Skipped:     state.Warnings,
		Resume:      stats,
	}
	for _, e := range res.Events {
		if !known[e.ID] {
			report.New = append(report.New, e.ID)
		}
	}

	t.events = res.Events
	t.state = state
	t.report = report
	t.logReport(res, report)

	if t.cache != nil && (t.dirty || stats.Applied > 0 || !stats.Resumed) {
		if err := t.cache.SaveSnapshot(ctx, t.cacheKey, state.Snapshot()); err != nil {
			t.logger.Warn("saving snapshot failed", "key", t.cacheKey, "error", err)
		} else {
			t.dirty = false
		}
	}
	return report, nil
}

func (t *Tracker) loadSnapshot(ctx context.Context) projector.Snapshot {
	if t.cache == nil {
		return projector.Snapshot{}
	}
	snap, ok, err := t.cache.LoadSnapshot(ctx, t.cacheKey)
	if err != nil {
		t.logger.Warn("ignoring unreadable snapshot", "key", t.cacheKey, "error", err)
		return projector.Snapshot{}
	}
	if !ok {
		return projector.Snapshot{}
	}
	return snap
}

func (t *Tracker) logReport(res merge.Result, r ReloadReport) {
	for _, u := range res.Unresolved {
		t.logger.Warn("unresolved parent", "event", event.ShortID(u.Event), "parent", event.ShortID(u.Parent))
	}
	if res.Cycle != nil {
		t.logger.Warn("parent cycle", "events", len(res.Cycle.Events))
	}
	for _, a := range res.Ambiguities {
		t.logger.Warn("concurrent edits", "issue", event.ShortID(a.Issue), "field", a.Field,
			"winner", event.ShortID(a.Winner), "loser", event.ShortID(a.Loser))
	}
	t.logger.Debug("replay finished",
		"events", r.Events,
		"resumed", r.Resume.Resumed,
		"applied", r.Resume.Applied,
		"reason", r.Resume.Reason,
	)
	t.logger.Info("log loaded", "events", r.Events, "new", len(r.New), "warnings", len(r.Warnings))
}

// Append creates an event for p and persists it. Empty parents default to the
// heads of the target issue, so the event follows everything known about it.
// Explicit parents must be known events that descend from the issue.
func (t *Tracker) Append(ctx context.Context, p event.Payload, parents []string) (event.Event, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if p == nil {
		return event.Event{}, fmt.Errorf("append: %w: nil payload", event.ErrInvalidPayload)
	}
	if p.Kind() != event.KindCreateIssue {
		id := p.Issue()
		issue, ok := t.state.Issue(id)
		if !ok {
			return event.Event{}, fmt.Errorf("append %s: %w %s", p.Kind(), ErrUnknownIssue, event.ShortID(id))
		}
		if ec, isEdit := p.(event.EditComment); isEdit {
			if _, ok := issue.Comment(ec.CommentID); !ok {
				return event.Event{}, fmt.Errorf("append %s: unknown comment %s", p.Kind(), event.ShortID(ec.CommentID))
			}
		}
		if len(parents) == 0 {
			parents = issue.Heads
		}
	}
	if err := t.checkParents(p, parents); err != nil {
		return event.Event{}, fmt.Errorf("append %s: %w", p.Kind(), err)
	}

	e, err := event.New(t.author, t.now().UnixMilli(), parents, p)
	if err != nil {
		return event.Event{}, fmt.Errorf("append: %w", err)
	}
	if _, err := t.store.Append(ctx, e); err != nil {
		return event.Event{}, fmt.Errorf("append: %w", err)
	}

	res := merge.Merge(t.events, []event.Event{e})
	t.events = res.Events
	t.dirty = true
	if lastOfIssue(res.Events, e) {
		touched := t.state.Apply(e)
		t.index.Refresh(t.state, []string{touched})
	} else {
		// e orders before events it did not see; replay to keep the
		// projection equal to a fresh load.
		t.state = projector.Replay(res.Events)
		t.index.Rebuild(t.state)
	}
	return e, nil
}

// checkParents requires explicit parents to be known events. Parents of an
// event on an existing issue must include the issue's creation or one of its
// descendants, so the event always orders after the issue exists.
func (t *Tracker) checkParents(p event.Payload, parents []string) error {
	if len(parents) == 0 {
		return nil
	}
	g := dag.FromEvents(t.events)
	for _, id := range parents {
		if !g.Has(id) {
			return fmt.Errorf("%w %s", ErrUnknownParent, event.ShortID(id))
		}
	}
	if p.Kind() == event.KindCreateIssue {
		return nil
	}
	issue := p.Issue()
	for _, id := range parents {
		if id == issue || g.IsAncestor(issue, id) {
			return nil
		}
	}
	return fmt.Errorf("parents do not descend from issue %s", event.ShortID(issue))
}

// lastOfIssue reports whether no event of e's issue orders after e.
func lastOfIssue(ordered []event.Event, e event.Event) bool {
	issue := e.Issue()
	seen := false
	for _, o := range ordered {
		if o.ID == e.ID {
			seen = true
			continue
		}
		if seen && o.Issue() == issue {
			return false
		}
	}
	return true
}

// View returns the rows of the index for filter and layout.
func (t *Tracker) View(filter query.Filter, layout query.Layout) []query.Row {
	t.mu.RLock()
	defer t.mu.RUnlock()
	rows := layout.View(t.index, filter)
	for i := range rows {
		rows[i].Issue = rows[i].Issue.Clone()
	}
	return rows
}

// Issue resolves an id or unique id prefix and returns a copy of the issue.
func (t *Tracker) Issue(prefix string) (*projector.Issue, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	id, err := event.MatchPrefix(prefix, t.state.IssueIDs())
	if err != nil {
		return nil, fmt.Errorf("issue: %w", err)
	}
	issue, _ := t.state.Issue(id)
	return issue.Clone(), nil
}

// Events returns the ordered log.
func (t *Tracker) Events() []event.Event {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return slices.Clone(t.events)
}

// State returns a copy of the current projection.
func (t *Tracker) State() *projector.State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state.Clone()
}

// Report returns the report of the last reload.
func (t *Tracker) Report() ReloadReport {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.report
}

// LogPath returns the file this replica appends to.
func (t *Tracker) LogPath() string {
	return t.store.Path()
}

// Author returns the author recorded on appended events.
func (t *Tracker) Author() string {
	return t.author
}

// Checkpoint saves a snapshot when appends changed the state since the last
// one. Without a cache it does nothing.
func (t *Tracker) Checkpoint(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cache == nil || !t.dirty {
		return nil
	}
	if err := t.cache.SaveSnapshot(ctx, t.cacheKey, t.state.Snapshot()); err != nil {
		return fmt.Errorf("checkpoint: %w", err)
	}
	t.dirty = false
	return nil
}
