package projector

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/intrack/internal/event"
	"github.com/roach88/intrack/internal/merge"
	"github.com/roach88/intrack/internal/testutil"
)

func TestCreateThenClose(t *testing.T) {
	r := testutil.NewReplica("ana")
	create := r.Create(t, "Fix bug")
	closed := r.Status(t, create.ID, event.StatusClosed, create.ID)

	s := Replay([]event.Event{create, closed})

	require.Len(t, s.Issues, 1)
	issue, ok := s.Issue(create.ID)
	require.True(t, ok)
	assert.Equal(t, "Fix bug", issue.Title)
	assert.Equal(t, event.StatusClosed, issue.Status)
	assert.Equal(t, event.DefaultPriority, issue.Priority)
	assert.Equal(t, "ana", issue.Author)
	assert.Equal(t, create.Timestamp, issue.Created)
	assert.Equal(t, closed.Timestamp, issue.Updated)
	assert.Equal(t, []string{closed.ID}, issue.Heads)
	assert.Equal(t, closed.ID, issue.Provenance["status"])
	assert.Equal(t, create.ID, issue.Provenance["title"])
}

func TestConcurrentCommentsAfterMerge(t *testing.T) {
	ana := testutil.NewReplica("ana")
	bo := testutil.NewReplica("bo")
	create := ana.Create(t, "Fix bug")
	a := ana.Comment(t, create.ID, "A", create.ID)
	b := bo.Comment(t, create.ID, "B", create.ID)

	one := Replay(merge.Merge([]event.Event{create, a}, []event.Event{create, b}).Events)
	two := Replay(merge.Merge([]event.Event{create, b, a}, []event.Event{b}).Events)

	issue := one.Issues[create.ID]
	require.Len(t, issue.Comments, 2, "no duplication and no loss")
	assert.ElementsMatch(t, []string{"A", "B"}, []string{issue.Comments[0].Body, issue.Comments[1].Body})
	assert.Less(t, issue.Comments[0].ID, issue.Comments[1].ID)
	assert.Equal(t, issue.Comments, two.Issues[create.ID].Comments)
	assert.Len(t, issue.Heads, 2, "both branches are heads")
}

func TestApplyEveryKind(t *testing.T) {
	r := testutil.NewReplica("ana")
	create := r.Emit(t, event.CreateIssue{
		Title:    "Fix bug",
		Body:     "It crashes",
		Priority: event.PriorityHigh,
		Tags:     []string{"ui", "crash"},
		Fields:   map[string]string{"os": "linux"},
	})
	id := create.ID
	comment := r.Comment(t, id, "first", id)
	events := []event.Event{
		create,
		r.Title(t, id, "Fix crash", id),
		r.Emit(t, event.EditBody{IssueID: id, Body: "Crashes on start"}, id),
		comment,
		r.Emit(t, event.EditComment{IssueID: id, CommentID: comment.ID, Body: "first!"}, comment.ID),
		r.Emit(t, event.ChangePriority{IssueID: id, Priority: event.PriorityBlocker}, id),
		r.Emit(t, event.AddTag{IssueID: id, Tag: "backend"}, id),
		r.Emit(t, event.AddTag{IssueID: id, Tag: "ui"}, id),
		r.Emit(t, event.RemoveTag{IssueID: id, Tag: "crash"}, id),
		r.Emit(t, event.SetField{IssueID: id, Key: "os"}, id),
		r.Emit(t, event.SetField{IssueID: id, Key: "version", Value: "1.2"}, id),
	}

	s := New()
	for _, e := range events {
		assert.Equal(t, id, s.Apply(e))
	}

	issue := s.Issues[id]
	assert.Equal(t, "Fix crash", issue.Title)
	assert.Equal(t, "Crashes on start", issue.Body)
	assert.Equal(t, event.PriorityBlocker, issue.Priority)
	assert.Equal(t, []string{"backend", "ui"}, issue.Tags)
	assert.True(t, issue.HasTag("ui"))
	assert.False(t, issue.HasTag("crash"))
	assert.Equal(t, map[string]string{"version": "1.2"}, issue.Fields)
	require.Len(t, issue.Comments, 1)
	assert.Equal(t, "first!", issue.Comments[0].Body)
	assert.Equal(t, events[4].Timestamp, issue.Comments[0].Edited)
	assert.Equal(t, events[4].ID, issue.Provenance["comment:"+comment.ID])
	assert.Empty(t, s.Warnings)
}

func TestApplyIsIdempotent(t *testing.T) {
	events := testutil.ForkedHistory(t)
	s := Replay(events)
	before, err := s.Digest()
	require.NoError(t, err)

	for _, e := range events {
		assert.Empty(t, s.Apply(e))
	}

	after, err := s.Digest()
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, len(events), s.Len())
}

func TestApplySkipsUnknownTargets(t *testing.T) {
	r := testutil.NewReplica("ana")
	create := r.Create(t, "Fix bug")
	orphan := r.Comment(t, create.ID, "lost", create.ID)
	ghost := r.Emit(t, event.EditComment{IssueID: create.ID, CommentID: orphan.ID, Body: "x"}, create.ID)

	s := New()
	assert.Empty(t, s.Apply(orphan), "issue not created yet")
	s.Apply(create)
	assert.Empty(t, s.Apply(ghost), "comment was never applied to the issue")

	require.Len(t, s.Warnings, 2)
	assert.Contains(t, s.Warnings[0].Error(), "unknown issue")
	assert.Contains(t, s.Warnings[1].Error(), "unknown comment")
	assert.True(t, s.Has(orphan.ID), "skipped events are still incorporated")
	assert.Equal(t, []string{create.ID}, s.Issues[create.ID].Heads)
}

func TestApplyRecordsUnknownKinds(t *testing.T) {
	r := testutil.NewReplica("ana")
	create := r.Create(t, "Fix bug")
	line := []byte(`{"author":"zed","data":{"issue":"` + create.ID + `","votes":3},"id":"ID","kind":"Vote","parents":[],"ts":1}`)
	id, err := event.ComputeID("zed", 1, "Vote", nil, []byte(`{"issue":"`+create.ID+`","votes":3}`))
	require.NoError(t, err)
	unknown, err := event.Decode([]byte(strings.Replace(string(line), `"id":"ID"`, `"id":"`+id+`"`, 1)))
	require.NoError(t, err)

	s := Replay([]event.Event{create, unknown})

	assert.Equal(t, []string{unknown.ID}, s.Unknown)
	assert.Equal(t, "Fix bug", s.Issues[create.ID].Title)
}

func TestSnapshotResumeMatchesFullReplay(t *testing.T) {
	events := testutil.ForkedHistory(t)[:5]
	ordered := merge.Merge(events).Events

	snap := Replay(ordered[:3]).Snapshot()
	resumed, stats := Resume(snap, ordered)
	full := Replay(ordered)

	assert.True(t, stats.Resumed)
	assert.Equal(t, 2, stats.Applied)
	assert.Equal(t, full.Issues, resumed.Issues)
	assert.Equal(t, full.Order, resumed.Order)
	assert.Equal(t, 3, snap.Len(), "the snapshot is not modified")
}

func TestResumeFallsBackWhenOrderChanges(t *testing.T) {
	events := testutil.ForkedHistory(t)
	ordered := merge.Merge(events).Events

	// Drop one early event, snapshot, then bring it back.
	var partial []event.Event
	for _, e := range ordered {
		if e.ID != ordered[1].ID {
			partial = append(partial, e)
		}
	}
	snap := Replay(merge.Merge(partial).Events).Snapshot()

	resumed, stats := Resume(snap, ordered)

	assert.False(t, stats.Resumed)
	assert.NotEmpty(t, stats.Reason)
	assert.Equal(t, Replay(ordered).Issues, resumed.Issues)
}

func TestResumeWithoutSnapshot(t *testing.T) {
	events := testutil.ForkedHistory(t)
	s, stats := Resume(Snapshot{}, events)
	assert.False(t, stats.Resumed)
	assert.Equal(t, len(events), stats.Applied)
	assert.Equal(t, len(events), s.Len())
}

func TestSnapshotJSONRoundTrip(t *testing.T) {
	events := merge.Merge(testutil.ForkedHistory(t)).Events
	snap := Replay(events[:4]).Snapshot()

	data, err := json.Marshal(snap)
	require.NoError(t, err)
	var back Snapshot
	require.NoError(t, json.Unmarshal(data, &back))

	assert.True(t, back.State.Has(events[0].ID), "applied set is rebuilt")
	resumed, stats := Resume(back, events)
	assert.True(t, stats.Resumed)
	assert.Equal(t, Replay(events).Issues, resumed.Issues)
}

func TestCloneIsDeep(t *testing.T) {
	events := testutil.ForkedHistory(t)
	s := Replay(events)
	c := s.Clone()

	issue := c.Issues[events[0].ID]
	issue.Title = "changed"
	issue.Tags = append(issue.Tags, "x")
	issue.Comments[0].Body = "changed"

	assert.NotEqual(t, "changed", s.Issues[events[0].ID].Title)
	assert.NotEqual(t, "changed", s.Issues[events[0].ID].Comments[0].Body)
}

func TestIssueIDsOldestFirst(t *testing.T) {
	events := testutil.ForkedHistory(t)
	s := Replay(merge.Merge(events).Events)

	ids := s.IssueIDs()
	require.Len(t, ids, 2)
	assert.Equal(t, events[0].ID, ids[0], "created at the first tick")
}

func TestReplayIndependentOfDiscoveryOrder(t *testing.T) {
	events := testutil.ForkedHistory(t)
	want, err := Replay(merge.Merge(events).Events).Digest()
	require.NoError(t, err)

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("replay of merged logs depends only on the event set", prop.ForAll(
		func(seed int64) bool {
			shuffled := testutil.Shuffle(events, seed)
			mid := int(uint64(seed) % uint64(len(shuffled)))
			got, err := Replay(merge.Merge(shuffled[:mid], shuffled[mid:]).Events).Digest()
			return err == nil && got == want
		},
		gen.Int64(),
	))

	properties.TestingRun(t)
}
