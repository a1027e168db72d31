package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/intrack/internal/event"
)

// Replica builds events on behalf of one author with a deterministic clock.
// It does not track heads; callers pass causal parents explicitly.
type Replica struct {
	Author string
	Clock  *DeterministicClock
}

// NewReplica returns a replica with its own clock.
func NewReplica(author string) *Replica {
	return &Replica{Author: author, Clock: NewDeterministicClock()}
}

// Emit creates an event with the given payload and parents, failing the test on error.
func (r *Replica) Emit(t testing.TB, p event.Payload, parents ...string) event.Event {
	t.Helper()
	e, err := event.New(r.Author, r.Clock.NextMillis(), parents, p)
	require.NoError(t, err)
	return e
}

// Create emits a CreateIssue root event.
func (r *Replica) Create(t testing.TB, title string) event.Event {
	t.Helper()
	return r.Emit(t, event.CreateIssue{Title: title})
}

// Comment emits an AddComment on issue, following parents.
func (r *Replica) Comment(t testing.TB, issue, body string, parents ...string) event.Event {
	t.Helper()
	return r.Emit(t, event.AddComment{IssueID: issue, Body: body}, parents...)
}

// Status emits a ChangeStatus on issue, following parents.
func (r *Replica) Status(t testing.TB, issue string, s event.Status, parents ...string) event.Event {
	t.Helper()
	return r.Emit(t, event.ChangeStatus{IssueID: issue, Status: s}, parents...)
}

// Title emits an EditTitle on issue, following parents.
func (r *Replica) Title(t testing.TB, issue, title string, parents ...string) event.Event {
	t.Helper()
	return r.Emit(t, event.EditTitle{IssueID: issue, Title: title}, parents...)
}

// IDs returns the ids of events in order.
func IDs(events []event.Event) []string {
	ids := make([]string, len(events))
	for i, e := range events {
		ids[i] = e.ID
	}
	return ids
}
