package testutil

import (
	"math/rand"
	"slices"
	"testing"

	"github.com/roach88/intrack/internal/event"
)

// ForkedHistory returns a small history with concurrent branches:
//
//	create -> ana comment -> ana close --\
//	       -> bo comment  -> bo retitle --> ana merge comment
//	bo also creates a second, unrelated issue.
//
// Events are returned in creation order, which is a valid causal order.
func ForkedHistory(t testing.TB) []event.Event {
	t.Helper()
	ana := NewReplica("ana")
	bo := NewReplica("bo")

	create := ana.Create(t, "Fix bug")
	issue := create.ID

	a1 := ana.Comment(t, issue, "I can reproduce", issue)
	b1 := bo.Comment(t, issue, "Seen on linux too", issue)
	a2 := ana.Status(t, issue, event.StatusClosed, a1.ID)
	b2 := bo.Title(t, issue, "Fix crash on start", b1.ID)
	other := bo.Create(t, "Write docs")
	join := ana.Comment(t, issue, "Merged both", a2.ID, b2.ID)

	return []event.Event{create, a1, b1, a2, b2, other, join}
}

// Shuffle returns a copy of events in a pseudo-random order derived from seed.
func Shuffle(events []event.Event, seed int64) []event.Event {
	out := slices.Clone(events)
	r := rand.New(rand.NewSource(seed))
	r.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}
