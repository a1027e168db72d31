package projector

import (
	"fmt"

	"github.com/roach88/intrack/internal/event"
)

// Snapshot is a frozen copy of a State together with the ids it incorporates.
// Snapshots are an optimization only: resuming from one must give the same
// state as replaying from genesis.
type Snapshot struct {
	State *State `json:"state"`
}

// Snapshot returns a deep copy of s.
func (s *State) Snapshot() Snapshot {
	return Snapshot{State: s.Clone()}
}

// Len returns the number of incorporated events.
func (snap Snapshot) Len() int {
	if snap.State == nil {
		return 0
	}
	return snap.State.Len()
}

// ResumeStats reports how a Resume was carried out.
type ResumeStats struct {
	// Resumed is true when the snapshot was used.
	Resumed bool
	// Applied is the number of events applied after the snapshot, or the
	// full stream length when falling back to replay.
	Applied int
	// Reason explains a fallback to full replay.
	Reason string
}

// Resume brings a snapshot up to date with the ordered stream events.
//
// The snapshot can only be reused when its events are exactly the first
// events of the stream: then applying the rest is the same as replaying
// everything. Otherwise, for example when a merge brought in events that
// order before ones already incorporated, the state is replayed from genesis.
// The snapshot itself is never modified.
func Resume(snap Snapshot, events []event.Event) (*State, ResumeStats) {
	if snap.State == nil {
		return Replay(events), ResumeStats{Applied: len(events), Reason: "no snapshot"}
	}
	order := snap.State.Order
	if len(order) > len(events) {
		return Replay(events), ResumeStats{Applied: len(events), Reason: "snapshot is ahead of the log"}
	}
	for i, id := range order {
		if events[i].ID != id {
			return Replay(events), ResumeStats{
				Applied: len(events),
				Reason:  fmt.Sprintf("event order differs at position %d", i),
			}
		}
	}

	s := snap.State.Clone()
	for _, e := range events[len(order):] {
		s.Apply(e)
	}
	return s, ResumeStats{Resumed: true, Applied: len(events) - len(order)}
}
