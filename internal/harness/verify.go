package harness

import (
	"fmt"
	"math/rand"
	"slices"

	"github.com/roach88/intrack/internal/event"
	"github.com/roach88/intrack/internal/merge"
	"github.com/roach88/intrack/internal/projector"
)

// VerifyOptions configures Verify.
type VerifyOptions struct {
	// Shuffles is the number of random discovery orders to replay.
	Shuffles int
	// Seed seeds the first shuffle; shuffle k uses Seed+k.
	Seed int64
	// Cuts is the number of snapshot positions tried for incremental replay.
	Cuts int
	// State, when set, is compared with the full replay. It is typically the
	// view a tracker built from its cache.
	State *projector.State
}

// DefaultVerifyOptions are the options of the verify command.
var DefaultVerifyOptions = VerifyOptions{Shuffles: 8, Seed: 1, Cuts: 4}

// Check is the outcome of one determinism check.
type Check struct {
	Name   string `json:"name"`
	Pass   bool   `json:"pass"`
	Digest string `json:"digest,omitempty"`
	Detail string `json:"detail,omitempty"`
}

// VerifyReport is the result of Verify.
type VerifyReport struct {
	Pass        bool    `json:"pass"`
	Events      int     `json:"events"`
	Digest      string  `json:"digest"`
	Unresolved  int     `json:"unresolved"`
	Ambiguities int     `json:"ambiguities"`
	Cycle       bool    `json:"cycle"`
	Checks      []Check `json:"checks"`
}

func (r *VerifyReport) add(c Check) {
	r.Checks = append(r.Checks, c)
	if !c.Pass {
		r.Pass = false
	}
}

// Failed returns the checks that did not pass.
func (r *VerifyReport) Failed() []Check {
	var out []Check
	for _, c := range r.Checks {
		if !c.Pass {
			out = append(out, c)
		}
	}
	return out
}

// Verify checks that the logs materialize to one state however they are
// read: replaying twice, merging them in other discovery orders, and
// resuming from snapshots taken part way must all agree with a full replay.
func Verify(logs [][]event.Event, opts VerifyOptions) (*VerifyReport, error) {
	res := merge.Merge(logs...)
	ref, err := projector.Replay(res.Events).Digest()
	if err != nil {
		return nil, err
	}
	report := &VerifyReport{
		Pass:        true,
		Events:      len(res.Events),
		Digest:      ref,
		Unresolved:  len(res.Unresolved),
		Ambiguities: len(res.Ambiguities),
		Cycle:       res.Cycle != nil,
	}
	ids := eventIDs(res.Events)

	again, err := projector.Replay(res.Events).Digest()
	if err != nil {
		return nil, err
	}
	report.add(compare("replay twice", ref, again, ""))

	reversed := slices.Clone(logs)
	slices.Reverse(reversed)
	if err := report.addOrder("reversed logs", ids, ref, reversed); err != nil {
		return nil, err
	}

	all := slices.Concat(logs...)
	for k := range opts.Shuffles {
		seed := opts.Seed + int64(k)
		shuffled := slices.Clone(all)
		r := rand.New(rand.NewSource(seed))
		r.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		name := fmt.Sprintf("shuffle seed %d", seed)
		if err := report.addOrder(name, ids, ref, split(shuffled, r)); err != nil {
			return nil, err
		}
	}

	for _, n := range cuts(len(res.Events), opts.Cuts) {
		snap := projector.Replay(res.Events[:n]).Snapshot()
		st, stats := projector.Resume(snap, res.Events)
		got, err := st.Digest()
		if err != nil {
			return nil, err
		}
		c := compare(fmt.Sprintf("resume after %d", n), ref, got, "")
		if !stats.Resumed {
			c.Pass = false
			c.Detail = "snapshot not reused: " + stats.Reason
		}
		report.add(c)
	}

	if opts.State != nil {
		got, err := opts.State.Digest()
		if err != nil {
			return nil, err
		}
		report.add(compare("materialized view", ref, got, ""))
	}
	return report, nil
}

// addOrder merges logs and checks both the order and the state against the
// reference.
func (r *VerifyReport) addOrder(name string, ids []string, ref string, logs [][]event.Event) error {
	res := merge.Merge(logs...)
	got, err := projector.Replay(res.Events).Digest()
	if err != nil {
		return err
	}
	detail := ""
	if !slices.Equal(ids, eventIDs(res.Events)) {
		detail = "event order differs"
	}
	c := compare(name, ref, got, detail)
	if detail != "" {
		c.Pass = false
	}
	r.add(c)
	return nil
}

func compare(name, want, got, detail string) Check {
	c := Check{Name: name, Pass: want == got, Digest: got, Detail: detail}
	if !c.Pass && c.Detail == "" {
		c.Detail = fmt.Sprintf("digest %s, want %s", short(got), short(want))
	}
	return c
}

func short(digest string) string {
	return event.ShortID(digest)
}

func eventIDs(events []event.Event) []string {
	ids := make([]string, len(events))
	for i, e := range events {
		ids[i] = e.ID
	}
	return ids
}

// split cuts events into up to four logs at random positions.
func split(events []event.Event, r *rand.Rand) [][]event.Event {
	if len(events) < 2 {
		return [][]event.Event{events}
	}
	n := 1 + r.Intn(4)
	var out [][]event.Event
	rest := events
	for i := 1; i < n && len(rest) > 1; i++ {
		at := 1 + r.Intn(len(rest)-1)
		out = append(out, rest[:at])
		rest = rest[at:]
	}
	return append(out, rest)
}

// cuts returns up to n evenly spaced positions strictly inside (0, total).
func cuts(total, n int) []int {
	if total < 2 || n <= 0 {
		return nil
	}
	var out []int
	for k := 1; k <= n; k++ {
		at := k * total / (n + 1)
		if at <= 0 || at >= total {
			continue
		}
		if len(out) > 0 && out[len(out)-1] == at {
			continue
		}
		out = append(out, at)
	}
	return out
}
