package merge

import (
	"fmt"

	"github.com/roach88/intrack/internal/dag"
	"github.com/roach88/intrack/internal/event"
)

// MergeAmbiguity records two concurrent mutations of the same issue field.
// The Winner is the one ordered later, whose value the projection keeps.
type MergeAmbiguity struct {
	Issue  string
	Field  string
	Winner string
	Loser  string
}

func (a MergeAmbiguity) Error() string {
	return fmt.Sprintf("issue %s: concurrent %s edits, %s wins over %s",
		event.ShortID(a.Issue), a.Field, event.ShortID(a.Winner), event.ShortID(a.Loser))
}

// Result is the outcome of a merge.
type Result struct {
	// Events is the deduplicated union in causal total order.
	Events      []event.Event
	Unresolved  []*dag.UnresolvedParentError
	Cycle       *dag.CycleError
	Ambiguities []MergeAmbiguity
}

// Merge computes the ordered union of logs.
func Merge(logs ...[]event.Event) Result {
	g := dag.FromEvents(logs...)
	ordered, cyc := g.Order()
	return Result{
		Events:      ordered,
		Unresolved:  g.Unresolved(),
		Cycle:       cyc,
		Ambiguities: detect(g, ordered),
	}
}

type fieldKey struct {
	issue string
	field string
}

// detect walks mutations in order and flags each one that is concurrent with
// the previous mutation of the same field.
func detect(g *dag.Graph, ordered []event.Event) []MergeAmbiguity {
	last := make(map[fieldKey]string)
	var out []MergeAmbiguity
	for _, e := range ordered {
		field := event.Field(e.Payload)
		if field == "" {
			continue
		}
		k := fieldKey{issue: e.Issue(), field: field}
		if prev, ok := last[k]; ok && g.Concurrent(prev, e.ID) {
			out = append(out, MergeAmbiguity{Issue: k.issue, Field: field, Winner: e.ID, Loser: prev})
		}
		last[k] = e.ID
	}
	return out
}
