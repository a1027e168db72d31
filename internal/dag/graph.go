package dag

import (
	"cmp"
	"slices"

	"github.com/roach88/intrack/internal/event"
)

type node struct {
	ev       event.Event
	children []string
	depth    int
}

// Graph is an arena of events keyed by id. It is not safe for concurrent use.
type Graph struct {
	nodes map[string]*node
	// waiting maps a missing parent id to the events that reference it.
	waiting map[string][]string
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{
		nodes:   make(map[string]*node),
		waiting: make(map[string][]string),
	}
}

// FromEvents builds a graph from any number of event slices.
func FromEvents(logs ...[]event.Event) *Graph {
	g := New()
	for _, log := range logs {
		for _, e := range log {
			g.Add(e)
		}
	}
	return g
}

// Add inserts e and reports whether it was new. Duplicates are ignored.
// An event whose parents are not known yet is held pending until they arrive.
func (g *Graph) Add(e event.Event) bool {
	if _, ok := g.nodes[e.ID]; ok {
		return false
	}
	g.nodes[e.ID] = &node{ev: e}

	for _, p := range e.Parents {
		if pn, ok := g.nodes[p]; ok {
			pn.children = append(pn.children, e.ID)
		} else {
			g.waiting[p] = append(g.waiting[p], e.ID)
		}
	}
	if kids, ok := g.waiting[e.ID]; ok {
		g.nodes[e.ID].children = append(g.nodes[e.ID].children, kids...)
		delete(g.waiting, e.ID)
	}
	return true
}

// Len returns the number of events.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// Has reports whether id is in the graph.
func (g *Graph) Has(id string) bool {
	_, ok := g.nodes[id]
	return ok
}

// Get returns the event with the given id.
func (g *Graph) Get(id string) (event.Event, bool) {
	n, ok := g.nodes[id]
	if !ok {
		return event.Event{}, false
	}
	return n.ev, true
}

// Pending returns the ids of events that reference at least one unknown
// parent, sorted.
func (g *Graph) Pending() []string {
	seen := make(map[string]bool)
	var out []string
	for _, kids := range g.waiting {
		for _, k := range kids {
			if !seen[k] {
				seen[k] = true
				out = append(out, k)
			}
		}
	}
	slices.Sort(out)
	return out
}

// Unresolved returns one error per (event, missing parent) pair, sorted.
func (g *Graph) Unresolved() []*UnresolvedParentError {
	var out []*UnresolvedParentError
	for parent, kids := range g.waiting {
		for _, k := range kids {
			out = append(out, &UnresolvedParentError{Event: k, Parent: parent})
		}
	}
	slices.SortFunc(out, func(a, b *UnresolvedParentError) int {
		return cmp.Or(cmp.Compare(a.Event, b.Event), cmp.Compare(a.Parent, b.Parent))
	})
	return out
}

// Order returns all events in the total order T: ascending causal depth, ties
// broken by ascending id. Missing parents are ignored for depth, so pending
// events are ordered as roots; callers report them via Unresolved.
func (g *Graph) Order() ([]event.Event, *CycleError) {
	indeg := make(map[string]int, len(g.nodes))
	for id, n := range g.nodes {
		d := 0
		for _, p := range n.ev.Parents {
			if _, ok := g.nodes[p]; ok {
				d++
			}
		}
		indeg[id] = d
		n.depth = 0
	}

	// Kahn's algorithm computing the longest path from any root.
	queue := make([]string, 0, len(g.nodes))
	for id, d := range indeg {
		if d == 0 {
			queue = append(queue, id)
		}
	}
	visited := 0
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		visited++
		n := g.nodes[id]
		for _, c := range n.children {
			cn := g.nodes[c]
			if n.depth+1 > cn.depth {
				cn.depth = n.depth + 1
			}
			indeg[c]--
			if indeg[c] == 0 {
				queue = append(queue, c)
			}
		}
	}

	var cyc *CycleError
	if visited < len(g.nodes) {
		maxDepth := 0
		for id, n := range g.nodes {
			if indeg[id] == 0 && n.depth > maxDepth {
				maxDepth = n.depth
			}
		}
		cyc = &CycleError{}
		for id, n := range g.nodes {
			if indeg[id] > 0 {
				n.depth = maxDepth + 1
				cyc.Events = append(cyc.Events, id)
			}
		}
		slices.Sort(cyc.Events)
	}

	out := make([]*node, 0, len(g.nodes))
	for _, n := range g.nodes {
		out = append(out, n)
	}
	slices.SortFunc(out, func(a, b *node) int {
		return cmp.Or(cmp.Compare(a.depth, b.depth), cmp.Compare(a.ev.ID, b.ev.ID))
	})

	events := make([]event.Event, len(out))
	for i, n := range out {
		events[i] = n.ev
	}
	return events, cyc
}

// Heads returns the ids of events without children, sorted.
func (g *Graph) Heads() []string {
	var heads []string
	for id, n := range g.nodes {
		if len(n.children) == 0 {
			heads = append(heads, id)
		}
	}
	slices.Sort(heads)
	return heads
}

// IsAncestor reports whether a is a strict causal ancestor of b.
func (g *Graph) IsAncestor(a, b string) bool {
	if a == b {
		return false
	}
	start, ok := g.nodes[b]
	if !ok {
		return false
	}
	seen := map[string]bool{b: true}
	stack := slices.Clone(start.ev.Parents)
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if id == a {
			return true
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		if n, ok := g.nodes[id]; ok {
			stack = append(stack, n.ev.Parents...)
		}
	}
	return false
}

// Concurrent reports whether neither event is an ancestor of the other.
func (g *Graph) Concurrent(a, b string) bool {
	return a != b && !g.IsAncestor(a, b) && !g.IsAncestor(b, a)
}
