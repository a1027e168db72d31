package projector

import (
	"cmp"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"maps"
	"slices"

	"github.com/roach88/intrack/internal/event"
)

// Comment is one entry of an issue thread. ID is the id of its AddComment event.
type Comment struct {
	ID      string `json:"id"`
	Author  string `json:"author"`
	Body    string `json:"body"`
	Created int64  `json:"created"`
	// Edited is the time of the last EditComment, 0 if never edited.
	Edited int64 `json:"edited,omitempty"`
}

// Issue is the materialized state of one issue. Times are unix milliseconds.
type Issue struct {
	ID       string            `json:"id"`
	Title    string            `json:"title"`
	Body     string            `json:"body"`
	Status   event.Status      `json:"status"`
	Priority event.Priority    `json:"priority"`
	Author   string            `json:"author"`
	Created  int64             `json:"created"`
	Updated  int64             `json:"updated"`
	Comments []Comment         `json:"comments"`
	Tags     []string          `json:"tags"`
	Fields   map[string]string `json:"fields"`
	// Heads is the frontier of this issue's events, the default parents of
	// the next event on it.
	Heads []string `json:"heads"`
	// Provenance maps each field name to the id of the event that last set it.
	Provenance map[string]string `json:"provenance"`
}

// Comment returns the comment with the given id.
func (i *Issue) Comment(id string) (*Comment, bool) {
	for k := range i.Comments {
		if i.Comments[k].ID == id {
			return &i.Comments[k], true
		}
	}
	return nil, false
}

// HasTag reports whether the issue carries tag.
func (i *Issue) HasTag(tag string) bool {
	_, ok := slices.BinarySearch(i.Tags, tag)
	return ok
}

// Clone returns a deep copy of i.
func (i *Issue) Clone() *Issue {
	c := *i
	c.Comments = slices.Clone(i.Comments)
	c.Tags = slices.Clone(i.Tags)
	c.Fields = maps.Clone(i.Fields)
	c.Heads = slices.Clone(i.Heads)
	c.Provenance = maps.Clone(i.Provenance)
	return &c
}

// Warning describes an event that was incorporated but had no effect.
type Warning struct {
	Event  string `json:"event"`
	Reason string `json:"reason"`
}

func (w Warning) Error() string {
	return fmt.Sprintf("event %s skipped: %s", event.ShortID(w.Event), w.Reason)
}

// State is the result of applying a sequence of events.
type State struct {
	Issues map[string]*Issue `json:"issues"`
	// Order lists every incorporated event id in application order,
	// including skipped and unknown events.
	Order []string `json:"order"`
	// Unknown lists events of kinds this version does not interpret.
	Unknown  []string  `json:"unknown"`
	Warnings []Warning `json:"warnings"`

	applied map[string]bool
}

// New returns an empty state.
func New() *State {
	return &State{
		Issues:  make(map[string]*Issue),
		applied: make(map[string]bool),
	}
}

// Has reports whether the event with id has been incorporated.
func (s *State) Has(id string) bool {
	return s.applied[id]
}

// Len returns the number of incorporated events.
func (s *State) Len() int {
	return len(s.Order)
}

// Issue returns the issue with the given id.
func (s *State) Issue(id string) (*Issue, bool) {
	i, ok := s.Issues[id]
	return i, ok
}

// IssueIDs returns all issue ids, oldest first.
func (s *State) IssueIDs() []string {
	ids := slices.Collect(maps.Keys(s.Issues))
	slices.SortFunc(ids, func(a, b string) int {
		return cmp.Or(cmp.Compare(s.Issues[a].Created, s.Issues[b].Created), cmp.Compare(a, b))
	})
	return ids
}

// Clone returns a deep copy of s.
func (s *State) Clone() *State {
	c := &State{
		Issues:   make(map[string]*Issue, len(s.Issues)),
		Order:    slices.Clone(s.Order),
		Unknown:  slices.Clone(s.Unknown),
		Warnings: slices.Clone(s.Warnings),
		applied:  maps.Clone(s.applied),
	}
	for id, i := range s.Issues {
		c.Issues[id] = i.Clone()
	}
	if c.applied == nil {
		c.applied = make(map[string]bool)
	}
	return c
}

// Digest returns a hash of the materialized issues. Two states with the same
// digest render identically.
func (s *State) Digest() (string, error) {
	b, err := json.Marshal(s.Issues)
	if err != nil {
		return "", fmt.Errorf("digest state: %w", err)
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

// UnmarshalJSON restores a state and rebuilds the applied set from Order.
func (s *State) UnmarshalJSON(data []byte) error {
	type plain State
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*s = State(p)
	if s.Issues == nil {
		s.Issues = make(map[string]*Issue)
	}
	s.applied = make(map[string]bool, len(s.Order))
	for _, id := range s.Order {
		s.applied[id] = true
	}
	return nil
}
