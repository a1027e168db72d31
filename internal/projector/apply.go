package projector

import (
	"slices"

	"github.com/roach88/intrack/internal/event"
)

// Apply incorporates e and returns the id of the issue it changed, or "" when
// it changed nothing. Events already incorporated are ignored. Events that
// target a missing issue or comment are incorporated with a warning.
//
// Apply must see events in causal total order for the result to match other
// replicas.
func (s *State) Apply(e event.Event) string {
	if s.applied[e.ID] {
		return ""
	}
	if s.applied == nil {
		s.applied = make(map[string]bool)
	}
	s.applied[e.ID] = true
	s.Order = append(s.Order, e.ID)

	if _, ok := e.Payload.(event.Unknown); ok || e.Payload == nil {
		s.Unknown = append(s.Unknown, e.ID)
		return ""
	}

	if p, ok := e.Payload.(event.CreateIssue); ok {
		s.create(e, p)
		return e.ID
	}

	issue, ok := s.Issues[e.Issue()]
	if !ok {
		s.warn(e, "unknown issue "+event.ShortID(e.Issue()))
		return ""
	}
	if !s.mutate(issue, e) {
		return ""
	}
	issue.Heads = advance(issue.Heads, e)
	issue.Updated = max(issue.Updated, e.Timestamp)
	return issue.ID
}

func (s *State) create(e event.Event, p event.CreateIssue) {
	priority := p.Priority
	if priority == event.PriorityUnset {
		priority = event.DefaultPriority
	}
	tags := slices.Clone(p.Tags)
	slices.Sort(tags)
	fields := make(map[string]string, len(p.Fields))
	for k, v := range p.Fields {
		fields[k] = v
	}
	s.Issues[e.ID] = &Issue{
		ID:       e.ID,
		Title:    p.Title,
		Body:     p.Body,
		Status:   event.StatusOpen,
		Priority: priority,
		Author:   e.Author,
		Created:  e.Timestamp,
		Updated:  e.Timestamp,
		Tags:     slices.Compact(tags),
		Fields:   fields,
		Heads:    []string{e.ID},
		Provenance: map[string]string{
			"title":    e.ID,
			"body":     e.ID,
			"status":   e.ID,
			"priority": e.ID,
		},
	}
}

// mutate applies a non-create payload to issue and reports whether it took effect.
func (s *State) mutate(issue *Issue, e event.Event) bool {
	switch p := e.Payload.(type) {
	case event.EditTitle:
		issue.Title = p.Title
	case event.EditBody:
		issue.Body = p.Body
	case event.ChangeStatus:
		issue.Status = p.Status
	case event.ChangePriority:
		issue.Priority = p.Priority
	case event.AddComment:
		issue.Comments = append(issue.Comments, Comment{
			ID:      e.ID,
			Author:  e.Author,
			Body:    p.Body,
			Created: e.Timestamp,
		})
	case event.EditComment:
		c, ok := issue.Comment(p.CommentID)
		if !ok {
			s.warn(e, "unknown comment "+event.ShortID(p.CommentID))
			return false
		}
		c.Body = p.Body
		c.Edited = e.Timestamp
	case event.AddTag:
		if i, found := slices.BinarySearch(issue.Tags, p.Tag); !found {
			issue.Tags = slices.Insert(issue.Tags, i, p.Tag)
		}
	case event.RemoveTag:
		if i, found := slices.BinarySearch(issue.Tags, p.Tag); found {
			issue.Tags = slices.Delete(issue.Tags, i, i+1)
		}
	case event.SetField:
		if p.Value == "" {
			delete(issue.Fields, p.Key)
		} else {
			if issue.Fields == nil {
				issue.Fields = make(map[string]string)
			}
			issue.Fields[p.Key] = p.Value
		}
	default:
		s.warn(e, "unsupported payload")
		return false
	}
	if field := event.Field(e.Payload); field != "" {
		if issue.Provenance == nil {
			issue.Provenance = make(map[string]string)
		}
		issue.Provenance[field] = e.ID
	}
	return true
}

func (s *State) warn(e event.Event, reason string) {
	s.Warnings = append(s.Warnings, Warning{Event: e.ID, Reason: reason})
}

// advance replaces the parents of e found in heads with e itself.
func advance(heads []string, e event.Event) []string {
	out := heads[:0:0]
	for _, h := range heads {
		if _, isParent := slices.BinarySearch(e.Parents, h); !isParent {
			out = append(out, h)
		}
	}
	out = append(out, e.ID)
	slices.Sort(out)
	return out
}

// Replay folds events into a fresh state.
func Replay(events []event.Event) *State {
	s := New()
	for _, e := range events {
		s.Apply(e)
	}
	return s
}
