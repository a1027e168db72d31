package event

import (
	"fmt"
	"strings"
)

// Kind tags the payload variant of an event.
type Kind string

const (
	KindCreateIssue    Kind = "CreateIssue"
	KindEditTitle      Kind = "EditTitle"
	KindEditBody       Kind = "EditBody"
	KindAddComment     Kind = "AddComment"
	KindEditComment    Kind = "EditComment"
	KindChangeStatus   Kind = "ChangeStatus"
	KindChangePriority Kind = "ChangePriority"
	KindAddTag         Kind = "AddTag"
	KindRemoveTag      Kind = "RemoveTag"
	KindSetField       Kind = "SetField"
)

// Known reports whether this version can interpret the kind.
func (k Kind) Known() bool {
	switch k {
	case KindCreateIssue, KindEditTitle, KindEditBody, KindAddComment, KindEditComment,
		KindChangeStatus, KindChangePriority, KindAddTag, KindRemoveTag, KindSetField:
		return true
	}
	return false
}

// Status is the open/closed state of an issue.
type Status int

const (
	StatusOpen Status = iota
	StatusClosed
)

func (s Status) String() string {
	switch s {
	case StatusOpen:
		return "open"
	case StatusClosed:
		return "closed"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// ParseStatus accepts open/active/pending and closed/done/finished, case-insensitively.
func ParseStatus(s string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "open", "active", "pending":
		return StatusOpen, nil
	case "closed", "done", "finished":
		return StatusClosed, nil
	}
	return StatusOpen, fmt.Errorf("cannot parse %q into status: expected open or closed", s)
}

func (s Status) MarshalText() ([]byte, error) {
	if s != StatusOpen && s != StatusClosed {
		return nil, fmt.Errorf("invalid status %d", int(s))
	}
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(text []byte) error {
	v, err := ParseStatus(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Priority ranks issues. The zero value means "not set".
type Priority int

const (
	PriorityUnset Priority = iota
	PriorityTrivial
	PriorityLow
	PriorityMedium
	PriorityHigh
	PriorityCritical
	PriorityBlocker
)

// DefaultPriority is used for issues created without one.
const DefaultPriority = PriorityLow

var priorityNames = [...]string{"", "trivial", "low", "medium", "high", "critical", "blocker"}

func (p Priority) String() string {
	if p < PriorityUnset || p > PriorityBlocker {
		return fmt.Sprintf("Priority(%d)", int(p))
	}
	return priorityNames[p]
}

// ParsePriority accepts full names and the one-letter shorthands (t, l, m, h, c, b).
func ParsePriority(s string) (Priority, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trivial", "t", "typo":
		return PriorityTrivial, nil
	case "low", "l":
		return PriorityLow, nil
	case "medium", "m":
		return PriorityMedium, nil
	case "high", "h":
		return PriorityHigh, nil
	case "critical", "c":
		return PriorityCritical, nil
	case "blocker", "b":
		return PriorityBlocker, nil
	}
	return PriorityUnset, fmt.Errorf("cannot parse %q into priority: expected trivial/low/medium/high/critical/blocker", s)
}

func (p Priority) MarshalText() ([]byte, error) {
	if p <= PriorityUnset || p > PriorityBlocker {
		return nil, fmt.Errorf("invalid priority %d", int(p))
	}
	return []byte(p.String()), nil
}

func (p *Priority) UnmarshalText(text []byte) error {
	v, err := ParsePriority(string(text))
	if err != nil {
		return err
	}
	*p = v
	return nil
}
