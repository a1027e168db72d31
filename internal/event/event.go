package event

import (
	"fmt"
	"slices"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/intrack/internal/canon"
)

// Event is an immutable, content-addressed record of one state change.
type Event struct {
	ID      string
	Parents []string // sorted, deduplicated; nil for roots
	Author  string
	// Timestamp is wall-clock milliseconds. It feeds the id and is shown to
	// users but never orders events on its own.
	Timestamp int64
	Kind      Kind
	Payload   Payload
	// Data is the canonical payload encoding, exactly as hashed and written.
	Data []byte
}

// New builds an event, computing its canonical payload and id.
//
// The returned Payload is decoded back from Data, so it carries the same
// normalization (NFC strings, sorted tags) that a reader of the log will see.
func New(author string, ts int64, parents []string, p Payload) (Event, error) {
	if p == nil {
		return Event{}, fmt.Errorf("new event: %w: nil payload", ErrInvalidPayload)
	}
	if _, ok := p.(Unknown); ok {
		return Event{}, fmt.Errorf("new event: %w: cannot create unknown payloads", ErrInvalidPayload)
	}
	author = norm.NFC.String(strings.TrimSpace(author))
	if author == "" {
		return Event{}, fmt.Errorf("new event: author is required")
	}
	if err := p.validate(); err != nil {
		return Event{}, fmt.Errorf("new event: %w", err)
	}
	parents, err := normalizeParents(parents)
	if err != nil {
		return Event{}, fmt.Errorf("new event: %w", err)
	}

	data, err := canon.Marshal(p.fields())
	if err != nil {
		return Event{}, fmt.Errorf("new event: %w", err)
	}
	payload, err := decodePayload(p.Kind(), data)
	if err != nil {
		return Event{}, fmt.Errorf("new event: %w", err)
	}
	id, err := ComputeID(author, ts, p.Kind(), parents, data)
	if err != nil {
		return Event{}, err
	}

	e := Event{
		ID:        id,
		Parents:   parents,
		Author:    author,
		Timestamp: ts,
		Kind:      p.Kind(),
		Payload:   payload,
		Data:      data,
	}
	// An event must fit on a line the decoder accepts.
	if _, err := Encode(e); err != nil {
		return Event{}, fmt.Errorf("new event: %w", err)
	}
	return e, nil
}

// Issue returns the id of the issue the event belongs to.
// For CreateIssue this is the event's own id; for Unknown it is "".
func (e Event) Issue() string {
	if e.Kind == KindCreateIssue {
		return e.ID
	}
	if e.Payload == nil {
		return ""
	}
	return e.Payload.Issue()
}

// Short returns the display prefix of the event id.
func (e Event) Short() string {
	return ShortID(e.ID)
}

func normalizeParents(parents []string) ([]string, error) {
	if len(parents) == 0 {
		return nil, nil
	}
	out := slices.Clone(parents)
	slices.Sort(out)
	out = slices.Compact(out)
	for _, p := range out {
		if !ValidID(p) {
			return nil, fmt.Errorf("invalid parent id %q", p)
		}
	}
	return out, nil
}
