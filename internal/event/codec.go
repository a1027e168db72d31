package event

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/intrack/internal/canon"
)

// MaxLineSize bounds a single encoded event. Longer lines are never written
// and are reported as corrupt when read.
const MaxLineSize = 16 << 20

// Encode returns the log line for e, including the trailing newline.
func Encode(e Event) ([]byte, error) {
	obj := header(e.Author, e.Timestamp, e.Kind, e.Parents, e.Data)
	obj["id"] = canon.String(e.ID)
	b, err := canon.Marshal(obj)
	if err != nil {
		return nil, fmt.Errorf("encode event %s: %w", e.Short(), err)
	}
	if len(b) > MaxLineSize {
		return nil, fmt.Errorf("encode event %s: %w: %d bytes", e.Short(), ErrLineTooLong, len(b))
	}
	return append(b, '\n'), nil
}

// EncodeAll concatenates the lines of events in order.
func EncodeAll(events []Event) ([]byte, error) {
	var buf bytes.Buffer
	for _, e := range events {
		line, err := Encode(e)
		if err != nil {
			return nil, err
		}
		buf.Write(line)
	}
	return buf.Bytes(), nil
}

type lineRecord struct {
	ID      string          `json:"id"`
	Parents []string        `json:"parents"`
	Author  string          `json:"author"`
	TS      int64           `json:"ts"`
	Kind    string          `json:"kind"`
	Data    json.RawMessage `json:"data"`
}

// Decode parses one log line. The payload is re-canonicalized and the id is
// recomputed; a line whose id does not match its content is rejected.
func Decode(line []byte) (Event, error) {
	line = bytes.TrimRight(line, "\r\n")

	var rec lineRecord
	if err := json.Unmarshal(line, &rec); err != nil {
		return Event{}, err
	}
	if !ValidID(rec.ID) {
		return Event{}, fmt.Errorf("invalid id %q", rec.ID)
	}
	if rec.Kind == "" {
		return Event{}, fmt.Errorf("missing kind")
	}
	if rec.Author == "" {
		return Event{}, fmt.Errorf("missing author")
	}
	if len(rec.Data) == 0 {
		return Event{}, fmt.Errorf("missing data")
	}

	v, err := canon.FromJSON(rec.Data)
	if err != nil {
		return Event{}, fmt.Errorf("data: %w", err)
	}
	if _, ok := v.(canon.Object); !ok {
		return Event{}, fmt.Errorf("data: expected object")
	}
	data, err := canon.Marshal(v)
	if err != nil {
		return Event{}, fmt.Errorf("data: %w", err)
	}

	parents, err := normalizeParents(rec.Parents)
	if err != nil {
		return Event{}, err
	}

	kind := Kind(rec.Kind)
	payload, err := decodePayload(kind, data)
	if err != nil {
		return Event{}, err
	}

	id, err := ComputeID(rec.Author, rec.TS, kind, parents, data)
	if err != nil {
		return Event{}, err
	}
	if id != rec.ID {
		return Event{}, fmt.Errorf("%w: have %s, computed %s", ErrIDMismatch, ShortID(rec.ID), ShortID(id))
	}

	return Event{
		ID:        id,
		Parents:   parents,
		Author:    rec.Author,
		Timestamp: rec.TS,
		Kind:      kind,
		Payload:   payload,
		Data:      data,
	}, nil
}

// IsConflictMarker reports whether line is a marker left behind by a textual
// merge (<<<<<<<, |||||||, =======, >>>>>>>).
func IsConflictMarker(line []byte) bool {
	line = bytes.TrimRight(line, "\r\n")
	for _, m := range [][]byte{[]byte("<<<<<<<"), []byte(">>>>>>>"), []byte("|||||||")} {
		if bytes.HasPrefix(line, m) && (len(line) == len(m) || line[len(m)] == ' ') {
			return true
		}
	}
	return bytes.Equal(line, []byte("======="))
}

// DecodeLog reads a whole log. Malformed lines, including lines longer than
// MaxLineSize, are skipped and returned as DecodeErrors carrying their full
// text; blank lines and conflict markers are ignored. The returned error is
// non-nil only when reading itself fails.
func DecodeLog(file string, r io.Reader) ([]Event, []*DecodeError, error) {
	var (
		events []Event
		warns  []*DecodeError
	)

	br := bufio.NewReaderSize(r, 64*1024)
	n := 0
	for {
		raw, readErr := br.ReadBytes('\n')
		if len(raw) > 0 {
			n++
			line := bytes.TrimRight(raw, "\r\n")
			switch {
			case len(bytes.TrimSpace(line)) == 0 || IsConflictMarker(line):
			case len(line) > MaxLineSize:
				err := fmt.Errorf("%w: %d bytes", ErrLineTooLong, len(line))
				warns = append(warns, &DecodeError{File: file, Line: n, Text: string(line), Err: err})
			default:
				e, err := Decode(line)
				if err != nil {
					warns = append(warns, &DecodeError{File: file, Line: n, Text: string(line), Err: err})
					break
				}
				events = append(events, e)
			}
		}
		if errors.Is(readErr, io.EOF) {
			return events, warns, nil
		}
		if readErr != nil {
			return events, warns, fmt.Errorf("read %s: %w", file, readErr)
		}
	}
}
