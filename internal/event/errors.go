package event

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidPayload reports a payload that fails validation.
	ErrInvalidPayload = errors.New("invalid payload")

	// ErrIDMismatch reports a line whose id is not the hash of its content.
	ErrIDMismatch = errors.New("event id does not match content")

	// ErrLineTooLong reports an encoded event longer than MaxLineSize.
	ErrLineTooLong = errors.New("line too long")

	// ErrNoMatch reports an id prefix that matches nothing.
	ErrNoMatch = errors.New("no such id")

	// ErrAmbiguousPrefix reports an id prefix that matches several ids.
	ErrAmbiguousPrefix = errors.New("ambiguous id prefix")
)

// DecodeError describes one log line that could not be decoded.
// Decode errors are warnings: the line is skipped and the rest of the log is read.
type DecodeError struct {
	File string
	Line int
	Text string
	Err  error
}

func (e *DecodeError) Error() string {
	if e.File != "" {
		return fmt.Sprintf("%s:%d: decode event: %v", e.File, e.Line, e.Err)
	}
	return fmt.Sprintf("line %d: decode event: %v", e.Line, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
