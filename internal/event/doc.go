// Package event defines issue events, their content-addressed identity and
// the line-oriented codec used for log files.
//
// An Event is immutable. Its ID is a SHA-256 hash over the canonical encoding
// of author, timestamp, kind, causal parents and payload, so two replicas that
// create the same event produce the same ID, and the ID of an event implies the
// IDs of its parents. Events are never edited; corrections are new events.
//
// Log files hold one canonical JSON object per line:
//
//	{"author":"ana","data":{"title":"Fix bug"},"id":"3f2a...","kind":"CreateIssue","parents":[],"ts":1700000000000}
//
// Decoding is lenient at the file level (DecodeLog skips malformed lines and
// reports them) and strict at the line level (Decode recomputes the ID).
// Unknown kinds decode to Unknown so older readers keep newer history intact.
package event
