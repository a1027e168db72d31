// Package canon provides the canonical JSON encoding used for event identity.
//
// Every byte that participates in an event id goes through Marshal, so two
// replicas that build the same event independently produce the same bytes and
// therefore the same id. The package imports nothing internal.
//
// Key constraints:
//   - No floats and no null: numbers are int64 only
//   - Object keys sorted by UTF-16 code units (RFC 8785)
//   - Strings NFC normalized, no HTML escaping
package canon
