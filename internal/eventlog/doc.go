// Package eventlog persists events as append-only JSON Lines files inside the
// host repository.
//
// Each replica owns one file named after its replica id. A replica only ever
// appends to its own file, so concurrent work in different clones touches
// different files and merges without textual conflicts. Existing bytes are
// never rewritten: an append reads the file, adds lines at the end and
// atomically replaces it.
package eventlog
