// Package cache keeps projector snapshots in a local SQLite database.
//
// The cache lives next to the logs but is never committed. Everything in it
// can be rebuilt by replaying the logs, so callers treat a missing, stale or
// unreadable entry as a cache miss.
package cache
