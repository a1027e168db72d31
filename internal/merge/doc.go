// Package merge reconciles event logs from several replicas.
//
// A merge is the union of the inputs ordered by the causal total order, so
// its result depends only on the set of events: merging is commutative,
// associative and idempotent, and two replicas holding the same events
// materialize the same state. Concurrent edits of the same field are resolved
// last-writer-wins under that order and reported as ambiguities.
package merge
