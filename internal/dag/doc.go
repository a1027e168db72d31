// Package dag holds the causal graph of events and derives the deterministic
// total order T used everywhere state is computed.
//
// Events live in an arena indexed by id. Order sorts by causal depth (roots
// are depth 0, every other event is one deeper than its deepest known parent)
// and breaks ties by ascending id. Because depth and id are functions of the
// event set alone, every replica that holds the same events computes the same
// order, whatever order it discovered them in.
//
// All traversals are iterative so very long histories cannot exhaust the stack.
package dag
