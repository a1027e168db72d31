// Package projector folds an ordered event stream into issue state.
//
// State is an explicit value: callers own it and pass it around, and nothing
// is kept in package globals. Applying the same ordered events to an empty
// State always yields the same result, which is what lets replicas that hold
// the same events agree on what every issue looks like.
package projector
