package harness

import "github.com/roach88/intrack/internal/projector"

// ReplicaState is what one replica sees after the last step.
type ReplicaState struct {
	Name string `json:"name"`
	// Events are the ids of the replica's events in order.
	Events      []string `json:"events"`
	Digest      string   `json:"digest"`
	Ambiguities int      `json:"ambiguities"`

	State *projector.State `json:"-"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every assertion held.
	Pass bool `json:"pass"`

	// Errors contains assertion failure messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Replicas holds the final state of each replica, in scenario order.
	Replicas []*ReplicaState `json:"replicas"`

	// Refs maps scenario refs to issue and comment ids.
	Refs map[string]string `json:"refs"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Errors: []string{},
		Refs:   make(map[string]string),
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Replica returns the final state of the named replica.
func (r *Result) Replica(name string) *ReplicaState {
	for _, rs := range r.Replicas {
		if rs.Name == name {
			return rs
		}
	}
	return nil
}
