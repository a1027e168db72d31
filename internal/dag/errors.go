package dag

import (
	"fmt"

	"github.com/roach88/intrack/internal/event"
)

// UnresolvedParentError reports a causal parent that is not part of the
// graph after a full load. The event is kept and ordered as a root.
type UnresolvedParentError struct {
	Event  string
	Parent string
}

func (e *UnresolvedParentError) Error() string {
	return fmt.Sprintf("event %s: unresolved parent %s (ordered as root)",
		event.ShortID(e.Event), event.ShortID(e.Parent))
}

// CycleError reports events that could not be ordered topologically. Content
// addressing makes cycles impossible unless ids were forged.
type CycleError struct {
	Events []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("%d events form a parent cycle (ordered by id)", len(e.Events))
}
