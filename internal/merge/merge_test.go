package merge

import (
	"math/rand"
	"slices"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/intrack/internal/event"
	"github.com/roach88/intrack/internal/testutil"
)

func TestMergeUnion(t *testing.T) {
	events := testutil.ForkedHistory(t)

	res := Merge(events[:4], events[2:])

	assert.Len(t, res.Events, len(events), "duplicates are merged by id")
	assert.ElementsMatch(t, testutil.IDs(events), testutil.IDs(res.Events))
	assert.Empty(t, res.Unresolved)
	assert.Nil(t, res.Cycle)
}

func TestMergeConcurrentComments(t *testing.T) {
	ana := testutil.NewReplica("ana")
	bo := testutil.NewReplica("bo")
	create := ana.Create(t, "Fix bug")
	a := ana.Comment(t, create.ID, "from ana", create.ID)
	b := bo.Comment(t, create.ID, "from bo", create.ID)

	left := Merge([]event.Event{create, a}, []event.Event{create, b})
	right := Merge([]event.Event{create, b}, []event.Event{create, a})

	require.Len(t, left.Events, 3)
	assert.Equal(t, testutil.IDs(left.Events), testutil.IDs(right.Events))
	assert.Equal(t, create.ID, left.Events[0].ID)
	assert.Less(t, left.Events[1].ID, left.Events[2].ID, "concurrent events are ordered by id")
	assert.Empty(t, left.Ambiguities, "comments never conflict")
}

func TestMergeRecordsAmbiguity(t *testing.T) {
	ana := testutil.NewReplica("ana")
	bo := testutil.NewReplica("bo")
	create := ana.Create(t, "Fix bug")
	a := ana.Title(t, create.ID, "Fix crash", create.ID)
	b := bo.Title(t, create.ID, "Fix hang", create.ID)

	res := Merge([]event.Event{create, a}, []event.Event{create, b})

	require.Len(t, res.Ambiguities, 1)
	amb := res.Ambiguities[0]
	assert.Equal(t, create.ID, amb.Issue)
	assert.Equal(t, "title", amb.Field)
	assert.Equal(t, res.Events[2].ID, amb.Winner, "the later event in order wins")
	assert.Equal(t, res.Events[1].ID, amb.Loser)
	assert.Contains(t, amb.Error(), "concurrent title edits")
}

func TestMergeSequentialEditsAreNotAmbiguous(t *testing.T) {
	ana := testutil.NewReplica("ana")
	bo := testutil.NewReplica("bo")
	create := ana.Create(t, "Fix bug")
	a := ana.Title(t, create.ID, "Fix crash", create.ID)
	b := bo.Title(t, create.ID, "Fix hang", a.ID)
	tagA := ana.Emit(t, event.AddTag{IssueID: create.ID, Tag: "ui"}, create.ID)
	tagB := bo.Emit(t, event.AddTag{IssueID: create.ID, Tag: "db"}, create.ID)

	res := Merge([]event.Event{create, a, b, tagA, tagB})

	assert.Empty(t, res.Ambiguities, "different tags are different fields")
}

func TestMergeReportsUnresolvedParents(t *testing.T) {
	events := testutil.ForkedHistory(t)

	res := Merge(events[2:])

	require.NotEmpty(t, res.Unresolved)
	assert.Len(t, res.Events, len(events)-2, "events with missing parents are kept")
}

// split derives two overlapping sublogs from events.
func split(events []event.Event, seed int64) ([]event.Event, []event.Event) {
	r := rand.New(rand.NewSource(seed))
	var a, b []event.Event
	for _, e := range testutil.Shuffle(events, seed) {
		switch r.Intn(3) {
		case 0:
			a = append(a, e)
		case 1:
			b = append(b, e)
		default:
			a = append(a, e)
			b = append(b, e)
		}
	}
	return a, b
}

func TestMergeProperties(t *testing.T) {
	events := testutil.ForkedHistory(t)

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("merge is commutative", prop.ForAll(
		func(seed int64) bool {
			a, b := split(events, seed)
			return slices.Equal(testutil.IDs(Merge(a, b).Events), testutil.IDs(Merge(b, a).Events))
		},
		gen.Int64(),
	))

	properties.Property("merge is idempotent", prop.ForAll(
		func(seed int64) bool {
			a, b := split(events, seed)
			once := Merge(a, b)
			twice := Merge(once.Events, a, b)
			return slices.Equal(testutil.IDs(once.Events), testutil.IDs(twice.Events)) &&
				len(once.Ambiguities) == len(twice.Ambiguities)
		},
		gen.Int64(),
	))

	properties.Property("merge is associative", prop.ForAll(
		func(seed int64) bool {
			a, b := split(events, seed)
			c, _ := split(events, seed+1)
			left := Merge(Merge(a, b).Events, c)
			right := Merge(a, Merge(b, c).Events)
			return slices.Equal(testutil.IDs(left.Events), testutil.IDs(right.Events))
		},
		gen.Int64(),
	))

	properties.TestingRun(t)
}
