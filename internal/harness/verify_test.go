package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/intrack/internal/event"
	"github.com/roach88/intrack/internal/projector"
	"github.com/roach88/intrack/internal/testutil"
)

// byAuthor splits events into one log per author, as on disk.
func byAuthor(events []event.Event) [][]event.Event {
	index := map[string]int{}
	var logs [][]event.Event
	for _, e := range events {
		i, ok := index[e.Author]
		if !ok {
			i = len(logs)
			index[e.Author] = i
			logs = append(logs, nil)
		}
		logs[i] = append(logs[i], e)
	}
	return logs
}

func TestVerifyForkedHistory(t *testing.T) {
	events := testutil.ForkedHistory(t)

	report, err := Verify(byAuthor(events), DefaultVerifyOptions)
	require.NoError(t, err)

	assert.True(t, report.Pass, "failed: %v", report.Failed())
	assert.Empty(t, report.Failed())
	assert.Equal(t, len(events), report.Events)
	assert.Zero(t, report.Unresolved)
	assert.False(t, report.Cycle)
	assert.NotEmpty(t, report.Digest)

	names := make([]string, 0, len(report.Checks))
	for _, c := range report.Checks {
		names = append(names, c.Name)
		assert.Equal(t, report.Digest, c.Digest, c.Name)
	}
	assert.Contains(t, names, "replay twice")
	assert.Contains(t, names, "reversed logs")
	assert.Contains(t, names, "shuffle seed 1")
	assert.Contains(t, names, "shuffle seed 8")
	// 2 checks + 8 shuffles + 4 resume cuts for 7 events.
	assert.Len(t, report.Checks, 14)
}

func TestVerifyMaterializedView(t *testing.T) {
	events := testutil.ForkedHistory(t)
	logs := byAuthor(events)

	opts := DefaultVerifyOptions
	opts.State = projector.Replay(testutil.ForkedHistory(t))
	report, err := Verify(logs, opts)
	require.NoError(t, err)
	assert.True(t, report.Pass, "failed: %v", report.Failed())

	// A view missing the last event is stale.
	opts.State = projector.Replay(events[:len(events)-1])
	report, err = Verify(logs, opts)
	require.NoError(t, err)
	assert.False(t, report.Pass)
	failed := report.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, "materialized view", failed[0].Name)
	assert.Contains(t, failed[0].Detail, "want "+event.ShortID(report.Digest))
}

func TestVerifyEmpty(t *testing.T) {
	report, err := Verify(nil, DefaultVerifyOptions)
	require.NoError(t, err)
	assert.True(t, report.Pass)
	assert.Zero(t, report.Events)
}

func TestCuts(t *testing.T) {
	assert.Nil(t, cuts(1, 4))
	assert.Nil(t, cuts(10, 0))
	assert.Equal(t, []int{2, 4, 6, 8}, cuts(10, 4))
	assert.Equal(t, []int{1}, cuts(2, 4))
}
