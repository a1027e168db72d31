package merge

import (
	"bytes"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/intrack/internal/event"
	"github.com/roach88/intrack/internal/testutil"
)

func encode(t *testing.T, events ...event.Event) []byte {
	t.Helper()
	b, err := event.EncodeAll(events)
	require.NoError(t, err)
	return b
}

func TestMergeFilesKeepsOursAsPrefix(t *testing.T) {
	events := testutil.ForkedHistory(t)
	base := encode(t, events[0])
	ours := encode(t, events[0], events[1], events[3])
	theirs := encode(t, events[0], events[2], events[4])

	out, res := MergeFiles(base, ours, theirs)

	assert.True(t, bytes.HasPrefix(out, ours))
	assert.Equal(t, 2, res.Added)
	assert.Zero(t, res.Carried)

	got, warns, err := event.DecodeLog("out", bytes.NewReader(out))
	require.NoError(t, err)
	assert.Empty(t, warns)
	assert.ElementsMatch(t, testutil.IDs(events[:5]), testutil.IDs(got))

	// The appended tail is in causal order: b1 before its child b2.
	tail := got[3:]
	assert.Equal(t, []string{events[2].ID, events[4].ID}, testutil.IDs(tail))
}

func TestMergeFilesIsIdempotent(t *testing.T) {
	events := testutil.ForkedHistory(t)
	ours := encode(t, events[:3]...)
	theirs := encode(t, events[1:]...)

	out, _ := MergeFiles(nil, ours, theirs)
	again, res := MergeFiles(nil, out, theirs)

	assert.Equal(t, out, again)
	assert.Zero(t, res.Added)
}

func TestMergeFilesCarriesCorruptLines(t *testing.T) {
	events := testutil.ForkedHistory(t)
	ours := encode(t, events[0])
	theirs := append(encode(t, events[0], events[1]), []byte("{not json\n<<<<<<< HEAD\n")...)

	out, res := MergeFiles(nil, ours, theirs)

	assert.Equal(t, 1, res.Added)
	assert.Equal(t, 1, res.Carried, "markers are dropped, corrupt data is kept")
	assert.Contains(t, string(out), "{not json\n")
	assert.NotContains(t, string(out), "<<<<<<<")
	require.Len(t, res.Warnings, 1)
}

func TestMergeFilesTerminatesOurLastLine(t *testing.T) {
	events := testutil.ForkedHistory(t)
	ours := bytes.TrimSuffix(encode(t, events[0]), []byte("\n"))
	theirs := encode(t, events[0], events[1])

	out, res := MergeFiles(nil, ours, theirs)

	assert.Equal(t, 1, res.Added)
	got, warns, err := event.DecodeLog("out", bytes.NewReader(out))
	require.NoError(t, err)
	assert.Empty(t, warns)
	assert.Len(t, got, 2)
}

func TestMergeFilesKeepsEventsAfterOversizedLine(t *testing.T) {
	events := testutil.ForkedHistory(t)
	junk := `{"junk":"` + strings.Repeat("x", event.MaxLineSize) + `"}`
	theirs := slices.Concat(encode(t, events[0]), []byte(junk+"\n"), encode(t, events[1]))

	out, res := MergeFiles(nil, nil, theirs)

	assert.Equal(t, 2, res.Added)
	assert.Equal(t, 1, res.Carried)
	require.Len(t, res.Warnings, 1)
	assert.ErrorIs(t, res.Warnings[0], event.ErrLineTooLong)
	assert.True(t, bytes.Contains(out, []byte(junk+"\n")), "the oversized line is carried, not lost")

	got, warns, err := event.DecodeLog("out", bytes.NewReader(out))
	require.NoError(t, err)
	require.Len(t, warns, 1)
	assert.Equal(t, testutil.IDs(events[:2]), testutil.IDs(got))

	again, res := MergeFiles(nil, out, theirs)
	assert.Equal(t, out, again)
	assert.Zero(t, res.Added)
	assert.Zero(t, res.Carried)
}
