package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustLoad(t *testing.T, name string) *Scenario {
	t.Helper()
	s, err := LoadScenario("testdata/scenarios/" + name + ".yaml")
	require.NoError(t, err)
	return s
}

func mustParse(t *testing.T, data string) *Scenario {
	t.Helper()
	s, err := ParseScenario([]byte(data))
	require.NoError(t, err)
	return s
}

func TestRunTriage(t *testing.T) {
	result, err := Run(mustLoad(t, "triage"))
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)

	require.Len(t, result.Replicas, 3)
	for _, rs := range result.Replicas {
		assert.Len(t, rs.Events, 8, rs.Name)
		assert.Equal(t, result.Replicas[0].Digest, rs.Digest, rs.Name)
	}
	assert.Contains(t, result.Refs, "crash")
	assert.Contains(t, result.Refs, "seen")
}

func TestRunConcurrentTitle(t *testing.T) {
	result, err := Run(mustLoad(t, "concurrent_title"))
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)

	// Either title may win, but every replica keeps the same one.
	var titles []string
	for _, rs := range result.Replicas {
		issue, ok := rs.State.Issue(result.Refs["issue"])
		require.True(t, ok)
		titles = append(titles, issue.Title)
	}
	assert.Contains(t, []string{"Login fails on mobile", "Login fails with SSO"}, titles[0])
	assert.Equal(t, titles[0], titles[1])
}

func TestRunOffline(t *testing.T) {
	result, err := Run(mustLoad(t, "offline"))
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)

	assert.Len(t, result.Replica("carol").Events, 3)
	assert.Equal(t, result.Replica("alice").Digest, result.Replica("carol").Digest)
	assert.NotEqual(t, result.Replica("alice").Digest, result.Replica("bob").Digest)
	assert.Nil(t, result.Replica("dave"))
}

func TestRunDivergedFailsConverged(t *testing.T) {
	s := mustParse(t, `
name: diverged
replicas: [alice, bob]
steps:
  - do: create
    replica: alice
    ref: a
    title: Only on alice
assertions:
  - type: converged
  - type: issue_count
    replica: bob
    count: 1
`)
	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], "Assertion failed: converged on bob")
	assert.Contains(t, result.Errors[1], "Expected: 1 issues")
	assert.Contains(t, result.Errors[1], "Actual: 0 issues")
}

func TestRunIssueAssertionMismatch(t *testing.T) {
	s := mustParse(t, `
name: mismatch
replicas: [alice]
steps:
  - do: create
    replica: alice
    ref: a
    title: Real title
    tags: [bug]
assertions:
  - type: issue
    issue: a
    expect:
      title: Other title
  - type: issue
    issue: a
    expect:
      tags: [bug]
      fields: {}
      comments: 0
  - type: issue
    issue: a
    expect:
      assignee: nobody
`)
	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], "a.title = Other title")
	assert.Contains(t, result.Errors[0], "a.title = Real title")
	assert.Contains(t, result.Errors[1], `field "assignee" to exist`)
}

func TestRunAllStepTypes(t *testing.T) {
	s := mustParse(t, `
name: all_steps
replicas: [solo]
steps:
  - do: create
    replica: solo
    ref: a
    title: First
    priority: l
  - do: title
    replica: solo
    issue: a
    title: Second
  - do: body
    replica: solo
    issue: a
    body: details
  - do: comment
    replica: solo
    issue: a
    ref: c
    body: draft
  - do: edit_comment
    replica: solo
    issue: a
    comment: c
    body: final
  - do: status
    replica: solo
    issue: a
    status: done
  - do: priority
    replica: solo
    issue: a
    priority: critical
  - do: tag
    replica: solo
    issue: a
    tags: [x]
  - do: tag
    replica: solo
    issue: a
    tags: [y]
  - do: untag
    replica: solo
    issue: a
    tags: [x]
  - do: field
    replica: solo
    issue: a
    fields: {team: core}
  - do: sync
assertions:
  - type: event_count
    count: 11
  - type: issue
    issue: a
    expect:
      title: Second
      body: details
      status: closed
      priority: critical
      tags: [y]
      fields: {team: core}
      bodies: [final]
`)
	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRunStepErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "bad priority",
			yaml: "name: x\nreplicas: [a]\nsteps:\n  - do: create\n    replica: a\n    ref: i\n    title: T\n    priority: urgent\n",
			want: `step 0 (create): cannot parse "urgent" into priority`,
		},
		{
			name: "bad status",
			yaml: "name: x\nreplicas: [a]\nsteps:\n" +
				"  - do: create\n    replica: a\n    ref: i\n    title: T\n" +
				"  - do: status\n    replica: a\n    issue: i\n    status: wontfix\n",
			want: `step 1 (status): cannot parse "wontfix" into status`,
		},
		{
			name: "two tags",
			yaml: "name: x\nreplicas: [a]\nsteps:\n" +
				"  - do: create\n    replica: a\n    ref: i\n    title: T\n" +
				"  - do: tag\n    replica: a\n    issue: i\n    tags: [x, y]\n",
			want: "tag takes exactly one tag, got 2",
		},
		{
			name: "issue not pulled yet",
			yaml: "name: x\nreplicas: [a, b]\nsteps:\n" +
				"  - do: create\n    replica: a\n    ref: i\n    title: T\n" +
				"  - do: comment\n    replica: b\n    issue: i\n    body: hi\n",
			want: "step 1 (comment): append AddComment",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Run(mustParse(t, tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestRunIsDeterministic(t *testing.T) {
	first, err := Run(mustLoad(t, "concurrent_title"))
	require.NoError(t, err)
	second, err := Run(mustLoad(t, "concurrent_title"))
	require.NoError(t, err)

	assert.Equal(t, first.Refs, second.Refs)
	for i := range first.Replicas {
		assert.Equal(t, first.Replicas[i].Events, second.Replicas[i].Events)
		assert.Equal(t, first.Replicas[i].Digest, second.Replicas[i].Digest)
	}
}
