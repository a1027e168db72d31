package harness

import (
	"cmp"
	"fmt"
	"slices"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/intrack/internal/canon"
	"github.com/roach88/intrack/internal/projector"
)

// Snapshot renders what the first replica of a result sees as canonical
// JSON. Ids and timestamps are left out and issues are sorted by title, so
// the snapshot only changes when the materialized issues do.
func Snapshot(scenarioName string, result *Result) ([]byte, error) {
	if len(result.Replicas) == 0 {
		return nil, fmt.Errorf("result has no replicas")
	}
	rs := result.Replicas[0]

	issues := make([]*projector.Issue, 0, rs.State.Len())
	for _, id := range rs.State.IssueIDs() {
		issue, _ := rs.State.Issue(id)
		issues = append(issues, issue)
	}
	slices.SortFunc(issues, func(a, b *projector.Issue) int {
		return cmp.Or(cmp.Compare(a.Title, b.Title), cmp.Compare(a.Author, b.Author), cmp.Compare(a.Created, b.Created))
	})

	list := make(canon.Array, len(issues))
	for i, issue := range issues {
		list[i] = issueSnapshot(issue)
	}
	return canon.Marshal(canon.Object{
		"scenario":    canon.String(scenarioName),
		"events":      canon.Int(len(rs.Events)),
		"ambiguities": canon.Int(rs.Ambiguities),
		"issues":      list,
	})
}

func issueSnapshot(i *projector.Issue) canon.Object {
	comments := make(canon.Array, len(i.Comments))
	for k, c := range i.Comments {
		comments[k] = canon.Object{
			"author": canon.String(c.Author),
			"body":   canon.String(c.Body),
			"edited": canon.Bool(c.Edited != 0),
		}
	}
	fields := canon.Object{}
	for k, v := range i.Fields {
		fields[k] = canon.String(v)
	}
	return canon.Object{
		"title":    canon.String(i.Title),
		"body":     canon.String(i.Body),
		"status":   canon.String(i.Status.String()),
		"priority": canon.String(i.Priority.String()),
		"author":   canon.String(i.Author),
		"tags":     canon.Strings(i.Tags),
		"fields":   fields,
		"comments": comments,
	}
}

// RunWithGolden executes a scenario and compares its snapshot against a
// golden file stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the snapshot doesn't match.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an already computed result against a golden file.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := Snapshot(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
	return nil
}
