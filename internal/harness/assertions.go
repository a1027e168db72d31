package harness

import (
	"fmt"
	"reflect"
	"slices"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/intrack/internal/event"
	"github.com/roach88/intrack/internal/projector"
)

// AssertionError is returned when an assertion fails.
// It names the replica so a failure in a multi-replica run is easy to place.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Replica  string
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s", e.Type)
	if e.Replica != "" {
		fmt.Fprintf(&buf, " on %s", e.Replica)
	}
	buf.WriteString("\n")
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)
	return buf.String()
}

// issueView is the part of an issue an issue assertion can check. Ids and
// timestamps are left out since scenarios cannot know them.
type issueView struct {
	Title    string            `yaml:"title"`
	Body     string            `yaml:"body"`
	Status   string            `yaml:"status"`
	Priority string            `yaml:"priority"`
	Author   string            `yaml:"author"`
	Tags     []string          `yaml:"tags"`
	Fields   map[string]string `yaml:"fields"`
	Comments int               `yaml:"comments"`
	// Bodies are the comment bodies in display order.
	Bodies []string `yaml:"bodies"`
}

// viewOf returns the issue as the generic map a YAML expectation decodes
// to, so both sides compare with the same types.
func viewOf(i *projector.Issue) (map[string]any, error) {
	v := issueView{
		Title:    i.Title,
		Body:     i.Body,
		Status:   i.Status.String(),
		Priority: i.Priority.String(),
		Author:   i.Author,
		Tags:     slices.Clone(i.Tags),
		Fields:   i.Fields,
		Comments: len(i.Comments),
	}
	if v.Tags == nil {
		v.Tags = []string{}
	}
	if v.Fields == nil {
		v.Fields = map[string]string{}
	}
	v.Bodies = []string{}
	for _, c := range i.Comments {
		v.Bodies = append(v.Bodies, c.Body)
	}

	data, err := yaml.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// assertIssue checks the listed fields of one issue (subset match).
func assertIssue(rs *ReplicaState, id string, a Assertion) error {
	issue, ok := rs.State.Issue(id)
	if !ok {
		return &AssertionError{
			Type:     AssertIssue,
			Replica:  rs.Name,
			Expected: fmt.Sprintf("issue %s (%s)", a.Issue, event.ShortID(id)),
			Actual:   "issue not found",
		}
	}
	view, err := viewOf(issue)
	if err != nil {
		return fmt.Errorf("issue view: %w", err)
	}

	keys := make([]string, 0, len(a.Expect))
	for k := range a.Expect {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		want := a.Expect[key]
		got, exists := view[key]
		if !exists {
			return &AssertionError{
				Type:     AssertIssue,
				Replica:  rs.Name,
				Expected: fmt.Sprintf("field %q to exist", key),
				Actual:   fmt.Sprintf("issue %s has no field %q", a.Issue, key),
			}
		}
		if !valuesEqual(got, want) {
			return &AssertionError{
				Type:     AssertIssue,
				Replica:  rs.Name,
				Expected: fmt.Sprintf("%s.%s = %v", a.Issue, key, want),
				Actual:   fmt.Sprintf("%s.%s = %v", a.Issue, key, got),
			}
		}
	}
	return nil
}

// valuesEqual compares two decoded YAML values. An empty list matches a
// missing one.
func valuesEqual(actual, expected any) bool {
	if actual == nil && expected == nil {
		return true
	}
	if isEmpty(actual) && isEmpty(expected) {
		return true
	}
	return reflect.DeepEqual(actual, expected)
}

func isEmpty(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case []any:
		return len(x) == 0
	case map[string]any:
		return len(x) == 0
	}
	return false
}

// assertConverged checks that every replica holds the same events in the
// same order and materializes the same state.
func assertConverged(replicas []*ReplicaState) error {
	if len(replicas) < 2 {
		return nil
	}
	first := replicas[0]
	for _, rs := range replicas[1:] {
		if !slices.Equal(first.Events, rs.Events) {
			return &AssertionError{
				Type:     AssertConverged,
				Replica:  rs.Name,
				Expected: fmt.Sprintf("%d events as on %s", len(first.Events), first.Name),
				Actual:   fmt.Sprintf("%d events, %s", len(rs.Events), firstDifference(first.Events, rs.Events)),
			}
		}
		if first.Digest != rs.Digest {
			return &AssertionError{
				Type:     AssertConverged,
				Replica:  rs.Name,
				Expected: fmt.Sprintf("digest %s as on %s", event.ShortID(first.Digest), first.Name),
				Actual:   fmt.Sprintf("digest %s", event.ShortID(rs.Digest)),
			}
		}
	}
	return nil
}

func firstDifference(a, b []string) string {
	for i := range min(len(a), len(b)) {
		if a[i] != b[i] {
			return fmt.Sprintf("first difference at %d: %s vs %s", i, event.ShortID(a[i]), event.ShortID(b[i]))
		}
	}
	return fmt.Sprintf("one is a prefix of the other at %d", min(len(a), len(b)))
}

// assertCount checks a per-replica number.
func assertCount(rs *ReplicaState, a Assertion) error {
	var got int
	var what string
	switch a.Type {
	case AssertIssueCount:
		got, what = rs.State.Len(), "issues"
	case AssertEventCount:
		got, what = len(rs.Events), "events"
	case AssertAmbiguities:
		got, what = rs.Ambiguities, "ambiguities"
	}
	if got != a.Count {
		return &AssertionError{
			Type:     a.Type,
			Replica:  rs.Name,
			Expected: fmt.Sprintf("%d %s", a.Count, what),
			Actual:   fmt.Sprintf("%d %s", got, what),
		}
	}
	return nil
}

// targets returns the replicas an assertion applies to.
func targets(result *Result, a Assertion) []*ReplicaState {
	if a.Replica == "" {
		return result.Replicas
	}
	if rs := result.Replica(a.Replica); rs != nil {
		return []*ReplicaState{rs}
	}
	return nil
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errors []string

	for i, assertion := range assertions {
		var errs []error

		switch assertion.Type {
		case AssertConverged:
			errs = append(errs, assertConverged(targets(result, assertion)))
		case AssertIssue:
			id, ok := result.Refs[assertion.Issue]
			if !ok {
				errs = append(errs, fmt.Errorf("assertion[%d]: unknown issue ref %q", i, assertion.Issue))
				break
			}
			for _, rs := range targets(result, assertion) {
				errs = append(errs, assertIssue(rs, id, assertion))
			}
		case AssertIssueCount, AssertEventCount, AssertAmbiguities:
			for _, rs := range targets(result, assertion) {
				errs = append(errs, assertCount(rs, assertion))
			}
		default:
			errs = append(errs, fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type))
		}

		for _, err := range errs {
			if err != nil {
				errors = append(errors, err.Error())
			}
		}
	}

	return errors
}
