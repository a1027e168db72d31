package harness

import (
	"bytes"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// Scenario describes replicas working on issues and what they must end up
// seeing.
type Scenario struct {
	// Name uniquely identifies this scenario. It names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Replicas names the simulated clones. Each name is also the author of
	// the replica's events and the name of its log file.
	Replicas []string `yaml:"replicas"`

	// Steps run in order.
	Steps []Step `yaml:"steps"`

	// Assertions are evaluated after the last step.
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one action of one replica.
type Step struct {
	// Do is the step type, one of the Step* constants.
	Do string `yaml:"do"`

	// Replica performs the step. Sync ignores it.
	Replica string `yaml:"replica,omitempty"`

	// Ref names the issue or comment created by this step.
	Ref string `yaml:"ref,omitempty"`

	// Issue is the ref of the issue the step changes.
	Issue string `yaml:"issue,omitempty"`

	// Comment is the ref of the comment an edit_comment step changes.
	Comment string `yaml:"comment,omitempty"`

	Title    string            `yaml:"title,omitempty"`
	Body     string            `yaml:"body,omitempty"`
	Status   string            `yaml:"status,omitempty"`
	Priority string            `yaml:"priority,omitempty"`
	Tags     []string          `yaml:"tags,omitempty"`
	Fields   map[string]string `yaml:"fields,omitempty"`

	// From is the replica a pull reads from.
	From string `yaml:"from,omitempty"`
}

// Step types.
const (
	StepCreate      = "create"
	StepTitle       = "title"
	StepBody        = "body"
	StepComment     = "comment"
	StepEditComment = "edit_comment"
	StepStatus      = "status"
	StepPriority    = "priority"
	StepTag         = "tag"
	StepUntag       = "untag"
	StepField       = "field"
	StepPull        = "pull"
	StepSync        = "sync"
)

// Assertion validates the final state of one or all replicas.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Replica restricts the assertion to one replica. Empty means all.
	Replica string `yaml:"replica,omitempty"`

	// Issue is the ref of the issue checked by an issue assertion.
	Issue string `yaml:"issue,omitempty"`

	// Expect contains expected issue fields (used by issue).
	// Subset match: only the listed fields are checked.
	Expect map[string]any `yaml:"expect,omitempty"`

	// Count is the expected number (used by issue_count, event_count and
	// ambiguities).
	Count int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertConverged   = "converged"
	AssertIssue       = "issue"
	AssertIssueCount  = "issue_count"
	AssertEventCount  = "event_count"
	AssertAmbiguities = "ambiguities"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or fails validation.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks names and references before anything runs, so a
// typo fails at load time instead of half way through.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(s.Replicas) == 0 {
		return fmt.Errorf("at least one replica is required")
	}
	seen := map[string]bool{}
	for _, r := range s.Replicas {
		if r == "" {
			return fmt.Errorf("replica names must not be empty")
		}
		if seen[r] {
			return fmt.Errorf("duplicate replica %q", r)
		}
		seen[r] = true
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("at least one step is required")
	}

	refs := map[string]bool{}
	for i, step := range s.Steps {
		if err := validateStep(s, refs, i, step); err != nil {
			return err
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(s, refs, i, a); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(s *Scenario, refs map[string]bool, index int, step Step) error {
	if step.Do != StepSync && !slices.Contains(s.Replicas, step.Replica) {
		return fmt.Errorf("steps[%d]: unknown replica %q", index, step.Replica)
	}
	needIssue := func() error {
		if !refs[step.Issue] {
			return fmt.Errorf("steps[%d]: unknown issue ref %q", index, step.Issue)
		}
		return nil
	}
	addRef := func() error {
		if step.Ref == "" {
			return nil
		}
		if refs[step.Ref] {
			return fmt.Errorf("steps[%d]: duplicate ref %q", index, step.Ref)
		}
		refs[step.Ref] = true
		return nil
	}

	switch step.Do {
	case StepCreate:
		if step.Ref == "" {
			return fmt.Errorf("steps[%d]: ref is required for create", index)
		}
		if step.Title == "" {
			return fmt.Errorf("steps[%d]: title is required for create", index)
		}
		return addRef()
	case StepComment:
		if err := needIssue(); err != nil {
			return err
		}
		return addRef()
	case StepEditComment:
		if err := needIssue(); err != nil {
			return err
		}
		if !refs[step.Comment] {
			return fmt.Errorf("steps[%d]: unknown comment ref %q", index, step.Comment)
		}
	case StepTitle, StepBody, StepStatus, StepPriority, StepTag, StepUntag, StepField:
		return needIssue()
	case StepPull:
		if !slices.Contains(s.Replicas, step.From) || step.From == step.Replica {
			return fmt.Errorf("steps[%d]: pull needs another replica in from, got %q", index, step.From)
		}
	case StepSync:
	default:
		return fmt.Errorf("steps[%d]: unknown step type %q", index, step.Do)
	}
	return nil
}

func validateAssertion(s *Scenario, refs map[string]bool, index int, a Assertion) error {
	if a.Replica != "" && !slices.Contains(s.Replicas, a.Replica) {
		return fmt.Errorf("assertions[%d]: unknown replica %q", index, a.Replica)
	}
	switch a.Type {
	case AssertConverged:
	case AssertIssue:
		if !refs[a.Issue] {
			return fmt.Errorf("assertions[%d]: unknown issue ref %q", index, a.Issue)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for issue", index)
		}
	case AssertIssueCount, AssertEventCount, AssertAmbiguities:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for %s", index, a.Type)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
