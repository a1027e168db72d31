package editor

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/intrack/internal/event"
)

const frontMatterSep = "---"

// issueHeader is the YAML front matter of the new-issue template.
type issueHeader struct {
	Title    string            `yaml:"title"`
	Priority string            `yaml:"priority"`
	Tags     []string          `yaml:"tags,flow"`
	Fields   map[string]string `yaml:"fields"`
}

// IssueTemplate returns the text a user edits to create an issue.
func IssueTemplate(priority event.Priority, tags []string) string {
	if priority == event.PriorityUnset {
		priority = event.DefaultPriority
	}
	if tags == nil {
		tags = []string{}
	}
	head, _ := yaml.Marshal(issueHeader{Priority: priority.String(), Tags: tags, Fields: map[string]string{}})

	var b strings.Builder
	b.WriteString("# Fill in the title, then describe the issue below the --- line.\n")
	b.WriteString("# priority: trivial, low, medium, high, critical or blocker.\n")
	b.Write(head)
	b.WriteString(frontMatterSep + "\n\n")
	return b.String()
}

// ParseIssue parses an edited issue template.
func ParseIssue(text string) (event.CreateIssue, error) {
	head, body, ok := splitFrontMatter(text)
	if !ok {
		return event.CreateIssue{}, fmt.Errorf("parse issue: missing %q line after the header", frontMatterSep)
	}
	var h issueHeader
	if err := yaml.Unmarshal([]byte(head), &h); err != nil {
		return event.CreateIssue{}, fmt.Errorf("parse issue: %w", err)
	}
	if strings.TrimSpace(h.Title) == "" {
		return event.CreateIssue{}, fmt.Errorf("parse issue: %w", ErrEmpty)
	}

	p := event.CreateIssue{
		Title:  strings.TrimSpace(h.Title),
		Body:   strings.TrimSpace(body),
		Tags:   h.Tags,
		Fields: h.Fields,
	}
	if strings.TrimSpace(h.Priority) != "" {
		prio, err := event.ParsePriority(h.Priority)
		if err != nil {
			return event.CreateIssue{}, fmt.Errorf("parse issue: %w", err)
		}
		p.Priority = prio
	}
	return p, nil
}

// splitFrontMatter splits text at the first separator line. A separator on
// the very first line opens the header and is skipped.
func splitFrontMatter(text string) (head, body string, ok bool) {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	lines := strings.Split(text, "\n")
	start := 0
	if len(lines) > 0 && strings.TrimSpace(lines[0]) == frontMatterSep {
		start = 1
	}
	for i := start; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == frontMatterSep {
			return strings.Join(lines[start:i], "\n"), strings.Join(lines[i+1:], "\n"), true
		}
	}
	return "", "", false
}

// CommentTemplate returns the text a user edits to write a comment.
func CommentTemplate(issueTitle string) string {
	return "\n# Write your comment above. Lines starting with # are ignored.\n# Issue: " + issueTitle + "\n"
}

// EditTemplate returns existing text followed by a commented hint.
func EditTemplate(text, what string) string {
	return text + "\n# Edit the " + what + " above. Lines starting with # are ignored.\n"
}

// ParseComment drops comment lines and surrounding whitespace.
func ParseComment(text string) (string, error) {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	s := strings.TrimSpace(strings.Join(out, "\n"))
	if s == "" {
		return "", ErrEmpty
	}
	return s, nil
}
