package query

import (
	"maps"
	"slices"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/roach88/intrack/internal/event"
	"github.com/roach88/intrack/internal/projector"
)

type entry struct {
	issue *projector.Issue
	// text is the case-folded search text of the issue.
	text string
}

// Index holds one entry per issue with precomputed search text.
// It is not safe for concurrent use.
type Index struct {
	entries map[string]entry
}

// NewIndex returns an empty index.
func NewIndex() *Index {
	return &Index{entries: make(map[string]entry)}
}

// Rebuild recomputes every entry from s.
func (x *Index) Rebuild(s *projector.State) {
	x.entries = make(map[string]entry, len(s.Issues))
	x.Refresh(s, slices.Collect(maps.Keys(s.Issues)))
}

// Refresh recomputes the entries of the touched issues. Issues no longer in
// s are dropped.
func (x *Index) Refresh(s *projector.State, touched []string) {
	folder := cases.Fold()
	for _, id := range touched {
		issue, ok := s.Issues[id]
		if !ok {
			delete(x.entries, id)
			continue
		}
		x.entries[id] = entry{issue: issue, text: searchText(folder, issue)}
	}
}

// Len returns the number of indexed issues.
func (x *Index) Len() int {
	return len(x.entries)
}

func searchText(folder cases.Caser, i *projector.Issue) string {
	var b strings.Builder
	add := func(s string) {
		b.WriteString(s)
		b.WriteByte('\n')
	}
	add(i.ID)
	add(i.Title)
	add(i.Body)
	add(i.Author)
	for _, c := range i.Comments {
		add(c.Body)
	}
	for _, t := range i.Tags {
		add(t)
	}
	for _, k := range slices.Sorted(maps.Keys(i.Fields)) {
		add(k)
		add(i.Fields[k])
	}
	return fold(folder, b.String())
}

func fold(folder cases.Caser, s string) string {
	return folder.String(norm.NFC.String(s))
}

// Filter selects issues. The zero Filter matches everything.
type Filter struct {
	// Status restricts to the given statuses; empty means any.
	Status []event.Status
	// Tags must all be present on the issue.
	Tags []string
	// Text must appear in the search text. Matching ignores case and every
	// whitespace separated word must match on its own.
	Text string
}

func (f Filter) matcher() func(entry) bool {
	words := strings.Fields(fold(cases.Fold(), f.Text))
	return func(e entry) bool {
		if len(f.Status) > 0 && !slices.Contains(f.Status, e.issue.Status) {
			return false
		}
		for _, t := range f.Tags {
			if !e.issue.HasTag(t) {
				return false
			}
		}
		for _, w := range words {
			if !strings.Contains(e.text, w) {
				return false
			}
		}
		return true
	}
}

// Row is one rendered table row.
type Row struct {
	ID    string
	Cells []string
	Issue *projector.Issue
}

// Issues returns the issues matching filter in sort order.
func (x *Index) Issues(filter Filter, sort []SortKey) []*projector.Issue {
	match := filter.matcher()
	var out []*projector.Issue
	for _, e := range x.entries {
		if match(e) {
			out = append(out, e.issue)
		}
	}
	slices.SortFunc(out, func(a, b *projector.Issue) int {
		return CompareKeys(a, b, sort)
	})
	return out
}

// View returns the matching issues rendered as rows of the given columns.
func (x *Index) View(filter Filter, sort []SortKey, columns []Column) []Row {
	if len(columns) == 0 {
		columns = DefaultColumns
	}
	issues := x.Issues(filter, sort)
	rows := make([]Row, len(issues))
	for i, issue := range issues {
		cells := make([]string, len(columns))
		for j, c := range columns {
			cells[j] = Cell(issue, c)
		}
		rows[i] = Row{ID: issue.ID, Cells: cells, Issue: issue}
	}
	return rows
}
