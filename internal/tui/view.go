package tui

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"

	"github.com/roach88/intrack/internal/event"
	"github.com/roach88/intrack/internal/projector"
	"github.com/roach88/intrack/internal/query"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))
	headStyle   = lipgloss.NewStyle().Bold(true)
	closedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6BCB77"))
)

// maxColumnWidth caps columns so one long title does not push the rest off
// screen.
const maxColumnWidth = 48

func tableStyles() table.Styles {
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("#444444")).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("#FFFFFF")).
		Background(lipgloss.Color("#5B8DEF")).
		Bold(false)
	return s
}

// columns sizes the table columns to their content. The sort column is
// marked in its title.
func columns(layout query.Layout, rows []query.Row, width int) []table.Column {
	cols := make([]table.Column, len(layout.Columns))
	for i, c := range layout.Columns {
		title := c.Header()
		if c == layout.SortBy {
			if layout.Desc {
				title += " v"
			} else {
				title += " ^"
			}
		}
		w := lipgloss.Width(title)
		for _, r := range rows {
			w = max(w, lipgloss.Width(r.Cells[i]))
		}
		cols[i] = table.Column{Title: title, Width: min(w, maxColumnWidth)}
	}
	// Shrink the widest column when the table does not fit.
	total := 0
	for _, c := range cols {
		total += c.Width + 2
	}
	if width > 0 && total > width && len(cols) > 0 {
		widest := 0
		for i, c := range cols {
			if c.Width > cols[widest].Width {
				widest = i
			}
		}
		cols[widest].Width = max(8, cols[widest].Width-(total-width))
	}
	return cols
}

func tableRows(rows []query.Row) []table.Row {
	out := make([]table.Row, len(rows))
	for i, r := range rows {
		cells := make(table.Row, len(r.Cells))
		for k, c := range r.Cells {
			cells[k] = strings.Join(strings.Fields(c), " ")
		}
		out[i] = cells
	}
	return out
}

func formatTime(ms int64) string {
	return time.UnixMilli(ms).UTC().Format(query.TimeLayout)
}

// renderThread renders an issue and its comments for the thread view.
func renderThread(i *projector.Issue, width int) string {
	wrap := lipgloss.NewStyle().Width(max(20, width-2))
	var b strings.Builder

	status := i.Status.String()
	if i.Status == event.StatusClosed {
		status = closedStyle.Render(status)
	}
	b.WriteString(titleStyle.Render(i.Title) + "\n")
	fmt.Fprintf(&b, "%s  %s  %s  by %s  %s\n",
		event.ShortID(i.ID), status, i.Priority, i.Author, dimStyle.Render(formatTime(i.Created)))
	if len(i.Tags) > 0 {
		b.WriteString(dimStyle.Render("tags: "+strings.Join(i.Tags, ", ")) + "\n")
	}
	if len(i.Fields) > 0 {
		keys := make([]string, 0, len(i.Fields))
		for k := range i.Fields {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			b.WriteString(dimStyle.Render(k+": "+i.Fields[k]) + "\n")
		}
	}
	if body := strings.TrimSpace(i.Body); body != "" {
		b.WriteString("\n" + wrap.Render(body) + "\n")
	}

	for _, c := range i.Comments {
		head := fmt.Sprintf("%s on %s", c.Author, formatTime(c.Created))
		if c.Edited != 0 {
			head += " (edited)"
		}
		b.WriteString("\n" + headStyle.Render(head) + "\n")
		b.WriteString(wrap.Render(strings.TrimSpace(c.Body)) + "\n")
	}
	if len(i.Comments) == 0 {
		b.WriteString("\n" + dimStyle.Render("No comments yet. Press c to add one.") + "\n")
	}
	return b.String()
}

// View renders the current screen.
func (m *Model) View() string {
	var b strings.Builder
	b.WriteString(m.header() + "\n")

	switch m.screen {
	case screenTable:
		if len(m.rows) == 0 {
			b.WriteString(dimStyle.Render("No issues. Press n to create one.") + "\n")
		} else {
			b.WriteString(m.table.View() + "\n")
		}
		if m.searching || m.filter.Text != "" {
			b.WriteString(m.search.View() + "\n")
		}
	case screenThread:
		b.WriteString(m.thread.View() + "\n")
	case screenHelp:
		b.WriteString(m.help.FullHelpView(m.keys.FullHelp()) + "\n")
	}

	switch {
	case m.err != nil:
		b.WriteString(errorStyle.Render("Error: "+m.err.Error()) + "\n")
	case m.status != "":
		b.WriteString(dimStyle.Render(m.status) + "\n")
	}
	if m.screen != screenHelp {
		b.WriteString(m.help.ShortHelpView(m.keys.ShortHelp()))
	}
	return b.String()
}

func (m *Model) header() string {
	title := titleStyle.Render("intrack")
	switch m.screen {
	case screenThread:
		if m.current != nil {
			return title + dimStyle.Render("  issue "+event.ShortID(m.current.ID))
		}
	case screenHelp:
		return title + dimStyle.Render("  keys")
	}
	order := "ascending"
	if m.layout.Desc {
		order = "descending"
	}
	info := fmt.Sprintf("  %d issues, sorted by %s %s", len(m.rows), m.layout.SortBy.Header(), order)
	return title + dimStyle.Render(info)
}
