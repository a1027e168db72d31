package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/roach88/intrack/internal/event"
	"github.com/roach88/intrack/internal/projector"
	"github.com/roach88/intrack/internal/query"
)

func formatTime(ms int64) string {
	return time.UnixMilli(ms).UTC().Format(query.TimeLayout)
}

// renderTable writes rows as aligned columns under a header line.
func renderTable(w io.Writer, cols []query.Column, rows []query.Row) error {
	if len(rows) == 0 {
		_, err := fmt.Fprintln(w, "No issues")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	headers := make([]string, len(cols))
	for i, c := range cols {
		headers[i] = c.Header()
	}
	fmt.Fprintln(tw, strings.Join(headers, "\t"))
	for _, r := range rows {
		cells := make([]string, len(r.Cells))
		for i, c := range r.Cells {
			cells[i] = oneLine(c)
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	return tw.Flush()
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// renderIssue writes the full thread of one issue.
func renderIssue(w io.Writer, i *projector.Issue) error {
	var b strings.Builder
	fmt.Fprintf(&b, "%s  %s\n", event.ShortID(i.ID), oneLine(i.Title))
	fmt.Fprintf(&b, "id:        %s\n", i.ID)
	fmt.Fprintf(&b, "status:    %s\n", i.Status)
	fmt.Fprintf(&b, "priority:  %s\n", i.Priority)
	fmt.Fprintf(&b, "author:    %s\n", i.Author)
	fmt.Fprintf(&b, "created:   %s\n", formatTime(i.Created))
	fmt.Fprintf(&b, "updated:   %s\n", formatTime(i.Updated))
	if len(i.Tags) > 0 {
		fmt.Fprintf(&b, "tags:      %s\n", strings.Join(i.Tags, ", "))
	}
	if len(i.Fields) > 0 {
		keys := make([]string, 0, len(i.Fields))
		for k := range i.Fields {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		b.WriteString("fields:\n")
		for _, k := range keys {
			fmt.Fprintf(&b, "  %s: %s\n", k, i.Fields[k])
		}
	}
	heads := make([]string, len(i.Heads))
	for k, h := range i.Heads {
		heads[k] = event.ShortID(h)
	}
	fmt.Fprintf(&b, "heads:     %s\n", strings.Join(heads, " "))

	if body := strings.TrimSpace(i.Body); body != "" {
		fmt.Fprintf(&b, "\n%s\n", body)
	}
	for _, c := range i.Comments {
		fmt.Fprintf(&b, "\n--- %s %s on %s", event.ShortID(c.ID), c.Author, formatTime(c.Created))
		if c.Edited != 0 {
			fmt.Fprintf(&b, " (edited %s)", formatTime(c.Edited))
		}
		fmt.Fprintf(&b, "\n%s\n", strings.TrimSpace(c.Body))
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// renderLog writes one line per event.
func renderLog(w io.Writer, events []event.Event) error {
	if len(events) == 0 {
		_, err := fmt.Fprintln(w, "No events")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTime\tAuthor\tKind\tIssue\tParents")
	for _, e := range events {
		parents := make([]string, len(e.Parents))
		for k, p := range e.Parents {
			parents[k] = event.ShortID(p)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			e.Short(), formatTime(e.Timestamp), e.Author, e.Kind,
			event.ShortID(e.Issue()), strings.Join(parents, ","))
	}
	return tw.Flush()
}

// EventView is the JSON form of an event in command output.
type EventView struct {
	ID        string          `json:"id"`
	Parents   []string        `json:"parents"`
	Author    string          `json:"author"`
	Timestamp int64           `json:"timestamp"`
	Kind      event.Kind      `json:"kind"`
	Issue     string          `json:"issue,omitempty"`
	Payload   json.RawMessage `json:"payload"`
}

func eventViews(events []event.Event) []EventView {
	out := make([]EventView, len(events))
	for k, e := range events {
		parents := e.Parents
		if parents == nil {
			parents = []string{}
		}
		out[k] = EventView{
			ID:        e.ID,
			Parents:   parents,
			Author:    e.Author,
			Timestamp: e.Timestamp,
			Kind:      e.Kind,
			Issue:     e.Issue(),
			Payload:   json.RawMessage(e.Data),
		}
	}
	return out
}
