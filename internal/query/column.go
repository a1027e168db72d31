package query

import (
	"cmp"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/roach88/intrack/internal/event"
	"github.com/roach88/intrack/internal/projector"
)

// Column names one table column. Custom fields use the "field:<key>" form.
type Column string

const (
	ColID       Column = "id"
	ColTitle    Column = "title"
	ColStatus   Column = "status"
	ColPriority Column = "priority"
	ColAuthor   Column = "author"
	ColCreated  Column = "created"
	ColUpdated  Column = "updated"
	ColComments Column = "comments"
	ColTags     Column = "tags"
)

const fieldPrefix = "field:"

// TimeLayout formats created and updated cells.
const TimeLayout = "2006-01-02 15:04"

// DefaultColumns are shown when no columns are configured.
var DefaultColumns = []Column{ColID, ColTitle, ColCreated, ColStatus, ColPriority, ColAuthor}

var builtin = []Column{ColID, ColTitle, ColStatus, ColPriority, ColAuthor, ColCreated, ColUpdated, ColComments, ColTags}

// FieldColumn returns the column showing custom field key.
func FieldColumn(key string) Column {
	return Column(fieldPrefix + key)
}

// Field returns the custom field key of c and whether c is a field column.
func (c Column) Field() (string, bool) {
	return strings.CutPrefix(string(c), fieldPrefix)
}

// Header is the column title shown in tables.
func (c Column) Header() string {
	if key, ok := c.Field(); ok {
		return key
	}
	switch c {
	case ColID:
		return "ID"
	case ColAuthor:
		return "Created By"
	}
	s := string(c)
	return strings.ToUpper(s[:1]) + s[1:]
}

// ParseColumn parses a column name. Unknown names are treated as custom
// fields, matching how the table accepts arbitrary field keys.
func ParseColumn(s string) (Column, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return "", fmt.Errorf("empty column name")
	}
	if s == "created_by" || s == "created-by" {
		return ColAuthor, nil
	}
	for _, c := range builtin {
		if Column(s) == c {
			return c, nil
		}
	}
	key, _ := strings.CutPrefix(s, fieldPrefix)
	if key == "" {
		return "", fmt.Errorf("empty field key in column %q", s)
	}
	return FieldColumn(key), nil
}

// ParseColumns parses a comma separated column list.
func ParseColumns(s string) ([]Column, error) {
	var cols []Column
	for _, part := range strings.Split(s, ",") {
		c, err := ParseColumn(part)
		if err != nil {
			return nil, err
		}
		cols = append(cols, c)
	}
	return cols, nil
}

// Cell renders the value of column c for issue i.
func Cell(i *projector.Issue, c Column) string {
	if key, ok := c.Field(); ok {
		return i.Fields[key]
	}
	switch c {
	case ColID:
		return event.ShortID(i.ID)
	case ColTitle:
		return i.Title
	case ColStatus:
		return i.Status.String()
	case ColPriority:
		return i.Priority.String()
	case ColAuthor:
		return i.Author
	case ColCreated:
		return formatTime(i.Created)
	case ColUpdated:
		return formatTime(i.Updated)
	case ColComments:
		return strconv.Itoa(len(i.Comments))
	case ColTags:
		return strings.Join(i.Tags, ",")
	}
	return ""
}

func formatTime(ms int64) string {
	return time.UnixMilli(ms).UTC().Format(TimeLayout)
}

// Compare orders a and b by column c. It is a three-way comparison and
// returns 0 for equal values; callers add their own tie-break.
func Compare(a, b *projector.Issue, c Column) int {
	if key, ok := c.Field(); ok {
		av, aok := a.Fields[key]
		bv, bok := b.Fields[key]
		// Issues without the field sort after those with it.
		if aok != bok {
			if aok {
				return -1
			}
			return 1
		}
		return cmp.Compare(av, bv)
	}
	switch c {
	case ColID:
		return cmp.Compare(a.ID, b.ID)
	case ColTitle:
		return cmp.Or(cmp.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title)), cmp.Compare(a.Title, b.Title))
	case ColStatus:
		return cmp.Compare(a.Status, b.Status)
	case ColPriority:
		return cmp.Compare(a.Priority, b.Priority)
	case ColAuthor:
		return cmp.Compare(a.Author, b.Author)
	case ColCreated:
		return cmp.Compare(a.Created, b.Created)
	case ColUpdated:
		return cmp.Compare(a.Updated, b.Updated)
	case ColComments:
		return cmp.Compare(len(a.Comments), len(b.Comments))
	case ColTags:
		return cmp.Compare(strings.Join(a.Tags, ","), strings.Join(b.Tags, ","))
	}
	return 0
}

// SortKey is one level of a multi-column sort.
type SortKey struct {
	Column Column
	Desc   bool
}

func (k SortKey) String() string {
	if k.Desc {
		return string(k.Column) + ":desc"
	}
	return string(k.Column)
}

// ParseSort parses "col[:asc|desc],..." into sort keys.
func ParseSort(s string) ([]SortKey, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var keys []SortKey
	for _, part := range strings.Split(s, ",") {
		name, dir, _ := strings.Cut(strings.TrimSpace(part), ":")
		// field columns contain a colon themselves
		if name == "field" {
			var key string
			key, dir, _ = strings.Cut(dir, ":")
			name = fieldPrefix + key
		}
		col, err := ParseColumn(name)
		if err != nil {
			return nil, err
		}
		k := SortKey{Column: col}
		switch strings.ToLower(dir) {
		case "", "asc":
		case "desc":
			k.Desc = true
		default:
			return nil, fmt.Errorf("invalid sort direction %q", dir)
		}
		keys = append(keys, k)
	}
	return keys, nil
}

// CompareKeys applies keys in turn and breaks remaining ties by id.
func CompareKeys(a, b *projector.Issue, keys []SortKey) int {
	for _, k := range keys {
		c := Compare(a, b, k.Column)
		if k.Desc {
			c = -c
		}
		if c != 0 {
			return c
		}
	}
	return cmp.Compare(a.ID, b.ID)
}
