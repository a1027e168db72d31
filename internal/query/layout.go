package query

import "slices"

// Layout is the state of the table controls: which columns are shown and
// which of them the rows are sorted by.
type Layout struct {
	Columns []Column
	SortBy  Column
	Desc    bool
	// ThenBy breaks ties of SortBy before the final id tie-break.
	ThenBy []SortKey
}

// DefaultLayout shows DefaultColumns sorted by id.
func DefaultLayout() Layout {
	return Layout{Columns: slices.Clone(DefaultColumns), SortBy: ColID}
}

// SetColumns replaces the visible columns. The sort column falls back to the
// first visible column when it is no longer shown.
func (l *Layout) SetColumns(cols []Column) {
	if len(cols) == 0 {
		cols = DefaultColumns
	}
	l.Columns = slices.Clone(cols)
	if !slices.Contains(l.Columns, l.SortBy) {
		l.SortBy = l.Columns[0]
	}
}

// NextSort moves the sort column one to the right, wrapping around.
func (l *Layout) NextSort() {
	l.shift(1)
}

// PrevSort moves the sort column one to the left, wrapping around.
func (l *Layout) PrevSort() {
	l.shift(-1)
}

func (l *Layout) shift(by int) {
	if len(l.Columns) == 0 {
		return
	}
	i := slices.Index(l.Columns, l.SortBy)
	if i < 0 {
		l.SortBy = l.Columns[0]
		return
	}
	n := len(l.Columns)
	l.SortBy = l.Columns[((i+by)%n+n)%n]
}

// SetDesc sets the sort direction.
func (l *Layout) SetDesc(desc bool) {
	l.Desc = desc
}

// SortKeys returns the sort of the layout.
func (l Layout) SortKeys() []SortKey {
	if l.SortBy == "" {
		return slices.Clone(l.ThenBy)
	}
	return append([]SortKey{{Column: l.SortBy, Desc: l.Desc}}, l.ThenBy...)
}

// SetSort makes keys the sort of the layout. The first key becomes the
// primary sort column.
func (l *Layout) SetSort(keys []SortKey) {
	if len(keys) == 0 {
		return
	}
	l.SortBy, l.Desc = keys[0].Column, keys[0].Desc
	l.ThenBy = slices.Clone(keys[1:])
}

// View renders the index with this layout.
func (l Layout) View(x *Index, filter Filter) []Row {
	return x.View(filter, l.SortKeys(), l.Columns)
}
