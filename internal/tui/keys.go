package tui

import "github.com/charmbracelet/bubbles/key"

// keyMap lists the bindings of every screen. It implements help.KeyMap.
type keyMap struct {
	Up       key.Binding
	Down     key.Binding
	SortDesc key.Binding
	SortAsc  key.Binding
	PrevSort key.Binding
	NextSort key.Binding
	Filter   key.Binding
	Open     key.Binding
	Back     key.Binding
	New      key.Binding
	Comment  key.Binding
	Status   key.Binding
	Reload   key.Binding
	Help     key.Binding
	Quit     key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		Up:       key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k", "up")),
		Down:     key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j", "down")),
		SortDesc: key.NewBinding(key.WithKeys("J"), key.WithHelp("J", "sort descending")),
		SortAsc:  key.NewBinding(key.WithKeys("K"), key.WithHelp("K", "sort ascending")),
		PrevSort: key.NewBinding(key.WithKeys("H"), key.WithHelp("H", "sort by previous column")),
		NextSort: key.NewBinding(key.WithKeys("L"), key.WithHelp("L", "sort by next column")),
		Filter:   key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "filter")),
		Open:     key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "open thread")),
		Back:     key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		New:      key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "new issue")),
		Comment:  key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "comment")),
		Status:   key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "open/close")),
		Reload:   key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
		Help:     key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Open, k.Filter, k.New, k.Comment, k.Status, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Open, k.Back},
		{k.SortDesc, k.SortAsc, k.PrevSort, k.NextSort, k.Filter},
		{k.New, k.Comment, k.Status, k.Reload},
		{k.Help, k.Quit},
	}
}
