// Package tui is the interactive issue table.
//
// The model only drives three tracker operations: it renders views, appends
// events and reloads the logs. Editing runs the external editor through
// tea.ExecProcess, which releases the terminal while the editor runs and
// restores it however the editor exits.
package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/roach88/intrack/internal/editor"
	"github.com/roach88/intrack/internal/event"
	"github.com/roach88/intrack/internal/projector"
	"github.com/roach88/intrack/internal/query"
	"github.com/roach88/intrack/internal/tracker"
)

// Tracker is the part of the tracker the interface uses.
type Tracker interface {
	View(filter query.Filter, layout query.Layout) []query.Row
	Issue(prefix string) (*projector.Issue, error)
	Append(ctx context.Context, p event.Payload, parents []string) (event.Event, error)
	Reload(ctx context.Context) (tracker.ReloadReport, error)
}

// Editor prepares edit sessions and the process that edits them.
type Editor interface {
	Prepare(initial, ext string) (*editor.Session, error)
	Command(path string) *exec.Cmd
}

// Options configures New.
type Options struct {
	Tracker Tracker
	Editor  Editor
	Layout  query.Layout
	Filter  query.Filter
	// Input and Output default to the terminal.
	Input  io.Reader
	Output io.Writer
}

type screen int

const (
	screenTable screen = iota
	screenThread
	screenHelp
)

type editKind int

const (
	editNew editKind = iota
	editComment
)

// editFinishedMsg carries the text saved in the editor.
type editFinishedMsg struct {
	kind  editKind
	issue string
	text  string
	err   error
}

// appendedMsg reports the result of an append.
type appendedMsg struct {
	event event.Event
	err   error
}

// reloadedMsg reports the result of a reload.
type reloadedMsg struct {
	report tracker.ReloadReport
	err    error
}

// Model is the bubbletea model of the interface.
type Model struct {
	ctx     context.Context
	tracker Tracker
	editor  Editor

	layout query.Layout
	filter query.Filter
	rows   []query.Row

	screen screen
	back   screen // screen the help returns to

	table     table.Model
	search    textinput.Model
	searching bool
	// saved is the filter text restored when a search is cancelled.
	saved   string
	thread  viewport.Model
	current *projector.Issue

	keys   keyMap
	help   help.Model
	status string
	err    error

	width  int
	height int
}

// New returns the model showing the table.
func New(ctx context.Context, opts Options) *Model {
	layout := opts.Layout
	if len(layout.Columns) == 0 {
		layout = query.DefaultLayout()
	}
	search := textinput.New()
	search.Prompt = "/"
	search.Placeholder = "search"

	m := &Model{
		ctx:     ctx,
		tracker: opts.Tracker,
		editor:  opts.Editor,
		layout:  layout,
		filter:  opts.Filter,
		table:   table.New(table.WithFocused(true), table.WithStyles(tableStyles())),
		search:  search,
		thread:  viewport.New(80, 20),
		keys:    defaultKeys(),
		help:    help.New(),
		width:   80,
		height:  24,
	}
	m.search.SetValue(m.filter.Text)
	m.refresh()
	return m
}

// Run starts the interface and blocks until the user quits.
func Run(ctx context.Context, opts Options) error {
	popts := []tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}
	if opts.Input != nil {
		popts = append(popts, tea.WithInput(opts.Input))
	}
	if opts.Output != nil {
		popts = append(popts, tea.WithOutput(opts.Output))
	}
	_, err := tea.NewProgram(New(ctx, opts), popts...).Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (m *Model) Init() tea.Cmd {
	return nil
}

// Update handles one message.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.resize()
		return m, nil

	case editFinishedMsg:
		return m, m.finishEdit(msg)

	case appendedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.status = fmt.Sprintf("%s %s", describe(msg.event.Kind), event.ShortID(msg.event.Issue()))
		m.refresh()
		return m, nil

	case reloadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.status = fmt.Sprintf("Reloaded %d events, %d new", msg.report.Events, len(msg.report.New))
		if n := len(msg.report.Ambiguities); n > 0 {
			m.status += fmt.Sprintf(", %d concurrent edits", n)
		}
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		if m.searching {
			return m, m.updateSearch(msg)
		}
		return m, m.handleKey(msg)
	}

	if m.screen == screenThread {
		var cmd tea.Cmd
		m.thread, cmd = m.thread.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return tea.Quit
	case key.Matches(msg, m.keys.Help):
		if m.screen == screenHelp {
			m.screen = m.back
		} else {
			m.back, m.screen = m.screen, screenHelp
		}
		return nil
	case key.Matches(msg, m.keys.Back):
		m.err = nil
		switch m.screen {
		case screenHelp:
			m.screen = m.back
		case screenThread:
			m.screen = screenTable
			m.current = nil
		default:
			if m.filter.Text != "" {
				m.filter.Text = ""
				m.search.SetValue("")
				m.refresh()
			}
		}
		return nil
	case key.Matches(msg, m.keys.Reload):
		return m.reload()
	case key.Matches(msg, m.keys.New):
		return m.startEdit(editNew, nil)
	}

	switch m.screen {
	case screenTable:
		return m.handleTableKey(msg)
	case screenThread:
		switch {
		case key.Matches(msg, m.keys.Comment):
			return m.startEdit(editComment, m.current)
		case key.Matches(msg, m.keys.Status):
			return m.toggleStatus(m.current)
		}
		var cmd tea.Cmd
		m.thread, cmd = m.thread.Update(msg)
		return cmd
	}
	return nil
}

func (m *Model) handleTableKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.Up):
		m.table.MoveUp(1)
	case key.Matches(msg, m.keys.Down):
		m.table.MoveDown(1)
	case key.Matches(msg, m.keys.SortDesc):
		m.layout.SetDesc(true)
		m.refresh()
	case key.Matches(msg, m.keys.SortAsc):
		m.layout.SetDesc(false)
		m.refresh()
	case key.Matches(msg, m.keys.PrevSort):
		m.layout.PrevSort()
		m.refresh()
	case key.Matches(msg, m.keys.NextSort):
		m.layout.NextSort()
		m.refresh()
	case key.Matches(msg, m.keys.Filter):
		m.searching = true
		m.saved = m.filter.Text
		return m.search.Focus()
	case key.Matches(msg, m.keys.Open):
		if issue := m.selected(); issue != nil && m.openThread(issue.ID) {
			m.screen = screenThread
		}
	case key.Matches(msg, m.keys.Comment):
		if issue := m.selected(); issue != nil {
			return m.startEdit(editComment, issue)
		}
	case key.Matches(msg, m.keys.Status):
		return m.toggleStatus(m.selected())
	default:
		var cmd tea.Cmd
		m.table, cmd = m.table.Update(msg)
		return cmd
	}
	return nil
}

// updateSearch feeds keys to the search box, filtering as the user types.
func (m *Model) updateSearch(msg tea.KeyMsg) tea.Cmd {
	switch msg.Type {
	case tea.KeyEnter:
		m.searching = false
		m.search.Blur()
		return nil
	case tea.KeyEsc:
		m.searching = false
		m.search.Blur()
		m.search.SetValue(m.saved)
		m.filter.Text = m.saved
		m.refresh()
		return nil
	}
	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	if m.search.Value() != m.filter.Text {
		m.filter.Text = m.search.Value()
		m.refresh()
	}
	return cmd
}

// selected returns the issue under the cursor.
func (m *Model) selected() *projector.Issue {
	i := m.table.Cursor()
	if i < 0 || i >= len(m.rows) {
		return nil
	}
	return m.rows[i].Issue
}

// refresh rebuilds the rows from the tracker, keeping the cursor on the same
// issue when it is still shown.
func (m *Model) refresh() {
	var keep string
	if issue := m.selected(); issue != nil {
		keep = issue.ID
	}
	m.rows = m.tracker.View(m.filter, m.layout)
	m.table.SetRows(nil)
	m.table.SetColumns(columns(m.layout, m.rows, m.width))
	m.table.SetRows(tableRows(m.rows))

	cursor := 0
	for i, r := range m.rows {
		if r.ID == keep {
			cursor = i
			break
		}
	}
	m.table.SetCursor(cursor)

	if m.current != nil {
		m.openThread(m.current.ID)
	}
	m.resize()
}

// openThread loads issue id into the thread view.
func (m *Model) openThread(id string) bool {
	issue, err := m.tracker.Issue(id)
	if err != nil {
		m.err = err
		return false
	}
	reopen := m.current != nil && m.current.ID == id
	m.current = issue
	m.thread.SetContent(renderThread(issue, m.width))
	if !reopen {
		m.thread.GotoTop()
	}
	return true
}

func (m *Model) resize() {
	// Header, search line, status line and help take five rows.
	h := max(3, m.height-5)
	m.table.SetHeight(h)
	m.table.SetWidth(m.width)
	m.thread.Width = m.width
	m.thread.Height = h
	m.help.Width = m.width
}

func (m *Model) reload() tea.Cmd {
	ctx, tr := m.ctx, m.tracker
	m.status = "Reloading..."
	return func() tea.Msg {
		report, err := tr.Reload(ctx)
		return reloadedMsg{report: report, err: err}
	}
}

func (m *Model) appendCmd(p event.Payload) tea.Cmd {
	ctx, tr := m.ctx, m.tracker
	return func() tea.Msg {
		e, err := tr.Append(ctx, p, nil)
		return appendedMsg{event: e, err: err}
	}
}

func (m *Model) toggleStatus(issue *projector.Issue) tea.Cmd {
	if issue == nil {
		return nil
	}
	status := event.StatusClosed
	if issue.Status == event.StatusClosed {
		status = event.StatusOpen
	}
	return m.appendCmd(event.ChangeStatus{IssueID: issue.ID, Status: status})
}

// startEdit opens the editor on a template. The terminal is handed to the
// editor until it exits.
func (m *Model) startEdit(kind editKind, issue *projector.Issue) tea.Cmd {
	if m.editor == nil {
		m.err = errors.New("no editor configured")
		return nil
	}
	var (
		template string
		target   string
	)
	switch kind {
	case editNew:
		template = editor.IssueTemplate(event.DefaultPriority, nil)
	case editComment:
		if issue == nil {
			return nil
		}
		template = editor.CommentTemplate(issue.Title)
		target = issue.ID
	}

	session, err := m.editor.Prepare(template, ".md")
	if err != nil {
		m.err = err
		return nil
	}
	return tea.ExecProcess(m.editor.Command(session.Path), func(runErr error) tea.Msg {
		text, err := session.Finish(runErr)
		return editFinishedMsg{kind: kind, issue: target, text: text, err: err}
	})
}

func (m *Model) finishEdit(msg editFinishedMsg) tea.Cmd {
	if errors.Is(msg.err, editor.ErrEmpty) || errors.Is(msg.err, editor.ErrUnchanged) {
		m.status = "Aborted: " + msg.err.Error()
		return nil
	}
	if msg.err != nil {
		m.err = msg.err
		return nil
	}

	switch msg.kind {
	case editNew:
		p, err := editor.ParseIssue(msg.text)
		if err != nil {
			m.err = err
			return nil
		}
		return m.appendCmd(p)
	case editComment:
		body, err := editor.ParseComment(msg.text)
		if errors.Is(err, editor.ErrEmpty) {
			m.status = "Aborted: " + err.Error()
			return nil
		}
		if err != nil {
			m.err = err
			return nil
		}
		return m.appendCmd(event.AddComment{IssueID: msg.issue, Body: body})
	}
	return nil
}

func describe(k event.Kind) string {
	switch k {
	case event.KindCreateIssue:
		return "Created"
	case event.KindAddComment:
		return "Commented on"
	case event.KindChangeStatus:
		return "Changed status of"
	}
	return "Updated"
}
