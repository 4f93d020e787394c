// Package tui is the interactive terminal dashboard. It holds no table state of
// its own: every keystroke is forwarded to the dashboard controller and every
// paint is derived from the controller's frame.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"crawldash/internal/actions"
	"crawldash/internal/dashboard"
	"crawldash/internal/domain"
	"crawldash/internal/render"
	"crawldash/internal/view"
)

// Dashboard is the controller surface the terminal view drives.
type Dashboard interface {
	Frame() dashboard.Frame
	Updates() <-chan struct{}
	Lookup(id int64) (domain.URLRecord, bool)

	CycleStatusFilter()
	TypeQuery(q string)
	ToggleSort(key view.ColumnKey)
	NextPage()
	PrevPage()
	ToggleSelect(id int64)
	SelectPage()
	ClearSelection()
	RetryFailed() int

	Refresh(ctx context.Context) error
	Add(ctx context.Context, rawURL string) error
	Start(ctx context.Context, id int64) error
	Delete(ctx context.Context, id int64) error
	BulkStart(ctx context.Context) actions.BulkResult
	BulkDelete(ctx context.Context) actions.BulkResult
	Detail(ctx context.Context, id int64) (*domain.URLStatus, error)
}

type mode int

const (
	modeTable mode = iota
	modeSearch
	modeAdd
	modeDetail
)

// sortKeys maps the number keys to sortable columns.
var sortKeys = map[string]view.ColumnKey{
	"1": view.KeyURL,
	"2": view.KeyStatus,
	"3": view.KeyCreatedAt,
	"4": view.KeyLastRunAt,
	"5": view.KeyTitle,
}

type updateMsg struct{}

type actionDoneMsg struct {
	verb string
	id   int64
	err  error
}

type bulkDoneMsg struct {
	result actions.BulkResult
}

type addDoneMsg struct {
	err error
}

type detailMsg struct {
	id     int64
	status *domain.URLStatus
	err    error
}

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	barStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Padding(0, 1)
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	disabledStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("238"))
	enabledStyle  = lipgloss.NewStyle().Bold(true)
	detailBorder  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("63")).Padding(0, 1)
)

// Model is the bubbletea model for the dashboard.
type Model struct {
	ctx     context.Context
	dash    Dashboard
	columns []view.Column

	table   table.Model
	search  textinput.Model
	add     textinput.Model
	spinner spinner.Model

	mode     mode
	frame    dashboard.Frame
	flash    string
	addErr   string
	detailID int64
	detail   string
	width    int
}

// NewModel builds the model. ctx bounds every request the view issues.
func NewModel(ctx context.Context, dash Dashboard) Model {
	search := textinput.New()
	search.Placeholder = "Search title or URL"
	search.Prompt = "/ "
	search.CharLimit = 200

	add := textinput.New()
	add.Placeholder = "https://example.com"
	add.Prompt = "+ "
	add.CharLimit = 2048

	cols := view.DefaultColumns()
	t := table.New(
		table.WithColumns(tableColumns(cols, view.Sort{})),
		table.WithRows([]table.Row{}),
		table.WithFocused(true),
		table.WithHeight(view.DefaultPageSize+1),
	)

	m := Model{
		ctx:     ctx,
		dash:    dash,
		columns: cols,
		table:   t,
		search:  search,
		add:     add,
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot)),
	}
	m.sync()
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForUpdate(m.dash.Updates()))
}

func waitForUpdate(ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		<-ch
		return updateMsg{}
	}
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.search.Width = msg.Width - 10
		m.add.Width = msg.Width - 10
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case updateMsg:
		m.sync()
		return m, waitForUpdate(m.dash.Updates())

	case actionDoneMsg:
		if msg.err != nil {
			m.flash = fmt.Sprintf("%s #%d failed: %v", msg.verb, msg.id, msg.err)
		} else {
			m.flash = fmt.Sprintf("%s #%d", msg.verb, msg.id)
		}
		m.sync()
		return m, nil

	case bulkDoneMsg:
		m.flash = bulkSummary(msg.result)
		m.sync()
		return m, nil

	case addDoneMsg:
		if msg.err != nil {
			m.addErr = dashboard.InlineError(msg.err)
			return m, nil
		}
		m.addErr = ""
		m.add.Reset()
		m.add.Blur()
		m.mode = modeTable
		m.flash = "URL added"
		m.sync()
		return m, nil

	case detailMsg:
		if m.mode != modeDetail || msg.id != m.detailID {
			return m, nil
		}
		rec, _ := m.dash.Lookup(msg.id)
		if msg.err != nil {
			m.detail = errorStyle.Render("Failed to load details: " + msg.err.Error())
		} else {
			m.detail = render.Detail(rec, msg.status, 30)
		}
		return m, nil

	case tea.KeyMsg:
		switch m.mode {
		case modeSearch:
			return m.updateSearch(msg)
		case modeAdd:
			return m.updateAdd(msg)
		case modeDetail:
			return m.updateDetail(msg)
		}
		return m.updateTable(msg)
	}
	return m, nil
}

func (m Model) updateTable(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if col, ok := sortKeys[key]; ok {
		m.dash.ToggleSort(col)
		m.sync()
		return m, nil
	}

	switch key {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "/":
		m.mode = modeSearch
		m.search.SetValue(m.frame.Query)
		m.search.CursorEnd()
		return m, m.search.Focus()
	case "+":
		m.mode = modeAdd
		m.addErr = ""
		return m, m.add.Focus()
	case "f":
		m.dash.CycleStatusFilter()
	case "left", "h":
		m.dash.PrevPage()
	case "right", "l":
		m.dash.NextPage()
	case " ":
		if rec, ok := m.current(); ok {
			m.dash.ToggleSelect(rec.ID)
		}
	case "a":
		m.dash.SelectPage()
	case "x":
		m.dash.ClearSelection()
	case "R":
		n := m.dash.RetryFailed()
		m.flash = fmt.Sprintf("%d failed rows selected", n)
	case "r":
		return m, m.refreshCmd()
	case "s":
		if rec, ok := m.current(); ok {
			return m, m.actionCmd("start", rec.ID, m.dash.Start)
		}
	case "d":
		if rec, ok := m.current(); ok {
			return m, m.actionCmd("delete", rec.ID, m.dash.Delete)
		}
	case "S":
		if !m.frame.Selection.Empty() {
			return m, m.bulkCmd(m.dash.BulkStart)
		}
	case "D":
		if !m.frame.Selection.Empty() {
			return m, m.bulkCmd(m.dash.BulkDelete)
		}
	case "enter":
		if rec, ok := m.current(); ok {
			m.mode = modeDetail
			m.detailID = rec.ID
			m.detail = render.Detail(rec, nil, 30)
			return m, m.detailCmd(rec.ID)
		}
	default:
		var cmd tea.Cmd
		m.table, cmd = m.table.Update(msg)
		return m, cmd
	}
	m.sync()
	return m, nil
}

func (m Model) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "enter":
		m.mode = modeTable
		m.search.Blur()
		return m, nil
	case "ctrl+c":
		return m, tea.Quit
	}
	before := m.search.Value()
	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	if v := m.search.Value(); v != before {
		m.dash.TypeQuery(v)
	}
	return m, cmd
}

func (m Model) updateAdd(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.mode = modeTable
		m.addErr = ""
		m.add.Reset()
		m.add.Blur()
		return m, nil
	case "ctrl+c":
		return m, tea.Quit
	case "enter":
		raw := m.add.Value()
		ctx, dash := m.ctx, m.dash
		return m, func() tea.Msg { return addDoneMsg{err: dash.Add(ctx, raw)} }
	}
	var cmd tea.Cmd
	m.add, cmd = m.add.Update(msg)
	return m, cmd
}

func (m Model) updateDetail(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "backspace", "enter":
		m.mode = modeTable
		m.detail = ""
		return m, nil
	case "r":
		return m, m.detailCmd(m.detailID)
	case "ctrl+c", "q":
		return m, tea.Quit
	}
	return m, nil
}

// --- Commands ---

func (m Model) refreshCmd() tea.Cmd {
	ctx, dash := m.ctx, m.dash
	return func() tea.Msg {
		if err := dash.Refresh(ctx); err != nil {
			return actionDoneMsg{verb: "refresh", err: err}
		}
		return updateMsg{}
	}
}

func (m Model) actionCmd(verb string, id int64, fn func(context.Context, int64) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		return actionDoneMsg{verb: verb, id: id, err: fn(ctx, id)}
	}
}

func (m Model) bulkCmd(fn func(context.Context) actions.BulkResult) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		return bulkDoneMsg{result: fn(ctx)}
	}
}

func (m Model) detailCmd(id int64) tea.Cmd {
	ctx, dash := m.ctx, m.dash
	return func() tea.Msg {
		st, err := dash.Detail(ctx, id)
		return detailMsg{id: id, status: st, err: err}
	}
}

// --- Rendering ---

// sync pulls a fresh frame and rebuilds the table rows.
func (m *Model) sync() {
	m.frame = m.dash.Frame()

	rows := make([]table.Row, len(m.frame.Rows))
	for i, rec := range m.frame.Rows {
		cells := view.RenderRow(m.columns, rec, m.frame.Selection.Has(rec.ID))
		if _, failed := m.frame.Failed[rec.ID]; failed {
			cells[0] += "!"
		}
		rows[i] = table.Row(cells)
	}

	cursor := m.table.Cursor()
	m.table.SetHeight(m.frame.PageSize + 1)
	m.table.SetColumns(tableColumns(m.columns, m.frame.Sort))
	m.table.SetRows(rows)
	if cursor >= len(rows) {
		cursor = len(rows) - 1
	}
	if cursor < 0 {
		cursor = 0
	}
	m.table.SetCursor(cursor)
}

func (m Model) current() (domain.URLRecord, bool) {
	i := m.table.Cursor()
	if i < 0 || i >= len(m.frame.Rows) {
		return domain.URLRecord{}, false
	}
	return m.frame.Rows[i], true
}

func tableColumns(cols []view.Column, s view.Sort) []table.Column {
	out := make([]table.Column, len(cols))
	for i, c := range cols {
		out[i] = table.Column{Title: view.HeaderLabel(c, s), Width: c.Width}
	}
	return out
}

func bulkSummary(r actions.BulkResult) string {
	msg := fmt.Sprintf("%s: %d ok", r.Action, len(r.Succeeded))
	if len(r.Failed) > 0 {
		msg += fmt.Sprintf(", %d failed (R to reselect)", len(r.Failed))
		var notStartable int
		for _, f := range r.Failed {
			if errors.Is(f.Err, actions.ErrNotStartable) {
				notStartable++
			}
		}
		if notStartable > 0 {
			msg += fmt.Sprintf(", %d not queued", notStartable)
		}
	}
	return msg
}

// View implements tea.Model.
func (m Model) View() string {
	if m.mode == modeDetail {
		help := barStyle.Render("esc back • r reload • q quit")
		return lipgloss.JoinVertical(lipgloss.Left, titleStyle.Render("crawldash"), detailBorder.Render(m.detail), help)
	}

	var b strings.Builder

	loading := "  "
	if m.frame.Loading {
		loading = m.spinner.View()
	}
	header := fmt.Sprintf("crawldash %s filter: %s", loading, m.frame.Status)
	if m.frame.Query != "" {
		header += fmt.Sprintf("  search: %q", m.frame.Query)
	}
	if n := m.frame.Selection.Len(); n > 0 {
		header += fmt.Sprintf("  selected: %d", n)
	}
	b.WriteString(titleStyle.Render(header))
	b.WriteString("\n")

	switch m.mode {
	case modeSearch:
		b.WriteString(m.search.View())
		b.WriteString("\n")
	case modeAdd:
		b.WriteString(m.add.View())
		b.WriteString("\n")
		if m.addErr != "" {
			b.WriteString(errorStyle.Render(m.addErr))
			b.WriteString("\n")
		}
	}

	if len(m.frame.Rows) == 0 {
		b.WriteString(barStyle.Render("No URLs match."))
		b.WriteString("\n")
	} else {
		b.WriteString(m.table.View())
		b.WriteString("\n")
	}

	b.WriteString(m.pager())
	b.WriteString("\n")
	if m.flash != "" {
		b.WriteString(barStyle.Render(m.flash))
		b.WriteString("\n")
	}
	b.WriteString(barStyle.Render("space select • a page • x clear • s/S start • d/D delete • R retry • f filter • / search • + add • 1-5 sort • enter detail • q quit"))
	return b.String()
}

func (m Model) pager() string {
	prev, next := disabledStyle.Render("‹ prev"), disabledStyle.Render("next ›")
	if m.frame.CanPrev {
		prev = enabledStyle.Render("‹ prev")
	}
	if m.frame.CanNext {
		next = enabledStyle.Render("next ›")
	}
	page := fmt.Sprintf("Page %d of %d", m.frame.PageIndex+1, m.frame.PageCount)
	return barStyle.Render(fmt.Sprintf("%s  %s  %s  (%d of %d)", prev, page, next, len(m.frame.Visible), m.frame.Total))
}
