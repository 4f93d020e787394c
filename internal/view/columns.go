package view

import (
	"time"

	"crawldash/internal/domain"
)

// ColumnKind selects how a column's cells are rendered.
type ColumnKind string

const (
	KindSelect   ColumnKind = "select"
	KindText     ColumnKind = "text"
	KindStatus   ColumnKind = "status"
	KindDateTime ColumnKind = "datetime"
	KindActions  ColumnKind = "actions"
)

// Column describes one dashboard column. Key is empty for select and actions columns.
type Column struct {
	Kind     ColumnKind
	Key      ColumnKey
	Header   string
	Width    int
	Sortable bool
}

// DefaultColumns is the dashboard layout: checkbox, url, status, created, last run, title, actions.
func DefaultColumns() []Column {
	return []Column{
		{Kind: KindSelect, Header: "", Width: 4},
		{Kind: KindText, Key: KeyURL, Header: "URL", Width: 36, Sortable: true},
		{Kind: KindStatus, Key: KeyStatus, Header: "Status", Width: 9, Sortable: true},
		{Kind: KindDateTime, Key: KeyCreatedAt, Header: "Created", Width: 16, Sortable: true},
		{Kind: KindDateTime, Key: KeyLastRunAt, Header: "Last Run", Width: 16, Sortable: true},
		{Kind: KindText, Key: KeyTitle, Header: "Title", Width: 24, Sortable: true},
		{Kind: KindActions, Header: "Actions", Width: 14},
	}
}

// DateTimeLayout is how datetime cells are printed.
const DateTimeLayout = "2006-01-02 15:04"

// Placeholder fills empty datetime and text cells.
const Placeholder = "—"

// HeaderLabel renders a column title with the sort indicator for s.
func HeaderLabel(col Column, s Sort) string {
	if !col.Sortable {
		return col.Header
	}
	switch s.DirectionOf(col.Key) {
	case Ascending:
		return col.Header + " ▲"
	case Descending:
		return col.Header + " ▼"
	}
	return col.Header
}

// Render is the single cell renderer for every column kind.
func Render(col Column, r domain.URLRecord, selected bool) string {
	switch col.Kind {
	case KindSelect:
		if selected {
			return "[x]"
		}
		return "[ ]"
	case KindStatus:
		return string(r.Status)
	case KindDateTime:
		return renderTime(col.Key, r)
	case KindActions:
		if r.Startable() {
			return "start delete"
		}
		return "delete"
	default:
		return renderText(col.Key, r)
	}
}

func renderTime(key ColumnKey, r domain.URLRecord) string {
	var t *time.Time
	switch key {
	case KeyCreatedAt:
		t = &r.CreatedAt.Time
	case KeyLastRunAt:
		if r.LastRunAt != nil {
			t = &r.LastRunAt.Time
		}
	}
	if t == nil || t.IsZero() {
		return Placeholder
	}
	return t.Local().Format(DateTimeLayout)
}

func renderText(key ColumnKey, r domain.URLRecord) string {
	switch key {
	case KeyURL:
		return r.URL
	case KeyTitle:
		if r.TitleOrEmpty() == "" {
			return Placeholder
		}
		return r.TitleOrEmpty()
	case KeyStatus:
		return string(r.Status)
	}
	return ""
}

// RenderRow renders every column of r in order.
func RenderRow(cols []Column, r domain.URLRecord, selected bool) []string {
	cells := make([]string, len(cols))
	for i, col := range cols {
		cells[i] = Render(col, r, selected)
	}
	return cells
}
