// Package render formats records and crawl results as plain-text tables for
// one-shot commands and for the detail pane of the terminal dashboard.
package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"crawldash/internal/domain"
	"crawldash/internal/view"
)

// NotAvailable stands in for a result field the backend did not report.
const NotAvailable = "N/A"

// ProcessingMessage is shown instead of results while a crawl is unfinished.
const ProcessingMessage = "Still processing..."

// TableRenderer writes tables to an output stream.
type TableRenderer struct {
	out  io.Writer
	cols []view.Column
}

// NewTableRenderer creates a renderer that writes to out.
func NewTableRenderer(out io.Writer) *TableRenderer {
	var cols []view.Column
	for _, c := range view.DefaultColumns() {
		// checkboxes and action hints only make sense interactively
		if c.Kind == view.KindSelect || c.Kind == view.KindActions {
			continue
		}
		cols = append(cols, c)
	}
	return &TableRenderer{out: out, cols: append([]view.Column{{Kind: view.KindText, Header: "ID"}}, cols...)}
}

// RenderList prints the current page of f with sort indicators and a page footer.
func (r *TableRenderer) RenderList(f view.Frame) {
	t := table.NewWriter()
	t.SetOutputMirror(r.out)
	t.SetStyle(table.StyleLight)

	header := make(table.Row, len(r.cols))
	configs := make([]table.ColumnConfig, 0, len(r.cols))
	for i, c := range r.cols {
		header[i] = view.HeaderLabel(c, f.Sort)
		if c.Width > 0 {
			configs = append(configs, table.ColumnConfig{Number: i + 1, WidthMax: c.Width})
		}
	}
	t.AppendHeader(header)
	t.SetColumnConfigs(configs)

	for _, rec := range f.Rows {
		row := make(table.Row, len(r.cols))
		row[0] = rec.ID
		for i, c := range r.cols[1:] {
			row[i+1] = view.Render(c, rec, false)
		}
		t.AppendRow(row)
	}

	t.AppendFooter(table.Row{fmt.Sprintf("Page %d of %d", f.PageIndex+1, f.PageCount), fmt.Sprintf("%d of %d shown", len(f.Visible), f.Total)})
	t.Render()
}

// RenderDetail prints the detail view of one record.
func (r *TableRenderer) RenderDetail(rec domain.URLRecord, st *domain.URLStatus) {
	fmt.Fprintln(r.out, Detail(rec, st, 30))
}

// Detail renders a record and its crawl result. barWidth sizes the link bars.
func Detail(rec domain.URLRecord, st *domain.URLStatus, barWidth int) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.SetTitle(fmt.Sprintf("#%d %s", rec.ID, rec.URL))

	status := rec.Status
	if st != nil {
		status = st.Status
	}
	t.AppendRow(table.Row{"Status", status})

	if st == nil || st.Processing() {
		t.AppendRow(table.Row{"Results", ProcessingMessage})
		return t.Render()
	}

	res := st.Results
	internal, external := domain.Int(res.InternalLinks), domain.Int(res.ExternalLinks)
	total := internal + external

	t.AppendRows([]table.Row{
		{"Title", domain.StringOr(res.Title, NotAvailable)},
		{"HTML version", domain.StringOr(res.HTMLVersion, NotAvailable)},
		{"H1 / H2", fmt.Sprintf("%s / %s", count(res.H1Count), count(res.H2Count))},
		{"Login form", yesNo(res.HasLoginForm)},
	})
	t.AppendSeparator()
	t.AppendRows([]table.Row{
		{"Internal links", fmt.Sprintf("%-5s %s", count(res.InternalLinks), Bar(internal, total, barWidth))},
		{"External links", fmt.Sprintf("%-5s %s", count(res.ExternalLinks), Bar(external, total, barWidth))},
		{"Broken links", count(res.BrokenLinks)},
	})

	var b strings.Builder
	b.WriteString(t.Render())
	if len(res.BrokenDetails) > 0 {
		bt := table.NewWriter()
		bt.SetStyle(table.StyleLight)
		bt.AppendHeader(table.Row{"Broken URL", "Status"})
		for _, bl := range res.BrokenDetails {
			bt.AppendRow(table.Row{bl.URL, bl.StatusCode})
		}
		b.WriteString("\n")
		b.WriteString(bt.Render())
	}
	return b.String()
}

// Bar draws n as a share of total across width cells.
func Bar(n, total, width int) string {
	if total <= 0 || width <= 0 || n <= 0 {
		return ""
	}
	filled := n * width / total
	if filled == 0 {
		filled = 1
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

func count(n *int) string {
	if n == nil {
		return NotAvailable
	}
	return fmt.Sprint(*n)
}

func yesNo(b *bool) string {
	switch {
	case b == nil:
		return NotAvailable
	case *b:
		return "Yes"
	default:
		return "No"
	}
}
