package view

import "crawldash/internal/domain"

// State is the client-only presentation state of the dashboard table.
type State struct {
	Status    StatusFilter
	Query     string
	Sort      Sort
	Page      Pagination
	Selection Selection
}

// NewState returns the initial state for the given page size.
func NewState(pageSize int) State {
	return State{Status: FilterAll, Page: NewPagination(pageSize)}
}

// Event is an input to the State reducer.
type Event interface {
	apply(s State, records []domain.URLRecord) State
}

// Apply reduces ev over s against the current records. After any event the
// selection is pruned to the filtered set and the page index is clamped, so a
// stale id or an out-of-range page can never survive a change in membership.
func (s State) Apply(ev Event, records []domain.URLRecord) State {
	next := ev.apply(s, records)
	visible := Filter(records, next.Status, next.Query)
	next.Selection = next.Selection.Retain(domain.IDs(visible))
	next.Page = next.Page.Clamp(len(visible))
	return next
}

// Frame is everything a renderer needs for one paint.
type Frame struct {
	Visible   []domain.URLRecord // filtered, then sorted
	Rows      []domain.URLRecord // the current page of Visible
	Total     int
	PageIndex int
	PageCount int
	PageSize  int
	CanPrev   bool
	CanNext   bool
	Sort      Sort
	Status    StatusFilter
	Query     string
	Selection Selection
}

// Derive runs filter → sort → paginate over records.
func (s State) Derive(records []domain.URLRecord) Frame {
	visible := Filter(records, s.Status, s.Query)
	sorted := s.Sort.Apply(visible)
	page := s.Page.Clamp(len(sorted))
	return Frame{
		Visible:   sorted,
		Rows:      page.Slice(sorted),
		Total:     len(records),
		PageIndex: page.Index,
		PageCount: page.PageCount(len(sorted)),
		PageSize:  page.Size,
		CanPrev:   page.CanPrev(len(sorted)),
		CanNext:   page.CanNext(len(sorted)),
		Sort:      s.Sort,
		Status:    s.Status,
		Query:     s.Query,
		Selection: s.Selection,
	}
}

// RowIDs returns the ids on the current page.
func (f Frame) RowIDs() []int64 {
	return domain.IDs(f.Rows)
}

// --- Events ---

// SetStatusFilter changes the status predicate.
type SetStatusFilter struct{ Filter StatusFilter }

func (e SetStatusFilter) apply(s State, _ []domain.URLRecord) State {
	s.Status = e.Filter
	return s
}

// SetQuery changes the (already debounced) text predicate.
type SetQuery struct{ Query string }

func (e SetQuery) apply(s State, _ []domain.URLRecord) State {
	s.Query = e.Query
	return s
}

// ToggleSort cycles the sort on one column.
type ToggleSort struct{ Key ColumnKey }

func (e ToggleSort) apply(s State, _ []domain.URLRecord) State {
	s.Sort = s.Sort.Toggle(e.Key)
	return s
}

// NextPage moves forward one page.
type NextPage struct{}

func (NextPage) apply(s State, records []domain.URLRecord) State {
	s.Page = s.Page.Next(len(Filter(records, s.Status, s.Query)))
	return s
}

// PrevPage moves back one page.
type PrevPage struct{}

func (PrevPage) apply(s State, records []domain.URLRecord) State {
	s.Page = s.Page.Prev(len(Filter(records, s.Status, s.Query)))
	return s
}

// GoToPage jumps to a zero-based page index.
type GoToPage struct{ Index int }

func (e GoToPage) apply(s State, records []domain.URLRecord) State {
	s.Page = s.Page.GoTo(e.Index, len(Filter(records, s.Status, s.Query)))
	return s
}

// SetPageSize changes the page size and returns to the first page.
type SetPageSize struct{ Size int }

func (e SetPageSize) apply(s State, _ []domain.URLRecord) State {
	s.Page = NewPagination(e.Size)
	return s
}

// ToggleSelect flips one id. Ids that are not visible are ignored.
type ToggleSelect struct{ ID int64 }

func (e ToggleSelect) apply(s State, records []domain.URLRecord) State {
	for _, r := range Filter(records, s.Status, s.Query) {
		if r.ID == e.ID {
			s.Selection = s.Selection.Toggle(e.ID)
			break
		}
	}
	return s
}

// SelectPage adds every row on the current page.
type SelectPage struct{}

func (SelectPage) apply(s State, records []domain.URLRecord) State {
	s.Selection = s.Selection.Add(s.Derive(records).RowIDs()...)
	return s
}

// Deselect removes ids, e.g. after they were deleted.
type Deselect struct{ IDs []int64 }

func (e Deselect) apply(s State, _ []domain.URLRecord) State {
	s.Selection = s.Selection.Remove(e.IDs...)
	return s
}

// ClearSelection empties the selection.
type ClearSelection struct{}

func (ClearSelection) apply(s State, _ []domain.URLRecord) State {
	s.Selection = s.Selection.Clear()
	return s
}

// RecordsChanged is applied when the store accepts a new snapshot.
// Pruning and clamping happen in Apply.
type RecordsChanged struct{}

func (RecordsChanged) apply(s State, _ []domain.URLRecord) State {
	return s
}

// SelectIDs adds ids to the selection. Ids outside the filtered set are pruned by Apply.
type SelectIDs struct{ IDs []int64 }

func (e SelectIDs) apply(s State, _ []domain.URLRecord) State {
	s.Selection = s.Selection.Add(e.IDs...)
	return s
}
