package view

import "crawldash/internal/domain"

// DefaultPageSize is used whenever a non-positive page size is configured.
const DefaultPageSize = 5

// Pagination is a zero-based page index over a visible set of a given size.
type Pagination struct {
	Index int
	Size  int
}

// NewPagination starts at the first page.
func NewPagination(size int) Pagination {
	return Pagination{Size: size}.normalized()
}

func (p Pagination) normalized() Pagination {
	if p.Size <= 0 {
		p.Size = DefaultPageSize
	}
	if p.Index < 0 {
		p.Index = 0
	}
	return p
}

// PageCount is ceil(count/size), never less than 1.
func (p Pagination) PageCount(count int) int {
	p = p.normalized()
	if count <= 0 {
		return 1
	}
	return (count + p.Size - 1) / p.Size
}

// Clamp pulls the index back into [0, PageCount-1] for count rows.
func (p Pagination) Clamp(count int) Pagination {
	p = p.normalized()
	if last := p.PageCount(count) - 1; p.Index > last {
		p.Index = last
	}
	return p
}

// Bounds returns the half-open row range of the (clamped) current page.
func (p Pagination) Bounds(count int) (start, end int) {
	p = p.Clamp(count)
	start = p.Index * p.Size
	if start > count {
		start = count
	}
	end = start + p.Size
	if end > count {
		end = count
	}
	return start, end
}

// Slice returns the rows of the (clamped) current page.
func (p Pagination) Slice(rows []domain.URLRecord) []domain.URLRecord {
	start, end := p.Bounds(len(rows))
	return rows[start:end]
}

// CanPrev reports whether a previous page exists.
func (p Pagination) CanPrev(count int) bool {
	return p.Clamp(count).Index > 0
}

// CanNext reports whether a following page exists.
func (p Pagination) CanNext(count int) bool {
	return p.Clamp(count).Index < p.PageCount(count)-1
}

// Next moves forward one page if possible.
func (p Pagination) Next(count int) Pagination {
	p = p.Clamp(count)
	if p.CanNext(count) {
		p.Index++
	}
	return p
}

// Prev moves back one page if possible.
func (p Pagination) Prev(count int) Pagination {
	p = p.Clamp(count)
	if p.Index > 0 {
		p.Index--
	}
	return p
}

// GoTo jumps to index, clamped into range.
func (p Pagination) GoTo(index, count int) Pagination {
	p.Index = index
	return p.Clamp(count)
}
