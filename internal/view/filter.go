// Package view derives what the dashboard shows from the record store:
// filtering, sorting, pagination, selection and column rendering. Everything
// here is a pure function or an immutable value with reducer-style methods.
package view

import (
	"fmt"
	"strings"

	"crawldash/internal/domain"
)

// StatusFilter restricts the visible set to one status, or to none with FilterAll.
type StatusFilter string

const FilterAll StatusFilter = "all"

// StatusFilters lists every filter value in the order the UI cycles through them.
var StatusFilters = []StatusFilter{
	FilterAll,
	StatusFilter(domain.StatusQueued),
	StatusFilter(domain.StatusRunning),
	StatusFilter(domain.StatusDone),
	StatusFilter(domain.StatusError),
}

// ParseStatusFilter validates a user-supplied filter. An empty string means FilterAll.
func ParseStatusFilter(s string) (StatusFilter, error) {
	if s == "" {
		return FilterAll, nil
	}
	for _, f := range StatusFilters {
		if string(f) == s {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown status filter %q", s)
}

// Next returns the filter after f in StatusFilters, wrapping around.
func (f StatusFilter) Next() StatusFilter {
	for i, candidate := range StatusFilters {
		if candidate == f {
			return StatusFilters[(i+1)%len(StatusFilters)]
		}
	}
	return FilterAll
}

// Matches reports whether r passes the status predicate.
func (f StatusFilter) Matches(r domain.URLRecord) bool {
	return f == FilterAll || f == "" || string(r.Status) == string(f)
}

// MatchesQuery is the text predicate: a case-insensitive substring match on title or url.
func MatchesQuery(r domain.URLRecord, query string) bool {
	if query == "" {
		return true
	}
	q := strings.ToLower(query)
	return strings.Contains(strings.ToLower(r.TitleOrEmpty()), q) ||
		strings.Contains(strings.ToLower(r.URL), q)
}

// Filter returns the records that pass both predicates, in input order.
func Filter(records []domain.URLRecord, status StatusFilter, query string) []domain.URLRecord {
	out := make([]domain.URLRecord, 0, len(records))
	for _, r := range records {
		if status.Matches(r) && MatchesQuery(r, query) {
			out = append(out, r)
		}
	}
	return out
}
