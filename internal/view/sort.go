package view

import (
	"fmt"
	"slices"
	"strings"

	"crawldash/internal/domain"
)

// ColumnKey names a record field that can be displayed and sorted.
type ColumnKey string

const (
	KeyURL       ColumnKey = "url"
	KeyStatus    ColumnKey = "status"
	KeyCreatedAt ColumnKey = "created_at"
	KeyLastRunAt ColumnKey = "last_run_at"
	KeyTitle     ColumnKey = "title"
)

var sortableKeys = []ColumnKey{KeyURL, KeyStatus, KeyCreatedAt, KeyLastRunAt, KeyTitle}

// Direction of the active sort.
type Direction int

const (
	Unsorted Direction = iota
	Ascending
	Descending
)

func (d Direction) String() string {
	switch d {
	case Ascending:
		return "asc"
	case Descending:
		return "desc"
	}
	return "none"
}

// Sort is the single active sort key, or none.
type Sort struct {
	Key       ColumnKey
	Direction Direction
}

// ParseSort reads "column" or "column:asc|desc". An empty string means unsorted.
func ParseSort(s string) (Sort, error) {
	if s == "" {
		return Sort{}, nil
	}
	name, dir, _ := strings.Cut(s, ":")
	key := ColumnKey(name)
	if !slices.Contains(sortableKeys, key) {
		return Sort{}, fmt.Errorf("unknown sort column %q", name)
	}
	switch dir {
	case "", "asc":
		return Sort{Key: key, Direction: Ascending}, nil
	case "desc":
		return Sort{Key: key, Direction: Descending}, nil
	}
	return Sort{}, fmt.Errorf("unknown sort direction %q", dir)
}

// String is the inverse of ParseSort.
func (s Sort) String() string {
	if !s.Active() {
		return ""
	}
	return string(s.Key) + ":" + s.Direction.String()
}

// Active reports whether any column is sorted.
func (s Sort) Active() bool {
	return s.Direction != Unsorted && s.Key != ""
}

// DirectionOf returns the direction for key, Unsorted when another column is active.
func (s Sort) DirectionOf(key ColumnKey) Direction {
	if s.Key != key {
		return Unsorted
	}
	return s.Direction
}

// Toggle advances key through none → asc → desc → none. Toggling a column
// other than the active one resets the previous column and starts at asc.
func (s Sort) Toggle(key ColumnKey) Sort {
	if s.Key != key || s.Direction == Unsorted {
		return Sort{Key: key, Direction: Ascending}
	}
	if s.Direction == Ascending {
		return Sort{Key: key, Direction: Descending}
	}
	return Sort{}
}

// Apply returns a sorted copy of records. Ties keep their input order in both directions.
func (s Sort) Apply(records []domain.URLRecord) []domain.URLRecord {
	out := slices.Clone(records)
	if !s.Active() {
		return out
	}
	cmp := comparator(s.Key)
	if s.Direction == Descending {
		asc := cmp
		cmp = func(a, b domain.URLRecord) int { return asc(b, a) }
	}
	slices.SortStableFunc(out, cmp)
	return out
}

func comparator(key ColumnKey) func(a, b domain.URLRecord) int {
	switch key {
	case KeyStatus:
		return func(a, b domain.URLRecord) int { return strings.Compare(string(a.Status), string(b.Status)) }
	case KeyTitle:
		return func(a, b domain.URLRecord) int { return strings.Compare(a.TitleOrEmpty(), b.TitleOrEmpty()) }
	case KeyCreatedAt:
		return func(a, b domain.URLRecord) int { return a.CreatedAt.Compare(b.CreatedAt.Time) }
	case KeyLastRunAt:
		return func(a, b domain.URLRecord) int {
			switch {
			case a.LastRunAt == nil && b.LastRunAt == nil:
				return 0
			case a.LastRunAt == nil:
				return 1
			case b.LastRunAt == nil:
				return -1
			}
			return a.LastRunAt.Compare(b.LastRunAt.Time)
		}
	default:
		return func(a, b domain.URLRecord) int { return strings.Compare(a.URL, b.URL) }
	}
}
