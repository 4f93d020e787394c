package view

import "slices"

// Selection is an immutable, insertion-ordered set of record ids.
// Every method returns a new value; the receiver is never modified.
type Selection struct {
	ids []int64
}

// NewSelection builds a selection from ids, dropping duplicates.
func NewSelection(ids ...int64) Selection {
	return Selection{}.Add(ids...)
}

// Has reports membership.
func (s Selection) Has(id int64) bool {
	return slices.Contains(s.ids, id)
}

// Len is the number of selected ids.
func (s Selection) Len() int {
	return len(s.ids)
}

// Empty reports whether nothing is selected.
func (s Selection) Empty() bool {
	return len(s.ids) == 0
}

// IDs returns a copy of the selected ids in the order they were selected.
func (s Selection) IDs() []int64 {
	return slices.Clone(s.ids)
}

// Toggle adds id when absent and removes it when present.
func (s Selection) Toggle(id int64) Selection {
	if s.Has(id) {
		return s.Remove(id)
	}
	return s.Add(id)
}

// Add appends the ids that are not selected yet.
func (s Selection) Add(ids ...int64) Selection {
	out := slices.Clone(s.ids)
	for _, id := range ids {
		if !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return Selection{ids: out}
}

// Remove drops ids from the selection.
func (s Selection) Remove(ids ...int64) Selection {
	return Selection{ids: slices.DeleteFunc(slices.Clone(s.ids), func(id int64) bool {
		return slices.Contains(ids, id)
	})}
}

// Retain prunes every id that is not in visible.
func (s Selection) Retain(visible []int64) Selection {
	keep := make(map[int64]struct{}, len(visible))
	for _, id := range visible {
		keep[id] = struct{}{}
	}
	return Selection{ids: slices.DeleteFunc(slices.Clone(s.ids), func(id int64) bool {
		_, ok := keep[id]
		return !ok
	})}
}

// Clear returns an empty selection.
func (s Selection) Clear() Selection {
	return Selection{}
}
