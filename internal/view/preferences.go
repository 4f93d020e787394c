package view

// Preferences is the part of State that persists between runs.
type Preferences struct {
	Status   StatusFilter `json:"status"`
	Sort     string       `json:"sort"`
	PageSize int          `json:"page_size"`
}

// Preferences extracts the persisted fields.
func (s State) Preferences() Preferences {
	return Preferences{
		Status:   s.Status,
		Sort:     s.Sort.String(),
		PageSize: s.Page.normalized().Size,
	}
}

// StateFrom rebuilds a state from saved preferences. Unknown values fall
// back to their defaults rather than failing, so a stale cache never blocks startup.
func StateFrom(p Preferences) State {
	s := NewState(p.PageSize)
	if f, err := ParseStatusFilter(string(p.Status)); err == nil {
		s.Status = f
	}
	if srt, err := ParseSort(p.Sort); err == nil {
		s.Sort = srt
	}
	return s
}
