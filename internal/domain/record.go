package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Status is the crawl state of a URL as reported by the backend.
// The client only observes it; transitions are driven by the server.
type Status string

const (
	StatusQueued  Status = "queued"
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusError   Status = "error"
)

// Statuses lists every valid status in lifecycle order.
var Statuses = []Status{StatusQueued, StatusRunning, StatusDone, StatusError}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusQueued, StatusRunning, StatusDone, StatusError:
		return true
	}
	return false
}

// Finished reports whether a crawl in this state has completed, successfully or not.
func (s Status) Finished() bool {
	return s == StatusDone || s == StatusError
}

// mysqlLayout is what the backend emits when a DATETIME column is scanned into a string.
const mysqlLayout = "2006-01-02 15:04:05"

// Timestamp is a point in time decoded from either RFC 3339 or the MySQL DATETIME layout.
type Timestamp struct {
	time.Time
}

// NewTimestamp wraps t.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t}
}

// UnmarshalJSON accepts RFC 3339 (with or without fractional seconds) and "2006-01-02 15:04:05".
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("timestamp must be a string: %w", err)
	}
	for _, layout := range []string{time.RFC3339Nano, mysqlLayout} {
		if parsed, err := time.Parse(layout, raw); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("unrecognised timestamp %q", raw)
}

// MarshalJSON always writes RFC 3339 with nanoseconds.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Time.Format(time.RFC3339Nano))
}

// URLRecord is one crawl job as listed by GET /api/urls.
type URLRecord struct {
	ID        int64      `json:"id"`
	URL       string     `json:"url"`
	Status    Status     `json:"status"`
	CreatedAt Timestamp  `json:"created_at"`
	LastRunAt *Timestamp `json:"last_run_at"`
	Title     *string    `json:"title"`
}

// TitleOrEmpty returns the title, treating a missing one as "".
func (r URLRecord) TitleOrEmpty() string {
	if r.Title == nil {
		return ""
	}
	return *r.Title
}

// Startable reports whether a start request may be issued for this record.
func (r URLRecord) Startable() bool {
	return r.Status == StatusQueued
}

// Equal compares every field. Timestamps compare by instant, optional fields by presence and value.
func (r URLRecord) Equal(o URLRecord) bool {
	if r.ID != o.ID || r.URL != o.URL || r.Status != o.Status {
		return false
	}
	if !r.CreatedAt.Equal(o.CreatedAt.Time) {
		return false
	}
	if (r.LastRunAt == nil) != (o.LastRunAt == nil) {
		return false
	}
	if r.LastRunAt != nil && !r.LastRunAt.Equal(o.LastRunAt.Time) {
		return false
	}
	if (r.Title == nil) != (o.Title == nil) {
		return false
	}
	return r.Title == nil || *r.Title == *o.Title
}

var (
	// ErrInvalidRecord is wrapped by every snapshot validation failure.
	ErrInvalidRecord = errors.New("invalid url record")
)

// Validate checks a single record's invariants.
func (r URLRecord) Validate() error {
	if r.ID <= 0 {
		return fmt.Errorf("%w: id %d is not positive", ErrInvalidRecord, r.ID)
	}
	if r.URL == "" {
		return fmt.Errorf("%w: id %d has an empty url", ErrInvalidRecord, r.ID)
	}
	if !r.Status.Valid() {
		return fmt.Errorf("%w: id %d has unknown status %q", ErrInvalidRecord, r.ID, r.Status)
	}
	return nil
}

// ValidateSnapshot checks every record and that ids are unique within the collection.
func ValidateSnapshot(records []URLRecord) error {
	seen := make(map[int64]struct{}, len(records))
	for _, r := range records {
		if err := r.Validate(); err != nil {
			return err
		}
		if _, dup := seen[r.ID]; dup {
			return fmt.Errorf("%w: duplicate id %d", ErrInvalidRecord, r.ID)
		}
		seen[r.ID] = struct{}{}
	}
	return nil
}

// RecordsEqual is order-sensitive structural equality over two snapshots.
func RecordsEqual(a, b []URLRecord) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

// IDs returns the ids of records in order.
func IDs(records []URLRecord) []int64 {
	ids := make([]int64, len(records))
	for i, r := range records {
		ids[i] = r.ID
	}
	return ids
}
