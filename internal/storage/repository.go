package storage

import (
	"context"
	"errors"
	"time"

	"crawldash/internal/domain"
	"crawldash/internal/view"
)

// ErrNotFound is returned when nothing has been cached for an origin yet.
var ErrNotFound = errors.New("not found in cache")

// CachedSnapshot is the last record collection accepted from an origin.
type CachedSnapshot struct {
	Records []domain.URLRecord `json:"records"`
	SavedAt time.Time          `json:"saved_at"`
}

// Cache persists dashboard state between runs. Every entry is scoped to the
// API origin it came from, so pointing the client at another backend never
// shows foreign records.
type Cache interface {
	// SaveSnapshot stores the latest accepted snapshot, replacing the previous one.
	SaveSnapshot(ctx context.Context, origin string, records []domain.URLRecord) error

	// LoadSnapshot returns the cached snapshot or ErrNotFound.
	LoadSnapshot(ctx context.Context, origin string) (CachedSnapshot, error)

	// SavePreferences stores the view preferences.
	SavePreferences(ctx context.Context, origin string, prefs view.Preferences) error

	// LoadPreferences returns the saved preferences or ErrNotFound.
	LoadPreferences(ctx context.Context, origin string) (view.Preferences, error)

	// Forget removes everything cached for origin.
	Forget(ctx context.Context, origin string) (int, error)

	// Close gracefully shuts down the cache.
	Close() error
}
