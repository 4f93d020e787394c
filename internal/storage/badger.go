package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"crawldash/internal/domain"
	"crawldash/internal/view"
)

const (
	snapshotKey    = "snapshot"
	preferencesKey = "preferences"
)

// BadgerCache implements Cache using BadgerDB.
type BadgerCache struct {
	db  *badger.DB
	log logrus.FieldLogger
	now func() time.Time
}

// NewBadgerCache opens (or creates) the cache at dbPath.
func NewBadgerCache(dbPath string, logger logrus.FieldLogger) (*BadgerCache, error) {
	opts := badger.DefaultOptions(dbPath)
	opts.Logger = &badgerLogger{logger.WithField("component", "badgerdb")}

	db, err := badger.Open(opts)
	if err != nil {
		logger.WithError(err).Error("Failed to open BadgerDB")
		return nil, fmt.Errorf("failed to open badger db at %s: %w", dbPath, err)
	}
	logger.Info("BadgerDB opened successfully at path: ", dbPath)

	return &BadgerCache{
		db:  db,
		log: logger.WithField("component", "cache"),
		now: time.Now,
	}, nil
}

// Close closes the BadgerDB database connection.
func (c *BadgerCache) Close() error {
	c.log.Info("Closing BadgerDB...")
	if err := c.db.Close(); err != nil {
		c.log.WithError(err).Error("Error closing BadgerDB")
		return err
	}
	c.log.Info("BadgerDB closed.")
	return nil
}

// generateKey builds a key scoped to one origin.
// Format: origin:{origin}:{name}
func generateKey(origin, name string) []byte {
	return []byte(fmt.Sprintf("origin:%s:%s", origin, name))
}

// generateOriginPrefix is the prefix shared by every key of one origin.
// Format: origin:{origin}:
func generateOriginPrefix(origin string) []byte {
	return []byte(fmt.Sprintf("origin:%s:", origin))
}

// SaveSnapshot stores records for origin.
func (c *BadgerCache) SaveSnapshot(ctx context.Context, origin string, records []domain.URLRecord) error {
	log := c.log.WithFields(logrus.Fields{"origin": origin, "records": len(records)})

	entry := CachedSnapshot{Records: records, SavedAt: c.now()}
	if err := c.put(generateKey(origin, snapshotKey), entry); err != nil {
		log.WithError(err).Error("Failed to save snapshot")
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	log.Debug("Snapshot cached")
	return nil
}

// LoadSnapshot returns the snapshot cached for origin.
func (c *BadgerCache) LoadSnapshot(ctx context.Context, origin string) (CachedSnapshot, error) {
	var entry CachedSnapshot
	if err := c.get(generateKey(origin, snapshotKey), &entry); err != nil {
		return CachedSnapshot{}, fmt.Errorf("failed to load snapshot for %s: %w", origin, err)
	}
	// a corrupted cache must never reach the store
	if err := domain.ValidateSnapshot(entry.Records); err != nil {
		c.log.WithError(err).WithField("origin", origin).Warn("Ignoring invalid cached snapshot")
		return CachedSnapshot{}, fmt.Errorf("cached snapshot for %s: %w", origin, err)
	}
	return entry, nil
}

// SavePreferences stores prefs for origin.
func (c *BadgerCache) SavePreferences(ctx context.Context, origin string, prefs view.Preferences) error {
	if err := c.put(generateKey(origin, preferencesKey), prefs); err != nil {
		c.log.WithError(err).WithField("origin", origin).Error("Failed to save preferences")
		return fmt.Errorf("failed to save preferences: %w", err)
	}
	return nil
}

// LoadPreferences returns the preferences saved for origin.
func (c *BadgerCache) LoadPreferences(ctx context.Context, origin string) (view.Preferences, error) {
	var prefs view.Preferences
	if err := c.get(generateKey(origin, preferencesKey), &prefs); err != nil {
		return view.Preferences{}, fmt.Errorf("failed to load preferences for %s: %w", origin, err)
	}
	return prefs, nil
}

// Forget deletes every key stored for origin and reports how many were removed.
func (c *BadgerCache) Forget(ctx context.Context, origin string) (int, error) {
	log := c.log.WithField("origin", origin)
	prefix := generateOriginPrefix(origin)

	var keys [][]byte
	err := c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		log.WithError(err).Error("Failed to scan cache")
		return 0, fmt.Errorf("failed to scan cache for %s: %w", origin, err)
	}

	err = c.db.Update(func(txn *badger.Txn) error {
		for _, key := range keys {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.WithError(err).Error("Failed to delete cached entries")
		return 0, fmt.Errorf("failed to forget %s: %w", origin, err)
	}

	log.WithField("deleted", len(keys)).Info("Cache cleared")
	return len(keys), nil
}

func (c *BadgerCache) put(key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal: %w", err)
	}
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry(key, data))
	})
}

func (c *BadgerCache) get(key []byte, v any) error {
	return c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, v)
		})
	})
}

// RunGC reclaims value-log space every interval until ctx is cancelled.
func (c *BadgerCache) RunGC(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			err := c.db.RunValueLogGC(0.7)
			switch {
			case err == nil:
				c.log.Debug("BadgerDB GC completed")
			case errors.Is(err, badger.ErrNoRewrite), errors.Is(err, badger.ErrRejected):
			default:
				c.log.WithError(err).Warn("BadgerDB GC failed")
			}
		case <-ctx.Done():
			return
		}
	}
}

// --- BadgerDB Internal Logger ---

// badgerLogger adapts logrus.FieldLogger to Badger's logger interface.
type badgerLogger struct {
	logger logrus.FieldLogger
}

func (l *badgerLogger) Errorf(f string, v ...interface{}) {
	l.logger.Errorf(f, v...)
}
func (l *badgerLogger) Warningf(f string, v ...interface{}) {
	l.logger.Warningf(f, v...)
}
func (l *badgerLogger) Infof(f string, v ...interface{}) {
	l.logger.Debugf(f, v...)
}
func (l *badgerLogger) Debugf(f string, v ...interface{}) {
	l.logger.Debugf(f, v...)
}
