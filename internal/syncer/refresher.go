// Package syncer keeps the record store in step with the backend.
//
// Every fetch, whether triggered by the poller or by a user action, goes
// through Refresher.Refresh. Requests are numbered, and only the response to
// the most recently issued request may be committed. Once the owning view is
// torn down the refresher is closed and nothing it receives is committed.
package syncer

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"crawldash/internal/domain"
	"crawldash/internal/records"
)

// ErrClosed is returned by Refresh once the refresher has been closed.
var ErrClosed = errors.New("refresher closed")

// Outcome describes what happened to one refresh.
type Outcome int

const (
	// Failed means the fetch returned an error. The store is untouched.
	Failed Outcome = iota
	// Committed means the snapshot differed and replaced the store.
	Committed
	// Unchanged means the snapshot was structurally equal to the store.
	Unchanged
	// Stale means a newer refresh was issued while this one was in flight.
	Stale
	// Closed means the refresher was closed before the response could be applied.
	Closed
)

func (o Outcome) String() string {
	switch o {
	case Committed:
		return "committed"
	case Unchanged:
		return "unchanged"
	case Stale:
		return "stale"
	case Closed:
		return "closed"
	default:
		return "failed"
	}
}

// Fetcher retrieves the full record collection.
type Fetcher interface {
	ListURLs(ctx context.Context) ([]domain.URLRecord, error)
}

// Refresher is the single fetch-and-commit path into a records.Store.
type Refresher struct {
	fetch Fetcher
	store *records.Store
	log   logrus.FieldLogger

	life   context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	issued   uint64
	closed   bool
	inFlight atomic.Int32
}

// NewRefresher creates a refresher bound to a fresh view lifetime.
func NewRefresher(fetch Fetcher, store *records.Store, logger logrus.FieldLogger) *Refresher {
	life, cancel := context.WithCancel(context.Background())
	return &Refresher{
		fetch:  fetch,
		store:  store,
		log:    logger.WithField("component", "refresher"),
		life:   life,
		cancel: cancel,
	}
}

// Refresh fetches a snapshot and offers it to the diff gate.
//
// The request is aborted when either ctx or the refresher's lifetime ends.
// Store listeners run while the commit lock is held and must not call Refresh.
func (r *Refresher) Refresh(ctx context.Context) (Outcome, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return Closed, ErrClosed
	}
	r.issued++
	gen := r.issued
	r.mu.Unlock()

	reqCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(r.life, cancel)
	defer stop()

	r.inFlight.Add(1)
	defer r.inFlight.Add(-1)

	log := r.log.WithField("generation", gen)
	recs, err := r.fetch.ListURLs(reqCtx)

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		log.Debug("Discarding response after close")
		return Closed, nil
	}
	if err != nil {
		log.WithError(err).Warn("Refresh failed, keeping last snapshot")
		return Failed, err
	}
	if gen != r.issued {
		log.WithField("latest", r.issued).Debug("Discarding stale response")
		return Stale, nil
	}
	if !r.store.Commit(recs) {
		return Unchanged, nil
	}
	log.WithField("records", len(recs)).Debug("Snapshot committed")
	return Committed, nil
}

// Loading reports whether any refresh is waiting on the backend.
func (r *Refresher) Loading() bool {
	return r.inFlight.Load() > 0
}

// Close ends the view lifetime. In-flight requests are cancelled and their
// responses dropped. Close is idempotent.
func (r *Refresher) Close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	r.cancel()
}
