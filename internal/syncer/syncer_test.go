package syncer

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crawldash/internal/domain"
	"crawldash/internal/records"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func record(id int64, status domain.Status) domain.URLRecord {
	return domain.URLRecord{
		ID:        id,
		URL:       "https://example.com/" + string(rune('a'+id)),
		Status:    status,
		CreatedAt: domain.NewTimestamp(time.Date(2024, 1, 1, 0, 0, int(id), 0, time.UTC)),
	}
}

// staticFetcher returns the same result on every call.
type staticFetcher struct {
	records []domain.URLRecord
	err     error
	calls   atomic.Int32
}

func (f *staticFetcher) ListURLs(ctx context.Context) ([]domain.URLRecord, error) {
	f.calls.Add(1)
	return f.records, f.err
}

// gatedFetcher blocks every call until the test releases it with a response.
type gatedFetcher struct {
	started chan struct{}
	replies chan []domain.URLRecord
}

func newGatedFetcher() *gatedFetcher {
	return &gatedFetcher{started: make(chan struct{}, 8), replies: make(chan []domain.URLRecord)}
}

func (f *gatedFetcher) ListURLs(ctx context.Context) ([]domain.URLRecord, error) {
	f.started <- struct{}{}
	select {
	case recs := <-f.replies:
		return recs, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestRefresher_CommitsThenUnchanged(t *testing.T) {
	store := records.NewStore()
	fetch := &staticFetcher{records: []domain.URLRecord{record(1, domain.StatusQueued)}}
	r := NewRefresher(fetch, store, quietLogger())

	outcome, err := r.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Committed, outcome)
	assert.EqualValues(t, 1, store.Snapshot().Revision)

	outcome, err = r.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Unchanged, outcome)
	assert.EqualValues(t, 1, store.Snapshot().Revision)
}

func TestRefresher_FailureKeepsSnapshot(t *testing.T) {
	store := records.NewStore()
	store.Commit([]domain.URLRecord{record(1, domain.StatusDone)})
	boom := errors.New("connection refused")
	r := NewRefresher(&staticFetcher{err: boom}, store, quietLogger())

	outcome, err := r.Refresh(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, Failed, outcome)
	assert.Len(t, store.Snapshot().Records, 1)
	assert.False(t, r.Loading())
}

func TestRefresher_StaleResponseIsDiscarded(t *testing.T) {
	store := records.NewStore()
	fetch := newGatedFetcher()
	r := NewRefresher(fetch, store, quietLogger())

	older := make(chan Outcome, 1)
	go func() {
		outcome, _ := r.Refresh(context.Background())
		older <- outcome
	}()
	<-fetch.started

	newer := make(chan Outcome, 1)
	go func() {
		outcome, _ := r.Refresh(context.Background())
		newer <- outcome
	}()
	<-fetch.started
	assert.True(t, r.Loading())

	// Both requests are parked on the same channel, so which goroutine gets
	// which reply is up to the scheduler. Only the latest may commit either way.
	fetch.replies <- []domain.URLRecord{record(1, domain.StatusRunning)}
	fetch.replies <- []domain.URLRecord{record(1, domain.StatusRunning)}

	assert.Equal(t, Stale, <-older)
	assert.Equal(t, Committed, <-newer)
	assert.EqualValues(t, 1, store.Snapshot().Revision)
	assert.False(t, r.Loading())
}

func TestRefresher_CloseAbortsInFlight(t *testing.T) {
	store := records.NewStore()
	fetch := newGatedFetcher()
	r := NewRefresher(fetch, store, quietLogger())

	result := make(chan Outcome, 1)
	go func() {
		outcome, _ := r.Refresh(context.Background())
		result <- outcome
	}()
	<-fetch.started

	r.Close()
	assert.Equal(t, Closed, <-result)
	assert.Zero(t, store.Snapshot().Revision, "nothing may be committed after close")

	outcome, err := r.Refresh(context.Background())
	assert.Equal(t, Closed, outcome)
	assert.ErrorIs(t, err, ErrClosed)

	r.Close()
}

func TestPoller_FiresImmediatelyAndOnInterval(t *testing.T) {
	fetch := &staticFetcher{records: []domain.URLRecord{}}
	r := NewRefresher(fetch, records.NewStore(), quietLogger())
	p := NewPoller(r, 20*time.Millisecond, quietLogger())

	require.True(t, p.Start(context.Background()))
	defer p.Stop()

	require.Eventually(t, func() bool { return fetch.calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
}

func TestPoller_SingleLoop(t *testing.T) {
	fetch := &staticFetcher{records: []domain.URLRecord{}}
	r := NewRefresher(fetch, records.NewStore(), quietLogger())
	p := NewPoller(r, time.Hour, quietLogger())

	require.True(t, p.Start(context.Background()))
	assert.False(t, p.Start(context.Background()), "second start is a no-op")
	assert.True(t, p.Running())

	// with an hour-long interval only the immediate fire can have happened
	require.Eventually(t, func() bool { return fetch.calls.Load() == 1 }, time.Second, time.Millisecond)
	p.Stop()
	assert.False(t, p.Running())
	p.Stop()

	require.True(t, p.Start(context.Background()), "poller restarts after stop")
	require.Eventually(t, func() bool { return fetch.calls.Load() == 2 }, time.Second, time.Millisecond)
	p.Stop()
}

// countingTarget records how many loops are refreshing concurrently.
type countingTarget struct {
	mu      sync.Mutex
	active  int
	maxSeen int
	total   int
}

func (c *countingTarget) Refresh(ctx context.Context) (Outcome, error) {
	c.mu.Lock()
	c.active++
	c.total++
	if c.active > c.maxSeen {
		c.maxSeen = c.active
	}
	c.mu.Unlock()

	time.Sleep(2 * time.Millisecond)

	c.mu.Lock()
	c.active--
	c.mu.Unlock()
	return Unchanged, nil
}

func TestPoller_StopWaitsForLoop(t *testing.T) {
	target := &countingTarget{}
	p := NewPoller(target, 5*time.Millisecond, quietLogger())

	for i := 0; i < 5; i++ {
		p.Start(context.Background())
		p.Start(context.Background())
		time.Sleep(10 * time.Millisecond)
		p.Stop()
	}

	target.mu.Lock()
	defer target.mu.Unlock()
	assert.Equal(t, 1, target.maxSeen)
	assert.Zero(t, target.active)
	assert.GreaterOrEqual(t, target.total, 5)
}

func TestPoller_ExitsWhenRefresherCloses(t *testing.T) {
	fetch := &staticFetcher{records: []domain.URLRecord{}}
	r := NewRefresher(fetch, records.NewStore(), quietLogger())
	r.Close()

	p := NewPoller(r, time.Millisecond, quietLogger())
	require.True(t, p.Start(context.Background()))
	p.Stop()
	assert.Zero(t, fetch.calls.Load())
}
