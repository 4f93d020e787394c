package actions

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"crawldash/internal/api"
	"crawldash/internal/domain"
	"crawldash/internal/syncer"
)

// recorder captures client calls and refreshes in one ordered log.
type recorder struct {
	mu       sync.Mutex
	events   []string
	failFor  map[int64]error
	addErr   error
	inFlight int
	overlap  bool
}

func (r *recorder) log(event string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recorder) call(event string, id int64) error {
	r.mu.Lock()
	r.inFlight++
	if r.inFlight > 1 {
		r.overlap = true
	}
	r.events = append(r.events, event)
	err := r.failFor[id]
	r.mu.Unlock()

	time.Sleep(time.Millisecond)

	r.mu.Lock()
	r.inFlight--
	r.mu.Unlock()
	return err
}

func (r *recorder) AddURL(ctx context.Context, rawURL string) error {
	r.log("add " + rawURL)
	return r.addErr
}

func (r *recorder) StartURL(ctx context.Context, id int64) error {
	return r.call(fmt.Sprintf("start %d", id), id)
}

func (r *recorder) DeleteURL(ctx context.Context, id int64) error {
	return r.call(fmt.Sprintf("delete %d", id), id)
}

func (r *recorder) Refresh(ctx context.Context) (syncer.Outcome, error) {
	r.log("refresh")
	return syncer.Committed, nil
}

func (r *recorder) Events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func setupDispatcher(t *testing.T, limiter *rate.Limiter) (*Dispatcher, *recorder) {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	rec := &recorder{failFor: map[int64]error{}}
	return NewDispatcher(rec, rec, limiter, logger), rec
}

func queued(id int64) domain.URLRecord {
	return domain.URLRecord{ID: id, URL: "https://example.com", Status: domain.StatusQueued}
}

func TestBulkDelete_SequentialThenOneRefresh(t *testing.T) {
	d, rec := setupDispatcher(t, nil)

	result := d.BulkDelete(context.Background(), []int64{1, 2, 3})

	require.NoError(t, result.Err())
	assert.Equal(t, []int64{1, 2, 3}, result.Succeeded)
	assert.Equal(t, []string{"delete 1", "delete 2", "delete 3", "refresh"}, rec.Events())
	assert.False(t, rec.overlap, "requests must not overlap")
}

func TestBulkDelete_ContinuesAfterFailure(t *testing.T) {
	d, rec := setupDispatcher(t, nil)
	rec.failFor[2] = &api.StatusError{Op: "delete url", Code: 404, Message: "URL not found"}

	result := d.BulkDelete(context.Background(), []int64{1, 2, 3})

	assert.Equal(t, []int64{1, 3}, result.Succeeded)
	assert.Equal(t, []int64{2}, result.FailedIDs())
	assert.Equal(t, []string{"delete 1", "delete 2", "delete 3", "refresh"}, rec.Events())

	var se *api.StatusError
	require.ErrorAs(t, result.Err(), &se)
	assert.Contains(t, result.Err().Error(), "delete 2")
}

func TestBulk_EmptyIsNoop(t *testing.T) {
	d, rec := setupDispatcher(t, nil)

	result := d.BulkDelete(context.Background(), nil)
	assert.NoError(t, result.Err())
	assert.Empty(t, rec.Events())
}

func TestBulkStart_SkipsNonQueued(t *testing.T) {
	d, rec := setupDispatcher(t, nil)
	snapshot := map[int64]domain.URLRecord{
		1: queued(1),
		2: {ID: 2, URL: "https://example.com", Status: domain.StatusRunning},
		4: queued(4),
	}
	lookup := func(id int64) (domain.URLRecord, bool) {
		r, ok := snapshot[id]
		return r, ok
	}

	result := d.BulkStart(context.Background(), []int64{4, 2, 3, 1}, lookup)

	assert.Equal(t, []int64{4, 1}, result.Succeeded)
	require.Len(t, result.Failed, 2)
	assert.ErrorIs(t, result.Failed[0].Err, ErrNotStartable)
	assert.Equal(t, int64(2), result.Failed[0].ID)
	assert.ErrorIs(t, result.Failed[1].Err, ErrUnknownRecord)
	assert.Equal(t, []string{"start 4", "start 1", "refresh"}, rec.Events())
}

func TestStart_RequiresQueued(t *testing.T) {
	d, rec := setupDispatcher(t, nil)

	err := d.Start(context.Background(), domain.URLRecord{ID: 9, Status: domain.StatusDone})
	assert.ErrorIs(t, err, ErrNotStartable)
	assert.Empty(t, rec.Events(), "no request and no refresh")

	require.NoError(t, d.Start(context.Background(), queued(9)))
	assert.Equal(t, []string{"start 9", "refresh"}, rec.Events())
}

func TestDelete_RefreshesEvenOnFailure(t *testing.T) {
	d, rec := setupDispatcher(t, nil)
	boom := errors.New("boom")
	rec.failFor[5] = boom

	assert.ErrorIs(t, d.Delete(context.Background(), 5), boom)
	assert.Equal(t, []string{"delete 5", "refresh"}, rec.Events())
}

func TestAdd(t *testing.T) {
	d, rec := setupDispatcher(t, nil)

	assert.ErrorIs(t, d.Add(context.Background(), "   "), api.ErrEmptyURL)
	assert.Empty(t, rec.Events())

	require.NoError(t, d.Add(context.Background(), " https://go.dev "))
	assert.Equal(t, []string{"add https://go.dev", "refresh"}, rec.Events())

	rec.addErr = &api.StatusError{Op: "add url", Code: 400, Message: "Invalid URL format"}
	err := d.Add(context.Background(), "nope")
	msg, ok := api.ServerMessage(err)
	assert.True(t, ok)
	assert.Equal(t, "Invalid URL format", msg)
	assert.Equal(t, []string{"add https://go.dev", "refresh", "add nope"}, rec.Events(), "no refresh after a rejected add")
}

func TestBulk_RateLimited(t *testing.T) {
	d, rec := setupDispatcher(t, NewLimiter(100))

	start := time.Now()
	result := d.BulkDelete(context.Background(), []int64{1, 2, 3})
	require.NoError(t, result.Err())
	// burst of one, so the 2nd and 3rd requests each wait ~10ms
	assert.GreaterOrEqual(t, time.Since(start), 15*time.Millisecond)
	assert.Equal(t, []string{"delete 1", "delete 2", "delete 3", "refresh"}, rec.Events())
}

func TestBulk_CancelledContextFailsRemaining(t *testing.T) {
	d, rec := setupDispatcher(t, rate.NewLimiter(rate.Every(time.Hour), 1))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	result := d.BulkDelete(ctx, []int64{1, 2, 3})

	assert.Equal(t, []int64{1}, result.Succeeded)
	assert.Equal(t, []int64{2, 3}, result.FailedIDs())
	assert.Equal(t, []string{"delete 1", "refresh"}, rec.Events())
}

func TestNewLimiter(t *testing.T) {
	assert.Nil(t, NewLimiter(0))
	assert.Nil(t, NewLimiter(-1))
	assert.NotNil(t, NewLimiter(2.5))
}
