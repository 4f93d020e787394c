// Package dashboard owns the state of one dashboard view and wires the record
// store, refresher, poller, action dispatcher and search debouncer together.
// The terminal UI is a thin layer over Controller.
package dashboard

import (
	"context"
	"errors"
	"maps"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"crawldash/internal/actions"
	"crawldash/internal/api"
	"crawldash/internal/domain"
	"crawldash/internal/records"
	"crawldash/internal/syncer"
	"crawldash/internal/view"
)

// Client is everything the dashboard needs from the backend.
type Client interface {
	syncer.Fetcher
	actions.Client
	URLStatus(ctx context.Context, id int64) (*domain.URLStatus, error)
}

// Options tunes a Controller.
type Options struct {
	PollInterval   time.Duration
	SearchDebounce time.Duration
	// Preferences restores the filter, sort and page size from a previous run.
	Preferences view.Preferences
}

// Deps are the collaborators a Controller is built from.
type Deps struct {
	Client  Client
	Store   *records.Store
	Limiter *rate.Limiter
	Logger  logrus.FieldLogger
}

// Frame is a view.Frame plus the dashboard-level status needed to paint it.
type Frame struct {
	view.Frame
	Loading   bool
	Failed    map[int64]error
	Revision  uint64
	UpdatedAt time.Time
}

// Controller is the single owner of one dashboard's view state.
type Controller struct {
	opts   Options
	client Client
	store  *records.Store
	base   logrus.FieldLogger
	log    logrus.FieldLogger

	dispatcher *actions.Dispatcher
	debouncer  *Debouncer
	updates    chan struct{}

	mu        sync.Mutex
	state     view.State
	pending   string
	failed    map[int64]error
	refresher *syncer.Refresher
	poller    *syncer.Poller
	retired   bool
}

// New builds a controller. The poller does not run until Activate.
func New(opts Options, deps Deps) *Controller {
	logger := deps.Logger.WithField("component", "dashboard")
	c := &Controller{
		opts:      opts,
		client:    deps.Client,
		store:     deps.Store,
		base:      deps.Logger,
		log:       logger,
		debouncer: NewDebouncer(opts.SearchDebounce),
		updates:   make(chan struct{}, 1),
		state:     view.StateFrom(opts.Preferences),
		failed:    make(map[int64]error),
	}
	c.state.Selection = view.NewSelection()
	c.refresher = syncer.NewRefresher(deps.Client, deps.Store, deps.Logger)
	c.poller = syncer.NewPoller(c.refresher, opts.PollInterval, deps.Logger)
	c.dispatcher = actions.NewDispatcher(deps.Client, refreshProxy{c}, deps.Limiter, deps.Logger)

	deps.Store.Subscribe(c.onSnapshot)
	return c
}

// refreshProxy routes dispatcher refreshes to whichever refresher is current.
type refreshProxy struct{ c *Controller }

func (p refreshProxy) Refresh(ctx context.Context) (syncer.Outcome, error) {
	p.c.mu.Lock()
	r := p.c.refresher
	p.c.mu.Unlock()
	return r.Refresh(ctx)
}

// --- Lifecycle ---

// Activate starts polling. It returns false when polling was already active.
// A controller that was deactivated gets a fresh refresher and poller.
func (c *Controller) Activate(ctx context.Context) bool {
	c.mu.Lock()
	if c.retired {
		c.refresher = syncer.NewRefresher(c.client, c.store, c.base)
		c.poller = syncer.NewPoller(c.refresher, c.opts.PollInterval, c.base)
		c.retired = false
	}
	p := c.poller
	c.mu.Unlock()
	return p.Start(ctx)
}

// Deactivate stops polling and closes the refresher, so responses still in
// flight are never applied. Pending search input is dropped.
func (c *Controller) Deactivate() {
	c.mu.Lock()
	p, r := c.poller, c.refresher
	c.retired = true
	c.mu.Unlock()

	c.debouncer.Cancel()
	p.Stop()
	r.Close()
	c.log.Info("Dashboard deactivated")
}

// Updates delivers a signal whenever the frame may have changed. Signals coalesce.
func (c *Controller) Updates() <-chan struct{} {
	return c.updates
}

func (c *Controller) notify() {
	select {
	case c.updates <- struct{}{}:
	default:
	}
}

func (c *Controller) onSnapshot(snap records.Snapshot) {
	present := make(map[int64]struct{}, len(snap.Records))
	for _, r := range snap.Records {
		present[r.ID] = struct{}{}
	}

	c.mu.Lock()
	c.state = c.state.Apply(view.RecordsChanged{}, snap.Records)
	for id := range c.failed {
		if _, ok := present[id]; !ok {
			delete(c.failed, id)
		}
	}
	c.mu.Unlock()
	c.notify()
}

// --- View state ---

func (c *Controller) apply(ev view.Event) {
	c.mu.Lock()
	c.state = c.state.Apply(ev, c.store.Snapshot().Records)
	c.mu.Unlock()
	c.notify()
}

// SetStatusFilter restricts the table to one status.
func (c *Controller) SetStatusFilter(f view.StatusFilter) { c.apply(view.SetStatusFilter{Filter: f}) }

// CycleStatusFilter advances to the next status filter.
func (c *Controller) CycleStatusFilter() {
	c.mu.Lock()
	next := c.state.Status.Next()
	c.mu.Unlock()
	c.SetStatusFilter(next)
}

// TypeQuery records search input. The filter follows once typing pauses.
func (c *Controller) TypeQuery(q string) {
	c.mu.Lock()
	c.pending = q
	c.mu.Unlock()
	c.debouncer.Trigger(func() { c.apply(view.SetQuery{Query: q}) })
}

// PendingQuery is the latest typed query, applied or not.
func (c *Controller) PendingQuery() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

func (c *Controller) ToggleSort(key view.ColumnKey) { c.apply(view.ToggleSort{Key: key}) }
func (c *Controller) NextPage()                     { c.apply(view.NextPage{}) }
func (c *Controller) PrevPage()                     { c.apply(view.PrevPage{}) }
func (c *Controller) GoToPage(index int)            { c.apply(view.GoToPage{Index: index}) }
func (c *Controller) SetPageSize(size int)          { c.apply(view.SetPageSize{Size: size}) }
func (c *Controller) ToggleSelect(id int64)         { c.apply(view.ToggleSelect{ID: id}) }
func (c *Controller) SelectPage()                   { c.apply(view.SelectPage{}) }
func (c *Controller) ClearSelection()               { c.apply(view.ClearSelection{}) }

// Preferences returns the persisted subset of the view state.
func (c *Controller) Preferences() view.Preferences {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Preferences()
}

// Frame derives everything needed for one paint.
func (c *Controller) Frame() Frame {
	snap := c.store.Snapshot()

	c.mu.Lock()
	f := Frame{
		Frame:     c.state.Derive(snap.Records),
		Failed:    maps.Clone(c.failed),
		Revision:  snap.Revision,
		UpdatedAt: snap.CommittedAt,
	}
	r := c.refresher
	c.mu.Unlock()

	f.Loading = r.Loading()
	return f
}

// Loading reports whether a refresh is in flight.
func (c *Controller) Loading() bool {
	c.mu.Lock()
	r := c.refresher
	c.mu.Unlock()
	return r.Loading()
}

// Lookup finds id in the current snapshot.
func (c *Controller) Lookup(id int64) (domain.URLRecord, bool) {
	for _, r := range c.store.Snapshot().Records {
		if r.ID == id {
			return r, true
		}
	}
	return domain.URLRecord{}, false
}

// --- Actions ---

// Refresh fetches a snapshot now, alongside any poll.
func (c *Controller) Refresh(ctx context.Context) error {
	_, err := refreshProxy{c}.Refresh(ctx)
	return err
}

// Add submits a new URL.
func (c *Controller) Add(ctx context.Context, rawURL string) error {
	return c.dispatcher.Add(ctx, rawURL)
}

// Start starts the crawl for id, which must be queued.
func (c *Controller) Start(ctx context.Context, id int64) error {
	rec, ok := c.Lookup(id)
	if !ok {
		return actions.ErrUnknownRecord
	}
	err := c.dispatcher.Start(ctx, rec)
	c.markResult(id, err)
	return err
}

// Delete removes id and drops it from the selection.
func (c *Controller) Delete(ctx context.Context, id int64) error {
	err := c.dispatcher.Delete(ctx, id)
	if err == nil {
		c.apply(view.Deselect{IDs: []int64{id}})
	}
	c.markResult(id, err)
	return err
}

// BulkStart starts every selected id in selection order, then clears the selection.
func (c *Controller) BulkStart(ctx context.Context) actions.BulkResult {
	ids := c.takeSelection()
	snapshot := c.store.Snapshot().Records
	lookup := func(id int64) (domain.URLRecord, bool) {
		for _, r := range snapshot {
			if r.ID == id {
				return r, true
			}
		}
		return domain.URLRecord{}, false
	}
	result := c.dispatcher.BulkStart(ctx, ids, lookup)
	c.markBulk(result)
	return result
}

// BulkDelete deletes every selected id in selection order, then clears the selection.
func (c *Controller) BulkDelete(ctx context.Context) actions.BulkResult {
	ids := c.takeSelection()
	result := c.dispatcher.BulkDelete(ctx, ids)
	c.markBulk(result)
	return result
}

// RetryFailed selects the rows whose last action failed and returns how many
// are selected. The failure marks stay until the next attempt.
func (c *Controller) RetryFailed() int {
	c.mu.Lock()
	ids := make([]int64, 0, len(c.failed))
	for id := range c.failed {
		ids = append(ids, id)
	}
	c.mu.Unlock()

	c.apply(view.SelectIDs{IDs: ids})

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Selection.Len()
}

// Detail fetches the status and crawl results for id.
func (c *Controller) Detail(ctx context.Context, id int64) (*domain.URLStatus, error) {
	return c.client.URLStatus(ctx, id)
}

// takeSelection snapshots the selection and clears it so a bulk action
// works on exactly what was selected when it was invoked.
func (c *Controller) takeSelection() []int64 {
	c.mu.Lock()
	ids := c.state.Selection.IDs()
	c.state = c.state.Apply(view.ClearSelection{}, c.store.Snapshot().Records)
	c.mu.Unlock()
	c.notify()
	return ids
}

func (c *Controller) markResult(id int64, err error) {
	c.mu.Lock()
	switch {
	case err == nil:
		delete(c.failed, id)
	case retryable(err):
		c.failed[id] = err
	}
	c.mu.Unlock()
	c.notify()
}

func (c *Controller) markBulk(result actions.BulkResult) {
	c.mu.Lock()
	for _, id := range result.Succeeded {
		delete(c.failed, id)
	}
	for _, f := range result.Failed {
		if retryable(f.Err) {
			c.failed[f.ID] = f.Err
		}
	}
	c.mu.Unlock()
	c.notify()
}

// retryable reports whether a failed action is worth marking for retry.
// Rejections decided locally and cancellations are not.
func retryable(err error) bool {
	return !errors.Is(err, actions.ErrNotStartable) &&
		!errors.Is(err, actions.ErrUnknownRecord) &&
		!errors.Is(err, context.Canceled)
}

// InlineError is the message shown under the add-URL input for err.
func InlineError(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, api.ErrEmptyURL) {
		return "URL cannot be empty"
	}
	if msg, ok := api.ServerMessage(err); ok {
		return msg
	}
	return "Failed to add URL"
}
