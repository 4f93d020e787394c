// Package actions issues mutating requests against the backend and refreshes
// the record store once each operation has finished.
package actions

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"crawldash/internal/api"
	"crawldash/internal/domain"
	"crawldash/internal/syncer"
)

var (
	// ErrNotStartable is returned for records that are not queued. No request is sent.
	ErrNotStartable = errors.New("only queued urls can be started")
	// ErrUnknownRecord is recorded when a bulk id no longer exists in the snapshot.
	ErrUnknownRecord = errors.New("url is no longer listed")
)

// Action names a mutating operation.
type Action string

const (
	ActionAdd    Action = "add"
	ActionStart  Action = "start"
	ActionDelete Action = "delete"
)

// Client is the subset of the API client the dispatcher needs.
type Client interface {
	AddURL(ctx context.Context, rawURL string) error
	StartURL(ctx context.Context, id int64) error
	DeleteURL(ctx context.Context, id int64) error
}

// Refresher reloads the record store.
type Refresher interface {
	Refresh(ctx context.Context) (syncer.Outcome, error)
}

// Lookup resolves an id against the current snapshot.
type Lookup func(id int64) (domain.URLRecord, bool)

// Failure is one id that a bulk operation could not process.
type Failure struct {
	ID  int64
	Err error
}

// BulkResult summarises a bulk operation. Ids appear in processing order.
type BulkResult struct {
	Action    Action
	Succeeded []int64
	Failed    []Failure
}

// FailedIDs lists the ids that failed, in processing order.
func (r BulkResult) FailedIDs() []int64 {
	ids := make([]int64, len(r.Failed))
	for i, f := range r.Failed {
		ids[i] = f.ID
	}
	return ids
}

// Err joins every per-id failure, or returns nil when all succeeded.
func (r BulkResult) Err() error {
	if len(r.Failed) == 0 {
		return nil
	}
	errs := make([]error, len(r.Failed))
	for i, f := range r.Failed {
		errs[i] = fmt.Errorf("%s %d: %w", r.Action, f.ID, f.Err)
	}
	return errors.Join(errs...)
}

// Dispatcher runs single and bulk actions.
type Dispatcher struct {
	client    Client
	refresher Refresher
	limiter   *rate.Limiter
	log       logrus.FieldLogger
}

// NewDispatcher creates a dispatcher. A nil limiter sends bulk requests back to back.
func NewDispatcher(client Client, refresher Refresher, limiter *rate.Limiter, logger logrus.FieldLogger) *Dispatcher {
	return &Dispatcher{
		client:    client,
		refresher: refresher,
		limiter:   limiter,
		log:       logger.WithField("component", "dispatcher"),
	}
}

// NewLimiter converts a requests-per-second setting into a limiter.
// Zero or less means unlimited and yields nil.
func NewLimiter(perSecond float64) *rate.Limiter {
	if perSecond <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(perSecond), 1)
}

// Add submits rawURL and refreshes when the backend accepted it.
func (d *Dispatcher) Add(ctx context.Context, rawURL string) error {
	target := strings.TrimSpace(rawURL)
	if target == "" {
		return api.ErrEmptyURL
	}
	if err := d.client.AddURL(ctx, target); err != nil {
		d.log.WithError(err).WithFields(logrus.Fields{"action": ActionAdd, "url": target}).Warn("Action failed")
		return err
	}
	d.refresh(ctx)
	return nil
}

// Start starts the crawl for a queued record, then refreshes.
func (d *Dispatcher) Start(ctx context.Context, rec domain.URLRecord) error {
	if !rec.Startable() {
		return fmt.Errorf("start %d (%s): %w", rec.ID, rec.Status, ErrNotStartable)
	}
	err := d.send(ctx, ActionStart, rec.ID)
	d.refresh(ctx)
	return err
}

// Delete removes id, then refreshes.
func (d *Dispatcher) Delete(ctx context.Context, id int64) error {
	err := d.send(ctx, ActionDelete, id)
	d.refresh(ctx)
	return err
}

// BulkDelete deletes ids one after another in the given order and refreshes once.
func (d *Dispatcher) BulkDelete(ctx context.Context, ids []int64) BulkResult {
	return d.bulk(ctx, ActionDelete, ids, func(int64) error { return nil })
}

// BulkStart starts ids in the given order. Ids that are not queued in the
// current snapshot are recorded as failures without a request.
func (d *Dispatcher) BulkStart(ctx context.Context, ids []int64, lookup Lookup) BulkResult {
	return d.bulk(ctx, ActionStart, ids, func(id int64) error {
		rec, ok := lookup(id)
		if !ok {
			return ErrUnknownRecord
		}
		if !rec.Startable() {
			return ErrNotStartable
		}
		return nil
	})
}

func (d *Dispatcher) bulk(ctx context.Context, action Action, ids []int64, precheck func(int64) error) BulkResult {
	result := BulkResult{Action: action}
	if len(ids) == 0 {
		return result
	}
	log := d.log.WithFields(logrus.Fields{"action": action, "count": len(ids)})
	log.Info("Bulk action started")

	for i, id := range ids {
		if err := precheck(id); err != nil {
			result.Failed = append(result.Failed, Failure{ID: id, Err: err})
			continue
		}
		if d.limiter != nil {
			if err := d.limiter.Wait(ctx); err != nil {
				for _, rest := range ids[i:] {
					result.Failed = append(result.Failed, Failure{ID: rest, Err: err})
				}
				break
			}
		}
		if err := d.send(ctx, action, id); err != nil {
			result.Failed = append(result.Failed, Failure{ID: id, Err: err})
			continue
		}
		result.Succeeded = append(result.Succeeded, id)
	}

	log.WithFields(logrus.Fields{
		"succeeded": len(result.Succeeded),
		"failed":    len(result.Failed),
	}).Info("Bulk action finished")
	d.refresh(ctx)
	return result
}

func (d *Dispatcher) send(ctx context.Context, action Action, id int64) error {
	var err error
	switch action {
	case ActionStart:
		err = d.client.StartURL(ctx, id)
	case ActionDelete:
		err = d.client.DeleteURL(ctx, id)
	default:
		err = fmt.Errorf("unsupported action %q", action)
	}
	if err != nil {
		d.log.WithError(err).WithFields(logrus.Fields{"action": action, "id": id}).Warn("Action failed")
	}
	return err
}

// refresh errors are already logged by the refresher and the next poll retries.
func (d *Dispatcher) refresh(ctx context.Context) {
	_, _ = d.refresher.Refresh(ctx)
}
