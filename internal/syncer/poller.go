package syncer

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultInterval is the poll period when none is configured.
const DefaultInterval = 5 * time.Second

// Refreshable is anything the poller can drive.
type Refreshable interface {
	Refresh(ctx context.Context) (Outcome, error)
}

// Poller refreshes on a fixed interval. At most one loop runs at a time.
type Poller struct {
	target   Refreshable
	interval time.Duration
	log      logrus.FieldLogger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewPoller creates a stopped poller. A non-positive interval means DefaultInterval.
func NewPoller(target Refreshable, interval time.Duration, logger logrus.FieldLogger) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Poller{
		target:   target,
		interval: interval,
		log:      logger.WithField("component", "poller"),
	}
}

// Start launches the loop, which refreshes once immediately and then every
// interval until ctx ends or Stop is called. It returns false if the poller
// is already running.
func (p *Poller) Start(ctx context.Context) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return false
	}

	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	p.cancel = cancel
	p.done = done

	go p.loop(loopCtx, done)
	p.log.WithField("interval", p.interval.String()).Info("Polling started")
	return true
}

// Stop cancels the loop and waits for it to exit. Stopping a stopped poller is a no-op.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	p.log.Info("Polling stopped")
}

// Running reports whether the loop is active.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancel != nil
}

func (p *Poller) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		// errors are logged by the refresher; the next tick retries
		if outcome, _ := p.target.Refresh(ctx); outcome == Closed {
			p.log.Debug("Refresher closed, leaving poll loop")
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
