// Package discovery polls the running system for its set of live topics and
// delivers snapshots to a session.
package discovery

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.viam.com/utils"

	"go.viam.com/bagctl/bag"
)

// A Source reports the topics currently known to the running system.
type Source interface {
	Topics(ctx context.Context) ([]bag.TopicInfo, error)
}

// SnapshotFunc receives each polled topic snapshot. Snapshots are delivered
// best effort from a single background worker.
type SnapshotFunc func(topics []bag.TopicInfo)

// WatcherParams configure a Watcher. Clock may be left nil outside tests.
type WatcherParams struct {
	Source   Source
	Interval time.Duration
	Notify   SnapshotFunc
	Logger   golog.Logger
	Clock    clock.Clock
}

// Validate ensures all required fields are set.
func (p WatcherParams) Validate() error {
	if p.Source == nil {
		return errors.New("source required")
	}
	if p.Interval <= 0 {
		return errors.New("interval must be positive")
	}
	if p.Notify == nil {
		return errors.New("notify required")
	}
	if p.Logger == nil {
		return errors.New("logger required")
	}
	return nil
}

// A Watcher polls a Source on a fixed interval, handing every snapshot to
// the notify callback. Throttling of unchanged snapshots is the consumer's
// policy, not the watcher's.
type Watcher struct {
	source   Source
	interval time.Duration
	notify   SnapshotFunc
	clock    clock.Clock
	logger   golog.Logger

	cancelCtx               context.Context
	cancelFunc              func()
	activeBackgroundWorkers sync.WaitGroup
}

// NewWatcher makes a stopped watcher; call Start to begin polling.
func NewWatcher(params WatcherParams) (*Watcher, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if params.Clock == nil {
		params.Clock = clock.New()
	}
	cancelCtx, cancelFunc := context.WithCancel(context.Background())
	return &Watcher{
		source:     params.Source,
		interval:   params.Interval,
		notify:     params.Notify,
		clock:      params.Clock,
		logger:     params.Logger,
		cancelCtx:  cancelCtx,
		cancelFunc: cancelFunc,
	}, nil
}

// Start launches the polling worker. The first poll happens immediately.
func (w *Watcher) Start() {
	w.activeBackgroundWorkers.Add(1)
	utils.ManagedGo(func() {
		ticker := w.clock.Ticker(w.interval)
		defer ticker.Stop()
		for {
			w.poll(w.cancelCtx)
			select {
			case <-w.cancelCtx.Done():
				return
			case <-ticker.C:
			}
		}
	}, w.activeBackgroundWorkers.Done)
}

func (w *Watcher) poll(ctx context.Context) {
	topics, err := w.source.Topics(ctx)
	if err != nil {
		if ctx.Err() == nil {
			w.logger.Debugw("topic discovery failed", "error", err)
		}
		return
	}
	w.notify(topics)
}

// Close stops polling and waits for the worker to exit.
func (w *Watcher) Close() {
	w.cancelFunc()
	w.activeBackgroundWorkers.Wait()
}
