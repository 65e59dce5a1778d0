// Package watcher implements polling change detection: a set of watched
// paths, a scheduler that re-stats them on a fixed interval, and a
// dispatcher that runs the registered hooks once for every poll cycle in
// which anything changed.
package watcher

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/conneroisu/autoreload/internal/logging"
	"github.com/fsnotify/fsnotify"
)

// DefaultInterval is the poll period used when none is given.
const DefaultInterval = 500 * time.Millisecond

// Observer receives the changes found by a dirty poll cycle before the
// hooks run.
type Observer func(events []fsnotify.Event)

// Poller periodically re-stats every path of a WatchSet and fires the
// Dispatcher once per cycle in which at least one modification time moved.
type Poller struct {
	set        *WatchSet
	dispatcher *Dispatcher
	interval   time.Duration
	logger     logging.Logger

	observers []Observer
	mutex     sync.Mutex
	running   bool
	done      chan struct{}

	ticks  atomic.Int64
	cycles atomic.Int64
}

// NewPoller creates a poller over set that fires dispatcher.
func NewPoller(set *WatchSet, dispatcher *Dispatcher, interval time.Duration, logger logging.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Poller{
		set:        set,
		dispatcher: dispatcher,
		interval:   interval,
		logger:     logger.WithComponent("poller"),
	}
}

// Observe registers fn to receive the change events of each dirty cycle.
func (p *Poller) Observe(fn Observer) {
	if fn == nil {
		return
	}
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.observers = append(p.observers, fn)
}

// Start launches the poll loop, which runs until ctx is done. Starting a
// poller that is already running logs a warning and returns false.
func (p *Poller) Start(ctx context.Context) bool {
	p.mutex.Lock()
	if p.running {
		p.mutex.Unlock()
		p.logger.Warn(ctx, nil, "poller started more than once; ignoring")
		return false
	}
	p.running = true
	p.done = make(chan struct{})
	done := p.done
	p.mutex.Unlock()

	p.logger.Info(ctx, "watching for changes", "paths", p.set.Len(), "interval", p.interval.String())

	go p.loop(ctx, done)
	return true
}

func (p *Poller) loop(ctx context.Context, done chan struct{}) {
	ticker := time.NewTicker(p.interval)
	defer func() {
		ticker.Stop()
		p.mutex.Lock()
		p.running = false
		p.mutex.Unlock()
		close(done)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Tick()
		}
	}
}

// Wait blocks until a started poll loop has exited.
func (p *Poller) Wait() {
	p.mutex.Lock()
	done := p.done
	p.mutex.Unlock()
	if done != nil {
		<-done
	}
}

// Tick performs one poll cycle: one stat per watched path, then at most one
// dispatch no matter how many paths changed. It reports whether the cycle
// was dirty.
func (p *Poller) Tick() bool {
	ctx := context.Background()
	p.ticks.Add(1)

	events := p.set.scan(ctx)
	if len(events) == 0 {
		return false
	}
	p.cycles.Add(1)

	for _, ev := range events {
		p.logger.Debug(ctx, "change detected", "path", ev.Name, "op", ev.Op.String())
	}

	p.mutex.Lock()
	observers := make([]Observer, len(p.observers))
	copy(observers, p.observers)
	p.mutex.Unlock()
	for _, fn := range observers {
		fn(events)
	}

	if err := p.dispatcher.Fire(); err != nil {
		p.logger.Warn(ctx, err, "change hooks reported failures")
	}
	return true
}

// Ticks returns the number of poll cycles run so far.
func (p *Poller) Ticks() int64 { return p.ticks.Load() }

// Cycles returns the number of dirty cycles, i.e. dispatches, so far.
func (p *Poller) Cycles() int64 { return p.cycles.Load() }
