package watcher

import (
	"context"
	"sync"

	"github.com/conneroisu/autoreload/internal/errors"
	"github.com/conneroisu/autoreload/internal/logging"
)

// Hook reacts to a detected change. Hooks take no arguments: they are told
// that something changed, not what.
type Hook func()

// Dispatcher holds the registered hooks and invokes all of them, in
// registration order, once per dirty poll cycle.
type Dispatcher struct {
	hooks  []Hook
	mutex  sync.RWMutex
	logger logging.Logger
}

// NewDispatcher creates a dispatcher with no hooks.
func NewDispatcher(logger logging.Logger) *Dispatcher {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Dispatcher{logger: logger.WithComponent("dispatcher")}
}

// AddHook appends fn. The same hook added twice runs twice per cycle.
func (d *Dispatcher) AddHook(fn Hook) {
	if fn == nil {
		return
	}
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.hooks = append(d.hooks, fn)
}

// Len returns the number of registered hooks.
func (d *Dispatcher) Len() int {
	d.mutex.RLock()
	defer d.mutex.RUnlock()
	return len(d.hooks)
}

// Fire runs every hook synchronously. A hook that panics is recovered and
// logged and the remaining hooks still run; the failures are returned
// joined together.
func (d *Dispatcher) Fire() error {
	d.mutex.RLock()
	hooks := make([]Hook, len(d.hooks))
	copy(hooks, d.hooks)
	d.mutex.RUnlock()

	collector := errors.NewErrorCollector()
	for i, hook := range hooks {
		collector.Add(d.invoke(i, hook))
	}
	return collector.Err()
}

func (d *Dispatcher) invoke(index int, hook Hook) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &errors.HookError{Index: index, Value: r}
			d.logger.Error(context.Background(), err, "hook failed", "hook", index)
		}
	}()
	hook()
	return nil
}
