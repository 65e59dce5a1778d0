// Package build runs the configured build commands after a change and
// sends the reload notification once they have finished.
package build

import (
	"context"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/conneroisu/autoreload/internal/config"
	"github.com/conneroisu/autoreload/internal/errors"
	"github.com/conneroisu/autoreload/internal/logging"
)

// waitDelay bounds how long a killed command may hold its output pipes open
// through processes it left behind.
const waitDelay = 2 * time.Second

// Runner executes build commands through the shell and calls notify when a
// cycle completes. Command exit status never suppresses the notification.
//
// With Serialize set, a trigger that arrives while a cycle is running is
// folded into a single follow-up cycle. Without it every trigger starts its
// own cycle, possibly overlapping a running one.
type Runner struct {
	commands  []string
	shell     []string
	serialize bool
	notify    func()
	logger    logging.Logger
	metrics   *BuildMetrics

	Stdout io.Writer
	Stderr io.Writer

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mutex   sync.Mutex
	running bool
	pending bool
}

// NewRunner creates a runner for cfg. notify must be safe to call from any
// goroutine.
func NewRunner(cfg config.BuildConfig, notify func(), logger logging.Logger) *Runner {
	if logger == nil {
		logger = logging.Discard()
	}
	if notify == nil {
		notify = func() {}
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		commands:  append([]string(nil), cfg.Commands...),
		shell:     shellArgs(cfg.Shell),
		serialize: cfg.Serialize,
		notify:    notify,
		logger:    logger.WithComponent("build"),
		metrics:   NewBuildMetrics(),
		Stdout:    os.Stdout,
		Stderr:    os.Stderr,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// shellArgs returns the interpreter prefix used to run a command string.
func shellArgs(shell string) []string {
	if fields := strings.Fields(shell); len(fields) > 0 {
		return fields
	}
	if runtime.GOOS == "windows" {
		return []string{"cmd", "/C"}
	}
	return []string{"sh", "-c"}
}

// Trigger reacts to a detected change. With no commands configured it
// notifies immediately; otherwise the commands run in the background and
// Trigger returns at once.
func (r *Runner) Trigger() {
	if len(r.commands) == 0 {
		r.sendNotification()
		return
	}

	if !r.serialize {
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			r.runCycle()
		}()
		return
	}

	r.mutex.Lock()
	if r.running {
		r.pending = true
		r.mutex.Unlock()
		r.logger.Debug(r.ctx, "build already running; queued another cycle")
		return
	}
	r.running = true
	r.wg.Add(1)
	r.mutex.Unlock()

	go func() {
		defer r.wg.Done()
		for {
			r.runCycle()

			r.mutex.Lock()
			if !r.pending || r.ctx.Err() != nil {
				r.running = false
				r.pending = false
				r.mutex.Unlock()
				return
			}
			r.pending = false
			r.mutex.Unlock()
		}
	}()
}

// runCycle runs every command in order and then notifies. A failing command
// is logged and does not stop the ones after it.
func (r *Runner) runCycle() {
	for _, command := range r.commands {
		if r.ctx.Err() != nil {
			return
		}
		if err := r.execute(command); err != nil {
			r.logger.Warn(r.ctx, err, "build command failed", "command", command)
		}
	}
	r.sendNotification()
}

func (r *Runner) sendNotification() {
	r.metrics.RecordNotification()
	r.notify()
}

func (r *Runner) execute(command string) error {
	r.logger.Info(r.ctx, "running build command", "command", command)

	args := append(append([]string(nil), r.shell[1:]...), command)
	cmd := exec.CommandContext(r.ctx, r.shell[0], args...)
	cmd.Stdout = r.Stdout
	cmd.Stderr = r.Stderr
	cmd.WaitDelay = waitDelay
	setProcessGroup(cmd)

	start := time.Now()
	err := cmd.Run()
	duration := time.Since(start)

	if err != nil {
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		err = &errors.CommandError{Command: command, ExitCode: exitCode, Err: err}
	} else {
		r.logger.Debug(r.ctx, "build command finished", "command", command, "duration", duration.String())
	}

	r.metrics.RecordBuild(duration, err)
	return err
}

// Metrics returns a snapshot of the build metrics.
func (r *Runner) Metrics() BuildMetrics {
	return r.metrics.GetSnapshot()
}

// Wait blocks until every running cycle has finished.
func (r *Runner) Wait() {
	r.wg.Wait()
}

// Stop kills running commands together with the processes they started,
// skips queued cycles and waits for the background work to finish.
func (r *Runner) Stop() {
	r.cancel()
	r.wg.Wait()
}
