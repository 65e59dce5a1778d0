// Package errors defines the error taxonomy used across autoreload: soft
// watch failures, isolated hook failures, build command failures and the
// HTML injection outcomes the server maps to HTTP status codes.
package errors

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrNotFound reports a requested document that does not exist.
	ErrNotFound = errors.New("document not found")

	// ErrHeadNotFound reports a document whose head element never closes.
	ErrHeadNotFound = errors.New("closing head tag not found")

	// ErrMalformed reports markup the scanner could not accept before the
	// head element closed.
	ErrMalformed = errors.New("malformed markup before head close")

	// ErrIncompatibleEncoding reports a document in an encoding the byte
	// oriented scanner cannot splice into (UTF-16 and friends).
	ErrIncompatibleEncoding = errors.New("document encoding is not ASCII compatible")
)

// WatchError reports a path that could not be stat'ed, either when it was
// registered or during a poll tick.
type WatchError struct {
	Path string
	Op   string
	Err  error
}

func (e *WatchError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *WatchError) Unwrap() error { return e.Err }

// HookError reports a hook that panicked or returned an error during a
// dispatch cycle.
type HookError struct {
	Index int
	Value interface{}
}

func (e *HookError) Error() string {
	return fmt.Sprintf("hook %d failed: %v", e.Index, e.Value)
}

// Unwrap exposes the panic value when it is itself an error.
func (e *HookError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// CommandError reports a build command that could not start or exited
// with a non-zero status.
type CommandError struct {
	Command  string
	ExitCode int
	Err      error
}

func (e *CommandError) Error() string {
	if e.ExitCode >= 0 {
		return fmt.Sprintf("command %q exited with status %d", e.Command, e.ExitCode)
	}
	return fmt.Sprintf("command %q failed: %v", e.Command, e.Err)
}

func (e *CommandError) Unwrap() error { return e.Err }

// IsDegradable reports whether an injection error should fall back to
// serving the document unmodified rather than failing the request.
func IsDegradable(err error) bool {
	return errors.Is(err, ErrHeadNotFound) ||
		errors.Is(err, ErrMalformed) ||
		errors.Is(err, ErrIncompatibleEncoding)
}

// ErrorCollector collects errors from concurrent or sequential steps of a
// single operation.
type ErrorCollector struct {
	errors []error
	mutex  sync.Mutex
}

// NewErrorCollector creates a new error collector
func NewErrorCollector() *ErrorCollector {
	return &ErrorCollector{}
}

// Add records err; nil is ignored.
func (ec *ErrorCollector) Add(err error) {
	if err == nil {
		return
	}
	ec.mutex.Lock()
	defer ec.mutex.Unlock()
	ec.errors = append(ec.errors, err)
}

// Errors returns a copy of the collected errors.
func (ec *ErrorCollector) Errors() []error {
	ec.mutex.Lock()
	defer ec.mutex.Unlock()
	result := make([]error, len(ec.errors))
	copy(result, ec.errors)
	return result
}

// HasErrors returns true if there are any errors
func (ec *ErrorCollector) HasErrors() bool {
	ec.mutex.Lock()
	defer ec.mutex.Unlock()
	return len(ec.errors) > 0
}

// Err joins the collected errors, or returns nil when there are none.
func (ec *ErrorCollector) Err() error {
	ec.mutex.Lock()
	defer ec.mutex.Unlock()
	return errors.Join(ec.errors...)
}

// Is, As and Join are re-exported so callers importing this package under
// its own name do not also need the standard library package.
func Is(err, target error) bool { return errors.Is(err, target) }

func As(err error, target interface{}) bool { return errors.As(err, target) }

func Join(errs ...error) error { return errors.Join(errs...) }

func New(text string) error { return errors.New(text) }
