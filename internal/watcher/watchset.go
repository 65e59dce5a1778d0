package watcher

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/conneroisu/autoreload/internal/errors"
	"github.com/conneroisu/autoreload/internal/logging"
	"github.com/fsnotify/fsnotify"
)

// entry is the last observed state of one watched path.
type entry struct {
	modTime time.Time
	missing bool
}

// WatchSet holds the paths under observation and the modification time
// last observed for each of them. Directories are expanded once, when they
// are watched; files created later are not picked up.
type WatchSet struct {
	entries map[string]*entry
	mutex   sync.RWMutex
	logger  logging.Logger
	stat    func(string) (fs.FileInfo, error)
}

// NewWatchSet creates an empty watch set.
func NewWatchSet(logger logging.Logger) *WatchSet {
	if logger == nil {
		logger = logging.Discard()
	}
	return &WatchSet{
		entries: make(map[string]*entry),
		logger:  logger.WithComponent("watcher"),
		stat:    os.Stat,
	}
}

// Watch registers path. A directory is walked recursively and every
// directory and file found is registered along with the root. Paths that
// cannot be stat'ed are logged and skipped; Watch never fails. It returns
// the number of paths newly registered.
func (ws *WatchSet) Watch(path string) int {
	ctx := context.Background()
	path = filepath.Clean(path)

	info, err := ws.stat(path)
	if err != nil {
		ws.logger.Warn(ctx, &errors.WatchError{Path: path, Op: "watch", Err: err}, "failed to watch path")
		return 0
	}

	if !info.IsDir() {
		if ws.add(path, info.ModTime()) {
			return 1
		}
		return 0
	}

	added := 0
	walkErr := filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			ws.logger.Warn(ctx, &errors.WatchError{Path: p, Op: "walk", Err: err}, "failed to watch path")
			if d != nil && d.IsDir() && p != path {
				return filepath.SkipDir
			}
			return nil
		}

		fi, err := ws.stat(p)
		if err != nil {
			ws.logger.Warn(ctx, &errors.WatchError{Path: p, Op: "watch", Err: err}, "failed to watch path")
			return nil
		}
		if ws.add(p, fi.ModTime()) {
			added++
		}
		return nil
	})
	if walkErr != nil {
		ws.logger.Warn(ctx, walkErr, "directory walk aborted", "path", path)
	}

	ws.logger.Debug(ctx, "watching", "path", path, "entries", added)
	return added
}

// add records path unless it is already watched. The first observation
// wins so that re-watching a path cannot swallow a pending change.
func (ws *WatchSet) add(path string, modTime time.Time) bool {
	ws.mutex.Lock()
	defer ws.mutex.Unlock()

	if _, ok := ws.entries[path]; ok {
		return false
	}
	ws.entries[path] = &entry{modTime: modTime}
	return true
}

// Len returns the number of watched paths.
func (ws *WatchSet) Len() int {
	ws.mutex.RLock()
	defer ws.mutex.RUnlock()
	return len(ws.entries)
}

// Paths returns the watched paths in lexical order.
func (ws *WatchSet) Paths() []string {
	ws.mutex.RLock()
	paths := make([]string, 0, len(ws.entries))
	for p := range ws.entries {
		paths = append(paths, p)
	}
	ws.mutex.RUnlock()

	sort.Strings(paths)
	return paths
}

// ModTime returns the modification time last observed for path.
func (ws *WatchSet) ModTime(path string) (time.Time, bool) {
	ws.mutex.RLock()
	defer ws.mutex.RUnlock()

	e, ok := ws.entries[filepath.Clean(path)]
	if !ok {
		return time.Time{}, false
	}
	return e.modTime, true
}

// scan re-stats every watched path once and records new modification
// times. It returns one event per path whose modification time changed.
// A path that fails to stat stays watched and is reported once when it
// disappears and once when it comes back.
func (ws *WatchSet) scan(ctx context.Context) []fsnotify.Event {
	paths := ws.Paths()

	var changed []fsnotify.Event
	for _, path := range paths {
		info, err := ws.stat(path)

		ws.mutex.Lock()
		e := ws.entries[path]
		if err != nil {
			first := !e.missing
			e.missing = true
			ws.mutex.Unlock()
			if first {
				ws.logger.Warn(ctx, &errors.WatchError{Path: path, Op: "stat", Err: err}, "watched path unavailable")
			}
			continue
		}

		wasMissing := e.missing
		e.missing = false
		modified := !info.ModTime().Equal(e.modTime)
		if modified {
			e.modTime = info.ModTime()
		}
		ws.mutex.Unlock()

		if wasMissing {
			ws.logger.Info(ctx, "watched path available again", "path", path)
		}
		if !modified {
			continue
		}

		op := fsnotify.Write
		if wasMissing {
			op = fsnotify.Create
		}
		changed = append(changed, fsnotify.Event{Name: path, Op: op})
	}

	return changed
}
