// Package server exposes the document root over HTTP with live reload and
// wires the change pipeline: poller, hooks, build runner and broadcaster.
package server

import (
	"context"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/conneroisu/autoreload/internal/assets"
	"github.com/conneroisu/autoreload/internal/build"
	"github.com/conneroisu/autoreload/internal/config"
	"github.com/conneroisu/autoreload/internal/errors"
	"github.com/conneroisu/autoreload/internal/inject"
	"github.com/conneroisu/autoreload/internal/logging"
	"github.com/conneroisu/autoreload/internal/watcher"
	"github.com/conneroisu/autoreload/internal/websocket"
)

// shutdownTimeout bounds the shutdown Serve starts when its context ends.
const shutdownTimeout = 5 * time.Second

// Server serves HTML documents with the reload snippet injected and tells
// connected browsers to reload after watched files change.
type Server struct {
	config *config.Config
	logger logging.Logger

	docs     fs.FS
	assets   fs.FS
	injector *inject.Injector
	handler  http.Handler

	watchSet   *watcher.WatchSet
	dispatcher *watcher.Dispatcher
	poller     *watcher.Poller
	runner     *build.Runner
	registry   *websocket.Registry

	httpServer   *http.Server
	serverMutex  sync.RWMutex
	cancel       context.CancelFunc
	shutdown     bool
	shutdownOnce sync.Once
}

// New builds a server for cfg. Watch targets are enumerated here, so files
// created later under a watched directory are not picked up.
func New(cfg *config.Config, logger logging.Logger) (*Server, error) {
	if logger == nil {
		logger = logging.Discard()
	}

	info, err := os.Stat(cfg.Docs.Root)
	if err != nil {
		return nil, fmt.Errorf("document root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("document root %s is not a directory", cfg.Docs.Root)
	}

	assetFS := assets.FS()
	if cfg.Docs.Assets != "" {
		info, err := os.Stat(cfg.Docs.Assets)
		if err != nil {
			return nil, fmt.Errorf("assets directory: %w", err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("assets path %s is not a directory", cfg.Docs.Assets)
		}
		assetFS = os.DirFS(cfg.Docs.Assets)
	}

	s := &Server{
		config:     cfg,
		logger:     logger.WithComponent("server"),
		docs:       os.DirFS(cfg.Docs.Root),
		assets:     assetFS,
		injector:   inject.New(assets.Snippet),
		watchSet:   watcher.NewWatchSet(logger),
		dispatcher: watcher.NewDispatcher(logger),
		registry:   websocket.NewRegistry(logger),
	}

	s.runner = build.NewRunner(cfg.Build, s.registry.Reload, logger)
	s.dispatcher.AddHook(s.runner.Trigger)

	for _, path := range cfg.Watch.Paths {
		s.watchSet.Watch(path)
	}
	s.poller = watcher.NewPoller(s.watchSet, s.dispatcher, cfg.Watch.Interval, logger)
	s.poller.Observe(s.logChanges)

	s.handler = s.routes()
	return s, nil
}

func (s *Server) logChanges(events []fsnotify.Event) {
	for _, event := range events {
		s.logger.Info(context.Background(), "change detected", "path", event.Name, "op", event.Op.String())
	}
}

// Handler returns the HTTP handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Registry returns the set of connected reload clients.
func (s *Server) Registry() *websocket.Registry {
	return s.registry
}

// Start listens on the configured address and serves until Shutdown.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.config.Server.Addr())
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.config.Server.Addr(), err)
	}
	return s.Serve(ctx, listener)
}

// Serve starts the poller and serves HTTP on listener until Shutdown or
// until ctx is done. It returns nil after a clean shutdown, and at once when
// Shutdown already ran.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	ctx, cancel := context.WithCancel(ctx)

	s.serverMutex.Lock()
	if s.shutdown {
		s.serverMutex.Unlock()
		cancel()
		listener.Close()
		return nil
	}
	s.cancel = cancel
	s.httpServer = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	server := s.httpServer
	s.serverMutex.Unlock()

	s.poller.Start(ctx)

	s.logger.Info(ctx, "starting application",
		"addr", listener.Addr().String(),
		"root", s.config.Docs.Root,
		"watched", s.watchSet.Len(),
		"commands", len(s.config.Build.Commands))

	served := make(chan struct{})
	defer close(served)
	go func() {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := s.Shutdown(shutdownCtx); err != nil {
				s.logger.Warn(shutdownCtx, err, "error during server shutdown")
			}
		case <-served:
		}
	}()

	if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown stops polling, kills running build commands, disconnects reload
// clients and shuts the HTTP server down. Only the first call has effect.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.logger.Debug(ctx, "shutting down server")

		s.serverMutex.Lock()
		s.shutdown = true
		cancel := s.cancel
		server := s.httpServer
		s.serverMutex.Unlock()

		if cancel != nil {
			cancel()
			s.poller.Wait()
		}
		s.runner.Stop()

		// Hijacked websocket connections are not tracked by http.Server.
		s.registry.CloseAll("server shutting down")

		if server != nil {
			shutdownErr = server.Shutdown(ctx)
		}
	})

	return shutdownErr
}
