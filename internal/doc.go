// Package internal contains the implementation packages for autoreload.
//
// This package follows Go's internal package convention, making these
// packages unavailable for import by external modules.
//
// # Package Organization
//
// The internal packages are organized by functional domain:
//
//   - config: Configuration loading through viper and .autoreload.yml writing
//   - logging: Structured logging on top of log/slog
//   - errors: Degradable error kinds and error collection
//   - watcher: Polling watch set, poll scheduler and change hook dispatch
//   - build: Shell command runner and build metrics
//   - websocket: Client registry and the /ws endpoint
//   - inject: Splicing the reload snippet into HTML documents
//   - assets: Embedded browser client served under /assets/
//   - server: HTTP routes, middleware and lifecycle
//   - version: Build and version information
//
// # Data Flow
//
// A change travels through the packages in one direction:
//
//   - The watcher poller scans the watch set once per interval
//   - A cycle with changes fires the dispatcher hooks exactly once
//   - The build runner runs the configured commands in order
//   - When the commands finish the registry broadcasts "reload"
//   - Browsers reload and fetch documents that the injector rewrites
//
// Nothing in this flow stops on a failing build: the reload is sent
// regardless of exit codes so the browser shows the latest output.
package internal
