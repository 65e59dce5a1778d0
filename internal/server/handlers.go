package server

import (
	"bytes"
	"encoding/json"
	"io"
	"io/fs"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/conneroisu/autoreload/internal/errors"
	"github.com/conneroisu/autoreload/internal/version"
	"github.com/conneroisu/autoreload/internal/websocket"
)

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/ws", websocket.NewHandler(s.registry, s.logger))
	mux.Handle("/assets/", http.StripPrefix("/assets/", http.FileServer(http.FS(s.assets))))
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/", s.handleDocument)

	return s.addMiddleware(mux)
}

// handleDocument routes HTML documents and directory indexes through the
// injector and everything else to the static file server.
func (s *Server) handleDocument(w http.ResponseWriter, r *http.Request) {
	name, ok := documentName(r.URL.Path)
	if !ok {
		http.FileServer(http.FS(s.docs)).ServeHTTP(w, r)
		return
	}

	info, err := fs.Stat(s.docs, name)
	if err == nil && info.IsDir() {
		err = fs.ErrNotExist
	}
	if err != nil {
		if strings.HasSuffix(r.URL.Path, "/") && errors.Is(err, fs.ErrNotExist) {
			// Directory without an index page: let the file server list it.
			http.FileServer(http.FS(s.docs)).ServeHTTP(w, r)
			return
		}
		s.writeError(w, r, http.StatusNotFound, r.URL.Path+" was not found")
		return
	}

	s.serveHTML(w, r, name, info.ModTime())
}

// documentName maps a URL path to the HTML document it names inside the
// document root. The second result is false for non-HTML requests.
func documentName(urlPath string) (string, bool) {
	if !strings.HasPrefix(urlPath, "/") {
		urlPath = "/" + urlPath
	}
	name := strings.TrimPrefix(path.Clean(urlPath), "/")

	switch {
	case strings.HasSuffix(urlPath, "/"):
		return path.Join(name, "index.html"), true
	case strings.HasSuffix(strings.ToLower(name), ".html"):
		return name, true
	default:
		return "", false
	}
}

func (s *Server) serveHTML(w http.ResponseWriter, r *http.Request, name string, modTime time.Time) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var buf bytes.Buffer
	cursor, err := s.injector.Inject(&buf, func() (io.ReadCloser, error) {
		return s.docs.Open(name)
	})
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.writeError(w, r, http.StatusNotFound, r.URL.Path+" was not found")
			return
		}
		s.logger.Error(r.Context(), err, "failed to process document", "path", name)
		s.writeError(w, r, http.StatusInternalServerError, "could not process "+r.URL.Path)
		return
	}
	if !cursor.Found() {
		s.logger.Debug(r.Context(), "served document without reload snippet", "path", name)
	}

	contentType := "text/html"
	if cursor.Charset != "" {
		contentType += "; charset=" + cursor.Charset
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "no-cache")
	http.ServeContent(w, r, name, modTime, bytes.NewReader(buf.Bytes()))
}

// writeError renders an error page. The page carries the reload snippet so
// the browser reloads once the document shows up.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, detail string) {
	var buf bytes.Buffer
	if err := errorPage(status, detail).Render(r.Context(), &buf); err != nil {
		s.logger.Error(r.Context(), err, "failed to render error page")
		http.Error(w, http.StatusText(status), status)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(status)
	if r.Method != http.MethodHead {
		_, _ = w.Write(s.injector.InjectBytes(buf.Bytes()))
	}
}

// handleHealth reports what the server is watching and serving.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	metrics := s.runner.Metrics()
	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"version":   version.Get().Short(),
		"watcher": map[string]interface{}{
			"paths":  s.watchSet.Len(),
			"ticks":  s.poller.Ticks(),
			"cycles": s.poller.Cycles(),
		},
		"clients": s.registry.Count(),
		"build": map[string]interface{}{
			"commands":      len(s.config.Build.Commands),
			"total_builds":  metrics.TotalBuilds,
			"failed_builds": metrics.FailedBuilds,
			"notifications": metrics.Notifications,
			"last_error":    metrics.LastError,
		},
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	if err := json.NewEncoder(w).Encode(health); err != nil {
		s.logger.Warn(r.Context(), err, "failed to encode health response")
	}
}
