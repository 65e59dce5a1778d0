//go:build integration
// +build integration

package integration_tests

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestServerConfig contains configuration for test server setup
type TestServerConfig struct {
	ReadinessTimeout    time.Duration
	HealthCheckInterval time.Duration
}

// DefaultTestServerConfig returns sensible defaults for integration tests
func DefaultTestServerConfig() TestServerConfig {
	return TestServerConfig{
		ReadinessTimeout:    5 * time.Second,
		HealthCheckInterval: 25 * time.Millisecond,
	}
}

// freePort asks the kernel for an unused TCP port on the loopback interface.
func freePort(t *testing.T) int {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()
	return listener.Addr().(*net.TCPAddr).Port
}

// waitForServer polls /healthz until the server answers healthy or the
// readiness timeout expires.
func waitForServer(t *testing.T, baseURL string, cfg TestServerConfig) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ReadinessTimeout)
	defer cancel()

	ticker := time.NewTicker(cfg.HealthCheckInterval)
	defer ticker.Stop()

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/healthz", nil)
		require.NoError(t, err)
		if resp, err := http.DefaultClient.Do(req); err == nil {
			var health map[string]interface{}
			decodeErr := json.NewDecoder(resp.Body).Decode(&health)
			resp.Body.Close()
			if decodeErr == nil && health["status"] == "healthy" {
				return
			}
		}

		select {
		case <-ctx.Done():
			t.Fatalf("server at %s not ready within %s", baseURL, cfg.ReadinessTimeout)
		case <-ticker.C:
		}
	}
}

// writeFile writes content below dir, creating parents, and pins the
// modification time so later changes are always visible to the poller.
func writeFile(t *testing.T, dir, name, content string, mtime time.Time) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	require.NoError(t, os.Chtimes(path, mtime, mtime))
	return path
}

func fetch(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body []byte
	buf := make([]byte, 4096)
	for {
		n, err := resp.Body.Read(buf)
		body = append(body, buf[:n]...)
		if err != nil {
			break
		}
	}
	return resp.StatusCode, string(body)
}

func baseURL(port int) string {
	return fmt.Sprintf("http://127.0.0.1:%d", port)
}
