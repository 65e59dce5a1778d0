package version

import (
	"runtime/debug"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func withBuildVars(t *testing.T, v, c, b string) {
	t.Helper()
	oldV, oldC, oldB, oldRead := Version, GitCommit, BuildTime, readBuildInfo
	Version, GitCommit, BuildTime = v, c, b
	readBuildInfo = func() (*debug.BuildInfo, bool) { return nil, false }
	t.Cleanup(func() {
		Version, GitCommit, BuildTime, readBuildInfo = oldV, oldC, oldB, oldRead
	})
}

func TestGetUsesLinkerValues(t *testing.T) {
	withBuildVars(t, "v1.2.0", "abcdef1234567", "2024-03-01T10:00:00Z")

	info := Get()
	assert.Equal(t, "v1.2.0", info.Version)
	assert.Equal(t, "abcdef1234567", info.GitCommit)
	assert.Equal(t, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), info.BuildTime)
	assert.Equal(t, "v1.2.0 (abcdef1)", info.Short())
	assert.Contains(t, info.String(), "Commit: abcdef1234567")
}

func TestGetFallsBackToBuildInfo(t *testing.T) {
	withBuildVars(t, "dev", "unknown", "unknown")
	readBuildInfo = func() (*debug.BuildInfo, bool) {
		return &debug.BuildInfo{
			Main:     debug.Module{Version: "(devel)"},
			Settings: []debug.BuildSetting{{Key: "vcs.revision", Value: "1234567890"}},
		}, true
	}

	info := Get()
	assert.Equal(t, "dev", info.Version)
	assert.Equal(t, "1234567890", info.GitCommit)
	assert.Equal(t, "dev-1234567", info.Short())
	assert.True(t, info.BuildTime.IsZero())
}

func TestShortWithoutCommit(t *testing.T) {
	withBuildVars(t, "dev", "unknown", "unknown")

	info := Get()
	assert.Equal(t, "dev", info.Short())
	assert.NotContains(t, info.String(), "Commit:")
}

func TestParseBuildTime(t *testing.T) {
	assert.True(t, parseBuildTime("not a time").IsZero())
	assert.False(t, parseBuildTime("2024-03-01 10:00:00").IsZero())
}
