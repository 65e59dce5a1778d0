// Package version reports build metadata for the autoreload binary.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
	"time"
)

// Info describes the running binary.
type Info struct {
	Version   string    `json:"version"`
	GitCommit string    `json:"git_commit"`
	BuildTime time.Time `json:"build_time,omitempty"`
	GoVersion string    `json:"go_version"`
	Platform  string    `json:"platform"`
}

// Set at build time with -ldflags "-X".
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// readBuildInfo is swapped out in tests.
var readBuildInfo = debug.ReadBuildInfo

// Get returns the build information of the running binary.
func Get() Info {
	return Info{
		Version:   version(),
		GitCommit: commit(),
		BuildTime: parseBuildTime(BuildTime),
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

func version() string {
	if Version != "" && Version != "dev" {
		return Version
	}
	if info, ok := readBuildInfo(); ok {
		if v := info.Main.Version; v != "" && v != "(devel)" {
			return v
		}
	}
	return "dev"
}

func commit() string {
	if GitCommit != "" && GitCommit != "unknown" {
		return GitCommit
	}
	if info, ok := readBuildInfo(); ok {
		for _, setting := range info.Settings {
			if setting.Key == "vcs.revision" {
				return setting.Value
			}
		}
	}
	return "unknown"
}

// Short returns a one-line version such as "v1.2.0 (abc1234)" or
// "dev-abc1234".
func (i Info) Short() string {
	if i.GitCommit == "unknown" || len(i.GitCommit) < 7 {
		return i.Version
	}
	short := i.GitCommit[:7]
	if i.Version == "dev" {
		return "dev-" + short
	}
	return fmt.Sprintf("%s (%s)", i.Version, short)
}

// String returns the multi-line form printed by the version command.
func (i Info) String() string {
	parts := []string{"Version: " + i.Version}
	if i.GitCommit != "unknown" {
		parts = append(parts, "Commit: "+i.GitCommit)
	}
	if !i.BuildTime.IsZero() {
		parts = append(parts, "Built: "+i.BuildTime.Format(time.RFC3339))
	}
	parts = append(parts, "Go: "+i.GoVersion, "Platform: "+i.Platform)
	return strings.Join(parts, "\n")
}

// parseBuildTime accepts RFC3339 and a couple of looser layouts; anything
// else yields the zero time.
func parseBuildTime(value string) time.Time {
	if value == "" || value == "unknown" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	return time.Time{}
}
