// Package version carries the build metadata injected with -ldflags.
package version

import (
	"fmt"
	"runtime"
	"time"
)

var (
	// Version is the semantic version, injected at build time via -ldflags
	Version = "dev"
	// GitCommit is the git commit hash, injected at build time
	GitCommit = "unknown"
	// BuildDate is the build timestamp in RFC3339, injected at build time
	BuildDate = "unknown"
)

// BuildInfo is served by GET /api/version and printed by the version command.
type BuildInfo struct {
	Version   string    `json:"version"`
	GitCommit string    `json:"gitCommit"`
	BuildDate string    `json:"buildDate"`
	GoVersion string    `json:"goVersion"`
	Platform  string    `json:"platform"`
	BuildTime time.Time `json:"buildTime,omitempty"`
}

func GetBuildInfo() BuildInfo {
	info := BuildInfo{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
	if t, err := time.Parse(time.RFC3339, BuildDate); err == nil {
		info.BuildTime = t
	}
	return info
}

// UserAgent identifies leadform towards the data, mail and notification APIs.
func UserAgent() string {
	return fmt.Sprintf("leadform/%s (%s)", Version, runtime.GOOS)
}
