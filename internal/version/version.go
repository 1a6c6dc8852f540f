// Package version holds the build information of reelarr.
//
// Values are set with ldflags at build time:
//
//	go build -ldflags "-X github.com/jmylchreest/reelarr/internal/version.Version=1.2.0 \
//	                   -X github.com/jmylchreest/reelarr/internal/version.Commit=$(git rev-parse HEAD) \
//	                   -X github.com/jmylchreest/reelarr/internal/version.Date=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
package version

import (
	"fmt"
	"runtime"
)

// ApplicationName is the canonical name of this application.
const ApplicationName = "reelarr"

var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// Info is the build information reported by `reelarr version --json` and
// the health endpoint.
type Info struct {
	Version   string `json:"version" yaml:"version"`
	Commit    string `json:"commit" yaml:"commit"`
	Date      string `json:"date" yaml:"date"`
	GoVersion string `json:"go_version" yaml:"go_version"`
	Platform  string `json:"platform" yaml:"platform"`
}

// GetInfo returns the build information.
func GetInfo() Info {
	return Info{
		Version:   Version,
		Commit:    Commit,
		Date:      Date,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

func shortCommit() string {
	if len(Commit) >= 8 && Commit != "unknown" {
		return Commit[:8]
	}
	return ""
}

// String returns the long version line.
func String() string {
	info := GetInfo()
	if c := shortCommit(); c != "" {
		return fmt.Sprintf("%s version %s (commit: %s, built: %s, %s, %s)",
			ApplicationName, info.Version, c, info.Date, info.GoVersion, info.Platform)
	}
	return fmt.Sprintf("%s version %s (%s, %s)", ApplicationName, info.Version, info.GoVersion, info.Platform)
}

// Short returns "reelarr <version>" with the short commit when known.
func Short() string {
	if c := shortCommit(); c != "" {
		return fmt.Sprintf("%s %s (%s)", ApplicationName, Version, c)
	}
	return ApplicationName + " " + Version
}

// UserAgent is sent by the bridge source.
func UserAgent() string {
	return ApplicationName + "/" + Version
}
