// Package version reports build information set with -ldflags, e.g.
//
//	go build -ldflags "-X github.com/chriscow/ambient-agents-go/pkg/version.Version=v0.3.0"
package version

import (
	"fmt"
	"runtime"
)

var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// Info is the build information served at /version.
type Info struct {
	Version   string `json:"version"`
	GitCommit string `json:"commit"`
	BuildTime string `json:"built"`
	GoVersion string `json:"go"`
}

// Get returns the current build information.
func Get() Info {
	return Info{
		Version:   Version,
		GitCommit: GitCommit,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
	}
}

func (i Info) String() string {
	return fmt.Sprintf("ambient version %s (commit: %s, built: %s, go: %s)",
		i.Version, i.GitCommit, i.BuildTime, i.GoVersion)
}

// GetVersionInfo returns the one-line version banner.
func GetVersionInfo() string {
	return Get().String()
}

// UserAgent identifies the agent to servers it connects to.
func UserAgent() string {
	return "ambient/" + Version
}
