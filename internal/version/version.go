package version

import (
	"fmt"
	"runtime"
	"time"
)

// Set at build time via -ldflags "-X .../internal/version.Version=..."
var (
	Version   = "dev"
	BuildTime = "unknown"
	CommitID  = "unknown"
)

const displayTimeLayout = "Mon Jan 2 15:04:05 2006"

func displayBuildTime() string {
	t, err := time.Parse(time.RFC3339, BuildTime)
	if err != nil {
		return BuildTime
	}
	return t.Format(displayTimeLayout)
}

// Short is the one-line form printed by `slopify --version`.
func Short() string {
	commit := CommitID
	if len(commit) > 7 {
		commit = commit[:7]
	}
	return fmt.Sprintf("Slopify version %s, build %s", Version, commit)
}

// ClientInfo returns the build details shown by `slopify version`.
func ClientInfo() map[string]string {
	return map[string]string{
		"Version":       Version,
		"GoVersion":     runtime.Version(),
		"GitCommit":     CommitID,
		"BuildTime":     BuildTime,
		"FormattedTime": displayBuildTime(),
		"OS":            runtime.GOOS,
		"Arch":          runtime.GOARCH,
	}
}
