// Package version reports what build is running and keeps it current.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Set via -ldflags by the release build. Go-installed binaries fall back to the
// VCS stamp the toolchain embeds.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// BuildInfo describes the running binary.
type BuildInfo struct {
	Version   string
	Commit    string
	Date      string
	Dirty     bool
	GoVersion string
	Platform  string
}

// GetBuildInfo merges the ldflags values with the embedded VCS settings.
func GetBuildInfo() BuildInfo {
	info := BuildInfo{
		Version:   Version,
		Commit:    Commit,
		Date:      Date,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		info = withVCS(info, bi.Settings)
	}
	return info
}

func withVCS(info BuildInfo, settings []debug.BuildSetting) BuildInfo {
	for _, s := range settings {
		switch s.Key {
		case "vcs.revision":
			if info.Commit == "unknown" && len(s.Value) >= 7 {
				info.Commit = s.Value[:7]
			}
		case "vcs.time":
			if info.Date == "unknown" {
				info.Date = s.Value
			}
		case "vcs.modified":
			info.Dirty = s.Value == "true"
		}
	}
	return info
}

// GetVersionString is the `planmyday version` line.
func GetVersionString() string {
	return formatVersion(GetBuildInfo())
}

func formatVersion(info BuildInfo) string {
	commit := info.Commit
	if info.Dirty {
		commit += "-dirty"
	}
	if info.Version == "dev" {
		return fmt.Sprintf("planmyday dev (%s) built with %s on %s", commit, info.GoVersion, info.Platform)
	}
	return fmt.Sprintf("planmyday %s (%s) built on %s with %s for %s",
		info.Version, commit, info.Date, info.GoVersion, info.Platform)
}

func GetShortVersion() string {
	return Version
}

// UserAgent is sent with every task API request.
func UserAgent() string {
	return fmt.Sprintf("planmyday-cli/%s (%s/%s)", Version, runtime.GOOS, runtime.GOARCH)
}
