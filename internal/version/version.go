package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Name is the binary name printed in version output.
const Name = "timesync"

var (
	// Version is the semantic version of the build. It can be overridden via ldflags.
	Version = "0.1.0-dev"
	// Commit is the short git SHA embedded at build time (or "none").
	Commit = "none"
	// BuildTime is the UTC build timestamp embedded at build time.
	BuildTime = "unknown"
)

// shortCommitLength is the number of SHA characters kept from the VCS stamp.
const shortCommitLength = 7

// Short returns only the semantic version string.
func Short() string {
	return Version
}

// Full returns a human-readable version string with commit, build time and platform.
func Full() string {
	return fmt.Sprintf("%s %s (commit: %s, built at: %s, %s %s/%s)",
		Name, Version, commit(), BuildTime, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

// commit prefers the injected value and falls back to the embedded VCS revision.
func commit() string {
	if Commit != "none" {
		return Commit
	}

	info, ok := debug.ReadBuildInfo()
	if !ok {
		return Commit
	}

	return revision(info.Settings)
}

// revision extracts the shortened vcs.revision setting, or "none".
func revision(settings []debug.BuildSetting) string {
	for _, s := range settings {
		if s.Key != "vcs.revision" || s.Value == "" {
			continue
		}

		if len(s.Value) > shortCommitLength {
			return s.Value[:shortCommitLength]
		}

		return s.Value
	}

	return "none"
}
