package version

import (
	"fmt"
	"runtime"
	"strings"
)

// Build-time variables injected via ldflags:
//
//	-X clawlink/internal/version.Version=1.0.0 -X clawlink/internal/version.GitCommit=$(git rev-parse HEAD)
var (
	Version   = "dev"
	GitCommit = "unknown"
	GitTag    = ""
	BuildDate = "unknown"
	GitDirty  = ""

	GoVersion = runtime.Version()
)

// Info returns the release name: the git tag when set, otherwise Version
func Info() string {
	v := Version
	if GitTag != "" && GitTag != "unknown" {
		v = GitTag
	}
	if GitDirty == "true" && !strings.HasSuffix(v, "-dirty") {
		v += "-dirty"
	}
	return v
}

// Full returns Info with the short commit appended
func Full() string {
	info := Info()
	commit := shortCommit()
	if commit != "" && !strings.Contains(info, commit) {
		info += fmt.Sprintf(" (%s)", commit)
	}
	return info
}

func shortCommit() string {
	if GitCommit == "" || GitCommit == "unknown" {
		return ""
	}
	if len(GitCommit) > 7 {
		return GitCommit[:7]
	}
	return GitCommit
}

// BuildInfo is the structured form printed by `clawlink version --json`
type BuildInfo struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	GitDirty  bool   `json:"git_dirty"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// GetBuildInfo returns structured build information
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Info(),
		GitCommit: GitCommit,
		GitDirty:  GitDirty == "true",
		BuildDate: BuildDate,
		GoVersion: GoVersion,
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// UserAgent is sent as the User-Agent header of the gateway handshake
func UserAgent() string {
	return fmt.Sprintf("clawlink/%s (%s/%s)", Info(), runtime.GOOS, runtime.GOARCH)
}
