package contracts

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"
)

const (
	// Version is the current release of tabviz
	Version = "0.1.0"

	// DataFormatVersion tags cleaning logs and history records
	DataFormatVersion = "v1"

	// APIVersion tags the HTTP API and websocket messages
	APIVersion = "v1"
)

// Set with -ldflags "-X tabviz/pkg/contracts.GitCommit=..." by release
// builds. When left empty they are read from the VCS stamp the Go toolchain
// embeds.
var (
	BuildTime = ""
	GitCommit = ""
)

// VersionInfo describes the running binary
type VersionInfo struct {
	Version      string `json:"version"`
	BuildTime    string `json:"build_time"`
	GitCommit    string `json:"git_commit"`
	Modified     bool   `json:"modified,omitempty"`
	GoVersion    string `json:"go_version"`
	OS           string `json:"os"`
	Architecture string `json:"architecture"`
	DataFormat   string `json:"data_format"`
	APIVersion   string `json:"api_version"`
}

var buildInfo = sync.OnceValue(func() VersionInfo {
	info := VersionInfo{
		Version:      Version,
		BuildTime:    BuildTime,
		GitCommit:    GitCommit,
		GoVersion:    runtime.Version(),
		OS:           runtime.GOOS,
		Architecture: runtime.GOARCH,
		DataFormat:   DataFormatVersion,
		APIVersion:   APIVersion,
	}

	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, s := range bi.Settings {
			switch s.Key {
			case "vcs.revision":
				if info.GitCommit == "" {
					info.GitCommit = s.Value
				}
			case "vcs.time":
				if info.BuildTime == "" {
					info.BuildTime = s.Value
				}
			case "vcs.modified":
				info.Modified = s.Value == "true"
			}
		}
	}

	if info.GitCommit == "" {
		info.GitCommit = "unknown"
	}
	if info.BuildTime == "" {
		info.BuildTime = "unknown"
	}
	if len(info.GitCommit) > 12 {
		info.GitCommit = info.GitCommit[:12]
	}
	return info
})

// GetVersionInfo returns the version of the running binary
func GetVersionInfo() VersionInfo {
	return buildInfo()
}

// VersionString is the one-line form printed by `tabviz --version`
func VersionString() string {
	info := buildInfo()
	commit := info.GitCommit
	if info.Modified {
		commit += "-dirty"
	}
	return fmt.Sprintf("%s (commit %s, built %s, %s %s/%s)",
		info.Version, commit, info.BuildTime, info.GoVersion, info.OS, info.Architecture)
}
