// Package version carries build-time identity for the krusty binary:
// the version/commit/date trio ldflags fills in at build time, with a
// debug.ReadBuildInfo fallback for `go install`-built binaries where
// ldflags were never set.
//
// Grounded on diillson-chatcli/version/version.go's GetBuildInfoImpl;
// the upstream GitHub-release update checker (CheckLatestVersionImpl)
// has no home here — krusty has no release feed to poll, and a shell
// startup path that makes a network call on every invocation is not a
// pattern worth keeping regardless.
package version

import (
	"fmt"
	"os"
	"runtime/debug"
	"strings"
	"time"
)

var (
	// Version, CommitHash and BuildDate are filled in at build time via
	// -ldflags "-X ...".
	Version    = "dev"
	CommitHash = "unknown"
	BuildDate  = "unknown"
)

// VersionInfo is the structured form returned by GetCurrentVersion.
type VersionInfo struct {
	Version    string `json:"version"`
	CommitHash string `json:"commit_hash"`
	BuildDate  string `json:"build_date"`
}

// GetCurrentVersion returns the process's version trio as currently set.
func GetCurrentVersion() VersionInfo {
	return VersionInfo{
		Version:    Version,
		CommitHash: CommitHash,
		BuildDate:  BuildDate,
	}
}

// GetBuildInfoImpl is the injectable implementation behind GetBuildInfo,
// left as a package var so tests can stub it the way the teacher does.
var GetBuildInfoImpl = func() (string, string, string) {
	version := Version
	commitHash := CommitHash
	buildDate := BuildDate

	if version == "dev" || version == "unknown" ||
		commitHash == "unknown" || buildDate == "unknown" {
		if info, ok := debug.ReadBuildInfo(); ok {
			if (version == "dev" || version == "unknown") && info.Main.Version != "" && info.Main.Version != "(devel)" {
				version = strings.TrimPrefix(info.Main.Version, "v")
			}
			if (commitHash == "unknown" || len(commitHash) < 7) && info.Main.Version != "" {
				parts := strings.Split(info.Main.Version, "-")
				if len(parts) >= 3 {
					possibleCommit := parts[len(parts)-1]
					if len(possibleCommit) >= 7 {
						commitHash = possibleCommit
					}
				}
			}
			if buildDate == "unknown" {
				for _, setting := range info.Settings {
					if setting.Key == "vcs.time" {
						if t, err := time.Parse(time.RFC3339, setting.Value); err == nil {
							buildDate = t.Format("2006-01-02 15:04:05")
						} else {
							buildDate = setting.Value
						}
					}
				}
			}
		}
	}
	if buildDate == "unknown" {
		if execPath, err := os.Executable(); err == nil {
			if info, err := os.Stat(execPath); err == nil {
				buildDate = fmt.Sprintf("%s (approximated from binary mtime)", info.ModTime().Format("2006-01-02 15:04:05"))
			}
		}
	}
	return version, commitHash, buildDate
}

// GetBuildInfo returns (version, commitHash, buildDate).
func GetBuildInfo() (string, string, string) {
	return GetBuildInfoImpl()
}

// ExtractBaseVersion strips a leading "v" and any "-"-delimited
// development suffix, e.g. "v1.9.0-5-g1b6ecaa-dirty" -> "1.9.0".
func ExtractBaseVersion(version string) string {
	version = strings.TrimPrefix(version, "v")
	if strings.Contains(version, "-") {
		version = strings.Split(version, "-")[0]
	}
	return version
}
