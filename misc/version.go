// Package misc keeps build time information about the program.
package misc

import (
	"runtime/debug"
	"sync"
)

const appName = "mkd"

// Set by the linker: -X mkd/misc.version=... -X mkd/misc.gitHash=...
var (
	version = ""
	gitHash = ""
)

var readBuildInfo = sync.OnceValue(func() *debug.BuildInfo {
	bi, _ := debug.ReadBuildInfo()
	return bi
})

// GetAppName returns program name used for logs, temporary files and reports.
func GetAppName() string {
	return appName
}

// GetVersion returns program version.
func GetVersion() string {
	if len(version) > 0 {
		return version
	}
	if bi := readBuildInfo(); bi != nil && len(bi.Main.Version) > 0 && bi.Main.Version != "(devel)" {
		return bi.Main.Version
	}
	return "development"
}

// GetGitHash returns git hash program was built from if known.
func GetGitHash() string {
	if len(gitHash) > 0 {
		return gitHash
	}
	if bi := readBuildInfo(); bi != nil {
		for _, s := range bi.Settings {
			if s.Key == "vcs.revision" {
				return s.Value
			}
		}
	}
	return "unknown"
}
