// Package version holds build metadata set through -ldflags.
package version

import (
	"fmt"
	"runtime"
)

// Name is the program name reported to servers and on the command line.
const Name = "voicechat"

var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// GetVersionInfo returns the one-line banner printed by `voicechat version`.
func GetVersionInfo() string {
	return fmt.Sprintf("%s version %s (commit: %s, built: %s, go: %s)",
		Name, Version, GitCommit, BuildTime, runtime.Version())
}

// UserAgent is sent with outgoing HTTP requests.
func UserAgent() string {
	return Name + "/" + Version
}
