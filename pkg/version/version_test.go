package version

import (
	"runtime"
	"strings"
	"testing"

	"github.com/matryer/is"
)

func TestGetVersionInfo(t *testing.T) {
	is := is.New(t)

	info := GetVersionInfo()

	is.True(strings.HasPrefix(info, "voicechat version dev")) // default version
	is.True(strings.Contains(info, "commit: unknown"))
	is.True(strings.Contains(info, runtime.Version()))
}

func TestGetVersionInfoWithCustomValues(t *testing.T) {
	is := is.New(t)

	originalVersion, originalCommit, originalBuildTime := Version, GitCommit, BuildTime
	t.Cleanup(func() {
		Version, GitCommit, BuildTime = originalVersion, originalCommit, originalBuildTime
	})

	Version = "v1.0.0"
	GitCommit = "abc123"
	BuildTime = "2024-01-01T00:00:00Z"

	info := GetVersionInfo()
	is.True(strings.Contains(info, "v1.0.0"))
	is.True(strings.Contains(info, "abc123"))
	is.True(strings.Contains(info, "2024-01-01T00:00:00Z"))
	is.Equal(UserAgent(), "voicechat/v1.0.0")
}
