package version

import (
	"fmt"
	"runtime"
	"time"
)

// Set with -ldflags "-X github.com/rtsptool/rtsptool/internal/version.Version=..."
var (
	Version   = "dev"
	BuildTime = "unknown"
	CommitID  = "unknown"
)

// Info is keyed for the version command's table.
func Info() map[string]string {
	built := BuildTime
	if t, err := time.Parse(time.RFC3339, BuildTime); err == nil {
		built = t.Local().Format(time.DateTime)
	}
	return map[string]string{
		"Version":   Version,
		"GitCommit": CommitID,
		"BuildTime": built,
		"GoVersion": runtime.Version(),
		"Platform":  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// UserAgent identifies pulls to RTSP servers.
func UserAgent() string {
	return fmt.Sprintf("rtsptool/%s (%s/%s)", Version, runtime.GOOS, runtime.GOARCH)
}
