package sysinfo

import (
	"context"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v4/host"

	"exhibit/logger"
	"exhibit/version"
)

// Snapshot describes the examiner system that produced an analysis. It is
// embedded in evidence reports so a verdict can be traced to the environment
// that generated it.
type Snapshot struct {
	Hostname        string `json:"hostname"`
	OS              string `json:"os"`
	Platform        string `json:"platform"`
	PlatformVersion string `json:"platform_version"`
	KernelVersion   string `json:"kernel_version"`
	Architecture    string `json:"architecture"`
	GoVersion       string `json:"go_version"`
	ToolVersion     string `json:"tool_version"`
	CollectedAt     string `json:"collected_at"`
}

// Collect gathers host details. Lookup failures degrade to empty fields so a
// report is never blocked on host introspection.
func Collect(ctx context.Context) Snapshot {
	snap := Snapshot{
		OS:           runtime.GOOS,
		Architecture: runtime.GOARCH,
		GoVersion:    runtime.Version(),
		ToolVersion:  version.Version,
		CollectedAt:  time.Now().UTC().Format(time.RFC3339),
	}

	info, err := host.InfoWithContext(ctx)
	if err != nil {
		logger.Debugf("host introspection failed: %v", err)
		return snap
	}
	snap.Hostname = info.Hostname
	snap.Platform = info.Platform
	snap.PlatformVersion = info.PlatformVersion
	snap.KernelVersion = info.KernelVersion
	return snap
}
