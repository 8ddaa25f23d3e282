package sysinfo

import (
	"context"
	"runtime"
	"testing"
	"time"
)

func TestCollect(t *testing.T) {
	snap := Collect(context.Background())

	if snap.OS != runtime.GOOS || snap.Architecture != runtime.GOARCH {
		t.Fatalf("runtime fields wrong: %+v", snap)
	}
	if snap.GoVersion == "" || snap.ToolVersion == "" {
		t.Fatalf("version fields empty: %+v", snap)
	}
	if _, err := time.Parse(time.RFC3339, snap.CollectedAt); err != nil {
		t.Fatalf("collected_at %q not RFC3339: %v", snap.CollectedAt, err)
	}
}
