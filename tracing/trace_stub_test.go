//go:build !trace

package tracing

import (
	"context"
	"testing"
)

func TestStubsAreNoOps(t *testing.T) {
	if err := Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer Stop()

	ctx, end := StartTask(context.Background(), "task")
	if ctx == nil {
		t.Fatal("StartTask returned nil context")
	}
	end()

	endRegion := StartRegion(ctx, "region")
	endRegion()

	Log(ctx, "category", "message")
}
