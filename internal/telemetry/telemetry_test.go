package telemetry

import (
	"context"
	"testing"
)

func TestStartEndDecisionSpan(t *testing.T) {
	ctx, span := StartDecisionSpan(context.Background(), "/repo/a.txt", false)
	if ctx == nil || span == nil {
		t.Fatalf("expected non-nil context and span")
	}
	EndDecisionSpan(span, "full", nil)
}

func TestStartEndReplaySpan(t *testing.T) {
	ctx, span := StartReplaySpan(context.Background(), "sess-1", "leaf-1")
	if ctx == nil || span == nil {
		t.Fatalf("expected non-nil context and span")
	}
	EndReplaySpan(span, 3, nil)
}
