// Package telemetry provides the read-cache's span-pairing helpers,
// built directly on go.opentelemetry.io/otel rather than a private
// wrapper: callers get a context carrying the new span and a matching
// End function, the same start/end pairing shape the rest of this
// codebase's tracing follows.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/Gurpartap/pi-readcache"

// Tracer returns the package-wide tracer instance.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// StartDecisionSpan starts a span for one decision.Decide call.
func StartDecisionSpan(ctx context.Context, pathKey string, bypass bool) (context.Context, trace.Span) {
	ctx, span := Tracer().Start(ctx, "readcache.decide")
	span.SetAttributes(
		attribute.String("readcache.path_key", pathKey),
		attribute.Bool("readcache.bypass", bypass),
	)
	return ctx, span
}

// EndDecisionSpan ends a decision span, recording the chosen mode and
// any error.
func EndDecisionSpan(span trace.Span, mode string, err error) {
	if mode != "" {
		span.SetAttributes(attribute.String("readcache.mode", mode))
	}
	if err != nil {
		span.RecordError(err)
	}
	span.End()
}

// StartReplaySpan starts a span for one replay.Engine.Knowledge call.
func StartReplaySpan(ctx context.Context, sessionID, leafID string) (context.Context, trace.Span) {
	ctx, span := Tracer().Start(ctx, "readcache.replay")
	span.SetAttributes(
		attribute.String("readcache.session_id", sessionID),
		attribute.String("readcache.leaf_id", leafID),
	)
	return ctx, span
}

// EndReplaySpan ends a replay span, recording how many entries were
// walked.
func EndReplaySpan(span trace.Span, entriesWalked int, err error) {
	span.SetAttributes(attribute.Int("readcache.entries_walked", entriesWalked))
	if err != nil {
		span.RecordError(err)
	}
	span.End()
}
