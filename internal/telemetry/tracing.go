package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// tracer is the single otel.Tracer kbcoord's domain packages start spans
// from. cmd/kbcoordd installs no exporter, so the default global
// TracerProvider stays a no-op and StartOperation is safe to call
// unconditionally without a nil check.
var tracer = otel.Tracer("github.com/glenn-edgar/kbcoord/internal/kb")

// StartOperation opens a span named "<module>.<operation>" with a path
// attribute. job Push/Claim/Complete, stream Push, status Set, rpcserver
// Push/Complete and rpcclient PushReply open one; the other kb.* methods
// do not. Callers defer the returned func, which ends the span.
func StartOperation(ctx context.Context, module, operation, path string) (context.Context, func()) {
	ctx, span := tracer.Start(ctx, module+"."+operation, trace.WithAttributes(
		attribute.String("kb.module", module),
		attribute.String("kb.operation", operation),
		attribute.String("kb.path", path),
	))
	return ctx, func() { span.End() }
}

// RecordError attaches err to the active span, if any, and marks it
// failed. A nil err is a no-op so call sites can defer unconditionally.
func RecordError(ctx context.Context, err error) {
	if err == nil {
		return
	}
	span := trace.SpanFromContext(ctx)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
