package forge

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracingMiddleware opens one child span per operation invocation on the
// supplied tracer. When the tracer is a no-op (tracing disabled) this
// adds negligible overhead.
type TracingMiddleware struct {
	tracer trace.Tracer
}

// NewTracingMiddleware builds a TracingMiddleware around tracer.
func NewTracingMiddleware(tracer trace.Tracer) *TracingMiddleware {
	return &TracingMiddleware{tracer: tracer}
}

func (m *TracingMiddleware) Execute(ctx context.Context, op Operation, f *Foundry, input any, next Next) (any, error) {
	idx, _ := f.Properties().Get(PropCurrentOpIndex)

	ctx, span := m.tracer.Start(ctx, "operation."+op.Name(), trace.WithAttributes(
		attribute.String("execution.id", f.ExecutionID().String()),
		attribute.String("operation.name", op.Name()),
		attribute.Int("operation.index", toInt(idx)),
	))
	defer span.End()

	output, err := next(ctx, input)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return output, err
	}
	span.SetStatus(codes.Ok, "")
	return output, nil
}

func toInt(v any) int {
	i, _ := v.(int)
	return i
}
