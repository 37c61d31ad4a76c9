package fn

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

const tracerName = "forge-knowledge/fn"

// Stage transforms In to Out within a context, reporting the outcome as
// a Result so failures short-circuit composition instead of panicking.
type Stage[In, Out any] func(context.Context, In) Result[Out]

// TracedStage wraps a stage in an OpenTelemetry span named after it.
func TracedStage[In, Out any](name string, stage Stage[In, Out]) Stage[In, Out] {
	return func(ctx context.Context, in In) Result[Out] {
		ctx, span := otel.Tracer(tracerName).Start(ctx, name)
		defer span.End()
		result := stage(ctx, in)
		if result.IsErr() {
			_, err := result.Unwrap()
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return result
	}
}
