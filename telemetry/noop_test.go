package telemetry_test

import (
	"context"
	"errors"
	"testing"

	"github.com/flowkit/agentflow/telemetry"
)

func TestNoopImplementationsDoNotPanic(t *testing.T) {
	ctx := context.Background()
	logger := telemetry.NewNoopLogger()
	logger.Debug(ctx, "msg", "k", "v")
	logger.Info(ctx, "msg")
	logger.Warn(ctx, "msg")
	logger.Error(ctx, "msg", "err", errors.New("boom"))

	metrics := telemetry.NewNoopMetrics()
	metrics.IncCounter("c", 1)
	metrics.RecordGauge("g", 1.5)

	tracer := telemetry.NewNoopTracer()
	newCtx, span := tracer.Start(ctx, telemetry.SpanStepExecute)
	if newCtx != ctx {
		t.Fatalf("noop tracer must not modify the context")
	}
	span.AddEvent("did something")
	span.RecordError(errors.New("boom"))
	span.End()
}
