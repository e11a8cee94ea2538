// Package telemetry defines the orchestrator's tracing/log/metrics
// surface. Observability is strictly tracing-based (spec.md §5: "No
// global mutable state is required beyond optional tracing
// subscribers") — callers inject a Logger, Metrics, and Tracer; the core
// never reaches for a package-global sink.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Logger is the structured logging surface the orchestrator writes
// lifecycle messages to.
type Logger interface {
	Debug(ctx context.Context, msg string, keyvals ...any)
	Info(ctx context.Context, msg string, keyvals ...any)
	Warn(ctx context.Context, msg string, keyvals ...any)
	Error(ctx context.Context, msg string, keyvals ...any)
}

// Metrics is the counter/timer/gauge surface for run-level instrumentation
// (step durations, redesign counts, retry counts).
type Metrics interface {
	IncCounter(name string, value float64, tags ...string)
	RecordTimer(name string, duration time.Duration, tags ...string)
	RecordGauge(name string, value float64, tags ...string)
}

// Tracer starts and retrieves spans for the orchestrator's lifecycle
// points: strategy generation, each step dispatch, each remediation
// decision, each loop iteration.
type Tracer interface {
	Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, Span)
	Span(ctx context.Context) Span
}

// Span is the minimal span handle the orchestrator needs: closing it,
// annotating it, and recording failures on it.
type Span interface {
	End(opts ...trace.SpanEndOption)
	AddEvent(name string, attrs ...any)
	SetStatus(code codes.Code, description string)
	RecordError(err error, opts ...trace.EventOption)
}

// Span names for the lifecycle points spec.md §6 requires structured
// span events for.
const (
	SpanStrategyGenerate  = "agentflow.strategy.generate"
	SpanStepExecute       = "agentflow.step.execute"
	SpanIntentGenerate    = "agentflow.intent.generate"
	SpanRemediationDecide = "agentflow.remediation.decide"
	SpanLoopIteration     = "agentflow.loop.iteration"
	SpanContextDetect     = "agentflow.context.detect"
)
