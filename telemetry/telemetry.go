// Package telemetry carries the ambient structured-logging, metrics, and
// tracing stack that every core package reports diagnosed conditions
// through. It generalizes the teacher's otpsg companion package (which
// wraps psg-go's Task/Gather/Combiner functions with zap logging and
// otel metrics) from psg-go's job/gather naming to tasklab's
// generate/trace/dispatch naming.
package telemetry

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	oteltrace "go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/tasklab/tasklab"

var (
	mu     sync.RWMutex
	logger = zap.NewNop()
)

// SetLogger replaces the package-level logger used throughout the core.
// Callers that want production logging call this once at startup with
// zap.NewProduction(); tests leave the default no-op logger in place.
func SetLogger(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	logger = l
}

// Logger returns the current package-level logger.
func Logger() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// Tracer returns the tasklab tracing tracer, sourced from whatever
// TracerProvider has been installed via otel.SetTracerProvider.
func Tracer() oteltrace.Tracer {
	return otel.GetTracerProvider().Tracer(instrumentationName)
}

// Meter returns the tasklab metrics meter, sourced from whatever
// MeterProvider has been installed via otel.SetMeterProvider.
func Meter() metric.Meter {
	return otel.GetMeterProvider().Meter(instrumentationName)
}

// RecordGeneration records the wall-clock duration of a single
// gen.Generate call.
func RecordGeneration(ctx context.Context, d time.Duration) {
	hist, err := Meter().Float64Histogram("tasklab.generate.duration")
	if err != nil {
		return
	}
	hist.Record(ctx, d.Seconds())
}

// RecordDispatch records that a dispatch run submitted n tasks and
// observed v scheduler violations.
func RecordDispatch(ctx context.Context, n, v int) {
	tasks, err := Meter().Int64Counter("tasklab.dispatch.tasks")
	if err == nil {
		tasks.Add(ctx, int64(n))
	}
	violations, err := Meter().Int64Counter("tasklab.dispatch.violations")
	if err == nil {
		violations.Add(ctx, int64(v))
	}
}

// StartDispatchSpan starts a tracing span around one dispatch run.
func StartDispatchSpan(ctx context.Context, ntasks int) (context.Context, oteltrace.Span) {
	return Tracer().Start(ctx, "tasklab.dispatch",
		oteltrace.WithAttributes(attribute.Int("tasklab.ntasks", ntasks)),
	)
}
