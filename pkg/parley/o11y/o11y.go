// Package o11y holds the metrics and tracing abstractions used throughout
// parley. Implementations live in pkg/parley/otel and in Recorder.
package o11y

import (
	"context"
)

// Config bundles the optional providers handed to components.
type Config struct {
	MetricsProvider MetricsProvider
	TracingProvider TracingProvider
	ServiceName     string
	ServiceVersion  string
}

type MetricsProvider interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
	Gauge(name string) Gauge
}

type TracingProvider interface {
	StartSpan(ctx context.Context, name string) (context.Context, Span)
}

type Counter interface {
	Add(ctx context.Context, value int64, labels ...Label)
}

type Histogram interface {
	Record(ctx context.Context, value float64, labels ...Label)
}

// Gauge holds the latest value set.
type Gauge interface {
	Set(ctx context.Context, value float64, labels ...Label)
}

type Span interface {
	SetAttributes(labels ...Label)
	SetStatus(code SpanStatusCode, description string)
	End()
}

type Label struct {
	Key   string
	Value string
}

type SpanStatusCode int

const (
	SpanStatusUnset SpanStatusCode = iota
	SpanStatusOK
	SpanStatusError
)

// StartSpan starts a span when tp is non-nil. The returned finish function
// records err on the span and ends it; it is always safe to call.
func StartSpan(ctx context.Context, tp TracingProvider, name string, labels ...Label) (context.Context, func(error)) {
	if tp == nil {
		return ctx, func(error) {}
	}

	ctx, span := tp.StartSpan(ctx, name)
	span.SetAttributes(labels...)

	return ctx, func(err error) {
		if err != nil {
			span.SetStatus(SpanStatusError, err.Error())
		} else {
			span.SetStatus(SpanStatusOK, "")
		}
		span.End()
	}
}
