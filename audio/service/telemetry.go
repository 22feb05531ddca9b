package service

import (
	"context"
	"time"

	apperrors "audio-library/backend/pkg/errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "audio-library/backend/audio/service"

// Instruments created before the meter provider is installed delegate to it
var (
	operationDuration, _ = otel.Meter(instrumentationName).Float64Histogram(
		"audio.operation.duration",
		metric.WithUnit("s"),
		metric.WithDescription("Duration of asset upload and delete operations."),
	)
)

func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(instrumentationName).Start(ctx, name, trace.WithAttributes(attrs...))
}

// endSpan marks server-side failures as errors; client errors only annotate
func endSpan(span trace.Span, err error) {
	if err != nil {
		status := apperrors.GetStatusCode(err)
		span.SetAttributes(attribute.Int("http.status_code", status))
		if status >= 500 {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}
	span.End()
}

func recordDuration(ctx context.Context, operation string, start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	operationDuration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("result", result),
	))
}
