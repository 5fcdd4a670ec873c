// internal/common/observability/log_exporter.go
package observability

import (
	"context"

	"tax-matching-workers/internal/common/logger"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// logExporter writes finished spans to the structured logger at debug level.
type logExporter struct {
	logger logger.Logger
}

func (e *logExporter) ExportSpans(_ context.Context, spans []sdktrace.ReadOnlySpan) error {
	for _, span := range spans {
		fields := map[string]interface{}{
			"span":       span.Name(),
			"traceId":    span.SpanContext().TraceID().String(),
			"spanId":     span.SpanContext().SpanID().String(),
			"durationMs": span.EndTime().Sub(span.StartTime()).Milliseconds(),
			"status":     span.Status().Code.String(),
		}
		for _, attr := range span.Attributes() {
			fields[string(attr.Key)] = attr.Value.AsInterface()
		}
		e.logger.Debug("span finished", fields)
	}
	return nil
}

func (e *logExporter) Shutdown(context.Context) error {
	return nil
}
