// internal/common/observability/observability.go
package observability

import (
	"context"
	"errors"
	"time"

	"tax-matching-workers/internal/common/logger"

	promclient "github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Observability owns the process-wide OpenTelemetry meter and tracer
// providers. Metrics are exported through the Prometheus registry served on
// /metrics; finished spans are written to the logger.
type Observability struct {
	serviceName    string
	meterProvider  *metric.MeterProvider
	tracerProvider *sdktrace.TracerProvider
	meter          otelmetric.Meter
	jobCounter     otelmetric.Int64Counter
	jobDuration    otelmetric.Float64Histogram
	logger         logger.Logger
}

type options struct {
	registerer     promclient.Registerer
	tracingEnabled bool
	processors     []sdktrace.SpanProcessor
}

type Option func(*options)

// WithRegisterer exports metrics into reg instead of the default registry.
func WithRegisterer(reg promclient.Registerer) Option {
	return func(o *options) { o.registerer = reg }
}

// WithTracing samples every span and logs it when it ends.
func WithTracing(enabled bool) Option {
	return func(o *options) { o.tracingEnabled = enabled }
}

// WithSpanProcessor adds a span processor and turns sampling on.
func WithSpanProcessor(sp sdktrace.SpanProcessor) Option {
	return func(o *options) {
		o.tracingEnabled = true
		o.processors = append(o.processors, sp)
	}
}

// New installs the global meter and tracer providers. A failing Prometheus
// exporter is logged and leaves job metrics disabled; tracing still works.
func New(serviceName string, log logger.Logger, opts ...Option) *Observability {
	o := &options{registerer: promclient.DefaultRegisterer}
	for _, opt := range opts {
		opt(o)
	}

	obs := &Observability{
		serviceName: serviceName,
		logger:      log.Named("observability"),
	}

	res := resource.NewSchemaless(attribute.String("service.name", serviceName))
	obs.tracerProvider = newTracerProvider(res, obs.logger, o)
	otel.SetTracerProvider(obs.tracerProvider)

	exporter, err := prometheus.New(prometheus.WithRegisterer(o.registerer))
	if err != nil {
		obs.logger.Warn("failed to create Prometheus exporter", map[string]interface{}{
			"error": err,
		})
		return obs
	}

	obs.meterProvider = metric.NewMeterProvider(
		metric.WithReader(exporter),
		metric.WithResource(res),
	)
	otel.SetMeterProvider(obs.meterProvider)
	obs.meter = obs.meterProvider.Meter(serviceName)

	obs.jobCounter, _ = obs.meter.Int64Counter(
		"matching_jobs_processed",
		otelmetric.WithDescription("Number of matching jobs processed"),
	)
	obs.jobDuration, _ = obs.meter.Float64Histogram(
		"matching_job_duration",
		otelmetric.WithDescription("Matching job processing duration"),
		otelmetric.WithUnit("ms"),
	)

	return obs
}

func newTracerProvider(res *resource.Resource, log logger.Logger, o *options) *sdktrace.TracerProvider {
	tpOpts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	if !o.tracingEnabled {
		tpOpts = append(tpOpts, sdktrace.WithSampler(sdktrace.NeverSample()))
		return sdktrace.NewTracerProvider(tpOpts...)
	}

	tpOpts = append(tpOpts, sdktrace.WithSampler(sdktrace.AlwaysSample()))
	if len(o.processors) == 0 {
		tpOpts = append(tpOpts, sdktrace.WithBatcher(&logExporter{logger: log}))
	}
	for _, sp := range o.processors {
		tpOpts = append(tpOpts, sdktrace.WithSpanProcessor(sp))
	}
	return sdktrace.NewTracerProvider(tpOpts...)
}

func (o *Observability) Tracer(name string) trace.Tracer {
	return o.tracerProvider.Tracer(name)
}

// StartSpan starts a span on the service tracer.
func (o *Observability) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return o.Tracer(o.serviceName).Start(ctx, name, trace.WithAttributes(attrs...))
}

func (o *Observability) RecordJobProcessed(ctx context.Context, taskType, status string) {
	if o.jobCounter != nil {
		o.jobCounter.Add(ctx, 1, otelmetric.WithAttributes(
			attribute.String("task_type", taskType),
			attribute.String("status", status),
		))
	}
}

func (o *Observability) RecordJobDuration(ctx context.Context, taskType string, duration time.Duration, status string) {
	if o.jobDuration != nil {
		o.jobDuration.Record(ctx, float64(duration.Milliseconds()), otelmetric.WithAttributes(
			attribute.String("task_type", taskType),
			attribute.String("status", status),
		))
	}
}

// TrackJob opens a job span and returns a func that ends it and records the
// job counter and duration. A nil receiver tracks nothing.
func (o *Observability) TrackJob(ctx context.Context, taskType string, jobKey int64) (context.Context, func(error)) {
	if o == nil {
		return ctx, func(error) {}
	}

	start := time.Now()
	ctx, span := o.StartSpan(ctx, "job.handle",
		attribute.String("job.task_type", taskType),
		attribute.Int64("job.key", jobKey),
	)

	return ctx, func(err error) {
		status := "success"
		if err != nil {
			status = "failed"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		o.RecordJobProcessed(ctx, taskType, status)
		o.RecordJobDuration(ctx, taskType, time.Since(start), status)
	}
}

// Shutdown flushes pending spans and stops both providers.
func (o *Observability) Shutdown(ctx context.Context) error {
	var errs []error
	if o.tracerProvider != nil {
		errs = append(errs, o.tracerProvider.Shutdown(ctx))
	}
	if o.meterProvider != nil {
		errs = append(errs, o.meterProvider.Shutdown(ctx))
	}
	return errors.Join(errs...)
}
