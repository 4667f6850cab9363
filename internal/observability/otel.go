package observability

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"superjoin/internal/logging"
)

// Config holds OpenTelemetry configuration
type Config struct {
	ServiceName    string
	ServiceVersion string
}

// Providers owns the SDK meter and tracer providers installed as globals.
// Metrics are held in a manual reader and reported through the logger;
// ended spans are logged at debug level.
type Providers struct {
	meter  *sdkmetric.MeterProvider
	reader *sdkmetric.ManualReader
	tracer *sdktrace.TracerProvider
	logger *logging.Logger

	prevMeter  metric.MeterProvider
	prevTracer trace.TracerProvider
}

// InitProviders installs SDK providers as the global otel providers.
// Shutdown restores the previous globals.
func InitProviders(cfg Config, logger *logging.Logger) (*Providers, error) {
	// Create resource with service information (without schema URL to avoid conflicts)
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			"",
			attribute.String("service.name", cfg.ServiceName),
			attribute.String("service.version", cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	reader := sdkmetric.NewManualReader()
	meter := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
	)
	tracer := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithSpanProcessor(logSpanProcessor{logger: logger}),
	)

	p := &Providers{
		meter:      meter,
		reader:     reader,
		tracer:     tracer,
		logger:     logger,
		prevMeter:  otel.GetMeterProvider(),
		prevTracer: otel.GetTracerProvider(),
	}
	otel.SetMeterProvider(meter)
	otel.SetTracerProvider(tracer)
	return p, nil
}

// ReportMetrics collects the current metric values and logs one line per
// data point.
func (p *Providers) ReportMetrics(ctx context.Context) error {
	var rm metricdata.ResourceMetrics
	if err := p.reader.Collect(ctx, &rm); err != nil {
		return fmt.Errorf("failed to collect metrics: %w", err)
	}
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			for _, line := range summarize(m) {
				p.logger.Info("metric", append([]any{slog.String("name", m.Name)}, line...)...)
			}
		}
	}
	return nil
}

// Shutdown flushes and stops both providers and restores the previous globals.
func (p *Providers) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var firstErr error
	if err := p.tracer.Shutdown(shutdownCtx); err != nil {
		p.logger.Error("failed to shutdown tracer provider", slog.String("error", err.Error()))
		firstErr = err
	}
	if err := p.meter.Shutdown(shutdownCtx); err != nil {
		p.logger.Error("failed to shutdown meter provider", slog.String("error", err.Error()))
		if firstErr == nil {
			firstErr = err
		}
	}
	otel.SetMeterProvider(p.prevMeter)
	otel.SetTracerProvider(p.prevTracer)
	return firstErr
}

// summarize turns each data point into slog attributes.
func summarize(m metricdata.Metrics) [][]any {
	var lines [][]any
	switch data := m.Data.(type) {
	case metricdata.Sum[int64]:
		for _, point := range data.DataPoints {
			lines = append(lines, append(attrsOf(point.Attributes), slog.Int64("value", point.Value)))
		}
	case metricdata.Histogram[int64]:
		for _, point := range data.DataPoints {
			lines = append(lines, append(attrsOf(point.Attributes),
				slog.Uint64("count", point.Count),
				slog.Int64("sum", point.Sum),
			))
		}
	case metricdata.Histogram[float64]:
		for _, point := range data.DataPoints {
			lines = append(lines, append(attrsOf(point.Attributes),
				slog.Uint64("count", point.Count),
				slog.Float64("sum", point.Sum),
			))
		}
	}
	return lines
}

func attrsOf(set attribute.Set) []any {
	kvs := set.ToSlice()
	sort.Slice(kvs, func(i, j int) bool { return kvs[i].Key < kvs[j].Key })
	out := make([]any, 0, len(kvs))
	for _, kv := range kvs {
		out = append(out, slog.String(string(kv.Key), kv.Value.Emit()))
	}
	return out
}

type logSpanProcessor struct {
	logger *logging.Logger
}

func (p logSpanProcessor) OnStart(context.Context, sdktrace.ReadWriteSpan) {}

func (p logSpanProcessor) OnEnd(span sdktrace.ReadOnlySpan) {
	attrs := []any{
		slog.String("span", span.Name()),
		slog.Duration("elapsed", span.EndTime().Sub(span.StartTime())),
		slog.String("status", span.Status().Code.String()),
	}
	for _, kv := range span.Attributes() {
		attrs = append(attrs, slog.String(string(kv.Key), kv.Value.Emit()))
	}
	p.logger.Debug("span ended", attrs...)
}

func (p logSpanProcessor) Shutdown(context.Context) error   { return nil }
func (p logSpanProcessor) ForceFlush(context.Context) error { return nil }
