package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// CompileMetrics holds the instruments recorded for each compilation.
type CompileMetrics struct {
	duration     metric.Float64Histogram
	compileCount metric.Int64Counter
	errorCount   metric.Int64Counter
	joinCount    metric.Int64Histogram
}

// InitCompileMetrics creates the compile instruments on the global meter provider.
func InitCompileMetrics() (*CompileMetrics, error) {
	meter := otel.Meter(instrumentationName)

	duration, err := meter.Float64Histogram(
		"superjoin.compile.duration",
		metric.WithDescription("Duration of GraphQL to SQL compilation in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create compile duration histogram: %w", err)
	}

	compileCount, err := meter.Int64Counter(
		"superjoin.compile.total",
		metric.WithDescription("Total number of compilations"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create compile counter: %w", err)
	}

	errorCount, err := meter.Int64Counter(
		"superjoin.compile.errors",
		metric.WithDescription("Total number of failed compilations by error kind"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create compile error counter: %w", err)
	}

	joinCount, err := meter.Int64Histogram(
		"superjoin.compile.joins",
		metric.WithDescription("Number of flattened joins per compiled statement"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create join count histogram: %w", err)
	}

	return &CompileMetrics{
		duration:     duration,
		compileCount: compileCount,
		errorCount:   errorCount,
		joinCount:    joinCount,
	}, nil
}

// RecordCompile records one compilation. errorKind is empty on success.
// A nil receiver records nothing.
func (m *CompileMetrics) RecordCompile(ctx context.Context, dialect string, elapsed time.Duration, joins int, errorKind string) {
	if m == nil {
		return
	}
	outcome := "success"
	if errorKind != "" {
		outcome = "error"
	}
	attrs := metric.WithAttributes(
		attribute.String("dialect", dialect),
		attribute.String("outcome", outcome),
	)
	m.duration.Record(ctx, float64(elapsed.Microseconds())/1000.0, attrs)
	m.compileCount.Add(ctx, 1, attrs)
	if errorKind != "" {
		m.errorCount.Add(ctx, 1, metric.WithAttributes(
			attribute.String("dialect", dialect),
			attribute.String("kind", errorKind),
		))
		return
	}
	m.joinCount.Record(ctx, int64(joins), metric.WithAttributes(attribute.String("dialect", dialect)))
}
