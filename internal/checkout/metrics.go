package checkout

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics is safe to use as a nil pointer; recording is then a no-op.
type Metrics struct {
	attempts      metric.Int64Counter
	compensations metric.Int64Counter
	duration      metric.Float64Histogram
}

func NewMetrics(meter metric.Meter) (*Metrics, error) {
	attempts, err := meter.Int64Counter("checkout.attempts",
		metric.WithDescription("Checkout attempts by outcome"))
	if err != nil {
		return nil, err
	}

	compensations, err := meter.Int64Counter("checkout.compensations",
		metric.WithDescription("Stock re-increments after a failed checkout, by result"))
	if err != nil {
		return nil, err
	}

	duration, err := meter.Float64Histogram("checkout.duration",
		metric.WithDescription("Checkout duration"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	return &Metrics{
		attempts:      attempts,
		compensations: compensations,
		duration:      duration,
	}, nil
}

func (m *Metrics) recordAttempt(ctx context.Context, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	m.attempts.Add(ctx, 1, attrs)
	m.duration.Record(ctx, elapsed.Seconds(), attrs)
}

func (m *Metrics) recordCompensation(ctx context.Context, result string) {
	if m == nil {
		return
	}
	m.compensations.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}
