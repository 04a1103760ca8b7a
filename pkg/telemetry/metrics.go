package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric names for the cross-cutting order/latency counters every exchange
// adapter and engine shares, independent of any single Engine's own
// instruments (see internal/engine/metrics.go for the DCA-specific gauges).
const (
	MetricOrdersPlacedTotal = "dcaengine_orders_placed_total"
	MetricOrdersFilledTotal = "dcaengine_orders_filled_total"
	MetricVolumeTotal       = "dcaengine_volume_total"
	MetricLatencyExchange   = "dcaengine_latency_exchange_ms"
)

// MetricsHolder holds the process-wide instruments initialized once against
// the global meter provider by Setup.
type MetricsHolder struct {
	OrdersPlacedTotal metric.Int64Counter
	OrdersFilledTotal metric.Int64Counter
	VolumeTotal       metric.Float64Counter
	LatencyExchange   metric.Float64Histogram
}

var globalMetrics = &MetricsHolder{}

// GetGlobalMetrics returns the singleton metrics holder. Its instruments are
// nil until InitMetrics has run; each Record method checks its instrument
// for nil so a metrics-less test run never panics.
func GetGlobalMetrics() *MetricsHolder {
	return globalMetrics
}

// InitMetrics initializes instruments using the meter
func (m *MetricsHolder) InitMetrics(meter metric.Meter) error {
	var err error

	m.OrdersPlacedTotal, err = meter.Int64Counter(MetricOrdersPlacedTotal, metric.WithDescription("Total orders placed across all exchange adapters"))
	if err != nil {
		return err
	}

	m.OrdersFilledTotal, err = meter.Int64Counter(MetricOrdersFilledTotal, metric.WithDescription("Total orders filled across all exchange adapters"))
	if err != nil {
		return err
	}

	m.VolumeTotal, err = meter.Float64Counter(MetricVolumeTotal, metric.WithDescription("Total traded volume in contracts"))
	if err != nil {
		return err
	}

	m.LatencyExchange, err = meter.Float64Histogram(MetricLatencyExchange, metric.WithDescription("Latency of exchange REST API calls"), metric.WithUnit("ms"))
	if err != nil {
		return err
	}

	return nil
}

// RecordOrderPlaced increments the cross-adapter placed-orders counter.
func (m *MetricsHolder) RecordOrderPlaced(ctx context.Context, exchange, symbol string) {
	if m.OrdersPlacedTotal == nil {
		return
	}
	m.OrdersPlacedTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("exchange", exchange), attribute.String("symbol", symbol)))
}

// RecordOrderFilled increments the filled-orders counter and adds to the
// cumulative traded-volume counter.
func (m *MetricsHolder) RecordOrderFilled(ctx context.Context, exchange, symbol string, contracts float64) {
	if m.OrdersFilledTotal != nil {
		m.OrdersFilledTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("exchange", exchange), attribute.String("symbol", symbol)))
	}
	if m.VolumeTotal != nil {
		m.VolumeTotal.Add(ctx, contracts, metric.WithAttributes(attribute.String("exchange", exchange), attribute.String("symbol", symbol)))
	}
}

// RecordExchangeLatency records the duration of a single REST call.
func (m *MetricsHolder) RecordExchangeLatency(ctx context.Context, exchange, endpoint string, ms float64) {
	if m.LatencyExchange == nil {
		return
	}
	m.LatencyExchange.Record(ctx, ms, metric.WithAttributes(attribute.String("exchange", exchange), attribute.String("endpoint", endpoint)))
}
