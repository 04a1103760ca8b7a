package engine

import (
	"context"
	"sync"

	"dcaengine/pkg/telemetry"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// engineMetrics holds the OTel instruments a single Engine emits into.
// Instruments are process-wide (one per metric name); per-symbol values are
// carried as attributes, matching the teacher's telemetry.MetricsHolder
// pattern of one meter shared across all symbols.
type engineMetrics struct {
	catchupTotal       metric.Int64Counter
	tpTrimTotal        metric.Int64Counter
	reconcileDriftTotal metric.Int64Counter
	oosTotal           metric.Int64Counter
	positionContracts  metric.Float64ObservableGauge
	gridOpenOrders     metric.Int64ObservableGauge

	mu            sync.RWMutex
	positionBySym map[string]float64
	gridOpenBySym map[string]int64
}

var (
	globalEngineMetrics *engineMetrics
	engineMetricsOnce   sync.Once
)

// getEngineMetrics returns the process-wide engine metrics singleton,
// initializing its instruments against the global OTel meter on first use.
func getEngineMetrics(logger interface {
	Error(msg string, fields ...interface{})
}) *engineMetrics {
	engineMetricsOnce.Do(func() {
		m := &engineMetrics{
			positionBySym: make(map[string]float64),
			gridOpenBySym: make(map[string]int64),
		}
		meter := telemetry.GetMeter("dca-engine")

		var err error
		m.catchupTotal, err = meter.Int64Counter("dca_engine_catchup_total",
			metric.WithDescription("Total catch-up orders placed for missed grid slots"))
		if err != nil {
			logger.Error("failed to init dca_engine_catchup_total", "error", err)
		}
		m.tpTrimTotal, err = meter.Int64Counter("dca_engine_tp_trim_total",
			metric.WithDescription("Total TP rebuilds triggered by an invariant overshoot"))
		if err != nil {
			logger.Error("failed to init dca_engine_tp_trim_total", "error", err)
		}
		m.reconcileDriftTotal, err = meter.Int64Counter("dca_engine_reconcile_drift_total",
			metric.WithDescription("Total drift-reconciliation corrections (absorbed or dropped orders)"))
		if err != nil {
			logger.Error("failed to init dca_engine_reconcile_drift_total", "error", err)
		}
		m.oosTotal, err = meter.Int64Counter("dca_engine_oos_total",
			metric.WithDescription("Total placements skipped for computing below min_amount"))
		if err != nil {
			logger.Error("failed to init dca_engine_oos_total", "error", err)
		}
		m.positionContracts, err = meter.Float64ObservableGauge("dca_engine_position_contracts",
			metric.WithDescription("Current signed position size in contracts"),
			metric.WithFloat64Callback(func(ctx context.Context, obs metric.Float64Observer) error {
				m.mu.RLock()
				defer m.mu.RUnlock()
				for sym, val := range m.positionBySym {
					obs.Observe(val, metric.WithAttributes(attribute.String("symbol", sym)))
				}
				return nil
			}))
		if err != nil {
			logger.Error("failed to init dca_engine_position_contracts", "error", err)
		}
		m.gridOpenOrders, err = meter.Int64ObservableGauge("dca_engine_grid_open_orders",
			metric.WithDescription("Current count of open LEG grid orders"),
			metric.WithInt64Callback(func(ctx context.Context, obs metric.Int64Observer) error {
				m.mu.RLock()
				defer m.mu.RUnlock()
				for sym, val := range m.gridOpenBySym {
					obs.Observe(val, metric.WithAttributes(attribute.String("symbol", sym)))
				}
				return nil
			}))
		if err != nil {
			logger.Error("failed to init dca_engine_grid_open_orders", "error", err)
		}
		globalEngineMetrics = m
	})
	return globalEngineMetrics
}

func (m *engineMetrics) setPosition(symbol string, contracts float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.positionBySym[symbol] = contracts
}

func (m *engineMetrics) setGridOpen(symbol string, count int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gridOpenBySym[symbol] = count
}

func (m *engineMetrics) incCatchup(ctx context.Context, symbol string) {
	if m.catchupTotal != nil {
		m.catchupTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("symbol", symbol)))
	}
}

func (m *engineMetrics) incTPTrim(ctx context.Context, symbol string) {
	if m.tpTrimTotal != nil {
		m.tpTrimTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("symbol", symbol)))
	}
}

func (m *engineMetrics) incReconcileDrift(ctx context.Context, symbol string) {
	if m.reconcileDriftTotal != nil {
		m.reconcileDriftTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("symbol", symbol)))
	}
}

func (m *engineMetrics) incOOS(ctx context.Context, symbol string) {
	if m.oosTotal != nil {
		m.oosTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("symbol", symbol)))
	}
}
