package engine

import (
	"context"
	"time"

	"dcaengine/internal/core"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// tickLoop runs until ctx is cancelled, firing one tick every TickInterval.
// Cancellation is cooperative at the ticker's sleep point, per spec.md §5.
// Each fired tick is submitted to the mailbox so it serializes against
// concurrent event-stream callbacks rather than running on its own thread.
func (e *Engine) tickLoop(ctx context.Context) {
	defer close(e.tickDone)

	ticker := time.NewTicker(e.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.submit(e.runTick)
		}
	}
}

// runTick executes one tick's sub-steps in the order specified by §4.2.
func (e *Engine) runTick(ctx context.Context) {
	ctx, span := e.tracer.Start(ctx, "engine.tick",
		trace.WithAttributes(attribute.String("symbol", e.cfg.Symbol)),
	)
	defer span.End()

	price, err := e.exchange.CurrentPrice(ctx, e.cfg.Symbol)
	if err != nil {
		span.RecordError(err)
		e.logger.Warn("tick: current price unavailable, skipping iteration", "error", err)
		return
	}

	info, err := e.symbolSizing(ctx)
	if err != nil {
		span.RecordError(err)
		e.logger.Warn("tick: symbol sizing unavailable, skipping iteration", "error", err)
		return
	}

	e.catchUp(ctx, price, info)
	e.reconcileGrid(ctx, price, info)
	e.reconcileTP(ctx, price, info)
	e.reconcileDrift(ctx, info)

	if time.Since(e.lastMetricsEmit) >= e.cfg.MetricsEvery {
		e.emitMetrics(price)
		e.lastMetricsEmit = time.Now()
	}
}

// catchUp implements §4.2 step 1: a single aggregated order compensating for
// grid slots the engine would have filled had ticks arrived fast enough.
// It never moves grid_anchor_price — only a sell fill does that (§4.6).
func (e *Engine) catchUp(ctx context.Context, currentPrice decimal.Decimal, info symbolSizing) {
	ctx, span := e.tracer.Start(ctx, "engine.tick.catch_up")
	defer span.End()

	if !e.hasLastFilledLegPrice {
		return
	}
	if !currentPrice.GreaterThan(e.lastFilledLegPrice) {
		return
	}
	if time.Since(e.lastCatchupTS) < e.cfg.CatchupThrottle {
		return
	}

	ratio := currentPrice.Div(e.lastFilledLegPrice).Sub(decimal.NewFromInt(1))
	missingDec := ratio.Div(e.cfg.TradeStep).Floor()
	missing := missingDec.IntPart()
	if missing <= 0 {
		return
	}
	if missing > int64(e.cfg.MaxCatchupLegs) {
		missing = int64(e.cfg.MaxCatchupLegs)
	}

	perLeg := contractsFor(e.cfg.LegNotional, currentPrice, info.contractSize, info.qtyDecimals)
	qty := perLeg.Mul(decimal.NewFromInt(missing))
	if qty.LessThan(info.minAmount) {
		e.metrics.incOOS(ctx, e.cfg.Symbol)
		e.counters.oos++
		return
	}

	cid := catchupClientID(e.cfg.Symbol, currentPrice)
	req := &core.PlaceOrderRequest{
		Symbol:        e.cfg.Symbol,
		Side:          core.OrderSideSell,
		Quantity:      qty,
		ClientOrderID: cid,
		PosSide:       "short",
	}

	var order *core.Order
	var err error
	if e.cfg.CatchupIOC {
		req.Type = core.OrderTypeLimit
		req.TimeInForce = core.TimeInForceIOC
		req.Price = currentPrice
		order, err = e.exchange.PlaceLimitShort(ctx, req)
	} else {
		req.Type = core.OrderTypeMarket
		order, err = e.exchange.PlaceMarketShort(ctx, req)
	}

	if err != nil {
		e.logger.Error("catch-up order failed", "missing_legs", missing, "error", err)
		return
	}

	e.lastCatchupTS = time.Now()
	e.counters.catchup++
	e.metrics.incCatchup(ctx, e.cfg.Symbol)
	e.logger.Info("catch-up order placed", "missing_legs", missing, "qty", qty, "order_id", order.OrderID)
}

func (e *Engine) emitMetrics(currentPrice decimal.Decimal) {
	e.metrics.setGridOpen(e.cfg.Symbol, int64(len(e.openDCA)))
	e.logger.Info("tick metrics",
		"price", currentPrice,
		"open_dca", len(e.openDCA),
		"open_tp", len(e.openTP),
		"catchup_count", e.counters.catchup,
		"tp_trim_count", e.counters.tpTrim,
		"reconcile_drift_count", e.counters.reconcileDrift,
		"oos_count", e.counters.oos,
	)
}
