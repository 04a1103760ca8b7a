package engine

import (
	"context"

	"dcaengine/internal/core"

	"github.com/shopspring/decimal"
)

// reconcileTP implements §4.4: enforce Σ open_tp[*].amount ≤ live position
// contracts. A flat position clears all tracked TPs; an overshoot (typically
// after a partial fill combined with a missed cancel) rebuilds a single TP
// sized to the live position.
func (e *Engine) reconcileTP(ctx context.Context, currentPrice decimal.Decimal, info symbolSizing) {
	ctx, span := e.tracer.Start(ctx, "engine.tick.reconcile_tp")
	defer span.End()

	pos, err := e.exchange.Position(ctx, e.cfg.Symbol)
	if err != nil {
		span.RecordError(err)
		e.logger.Error("tp reconcile: failed to fetch position", "error", err)
		return
	}

	contracts := pos.Contracts.Abs()
	if contracts.IsZero() {
		e.cancelAllTP(ctx)
		return
	}

	tpTotal := decimal.Zero
	for _, o := range e.openTP {
		tpTotal = tpTotal.Add(o.Amount)
	}
	if !tpTotal.GreaterThan(contracts) {
		return
	}

	e.cancelAllTP(ctx)

	base := currentPrice
	if e.hasLastFilledLegPrice {
		base = e.lastFilledLegPrice
	}
	tpPrice := base.Mul(decimal.NewFromInt(1).Sub(e.cfg.TPStep))
	cid := tpRebuildClientID(e.cfg.Symbol)

	order, err := e.exchange.PlaceReduceOnlyTP(ctx, &core.PlaceOrderRequest{
		Symbol:        e.cfg.Symbol,
		Side:          core.OrderSideBuy,
		Type:          core.OrderTypeLimit,
		Price:         tpPrice,
		Quantity:      contracts,
		ClientOrderID: cid,
		ReduceOnly:    true,
		PosSide:       "short",
	})
	if err != nil {
		e.logger.Error("tp reconcile: rebuild placement failed", "error", err)
		return
	}

	e.openTP[order.OrderID] = &gridOrder{
		OrderID:       order.OrderID,
		ClientOrderID: cid,
		Price:         tpPrice,
		Amount:        contracts,
	}
	e.counters.tpTrim++
	e.metrics.incTPTrim(ctx, e.cfg.Symbol)
	e.logger.Warn("tp rebuild: overshoot corrected", "tp_total", tpTotal, "contracts", contracts, "tp_price", tpPrice)
}

func (e *Engine) cancelAllTP(ctx context.Context) {
	for id, o := range e.openTP {
		if err := cancelTrackedOrder(ctx, e.exchange, e.cfg.Symbol, id, o.ClientOrderID); err != nil {
			e.logger.Warn("tp reconcile: cancel failed", "order_id", id, "error", err)
		}
	}
	e.openTP = make(map[int64]*gridOrder)
}
