package engine

import (
	"context"

	"dcaengine/internal/core"
	"dcaengine/pkg/telemetry"
)

// handleLegFill implements §4.6. It is reached from on_order_update whenever
// an order transitions into a fill state; only sell-side fills of a LEG
// order advance the anchor and spawn a TP.
func (e *Engine) handleLegFill(ctx context.Context, ev *core.OrderUpdateEvent) {
	if ev.Side != core.OrderSideSell {
		return
	}
	if !ev.AvgPrice.IsPositive() || !ev.FilledQty.IsPositive() {
		return
	}

	legCID := ev.ClientOrderID
	if legCID == "" {
		legCID = legClientID(e.cfg.Symbol, ev.AvgPrice)
	}
	if _, already := e.tpCreatedForLeg[legCID]; already {
		return
	}

	// This is the only path that moves the anchor.
	e.lastFilledLegPrice = ev.AvgPrice
	e.hasLastFilledLegPrice = true
	e.gridAnchorPrice = ev.AvgPrice
	e.hasGridAnchorPrice = true

	delete(e.openDCA, ev.OrderID)

	filledQty, _ := ev.FilledQty.Float64()
	telemetry.GetGlobalMetrics().RecordOrderFilled(ctx, e.exchange.GetName(), e.cfg.Symbol, filledQty)

	tpPrice := ev.AvgPrice.Mul(oneMinus(e.cfg.TPStep))
	tpCID := tpClientIDForLeg(legCID)

	order, err := e.exchange.PlaceReduceOnlyTP(ctx, &core.PlaceOrderRequest{
		Symbol:        e.cfg.Symbol,
		Side:          core.OrderSideBuy,
		Type:          core.OrderTypeLimit,
		Price:         tpPrice,
		Quantity:      ev.FilledQty,
		ClientOrderID: tpCID,
		ReduceOnly:    true,
		PosSide:       "short",
	})
	if err != nil {
		e.logger.Error("leg fill: tp placement failed, next tick will rebuild", "leg_cid", legCID, "error", err)
		return
	}

	e.openTP[order.OrderID] = &gridOrder{
		OrderID:       order.OrderID,
		ClientOrderID: tpCID,
		Price:         tpPrice,
		Amount:        ev.FilledQty,
	}
	e.tpCreatedForLeg[legCID] = struct{}{}
	e.logger.Info("leg fill accepted", "leg_cid", legCID, "avg_px", ev.AvgPrice, "filled", ev.FilledQty, "tp_price", tpPrice)
}
