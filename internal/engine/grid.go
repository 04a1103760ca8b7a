package engine

import (
	"context"
	"time"

	"dcaengine/internal/core"

	"github.com/shopspring/decimal"
)

// reconcileGrid implements §4.3: drive the exchange's live LEG limit-sell
// orders toward the target grid derived from the sticky anchor, with
// minimal churn. Identity between a target and an existing order is by tick
// bucket, so the operation is idempotent across retries and duplicate
// deliveries.
func (e *Engine) reconcileGrid(ctx context.Context, currentPrice decimal.Decimal, info symbolSizing) {
	ctx, span := e.tracer.Start(ctx, "engine.tick.reconcile_grid")
	defer span.End()

	anchor := currentPrice
	if e.hasGridAnchorPrice {
		anchor = e.gridAnchorPrice
	}

	targetByBucket := make(map[int64]decimal.Decimal, e.cfg.MaxDCA)
	step := decimal.NewFromInt(1).Add(e.cfg.TradeStep)
	cursor := anchor
	for i := 1; i <= e.cfg.MaxDCA; i++ {
		cursor = cursor.Mul(step)
		targetByBucket[bucket(cursor, info.tickSize)] = cursor
	}

	existing, err := e.exchange.OpenOrders(ctx, e.cfg.Symbol)
	if err != nil {
		e.logger.Error("grid reconcile: failed to fetch open orders", "error", err)
		return
	}

	existingByBucket := make(map[int64]*core.Order)
	for _, o := range existing {
		if !hasLegPrefix(o.ClientOrderID) {
			continue
		}
		existingByBucket[bucket(o.Price, info.tickSize)] = o
	}

	bestAsk, err := e.exchange.BestAsk(ctx, e.cfg.Symbol)
	if err != nil {
		e.logger.Error("grid reconcile: failed to fetch best ask", "error", err)
		return
	}

	for b, price := range targetByBucket {
		if _, ok := existingByBucket[b]; ok {
			continue
		}
		e.placeGridLeg(ctx, price, bestAsk, info)
		if !sleepCtx(ctx, e.cfg.BatchPause) {
			return
		}
	}

	for b, o := range existingByBucket {
		if _, ok := targetByBucket[b]; ok {
			continue
		}
		if err := cancelTrackedOrder(ctx, e.exchange, e.cfg.Symbol, o.OrderID, o.ClientOrderID); err != nil {
			e.logger.Error("grid reconcile: cancel failed", "order_id", o.OrderID, "error", err)
		} else {
			delete(e.openDCA, o.OrderID)
		}
		if !sleepCtx(ctx, e.cfg.BatchPause) {
			return
		}
	}
}

func (e *Engine) placeGridLeg(ctx context.Context, targetPrice, bestAsk decimal.Decimal, info symbolSizing) {
	qty := contractsFor(e.cfg.LegNotional, targetPrice, info.contractSize, info.qtyDecimals)
	if qty.LessThan(info.minAmount) {
		e.metrics.incOOS(ctx, e.cfg.Symbol)
		e.counters.oos++
		return
	}

	safe := makerSafePrice(targetPrice, bestAsk, info.tickSize)
	cid := legClientID(e.cfg.Symbol, targetPrice)

	order, err := e.exchange.PlaceLimitShort(ctx, &core.PlaceOrderRequest{
		Symbol:        e.cfg.Symbol,
		Side:          core.OrderSideSell,
		Type:          core.OrderTypeLimit,
		Price:         safe,
		Quantity:      qty,
		ClientOrderID: cid,
		PostOnly:      true,
		PosSide:       "short",
	})
	if err != nil {
		e.logger.Warn("grid reconcile: place failed", "target_price", targetPrice, "error", err)
		return
	}

	e.openDCA[order.OrderID] = &gridOrder{
		OrderID:       order.OrderID,
		ClientOrderID: cid,
		Price:         safe,
		Amount:        qty,
	}
}

// sleepCtx sleeps for d or returns early (false) if ctx is cancelled first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
