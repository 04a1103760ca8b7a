package engine

import (
	"context"

	"dcaengine/internal/core"
)

// reconcileDrift implements §4.5: converge the local openDCA/openTP maps to
// the exchange-reported set of open orders, absorbing unknown orders by
// client-id prefix (falling back to side) and dropping local entries the
// exchange no longer reports.
func (e *Engine) reconcileDrift(ctx context.Context, info symbolSizing) {
	ctx, span := e.tracer.Start(ctx, "engine.tick.reconcile_drift")
	defer span.End()

	existing, err := e.exchange.OpenOrders(ctx, e.cfg.Symbol)
	if err != nil {
		span.RecordError(err)
		e.logger.Error("drift reconcile: failed to fetch open orders", "error", err)
		return
	}

	byID := make(map[int64]*core.Order, len(existing))
	for _, o := range existing {
		byID[o.OrderID] = o
	}

	changed := false

	for id := range e.openDCA {
		if _, ok := byID[id]; !ok {
			delete(e.openDCA, id)
			changed = true
		}
	}
	for id := range e.openTP {
		if _, ok := byID[id]; !ok {
			delete(e.openTP, id)
			changed = true
		}
	}

	for id, o := range byID {
		if _, ok := e.openDCA[id]; ok {
			continue
		}
		if _, ok := e.openTP[id]; ok {
			continue
		}

		record := &gridOrder{OrderID: o.OrderID, ClientOrderID: o.ClientOrderID, Price: o.Price, Amount: o.Quantity}
		switch {
		case hasTPPrefix(o.ClientOrderID):
			e.openTP[id] = record
		case hasLegPrefix(o.ClientOrderID):
			e.openDCA[id] = record
		case o.Side == core.OrderSideBuy:
			e.openTP[id] = record
		default:
			e.openDCA[id] = record
		}
		changed = true
	}

	if changed {
		e.counters.reconcileDrift++
		e.metrics.incReconcileDrift(ctx, e.cfg.Symbol)
	}
}
