package engine

import "github.com/shopspring/decimal"

// contractsFor implements §4.8: contracts_for(usdt, ref_price) =
// (usdt / ref_price) / contract_size, rounded down to qtyDecimals.
func contractsFor(notional, refPrice, contractSize decimal.Decimal, qtyDecimals int32) decimal.Decimal {
	if refPrice.IsZero() || contractSize.IsZero() {
		return decimal.Zero
	}
	raw := notional.Div(refPrice).Div(contractSize)
	return raw.Truncate(qtyDecimals)
}

// bucket quantizes a price to its tick-size slot. Two prices share a grid
// slot iff bucket(p1) == bucket(p2); this is the grid's identity relation.
func bucket(price, tickSize decimal.Decimal) int64 {
	if tickSize.IsZero() {
		return 0
	}
	return price.Div(tickSize).Round(0).IntPart()
}

// makerSafePrice lifts a sell price to at least best_ask + tick_size so a
// post-only order cannot be rejected for crossing the book.
func makerSafePrice(price, bestAsk, tickSize decimal.Decimal) decimal.Decimal {
	floor := bestAsk.Add(tickSize)
	if price.GreaterThan(floor) {
		return price
	}
	return floor
}

// oneMinus returns (1 - step), used for TP offset pricing.
func oneMinus(step decimal.Decimal) decimal.Decimal {
	return decimal.NewFromInt(1).Sub(step)
}
