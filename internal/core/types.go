// Package core defines the shared types and collaborator interfaces the
// trading engine is built against.
package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderSide is the side of an order.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

// OrderType is the exchange order type.
type OrderType string

const (
	OrderTypeLimit  OrderType = "LIMIT"
	OrderTypeMarket OrderType = "MARKET"
)

// TimeInForce controls matching behavior for limit orders.
type TimeInForce string

const (
	TimeInForceGTC TimeInForce = "GTC"
	TimeInForceIOC TimeInForce = "IOC"
)

// OrderStatus is the exchange-reported lifecycle state of an order.
type OrderStatus string

const (
	OrderStatusUnspecified     OrderStatus = ""
	OrderStatusNew             OrderStatus = "NEW"
	OrderStatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	OrderStatusFilled          OrderStatus = "FILLED"
	OrderStatusCanceled        OrderStatus = "CANCELED"
)

// PlaceOrderRequest is the generic request shape accepted by ExchangeClient's
// PlaceMarketShort, PlaceLimitShort and PlaceReduceOnlyTP.
type PlaceOrderRequest struct {
	Symbol        string
	Side          OrderSide
	Type          OrderType
	TimeInForce   TimeInForce
	Price         decimal.Decimal // zero for market orders
	Quantity      decimal.Decimal
	ClientOrderID string
	ReduceOnly    bool
	PostOnly      bool
	PosSide       string // "short" for this system; carried through to the wire adapter
}

// Order is the exchange's view of a single order, normalized across REST
// reads and websocket pushes.
type Order struct {
	Symbol        string
	OrderID       int64
	ClientOrderID string
	Side          OrderSide
	Price         decimal.Decimal
	Quantity      decimal.Decimal
	FilledQty     decimal.Decimal
	AvgPrice      decimal.Decimal
	Status        OrderStatus
	ReduceOnly    bool
	PostOnly      bool
	UpdateTime    time.Time
}

// Position is the exchange's reported net position for a symbol. Positive
// Contracts means long; this system only ever carries negative (short)
// positions, but the field is signed so zero-crossing is unambiguous.
type Position struct {
	Symbol    string
	Contracts decimal.Decimal
	AvgPrice  decimal.Decimal
	UnrealPnL decimal.Decimal
	RealPnL   decimal.Decimal
}

// SymbolInfo carries the exchange's contract metadata for an instrument.
type SymbolInfo struct {
	Symbol        string
	ContractSize  decimal.Decimal
	TickSize      decimal.Decimal
	MinAmount     decimal.Decimal
	PriceDecimals int
	QtyDecimals   int
}

// OrderUpdateEvent is the normalized form of a private order-channel push,
// after unwrapping whatever envelope-or-single-record shape the wire uses.
type OrderUpdateEvent struct {
	Symbol        string
	OrderID       int64
	ClientOrderID string
	Side          OrderSide
	Status        OrderStatus
	AvgPrice      decimal.Decimal
	FilledQty     decimal.Decimal
}

// PositionUpdateEvent is the normalized form of a private position-channel push.
type PositionUpdateEvent struct {
	Symbol    string
	Contracts decimal.Decimal
}
