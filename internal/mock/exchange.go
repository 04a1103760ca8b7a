// Package mock provides in-memory fakes of core.ExchangeClient and
// core.EventStream for exercising internal/engine without a live exchange.
package mock

import (
	"context"
	"sync"
	"sync/atomic"

	"dcaengine/internal/core"

	"github.com/shopspring/decimal"
)

// Exchange is an in-memory core.ExchangeClient. Market orders fill at once
// and are not tracked; limit and TP orders are tracked in Open until
// CancelOrder removes them. The price behind CurrentPrice/BestAsk is
// settable by a test (SetPrice) to script price movement.
type Exchange struct {
	mu sync.Mutex

	price        decimal.Decimal
	bestAsk      decimal.Decimal
	position     core.Position
	contractSize decimal.Decimal
	tickSize     decimal.Decimal
	minAmount    decimal.Decimal

	nextOrderID int64
	Open        map[int64]*core.Order

	FailPlacements bool // forces every placement to fail, for error-path tests
}

// NewExchange builds a mock exchange seeded with the given reference price.
// Sizing defaults (change with SetSizing): contractSize=1, tickSize=0.1,
// minAmount=1.
func NewExchange(price decimal.Decimal) *Exchange {
	return &Exchange{
		price:        price,
		bestAsk:      price,
		contractSize: decimal.NewFromInt(1),
		tickSize:     decimal.NewFromFloat(0.1),
		minAmount:    decimal.NewFromInt(1),
		Open:         make(map[int64]*core.Order),
	}
}

func (e *Exchange) GetName() string { return "mock" }

func (e *Exchange) SetPrice(p decimal.Decimal) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.price = p
	e.bestAsk = p
}

func (e *Exchange) SetPosition(contracts, avgPrice decimal.Decimal) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.position = core.Position{Symbol: "", Contracts: contracts, AvgPrice: avgPrice}
}

func (e *Exchange) SetSizing(contractSize, tickSize, minAmount decimal.Decimal) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.contractSize = contractSize
	e.tickSize = tickSize
	e.minAmount = minAmount
}

func (e *Exchange) CurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.price, nil
}

func (e *Exchange) BestAsk(ctx context.Context, symbol string) (decimal.Decimal, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.bestAsk, nil
}

func (e *Exchange) Position(ctx context.Context, symbol string) (*core.Position, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p := e.position
	p.Symbol = symbol
	return &p, nil
}

func (e *Exchange) OpenOrders(ctx context.Context, symbol string) ([]*core.Order, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*core.Order, 0, len(e.Open))
	for _, o := range e.Open {
		out = append(out, o)
	}
	return out, nil
}

func (e *Exchange) place(req *core.PlaceOrderRequest, status core.OrderStatus) (*core.Order, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.FailPlacements {
		return nil, errPlacementFailed
	}

	id := atomic.AddInt64(&e.nextOrderID, 1)
	order := &core.Order{
		Symbol:        req.Symbol,
		OrderID:       id,
		ClientOrderID: req.ClientOrderID,
		Side:          req.Side,
		Price:         req.Price,
		Quantity:      req.Quantity,
		AvgPrice:      req.Price,
		Status:        status,
		ReduceOnly:    req.ReduceOnly,
		PostOnly:      req.PostOnly,
	}
	if status != core.OrderStatusFilled {
		e.Open[id] = order
	}
	return order, nil
}

func (e *Exchange) PlaceMarketShort(ctx context.Context, req *core.PlaceOrderRequest) (*core.Order, error) {
	e.mu.Lock()
	price := e.price
	e.mu.Unlock()
	if req.Price.IsZero() {
		req.Price = price
	}
	return e.place(req, core.OrderStatusFilled)
}

func (e *Exchange) PlaceLimitShort(ctx context.Context, req *core.PlaceOrderRequest) (*core.Order, error) {
	return e.place(req, core.OrderStatusNew)
}

func (e *Exchange) PlaceReduceOnlyTP(ctx context.Context, req *core.PlaceOrderRequest) (*core.Order, error) {
	return e.place(req, core.OrderStatusNew)
}

func (e *Exchange) CancelOrder(ctx context.Context, symbol string, orderID int64, clientOrderID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.Open, orderID)
	return nil
}

func (e *Exchange) ClosePosition(ctx context.Context, symbol string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.position = core.Position{}
	return nil
}

func (e *Exchange) SetLeverage(ctx context.Context, symbol string, leverage int) error { return nil }

func (e *Exchange) ContractSize(ctx context.Context, symbol string) (decimal.Decimal, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.contractSize, nil
}

func (e *Exchange) TickSize(ctx context.Context, symbol string) (decimal.Decimal, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tickSize, nil
}

func (e *Exchange) MinAmount(ctx context.Context, symbol string) (decimal.Decimal, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.minAmount, nil
}

func (e *Exchange) Close() error { return nil }

var errPlacementFailed = &placementError{}

type placementError struct{}

func (e *placementError) Error() string { return "mock: placement failed" }
