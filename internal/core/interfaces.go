// Package core defines the core interfaces for the DCA/grid trading engine.
package core

import (
	"context"

	"github.com/shopspring/decimal"
)

// ExchangeClient is the async RPC surface the Engine consumes. One instance
// per (exchange, credentials) pair, shared by an Engine for its lifetime.
type ExchangeClient interface {
	GetName() string

	CurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
	BestAsk(ctx context.Context, symbol string) (decimal.Decimal, error)
	Position(ctx context.Context, symbol string) (*Position, error)
	OpenOrders(ctx context.Context, symbol string) ([]*Order, error)

	PlaceMarketShort(ctx context.Context, req *PlaceOrderRequest) (*Order, error)
	PlaceLimitShort(ctx context.Context, req *PlaceOrderRequest) (*Order, error)
	PlaceReduceOnlyTP(ctx context.Context, req *PlaceOrderRequest) (*Order, error)
	CancelOrder(ctx context.Context, symbol string, orderID int64, clientOrderID string) error
	ClosePosition(ctx context.Context, symbol string) error

	SetLeverage(ctx context.Context, symbol string, leverage int) error
	ContractSize(ctx context.Context, symbol string) (decimal.Decimal, error)
	TickSize(ctx context.Context, symbol string) (decimal.Decimal, error)
	MinAmount(ctx context.Context, symbol string) (decimal.Decimal, error)

	Close() error
}

// IOrderExecutor is the narrow batch order-management surface the engine's
// cancel-and-rebuild paths (TP overshoot correction, grid pruning) depend on.
// Any ExchangeClient satisfies it structurally; keeping the dependency typed
// this narrowly at the call site documents that those paths only ever place
// or cancel orders, never touch position/sizing/stream state.
type IOrderExecutor interface {
	PlaceReduceOnlyTP(ctx context.Context, req *PlaceOrderRequest) (*Order, error)
	CancelOrder(ctx context.Context, symbol string, orderID int64, clientOrderID string) error
}

// EventStream is the authenticated private feed. One instance per
// (exchange, credentials, symbol) tuple, owned by an Engine.
type EventStream interface {
	// Start authenticates, subscribes to the orders and positions channels,
	// and begins delivering events to the callbacks registered via OnOrderUpdate
	// / OnPositionUpdate / OnOpen / OnClose / OnError.
	Start(ctx context.Context) error
	Stop() error

	OnOpen(cb func())
	OnOrderUpdate(cb func(*OrderUpdateEvent))
	OnPositionUpdate(cb func(*PositionUpdateEvent))
	OnClose(cb func(code int, reason string))
	OnError(cb func(err error))
}

// CredentialStore resolves decrypted exchange credentials for a user. The
// decryption mechanism itself (KMS, vault, envelope encryption) is an
// external collaborator; this interface is the boundary the Supervisor
// consumes.
type CredentialStore interface {
	Resolve(ctx context.Context, userID, exchange string) (apiKey, secretKey, passphrase string, err error)
}

// ILogger defines the interface for structured logging.
type ILogger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
	Fatal(msg string, fields ...interface{})
	WithField(key string, value interface{}) ILogger
	WithFields(fields map[string]interface{}) ILogger
}
