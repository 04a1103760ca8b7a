package supervisor

import (
	"context"
	"testing"

	"dcaengine/internal/engine"
	"dcaengine/pkg/concurrency"
	"dcaengine/pkg/logging"

	"github.com/shopspring/decimal"
)

type noCredentials struct{}

func (noCredentials) Resolve(ctx context.Context, userID, exchange string) (string, string, string, error) {
	return "", "", "", nil
}

func newTestSupervisor(t *testing.T) *Supervisor {
	t.Helper()
	logger := logging.NewLogger(logging.ErrorLevel, nil)
	return New("mock", noCredentials{}, logger, concurrency.PoolConfig{Name: "test", MaxWorkers: 2, MaxCapacity: 8})
}

func testEngineConfig() engine.Config {
	cfg := engine.DefaultConfig()
	cfg.Symbol = "BTC-USDT-SWAP"
	cfg.Leverage = 5
	cfg.LegNotional = decimal.NewFromInt(50)
	return cfg
}

func TestSupervisor_StartStartsAndStatusReportsRunning(t *testing.T) {
	s := newTestSupervisor(t)
	key := Key{UserID: "u1", Symbol: "BTC-USDT-SWAP"}

	if err := s.Start(context.Background(), key, testEngineConfig()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.StopAll()

	status, err := s.Status(context.Background(), key, 5)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !status.Running {
		t.Fatalf("expected Running=true after Start")
	}
}

func TestSupervisor_StartTwiceIsNoop(t *testing.T) {
	s := newTestSupervisor(t)
	key := Key{UserID: "u1", Symbol: "BTC-USDT-SWAP"}

	if err := s.Start(context.Background(), key, testEngineConfig()); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	defer s.StopAll()

	if err := s.Start(context.Background(), key, testEngineConfig()); err != nil {
		t.Fatalf("second Start should be a no-op, got: %v", err)
	}
}

func TestSupervisor_StatusOnUnknownKeyIsNotRunning(t *testing.T) {
	s := newTestSupervisor(t)
	key := Key{UserID: "ghost", Symbol: "ETH-USDT-SWAP"}

	status, err := s.Status(context.Background(), key, 5)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.Running {
		t.Fatalf("expected Running=false for a never-started key")
	}
}

func TestSupervisor_StopThenStatusIsNotRunning(t *testing.T) {
	s := newTestSupervisor(t)
	key := Key{UserID: "u1", Symbol: "BTC-USDT-SWAP"}

	if err := s.Start(context.Background(), key, testEngineConfig()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := s.Stop(key); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	status, err := s.Status(context.Background(), key, 5)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.Running {
		t.Fatalf("expected Running=false after Stop")
	}
}

func TestSupervisor_ClosePositionOnUnregisteredKeyErrors(t *testing.T) {
	s := newTestSupervisor(t)
	key := Key{UserID: "ghost", Symbol: "ETH-USDT-SWAP"}

	if err := s.ClosePosition(context.Background(), key); err == nil {
		t.Fatalf("expected error closing an unregistered key")
	}
}

func TestSupervisor_UnsupportedExchangeRejected(t *testing.T) {
	logger := logging.NewLogger(logging.ErrorLevel, nil)
	s := New("binance", noCredentials{}, logger, concurrency.PoolConfig{Name: "test"})
	key := Key{UserID: "u1", Symbol: "BTC-USDT-SWAP"}

	if err := s.Start(context.Background(), key, testEngineConfig()); err == nil {
		t.Fatalf("expected error for unsupported exchange")
	}
}
