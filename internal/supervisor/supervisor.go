// Package supervisor owns the registry of running per-(user,symbol) Engines:
// starting, stopping, and reporting status on each one, matching spec.md
// §6's control surface. It is the only component that constructs
// ExchangeClient/EventStream pairs from resolved credentials.
package supervisor

import (
	"context"
	"fmt"
	"sync"

	"dcaengine/internal/config"
	"dcaengine/internal/core"
	"dcaengine/internal/engine"
	eventstreamokx "dcaengine/internal/eventstream/okx"
	exchangeokx "dcaengine/internal/exchange/okx"
	"dcaengine/internal/mock"
	"dcaengine/pkg/concurrency"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Key identifies one running Engine.
type Key struct {
	UserID string
	Symbol string
}

func (k Key) String() string { return k.UserID + "/" + k.Symbol }

// Status is the Supervisor's public view of a running Engine, matching
// spec.md §6's control-surface response shape.
type Status struct {
	Key           Key
	Running       bool
	Contracts     decimal.Decimal
	TotalPnL      decimal.Decimal
	InitialMargin decimal.Decimal
}

type registration struct {
	mu       sync.Mutex // serializes Start/Stop for this key, per spec.md §9
	eng      *engine.Engine
	exchange core.ExchangeClient
	stream   core.EventStream
	running  bool
}

// Supervisor is the process-wide registry of running Engines, keyed by
// (user_id, symbol). It resolves credentials via a core.CredentialStore,
// constructs one ExchangeClient+EventStream pair per key, and fans out
// StopAll across a worker pool so that one slow shutdown never serializes
// behind another key.
type Supervisor struct {
	exchangeName string
	credentials  core.CredentialStore
	logger       core.ILogger
	pool         *concurrency.WorkerPool

	mu          sync.Mutex
	registry    map[Key]*registration
}

// New builds a Supervisor. exchangeName selects which ExchangeClient/
// EventStream implementation Start constructs ("okx" for the live adapter,
// "mock" for the in-memory fakes; anything else is rejected at Start time).
func New(exchangeName string, credentials core.CredentialStore, logger core.ILogger, poolCfg concurrency.PoolConfig) *Supervisor {
	l := logger.WithField("component", "supervisor")
	return &Supervisor{
		exchangeName: exchangeName,
		credentials:  credentials,
		logger:       l,
		pool:         concurrency.NewWorkerPool(poolCfg, l),
		registry:     make(map[Key]*registration),
	}
}

// Start resolves credentials for (key.UserID, s.exchangeName), constructs a
// fresh ExchangeClient+EventStream pair, sets leverage, and starts the
// Engine. It is a no-op (returning nil) if the key is already running.
func (s *Supervisor) Start(ctx context.Context, key Key, cfg engine.Config) error {
	reg := s.claim(key)
	reg.mu.Lock()
	defer reg.mu.Unlock()

	if reg.running {
		return nil
	}

	exchangeLogger := s.logger.WithFields(map[string]interface{}{"user_id": key.UserID, "symbol": key.Symbol})

	var exchangeClient core.ExchangeClient
	var stream core.EventStream

	switch s.exchangeName {
	case "mock":
		exchangeClient = mock.NewExchange(cfg.LegNotional)
		stream = mock.NewStream()
	case "okx":
		apiKey, secretKey, passphrase, err := s.credentials.Resolve(ctx, key.UserID, s.exchangeName)
		if err != nil {
			return fmt.Errorf("supervisor: resolve credentials for %s: %w", key, err)
		}

		exCfg := &config.ExchangeConfig{
			APIKey:     config.Secret(apiKey),
			SecretKey:  config.Secret(secretKey),
			Passphrase: config.Secret(passphrase),
		}

		okxClient, err := exchangeokx.NewOKXExchange(exCfg, exchangeLogger)
		if err != nil {
			return fmt.Errorf("supervisor: construct exchange client for %s: %w", key, err)
		}
		if err := okxClient.SetLeverage(ctx, key.Symbol, cfg.Leverage); err != nil {
			okxClient.Close()
			return fmt.Errorf("supervisor: set leverage for %s: %w", key, err)
		}

		exchangeClient = okxClient
		stream = eventstreamokx.NewStream(exCfg, key.Symbol, exchangeLogger)
	default:
		return fmt.Errorf("supervisor: unsupported exchange %q", s.exchangeName)
	}

	eng := engine.New(key.UserID, cfg, exchangeClient, stream, exchangeLogger)
	if err := eng.Start(ctx); err != nil {
		exchangeClient.Close()
		return fmt.Errorf("supervisor: start engine for %s: %w", key, err)
	}

	reg.eng = eng
	reg.exchange = exchangeClient
	reg.stream = stream
	reg.running = true

	s.logger.Info("engine started", "key", key.String())
	return nil
}

// Stop stops the Engine registered under key, closes its exchange client,
// and releases the registration so a later Start constructs fresh
// collaborators. Stopping an unregistered or already-stopped key is a no-op.
func (s *Supervisor) Stop(key Key) error {
	s.mu.Lock()
	reg, ok := s.registry[key]
	s.mu.Unlock()
	if !ok {
		return nil
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()

	if !reg.running {
		return nil
	}

	var err error
	if reg.eng != nil {
		err = reg.eng.Stop()
	}
	if reg.exchange != nil {
		if cerr := reg.exchange.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	reg.running = false
	reg.eng = nil
	reg.exchange = nil
	reg.stream = nil

	s.logger.Info("engine stopped", "key", key.String())
	return err
}

// StopAll stops every running engine concurrently via the worker pool.
func (s *Supervisor) StopAll() {
	s.mu.Lock()
	keys := make([]Key, 0, len(s.registry))
	for k := range s.registry {
		keys = append(keys, k)
	}
	s.mu.Unlock()

	var wg sync.WaitGroup
	wg.Add(len(keys))
	for _, k := range keys {
		k := k
		s.pool.Submit(func() {
			defer wg.Done()
			if err := s.Stop(k); err != nil {
				s.logger.Error("stop failed during StopAll", "key", k.String(), "error", err)
			}
		})
	}
	wg.Wait()
}

// Status reports the live position/pnl snapshot for a running key, per
// spec.md §6's control-surface response. leverage is supplied by the
// caller; Status does not read it from the running Engine's config.
func (s *Supervisor) Status(ctx context.Context, key Key, leverage int) (Status, error) {
	s.mu.Lock()
	reg, ok := s.registry[key]
	s.mu.Unlock()
	if !ok || !reg.running {
		return Status{Key: key, Running: false}, nil
	}

	reg.mu.Lock()
	exchangeClient := reg.exchange
	reg.mu.Unlock()
	if exchangeClient == nil {
		return Status{Key: key, Running: false}, nil
	}

	pos, err := exchangeClient.Position(ctx, key.Symbol)
	if err != nil {
		return Status{}, fmt.Errorf("supervisor: fetch position for %s: %w", key, err)
	}
	contractSize, err := exchangeClient.ContractSize(ctx, key.Symbol)
	if err != nil {
		return Status{}, fmt.Errorf("supervisor: fetch contract size for %s: %w", key, err)
	}

	totalPnL := pos.UnrealPnL.Add(pos.RealPnL)
	initialMargin := decimal.Zero
	if leverage > 0 {
		notional := pos.Contracts.Abs().Mul(pos.AvgPrice).Mul(contractSize)
		initialMargin = notional.Div(decimal.NewFromInt(int64(leverage)))
	}

	return Status{
		Key:           key,
		Running:       true,
		Contracts:     pos.Contracts,
		TotalPnL:      totalPnL,
		InitialMargin: initialMargin,
	}, nil
}

// ClosePosition issues a manual, idempotency-tagged flatten request for key,
// matching spec.md §6's manual close control. The uuid is logged alongside
// the request so repeated operator calls during a retry storm can be
// correlated in logs even though ExchangeClient.ClosePosition itself takes
// no idempotency key.
func (s *Supervisor) ClosePosition(ctx context.Context, key Key) error {
	s.mu.Lock()
	reg, ok := s.registry[key]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("supervisor: %s is not registered", key)
	}

	reg.mu.Lock()
	exchangeClient := reg.exchange
	reg.mu.Unlock()
	if exchangeClient == nil {
		return fmt.Errorf("supervisor: %s is not running", key)
	}

	requestID := uuid.NewString()
	s.logger.Info("manual close requested", "key", key.String(), "request_id", requestID)
	if err := exchangeClient.ClosePosition(ctx, key.Symbol); err != nil {
		return fmt.Errorf("supervisor: close position for %s (request %s): %w", key, requestID, err)
	}
	return nil
}

// Shutdown stops the worker pool. Call after StopAll.
func (s *Supervisor) Shutdown() {
	s.pool.Stop()
}

func (s *Supervisor) claim(key Key) *registration {
	s.mu.Lock()
	defer s.mu.Unlock()
	reg, ok := s.registry[key]
	if !ok {
		reg = &registration{}
		s.registry[key] = reg
	}
	return reg
}
