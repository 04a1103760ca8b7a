// Package okx implements the authenticated OKX v5 private websocket feed
// (orders + positions channels) against the core.EventStream interface.
package okx

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"dcaengine/internal/config"
	"dcaengine/internal/core"
	"dcaengine/pkg/websocket"

	"github.com/shopspring/decimal"
)

const defaultPrivateWS = "wss://ws.okx.com:8443/ws/v5/private"

// Stream is the private per-(credentials,symbol) OKX feed. One instance is
// owned by exactly one engine.Engine for its lifetime. The callback set via
// OnClose is stored but never invoked: a dropped connection is redialed by
// the websocket client, and each successful re-login fires OnOpen again.
type Stream struct {
	cfg    *config.ExchangeConfig
	symbol string
	logger core.ILogger

	client *websocket.Client

	mu               sync.Mutex
	onOpen           func()
	onOrderUpdate    func(*core.OrderUpdateEvent)
	onPositionUpdate func(*core.PositionUpdateEvent)
	onClose          func(code int, reason string)
	onError          func(error)
}

// NewStream creates a new private event stream for symbol.
func NewStream(cfg *config.ExchangeConfig, symbol string, logger core.ILogger) *Stream {
	return &Stream{
		cfg:    cfg,
		symbol: symbol,
		logger: logger.WithField("symbol", symbol),
	}
}

func (s *Stream) OnOpen(cb func())                                    { s.mu.Lock(); s.onOpen = cb; s.mu.Unlock() }
func (s *Stream) OnOrderUpdate(cb func(*core.OrderUpdateEvent))       { s.mu.Lock(); s.onOrderUpdate = cb; s.mu.Unlock() }
func (s *Stream) OnPositionUpdate(cb func(*core.PositionUpdateEvent)) { s.mu.Lock(); s.onPositionUpdate = cb; s.mu.Unlock() }
func (s *Stream) OnClose(cb func(code int, reason string))           { s.mu.Lock(); s.onClose = cb; s.mu.Unlock() }
func (s *Stream) OnError(cb func(error))                              { s.mu.Lock(); s.onError = cb; s.mu.Unlock() }

// Start authenticates, subscribes to the orders and positions channels for
// this stream's symbol, and begins delivering events.
func (s *Stream) Start(ctx context.Context) error {
	wsURL := defaultPrivateWS
	if s.cfg.BaseURL != "" {
		if strings.HasPrefix(s.cfg.BaseURL, "http") {
			wsURL = strings.Replace(s.cfg.BaseURL, "http", "ws", 1)
		} else if strings.HasPrefix(s.cfg.BaseURL, "ws") {
			wsURL = s.cfg.BaseURL
		}
	}

	s.client = websocket.NewClient(wsURL, s.handleMessage, s.logger)
	s.client.SetOnConnected(s.login)
	s.client.Start()

	return nil
}

// Stop closes the underlying connection.
func (s *Stream) Stop() error {
	if s.client != nil {
		s.client.Stop()
	}
	return nil
}

func (s *Stream) login() {
	timestamp := fmt.Sprintf("%d", time.Now().Unix())
	message := timestamp + "GET" + "/users/self/verify"

	mac := hmac.New(sha256.New, []byte(string(s.cfg.SecretKey)))
	mac.Write([]byte(message))
	sign := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	loginMsg := map[string]interface{}{
		"op": "login",
		"args": []map[string]string{
			{
				"apiKey":     string(s.cfg.APIKey),
				"passphrase": string(s.cfg.Passphrase),
				"timestamp":  timestamp,
				"sign":       sign,
			},
		},
	}
	if err := s.client.Send(loginMsg); err != nil {
		s.emitError(fmt.Errorf("login send failed: %w", err))
		return
	}

	// OKX requires the login ack before a subscribe is accepted; the ack
	// arrives as a plain message handled in handleMessage, which fires the
	// subscribe once login succeeds.
}

func (s *Stream) subscribe() {
	wsSymbol := ccxtToWS(s.symbol)
	subMsg := map[string]interface{}{
		"op": "subscribe",
		"args": []map[string]string{
			{"channel": "orders", "instType": "SWAP", "instId": wsSymbol},
			{"channel": "positions", "instType": "SWAP", "instId": wsSymbol},
		},
	}
	if err := s.client.Send(subMsg); err != nil {
		s.emitError(fmt.Errorf("subscribe send failed: %w", err))
	}
}

func (s *Stream) handleMessage(message []byte) {
	var envelope struct {
		Event string `json:"event"`
		Code  string `json:"code"`
		Msg   string `json:"msg"`
		Arg   struct {
			Channel string `json:"channel"`
		} `json:"arg"`
	}
	if err := json.Unmarshal(message, &envelope); err != nil {
		s.emitError(fmt.Errorf("unmarshal envelope: %w", err))
		return
	}

	switch envelope.Event {
	case "login":
		if envelope.Code == "0" {
			s.subscribe()
			s.mu.Lock()
			cb := s.onOpen
			s.mu.Unlock()
			if cb != nil {
				cb()
			}
		} else {
			s.emitError(fmt.Errorf("okx login rejected: %s (%s)", envelope.Msg, envelope.Code))
		}
		return
	case "error":
		s.emitError(fmt.Errorf("okx ws error: %s (%s)", envelope.Msg, envelope.Code))
		return
	case "subscribe":
		return
	}

	switch envelope.Arg.Channel {
	case "orders":
		s.handleOrders(message)
	case "positions":
		s.handlePositions(message)
	}
}

func (s *Stream) handleOrders(message []byte) {
	var payload struct {
		Data []struct {
			InstID    string `json:"instId"`
			OrdID     string `json:"ordId"`
			ClOrdID   string `json:"clOrdId"`
			Side      string `json:"side"`
			State     string `json:"state"`
			AvgPx     string `json:"avgPx"`
			AccFillSz string `json:"accFillSz"`
		} `json:"data"`
	}
	if err := json.Unmarshal(message, &payload); err != nil {
		s.emitError(fmt.Errorf("unmarshal orders push: %w", err))
		return
	}

	s.mu.Lock()
	cb := s.onOrderUpdate
	s.mu.Unlock()
	if cb == nil {
		return
	}

	for _, raw := range payload.Data {
		orderID, _ := strconv.ParseInt(raw.OrdID, 10, 64)
		avgPx, _ := decimal.NewFromString(raw.AvgPx)
		filled, _ := decimal.NewFromString(raw.AccFillSz)

		side := core.OrderSideBuy
		if raw.Side == "sell" {
			side = core.OrderSideSell
		}

		cb(&core.OrderUpdateEvent{
			Symbol:        raw.InstID,
			OrderID:       orderID,
			ClientOrderID: raw.ClOrdID,
			Side:          side,
			Status:        mapOrderStatus(raw.State),
			AvgPrice:      avgPx,
			FilledQty:     filled,
		})
	}
}

func (s *Stream) handlePositions(message []byte) {
	var payload struct {
		Data []struct {
			InstID string `json:"instId"`
			Pos    string `json:"pos"`
		} `json:"data"`
	}
	if err := json.Unmarshal(message, &payload); err != nil {
		s.emitError(fmt.Errorf("unmarshal positions push: %w", err))
		return
	}

	s.mu.Lock()
	cb := s.onPositionUpdate
	s.mu.Unlock()
	if cb == nil {
		return
	}

	for _, raw := range payload.Data {
		contracts, _ := decimal.NewFromString(raw.Pos)
		cb(&core.PositionUpdateEvent{
			Symbol:    raw.InstID,
			Contracts: contracts,
		})
	}
}

func (s *Stream) emitError(err error) {
	s.mu.Lock()
	cb := s.onError
	s.mu.Unlock()
	if cb != nil {
		cb(err)
	} else {
		s.logger.Warn("event stream error", "error", err)
	}
}

func mapOrderStatus(rawStatus string) core.OrderStatus {
	switch rawStatus {
	case "live":
		return core.OrderStatusNew
	case "partially_filled":
		return core.OrderStatusPartiallyFilled
	case "filled":
		return core.OrderStatusFilled
	case "canceled":
		return core.OrderStatusCanceled
	default:
		return core.OrderStatusUnspecified
	}
}
