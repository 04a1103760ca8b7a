// Package okx implements the OKX v5 swap API against the core.ExchangeClient
// interface.
package okx

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"dcaengine/internal/config"
	"dcaengine/internal/core"
	"dcaengine/internal/exchange/base"
	apperrors "dcaengine/pkg/errors"
	httpclient "dcaengine/pkg/http"
	"dcaengine/pkg/retry"
	"dcaengine/pkg/telemetry"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

// OKX's public REST rate limit for the endpoints this adapter drives (market,
// trade, account) is documented per-endpoint but converges around 20 req/2s;
// staying under that with a shared per-adapter limiter keeps every caller
// (engine tick, catch-up, reconciliation) from tripping 50014 in aggregate.
const okxRESTRateLimit = 10 // requests per second, burst 20

const (
	defaultOKXURL = "https://www.okx.com"
	instType      = "SWAP"
	tdModeShort   = "isolated"
)

// OKXExchange implements core.ExchangeClient against the OKX v5 REST API.
type OKXExchange struct {
	*base.BaseAdapter

	orderClient *httpclient.Client // failsafe-wrapped: circuit breaker + retry around order mutation
	limiter     *rate.Limiter      // shared across all REST calls this adapter issues

	mu         sync.RWMutex
	symbolInfo map[string]*core.SymbolInfo
}

// NewOKXExchange creates a new OKX exchange adapter.
func NewOKXExchange(cfg *config.ExchangeConfig, logger core.ILogger) (*OKXExchange, error) {
	if cfg.BaseURL != "" && !strings.HasPrefix(cfg.BaseURL, "https://") {
		if !strings.Contains(cfg.BaseURL, "127.0.0.1") && !strings.Contains(cfg.BaseURL, "localhost") {
			return nil, fmt.Errorf("okx base URL must start with https://: %s", cfg.BaseURL)
		}
	}

	b := base.NewBaseAdapter("okx", cfg, logger)
	e := &OKXExchange{
		BaseAdapter: b,
		symbolInfo:  make(map[string]*core.SymbolInfo),
		limiter:     rate.NewLimiter(rate.Limit(okxRESTRateLimit), okxRESTRateLimit*2),
	}

	b.SetSignRequest(func(req *http.Request, body []byte) error {
		return e.signRequest(req, string(body))
	})
	b.SetParseError(e.parseError)
	b.SetMapOrderStatus(e.mapOrderStatus)

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultOKXURL
	}
	e.orderClient = httpclient.NewClient(baseURL, 10*time.Second, &okxSigner{e: e})

	return e, nil
}

// okxSigner adapts OKXExchange's HMAC signing to the generic httpclient.Signer
// interface, recovering the already-buffered body via req.GetBody.
type okxSigner struct {
	e *OKXExchange
}

func (s *okxSigner) SignRequest(req *http.Request) error {
	var body []byte
	if req.GetBody != nil {
		rc, err := req.GetBody()
		if err == nil {
			body, _ = io.ReadAll(rc)
			rc.Close()
		}
	}
	return s.e.signRequest(req, string(body))
}

func (e *OKXExchange) GetName() string {
	return "okx"
}

// waitForRateLimit blocks until the shared REST limiter admits one more
// request, or ctx is done. Every REST method calls this immediately before
// issuing its request so retry.Do's backoff attempts are throttled too.
func (e *OKXExchange) waitForRateLimit(ctx context.Context) error {
	return e.limiter.Wait(ctx)
}

// signRequest adds OKX's REST authentication headers to the request.
func (e *OKXExchange) signRequest(req *http.Request, body string) error {
	timestamp := time.Now().UTC().Format("2006-01-02T15:04:05.000Z")
	path := req.URL.Path
	if req.URL.RawQuery != "" {
		path += "?" + req.URL.RawQuery
	}

	message := timestamp + req.Method + path + body

	mac := hmac.New(sha256.New, []byte(string(e.Config.SecretKey)))
	mac.Write([]byte(message))
	signature := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	req.Header.Set("OK-ACCESS-KEY", string(e.Config.APIKey))
	req.Header.Set("OK-ACCESS-SIGN", signature)
	req.Header.Set("OK-ACCESS-TIMESTAMP", timestamp)
	req.Header.Set("OK-ACCESS-PASSPHRASE", string(e.Config.Passphrase))
	req.Header.Set("Content-Type", "application/json")

	return nil
}

func (e *OKXExchange) parseError(body []byte) error {
	var errResp struct {
		Code string `json:"code"`
		Msg  string `json:"msg"`
	}
	if err := json.Unmarshal(body, &errResp); err != nil {
		return fmt.Errorf("okx error (unmarshal failed): %s", string(body))
	}

	// https://www.okx.com/docs-v5/en/#error-code-details
	switch errResp.Code {
	case "0":
		return nil
	case "50004", "50011", "50027":
		return apperrors.ErrInvalidOrderParameter
	case "50005", "50013":
		return apperrors.ErrAuthenticationFailed
	case "50014":
		return apperrors.ErrRateLimitExceeded
	case "51000":
		return apperrors.ErrInsufficientFunds
	case "51401":
		return apperrors.ErrOrderNotFound
	case "51020":
		return apperrors.ErrOrderRejected
	case "50001":
		return apperrors.ErrSystemOverload
	}

	return fmt.Errorf("okx error: %s (%s)", errResp.Msg, errResp.Code)
}

func (e *OKXExchange) mapOrderStatus(rawStatus string) core.OrderStatus {
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

func (e *OKXExchange) isTransientError(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, apperrors.ErrRateLimitExceeded) ||
		errors.Is(err, apperrors.ErrSystemOverload)
}

func (e *OKXExchange) baseURL() string {
	if e.Config.BaseURL != "" {
		return e.Config.BaseURL
	}
	return defaultOKXURL
}

// CurrentPrice returns the last traded price for symbol.
func (e *OKXExchange) CurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	ticker, err := e.fetchTicker(ctx, symbol)
	if err != nil {
		return decimal.Zero, err
	}
	return e.ParseDecimal(ticker.Last), nil
}

// BestAsk returns the best ask price for symbol.
func (e *OKXExchange) BestAsk(ctx context.Context, symbol string) (decimal.Decimal, error) {
	ticker, err := e.fetchTicker(ctx, symbol)
	if err != nil {
		return decimal.Zero, err
	}
	return e.ParseDecimal(ticker.AskPx), nil
}

type okxTicker struct {
	InstID string `json:"instId"`
	Last   string `json:"last"`
	AskPx  string `json:"askPx"`
	BidPx  string `json:"bidPx"`
}

func (e *OKXExchange) fetchTicker(ctx context.Context, symbol string) (*okxTicker, error) {
	url := e.baseURL() + "/api/v5/market/ticker?instId=" + ccxtToWS(symbol)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	if err := e.waitForRateLimit(ctx); err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := e.HTTPClient.Do(req)
	telemetry.GetGlobalMetrics().RecordExchangeLatency(ctx, e.GetName(), "ticker", float64(time.Since(start).Milliseconds()))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var response struct {
		Code string      `json:"code"`
		Msg  string      `json:"msg"`
		Data []okxTicker `json:"data"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, err
	}
	if response.Code != "0" {
		return nil, e.parseError(body)
	}
	if len(response.Data) == 0 {
		return nil, fmt.Errorf("okx error: no ticker data for %s", symbol)
	}

	return &response.Data[0], nil
}

// Position returns the net position for symbol. If there is no open
// position, Contracts is zero.
func (e *OKXExchange) Position(ctx context.Context, symbol string) (*core.Position, error) {
	url := e.baseURL() + "/api/v5/account/positions?instType=" + instType + "&instId=" + ccxtToWS(symbol)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if err := e.signRequest(req, ""); err != nil {
		return nil, err
	}
	if err := e.waitForRateLimit(ctx); err != nil {
		return nil, err
	}

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var response struct {
		Code string `json:"code"`
		Data []struct {
			InstID string `json:"instId"`
			Pos    string `json:"pos"`
			AvgPx  string `json:"avgPx"`
			Upl    string `json:"upl"`
			RealPL string `json:"realizedPnl"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, err
	}
	if response.Code != "0" {
		return nil, e.parseError(body)
	}

	pos := &core.Position{Symbol: symbol}
	for _, raw := range response.Data {
		if raw.InstID != ccxtToWS(symbol) {
			continue
		}
		pos.Contracts = e.ParseDecimal(raw.Pos)
		pos.AvgPrice = e.ParseDecimal(raw.AvgPx)
		pos.UnrealPnL = e.ParseDecimal(raw.Upl)
		pos.RealPnL = e.ParseDecimal(raw.RealPL)
		break
	}

	return pos, nil
}

// OpenOrders returns all live (unfilled or partially filled) orders for symbol.
func (e *OKXExchange) OpenOrders(ctx context.Context, symbol string) ([]*core.Order, error) {
	url := e.baseURL() + "/api/v5/trade/orders-pending?instType=" + instType + "&instId=" + ccxtToWS(symbol)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if err := e.signRequest(req, ""); err != nil {
		return nil, err
	}
	if err := e.waitForRateLimit(ctx); err != nil {
		return nil, err
	}

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var response struct {
		Code string `json:"code"`
		Data []struct {
			InstID     string `json:"instId"`
			OrdID      string `json:"ordId"`
			ClOrdID    string `json:"clOrdId"`
			Px         string `json:"px"`
			Sz         string `json:"sz"`
			Side       string `json:"side"`
			State      string `json:"state"`
			AccFillSz  string `json:"accFillSz"`
			AvgPx      string `json:"avgPx"`
			ReduceOnly string `json:"reduceOnly"`
			UTime      string `json:"uTime"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, err
	}
	if response.Code != "0" {
		return nil, e.parseError(body)
	}

	orders := make([]*core.Order, 0, len(response.Data))
	for _, raw := range response.Data {
		orderID, _ := strconv.ParseInt(raw.OrdID, 10, 64)
		uts, _ := strconv.ParseInt(raw.UTime, 10, 64)

		side := core.OrderSideBuy
		if raw.Side == "sell" {
			side = core.OrderSideSell
		}

		orders = append(orders, &core.Order{
			Symbol:        raw.InstID,
			OrderID:       orderID,
			ClientOrderID: raw.ClOrdID,
			Side:          side,
			Price:         e.ParseDecimal(raw.Px),
			Quantity:      e.ParseDecimal(raw.Sz),
			FilledQty:     e.ParseDecimal(raw.AccFillSz),
			AvgPrice:      e.ParseDecimal(raw.AvgPx),
			Status:        e.SafeMapOrderStatus(raw.State),
			ReduceOnly:    raw.ReduceOnly == "true",
			UpdateTime:    e.ParseTimestamp(uts),
		})
	}

	return orders, nil
}

// PlaceMarketShort opens (or extends) a short position at market.
func (e *OKXExchange) PlaceMarketShort(ctx context.Context, req *core.PlaceOrderRequest) (*core.Order, error) {
	req.Side = core.OrderSideSell
	req.Type = core.OrderTypeMarket
	req.ReduceOnly = false
	return e.placeOrder(ctx, req)
}

// PlaceLimitShort places a limit sell that opens (or extends) a short position.
func (e *OKXExchange) PlaceLimitShort(ctx context.Context, req *core.PlaceOrderRequest) (*core.Order, error) {
	req.Side = core.OrderSideSell
	req.Type = core.OrderTypeLimit
	req.ReduceOnly = false
	return e.placeOrder(ctx, req)
}

// PlaceReduceOnlyTP places a reduce-only limit buy that trims the short position.
func (e *OKXExchange) PlaceReduceOnlyTP(ctx context.Context, req *core.PlaceOrderRequest) (*core.Order, error) {
	req.Side = core.OrderSideBuy
	req.Type = core.OrderTypeLimit
	req.ReduceOnly = true
	return e.placeOrder(ctx, req)
}

func (e *OKXExchange) placeOrder(ctx context.Context, req *core.PlaceOrderRequest) (*core.Order, error) {
	var order *core.Order
	err := retry.Do(ctx, retry.DefaultPolicy, e.isTransientError, func() error {
		var err error
		order, err = e.placeOrderInternal(ctx, req)
		if err != nil {
			if errors.Is(err, apperrors.ErrDuplicateOrder) && req.ClientOrderID != "" {
				existing, fetchErr := e.fetchOrder(ctx, req.Symbol, 0, req.ClientOrderID)
				if fetchErr == nil {
					order = existing
					return nil
				}
			}
			return err
		}
		return nil
	})
	return order, err
}

func (e *OKXExchange) placeOrderInternal(ctx context.Context, req *core.PlaceOrderRequest) (*core.Order, error) {
	side := "buy"
	if req.Side == core.OrderSideSell {
		side = "sell"
	}

	posSide := req.PosSide
	if posSide == "" {
		posSide = "short"
	}

	ordType := "limit"
	switch {
	case req.Type == core.OrderTypeMarket:
		ordType = "market"
	case req.PostOnly:
		ordType = "post_only"
	case req.TimeInForce == core.TimeInForceIOC:
		ordType = "ioc"
	}

	body := map[string]interface{}{
		"instId":  ccxtToWS(req.Symbol),
		"tdMode":  tdModeShort,
		"side":    side,
		"posSide": posSide,
		"ordType": ordType,
		"sz":      req.Quantity.String(),
	}

	if ordType != "market" {
		body["px"] = req.Price.String()
	}
	if req.ClientOrderID != "" {
		body["clOrdId"] = req.ClientOrderID
	}
	if req.ReduceOnly {
		body["reduceOnly"] = true
	}

	if err := e.waitForRateLimit(ctx); err != nil {
		return nil, err
	}

	start := time.Now()
	respBody, err := e.orderClient.Post(ctx, "/api/v5/trade/order", body)
	telemetry.GetGlobalMetrics().RecordExchangeLatency(ctx, e.GetName(), "place_order", float64(time.Since(start).Milliseconds()))
	if err != nil {
		return e.translatePlaceOrderErr(err)
	}

	var response struct {
		Code string `json:"code"`
		Msg  string `json:"msg"`
		Data []struct {
			OrdID   string `json:"ordId"`
			ClOrdID string `json:"clOrdId"`
			SCode   string `json:"sCode"`
			SMsg    string `json:"sMsg"`
		} `json:"data"`
	}
	if err := json.Unmarshal(respBody, &response); err != nil {
		return nil, err
	}
	if response.Code != "0" {
		return nil, fmt.Errorf("okx error: %s (%s)", response.Msg, response.Code)
	}
	if len(response.Data) == 0 {
		return nil, fmt.Errorf("okx error: no data returned")
	}

	data := response.Data[0]
	if data.SCode != "0" {
		if data.SCode == "51008" || data.SCode == "51023" {
			return nil, apperrors.ErrDuplicateOrder
		}
		errJSON := fmt.Sprintf(`{"code":"%s","msg":"%s"}`, data.SCode, data.SMsg)
		return nil, e.parseError([]byte(errJSON))
	}

	orderID, _ := strconv.ParseInt(data.OrdID, 10, 64)
	telemetry.GetGlobalMetrics().RecordOrderPlaced(ctx, e.GetName(), req.Symbol)

	return &core.Order{
		OrderID:       orderID,
		ClientOrderID: data.ClOrdID,
		Symbol:        req.Symbol,
		Side:          req.Side,
		Price:         req.Price,
		Quantity:      req.Quantity,
		Status:        core.OrderStatusNew,
		ReduceOnly:    req.ReduceOnly,
		UpdateTime:    time.Now(),
	}, nil
}

func (e *OKXExchange) translatePlaceOrderErr(err error) (*core.Order, error) {
	var apiErr *httpclient.APIError
	if errors.As(err, &apiErr) {
		return nil, e.parseError(apiErr.Body)
	}
	return nil, err
}

// CancelOrder cancels a single order, identified by either orderID or
// clientOrderID. Canceling an already-gone order is treated as success.
func (e *OKXExchange) CancelOrder(ctx context.Context, symbol string, orderID int64, clientOrderID string) error {
	body := map[string]interface{}{
		"instId": ccxtToWS(symbol),
	}
	if orderID != 0 {
		body["ordId"] = fmt.Sprintf("%d", orderID)
	} else if clientOrderID != "" {
		body["clOrdId"] = clientOrderID
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return err
	}

	url := e.baseURL() + "/api/v5/trade/cancel-order"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(string(jsonBody)))
	if err != nil {
		return err
	}
	if err := e.signRequest(req, string(jsonBody)); err != nil {
		return err
	}
	if err := e.waitForRateLimit(ctx); err != nil {
		return err
	}

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	var response struct {
		Code string `json:"code"`
		Data []struct {
			SCode string `json:"sCode"`
			SMsg  string `json:"sMsg"`
		} `json:"data"`
	}
	if err := json.Unmarshal(respBody, &response); err != nil {
		return err
	}
	if response.Code != "0" {
		return e.parseError(respBody)
	}
	if len(response.Data) > 0 {
		data := response.Data[0]
		if data.SCode != "0" {
			if data.SCode == "51401" {
				return nil
			}
			errJSON := fmt.Sprintf(`{"code":"%s","msg":"%s"}`, data.SCode, data.SMsg)
			return e.parseError([]byte(errJSON))
		}
	}

	return nil
}

// ClosePosition issues a market order that flattens the entire position for symbol.
func (e *OKXExchange) ClosePosition(ctx context.Context, symbol string) error {
	body := map[string]interface{}{
		"instId":  ccxtToWS(symbol),
		"mgnMode": tdModeShort,
		"posSide": "short",
	}
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return err
	}

	url := e.baseURL() + "/api/v5/trade/close-position"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(string(jsonBody)))
	if err != nil {
		return err
	}
	if err := e.signRequest(req, string(jsonBody)); err != nil {
		return err
	}
	if err := e.waitForRateLimit(ctx); err != nil {
		return err
	}

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	var response struct {
		Code string `json:"code"`
		Msg  string `json:"msg"`
	}
	if err := json.Unmarshal(respBody, &response); err != nil {
		return err
	}
	if response.Code != "0" {
		return e.parseError(respBody)
	}
	return nil
}

// SetLeverage sets account leverage for symbol under isolated-margin, short mode.
func (e *OKXExchange) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	body := map[string]interface{}{
		"instId":  ccxtToWS(symbol),
		"lever":   strconv.Itoa(leverage),
		"mgnMode": tdModeShort,
		"posSide": "short",
	}
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return err
	}

	url := e.baseURL() + "/api/v5/account/set-leverage"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(string(jsonBody)))
	if err != nil {
		return err
	}
	if err := e.signRequest(req, string(jsonBody)); err != nil {
		return err
	}
	if err := e.waitForRateLimit(ctx); err != nil {
		return err
	}

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	var response struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal(respBody, &response); err != nil {
		return err
	}
	if response.Code != "0" {
		return e.parseError(respBody)
	}
	return nil
}

func (e *OKXExchange) fetchOrder(ctx context.Context, symbol string, orderID int64, clientOrderID string) (*core.Order, error) {
	path := fmt.Sprintf("/api/v5/trade/order?instId=%s", ccxtToWS(symbol))
	if orderID != 0 {
		path += fmt.Sprintf("&ordId=%d", orderID)
	} else if clientOrderID != "" {
		path += fmt.Sprintf("&clOrdId=%s", clientOrderID)
	}
	url := e.baseURL() + path

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if err := e.signRequest(req, ""); err != nil {
		return nil, err
	}
	if err := e.waitForRateLimit(ctx); err != nil {
		return nil, err
	}

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var response struct {
		Code string `json:"code"`
		Data []struct {
			InstID    string `json:"instId"`
			OrdID     string `json:"ordId"`
			ClOrdID   string `json:"clOrdId"`
			Px        string `json:"px"`
			Sz        string `json:"sz"`
			Side      string `json:"side"`
			State     string `json:"state"`
			AccFillSz string `json:"accFillSz"`
			AvgPx     string `json:"avgPx"`
			UTime     string `json:"uTime"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, err
	}
	if response.Code != "0" {
		return nil, e.parseError(body)
	}
	if len(response.Data) == 0 {
		return nil, apperrors.ErrOrderNotFound
	}

	raw := response.Data[0]
	id, _ := strconv.ParseInt(raw.OrdID, 10, 64)
	uts, _ := strconv.ParseInt(raw.UTime, 10, 64)

	side := core.OrderSideBuy
	if raw.Side == "sell" {
		side = core.OrderSideSell
	}

	return &core.Order{
		Symbol:        raw.InstID,
		OrderID:       id,
		ClientOrderID: raw.ClOrdID,
		Side:          side,
		Price:         e.ParseDecimal(raw.Px),
		Quantity:      e.ParseDecimal(raw.Sz),
		FilledQty:     e.ParseDecimal(raw.AccFillSz),
		AvgPrice:      e.ParseDecimal(raw.AvgPx),
		Status:        e.SafeMapOrderStatus(raw.State),
		UpdateTime:    e.ParseTimestamp(uts),
	}, nil
}

// ContractSize, TickSize, and MinAmount are all backed by the cached
// instrument metadata fetched from the public instruments endpoint.

func (e *OKXExchange) ContractSize(ctx context.Context, symbol string) (decimal.Decimal, error) {
	info, err := e.getSymbolInfo(ctx, symbol)
	if err != nil {
		return decimal.Zero, err
	}
	return info.ContractSize, nil
}

func (e *OKXExchange) TickSize(ctx context.Context, symbol string) (decimal.Decimal, error) {
	info, err := e.getSymbolInfo(ctx, symbol)
	if err != nil {
		return decimal.Zero, err
	}
	return info.TickSize, nil
}

func (e *OKXExchange) MinAmount(ctx context.Context, symbol string) (decimal.Decimal, error) {
	info, err := e.getSymbolInfo(ctx, symbol)
	if err != nil {
		return decimal.Zero, err
	}
	return info.MinAmount, nil
}

func (e *OKXExchange) getSymbolInfo(ctx context.Context, symbol string) (*core.SymbolInfo, error) {
	wsSymbol := ccxtToWS(symbol)

	e.mu.RLock()
	info, ok := e.symbolInfo[wsSymbol]
	e.mu.RUnlock()
	if ok {
		return info, nil
	}

	if err := e.fetchExchangeInfo(ctx); err != nil {
		return nil, err
	}

	e.mu.RLock()
	info, ok = e.symbolInfo[wsSymbol]
	e.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("symbol info not found for %s", symbol)
	}
	return info, nil
}

func (e *OKXExchange) fetchExchangeInfo(ctx context.Context) error {
	url := e.baseURL() + "/api/v5/public/instruments?instType=" + instType

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	if err := e.waitForRateLimit(ctx); err != nil {
		return err
	}

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	var response struct {
		Code string `json:"code"`
		Data []struct {
			InstID string `json:"instId"`
			CtVal  string `json:"ctVal"`
			TickSz string `json:"tickSz"`
			MinSz  string `json:"minSz"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return err
	}
	if response.Code != "0" {
		return e.parseError(body)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for _, inst := range response.Data {
		ctVal := e.ParseDecimal(inst.CtVal)
		tickSz := e.ParseDecimal(inst.TickSz)
		minSz := e.ParseDecimal(inst.MinSz)

		e.symbolInfo[inst.InstID] = &core.SymbolInfo{
			Symbol:        inst.InstID,
			ContractSize:  ctVal,
			TickSize:      tickSz,
			MinAmount:     minSz,
			PriceDecimals: int(-tickSz.Exponent()),
			QtyDecimals:   int(-minSz.Exponent()),
		}
	}

	return nil
}

// Close releases the exchange adapter's resources. OKX's REST client has
// none beyond the pooled transport, which http.Client owns.
func (e *OKXExchange) Close() error {
	return nil
}
