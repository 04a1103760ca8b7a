// Package engine implements the per-(user,instrument) DCA/grid trading state
// machine: it ingests price ticks, order-update events, and position-update
// events; maintains a deterministic grid of open DCA and TP orders anchored
// on the last filled leg; reconciles local intent with exchange-reported
// open orders; and emits catch-up orders on rapid adverse moves.
package engine

import (
	"context"
	"sync"
	"time"

	"dcaengine/internal/core"
	"dcaengine/pkg/telemetry"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/trace"
)

// gridOrder is the Engine's local record of a tracked open order.
type gridOrder struct {
	OrderID       int64
	ClientOrderID string
	Price         decimal.Decimal
	Amount        decimal.Decimal
}

// counters mirrors the monotone-non-decreasing metrics field of spec.md §3.
type counters struct {
	catchup        int64
	tpTrim         int64
	reconcileDrift int64
	oos            int64
}

// Engine is the per-(user,symbol) trading state machine. All mutable state
// below is touched exclusively by the single goroutine running (*Engine).run
// — the mailbox dispatch loop — so no field requires its own lock; this is
// the generalization of the teacher's per-engine mutex to an explicit
// single-task executor (spec.md §5).
type Engine struct {
	userID string
	cfg    Config

	exchange core.ExchangeClient
	stream   core.EventStream
	logger   core.ILogger
	metrics  *engineMetrics
	tracer   trace.Tracer

	mailbox chan func(ctx context.Context)

	runCtx    context.Context
	runCancel context.CancelFunc
	runDone   chan struct{}

	tickCancel context.CancelFunc
	tickDone   chan struct{}

	startOnce sync.Once
	stopOnce  sync.Once

	// --- state owned by the mailbox goroutine only ---
	lastFilledLegPrice    decimal.Decimal
	hasLastFilledLegPrice bool
	gridAnchorPrice       decimal.Decimal
	hasGridAnchorPrice    bool
	openDCA               map[int64]*gridOrder
	openTP                map[int64]*gridOrder
	tpCreatedForLeg       map[string]struct{}
	lastCatchupTS         time.Time
	lastReenterTS         time.Time
	counters              counters
	lastMetricsEmit       time.Time
}

// New constructs an Engine for (userID, cfg.Symbol). The exchange and stream
// are owned by this Engine for its lifetime; the caller (Supervisor) is
// responsible for constructing fresh ones per Start.
func New(userID string, cfg Config, exchange core.ExchangeClient, stream core.EventStream, logger core.ILogger) *Engine {
	l := logger.WithFields(map[string]interface{}{
		"component": "engine",
		"user_id":   userID,
		"symbol":    cfg.Symbol,
	})
	return &Engine{
		userID:          userID,
		cfg:             cfg,
		exchange:        exchange,
		stream:          stream,
		logger:          l,
		metrics:         getEngineMetrics(l),
		tracer:          telemetry.GetTracer("engine"),
		mailbox:         make(chan func(ctx context.Context), cfg.MailboxSize),
		openDCA:         make(map[int64]*gridOrder),
		openTP:          make(map[int64]*gridOrder),
		tpCreatedForLeg: make(map[string]struct{}),
	}
}

// Start wires the event stream callbacks, begins the mailbox dispatch loop,
// and authenticates the stream. It returns once the stream's Start call has
// been issued; on_open drives initial entry and the tick loop asynchronously.
func (e *Engine) Start(ctx context.Context) error {
	var startErr error
	e.startOnce.Do(func() {
		e.runCtx, e.runCancel = context.WithCancel(ctx)
		e.runDone = make(chan struct{})

		e.stream.OnOpen(func() { e.submit(e.handleOpen) })
		e.stream.OnOrderUpdate(func(ev *core.OrderUpdateEvent) {
			e.submit(func(ctx context.Context) { e.handleOrderUpdate(ctx, ev) })
		})
		e.stream.OnPositionUpdate(func(ev *core.PositionUpdateEvent) {
			e.submit(func(ctx context.Context) { e.handlePositionUpdate(ctx, ev) })
		})
		e.stream.OnClose(func(code int, reason string) {
			e.submit(func(ctx context.Context) { e.handleClose(code, reason) })
		})
		e.stream.OnError(func(err error) {
			e.submit(func(ctx context.Context) { e.handleError(err) })
		})

		go e.run()

		startErr = e.stream.Start(e.runCtx)
	})
	return startErr
}

// Stop signals the event stream to stop, then drains the tick task and the
// mailbox loop. Safe to call multiple times.
func (e *Engine) Stop() error {
	var err error
	e.stopOnce.Do(func() {
		if e.stream != nil {
			err = e.stream.Stop()
		}
		if e.runCancel != nil {
			e.runCancel()
		}
		if e.runDone != nil {
			<-e.runDone
		}
	})
	return err
}

// submit enqueues fn for serialized execution on the mailbox goroutine. It
// never blocks the caller beyond the mailbox's buffer capacity, matching the
// spec's requirement that the listener task not stall on Engine processing.
func (e *Engine) submit(fn func(ctx context.Context)) {
	select {
	case e.mailbox <- fn:
	case <-e.runCtx.Done():
	}
}

// run is the engine's single dispatch goroutine: every callback from the
// event stream and every tick-loop iteration executes here, one at a time.
func (e *Engine) run() {
	defer close(e.runDone)
	for {
		select {
		case <-e.runCtx.Done():
			if e.tickCancel != nil {
				e.tickCancel()
			}
			if e.tickDone != nil {
				<-e.tickDone
			}
			return
		case fn := <-e.mailbox:
			fn(e.runCtx)
		}
	}
}

// handleOpen implements §4.1 on_open: optional initial entry, then start of
// the tick loop.
func (e *Engine) handleOpen(ctx context.Context) {
	e.logger.Info("event stream open")

	if e.cfg.EnterOnStart {
		pos, err := e.exchange.Position(ctx, e.cfg.Symbol)
		if err != nil {
			e.logger.Error("failed to fetch position on open", "error", err)
		} else if pos.Contracts.IsZero() {
			e.enter(ctx)
		}
	}

	e.ensureTickLoop()
}

// enter places the initial (or re-entry) market short and, on success,
// establishes both last_filled_leg_price and grid_anchor_price at the fill
// reference. Failures are logged and never prevent the tick loop.
func (e *Engine) enter(ctx context.Context) {
	price, err := e.exchange.CurrentPrice(ctx, e.cfg.Symbol)
	if err != nil {
		e.logger.Error("failed to fetch current price for entry", "error", err)
		return
	}

	info, err := e.symbolSizing(ctx)
	if err != nil {
		e.logger.Error("failed to fetch symbol sizing for entry", "error", err)
		return
	}

	qty := contractsFor(e.cfg.LegNotional, price, info.contractSize, info.qtyDecimals)
	if qty.LessThan(info.minAmount) {
		e.logger.Warn("entry skipped: computed contracts below min_amount", "qty", qty, "min_amount", info.minAmount)
		e.metrics.incOOS(ctx, e.cfg.Symbol)
		e.counters.oos++
		return
	}

	order, err := e.exchange.PlaceMarketShort(ctx, &core.PlaceOrderRequest{
		Symbol:   e.cfg.Symbol,
		Side:     core.OrderSideSell,
		Type:     core.OrderTypeMarket,
		Quantity: qty,
		PosSide:  "short",
	})
	if err != nil {
		e.logger.Error("initial entry failed", "error", err)
		return
	}

	ref := order.AvgPrice
	if ref.IsZero() {
		ref = price
	}
	e.lastFilledLegPrice = ref
	e.hasLastFilledLegPrice = true
	e.gridAnchorPrice = ref
	e.hasGridAnchorPrice = true
	e.logger.Info("initial entry placed", "qty", qty, "ref_price", ref)
}

// symbolSizing carries the exchange metadata needed for contract sizing.
type symbolSizing struct {
	contractSize decimal.Decimal
	tickSize     decimal.Decimal
	minAmount    decimal.Decimal
	qtyDecimals  int32
}

func (e *Engine) symbolSizing(ctx context.Context) (symbolSizing, error) {
	contractSize, err := e.exchange.ContractSize(ctx, e.cfg.Symbol)
	if err != nil {
		return symbolSizing{}, err
	}
	tickSize, err := e.exchange.TickSize(ctx, e.cfg.Symbol)
	if err != nil {
		return symbolSizing{}, err
	}
	minAmount, err := e.exchange.MinAmount(ctx, e.cfg.Symbol)
	if err != nil {
		return symbolSizing{}, err
	}
	return symbolSizing{
		contractSize: contractSize,
		tickSize:     tickSize,
		minAmount:    minAmount,
		qtyDecimals:  int32(-minAmount.Exponent()),
	}, nil
}

// handleOrderUpdate implements §4.1 on_order_update.
func (e *Engine) handleOrderUpdate(ctx context.Context, ev *core.OrderUpdateEvent) {
	if ev == nil {
		return
	}
	switch ev.Status {
	case core.OrderStatusCanceled:
		delete(e.openDCA, ev.OrderID)
		delete(e.openTP, ev.OrderID)
	case core.OrderStatusFilled, core.OrderStatusPartiallyFilled:
		if _, tracked := e.openTP[ev.OrderID]; tracked {
			delete(e.openTP, ev.OrderID)
		}
		e.handleLegFill(ctx, ev)
	default:
		// NEW and unknown states carry no actionable transition here.
	}
}

// handlePositionUpdate implements §4.1 on_position_update.
func (e *Engine) handlePositionUpdate(ctx context.Context, ev *core.PositionUpdateEvent) {
	if ev == nil {
		return
	}
	e.metrics.setPosition(e.cfg.Symbol, contractsToFloat(ev.Contracts))

	if !ev.Contracts.IsZero() {
		return
	}

	e.cancelAllTracked(ctx)

	if e.cfg.ReenterOnFlat && time.Since(e.lastReenterTS) >= e.cfg.ReenterCooldown {
		e.lastReenterTS = time.Now()
		e.enter(ctx)
	}
}

func (e *Engine) cancelAllTracked(ctx context.Context) {
	for id, o := range e.openDCA {
		if err := cancelTrackedOrder(ctx, e.exchange, e.cfg.Symbol, id, o.ClientOrderID); err != nil {
			e.logger.Warn("cancel DCA order failed during flatten", "order_id", id, "error", err)
		}
	}
	for id, o := range e.openTP {
		if err := cancelTrackedOrder(ctx, e.exchange, e.cfg.Symbol, id, o.ClientOrderID); err != nil {
			e.logger.Warn("cancel TP order failed during flatten", "order_id", id, "error", err)
		}
	}
	e.openDCA = make(map[int64]*gridOrder)
	e.openTP = make(map[int64]*gridOrder)
}

// cancelTrackedOrder cancels one tracked order through the narrow
// core.IOrderExecutor surface. Every ExchangeClient qualifies structurally,
// but typing this call's dependency as IOrderExecutor documents that
// cancel-and-rebuild paths never need position, sizing, or stream state.
func cancelTrackedOrder(ctx context.Context, executor core.IOrderExecutor, symbol string, orderID int64, clientOrderID string) error {
	return executor.CancelOrder(ctx, symbol, orderID, clientOrderID)
}

// handleClose implements §4.1 on_close: stop the tick task, don't touch
// exchange state.
func (e *Engine) handleClose(code int, reason string) {
	e.logger.Warn("event stream closed", "code", code, "reason", reason)
	if e.tickCancel != nil {
		e.tickCancel()
	}
}

// handleError implements §4.1 on_error: log only.
func (e *Engine) handleError(err error) {
	e.logger.Error("event stream error", "error", err)
}

func (e *Engine) ensureTickLoop() {
	if e.tickCancel != nil {
		return
	}
	tickCtx, cancel := context.WithCancel(e.runCtx)
	e.tickCancel = cancel
	e.tickDone = make(chan struct{})
	go e.tickLoop(tickCtx)
}

func contractsToFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}
