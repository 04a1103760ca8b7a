package engine

import (
	"context"
	"testing"
	"time"

	"dcaengine/internal/core"
	"dcaengine/internal/mock"
	"dcaengine/pkg/logging"

	"github.com/shopspring/decimal"
)

func testEngine(t *testing.T, ex *mock.Exchange) (*Engine, *mock.Stream) {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Symbol = "BTC-USDT-SWAP"
	cfg.Leverage = 5
	cfg.LegNotional = decimal.NewFromInt(100)

	logger, _ := logging.NewZapLogger("INFO")
	stream := mock.NewStream()
	e := New("user1", cfg, ex, stream, logger)
	return e, stream
}

func TestContractsFor(t *testing.T) {
	qty := contractsFor(decimal.NewFromInt(100), decimal.NewFromInt(1000), decimal.NewFromFloat(0.01), 2)
	if !qty.Equal(decimal.NewFromInt(10)) {
		t.Errorf("expected 10 contracts, got %v", qty)
	}
}

func TestBucketIdentity(t *testing.T) {
	tick := decimal.NewFromFloat(0.1)
	a := decimal.NewFromFloat(1000.04)
	b := decimal.NewFromFloat(1000.02)
	if bucket(a, tick) != bucket(b, tick) {
		t.Errorf("expected equal buckets for %v and %v", a, b)
	}
	c := decimal.NewFromFloat(1000.2)
	if bucket(a, tick) == bucket(c, tick) {
		t.Errorf("expected distinct buckets for %v and %v", a, c)
	}
}

func TestClientIDDeterminism(t *testing.T) {
	price := decimal.NewFromFloat(1001.5)
	a := legClientID("BTC-USDT-SWAP", price)
	b := legClientID("BTC-USDT-SWAP", price)
	if a != b {
		t.Errorf("leg client id not deterministic: %s vs %s", a, b)
	}
	if len(a) > maxClientIDLen {
		t.Errorf("client id exceeds max length: %s", a)
	}

	tp := tpClientIDForLeg(a)
	if tp != tpPrefix+a[len(legPrefix):] {
		t.Errorf("unexpected tp client id: %s", tp)
	}

	cu1 := catchupClientID("BTC-USDT-SWAP", decimal.NewFromInt(1010))
	cu2 := catchupClientID("BTC-USDT-SWAP", decimal.NewFromInt(1010))
	if cu1 != cu2 {
		t.Errorf("catchup client id not deterministic: %s vs %s", cu1, cu2)
	}
}

// Scenario 1: cold start, flat position.
func TestColdStartGridReconciliation(t *testing.T) {
	price := decimal.NewFromInt(1000)
	ex := mock.NewExchange(price)
	ex.SetSizing(decimal.NewFromFloat(0.01), decimal.NewFromFloat(0.1), decimal.NewFromFloat(0.01))

	e, _ := testEngine(t, ex)
	e.cfg.BatchPause = time.Millisecond
	ctx := context.Background()

	e.enter(ctx)
	if !e.hasGridAnchorPrice || !e.gridAnchorPrice.Equal(price) {
		t.Fatalf("expected anchor 1000, got %v (set=%v)", e.gridAnchorPrice, e.hasGridAnchorPrice)
	}

	info, err := e.symbolSizing(ctx)
	if err != nil {
		t.Fatalf("symbolSizing failed: %v", err)
	}
	e.reconcileGrid(ctx, price, info)

	if len(e.openDCA) != e.cfg.MaxDCA {
		t.Errorf("expected %d LEG orders, got %d", e.cfg.MaxDCA, len(e.openDCA))
	}

	step := decimal.NewFromFloat(1).Add(e.cfg.TradeStep)
	cursor := price
	wantBuckets := make(map[int64]bool)
	for i := 0; i < e.cfg.MaxDCA; i++ {
		cursor = cursor.Mul(step)
		wantBuckets[bucket(cursor, info.tickSize)] = true
	}
	for _, o := range e.openDCA {
		if !wantBuckets[bucket(o.Price, info.tickSize)] {
			t.Errorf("order at price %v not in target grid", o.Price)
		}
	}
}

// Scenario 2: leg fill moves the anchor and places exactly one TP.
func TestLegFillMovesAnchorAndPlacesTP(t *testing.T) {
	ex := mock.NewExchange(decimal.NewFromInt(1000))
	ex.SetSizing(decimal.NewFromFloat(0.01), decimal.NewFromFloat(0.1), decimal.NewFromFloat(0.01))
	e, _ := testEngine(t, ex)
	ctx := context.Background()

	fillPrice := decimal.NewFromFloat(1001.5)
	ev := &core.OrderUpdateEvent{
		Symbol:        e.cfg.Symbol,
		OrderID:       1,
		ClientOrderID: legClientID(e.cfg.Symbol, fillPrice),
		Side:          core.OrderSideSell,
		Status:        core.OrderStatusFilled,
		AvgPrice:      fillPrice,
		FilledQty:     decimal.NewFromInt(10),
	}
	e.handleOrderUpdate(ctx, ev)

	if !e.gridAnchorPrice.Equal(fillPrice) {
		t.Errorf("expected anchor %v, got %v", fillPrice, e.gridAnchorPrice)
	}
	if len(e.openTP) != 1 {
		t.Fatalf("expected exactly one TP, got %d", len(e.openTP))
	}
	for _, tp := range e.openTP {
		wantPx := fillPrice.Mul(oneMinus(e.cfg.TPStep))
		if !tp.Price.Equal(wantPx) {
			t.Errorf("expected tp price %v, got %v", wantPx, tp.Price)
		}
		if !tp.Amount.Equal(decimal.NewFromInt(10)) {
			t.Errorf("expected tp amount 10, got %v", tp.Amount)
		}
	}
}

// Scenario 6 / idempotence law: duplicate fill delivery creates exactly one TP.
func TestDuplicateFillDeliveryIdempotent(t *testing.T) {
	ex := mock.NewExchange(decimal.NewFromInt(1000))
	ex.SetSizing(decimal.NewFromFloat(0.01), decimal.NewFromFloat(0.1), decimal.NewFromFloat(0.01))
	e, _ := testEngine(t, ex)
	ctx := context.Background()

	fillPrice := decimal.NewFromFloat(1001.5)
	ev := &core.OrderUpdateEvent{
		Symbol:        e.cfg.Symbol,
		OrderID:       1,
		ClientOrderID: legClientID(e.cfg.Symbol, fillPrice),
		Side:          core.OrderSideSell,
		Status:        core.OrderStatusFilled,
		AvgPrice:      fillPrice,
		FilledQty:     decimal.NewFromInt(10),
	}
	e.handleOrderUpdate(ctx, ev)
	e.handleOrderUpdate(ctx, ev)

	if len(e.openTP) != 1 {
		t.Fatalf("expected exactly one TP after duplicate delivery, got %d", len(e.openTP))
	}
}

// Scenario 3: price jump triggers a clamped, throttled catch-up order.
func TestCatchUpOnPriceJump(t *testing.T) {
	ex := mock.NewExchange(decimal.NewFromFloat(1010))
	ex.SetSizing(decimal.NewFromFloat(0.01), decimal.NewFromFloat(0.1), decimal.NewFromFloat(0.01))
	e, _ := testEngine(t, ex)
	ctx := context.Background()

	e.lastFilledLegPrice = decimal.NewFromFloat(1001.5)
	e.hasLastFilledLegPrice = true

	info, err := e.symbolSizing(ctx)
	if err != nil {
		t.Fatalf("symbolSizing failed: %v", err)
	}
	e.catchUp(ctx, decimal.NewFromFloat(1010), info)

	if e.counters.catchup != 1 {
		t.Fatalf("expected catchup_count=1, got %d", e.counters.catchup)
	}
	if !e.gridAnchorPrice.IsZero() || e.hasGridAnchorPrice {
		t.Errorf("catch-up must never move the grid anchor")
	}

	// Within throttle window: a second call must be a no-op.
	e.catchUp(ctx, decimal.NewFromFloat(1015), info)
	if e.counters.catchup != 1 {
		t.Errorf("expected throttle to suppress second catch-up, got count=%d", e.counters.catchup)
	}
}

func TestCatchUpClampsToMax(t *testing.T) {
	ex := mock.NewExchange(decimal.NewFromInt(2000))
	ex.SetSizing(decimal.NewFromFloat(0.01), decimal.NewFromFloat(0.1), decimal.NewFromFloat(0.01))
	e, _ := testEngine(t, ex)
	ctx := context.Background()

	e.lastFilledLegPrice = decimal.NewFromInt(1000)
	e.hasLastFilledLegPrice = true

	info, _ := e.symbolSizing(ctx)
	e.catchUp(ctx, decimal.NewFromInt(2000), info)

	if len(ex.Open) != 0 {
		t.Errorf("market catch-up orders should not remain open")
	}
	if e.counters.catchup != 1 {
		t.Fatalf("expected one clamped catch-up order, got count=%d", e.counters.catchup)
	}
}

// Scenario 4: TP overshoot triggers a rebuild to match live position.
func TestTPOvershootRebuild(t *testing.T) {
	ex := mock.NewExchange(decimal.NewFromInt(1000))
	ex.SetSizing(decimal.NewFromFloat(0.01), decimal.NewFromFloat(0.1), decimal.NewFromFloat(0.01))
	ex.SetPosition(decimal.NewFromInt(-20), decimal.NewFromInt(1000))

	e, _ := testEngine(t, ex)
	ctx := context.Background()
	e.lastFilledLegPrice = decimal.NewFromInt(1000)
	e.hasLastFilledLegPrice = true

	e.openTP[100] = &gridOrder{OrderID: 100, ClientOrderID: "TPfoo1", Price: decimal.NewFromInt(995), Amount: decimal.NewFromInt(15)}
	e.openTP[101] = &gridOrder{OrderID: 101, ClientOrderID: "TPfoo2", Price: decimal.NewFromInt(994), Amount: decimal.NewFromInt(10)}

	info, _ := e.symbolSizing(ctx)
	e.reconcileTP(ctx, decimal.NewFromInt(1000), info)

	if e.counters.tpTrim != 1 {
		t.Fatalf("expected tp_trim_count=1, got %d", e.counters.tpTrim)
	}
	if len(e.openTP) != 1 {
		t.Fatalf("expected exactly one rebuilt TP, got %d", len(e.openTP))
	}
	for _, tp := range e.openTP {
		if !tp.Amount.Equal(decimal.NewFromInt(20)) {
			t.Errorf("expected rebuilt tp amount 20, got %v", tp.Amount)
		}
	}
}

// A TP's own fill must remove it from openTP directly, independent of the
// sell-only leg-advance logic in handleLegFill and independent of the next
// tick's reconcileTP overshoot rebuild.
func TestOwnTPFillRemovesFromOpenTP(t *testing.T) {
	ex := mock.NewExchange(decimal.NewFromInt(1000))
	ex.SetSizing(decimal.NewFromFloat(0.01), decimal.NewFromFloat(0.1), decimal.NewFromFloat(0.01))
	ex.SetPosition(decimal.NewFromInt(-20), decimal.NewFromInt(1000))

	e, _ := testEngine(t, ex)
	ctx := context.Background()

	e.openTP[100] = &gridOrder{OrderID: 100, ClientOrderID: "TPfoo1", Price: decimal.NewFromInt(995), Amount: decimal.NewFromInt(10)}
	e.openTP[101] = &gridOrder{OrderID: 101, ClientOrderID: "TPfoo2", Price: decimal.NewFromInt(994), Amount: decimal.NewFromInt(10)}

	e.handleOrderUpdate(ctx, &core.OrderUpdateEvent{
		OrderID:   100,
		Side:      core.OrderSideBuy,
		Status:    core.OrderStatusFilled,
		AvgPrice:  decimal.NewFromInt(995),
		FilledQty: decimal.NewFromInt(10),
	})

	if _, stillTracked := e.openTP[100]; stillTracked {
		t.Fatalf("expected filled TP 100 to be removed from openTP")
	}
	if _, otherTP := e.openTP[101]; !otherTP {
		t.Fatalf("expected untouched TP 101 to remain in openTP")
	}
	if e.counters.tpTrim != 0 {
		t.Fatalf("expected no rebuild to have run, got tp_trim_count=%d", e.counters.tpTrim)
	}
}

// Scenario 5: external flatten clears maps and re-enters after cooldown.
func TestPositionZeroClearsAndReenters(t *testing.T) {
	ex := mock.NewExchange(decimal.NewFromInt(1000))
	ex.SetSizing(decimal.NewFromFloat(0.01), decimal.NewFromFloat(0.1), decimal.NewFromFloat(0.01))
	e, _ := testEngine(t, ex)
	e.cfg.ReenterCooldown = 0
	ctx := context.Background()

	e.openDCA[1] = &gridOrder{OrderID: 1, ClientOrderID: "LEGfoo", Price: decimal.NewFromInt(1010), Amount: decimal.NewFromInt(1)}
	e.openTP[2] = &gridOrder{OrderID: 2, ClientOrderID: "TPfoo", Price: decimal.NewFromInt(990), Amount: decimal.NewFromInt(1)}
	ex.Open[1] = &core.Order{OrderID: 1}
	ex.Open[2] = &core.Order{OrderID: 2}

	e.handlePositionUpdate(ctx, &core.PositionUpdateEvent{Symbol: e.cfg.Symbol, Contracts: decimal.Zero})

	if len(e.openDCA) != 0 || len(e.openTP) != 0 {
		t.Fatalf("expected both maps cleared, got dca=%d tp=%d", len(e.openDCA), len(e.openTP))
	}
	if len(ex.Open) != 0 {
		t.Errorf("expected all exchange orders cancelled, got %d remaining", len(ex.Open))
	}
	if !e.hasGridAnchorPrice {
		t.Errorf("expected re-entry to set a new anchor")
	}
}

func TestReconcileDriftAbsorbsUntrackedOrders(t *testing.T) {
	ex := mock.NewExchange(decimal.NewFromInt(1000))
	ex.SetSizing(decimal.NewFromFloat(0.01), decimal.NewFromFloat(0.1), decimal.NewFromFloat(0.01))
	e, _ := testEngine(t, ex)
	ctx := context.Background()

	ex.Open[7] = &core.Order{OrderID: 7, ClientOrderID: "LEGabc100000", Side: core.OrderSideSell, Price: decimal.NewFromInt(1010), Quantity: decimal.NewFromInt(1)}
	ex.Open[8] = &core.Order{OrderID: 8, ClientOrderID: "TPabc100000", Side: core.OrderSideBuy, Price: decimal.NewFromInt(990), Quantity: decimal.NewFromInt(1)}

	e.openDCA[9] = &gridOrder{OrderID: 9}

	info, _ := e.symbolSizing(ctx)
	e.reconcileDrift(ctx, info)

	if _, ok := e.openDCA[9]; ok {
		t.Errorf("expected stale local id 9 to be dropped")
	}
	if _, ok := e.openDCA[7]; !ok {
		t.Errorf("expected untracked LEG order absorbed into openDCA")
	}
	if _, ok := e.openTP[8]; !ok {
		t.Errorf("expected untracked TP order absorbed into openTP")
	}
	if e.counters.reconcileDrift != 1 {
		t.Errorf("expected reconcile_drift_count=1, got %d", e.counters.reconcileDrift)
	}
}

func TestEngineLifecycleStartStop(t *testing.T) {
	ex := mock.NewExchange(decimal.NewFromInt(1000))
	ex.SetSizing(decimal.NewFromFloat(0.01), decimal.NewFromFloat(0.1), decimal.NewFromFloat(0.01))
	e, stream := testEngine(t, ex)
	e.cfg.EnterOnStart = false
	e.cfg.TickInterval = time.Hour

	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	stream.FireOpen()

	fillPrice := decimal.NewFromFloat(1001.5)
	stream.FireOrderUpdate(&core.OrderUpdateEvent{
		Symbol:        e.cfg.Symbol,
		OrderID:       1,
		ClientOrderID: legClientID(e.cfg.Symbol, fillPrice),
		Side:          core.OrderSideSell,
		Status:        core.OrderStatusFilled,
		AvgPrice:      fillPrice,
		FilledQty:     decimal.NewFromInt(5),
	})

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		e.submit(func(ctx context.Context) {})
		time.Sleep(10 * time.Millisecond)
		break
	}
	time.Sleep(50 * time.Millisecond)

	if err := e.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
}
