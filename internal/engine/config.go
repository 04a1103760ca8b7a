package engine

import (
	"time"

	"dcaengine/internal/config"

	"github.com/shopspring/decimal"
)

// Config holds the per-Engine tuning constants from spec.md §3, plus the
// per-(user,symbol) parameters a Supervisor supplies at construction time.
type Config struct {
	Symbol      string
	Leverage    int
	LegNotional decimal.Decimal

	TradeStep       decimal.Decimal // grid spacing, e.g. 0.0015
	TPStep          decimal.Decimal // TP offset, e.g. 0.0015
	MaxDCA          int             // grid depth, e.g. 12
	BatchPause      time.Duration   // pause between mutating calls in a reconcile pass
	TickInterval    time.Duration   // tick loop period
	CatchupThrottle time.Duration   // minimum gap between catch-up orders
	MaxCatchupLegs  int             // clamp for missed-leg aggregation
	ReenterCooldown time.Duration   // minimum gap between re-entries
	MetricsEvery    time.Duration   // periodic metrics emission cadence

	EnterOnStart  bool // place an initial market short if flat at on_open
	ReenterOnFlat bool // re-enter after an external flattening, cooldown permitting
	CatchupIOC    bool // use IOC limit instead of market for catch-up orders

	MailboxSize int // buffered capacity of the engine's dispatch mailbox
}

// DefaultConfig returns the spec-mandated tuning defaults. Symbol, Leverage
// and LegNotional are per-(user,symbol) and left for the caller to fill in.
func DefaultConfig() Config {
	return Config{
		TradeStep:       decimal.RequireFromString("0.0015"),
		TPStep:          decimal.RequireFromString("0.0015"),
		MaxDCA:          12,
		BatchPause:      150 * time.Millisecond,
		TickInterval:    1500 * time.Millisecond,
		CatchupThrottle: 3 * time.Second,
		MaxCatchupLegs:  6,
		ReenterCooldown: 5 * time.Second,
		MetricsEvery:    30 * time.Second,
		EnterOnStart:    true,
		ReenterOnFlat:   true,
		CatchupIOC:      false,
		MailboxSize:     64,
	}
}

// ConfigFromTrading builds an Engine Config from a loaded TradingConfig,
// overlaying its tuning fields onto DefaultConfig so a zero-value field in
// the YAML (e.g. an omitted tick_interval_ms) falls back to the spec default
// instead of becoming a zero duration. The boolean flags (EnterOnStart,
// ReenterOnFlat, CatchupIOC) are copied as given, so an omitted flag is
// false even where DefaultConfig sets it true.
func ConfigFromTrading(tc config.TradingConfig) Config {
	cfg := DefaultConfig()

	cfg.Symbol = tc.Symbol
	cfg.Leverage = tc.Leverage
	cfg.LegNotional = decimal.NewFromFloat(tc.LegNotional)

	if tc.TradeStep > 0 {
		cfg.TradeStep = decimal.NewFromFloat(tc.TradeStep)
	}
	if tc.TPStep > 0 {
		cfg.TPStep = decimal.NewFromFloat(tc.TPStep)
	}
	if tc.MaxDCA > 0 {
		cfg.MaxDCA = tc.MaxDCA
	}
	if tc.BatchPauseMS > 0 {
		cfg.BatchPause = time.Duration(tc.BatchPauseMS) * time.Millisecond
	}
	if tc.TickIntervalMS > 0 {
		cfg.TickInterval = time.Duration(tc.TickIntervalMS) * time.Millisecond
	}
	if tc.CatchupThrottleSec > 0 {
		cfg.CatchupThrottle = time.Duration(tc.CatchupThrottleSec) * time.Second
	}
	if tc.MaxCatchupLegs > 0 {
		cfg.MaxCatchupLegs = tc.MaxCatchupLegs
	}
	if tc.ReenterCooldownSec > 0 {
		cfg.ReenterCooldown = time.Duration(tc.ReenterCooldownSec) * time.Second
	}

	cfg.EnterOnStart = tc.EnterOnStart
	cfg.ReenterOnFlat = tc.ReenterOnFlat
	cfg.CatchupIOC = tc.CatchupIOC

	return cfg
}
