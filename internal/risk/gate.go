// Package risk implements the risk gate: the stage that decides whether a
// candidate signal may proceed to execution.
package risk

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"tradepilot/internal/market"
	"tradepilot/internal/signal"
)

// Limits is the immutable risk configuration. Runtime changes go through an
// explicit operator operation, never through ad-hoc mutation.
type Limits struct {
	MinConfidence        float64       `json:"min_confidence"`
	MaxOpenPositions     int           `json:"max_open_positions"`
	MaxDailyLossFraction float64       `json:"max_daily_loss_fraction"`
	MaxDrawdownFraction  float64       `json:"max_drawdown_fraction"`
	MaxPositionFraction  float64       `json:"max_position_fraction"` // of free balance, autonomous signals
	ManualFraction       float64       `json:"manual_fraction"`       // of free balance, operator signals
	RiskPerTradeFraction float64       `json:"risk_per_trade_fraction"`
	MaxTradeValue        float64       `json:"max_trade_value"`
	MaxSameDirection     int           `json:"max_same_direction"`
	VolatilityCeiling    float64       `json:"volatility_ceiling"` // (upper-lower)/middle
	ATRCeiling           float64       `json:"atr_ceiling"`        // ATR/price
	MinVolume24h         float64       `json:"min_volume_24h"`
	SymbolCooldown       time.Duration `json:"symbol_cooldown"`
}

// DefaultLimits returns the reference limits.
func DefaultLimits() Limits {
	return Limits{
		MinConfidence:        0.7,
		MaxOpenPositions:     3,
		MaxDailyLossFraction: 0.05,
		MaxDrawdownFraction:  0.15,
		MaxPositionFraction:  0.01,
		ManualFraction:       0.05,
		RiskPerTradeFraction: 0.02,
		MaxTradeValue:        1000,
		MaxSameDirection:     3,
		VolatilityCeiling:    0.10,
		ATRCeiling:           0.05,
		MinVolume24h:         100000,
		SymbolCooldown:       30 * time.Minute,
	}
}

// PositionView is the slice of position state the gate needs.
type PositionView struct {
	Symbol string `json:"symbol"`
	Side   string `json:"side"` // LONG or SHORT
}

// PortfolioView is a point-in-time snapshot of the portfolio.
type PortfolioView struct {
	OpenPositions   []PositionView `json:"open_positions"`
	DailyPnL        float64        `json:"daily_pnl"`
	ReferenceEquity float64        `json:"reference_equity"`
}

// AccountView is a point-in-time snapshot of account health.
type AccountView struct {
	Equity   float64 `json:"equity"`
	Drawdown float64 `json:"drawdown"` // fractional decline from peak equity
}

// MarketView carries optional market condition inputs. Nil fields mean the
// source is unavailable; the affected checks fail open and the verdict
// carries a caveat.
type MarketView struct {
	Price         float64
	Bollinger     *market.BollingerReading
	ATR           *float64
	NewsSentiment *signal.Action // BUY = bullish news, SELL = bearish
	Volume24h     float64        // 0 = unavailable
	Trend         *market.Tone
}

// Gate validates candidate signals against the configured limits. Every
// call is a point-in-time decision over the snapshots passed in. Limits
// change only through UpdateLimits, which is an audited operator action.
type Gate struct {
	mu     sync.RWMutex
	limits Limits
	logger zerolog.Logger
}

// NewGate creates a gate.
func NewGate(limits Limits, logger zerolog.Logger) *Gate {
	return &Gate{
		limits: limits,
		logger: logger.With().Str("component", "RiskGate").Logger(),
	}
}

// Limits returns the gate's current limits.
func (g *Gate) Limits() Limits {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.limits
}

// UpdateLimits replaces the limits and logs old and new values.
func (g *Gate) UpdateLimits(l Limits, actor string) {
	g.mu.Lock()
	old := g.limits
	g.limits = l
	g.mu.Unlock()

	g.logger.Warn().
		Str("actor", actor).
		Interface("old_limits", old).
		Interface("new_limits", l).
		Msg("risk limits updated")
}

// Validate runs every check and returns the combined verdict. All checks
// are evaluated, never short-circuited, so the verdict reports each failing
// check. Validate never returns an error; a rejection is a normal outcome.
func (g *Gate) Validate(sig signal.Candidate, portfolio PortfolioView, account AccountView, mkt MarketView) Verdict {
	g.mu.RLock()
	defer g.mu.RUnlock()

	v := Verdict{}

	v.record(g.checkConfidence(sig))
	v.record(g.checkExposure(portfolio))
	v.record(g.checkDailyLoss(portfolio))
	v.record(g.checkVolatility(mkt, &v))
	v.record(g.checkCorrelation(sig, portfolio, &v))
	v.record(g.checkDrawdown(account))
	v.record(g.checkMarketConditions(sig, mkt, &v))

	v.Accepted = true
	for _, c := range v.Checks {
		if !c.Passed {
			v.Accepted = false
			if v.Reason == "" {
				v.Reason = c.Detail
			}
		}
	}

	if !v.Accepted {
		g.logger.Info().
			Str("symbol", sig.Symbol).
			Str("action", string(sig.Action)).
			Strs("failed_checks", v.FailedChecks()).
			Str("reason", v.Reason).
			Msg("signal rejected")
	}
	return v
}

func (g *Gate) checkConfidence(sig signal.Candidate) CheckResult {
	if sig.Confidence >= g.limits.MinConfidence {
		return pass(CheckConfidence, fmt.Sprintf("confidence %.2f >= %.2f", sig.Confidence, g.limits.MinConfidence))
	}
	return fail(CheckConfidence, fmt.Sprintf("confidence %.2f below minimum %.2f", sig.Confidence, g.limits.MinConfidence))
}

func (g *Gate) checkExposure(p PortfolioView) CheckResult {
	if len(p.OpenPositions) < g.limits.MaxOpenPositions {
		return pass(CheckExposure, fmt.Sprintf("open positions %d/%d", len(p.OpenPositions), g.limits.MaxOpenPositions))
	}
	return fail(CheckExposure, fmt.Sprintf("max open positions reached (%d/%d)", len(p.OpenPositions), g.limits.MaxOpenPositions))
}

func (g *Gate) checkDailyLoss(p PortfolioView) CheckResult {
	if p.ReferenceEquity <= 0 {
		return pass(CheckDailyLoss, "no reference equity, daily loss not evaluated")
	}
	lossFraction := p.DailyPnL / p.ReferenceEquity
	if lossFraction > -g.limits.MaxDailyLossFraction {
		return pass(CheckDailyLoss, fmt.Sprintf("daily pnl %.2f%% of equity", lossFraction*100))
	}
	return fail(CheckDailyLoss, fmt.Sprintf("daily loss %.2f%% exceeds limit %.2f%%", -lossFraction*100, g.limits.MaxDailyLossFraction*100))
}

// checkVolatility rejects on a wide Bollinger band or an elevated ATR.
// Missing inputs pass open with a caveat.
func (g *Gate) checkVolatility(mkt MarketView, v *Verdict) CheckResult {
	if mkt.Bollinger == nil {
		v.caveat("volatility data unavailable, check passed open")
		return pass(CheckVolatility, "no band data")
	}

	bb := mkt.Bollinger
	if bb.Middle <= 0 {
		v.caveat("volatility data degenerate, check passed open")
		return pass(CheckVolatility, "degenerate band data")
	}
	width := (bb.Upper - bb.Lower) / bb.Middle
	if width > g.limits.VolatilityCeiling {
		return fail(CheckVolatility, fmt.Sprintf("band width %.2f%% exceeds ceiling %.2f%%", width*100, g.limits.VolatilityCeiling*100))
	}

	if mkt.ATR != nil && mkt.Price > 0 {
		atrRatio := *mkt.ATR / mkt.Price
		if atrRatio > g.limits.ATRCeiling {
			return fail(CheckVolatility, fmt.Sprintf("ATR %.2f%% of price exceeds ceiling %.2f%%", atrRatio*100, g.limits.ATRCeiling*100))
		}
	}
	return pass(CheckVolatility, fmt.Sprintf("band width %.2f%%", width*100))
}

// checkCorrelation rejects a new entry that would stack too many positions
// in one direction. Cross-asset correlation between the two reference
// assets is flagged as a caveat, never rejected.
func (g *Gate) checkCorrelation(sig signal.Candidate, p PortfolioView, v *Verdict) CheckResult {
	dir := directionFor(sig.Action)
	sameDir := 0
	for _, pos := range p.OpenPositions {
		if pos.Side == dir {
			sameDir++
		}
	}
	if sameDir+1 >= g.limits.MaxSameDirection {
		return fail(CheckCorrelation, fmt.Sprintf("would create %d %s positions (limit %d)", sameDir+1, dir, g.limits.MaxSameDirection))
	}

	if other, ok := referencePair(sig.Symbol); ok {
		for _, pos := range p.OpenPositions {
			if pos.Symbol == other && pos.Side == dir {
				v.caveat(fmt.Sprintf("correlated %s exposure already open on %s", dir, other))
			}
		}
	}
	return pass(CheckCorrelation, fmt.Sprintf("%d existing %s positions", sameDir, dir))
}

func (g *Gate) checkDrawdown(a AccountView) CheckResult {
	if a.Drawdown < g.limits.MaxDrawdownFraction {
		return pass(CheckDrawdown, fmt.Sprintf("drawdown %.2f%%", a.Drawdown*100))
	}
	return fail(CheckDrawdown, fmt.Sprintf("drawdown %.2f%% at or above limit %.2f%%", a.Drawdown*100, g.limits.MaxDrawdownFraction*100))
}

// checkMarketConditions combines up to three independent votes: news
// sentiment, liquidity floor and technical trend. Unavailable sources are
// excluded from the denominator. At least two available votes must agree
// with the signal's direction; with fewer than two available votes the
// check passes open with a caveat.
func (g *Gate) checkMarketConditions(sig signal.Candidate, mkt MarketView, v *Verdict) CheckResult {
	available, agreeing := 0, 0

	if mkt.NewsSentiment != nil {
		available++
		if *mkt.NewsSentiment == sig.Action {
			agreeing++
		}
	}
	if mkt.Volume24h > 0 {
		available++
		if mkt.Volume24h >= g.limits.MinVolume24h {
			agreeing++
		}
	}
	if mkt.Trend != nil {
		available++
		if trendAgrees(*mkt.Trend, sig.Action) {
			agreeing++
		}
	}

	if available < 2 {
		v.caveat("market condition sources unavailable, consensus passed open")
		return pass(CheckMarketConditions, fmt.Sprintf("only %d consensus source(s) available", available))
	}
	if agreeing >= 2 {
		return pass(CheckMarketConditions, fmt.Sprintf("%d/%d votes agree", agreeing, available))
	}
	return fail(CheckMarketConditions, fmt.Sprintf("only %d/%d market condition votes agree with %s", agreeing, available, sig.Action))
}

func trendAgrees(tone market.Tone, action signal.Action) bool {
	switch action {
	case signal.ActionBuy:
		return tone == market.ToneBullish || tone == market.ToneStrongBullish
	case signal.ActionSell:
		return tone == market.ToneBearish || tone == market.ToneStrongBearish
	}
	return false
}

func directionFor(action signal.Action) string {
	if action == signal.ActionSell {
		return "SHORT"
	}
	return "LONG"
}

// referencePair maps a reference asset to its correlated counterpart.
func referencePair(symbol string) (string, bool) {
	switch symbol {
	case "BTCUSDT":
		return "ETHUSDT", true
	case "ETHUSDT":
		return "BTCUSDT", true
	}
	return "", false
}
