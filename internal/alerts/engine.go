// Package alerts implements the indicator confirmation engine: it turns
// market/indicator snapshots into alerts and maintains the per-symbol
// active-signal registry.
package alerts

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"tradepilot/internal/market"
	"tradepilot/internal/signal"
)

// Severity grades an alert.
type Severity string

const (
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// Type identifies the alert kind.
type Type string

const (
	TypePriceMove          Type = "PRICE_MOVE"
	TypeStrongBuy          Type = "STRONG_BUY"
	TypeStrongSell         Type = "STRONG_SELL"
	TypeConflictingSignals Type = "CONFLICTING_SIGNALS"
	TypeEntryOpportunity   Type = "ENTRY_OPPORTUNITY"
	TypeStopLossNear       Type = "STOP_LOSS_NEAR"
	TypeTakeProfitNear     Type = "TAKE_PROFIT_NEAR"
	TypeStaleSignal        Type = "STALE_SIGNAL"
)

// Alert is an informational event emitted by the engine.
type Alert struct {
	Type       Type      `json:"type"`
	Severity   Severity  `json:"severity"`
	Symbol     string    `json:"symbol"`
	Message    string    `json:"message"`
	Indicators []string  `json:"indicators,omitempty"`
	Price      float64   `json:"price"`
	Timestamp  time.Time `json:"timestamp"`
}

// Thresholds holds the engine's tuning knobs.
type Thresholds struct {
	PriceChangePct        float64       `json:"price_change_pct"`
	PriceChangeHighPct    float64       `json:"price_change_high_pct"`
	RSIOverbought         float64       `json:"rsi_overbought"`
	RSIOversold           float64       `json:"rsi_oversold"`
	RSICriticalOverbought float64       `json:"rsi_critical_overbought"`
	RSICriticalOversold   float64       `json:"rsi_critical_oversold"`
	ConfirmationThreshold int           `json:"confirmation_threshold"`
	EntryOpportunityPct   float64       `json:"entry_opportunity_pct"`
	StopLossHitPct        float64       `json:"stop_loss_hit_pct"`
	TakeProfitApproachPct float64       `json:"take_profit_approach_pct"`
	StaleSignalAge        time.Duration `json:"stale_signal_age"`
	SignalRetention       time.Duration `json:"signal_retention"`
}

// DefaultThresholds returns the reference thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		PriceChangePct:        5,
		PriceChangeHighPct:    10,
		RSIOverbought:         70,
		RSIOversold:           30,
		RSICriticalOverbought: 80,
		RSICriticalOversold:   20,
		ConfirmationThreshold: 2,
		EntryOpportunityPct:   1,
		StopLossHitPct:        2,
		TakeProfitApproachPct: 2,
		StaleSignalAge:        24 * time.Hour,
		SignalRetention:       72 * time.Hour,
	}
}

// Engine evaluates alerts and owns the active-signal registry. CheckAlerts
// is read-only; only the signal registry mutates, under the engine lock.
type Engine struct {
	mu         sync.RWMutex
	thresholds Thresholds
	signals    map[string]*signal.Active
	logger     zerolog.Logger
}

// NewEngine creates an engine with the given thresholds.
func NewEngine(th Thresholds, logger zerolog.Logger) *Engine {
	return &Engine{
		thresholds: th,
		signals:    make(map[string]*signal.Active),
		logger:     logger.With().Str("component", "AlertEngine").Logger(),
	}
}

// CheckAlerts evaluates all alert rules for one symbol. prev may be nil for
// a symbol seen for the first time; that skips only the price-delta rule.
func (e *Engine) CheckAlerts(symbol string, cur market.Snapshot, prev *market.Snapshot, ind market.Indicators) []Alert {
	now := time.Now()
	var out []Alert

	if prev != nil && prev.Price > 0 {
		deltaPct := (cur.Price - prev.Price) / prev.Price * 100
		if math.Abs(deltaPct) >= e.thresholds.PriceChangePct {
			sev := SeverityMedium
			if math.Abs(deltaPct) >= e.thresholds.PriceChangeHighPct {
				sev = SeverityHigh
			}
			out = append(out, Alert{
				Type:      TypePriceMove,
				Severity:  sev,
				Symbol:    symbol,
				Message:   fmt.Sprintf("%s moved %+.2f%% to %.4f", symbol, deltaPct, cur.Price),
				Price:     cur.Price,
				Timestamp: now,
			})
		}
	}

	out = append(out, e.confirmationAlerts(symbol, cur.Price, ind, now)...)
	out = append(out, e.trackingAlerts(symbol, cur.Price, now)...)
	return out
}

func (e *Engine) confirmationAlerts(symbol string, price float64, ind market.Indicators, now time.Time) []Alert {
	votes := e.IndicatorVotes(ind)

	var buy, sell []Vote
	for _, v := range votes {
		if v.Direction == signal.ActionBuy {
			buy = append(buy, v)
		} else {
			sell = append(sell, v)
		}
	}

	var out []Alert
	buyConfirmed := len(buy) >= e.thresholds.ConfirmationThreshold
	sellConfirmed := len(sell) >= e.thresholds.ConfirmationThreshold

	if buyConfirmed {
		out = append(out, Alert{
			Type:       TypeStrongBuy,
			Severity:   confirmationSeverity(buy),
			Symbol:     symbol,
			Message:    fmt.Sprintf("%d indicators confirm BUY on %s", len(buy), symbol),
			Indicators: indicatorNames(buy),
			Price:      price,
			Timestamp:  now,
		})
	}
	if sellConfirmed {
		out = append(out, Alert{
			Type:       TypeStrongSell,
			Severity:   confirmationSeverity(sell),
			Symbol:     symbol,
			Message:    fmt.Sprintf("%d indicators confirm SELL on %s", len(sell), symbol),
			Indicators: indicatorNames(sell),
			Price:      price,
			Timestamp:  now,
		})
	}
	if buyConfirmed && sellConfirmed {
		out = append(out, Alert{
			Type:       TypeConflictingSignals,
			Severity:   SeverityMedium,
			Symbol:     symbol,
			Message:    fmt.Sprintf("conflicting BUY and SELL confirmations on %s, consider reduced size or deferral", symbol),
			Indicators: indicatorNames(votes),
			Price:      price,
			Timestamp:  now,
		})
	}
	return out
}

func (e *Engine) trackingAlerts(symbol string, price float64, now time.Time) []Alert {
	e.mu.RLock()
	active, ok := e.signals[symbol]
	e.mu.RUnlock()
	if !ok || active.Status != signal.StatusActive {
		return nil
	}

	var out []Alert
	th := e.thresholds

	if active.EntryPoint > 0 {
		distPct := math.Abs(price-active.EntryPoint) / active.EntryPoint * 100
		if distPct <= th.EntryOpportunityPct {
			out = append(out, Alert{
				Type:      TypeEntryOpportunity,
				Severity:  SeverityHigh,
				Symbol:    symbol,
				Message:   fmt.Sprintf("%s at %.4f is within %.1f%% of signal entry %.4f", symbol, price, th.EntryOpportunityPct, active.EntryPoint),
				Price:     price,
				Timestamp: now,
			})
		}
	}

	if active.StopLoss > 0 && nearStop(active.Action, price, active.StopLoss, th.StopLossHitPct) {
		out = append(out, Alert{
			Type:      TypeStopLossNear,
			Severity:  SeverityCritical,
			Symbol:    symbol,
			Message:   fmt.Sprintf("%s at %.4f is approaching stop loss %.4f", symbol, price, active.StopLoss),
			Price:     price,
			Timestamp: now,
		})
	}

	if active.TakeProfit > 0 && nearTarget(active.Action, price, active.TakeProfit, th.TakeProfitApproachPct) {
		out = append(out, Alert{
			Type:      TypeTakeProfitNear,
			Severity:  SeverityHigh,
			Symbol:    symbol,
			Message:   fmt.Sprintf("%s at %.4f is approaching take profit %.4f", symbol, price, active.TakeProfit),
			Price:     price,
			Timestamp: now,
		})
	}

	if active.Age(now) > th.StaleSignalAge {
		out = append(out, Alert{
			Type:      TypeStaleSignal,
			Severity:  SeverityMedium,
			Symbol:    symbol,
			Message:   fmt.Sprintf("signal %s is older than %s", active.ID, th.StaleSignalAge),
			Price:     price,
			Timestamp: now,
		})
	}
	return out
}

// nearStop reports whether price is within pct of the stop on the side the
// stop would actually trigger from.
func nearStop(action signal.Action, price, stop, pct float64) bool {
	switch action {
	case signal.ActionBuy:
		return price <= stop*(1+pct/100)
	case signal.ActionSell:
		return price >= stop*(1-pct/100)
	}
	return false
}

func nearTarget(action signal.Action, price, target, pct float64) bool {
	switch action {
	case signal.ActionBuy:
		return price >= target*(1-pct/100)
	case signal.ActionSell:
		return price <= target*(1+pct/100)
	}
	return false
}

func confirmationSeverity(votes []Vote) Severity {
	for _, v := range votes {
		if v.Strength == SeverityCritical {
			return SeverityCritical
		}
	}
	return SeverityHigh
}

func indicatorNames(votes []Vote) []string {
	names := make([]string, 0, len(votes))
	for _, v := range votes {
		names = append(names, v.Indicator)
	}
	return names
}

// SetTradingSignals registers tradable candidates as active signals,
// replacing any existing signal for the same symbol. HOLD candidates are
// ignored.
func (e *Engine) SetTradingSignals(candidates []signal.Candidate) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, c := range candidates {
		if !c.Tradable() {
			continue
		}
		active := signal.NewActive(c)
		e.signals[c.Symbol] = active
		e.logger.Info().
			Str("symbol", c.Symbol).
			Str("action", string(c.Action)).
			Float64("confidence", c.Confidence).
			Str("id", active.ID).
			Msg("signal tracked")
	}
}

// GetActiveSignals returns a copy of the registry.
func (e *Engine) GetActiveSignals() []signal.Active {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]signal.Active, 0, len(e.signals))
	for _, s := range e.signals {
		out = append(out, *s)
	}
	return out
}

// MarkCompleted flags a symbol's signal as completed; the next cleanup pass
// removes it.
func (e *Engine) MarkCompleted(symbol string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if s, ok := e.signals[symbol]; ok {
		s.Status = signal.StatusCompleted
		s.UpdatedAt = time.Now()
	}
}

// CleanupSignals drops completed signals and signals past the retention
// ceiling. The caller schedules it; the engine runs no timers of its own.
func (e *Engine) CleanupSignals() int {
	now := time.Now()
	e.mu.Lock()
	defer e.mu.Unlock()

	removed := 0
	for symbol, s := range e.signals {
		if s.Status == signal.StatusCompleted || s.Age(now) > e.thresholds.SignalRetention {
			delete(e.signals, symbol)
			removed++
		}
	}
	if removed > 0 {
		e.logger.Debug().Int("removed", removed).Msg("signal registry cleaned")
	}
	return removed
}
