// Package equity tracks current equity against its historical peak to
// derive drawdown for the risk gate.
package equity

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const historyCap = 100

// Balance is the account balance snapshot used for an equity update.
type Balance struct {
	Free   float64 `json:"free"`
	Locked float64 `json:"locked"`
}

// Sample is one equity observation.
type Sample struct {
	Equity    float64   `json:"equity"`
	Timestamp time.Time `json:"timestamp"`
}

// Tracker maintains the peak-equity watermark, current equity and a bounded
// history ring.
type Tracker struct {
	mu      sync.RWMutex
	peak    float64
	current float64
	history []Sample
	logger  zerolog.Logger
}

// NewTracker creates an empty tracker.
func NewTracker(logger zerolog.Logger) *Tracker {
	return &Tracker{
		logger: logger.With().Str("component", "EquityTracker").Logger(),
	}
}

// UpdateEquity recomputes current equity from the balance snapshot plus the
// unrealized P&L of open positions. The peak only ever rises.
func (t *Tracker) UpdateEquity(balance Balance, unrealizedPnL []float64) {
	equity := balance.Free + balance.Locked
	for _, pnl := range unrealizedPnL {
		equity += pnl
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.current = equity
	if equity > t.peak {
		t.peak = equity
	}

	t.history = append(t.history, Sample{Equity: equity, Timestamp: time.Now()})
	if len(t.history) > historyCap {
		t.history = t.history[len(t.history)-historyCap:]
	}

	t.logger.Debug().
		Float64("equity", t.current).
		Float64("peak", t.peak).
		Msg("equity updated")
}

// Drawdown returns the fractional decline from peak, clamped to >= 0.
// It is 0 before the first update.
func (t *Tracker) Drawdown() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.peak <= 0 {
		return 0
	}
	dd := (t.peak - t.current) / t.peak
	if dd < 0 {
		return 0
	}
	return dd
}

// Current returns the latest equity value.
func (t *Tracker) Current() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.current
}

// Peak returns the high-water mark.
func (t *Tracker) Peak() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.peak
}

// History returns a copy of the bounded sample ring, oldest first.
func (t *Tracker) History() []Sample {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Sample, len(t.history))
	copy(out, t.history)
	return out
}
