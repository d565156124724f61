package trading

import (
	"context"
	"time"

	"tradepilot/internal/signal"
)

// Periodic mark-to-market and autonomous exit handling. For each open
// position the triggers are evaluated in fixed priority order — stop loss,
// take profit, emergency exit, trailing ratchet — and at most one closing
// action is taken per pass per symbol. A failure on one symbol never stops
// the pass for the others.

// StartMonitoring runs the monitoring loop until the context is cancelled.
func (m *Manager) StartMonitoring(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.MonitorInterval)
	defer ticker.Stop()

	m.logger.Info().Dur("interval", m.cfg.MonitorInterval).Msg("position monitoring started")
	for {
		select {
		case <-ctx.Done():
			m.logger.Info().Msg("position monitoring stopped")
			return
		case <-ticker.C:
			m.MonitorPass(ctx)
		}
	}
}

// MonitorPass refreshes every open position and applies exit triggers.
// Exported so the pipeline host and tests can drive it directly.
func (m *Manager) MonitorPass(ctx context.Context) {
	m.mu.RLock()
	symbols := make([]string, 0, len(m.positions))
	for symbol := range m.positions {
		symbols = append(symbols, symbol)
	}
	m.mu.RUnlock()

	for _, symbol := range symbols {
		if err := ctx.Err(); err != nil {
			return
		}
		if err := m.monitorSymbol(ctx, symbol); err != nil {
			m.logger.Warn().Err(err).Str("symbol", symbol).Msg("monitoring pass failed for symbol")
		}
	}
}

func (m *Manager) monitorSymbol(ctx context.Context, symbol string) error {
	ticker, err := m.exchange.FetchTicker(ctx, symbol)
	if err != nil {
		m.recordAdapterFailure(err)
		return err
	}
	m.recordAdapterSuccess()
	price := ticker.Last

	trigger, ok := m.markToMarket(symbol, price)
	if !ok || trigger == "" {
		return nil
	}

	m.logger.Info().
		Str("symbol", symbol).
		Str("trigger", string(trigger)).
		Float64("price", price).
		Msg("exit trigger fired")

	_, err = m.executeSell(ctx, signal.Candidate{
		Symbol:    symbol,
		Action:    signal.ActionSell,
		Reasoning: string(trigger),
		CreatedAt: time.Now(),
	}, trigger)
	return err
}

// markToMarket refreshes price and unrealized P&L under lock and returns
// the first matching exit trigger, if any. The trailing ratchet is applied
// here directly since it mutates only the stop.
func (m *Manager) markToMarket(symbol string, price float64) (CloseReason, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pos, open := m.positions[symbol]
	if !open {
		return "", false
	}

	pos.CurrentPrice = price
	pos.Unrealized = PnL{
		Absolute:   (price - pos.EntryPrice) * pos.Quantity,
		Percentage: (price - pos.EntryPrice) / pos.EntryPrice * 100,
	}
	gainFraction := pos.Unrealized.Percentage / 100

	switch {
	case price <= pos.StopLoss:
		return CloseStopLoss, true
	case price >= pos.TakeProfit:
		return CloseTakeProfit, true
	case gainFraction <= -m.cfg.EmergencyLossPct:
		return CloseEmergency, true
	case gainFraction >= m.cfg.TrailingActivationPct:
		// Ratchet: the stop only ever moves in the profit-protecting
		// direction.
		candidate := price * m.cfg.TrailingStopFactor
		if candidate > pos.StopLoss {
			m.logger.Debug().
				Str("symbol", symbol).
				Float64("old_stop", pos.StopLoss).
				Float64("new_stop", candidate).
				Msg("trailing stop raised")
			pos.StopLoss = candidate
			pos.TrailingOn = true
		}
	}
	return "", true
}
