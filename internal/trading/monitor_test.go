package trading

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradepilot/internal/exchange"
	"tradepilot/internal/signal"
)

func openPosition(t *testing.T, m *Manager, paper *exchange.Paper, symbol string, entry, stop, target float64) {
	t.Helper()
	paper.SetPrice(symbol, entry)
	sig := signal.Candidate{
		Symbol:     symbol,
		Action:     signal.ActionBuy,
		Confidence: 0.8,
		EntryPoint: entry,
		StopLoss:   stop,
		TakeProfit: target,
	}
	_, err := m.ExecuteSignal(context.Background(), sig, false)
	require.NoError(t, err)
}

func closedOrder(t *testing.T, m *Manager, symbol string) Order {
	t.Helper()
	for _, o := range m.Orders() {
		if o.Symbol == symbol && o.Status == OrderClosed {
			return o
		}
	}
	t.Fatalf("no closed order for %s", symbol)
	return Order{}
}

func TestStopLossTriggerClosesPosition(t *testing.T) {
	m, paper := newTestManager(t, testConfig())
	openPosition(t, m, paper, "BTCUSDT", 100, 95, 200)

	paper.SetPrice("BTCUSDT", 94)
	m.MonitorPass(context.Background())

	assert.Empty(t, m.GetPortfolioStatus().OpenPositions)
	order := closedOrder(t, m, "BTCUSDT")
	assert.Equal(t, string(CloseStopLoss), order.CloseReason)
	assert.Less(t, order.PnL.Absolute, 0.0)
}

func TestTakeProfitTriggerClosesPosition(t *testing.T) {
	m, paper := newTestManager(t, testConfig())
	openPosition(t, m, paper, "BTCUSDT", 100, 95, 103)

	paper.SetPrice("BTCUSDT", 103.5)
	m.MonitorPass(context.Background())

	assert.Empty(t, m.GetPortfolioStatus().OpenPositions)
	order := closedOrder(t, m, "BTCUSDT")
	assert.Equal(t, string(CloseTakeProfit), order.CloseReason)
	assert.Greater(t, order.PnL.Absolute, 0.0)
}

func TestEmergencyExitTriggers(t *testing.T) {
	m, paper := newTestManager(t, testConfig())
	// Stop far below so the emergency threshold fires first.
	openPosition(t, m, paper, "BTCUSDT", 100, 50, 200)

	paper.SetPrice("BTCUSDT", 89) // -11%, past the -10% emergency line
	m.MonitorPass(context.Background())

	order := closedOrder(t, m, "BTCUSDT")
	assert.Equal(t, string(CloseEmergency), order.CloseReason)
}

func TestStopLossWinsOverEmergencyExit(t *testing.T) {
	m, paper := newTestManager(t, testConfig())
	openPosition(t, m, paper, "BTCUSDT", 100, 90, 200)

	// -12% breaches both thresholds; the stop has priority.
	paper.SetPrice("BTCUSDT", 88)
	m.MonitorPass(context.Background())

	order := closedOrder(t, m, "BTCUSDT")
	assert.Equal(t, string(CloseStopLoss), order.CloseReason)
}

func TestTrailingRatchetThenStopOut(t *testing.T) {
	m, paper := newTestManager(t, testConfig())
	openPosition(t, m, paper, "BTCUSDT", 100, 97, 200)

	// +6% activates the trailing ratchet: stop moves to 106 * 0.95 = 100.7.
	paper.SetPrice("BTCUSDT", 106)
	m.MonitorPass(context.Background())

	positions := m.GetPortfolioStatus().OpenPositions
	require.Len(t, positions, 1)
	assert.InDelta(t, 100.7, positions[0].StopLoss, 1e-9)
	assert.True(t, positions[0].TrailingOn)

	// Price retreats through the raised stop; the trade still closes green.
	paper.SetPrice("BTCUSDT", 100)
	m.MonitorPass(context.Background())

	assert.Empty(t, m.GetPortfolioStatus().OpenPositions)
	order := closedOrder(t, m, "BTCUSDT")
	assert.Equal(t, string(CloseStopLoss), order.CloseReason)
	assert.InDelta(t, 0, order.PnL.Absolute, 1e-9)
}

func TestTrailingStopNeverLowers(t *testing.T) {
	m, paper := newTestManager(t, testConfig())
	openPosition(t, m, paper, "BTCUSDT", 100, 97, 200)

	paper.SetPrice("BTCUSDT", 110)
	m.MonitorPass(context.Background())
	positions := m.GetPortfolioStatus().OpenPositions
	require.Len(t, positions, 1)
	assert.InDelta(t, 104.5, positions[0].StopLoss, 1e-9)

	// A smaller gain still above activation must not pull the stop back.
	paper.SetPrice("BTCUSDT", 105.5)
	m.MonitorPass(context.Background())
	positions = m.GetPortfolioStatus().OpenPositions
	require.Len(t, positions, 1)
	assert.InDelta(t, 104.5, positions[0].StopLoss, 1e-9)
}

func TestMonitorPassUpdatesUnrealized(t *testing.T) {
	m, paper := newTestManager(t, testConfig())
	openPosition(t, m, paper, "BTCUSDT", 100, 95, 200)

	paper.SetPrice("BTCUSDT", 102)
	m.MonitorPass(context.Background())

	positions := m.GetPortfolioStatus().OpenPositions
	require.Len(t, positions, 1)
	assert.InDelta(t, 102, positions[0].CurrentPrice, 1e-9)
	assert.InDelta(t, 2, positions[0].Unrealized.Percentage, 1e-9)
}

func TestMonitorFailureIsolatedPerSymbol(t *testing.T) {
	cfg := testConfig()
	flaky := &flakyExchange{inner: exchange.NewPaper("USDT", 10000)}
	m := NewManager(cfg, flaky, zerolog.Nop())
	ctx := context.Background()

	flaky.inner.SetPrice("BTCUSDT", 100)
	flaky.inner.SetPrice("ETHUSDT", 100)

	for _, symbol := range []string{"BTCUSDT", "ETHUSDT"} {
		_, err := m.ExecuteSignal(ctx, signal.Candidate{
			Symbol:     symbol,
			Action:     signal.ActionBuy,
			Confidence: 0.8,
			EntryPoint: 100,
			StopLoss:   95,
			TakeProfit: 103,
		}, false)
		require.NoError(t, err)
	}

	// Both positions are past take profit but the close orders fail.
	flaky.inner.SetPrice("BTCUSDT", 104)
	flaky.inner.SetPrice("ETHUSDT", 104)
	flaky.setFailing(true)
	m.MonitorPass(ctx)

	// Both positions survive the failed pass and close on the next one.
	assert.Len(t, m.GetPortfolioStatus().OpenPositions, 2)

	flaky.setFailing(false)
	m.MonitorPass(ctx)
	assert.Empty(t, m.GetPortfolioStatus().OpenPositions)
}

func TestMonitorPassNoPositionsIsNoop(t *testing.T) {
	m, _ := newTestManager(t, testConfig())
	m.MonitorPass(context.Background())
	assert.Empty(t, m.Orders())
}
