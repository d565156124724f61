package risk

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradepilot/internal/market"
	"tradepilot/internal/signal"
)

func newTestGate() *Gate {
	return NewGate(DefaultLimits(), zerolog.Nop())
}

func buySignal(confidence float64) signal.Candidate {
	return signal.Candidate{Symbol: "BTCUSDT", Action: signal.ActionBuy, Confidence: confidence}
}

func healthyPortfolio() PortfolioView {
	return PortfolioView{ReferenceEquity: 10000}
}

func healthyAccount() AccountView {
	return AccountView{Equity: 10000, Drawdown: 0.02}
}

func TestAcceptsHealthySignal(t *testing.T) {
	g := newTestGate()
	v := g.Validate(buySignal(0.85), healthyPortfolio(), healthyAccount(), MarketView{})

	assert.True(t, v.Accepted)
	assert.Empty(t, v.FailedChecks())
	assert.Len(t, v.Checks, 7)
}

func TestConfidenceAtThresholdPasses(t *testing.T) {
	g := newTestGate()
	v := g.Validate(buySignal(0.70), healthyPortfolio(), healthyAccount(), MarketView{})
	assert.True(t, v.Accepted)
}

func TestConfidenceBelowThresholdFails(t *testing.T) {
	g := newTestGate()
	v := g.Validate(buySignal(0.69), healthyPortfolio(), healthyAccount(), MarketView{})

	assert.False(t, v.Accepted)
	assert.Equal(t, []string{CheckConfidence}, v.FailedChecks())
}

func TestExposureIsTheOnlyFailure(t *testing.T) {
	g := newTestGate()
	portfolio := PortfolioView{
		// Mixed directions keep the correlation check clear of the limit.
		OpenPositions: []PositionView{
			{Symbol: "ETHUSDT", Side: "LONG"},
			{Symbol: "SOLUSDT", Side: "SHORT"},
			{Symbol: "ADAUSDT", Side: "SHORT"},
		},
		ReferenceEquity: 10000,
	}

	v := g.Validate(buySignal(0.9), portfolio, healthyAccount(), MarketView{})

	assert.False(t, v.Accepted)
	assert.Equal(t, []string{CheckExposure}, v.FailedChecks())
	// Every check is still reported: no short-circuit.
	assert.Len(t, v.Checks, 7)
}

func TestDailyLossBreachFails(t *testing.T) {
	g := newTestGate()
	portfolio := PortfolioView{DailyPnL: -600, ReferenceEquity: 10000} // -6% vs 5% limit

	v := g.Validate(buySignal(0.9), portfolio, healthyAccount(), MarketView{})

	assert.False(t, v.Accepted)
	assert.Equal(t, []string{CheckDailyLoss}, v.FailedChecks())
}

func TestDailyLossWithinLimitPasses(t *testing.T) {
	g := newTestGate()
	portfolio := PortfolioView{DailyPnL: -400, ReferenceEquity: 10000} // -4%

	v := g.Validate(buySignal(0.9), portfolio, healthyAccount(), MarketView{})
	assert.True(t, v.Accepted)
}

func TestDailyLossSkippedWithoutReferenceEquity(t *testing.T) {
	g := newTestGate()
	portfolio := PortfolioView{DailyPnL: -600}

	v := g.Validate(buySignal(0.9), portfolio, healthyAccount(), MarketView{})
	assert.True(t, v.Accepted)
}

func TestDrawdownBreachFails(t *testing.T) {
	g := newTestGate()
	account := AccountView{Equity: 8500, Drawdown: 0.20}

	v := g.Validate(buySignal(0.9), healthyPortfolio(), account, MarketView{})

	assert.False(t, v.Accepted)
	assert.Equal(t, []string{CheckDrawdown}, v.FailedChecks())
}

func TestVolatilityWideBandFails(t *testing.T) {
	g := newTestGate()
	mkt := MarketView{
		Price:     100,
		Bollinger: &market.BollingerReading{Upper: 112, Middle: 100, Lower: 88}, // 24% width
	}

	v := g.Validate(buySignal(0.9), healthyPortfolio(), healthyAccount(), mkt)

	assert.False(t, v.Accepted)
	assert.Equal(t, []string{CheckVolatility}, v.FailedChecks())
}

func TestVolatilityElevatedATRFails(t *testing.T) {
	g := newTestGate()
	atr := 8.0 // 8% of price, ceiling is 5%
	mkt := MarketView{
		Price:     100,
		Bollinger: &market.BollingerReading{Upper: 103, Middle: 100, Lower: 97},
		ATR:       &atr,
	}

	v := g.Validate(buySignal(0.9), healthyPortfolio(), healthyAccount(), mkt)

	assert.False(t, v.Accepted)
	assert.Equal(t, []string{CheckVolatility}, v.FailedChecks())
}

func TestVolatilityMissingDataPassesWithCaveat(t *testing.T) {
	g := newTestGate()
	v := g.Validate(buySignal(0.9), healthyPortfolio(), healthyAccount(), MarketView{})

	assert.True(t, v.Accepted)
	require.NotEmpty(t, v.Caveats)
	assert.Contains(t, v.Caveats[0], "volatility")
}

func TestCorrelationDirectionalStackingFails(t *testing.T) {
	g := newTestGate()
	portfolio := PortfolioView{
		OpenPositions: []PositionView{
			{Symbol: "ETHUSDT", Side: "LONG"},
			{Symbol: "SOLUSDT", Side: "LONG"},
		},
		ReferenceEquity: 10000,
	}

	v := g.Validate(buySignal(0.9), portfolio, healthyAccount(), MarketView{})

	assert.False(t, v.Accepted)
	assert.Equal(t, []string{CheckCorrelation}, v.FailedChecks())
}

func TestCorrelatedReferencePairAddsCaveat(t *testing.T) {
	g := newTestGate()
	portfolio := PortfolioView{
		OpenPositions:   []PositionView{{Symbol: "ETHUSDT", Side: "LONG"}},
		ReferenceEquity: 10000,
	}

	v := g.Validate(buySignal(0.9), portfolio, healthyAccount(), MarketView{})

	assert.True(t, v.Accepted)
	found := false
	for _, c := range v.Caveats {
		if c == "correlated LONG exposure already open on ETHUSDT" {
			found = true
		}
	}
	assert.True(t, found, "expected correlation caveat, got %v", v.Caveats)
}

func TestMarketConsensusDisagreementFails(t *testing.T) {
	g := newTestGate()
	trend := market.ToneBearish
	news := signal.ActionSell
	mkt := MarketView{
		Price:         100,
		Trend:         &trend,
		NewsSentiment: &news,
		Volume24h:     500000,
	}

	// Three sources available, only the liquidity vote agrees with BUY.
	v := g.Validate(buySignal(0.9), healthyPortfolio(), healthyAccount(), mkt)

	assert.False(t, v.Accepted)
	assert.Equal(t, []string{CheckMarketConditions}, v.FailedChecks())
}

func TestMarketConsensusAgreementPasses(t *testing.T) {
	g := newTestGate()
	trend := market.ToneStrongBullish
	mkt := MarketView{
		Price:     100,
		Trend:     &trend,
		Volume24h: 500000,
	}

	v := g.Validate(buySignal(0.9), healthyPortfolio(), healthyAccount(), mkt)
	assert.True(t, v.Accepted)
}

func TestMarketConsensusSingleSourcePassesOpen(t *testing.T) {
	g := newTestGate()
	trend := market.ToneBearish
	mkt := MarketView{Price: 100, Trend: &trend}

	v := g.Validate(buySignal(0.9), healthyPortfolio(), healthyAccount(), mkt)

	assert.True(t, v.Accepted)
	found := false
	for _, c := range v.Caveats {
		if c == "market condition sources unavailable, consensus passed open" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestMultipleFailuresAllReported(t *testing.T) {
	g := newTestGate()
	portfolio := PortfolioView{
		OpenPositions: []PositionView{
			{Symbol: "ETHUSDT", Side: "LONG"},
			{Symbol: "SOLUSDT", Side: "LONG"},
			{Symbol: "ADAUSDT", Side: "LONG"},
		},
		DailyPnL:        -600,
		ReferenceEquity: 10000,
	}

	v := g.Validate(buySignal(0.5), portfolio, AccountView{Drawdown: 0.20}, MarketView{})

	assert.False(t, v.Accepted)
	assert.ElementsMatch(t,
		[]string{CheckConfidence, CheckExposure, CheckDailyLoss, CheckCorrelation, CheckDrawdown},
		v.FailedChecks())
	assert.NotEmpty(t, v.Reason)
}

func TestUpdateLimitsTakesEffect(t *testing.T) {
	g := newTestGate()

	limits := DefaultLimits()
	limits.MinConfidence = 0.9
	g.UpdateLimits(limits, "ops")

	v := g.Validate(buySignal(0.85), healthyPortfolio(), healthyAccount(), MarketView{})
	assert.False(t, v.Accepted)
	assert.Equal(t, 0.9, g.Limits().MinConfidence)
}
