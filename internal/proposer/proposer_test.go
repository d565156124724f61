package proposer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradepilot/internal/market"
	"tradepilot/internal/signal"
)

func snap(symbol string, price float64) market.Snapshot {
	return market.Snapshot{Symbol: symbol, Price: price}
}

func TestNoReadingsProposesNothing(t *testing.T) {
	c, err := NewConsensus().Propose(context.Background(), snap("BTCUSDT", 100), market.Indicators{})
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestUnanimousBullishProposesBuy(t *testing.T) {
	ind := market.Indicators{
		RSI:  &market.RSIReading{Value: 25, Signal: market.ToneOversold},
		SMA:  &market.MAReading{Signal: market.ToneStrongBullish},
		EMA:  &market.MAReading{Signal: market.ToneStrongBullish},
		MACD: &market.MACDReading{Trend: market.ToneBullish},
	}

	c, err := NewConsensus().Propose(context.Background(), snap("BTCUSDT", 42000), ind)
	require.NoError(t, err)
	require.NotNil(t, c)

	// avg = (1 + 3 + 3 + 2) / 4 = 2.25
	assert.Equal(t, signal.ActionBuy, c.Action)
	assert.InDelta(t, 0.675, c.Confidence, 1e-9)
	assert.Equal(t, "BTCUSDT", c.Symbol)
	assert.InDelta(t, 42000, c.EntryPoint, 1e-9)
	assert.Contains(t, c.Reasoning, "RSI=OVERSOLD")
	assert.Contains(t, c.Reasoning, "4 readings")
}

func TestUnanimousBearishProposesSell(t *testing.T) {
	ind := market.Indicators{
		RSI:  &market.RSIReading{Value: 82, Signal: market.ToneOverbought},
		EMA:  &market.MAReading{Signal: market.ToneStrongBearish},
		MACD: &market.MACDReading{Trend: market.ToneSell},
	}

	c, err := NewConsensus().Propose(context.Background(), snap("ETHUSDT", 3000), ind)
	require.NoError(t, err)
	require.NotNil(t, c)

	// avg = (-1 - 3 - 2) / 3 = -2
	assert.Equal(t, signal.ActionSell, c.Action)
	assert.InDelta(t, 0.6, c.Confidence, 1e-9)
}

func TestMixedReadingsProposeHold(t *testing.T) {
	ind := market.Indicators{
		SMA:  &market.MAReading{Signal: market.ToneBullish},
		EMA:  &market.MAReading{Signal: market.ToneBearish},
		RSI:  &market.RSIReading{Value: 50, Signal: market.ToneNeutral},
		MACD: &market.MACDReading{Trend: market.ToneNeutral},
	}

	c, err := NewConsensus().Propose(context.Background(), snap("BTCUSDT", 100), ind)
	require.NoError(t, err)
	require.NotNil(t, c)

	assert.Equal(t, signal.ActionHold, c.Action)
	assert.False(t, c.Tradable())
	assert.InDelta(t, 0, c.Confidence, 1e-9)
}

func TestBuyThresholdIsInclusive(t *testing.T) {
	// avg = (1 + 0) / 2 = 0.5: exactly on the buy threshold.
	ind := market.Indicators{
		RSI: &market.RSIReading{Value: 28, Signal: market.ToneOversold},
		EMA: &market.MAReading{Signal: market.ToneNeutral},
	}
	c, err := NewConsensus().Propose(context.Background(), snap("BTCUSDT", 100), ind)
	require.NoError(t, err)
	assert.Equal(t, signal.ActionBuy, c.Action)
	assert.InDelta(t, 0.15, c.Confidence, 1e-9)

	// avg = (2 + 1 + 0 + 0 - 1) / 5 = 0.4: inside the neutral zone.
	ind = market.Indicators{
		SMA:        &market.MAReading{Signal: market.ToneBullish},
		RSI:        &market.RSIReading{Value: 28, Signal: market.ToneOversold},
		EMA:        &market.MAReading{Signal: market.ToneNeutral},
		MACD:       &market.MACDReading{Trend: market.ToneNeutral},
		Stochastic: &market.StochasticReading{Signal: market.ToneOverbought},
	}
	c, err = NewConsensus().Propose(context.Background(), snap("BTCUSDT", 100), ind)
	require.NoError(t, err)
	assert.Equal(t, signal.ActionHold, c.Action)
}

func TestSellThresholdIsInclusive(t *testing.T) {
	// avg = (-1 + 0) / 2 = -0.5: exactly on the sell threshold.
	ind := market.Indicators{
		RSI: &market.RSIReading{Value: 75, Signal: market.ToneOverbought},
		EMA: &market.MAReading{Signal: market.ToneNeutral},
	}
	c, err := NewConsensus().Propose(context.Background(), snap("BTCUSDT", 100), ind)
	require.NoError(t, err)
	assert.Equal(t, signal.ActionSell, c.Action)
}

func TestConfidenceMaxesAtUnanimousStrongReadings(t *testing.T) {
	// A fully one-sided board averages 3.0, the strongest possible score.
	ind := market.Indicators{
		RSI:        &market.RSIReading{Value: 20, Signal: market.ToneStrongBullish},
		SMA:        &market.MAReading{Signal: market.ToneStrongBullish},
		EMA:        &market.MAReading{Signal: market.ToneStrongBullish},
		MACD:       &market.MACDReading{Trend: market.ToneStrongBullish},
		Bollinger:  &market.BollingerReading{Signal: market.ToneStrongBullish},
		Stochastic: &market.StochasticReading{Signal: market.ToneStrongBullish},
		Volume:     &market.VolumeReading{Signal: market.ToneStrongBullish},
	}
	c, err := NewConsensus().Propose(context.Background(), snap("BTCUSDT", 100), ind)
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.InDelta(t, 0.9, c.Confidence, 1e-9)
	assert.LessOrEqual(t, c.Confidence, 1.0)
}

func TestNeutralReadingsStillCount(t *testing.T) {
	// Neutral votes dilute the average rather than being dropped.
	ind := market.Indicators{
		SMA: &market.MAReading{Signal: market.ToneStrongBullish},
		EMA: &market.MAReading{Signal: market.ToneNeutral},
		RSI: &market.RSIReading{Value: 50, Signal: market.ToneNeutral},
	}
	c, err := NewConsensus().Propose(context.Background(), snap("BTCUSDT", 100), ind)
	require.NoError(t, err)
	require.NotNil(t, c)

	// avg = 3 / 3 = 1.0
	assert.Equal(t, signal.ActionBuy, c.Action)
	assert.Contains(t, c.Reasoning, "3 readings")
	assert.NotContains(t, c.Reasoning, "EMA")
}
