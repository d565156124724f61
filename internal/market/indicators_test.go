package market

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func constantSeries(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func risingSeries(start, step float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + step*float64(i)
	}
	return out
}

func fallingSeries(start, step float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start - step*float64(i)
	}
	return out
}

func TestSMAOfConstantSeries(t *testing.T) {
	sma := CalculateSMA(constantSeries(100, 30), 20)
	require.NotNil(t, sma)
	assert.InDelta(t, 100, sma.Value, 1e-9)
	assert.InDelta(t, 0, sma.Slope, 1e-9)
}

func TestSMAInsufficientData(t *testing.T) {
	assert.Nil(t, CalculateSMA(constantSeries(100, 5), 20))
}

func TestSMARisingSeriesIsBullish(t *testing.T) {
	sma := CalculateSMA(risingSeries(100, 1, 30), 20)
	require.NotNil(t, sma)
	assert.Greater(t, sma.Slope, 0.0)
	assert.Equal(t, ToneStrongBullish, sma.Signal)
}

func TestEMATracksConstantSeries(t *testing.T) {
	ema := CalculateEMA(constantSeries(100, 40), 21)
	require.NotNil(t, ema)
	assert.InDelta(t, 100, ema.Value, 1e-9)
}

func TestEMAFallingSeriesIsBearish(t *testing.T) {
	ema := CalculateEMA(fallingSeries(200, 1, 40), 21)
	require.NotNil(t, ema)
	assert.Less(t, ema.Slope, 0.0)
	assert.Equal(t, ToneStrongBearish, ema.Signal)
}

func TestRSIRisingSeriesIsOverbought(t *testing.T) {
	rsi := CalculateRSI(risingSeries(100, 1, 30), 14)
	require.NotNil(t, rsi)
	assert.InDelta(t, 100, rsi.Value, 1e-9)
	assert.Equal(t, ToneOverbought, rsi.Signal)
}

func TestRSIFallingSeriesIsOversold(t *testing.T) {
	rsi := CalculateRSI(fallingSeries(200, 1, 30), 14)
	require.NotNil(t, rsi)
	assert.InDelta(t, 0, rsi.Value, 1e-9)
	assert.Equal(t, ToneOversold, rsi.Signal)
}

func TestRSIInsufficientData(t *testing.T) {
	assert.Nil(t, CalculateRSI(constantSeries(100, 10), 14))
}

func TestMACDRisingSeriesIsPositive(t *testing.T) {
	macd := CalculateMACD(risingSeries(100, 1, 60), 12, 26, 9)
	require.NotNil(t, macd)
	assert.Greater(t, macd.MACD, 0.0)
	assert.Contains(t, []Tone{ToneBullish, ToneBuy}, macd.Trend)
}

func TestMACDFallingSeriesIsNegative(t *testing.T) {
	macd := CalculateMACD(fallingSeries(500, 1, 60), 12, 26, 9)
	require.NotNil(t, macd)
	assert.Less(t, macd.MACD, 0.0)
	assert.Contains(t, []Tone{ToneBearish, ToneSell}, macd.Trend)
}

func TestBollingerConstantSeriesHasZeroWidth(t *testing.T) {
	bb := CalculateBollingerBands(constantSeries(100, 30), 20, 2.0)
	require.NotNil(t, bb)
	assert.InDelta(t, 100, bb.Middle, 1e-9)
	assert.InDelta(t, 0, bb.Bandwidth, 1e-9)
}

func TestBollingerSpikeAboveUpperIsOverbought(t *testing.T) {
	prices := constantSeries(100, 29)
	prices = append(prices, 130)
	bb := CalculateBollingerBands(prices, 20, 2.0)
	require.NotNil(t, bb)
	assert.Equal(t, ToneOverbought, bb.Signal)
	assert.GreaterOrEqual(t, bb.BandPosition, 1.0)
}

func TestBollingerDropBelowLowerIsOversold(t *testing.T) {
	prices := constantSeries(100, 29)
	prices = append(prices, 70)
	bb := CalculateBollingerBands(prices, 20, 2.0)
	require.NotNil(t, bb)
	assert.Equal(t, ToneOversold, bb.Signal)
}

func TestStochasticBounds(t *testing.T) {
	st := CalculateStochastic(risingSeries(100, 1, 40), nil, nil, 14, 3)
	require.NotNil(t, st)
	assert.GreaterOrEqual(t, st.K, 0.0)
	assert.LessOrEqual(t, st.K, 100.0)
	// A steadily rising close sits at the top of its range.
	assert.Greater(t, st.K, 80.0)
}

func TestVolumeSpikeWithRisingPriceIsStrongBullish(t *testing.T) {
	prices := risingSeries(100, 1, 30)
	volumes := constantSeries(1000, 29)
	volumes = append(volumes, 2000)

	vol := CalculateVolume(prices, volumes, 20)
	require.NotNil(t, vol)
	assert.Greater(t, vol.Ratio, 1.5)
	assert.Equal(t, ToneStrongBullish, vol.Signal)
}

func TestVolumeSpikeWithFallingPriceIsStrongBearish(t *testing.T) {
	prices := fallingSeries(200, 1, 30)
	volumes := constantSeries(1000, 29)
	volumes = append(volumes, 2000)

	vol := CalculateVolume(prices, volumes, 20)
	require.NotNil(t, vol)
	assert.Equal(t, ToneStrongBearish, vol.Signal)
}

func TestATRPositiveForVolatileSeries(t *testing.T) {
	closes := risingSeries(100, 1, 30)
	highs := make([]float64, len(closes))
	lows := make([]float64, len(closes))
	for i := range closes {
		highs[i] = closes[i] + 2
		lows[i] = closes[i] - 2
	}

	atr := CalculateATR(highs, lows, closes, 14)
	require.NotNil(t, atr)
	assert.Greater(t, *atr, 0.0)
}

func TestCalculateAllShortSeriesLeavesNils(t *testing.T) {
	ind := CalculateAll(constantSeries(100, 5), nil, nil, nil)
	assert.Nil(t, ind.RSI)
	assert.Nil(t, ind.SMA)
	assert.Nil(t, ind.MACD)
	assert.Nil(t, ind.Volume)
	assert.Nil(t, ind.ATR)
}

func TestCalculateAllFullSeries(t *testing.T) {
	prices := risingSeries(100, 0.5, 60)
	volumes := constantSeries(1000, 60)
	highs := make([]float64, len(prices))
	lows := make([]float64, len(prices))
	for i := range prices {
		highs[i] = prices[i] + 1
		lows[i] = prices[i] - 1
	}

	ind := CalculateAll(prices, volumes, highs, lows)
	assert.NotNil(t, ind.RSI)
	assert.NotNil(t, ind.SMA)
	assert.NotNil(t, ind.EMA)
	assert.NotNil(t, ind.MACD)
	assert.NotNil(t, ind.Bollinger)
	assert.NotNil(t, ind.Stochastic)
	assert.NotNil(t, ind.Volume)
	assert.NotNil(t, ind.ATR)
}
