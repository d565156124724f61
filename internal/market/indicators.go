package market

import "math"

// Indicator math over closing-price series. The most recent sample is the
// last element of every slice.

// CalculateSMA computes the simple moving average together with its slope.
func CalculateSMA(prices []float64, period int) *MAReading {
	if len(prices) < period || period <= 0 {
		return nil
	}
	cur := smaAt(prices, len(prices), period)
	slope := 0.0
	if len(prices) > period {
		prev := smaAt(prices, len(prices)-1, period)
		if prev != 0 {
			slope = (cur - prev) / prev * 100
		}
	}
	price := prices[len(prices)-1]
	return &MAReading{Value: cur, Slope: slope, Signal: maTone(price, cur, slope)}
}

// CalculateEMA computes the exponential moving average together with its slope.
func CalculateEMA(prices []float64, period int) *MAReading {
	if len(prices) < period || period <= 0 {
		return nil
	}
	series := emaSeries(prices, period)
	cur := series[len(series)-1]
	slope := 0.0
	if len(series) > 1 {
		prev := series[len(series)-2]
		if prev != 0 {
			slope = (cur - prev) / prev * 100
		}
	}
	price := prices[len(prices)-1]
	return &MAReading{Value: cur, Slope: slope, Signal: maTone(price, cur, slope)}
}

func maTone(price, ma, slope float64) Tone {
	if price > ma {
		if slope > 0 {
			return ToneStrongBullish
		}
		return ToneBullish
	}
	if slope < 0 {
		return ToneStrongBearish
	}
	return ToneBearish
}

// CalculateRSI computes RSI with Wilder smoothing.
func CalculateRSI(prices []float64, period int) *RSIReading {
	if len(prices) < period+1 || period <= 0 {
		return nil
	}

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		change := prices[i] - prices[i-1]
		if change > 0 {
			avgGain += change
		} else {
			avgLoss += -change
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	for i := period + 1; i < len(prices); i++ {
		change := prices[i] - prices[i-1]
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
	}

	rsi := 100.0
	if avgLoss > 0 {
		rs := avgGain / avgLoss
		rsi = 100 - (100 / (1 + rs))
	}

	tone := ToneNeutral
	switch {
	case rsi >= 70:
		tone = ToneOverbought
	case rsi <= 30:
		tone = ToneOversold
	}
	return &RSIReading{Value: rsi, Signal: tone}
}

// CalculateMACD computes the MACD line, a real EMA signal line and the
// histogram, classifying crossovers as BUY/SELL and plain separation as
// BULLISH/BEARISH.
func CalculateMACD(prices []float64, fastPeriod, slowPeriod, signalPeriod int) *MACDReading {
	if len(prices) < slowPeriod+signalPeriod {
		return nil
	}

	fast := emaSeries(prices, fastPeriod)
	slow := emaSeries(prices, slowPeriod)

	// Align: emaSeries returns one value per price from index period-1 on.
	offset := len(fast) - len(slow)
	macdLine := make([]float64, len(slow))
	for i := range slow {
		macdLine[i] = fast[i+offset] - slow[i]
	}

	signalLine := emaSeries(macdLine, signalPeriod)
	if len(signalLine) == 0 {
		return nil
	}

	curMACD := macdLine[len(macdLine)-1]
	curSignal := signalLine[len(signalLine)-1]
	curHist := curMACD - curSignal

	prevHist := 0.0
	if len(macdLine) >= 2 && len(signalLine) >= 2 {
		prevHist = macdLine[len(macdLine)-2] - signalLine[len(signalLine)-2]
	}

	trend := ToneBearish
	switch {
	case curMACD > curSignal && prevHist <= 0 && curHist > 0:
		trend = ToneBuy
	case curMACD < curSignal && prevHist >= 0 && curHist < 0:
		trend = ToneSell
	case curMACD > curSignal:
		trend = ToneBullish
	}

	return &MACDReading{MACD: curMACD, Signal: curSignal, Histogram: curHist, Trend: trend}
}

// CalculateBollingerBands computes the bands plus bandwidth and the price
// position inside the band.
func CalculateBollingerBands(prices []float64, period int, stdDevMult float64) *BollingerReading {
	if len(prices) < period || period <= 0 {
		return nil
	}

	middle := smaAt(prices, len(prices), period)
	variance := 0.0
	for i := len(prices) - period; i < len(prices); i++ {
		diff := prices[i] - middle
		variance += diff * diff
	}
	stdDev := math.Sqrt(variance / float64(period))

	upper := middle + stdDev*stdDevMult
	lower := middle - stdDev*stdDevMult
	price := prices[len(prices)-1]

	bandwidth := 0.0
	if middle != 0 {
		bandwidth = (upper - lower) / middle * 100
	}
	position := 0.5
	if upper != lower {
		position = (price - lower) / (upper - lower)
	}

	tone := ToneBearish
	switch {
	case price >= upper:
		tone = ToneOverbought
	case price <= lower:
		tone = ToneOversold
	case price > middle:
		tone = ToneBullish
	}

	return &BollingerReading{
		Upper:        upper,
		Middle:       middle,
		Lower:        lower,
		Bandwidth:    bandwidth,
		BandPosition: position,
		Signal:       tone,
	}
}

// CalculateStochastic computes %K and a %D smoothed over dPeriod. Highs and
// lows may be nil, in which case closes stand in for both.
func CalculateStochastic(closes, highs, lows []float64, kPeriod, dPeriod int) *StochasticReading {
	if len(closes) < kPeriod+dPeriod || kPeriod <= 0 || dPeriod <= 0 {
		return nil
	}
	if highs == nil {
		highs = closes
	}
	if lows == nil {
		lows = closes
	}
	if len(highs) != len(closes) || len(lows) != len(closes) {
		return nil
	}

	kAt := func(end int) float64 {
		hi, lo := highs[end-kPeriod], lows[end-kPeriod]
		for i := end - kPeriod; i < end; i++ {
			if highs[i] > hi {
				hi = highs[i]
			}
			if lows[i] < lo {
				lo = lows[i]
			}
		}
		if hi == lo {
			return 50
		}
		return (closes[end-1] - lo) / (hi - lo) * 100
	}

	curK := kAt(len(closes))
	prevK := kAt(len(closes) - 1)

	dSum, prevDSum := 0.0, 0.0
	for i := 0; i < dPeriod; i++ {
		dSum += kAt(len(closes) - i)
		prevDSum += kAt(len(closes) - 1 - i)
	}
	curD := dSum / float64(dPeriod)
	prevD := prevDSum / float64(dPeriod)

	tone := ToneBearish
	switch {
	case curK >= 80 && curD >= 80:
		tone = ToneOverbought
	case curK <= 20 && curD <= 20:
		tone = ToneOversold
	case curK > curD && prevK <= prevD:
		tone = ToneBuy
	case curK < curD && prevK >= prevD:
		tone = ToneSell
	case curK > curD:
		tone = ToneBullish
	}

	return &StochasticReading{K: curK, D: curD, Signal: tone}
}

// CalculateVolume compares current volume against its moving average and
// reads the result together with the direction of the last price change.
func CalculateVolume(prices, volumes []float64, period int) *VolumeReading {
	if len(volumes) < period || period <= 0 {
		return nil
	}

	avg := smaAt(volumes, len(volumes), period)
	if avg == 0 {
		return nil
	}
	cur := volumes[len(volumes)-1]
	ratio := cur / avg

	roc := 0.0
	if len(volumes) >= 2 && volumes[len(volumes)-2] != 0 {
		roc = (cur - volumes[len(volumes)-2]) / volumes[len(volumes)-2] * 100
	}

	priceChange := 0.0
	if len(prices) >= 2 && prices[len(prices)-2] != 0 {
		priceChange = (prices[len(prices)-1] - prices[len(prices)-2]) / prices[len(prices)-2] * 100
	}

	tone := ToneNeutral
	switch {
	case ratio > 1.5 && priceChange > 0:
		tone = ToneStrongBullish
	case ratio > 1.5:
		tone = ToneStrongBearish
	case ratio > 1.2 && priceChange > 0:
		tone = ToneBullish
	case ratio > 1.2:
		tone = ToneBearish
	}

	return &VolumeReading{Current: cur, Average: avg, Ratio: ratio, ROC: roc, Signal: tone}
}

// CalculateATR computes the average true range over OHLC series.
func CalculateATR(highs, lows, closes []float64, period int) *float64 {
	if len(closes) < period+1 || len(highs) != len(closes) || len(lows) != len(closes) {
		return nil
	}
	trSum := 0.0
	for i := len(closes) - period; i < len(closes); i++ {
		tr := math.Max(highs[i]-lows[i],
			math.Max(math.Abs(highs[i]-closes[i-1]), math.Abs(lows[i]-closes[i-1])))
		trSum += tr
	}
	atr := trSum / float64(period)
	return &atr
}

// CalculateAll evaluates the standard indicator set for one symbol. Series
// too short for an indicator simply leave that field nil.
func CalculateAll(prices, volumes, highs, lows []float64) Indicators {
	ind := Indicators{
		RSI:        CalculateRSI(prices, 14),
		SMA:        CalculateSMA(prices, 20),
		EMA:        CalculateEMA(prices, 21),
		MACD:       CalculateMACD(prices, 12, 26, 9),
		Bollinger:  CalculateBollingerBands(prices, 20, 2.0),
		Stochastic: CalculateStochastic(prices, highs, lows, 14, 3),
	}
	if volumes != nil {
		ind.Volume = CalculateVolume(prices, volumes, 20)
	}
	if highs != nil && lows != nil {
		ind.ATR = CalculateATR(highs, lows, prices, 14)
	}
	return ind
}

func smaAt(series []float64, end, period int) float64 {
	sum := 0.0
	for i := end - period; i < end; i++ {
		sum += series[i]
	}
	return sum / float64(period)
}

// emaSeries returns the EMA evaluated at every index from period-1 to the
// end, seeded with the SMA of the first period samples.
func emaSeries(series []float64, period int) []float64 {
	if len(series) < period || period <= 0 {
		return nil
	}
	out := make([]float64, 0, len(series)-period+1)
	ema := smaAt(series, period, period)
	out = append(out, ema)
	mult := 2.0 / float64(period+1)
	for i := period; i < len(series); i++ {
		ema = series[i]*mult + ema*(1-mult)
		out = append(out, ema)
	}
	return out
}
