package alerts

import (
	"tradepilot/internal/market"
	"tradepilot/internal/signal"
)

// Vote is one indicator's directional opinion. Indicators with no reading
// or a neutral reading cast no vote.
type Vote struct {
	Indicator string        `json:"indicator"`
	Direction signal.Action `json:"direction"`
	Strength  Severity      `json:"strength"`
}

// IndicatorVotes collects the directional votes of the five confirming
// indicators. Exported so callers can inspect individual votes even when
// the confirmation threshold is not reached.
func (e *Engine) IndicatorVotes(ind market.Indicators) []Vote {
	var votes []Vote

	if v, ok := e.rsiVote(ind.RSI); ok {
		votes = append(votes, v)
	}
	if v, ok := trendVote(ind.EMA, ind.SMA); ok {
		votes = append(votes, v)
	}
	if v, ok := macdVote(ind.MACD); ok {
		votes = append(votes, v)
	}
	if v, ok := bollingerVote(ind.Bollinger); ok {
		votes = append(votes, v)
	}
	if v, ok := volumeVote(ind.Volume); ok {
		votes = append(votes, v)
	}
	return votes
}

func (e *Engine) rsiVote(rsi *market.RSIReading) (Vote, bool) {
	if rsi == nil {
		return Vote{}, false
	}
	th := e.thresholds
	switch {
	case rsi.Value >= th.RSICriticalOverbought:
		return Vote{Indicator: "RSI", Direction: signal.ActionSell, Strength: SeverityCritical}, true
	case rsi.Value >= th.RSIOverbought:
		return Vote{Indicator: "RSI", Direction: signal.ActionSell, Strength: SeverityMedium}, true
	case rsi.Value <= th.RSICriticalOversold:
		return Vote{Indicator: "RSI", Direction: signal.ActionBuy, Strength: SeverityCritical}, true
	case rsi.Value <= th.RSIOversold:
		return Vote{Indicator: "RSI", Direction: signal.ActionBuy, Strength: SeverityMedium}, true
	}
	return Vote{}, false
}

// trendVote prefers the EMA reading and falls back to the SMA.
func trendVote(ema, sma *market.MAReading) (Vote, bool) {
	ma := ema
	if ma == nil {
		ma = sma
	}
	if ma == nil {
		return Vote{}, false
	}
	switch ma.Signal {
	case market.ToneStrongBullish:
		return Vote{Indicator: "TREND", Direction: signal.ActionBuy, Strength: SeverityHigh}, true
	case market.ToneBullish:
		return Vote{Indicator: "TREND", Direction: signal.ActionBuy, Strength: SeverityMedium}, true
	case market.ToneStrongBearish:
		return Vote{Indicator: "TREND", Direction: signal.ActionSell, Strength: SeverityHigh}, true
	case market.ToneBearish:
		return Vote{Indicator: "TREND", Direction: signal.ActionSell, Strength: SeverityMedium}, true
	}
	return Vote{}, false
}

func macdVote(macd *market.MACDReading) (Vote, bool) {
	if macd == nil {
		return Vote{}, false
	}
	switch macd.Trend {
	case market.ToneBuy:
		return Vote{Indicator: "MACD", Direction: signal.ActionBuy, Strength: SeverityHigh}, true
	case market.ToneSell:
		return Vote{Indicator: "MACD", Direction: signal.ActionSell, Strength: SeverityHigh}, true
	case market.ToneBullish:
		if macd.Histogram > 0 {
			return Vote{Indicator: "MACD", Direction: signal.ActionBuy, Strength: SeverityMedium}, true
		}
	case market.ToneBearish:
		if macd.Histogram < 0 {
			return Vote{Indicator: "MACD", Direction: signal.ActionSell, Strength: SeverityMedium}, true
		}
	}
	return Vote{}, false
}

func bollingerVote(bb *market.BollingerReading) (Vote, bool) {
	if bb == nil {
		return Vote{}, false
	}
	switch bb.Signal {
	case market.ToneOverbought:
		return Vote{Indicator: "BOLLINGER", Direction: signal.ActionSell, Strength: SeverityHigh}, true
	case market.ToneOversold:
		return Vote{Indicator: "BOLLINGER", Direction: signal.ActionBuy, Strength: SeverityHigh}, true
	}
	return Vote{}, false
}

// volumeVote only confirms a direction on clearly elevated volume.
func volumeVote(vol *market.VolumeReading) (Vote, bool) {
	if vol == nil {
		return Vote{}, false
	}
	switch vol.Signal {
	case market.ToneStrongBullish:
		return Vote{Indicator: "VOLUME", Direction: signal.ActionBuy, Strength: SeverityHigh}, true
	case market.ToneBullish:
		return Vote{Indicator: "VOLUME", Direction: signal.ActionBuy, Strength: SeverityMedium}, true
	case market.ToneStrongBearish:
		return Vote{Indicator: "VOLUME", Direction: signal.ActionSell, Strength: SeverityHigh}, true
	case market.ToneBearish:
		return Vote{Indicator: "VOLUME", Direction: signal.ActionSell, Strength: SeverityMedium}, true
	}
	return Vote{}, false
}
