package market

import "time"

// Tone classifies an indicator reading.
type Tone string

const (
	ToneStrongBullish Tone = "STRONG_BULLISH"
	ToneBullish       Tone = "BULLISH"
	ToneNeutral       Tone = "NEUTRAL"
	ToneBearish       Tone = "BEARISH"
	ToneStrongBearish Tone = "STRONG_BEARISH"
	ToneOverbought    Tone = "OVERBOUGHT"
	ToneOversold      Tone = "OVERSOLD"
	ToneBuy           Tone = "BUY"
	ToneSell          Tone = "SELL"
)

// Snapshot is a point-in-time market reading for one symbol.
type Snapshot struct {
	Symbol         string    `json:"symbol"`
	Price          float64   `json:"price"`
	PriceChange24h float64   `json:"price_change_24h"` // percent
	Volume24h      float64   `json:"volume_24h"`
	Timestamp      time.Time `json:"timestamp"`
}

// Indicators carries indicator readings for one symbol. A nil field means
// the reading is unavailable; consumers must treat that as "no vote", not
// as a zero reading.
type Indicators struct {
	RSI        *RSIReading        `json:"rsi,omitempty"`
	SMA        *MAReading         `json:"sma,omitempty"`
	EMA        *MAReading         `json:"ema,omitempty"`
	MACD       *MACDReading       `json:"macd,omitempty"`
	Bollinger  *BollingerReading  `json:"bollinger,omitempty"`
	Stochastic *StochasticReading `json:"stochastic,omitempty"`
	Volume     *VolumeReading     `json:"volume,omitempty"`
	ATR        *float64           `json:"atr,omitempty"`
}

// RSIReading holds the current RSI value and its classification.
type RSIReading struct {
	Value  float64 `json:"value"`
	Signal Tone    `json:"signal"`
}

// MAReading holds a moving-average value, its slope and classification.
type MAReading struct {
	Value  float64 `json:"value"`
	Slope  float64 `json:"slope"` // percent change of the MA over the last step
	Signal Tone    `json:"signal"`
}

// MACDReading holds MACD line, signal line and histogram.
type MACDReading struct {
	MACD      float64 `json:"macd"`
	Signal    float64 `json:"signal"`
	Histogram float64 `json:"histogram"`
	Trend     Tone    `json:"trend"`
}

// BollingerReading holds band levels plus the derived bandwidth and the
// position of price inside the band (0 = lower band, 1 = upper band).
type BollingerReading struct {
	Upper        float64 `json:"upper"`
	Middle       float64 `json:"middle"`
	Lower        float64 `json:"lower"`
	Bandwidth    float64 `json:"bandwidth"` // (upper-lower)/middle, percent
	BandPosition float64 `json:"band_position"`
	Signal       Tone    `json:"signal"`
}

// StochasticReading holds %K and %D.
type StochasticReading struct {
	K      float64 `json:"k"`
	D      float64 `json:"d"`
	Signal Tone    `json:"signal"`
}

// VolumeReading compares current volume against its moving average.
type VolumeReading struct {
	Current float64 `json:"current"`
	Average float64 `json:"average"`
	Ratio   float64 `json:"ratio"`
	ROC     float64 `json:"roc"` // volume rate of change, percent
	Signal  Tone    `json:"signal"`
}

// Ticker is the subset of exchange ticker data the pipeline consumes.
type Ticker struct {
	Symbol    string    `json:"symbol"`
	Last      float64   `json:"last"`
	Change24h float64   `json:"change_24h"`
	Volume    float64   `json:"volume"`
	Timestamp time.Time `json:"timestamp"`
}
