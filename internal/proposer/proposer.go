// Package proposer produces candidate signals. The built-in consensus
// proposer scores the indicator set; external proposers (model output,
// operator input) arrive through the strict decoder in package signal.
package proposer

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"tradepilot/internal/market"
	"tradepilot/internal/signal"
)

// Proposer produces zero or one candidate for a symbol snapshot.
type Proposer interface {
	Propose(ctx context.Context, snap market.Snapshot, ind market.Indicators) (*signal.Candidate, error)
}

// toneWeights scores each indicator reading. Oversold leans mildly bullish
// and overbought mildly bearish; hard crossover signals weigh the same as a
// plain trend.
var toneWeights = map[market.Tone]float64{
	market.ToneStrongBullish: 3,
	market.ToneBullish:       2,
	market.ToneBuy:           2,
	market.ToneOversold:      1,
	market.ToneNeutral:       0,
	market.ToneOverbought:    -1,
	market.ToneBearish:       -2,
	market.ToneSell:          -2,
	market.ToneStrongBearish: -3,
}

// Consensus maps the weighted average of all available indicator readings
// to a BUY/SELL/HOLD candidate, with confidence scaled by how one-sided
// the readings are.
type Consensus struct {
	// BuyThreshold and SellThreshold bound the neutral zone of the
	// average score.
	BuyThreshold  float64
	SellThreshold float64
}

var _ Proposer = (*Consensus)(nil)

// NewConsensus returns a consensus proposer with the reference thresholds.
func NewConsensus() *Consensus {
	return &Consensus{BuyThreshold: 0.5, SellThreshold: -0.5}
}

// Propose scores the available indicator readings. It never returns an
// error; with no readings at all it returns nil.
func (c *Consensus) Propose(_ context.Context, snap market.Snapshot, ind market.Indicators) (*signal.Candidate, error) {
	score, count, parts := 0.0, 0, []string{}

	add := func(name string, tone market.Tone) {
		w, ok := toneWeights[tone]
		if !ok {
			return
		}
		score += w
		count++
		if w != 0 {
			parts = append(parts, fmt.Sprintf("%s=%s", name, tone))
		}
	}

	if ind.RSI != nil {
		add("RSI", ind.RSI.Signal)
	}
	if ind.SMA != nil {
		add("SMA", ind.SMA.Signal)
	}
	if ind.EMA != nil {
		add("EMA", ind.EMA.Signal)
	}
	if ind.MACD != nil {
		add("MACD", ind.MACD.Trend)
	}
	if ind.Bollinger != nil {
		add("BOLLINGER", ind.Bollinger.Signal)
	}
	if ind.Stochastic != nil {
		add("STOCHASTIC", ind.Stochastic.Signal)
	}
	if ind.Volume != nil {
		add("VOLUME", ind.Volume.Signal)
	}

	if count == 0 {
		return nil, nil
	}

	avg := score / float64(count)
	action := signal.ActionHold
	switch {
	case avg >= c.BuyThreshold:
		action = signal.ActionBuy
	case avg <= c.SellThreshold:
		action = signal.ActionSell
	}

	confidence := math.Min(1, math.Abs(avg)*0.3)

	return &signal.Candidate{
		Symbol:     snap.Symbol,
		Action:     action,
		Confidence: confidence,
		EntryPoint: snap.Price,
		Reasoning:  fmt.Sprintf("indicator consensus %.2f over %d readings: %s", avg, count, strings.Join(parts, ", ")),
		CreatedAt:  time.Now(),
	}, nil
}
