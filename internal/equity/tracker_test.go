package equity

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestDrawdownZeroBeforeFirstUpdate(t *testing.T) {
	tr := NewTracker(zerolog.Nop())
	assert.Equal(t, 0.0, tr.Drawdown())
	assert.Equal(t, 0.0, tr.Current())
	assert.Equal(t, 0.0, tr.Peak())
}

func TestPeakOnlyRises(t *testing.T) {
	tr := NewTracker(zerolog.Nop())

	tr.UpdateEquity(Balance{Free: 10000}, nil)
	assert.Equal(t, 10000.0, tr.Peak())

	tr.UpdateEquity(Balance{Free: 12000}, nil)
	assert.Equal(t, 12000.0, tr.Peak())

	tr.UpdateEquity(Balance{Free: 9000}, nil)
	assert.Equal(t, 12000.0, tr.Peak())
	assert.Equal(t, 9000.0, tr.Current())
}

func TestDrawdownFromPeak(t *testing.T) {
	tr := NewTracker(zerolog.Nop())

	tr.UpdateEquity(Balance{Free: 10000}, nil)
	tr.UpdateEquity(Balance{Free: 8500}, nil)

	assert.InDelta(t, 0.15, tr.Drawdown(), 1e-9)
}

func TestDrawdownZeroAtNewHigh(t *testing.T) {
	tr := NewTracker(zerolog.Nop())

	tr.UpdateEquity(Balance{Free: 10000}, nil)
	tr.UpdateEquity(Balance{Free: 11000}, nil)

	assert.Equal(t, 0.0, tr.Drawdown())
}

func TestEquityIncludesLockedAndUnrealized(t *testing.T) {
	tr := NewTracker(zerolog.Nop())

	tr.UpdateEquity(Balance{Free: 9000, Locked: 500}, []float64{120, -20})
	assert.Equal(t, 9600.0, tr.Current())
}

func TestHistoryBounded(t *testing.T) {
	tr := NewTracker(zerolog.Nop())

	for i := 0; i < historyCap+25; i++ {
		tr.UpdateEquity(Balance{Free: float64(10000 + i)}, nil)
	}

	history := tr.History()
	assert.Len(t, history, historyCap)
	// Oldest retained sample is the 26th update.
	assert.Equal(t, 10025.0, history[0].Equity)
	assert.Equal(t, float64(10000+historyCap+24), history[len(history)-1].Equity)
}
