package signal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeValidCandidate(t *testing.T) {
	payload := []byte(`{
		"symbol": "BTCUSDT",
		"action": "BUY",
		"confidence": 0.85,
		"entry_point": 104500,
		"stop_loss": 101000,
		"take_profit": 110000,
		"reasoning": "trend continuation"
	}`)

	c, err := DecodeCandidate(payload)
	require.NoError(t, err)
	assert.Equal(t, "BTCUSDT", c.Symbol)
	assert.Equal(t, ActionBuy, c.Action)
	assert.Equal(t, 0.85, c.Confidence)
	assert.False(t, c.CreatedAt.IsZero())
	assert.True(t, c.Tradable())
}

func TestDecodeRejectsUnknownFields(t *testing.T) {
	payload := []byte(`{"symbol": "BTCUSDT", "action": "BUY", "confidence": 0.9, "leverage": 20}`)

	_, err := DecodeCandidate(payload)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed")
}

func TestDecodeRejectsMissingSymbol(t *testing.T) {
	payload := []byte(`{"action": "BUY", "confidence": 0.9}`)

	_, err := DecodeCandidate(payload)
	assert.Error(t, err)
}

func TestDecodeRejectsUnknownAction(t *testing.T) {
	payload := []byte(`{"symbol": "BTCUSDT", "action": "SHORT", "confidence": 0.9}`)

	_, err := DecodeCandidate(payload)
	assert.Error(t, err)
}

func TestDecodeRejectsConfidenceOutOfRange(t *testing.T) {
	payload := []byte(`{"symbol": "BTCUSDT", "action": "BUY", "confidence": 1.2}`)

	_, err := DecodeCandidate(payload)
	assert.Error(t, err)
}

func TestDecodeRejectsBuyStopAboveEntry(t *testing.T) {
	payload := []byte(`{"symbol": "BTCUSDT", "action": "BUY", "confidence": 0.9, "entry_point": 100, "stop_loss": 105}`)

	_, err := DecodeCandidate(payload)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stop loss")
}

func TestDecodeRejectsSellTargetAboveEntry(t *testing.T) {
	payload := []byte(`{"symbol": "BTCUSDT", "action": "SELL", "confidence": 0.9, "entry_point": 100, "take_profit": 110}`)

	_, err := DecodeCandidate(payload)
	assert.Error(t, err)
}

func TestDecodeAllowsLevelsWithoutEntry(t *testing.T) {
	payload := []byte(`{"symbol": "ETHUSDT", "action": "SELL", "confidence": 0.75}`)

	c, err := DecodeCandidate(payload)
	require.NoError(t, err)
	assert.Equal(t, ActionSell, c.Action)
}

func TestHoldIsNotTradable(t *testing.T) {
	c := Candidate{Symbol: "BTCUSDT", Action: ActionHold}
	assert.False(t, c.Tradable())
}

func TestNewActiveAssignsIDAndStatus(t *testing.T) {
	a := NewActive(Candidate{Symbol: "BTCUSDT", Action: ActionBuy, Confidence: 0.8})
	assert.Equal(t, StatusActive, a.Status)
	assert.Contains(t, a.ID, "BTCUSDT-")
	assert.False(t, a.CreatedAt.IsZero())
}
