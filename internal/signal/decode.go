package signal

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// The proposer is untrusted input: model output, operator HTTP requests or
// replayed ledger entries. Decoding is strict — unknown fields, missing
// required fields and out-of-range values are rejected outright instead of
// being defaulted.

var validate = validator.New()

// wireCandidate is the schema accepted from external proposers.
type wireCandidate struct {
	Symbol     string  `json:"symbol" validate:"required,alphanum,uppercase"`
	Action     string  `json:"action" validate:"required,oneof=BUY SELL HOLD"`
	Confidence float64 `json:"confidence" validate:"gte=0,lte=1"`
	EntryPoint float64 `json:"entry_point" validate:"gte=0"`
	StopLoss   float64 `json:"stop_loss" validate:"gte=0"`
	TakeProfit float64 `json:"take_profit" validate:"gte=0"`
	Reasoning  string  `json:"reasoning"`
}

// DecodeCandidate parses and validates one proposed signal.
func DecodeCandidate(data []byte) (Candidate, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var wire wireCandidate
	if err := dec.Decode(&wire); err != nil {
		return Candidate{}, fmt.Errorf("malformed signal payload: %w", err)
	}
	if err := validate.Struct(wire); err != nil {
		return Candidate{}, fmt.Errorf("invalid signal: %w", err)
	}

	c := Candidate{
		Symbol:     wire.Symbol,
		Action:     Action(wire.Action),
		Confidence: wire.Confidence,
		EntryPoint: wire.EntryPoint,
		StopLoss:   wire.StopLoss,
		TakeProfit: wire.TakeProfit,
		Reasoning:  wire.Reasoning,
		CreatedAt:  time.Now(),
	}
	if err := checkLevels(c); err != nil {
		return Candidate{}, err
	}
	return c, nil
}

// checkLevels rejects price targets that contradict the action. A BUY with
// a stop above its entry would trigger immediately; same for a SELL target
// above entry.
func checkLevels(c Candidate) error {
	if c.EntryPoint == 0 {
		return nil
	}
	switch c.Action {
	case ActionBuy:
		if c.StopLoss != 0 && c.StopLoss >= c.EntryPoint {
			return fmt.Errorf("invalid signal: BUY stop loss %.4f not below entry %.4f", c.StopLoss, c.EntryPoint)
		}
		if c.TakeProfit != 0 && c.TakeProfit <= c.EntryPoint {
			return fmt.Errorf("invalid signal: BUY take profit %.4f not above entry %.4f", c.TakeProfit, c.EntryPoint)
		}
	case ActionSell:
		if c.StopLoss != 0 && c.StopLoss <= c.EntryPoint {
			return fmt.Errorf("invalid signal: SELL stop loss %.4f not above entry %.4f", c.StopLoss, c.EntryPoint)
		}
		if c.TakeProfit != 0 && c.TakeProfit >= c.EntryPoint {
			return fmt.Errorf("invalid signal: SELL take profit %.4f not below entry %.4f", c.TakeProfit, c.EntryPoint)
		}
	}
	return nil
}
