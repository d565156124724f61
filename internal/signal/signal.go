// Package signal defines the trading-signal types exchanged between the
// proposer, the risk gate and the position manager.
package signal

import (
	"fmt"
	"time"
)

// Action is the proposed trade action.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

// Status tracks the lifecycle of an active signal.
type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusCompleted Status = "COMPLETED"
	StatusExpired   Status = "EXPIRED"
)

// Candidate is a proposed trade action that has not been risk-checked.
// EntryPoint, StopLoss and TakeProfit are optional; zero means unset.
type Candidate struct {
	Symbol     string    `json:"symbol"`
	Action     Action    `json:"action"`
	Confidence float64   `json:"confidence"` // [0,1]
	EntryPoint float64   `json:"entry_point,omitempty"`
	StopLoss   float64   `json:"stop_loss,omitempty"`
	TakeProfit float64   `json:"take_profit,omitempty"`
	Reasoning  string    `json:"reasoning,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Tradable reports whether the candidate proposes an actual trade. HOLD
// signals are informational only.
func (c Candidate) Tradable() bool {
	return c.Action == ActionBuy || c.Action == ActionSell
}

// Active is a candidate retained for tracking and alerting. At most one
// active signal exists per symbol; a newer signal replaces the older one.
type Active struct {
	Candidate
	ID        string    `json:"id"`
	Status    Status    `json:"status"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewActive wraps a candidate for tracking.
func NewActive(c Candidate) *Active {
	now := time.Now()
	created := c.CreatedAt
	if created.IsZero() {
		created = now
		c.CreatedAt = now
	}
	return &Active{
		Candidate: c,
		ID:        fmt.Sprintf("%s-%d", c.Symbol, created.UnixMilli()),
		Status:    StatusActive,
		UpdatedAt: now,
	}
}

// Age returns how long ago the signal was created.
func (a *Active) Age(now time.Time) time.Duration {
	return now.Sub(a.CreatedAt)
}
