package trading

import (
	"time"

	"tradepilot/internal/exchange"
)

// Side is the direction of an open position.
type Side string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

// PnL is a profit-and-loss figure in absolute quote currency and as a
// percentage of the entry.
type PnL struct {
	Absolute   float64 `json:"absolute"`
	Percentage float64 `json:"percentage"`
}

// IsProfit reports whether the P&L is positive.
func (p PnL) IsProfit() bool { return p.Absolute > 0 }

// Position is an open trade. CurrentPrice and Unrealized are refreshed by
// the monitoring pass; StopLoss may be raised by the trailing ratchet but
// never lowered.
type Position struct {
	Symbol       string    `json:"symbol"`
	Side         Side      `json:"side"`
	EntryPrice   float64   `json:"entry_price"`
	Quantity     float64   `json:"quantity"`
	EntryTime    time.Time `json:"entry_time"`
	StopLoss     float64   `json:"stop_loss"`
	TakeProfit   float64   `json:"take_profit"`
	CurrentPrice float64   `json:"current_price"`
	Unrealized   PnL       `json:"unrealized_pnl"`
	Confidence   float64   `json:"confidence"` // from the originating signal
	TrailingOn   bool      `json:"trailing_on"`
	OrderID      string    `json:"order_id"` // opening order
}

// OrderStatus tracks whether the position an order opened is still live.
type OrderStatus string

const (
	OrderOpen   OrderStatus = "OPEN"
	OrderClosed OrderStatus = "CLOSED"
)

// Order is an execution record appended to history. It is never mutated
// after creation except to attach close economics when the corresponding
// closing execution completes.
type Order struct {
	ID        string        `json:"id"`
	Symbol    string        `json:"symbol"`
	Side      exchange.Side `json:"side"`
	Quantity  float64       `json:"quantity"`
	Price     float64       `json:"price"`
	Timestamp time.Time     `json:"timestamp"`
	Mode      string        `json:"mode"` // live or paper
	Status    OrderStatus   `json:"status"`

	// Close economics, attached when the position closes.
	PnL         *PnL      `json:"pnl,omitempty"`
	ExitPrice   float64   `json:"exit_price,omitempty"`
	ExitTime    time.Time `json:"exit_time,omitempty"`
	CloseReason string    `json:"close_reason,omitempty"`
}

// Stats aggregates realized results. Updated exactly once per closed
// position.
type Stats struct {
	TotalTrades int     `json:"total_trades"`
	WinTrades   int     `json:"win_trades"`
	LossTrades  int     `json:"loss_trades"`
	TotalPnL    float64 `json:"total_pnl"`
	DailyPnL    float64 `json:"daily_pnl"`
}

// WinRate returns winning closed trades as a percentage, 0 with no closed
// trades.
func (s Stats) WinRate() float64 {
	closed := s.WinTrades + s.LossTrades
	if closed == 0 {
		return 0
	}
	return float64(s.WinTrades) / float64(closed) * 100
}

// PortfolioStatus is the read-only aggregate view of the manager.
type PortfolioStatus struct {
	OpenPositions []Position `json:"open_positions"`
	UnrealizedPnL float64    `json:"unrealized_pnl"`
	RealizedPnL   float64    `json:"realized_pnl"`
	DailyPnL      float64    `json:"daily_pnl"`
	WinRate       float64    `json:"win_rate"`
	TotalTrades   int        `json:"total_trades"`
	WinTrades     int        `json:"win_trades"`
	LossTrades    int        `json:"loss_trades"`
	Degraded      bool       `json:"degraded"`
}

// CloseReason labels why a position was closed.
type CloseReason string

const (
	CloseManual     CloseReason = "MANUAL"
	CloseStopLoss   CloseReason = "STOP_LOSS"
	CloseTakeProfit CloseReason = "TAKE_PROFIT"
	CloseEmergency  CloseReason = "EMERGENCY_EXIT"
)
