// Package exchange defines the execution adapter boundary. The pipeline
// owns no exchange connectivity; it consumes this interface and treats any
// non-success result as a no-op on its own state.
package exchange

import (
	"context"
	"errors"
	"time"

	"tradepilot/internal/market"
)

// Side is the order side.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// ErrInsufficientBalance is returned when the account cannot fund an order.
var ErrInsufficientBalance = errors.New("insufficient balance")

// OrderResult is the terminal result of a market order submission.
type OrderResult struct {
	OrderID   string    `json:"order_id"`
	Symbol    string    `json:"symbol"`
	Side      Side      `json:"side"`
	Price     float64   `json:"price"`
	Quantity  float64   `json:"quantity"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// AssetBalance is the balance of one asset.
type AssetBalance struct {
	Asset  string  `json:"asset"`
	Free   float64 `json:"free"`
	Locked float64 `json:"locked"`
}

// Total returns free plus locked.
func (b AssetBalance) Total() float64 { return b.Free + b.Locked }

// Exchange is the execution adapter. Calls are blocking I/O; timeouts are
// the adapter's responsibility, surfaced as errors.
type Exchange interface {
	// CreateMarketOrder submits a market order for the given base quantity.
	CreateMarketOrder(ctx context.Context, symbol string, side Side, quantity float64) (*OrderResult, error)
	// AccountBalance returns balances keyed by asset.
	AccountBalance(ctx context.Context) (map[string]AssetBalance, error)
	// FetchTicker returns the latest ticker for a symbol.
	FetchTicker(ctx context.Context, symbol string) (*market.Ticker, error)
}
