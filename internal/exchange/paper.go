package exchange

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"tradepilot/internal/market"
)

// Paper is a simulated execution adapter: random-walk prices, instant fills
// and a tracked quote balance. It backs dry-run mode and tests.
type Paper struct {
	mu         sync.RWMutex
	prices     map[string]float64
	balances   map[string]AssetBalance
	quoteAsset string
	rng        *rand.Rand
	lastWalk   time.Time
}

var _ Exchange = (*Paper)(nil)

// NewPaper creates a paper exchange funded with the given quote balance.
func NewPaper(quoteAsset string, quoteBalance float64) *Paper {
	p := &Paper{
		prices: map[string]float64{
			"BTCUSDT": 104500.00,
			"ETHUSDT": 3900.00,
			"BNBUSDT": 710.00,
			"SOLUSDT": 220.00,
			"XRPUSDT": 2.35,
			"ADAUSDT": 1.05,
			"DOGEUSDT": 0.40,
			"LINKUSDT": 28.00,
		},
		balances:   make(map[string]AssetBalance),
		quoteAsset: quoteAsset,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
		lastWalk:   time.Now(),
	}
	p.balances[quoteAsset] = AssetBalance{Asset: quoteAsset, Free: quoteBalance}
	return p
}

// SetPrice pins a symbol's price, bypassing the random walk. Used by tests
// and replay tooling.
func (p *Paper) SetPrice(symbol string, price float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prices[symbol] = price
}

// walk applies a small random move to every price at most once per second.
func (p *Paper) walk() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if time.Since(p.lastWalk) < time.Second {
		return
	}
	for symbol, price := range p.prices {
		change := (p.rng.Float64() - 0.5) * 0.01
		p.prices[symbol] = price * (1 + change)
	}
	p.lastWalk = time.Now()
}

// CreateMarketOrder fills immediately at the current simulated price and
// settles balances.
func (p *Paper) CreateMarketOrder(ctx context.Context, symbol string, side Side, quantity float64) (*OrderResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if quantity <= 0 {
		return nil, fmt.Errorf("invalid quantity %f", quantity)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	price, ok := p.prices[symbol]
	if !ok {
		return nil, fmt.Errorf("unknown symbol %s", symbol)
	}

	base := baseAsset(symbol, p.quoteAsset)
	notional := price * quantity
	quote := p.balances[p.quoteAsset]
	baseBal := p.balances[base]

	switch side {
	case SideBuy:
		if quote.Free < notional {
			return nil, fmt.Errorf("%w: need %.2f %s, have %.2f", ErrInsufficientBalance, notional, p.quoteAsset, quote.Free)
		}
		quote.Free -= notional
		baseBal.Asset = base
		baseBal.Free += quantity
	case SideSell:
		if baseBal.Free < quantity {
			return nil, fmt.Errorf("%w: need %.8f %s, have %.8f", ErrInsufficientBalance, quantity, base, baseBal.Free)
		}
		baseBal.Free -= quantity
		quote.Free += notional
	default:
		return nil, fmt.Errorf("unknown side %q", side)
	}

	quote.Asset = p.quoteAsset
	p.balances[p.quoteAsset] = quote
	p.balances[base] = baseBal

	return &OrderResult{
		OrderID:   uuid.NewString(),
		Symbol:    symbol,
		Side:      side,
		Price:     price,
		Quantity:  quantity,
		Status:    "FILLED",
		Timestamp: time.Now(),
	}, nil
}

// AccountBalance returns a copy of the simulated balances.
func (p *Paper) AccountBalance(ctx context.Context) (map[string]AssetBalance, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[string]AssetBalance, len(p.balances))
	for asset, bal := range p.balances {
		out[asset] = bal
	}
	return out, nil
}

// FetchTicker returns the current simulated ticker.
func (p *Paper) FetchTicker(ctx context.Context, symbol string) (*market.Ticker, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.walk()

	p.mu.RLock()
	price, ok := p.prices[symbol]
	p.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown symbol %s", symbol)
	}

	return &market.Ticker{
		Symbol:    symbol,
		Last:      price,
		Timestamp: time.Now(),
	}, nil
}

func baseAsset(symbol, quote string) string {
	return strings.TrimSuffix(symbol, quote)
}
