// Package trading owns the open-position set and the order history: it
// sizes accepted signals, submits them through the execution adapter and
// autonomously manages exits.
package trading

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"tradepilot/internal/events"
	"tradepilot/internal/exchange"
	"tradepilot/internal/signal"
)

// Validation errors are rejected locally and never retried.
var (
	ErrValidation = errors.New("validation failed")
	ErrDuplicate  = errors.New("duplicate execution")
)

// Config holds the manager's tuning knobs.
type Config struct {
	Mode                  string        `json:"mode"` // live or paper
	QuoteAsset            string        `json:"quote_asset"`
	AutoFraction          float64       `json:"auto_fraction"`   // of free balance, autonomous signals
	ManualFraction        float64       `json:"manual_fraction"` // of free balance, operator signals
	RiskFraction          float64       `json:"risk_fraction"`   // of balance at risk per trade
	MaxTradeValue         float64       `json:"max_trade_value"`
	DefaultStopPct        float64       `json:"default_stop_pct"`   // stop = entry*(1-pct)
	DefaultTargetPct      float64       `json:"default_target_pct"` // target = entry*(1+pct)
	EmergencyLossPct      float64       `json:"emergency_loss_pct"`
	TrailingActivationPct float64       `json:"trailing_activation_pct"`
	TrailingStopFactor    float64       `json:"trailing_stop_factor"`
	MonitorInterval       time.Duration `json:"monitor_interval"`
	SymbolCooldown        time.Duration `json:"symbol_cooldown"`
	FailureThreshold      int           `json:"failure_threshold"` // consecutive adapter failures before degraded
}

// DefaultConfig returns the reference configuration.
func DefaultConfig() Config {
	return Config{
		Mode:                  "paper",
		QuoteAsset:            "USDT",
		AutoFraction:          0.01,
		ManualFraction:        0.05,
		RiskFraction:          0.02,
		MaxTradeValue:         1000,
		DefaultStopPct:        0.03,
		DefaultTargetPct:      0.05,
		EmergencyLossPct:      0.10,
		TrailingActivationPct: 0.05,
		TrailingStopFactor:    0.95,
		MonitorInterval:       30 * time.Second,
		SymbolCooldown:        30 * time.Minute,
		FailureThreshold:      3,
	}
}

// Ledger is the best-effort audit sink for executed orders. Failures are
// logged, never propagated into the trading decision.
type Ledger interface {
	RecordOrder(ctx context.Context, order Order) error
}

// SnapshotStore persists open positions across restarts.
type SnapshotStore interface {
	SavePositions(ctx context.Context, positions []Position) error
	LoadPositions(ctx context.Context) ([]Position, error)
}

// ExecutionResult is the structured outcome of ExecuteSignal.
type ExecutionResult struct {
	Success bool   `json:"success"`
	Order   *Order `json:"order,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Manager owns positions, order history and stats. All mutations happen
// under a single lock; adapter calls never hold it.
type Manager struct {
	cfg      Config
	exchange exchange.Exchange
	logger   zerolog.Logger

	mu        sync.RWMutex
	positions map[string]*Position
	pending   map[string]bool // symbols with an in-flight order
	orders    []*Order
	stats     Stats
	lastTrade map[string]time.Time
	dayStart  time.Time

	failures int // consecutive adapter failures
	degraded bool

	ledger    Ledger
	snapshots SnapshotStore
	bus       *events.Bus
}

// NewManager creates a manager over an execution adapter.
func NewManager(cfg Config, ex exchange.Exchange, logger zerolog.Logger) *Manager {
	return &Manager{
		cfg:       cfg,
		exchange:  ex,
		logger:    logger.With().Str("component", "TradingManager").Logger(),
		positions: make(map[string]*Position),
		pending:   make(map[string]bool),
		lastTrade: make(map[string]time.Time),
		dayStart:  time.Now().Truncate(24 * time.Hour),
	}
}

// SetLedger attaches the audit sink.
func (m *Manager) SetLedger(l Ledger) { m.ledger = l }

// SetSnapshotStore attaches the position snapshot store.
func (m *Manager) SetSnapshotStore(s SnapshotStore) { m.snapshots = s }

// SetEventBus attaches the observability event bus.
func (m *Manager) SetEventBus(b *events.Bus) { m.bus = b }

// RestorePositions reloads open positions from the snapshot store. Called
// once at startup, before monitoring begins.
func (m *Manager) RestorePositions(ctx context.Context) error {
	if m.snapshots == nil {
		return nil
	}
	positions, err := m.snapshots.LoadPositions(ctx)
	if err != nil {
		return fmt.Errorf("load position snapshots: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range positions {
		p := positions[i]
		m.positions[p.Symbol] = &p
	}
	if len(positions) > 0 {
		m.logger.Info().Int("count", len(positions)).Msg("positions restored from snapshot")
	}
	return nil
}

// ExecuteSignal turns an accepted signal into a sized order and applies the
// result. manual marks operator-issued signals, which use the larger sizing
// fraction and skip the cooldown. A failure leaves position and order state
// untouched.
func (m *Manager) ExecuteSignal(ctx context.Context, sig signal.Candidate, manual bool) (*ExecutionResult, error) {
	if !sig.Tradable() {
		return failure(fmt.Errorf("%w: action %s is not tradable", ErrValidation, sig.Action))
	}
	if sig.Symbol == "" {
		return failure(fmt.Errorf("%w: missing symbol", ErrValidation))
	}

	switch sig.Action {
	case signal.ActionBuy:
		return m.executeBuy(ctx, sig, manual)
	default:
		return m.executeSell(ctx, sig, CloseManual)
	}
}

func (m *Manager) executeBuy(ctx context.Context, sig signal.Candidate, manual bool) (*ExecutionResult, error) {
	// Claim the symbol before any I/O so a duplicate delivery of the same
	// signal cannot open two positions.
	m.mu.Lock()
	if m.pending[sig.Symbol] {
		m.mu.Unlock()
		return failure(fmt.Errorf("%w: order already in flight for %s", ErrDuplicate, sig.Symbol))
	}
	if _, open := m.positions[sig.Symbol]; open {
		m.mu.Unlock()
		return failure(fmt.Errorf("%w: position already open for %s", ErrDuplicate, sig.Symbol))
	}
	if !manual && m.cfg.SymbolCooldown > 0 {
		if last, ok := m.lastTrade[sig.Symbol]; ok && time.Since(last) < m.cfg.SymbolCooldown {
			m.mu.Unlock()
			return failure(fmt.Errorf("%w: %s in cooldown until %s", ErrValidation, sig.Symbol, last.Add(m.cfg.SymbolCooldown).Format(time.RFC3339)))
		}
	}
	m.pending[sig.Symbol] = true
	m.mu.Unlock()

	defer m.clearPending(sig.Symbol)

	// Refresh account state immediately before sizing.
	balances, err := m.exchange.AccountBalance(ctx)
	if err != nil {
		m.recordAdapterFailure(err)
		return failure(fmt.Errorf("fetch balance: %w", err))
	}
	free := balances[m.cfg.QuoteAsset].Free

	price := sig.EntryPoint
	if price <= 0 {
		ticker, err := m.exchange.FetchTicker(ctx, sig.Symbol)
		if err != nil {
			m.recordAdapterFailure(err)
			return failure(fmt.Errorf("fetch ticker: %w", err))
		}
		price = ticker.Last
	}

	quantity, err := m.sizeOrder(free, price, sig.EntryPoint, sig.StopLoss, manual)
	if err != nil {
		return failure(err)
	}

	result, err := m.exchange.CreateMarketOrder(ctx, sig.Symbol, exchange.SideBuy, quantity)
	if err != nil {
		m.recordAdapterFailure(err)
		return failure(fmt.Errorf("create order: %w", err))
	}
	m.recordAdapterSuccess()

	order := m.applyOpen(sig, result)
	m.audit(*order)
	m.saveSnapshot()

	if m.bus != nil {
		m.bus.PublishTradeOpened(order.Symbol, string(order.Side), order.Price, order.Quantity)
	}
	return &ExecutionResult{Success: true, Order: order}, nil
}

// applyOpen installs the position and appends the opening order under lock.
func (m *Manager) applyOpen(sig signal.Candidate, result *exchange.OrderResult) *Order {
	stop := sig.StopLoss
	if stop <= 0 {
		stop = result.Price * (1 - m.cfg.DefaultStopPct)
	}
	target := sig.TakeProfit
	if target <= 0 {
		target = result.Price * (1 + m.cfg.DefaultTargetPct)
	}

	order := &Order{
		ID:        result.OrderID,
		Symbol:    result.Symbol,
		Side:      exchange.SideBuy,
		Quantity:  result.Quantity,
		Price:     result.Price,
		Timestamp: result.Timestamp,
		Mode:      m.cfg.Mode,
		Status:    OrderOpen,
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.positions[result.Symbol] = &Position{
		Symbol:       result.Symbol,
		Side:         SideLong,
		EntryPrice:   result.Price,
		Quantity:     result.Quantity,
		EntryTime:    result.Timestamp,
		StopLoss:     stop,
		TakeProfit:   target,
		CurrentPrice: result.Price,
		Confidence:   sig.Confidence,
		OrderID:      order.ID,
	}
	m.orders = append(m.orders, order)
	m.lastTrade[result.Symbol] = time.Now()

	m.logger.Info().
		Str("symbol", result.Symbol).
		Float64("entry", result.Price).
		Float64("quantity", result.Quantity).
		Float64("stop", stop).
		Float64("target", target).
		Msg("position opened")

	return order
}

func (m *Manager) executeSell(ctx context.Context, sig signal.Candidate, reason CloseReason) (*ExecutionResult, error) {
	m.mu.Lock()
	if m.pending[sig.Symbol] {
		m.mu.Unlock()
		return failure(fmt.Errorf("%w: order already in flight for %s", ErrDuplicate, sig.Symbol))
	}
	pos, open := m.positions[sig.Symbol]
	if !open {
		m.mu.Unlock()
		return failure(fmt.Errorf("%w: no open position for %s", ErrValidation, sig.Symbol))
	}
	quantity := pos.Quantity
	m.pending[sig.Symbol] = true
	m.mu.Unlock()

	defer m.clearPending(sig.Symbol)

	result, err := m.exchange.CreateMarketOrder(ctx, sig.Symbol, exchange.SideSell, quantity)
	if err != nil {
		m.recordAdapterFailure(err)
		return failure(fmt.Errorf("create order: %w", err))
	}
	m.recordAdapterSuccess()

	order, err := m.applyClose(sig.Symbol, result, reason)
	if err != nil {
		return failure(err)
	}
	m.audit(*order)
	m.saveSnapshot()

	if m.bus != nil && order.PnL != nil {
		m.bus.PublishTradeClosed(order.Symbol, order.Price, order.ExitPrice, order.Quantity, order.PnL.Absolute, order.PnL.Percentage)
	}
	return &ExecutionResult{Success: true, Order: order}, nil
}

// applyClose re-validates that the position survived the adapter call, then
// removes it, attaches close economics to its opening order and updates
// stats exactly once.
func (m *Manager) applyClose(symbol string, result *exchange.OrderResult, reason CloseReason) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pos, open := m.positions[symbol]
	if !open {
		return nil, fmt.Errorf("%w: position for %s closed concurrently", ErrDuplicate, symbol)
	}

	exitPrice := result.Price
	pnl := PnL{
		Absolute:   (exitPrice - pos.EntryPrice) * pos.Quantity,
		Percentage: (exitPrice - pos.EntryPrice) / pos.EntryPrice * 100,
	}

	delete(m.positions, symbol)
	m.lastTrade[symbol] = time.Now()

	m.checkDailyReset()
	m.stats.TotalTrades++
	if pnl.IsProfit() {
		m.stats.WinTrades++
	} else {
		m.stats.LossTrades++
	}
	m.stats.TotalPnL += pnl.Absolute
	m.stats.DailyPnL += pnl.Absolute

	var order *Order
	for _, o := range m.orders {
		if o.ID == pos.OrderID {
			order = o
			break
		}
	}
	if order == nil {
		// Restored position whose opening order predates this process.
		order = &Order{
			ID:        pos.OrderID,
			Symbol:    symbol,
			Side:      exchange.SideBuy,
			Quantity:  pos.Quantity,
			Price:     pos.EntryPrice,
			Timestamp: pos.EntryTime,
			Mode:      m.cfg.Mode,
		}
		m.orders = append(m.orders, order)
	}
	order.Status = OrderClosed
	order.PnL = &pnl
	order.ExitPrice = exitPrice
	order.ExitTime = result.Timestamp
	order.CloseReason = string(reason)

	m.logger.Info().
		Str("symbol", symbol).
		Str("reason", string(reason)).
		Float64("entry", pos.EntryPrice).
		Float64("exit", exitPrice).
		Float64("pnl", pnl.Absolute).
		Float64("pnl_pct", pnl.Percentage).
		Msg("position closed")

	return order, nil
}

func (m *Manager) clearPending(symbol string) {
	m.mu.Lock()
	delete(m.pending, symbol)
	m.mu.Unlock()
}

// GetPortfolioStatus returns the aggregate view. Side-effect-free.
func (m *Manager) GetPortfolioStatus() PortfolioStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	status := PortfolioStatus{
		OpenPositions: make([]Position, 0, len(m.positions)),
		RealizedPnL:   m.stats.TotalPnL,
		DailyPnL:      m.stats.DailyPnL,
		WinRate:       m.stats.WinRate(),
		TotalTrades:   m.stats.TotalTrades,
		WinTrades:     m.stats.WinTrades,
		LossTrades:    m.stats.LossTrades,
		Degraded:      m.degraded,
	}
	for _, p := range m.positions {
		status.OpenPositions = append(status.OpenPositions, *p)
		status.UnrealizedPnL += p.Unrealized.Absolute
	}
	return status
}

// Orders returns a copy of the order history, oldest first.
func (m *Manager) Orders() []Order {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Order, 0, len(m.orders))
	for _, o := range m.orders {
		out = append(out, *o)
	}
	return out
}

// Stats returns a copy of the aggregate counters.
func (m *Manager) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	m2 := m.stats
	return m2
}

// ResetDailyPnL zeroes the daily counter. Scheduled at midnight by the
// pipeline host.
func (m *Manager) ResetDailyPnL() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats.DailyPnL = 0
	m.dayStart = time.Now().Truncate(24 * time.Hour)
}

// checkDailyReset rolls the daily counter when a close lands on a new day.
// Caller holds the lock.
func (m *Manager) checkDailyReset() {
	today := time.Now().Truncate(24 * time.Hour)
	if today.After(m.dayStart) {
		m.stats.DailyPnL = 0
		m.dayStart = today
	}
}

// Degraded reports whether the execution adapter is persistently failing.
func (m *Manager) Degraded() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.degraded
}

func (m *Manager) recordAdapterFailure(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures++
	if m.failures >= m.cfg.FailureThreshold && !m.degraded {
		m.degraded = true
		m.logger.Error().Err(err).Int("failures", m.failures).Msg("execution adapter degraded")
	}
}

func (m *Manager) recordAdapterSuccess() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = 0
	if m.degraded {
		m.degraded = false
		m.logger.Info().Msg("execution adapter recovered")
	}
}

// audit writes the order to the ledger, best effort.
func (m *Manager) audit(order Order) {
	if m.ledger == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := m.ledger.RecordOrder(ctx, order); err != nil {
			m.logger.Warn().Err(err).Str("order_id", order.ID).Msg("ledger write failed")
		}
	}()
}

// saveSnapshot persists open positions, best effort.
func (m *Manager) saveSnapshot() {
	if m.snapshots == nil {
		return
	}
	m.mu.RLock()
	positions := make([]Position, 0, len(m.positions))
	for _, p := range m.positions {
		positions = append(positions, *p)
	}
	m.mu.RUnlock()

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := m.snapshots.SavePositions(ctx, positions); err != nil {
			m.logger.Warn().Err(err).Msg("position snapshot failed")
		}
	}()
}

func failure(err error) (*ExecutionResult, error) {
	return &ExecutionResult{Success: false, Error: err.Error()}, err
}
