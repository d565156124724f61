// Package store provides persistence adapters: a Postgres-backed
// append-only ledger for orders and signal decisions, and a Redis-backed
// snapshot cache for open positions. Both are best-effort collaborators;
// their failures never roll back a trading decision.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"tradepilot/internal/signal"
	"tradepilot/internal/trading"
)

// PostgresConfig holds database connection settings.
type PostgresConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	SSLMode  string `json:"ssl_mode"`
}

// Ledger is the append-only audit sink backed by Postgres.
type Ledger struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

var _ trading.Ledger = (*Ledger)(nil)

// NewLedger connects to Postgres and ensures the schema exists.
func NewLedger(ctx context.Context, cfg PostgresConfig, logger zerolog.Logger) (*Ledger, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	poolConfig.MaxConns = 10
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.HealthCheckPeriod = time.Minute

	connCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connCtx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(connCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	l := &Ledger{
		pool:   pool,
		logger: logger.With().Str("component", "Ledger").Logger(),
	}
	if err := l.migrate(connCtx); err != nil {
		pool.Close()
		return nil, err
	}

	l.logger.Info().Str("database", cfg.Database).Msg("ledger connected")
	return l, nil
}

func (l *Ledger) migrate(ctx context.Context) error {
	schema := `
CREATE TABLE IF NOT EXISTS orders (
	id            TEXT PRIMARY KEY,
	symbol        TEXT NOT NULL,
	side          TEXT NOT NULL,
	quantity      DOUBLE PRECISION NOT NULL,
	price         DOUBLE PRECISION NOT NULL,
	executed_at   TIMESTAMPTZ NOT NULL,
	mode          TEXT NOT NULL,
	status        TEXT NOT NULL,
	pnl           DOUBLE PRECISION,
	pnl_pct       DOUBLE PRECISION,
	exit_price    DOUBLE PRECISION,
	exit_time     TIMESTAMPTZ,
	close_reason  TEXT,
	recorded_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_orders_symbol ON orders(symbol);

CREATE TABLE IF NOT EXISTS signal_decisions (
	id            BIGSERIAL PRIMARY KEY,
	symbol        TEXT NOT NULL,
	action        TEXT NOT NULL,
	confidence    DOUBLE PRECISION NOT NULL,
	entry_point   DOUBLE PRECISION,
	stop_loss     DOUBLE PRECISION,
	take_profit   DOUBLE PRECISION,
	reasoning     TEXT,
	accepted      BOOLEAN NOT NULL,
	reject_reason TEXT,
	created_at    TIMESTAMPTZ NOT NULL,
	recorded_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_signal_decisions_symbol ON signal_decisions(symbol);
`
	if _, err := l.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate ledger schema: %w", err)
	}
	return nil
}

// RecordOrder upserts an order record. The same id arrives twice when a
// position closes: the second write attaches the close economics.
func (l *Ledger) RecordOrder(ctx context.Context, order trading.Order) error {
	var pnl, pnlPct *float64
	var exitTime *time.Time
	var exitPrice *float64
	if order.PnL != nil {
		pnl = &order.PnL.Absolute
		pnlPct = &order.PnL.Percentage
		exitPrice = &order.ExitPrice
		exitTime = &order.ExitTime
	}

	_, err := l.pool.Exec(ctx, `
INSERT INTO orders (id, symbol, side, quantity, price, executed_at, mode, status, pnl, pnl_pct, exit_price, exit_time, close_reason)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
ON CONFLICT (id) DO UPDATE SET
	status = EXCLUDED.status,
	pnl = EXCLUDED.pnl,
	pnl_pct = EXCLUDED.pnl_pct,
	exit_price = EXCLUDED.exit_price,
	exit_time = EXCLUDED.exit_time,
	close_reason = EXCLUDED.close_reason`,
		order.ID, order.Symbol, string(order.Side), order.Quantity, order.Price,
		order.Timestamp, order.Mode, string(order.Status), pnl, pnlPct, exitPrice, exitTime,
		nullableString(order.CloseReason),
	)
	if err != nil {
		return fmt.Errorf("record order %s: %w", order.ID, err)
	}
	return nil
}

// RecordDecision appends a gate decision for a candidate signal.
func (l *Ledger) RecordDecision(ctx context.Context, c signal.Candidate, accepted bool, rejectReason string) error {
	_, err := l.pool.Exec(ctx, `
INSERT INTO signal_decisions (symbol, action, confidence, entry_point, stop_loss, take_profit, reasoning, accepted, reject_reason, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		c.Symbol, string(c.Action), c.Confidence,
		nullableFloat(c.EntryPoint), nullableFloat(c.StopLoss), nullableFloat(c.TakeProfit),
		c.Reasoning, accepted, nullableString(rejectReason), c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("record signal decision for %s: %w", c.Symbol, err)
	}
	return nil
}

// Close releases the connection pool.
func (l *Ledger) Close() {
	if l.pool != nil {
		l.pool.Close()
	}
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullableFloat(f float64) *float64 {
	if f == 0 {
		return nil
	}
	return &f
}
