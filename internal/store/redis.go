package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"tradepilot/internal/trading"
)

const (
	positionsKey = "tradepilot:positions"
	positionsTTL = 7 * 24 * time.Hour
)

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

// PositionSnapshots persists open positions in Redis so a restarted
// process can pick them up. When Redis is unavailable it degrades to an
// in-memory copy so trading continues uninterrupted.
type PositionSnapshots struct {
	client *redis.Client
	logger zerolog.Logger

	mu       sync.RWMutex
	fallback []trading.Position
}

var _ trading.SnapshotStore = (*PositionSnapshots)(nil)

// NewPositionSnapshots connects to Redis. A failed ping is logged, not
// fatal: the store starts in fallback mode.
func NewPositionSnapshots(cfg RedisConfig, logger zerolog.Logger) *PositionSnapshots {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	s := &PositionSnapshots{
		client: client,
		logger: logger.With().Str("component", "PositionSnapshots").Logger(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		s.logger.Warn().Err(err).Msg("redis unavailable, using in-memory snapshots")
	}
	return s
}

// SavePositions stores the full open-position set.
func (s *PositionSnapshots) SavePositions(ctx context.Context, positions []trading.Position) error {
	s.mu.Lock()
	s.fallback = append([]trading.Position(nil), positions...)
	s.mu.Unlock()

	data, err := json.Marshal(positions)
	if err != nil {
		return fmt.Errorf("marshal positions: %w", err)
	}
	if err := s.client.Set(ctx, positionsKey, data, positionsTTL).Err(); err != nil {
		return fmt.Errorf("save positions: %w", err)
	}
	return nil
}

// LoadPositions returns the last saved set, preferring Redis and falling
// back to the in-memory copy.
func (s *PositionSnapshots) LoadPositions(ctx context.Context) ([]trading.Position, error) {
	data, err := s.client.Get(ctx, positionsKey).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		s.mu.RLock()
		defer s.mu.RUnlock()
		if s.fallback != nil {
			s.logger.Warn().Err(err).Msg("redis read failed, using in-memory snapshot")
			return append([]trading.Position(nil), s.fallback...), nil
		}
		return nil, fmt.Errorf("load positions: %w", err)
	}

	var positions []trading.Position
	if err := json.Unmarshal(data, &positions); err != nil {
		return nil, fmt.Errorf("unmarshal positions: %w", err)
	}
	return positions, nil
}

// Close releases the Redis connection.
func (s *PositionSnapshots) Close() error {
	return s.client.Close()
}
