package market

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Stream consumes miniTicker frames from an exchange websocket endpoint and
// publishes Ticker updates to a channel. It reconnects with exponential
// backoff and resubscribes after every reconnect.
type Stream struct {
	url     string
	symbols []string
	logger  zerolog.Logger

	updates chan Ticker
}

// NewStream creates a ticker stream for the given symbols.
func NewStream(url string, symbols []string, logger zerolog.Logger) *Stream {
	return &Stream{
		url:     url,
		symbols: symbols,
		logger:  logger.With().Str("component", "MarketStream").Logger(),
		updates: make(chan Ticker, 256),
	}
}

// Updates returns the channel ticker updates are delivered on. The channel
// is closed when Run returns.
func (s *Stream) Updates() <-chan Ticker {
	return s.updates
}

// Run connects and pumps ticker updates until the context is cancelled.
func (s *Stream) Run(ctx context.Context) error {
	defer close(s.updates)

	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = 0 // keep retrying for the life of the process
	policy.MaxInterval = time.Minute

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := s.connectAndPump(ctx)
		if err == nil || ctx.Err() != nil {
			return ctx.Err()
		}

		wait := policy.NextBackOff()
		s.logger.Warn().Err(err).Dur("retry_in", wait).Msg("stream disconnected, reconnecting")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

func (s *Stream) connectAndPump(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", s.url, err)
	}
	defer conn.Close()

	if err := s.subscribe(conn); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	s.logger.Info().Int("symbols", len(s.symbols)).Msg("stream connected")

	// Unblock ReadMessage on cancellation.
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}

		tick, ok := parseTickerFrame(data)
		if !ok {
			continue
		}

		select {
		case s.updates <- tick:
		default:
			// Slow consumer: drop the oldest update rather than block the pump.
			select {
			case <-s.updates:
			default:
			}
			s.updates <- tick
		}
	}
}

func (s *Stream) subscribe(conn *websocket.Conn) error {
	params := make([]string, 0, len(s.symbols))
	for _, sym := range s.symbols {
		params = append(params, strings.ToLower(sym)+"@miniTicker")
	}
	msg := map[string]interface{}{
		"method": "SUBSCRIBE",
		"params": params,
		"id":     1,
	}
	return conn.WriteJSON(msg)
}

// tickerFrame mirrors the exchange miniTicker payload. Numeric fields arrive
// as strings.
type tickerFrame struct {
	EventType string `json:"e"`
	Symbol    string `json:"s"`
	Close     string `json:"c"`
	Open      string `json:"o"`
	Volume    string `json:"v"`
	EventTime int64  `json:"E"`
}

func parseTickerFrame(data []byte) (Ticker, bool) {
	var frame tickerFrame
	if err := json.Unmarshal(data, &frame); err != nil || frame.EventType != "24hrMiniTicker" {
		return Ticker{}, false
	}

	last, err := strconv.ParseFloat(frame.Close, 64)
	if err != nil || last <= 0 {
		return Ticker{}, false
	}
	open, _ := strconv.ParseFloat(frame.Open, 64)
	volume, _ := strconv.ParseFloat(frame.Volume, 64)

	change := 0.0
	if open > 0 {
		change = (last - open) / open * 100
	}

	return Ticker{
		Symbol:    frame.Symbol,
		Last:      last,
		Change24h: change,
		Volume:    volume,
		Timestamp: time.UnixMilli(frame.EventTime),
	}, true
}
