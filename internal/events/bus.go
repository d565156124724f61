// Package events provides the observability event bus. Control flow between
// pipeline stages is direct function composition; the bus only fans out
// informational events to listeners such as the notifier.
package events

import (
	"sync"
	"time"
)

// EventType identifies a pipeline event.
type EventType string

const (
	EventSignalProposed EventType = "SIGNAL_PROPOSED"
	EventSignalRejected EventType = "SIGNAL_REJECTED"
	EventTradeOpened    EventType = "TRADE_OPENED"
	EventTradeClosed    EventType = "TRADE_CLOSED"
	EventAlert          EventType = "ALERT"
	EventError          EventType = "ERROR"
)

// Event is a single published event.
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// Subscriber handles events. Subscribers run on their own goroutine per
// event and must not assume ordering across events.
type Subscriber func(Event)

// Bus fans events out to subscribers.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[EventType][]Subscriber
	allSubs     []Subscriber
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{
		subscribers: make(map[EventType][]Subscriber),
	}
}

// Subscribe registers a subscriber for one event type.
func (b *Bus) Subscribe(t EventType, s Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[t] = append(b.subscribers[t], s)
}

// SubscribeAll registers a subscriber for every event.
func (b *Bus) SubscribeAll(s Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.allSubs = append(b.allSubs, s)
}

// Publish delivers the event to all matching subscribers without blocking
// the publisher.
func (b *Bus) Publish(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, s := range b.subscribers[event.Type] {
		go s(event)
	}
	for _, s := range b.allSubs {
		go s(event)
	}
}

// PublishSignalProposed publishes a proposed-signal event.
func (b *Bus) PublishSignalProposed(symbol, action, reasoning string, confidence float64) {
	b.Publish(Event{
		Type: EventSignalProposed,
		Data: map[string]interface{}{
			"symbol":     symbol,
			"action":     action,
			"confidence": confidence,
			"reasoning":  reasoning,
		},
	})
}

// PublishSignalRejected publishes a gate-rejection event.
func (b *Bus) PublishSignalRejected(symbol, action, reason string, failedChecks []string) {
	b.Publish(Event{
		Type: EventSignalRejected,
		Data: map[string]interface{}{
			"symbol":        symbol,
			"action":        action,
			"reason":        reason,
			"failed_checks": failedChecks,
		},
	})
}

// PublishTradeOpened publishes a trade-opened event.
func (b *Bus) PublishTradeOpened(symbol, side string, entryPrice, quantity float64) {
	b.Publish(Event{
		Type: EventTradeOpened,
		Data: map[string]interface{}{
			"symbol":      symbol,
			"side":        side,
			"entry_price": entryPrice,
			"quantity":    quantity,
		},
	})
}

// PublishTradeClosed publishes a trade-closed event.
func (b *Bus) PublishTradeClosed(symbol string, entryPrice, exitPrice, quantity, pnl, pnlPercent float64) {
	b.Publish(Event{
		Type: EventTradeClosed,
		Data: map[string]interface{}{
			"symbol":      symbol,
			"entry_price": entryPrice,
			"exit_price":  exitPrice,
			"quantity":    quantity,
			"pnl":         pnl,
			"pnl_percent": pnlPercent,
		},
	})
}

// PublishAlert publishes an alert event.
func (b *Bus) PublishAlert(symbol, alertType, severity, message string) {
	b.Publish(Event{
		Type: EventAlert,
		Data: map[string]interface{}{
			"symbol":   symbol,
			"alert":    alertType,
			"severity": severity,
			"message":  message,
		},
	})
}

// PublishError publishes an error event.
func (b *Bus) PublishError(source, message string, err error) {
	data := map[string]interface{}{
		"source":  source,
		"message": message,
	}
	if err != nil {
		data["error"] = err.Error()
	}
	b.Publish(Event{Type: EventError, Data: data})
}
