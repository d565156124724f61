// Package notification delivers fire-and-forget messages about pipeline
// events. Delivery failures are logged and never propagated to the caller.
package notification

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"tradepilot/internal/events"
)

// Notifier is a single delivery channel.
type Notifier interface {
	Send(title, message string) error
	Name() string
	Enabled() bool
}

// Manager fans a message out to every enabled notifier.
type Manager struct {
	notifiers []Notifier
	logger    zerolog.Logger
}

// NewManager creates a notification manager.
func NewManager(logger zerolog.Logger, notifiers ...Notifier) *Manager {
	return &Manager{
		notifiers: notifiers,
		logger:    logger.With().Str("component", "Notifier").Logger(),
	}
}

// Notify sends to all enabled channels. Errors are logged per channel.
func (m *Manager) Notify(title, message string) {
	for _, n := range m.notifiers {
		if !n.Enabled() {
			continue
		}
		if err := n.Send(title, message); err != nil {
			m.logger.Warn().Err(err).Str("channel", n.Name()).Msg("notification failed")
		}
	}
}

// ListenOn subscribes the manager to the pipeline event bus, translating
// events into human-readable messages.
func (m *Manager) ListenOn(bus *events.Bus) {
	bus.Subscribe(events.EventTradeOpened, func(e events.Event) {
		m.Notify(
			fmt.Sprintf("Trade opened: %v", e.Data["symbol"]),
			fmt.Sprintf("%v %v @ %.4f, qty %.8f", e.Data["side"], e.Data["symbol"], e.Data["entry_price"], e.Data["quantity"]),
		)
	})
	bus.Subscribe(events.EventTradeClosed, func(e events.Event) {
		m.Notify(
			fmt.Sprintf("Trade closed: %v", e.Data["symbol"]),
			fmt.Sprintf("entry %.4f, exit %.4f, pnl %.4f (%.2f%%)", e.Data["entry_price"], e.Data["exit_price"], e.Data["pnl"], e.Data["pnl_percent"]),
		)
	})
	bus.Subscribe(events.EventSignalRejected, func(e events.Event) {
		m.Notify(
			fmt.Sprintf("Signal rejected: %v", e.Data["symbol"]),
			fmt.Sprintf("%v %v: %v", e.Data["action"], e.Data["symbol"], e.Data["reason"]),
		)
	})
	bus.Subscribe(events.EventError, func(e events.Event) {
		m.Notify(
			fmt.Sprintf("Error in %v", e.Data["source"]),
			fmt.Sprintf("%v", e.Data["message"]),
		)
	})
}

// TelegramNotifier delivers through the Telegram bot API.
type TelegramNotifier struct {
	botToken string
	chatID   string
	enabled  bool
	client   *http.Client
}

// TelegramConfig holds Telegram settings.
type TelegramConfig struct {
	Enabled  bool   `json:"enabled"`
	BotToken string `json:"bot_token"`
	ChatID   string `json:"chat_id"`
}

// NewTelegramNotifier creates a Telegram notifier.
func NewTelegramNotifier(cfg TelegramConfig) *TelegramNotifier {
	return &TelegramNotifier{
		botToken: cfg.BotToken,
		chatID:   cfg.ChatID,
		enabled:  cfg.Enabled && cfg.BotToken != "" && cfg.ChatID != "",
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (t *TelegramNotifier) Name() string  { return "telegram" }
func (t *TelegramNotifier) Enabled() bool { return t.enabled }

func (t *TelegramNotifier) Send(title, message string) error {
	payload := map[string]interface{}{
		"chat_id":    t.chatID,
		"text":       fmt.Sprintf("*%s*\n\n%s", title, message),
		"parse_mode": "Markdown",
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", t.botToken)
	resp, err := t.client.Post(url, "application/json", bytes.NewBuffer(data))
	if err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram API returned status %d", resp.StatusCode)
	}
	return nil
}

// DiscordNotifier delivers through a Discord webhook.
type DiscordNotifier struct {
	webhookURL string
	enabled    bool
	client     *http.Client
}

// DiscordConfig holds Discord settings.
type DiscordConfig struct {
	Enabled    bool   `json:"enabled"`
	WebhookURL string `json:"webhook_url"`
}

// NewDiscordNotifier creates a Discord notifier.
func NewDiscordNotifier(cfg DiscordConfig) *DiscordNotifier {
	return &DiscordNotifier{
		webhookURL: cfg.WebhookURL,
		enabled:    cfg.Enabled && cfg.WebhookURL != "",
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

func (d *DiscordNotifier) Name() string  { return "discord" }
func (d *DiscordNotifier) Enabled() bool { return d.enabled }

func (d *DiscordNotifier) Send(title, message string) error {
	payload := map[string]interface{}{
		"content": fmt.Sprintf("**%s**\n%s", title, message),
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal discord payload: %w", err)
	}

	resp, err := d.client.Post(d.webhookURL, "application/json", bytes.NewBuffer(data))
	if err != nil {
		return fmt.Errorf("send discord message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("discord webhook returned status %d", resp.StatusCode)
	}
	return nil
}
