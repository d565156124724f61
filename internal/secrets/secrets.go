// Package secrets resolves runtime credentials. With Vault enabled,
// exchange keys and webhook tokens come from a KV v2 mount; otherwise the
// values already present in the config are used as-is.
package secrets

import (
	"context"
	"fmt"

	"github.com/hashicorp/vault/api"
	"github.com/rs/zerolog"
)

// Config holds Vault connection settings.
type Config struct {
	Enabled    bool
	Address    string
	Token      string
	MountPath  string // KV secrets engine mount
	SecretPath string // path under the mount
}

// ExchangeCredentials are the secrets needed by a live execution adapter.
type ExchangeCredentials struct {
	APIKey    string
	SecretKey string
}

// WebhookTokens are the secrets needed by the notification channels.
type WebhookTokens struct {
	TelegramBotToken  string
	DiscordWebhookURL string
}

// Loader reads secrets from Vault.
type Loader struct {
	client *api.Client
	cfg    Config
	logger zerolog.Logger
}

// NewLoader creates a loader. With Vault disabled the loader is a no-op
// and every lookup returns the provided fallback.
func NewLoader(cfg Config, logger zerolog.Logger) (*Loader, error) {
	l := &Loader{cfg: cfg, logger: logger.With().Str("component", "Secrets").Logger()}
	if !cfg.Enabled {
		return l, nil
	}

	vaultConfig := api.DefaultConfig()
	vaultConfig.Address = cfg.Address

	client, err := api.NewClient(vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("create vault client: %w", err)
	}
	client.SetToken(cfg.Token)
	l.client = client
	return l, nil
}

// ExchangeCredentials reads the exchange API keys. On any failure the
// fallback is returned and the failure is logged; a missing secret must
// not stop a paper-mode process from starting.
func (l *Loader) ExchangeCredentials(ctx context.Context, fallback ExchangeCredentials) ExchangeCredentials {
	data, err := l.read(ctx, "exchange")
	if err != nil {
		if l.cfg.Enabled {
			l.logger.Warn().Err(err).Msg("vault read failed, using configured exchange credentials")
		}
		return fallback
	}

	out := fallback
	if v, ok := data["api_key"].(string); ok && v != "" {
		out.APIKey = v
	}
	if v, ok := data["secret_key"].(string); ok && v != "" {
		out.SecretKey = v
	}
	return out
}

// WebhookTokens reads the notification channel secrets.
func (l *Loader) WebhookTokens(ctx context.Context, fallback WebhookTokens) WebhookTokens {
	data, err := l.read(ctx, "webhooks")
	if err != nil {
		if l.cfg.Enabled {
			l.logger.Warn().Err(err).Msg("vault read failed, using configured webhook tokens")
		}
		return fallback
	}

	out := fallback
	if v, ok := data["telegram_bot_token"].(string); ok && v != "" {
		out.TelegramBotToken = v
	}
	if v, ok := data["discord_webhook_url"].(string); ok && v != "" {
		out.DiscordWebhookURL = v
	}
	return out
}

// read fetches a KV v2 secret and unwraps the nested data map.
func (l *Loader) read(ctx context.Context, name string) (map[string]interface{}, error) {
	if l.client == nil {
		return nil, fmt.Errorf("vault disabled")
	}

	path := fmt.Sprintf("%s/data/%s/%s", l.cfg.MountPath, l.cfg.SecretPath, name)
	secret, err := l.client.Logical().ReadWithContext(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("secret %s not found", path)
	}

	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("secret %s has no data payload", path)
	}
	return data, nil
}
