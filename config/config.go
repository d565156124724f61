// Package config loads the application configuration from config.json and
// applies environment variable overrides on top.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"tradepilot/internal/alerts"
	"tradepilot/internal/logging"
	"tradepilot/internal/notification"
	"tradepilot/internal/risk"
	"tradepilot/internal/store"
	"tradepilot/internal/trading"
)

type Config struct {
	Logging      logging.Config       `json:"logging"`
	Exchange     ExchangeConfig       `json:"exchange"`
	Stream       StreamConfig         `json:"stream"`
	Alerts       alerts.Thresholds    `json:"alerts"`
	Risk         risk.Limits          `json:"risk"`
	Trading      trading.Config       `json:"trading"`
	Postgres     store.PostgresConfig `json:"postgres"`
	Redis        store.RedisConfig    `json:"redis"`
	Notification NotificationConfig   `json:"notification"`
	Server       ServerConfig         `json:"server"`
	Auth         AuthConfig           `json:"auth"`
	Vault        VaultConfig          `json:"vault"`
	Pipeline     PipelineConfig       `json:"pipeline"`
}

// ExchangeConfig selects and parameterizes the execution adapter.
type ExchangeConfig struct {
	Mode         string  `json:"mode"` // "paper" or "live"
	QuoteAsset   string  `json:"quote_asset"`
	PaperBalance float64 `json:"paper_balance"` // starting quote balance in paper mode
	APIKey       string  `json:"api_key"`
	SecretKey    string  `json:"secret_key"`
}

// StreamConfig configures the market data websocket.
type StreamConfig struct {
	URL     string   `json:"url"`
	Symbols []string `json:"symbols"`
}

type NotificationConfig struct {
	Enabled  bool                        `json:"enabled"`
	Telegram notification.TelegramConfig `json:"telegram"`
	Discord  notification.DiscordConfig  `json:"discord"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Enabled         bool   `json:"enabled"`
	Port            int    `json:"port"`
	Host            string `json:"host"`
	AllowedOrigins  string `json:"allowed_origins"`
	ReadTimeout     int    `json:"read_timeout"`  // seconds
	WriteTimeout    int    `json:"write_timeout"` // seconds
	ShutdownTimeout int    `json:"shutdown_timeout"`
}

// AuthConfig holds API authentication configuration.
type AuthConfig struct {
	Enabled             bool          `json:"enabled"`
	JWTSecret           string        `json:"jwt_secret"`
	AccessTokenDuration time.Duration `json:"access_token_duration"`
}

// VaultConfig holds HashiCorp Vault configuration.
type VaultConfig struct {
	Enabled    bool   `json:"enabled"`
	Address    string `json:"address"`
	Token      string `json:"token"`
	MountPath  string `json:"mount_path"`
	SecretPath string `json:"secret_path"`
}

// PipelineConfig holds the decision loop's scheduling knobs.
type PipelineConfig struct {
	DecisionInterval   time.Duration `json:"decision_interval"`
	CandleHistory      int           `json:"candle_history"`
	CleanupSchedule    string        `json:"cleanup_schedule"` // cron expression
	DailyResetSchedule string        `json:"daily_reset_schedule"`
	EquitySchedule     string        `json:"equity_schedule"`
	AutoTrade          bool          `json:"auto_trade"`
}

func Load() (*Config, error) {
	cfg, err := loadFromFile("config.json")
	if err != nil {
		cfg = defaults()
	}
	applyEnvOverrides(cfg)
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Logging: logging.Config{Level: "info", Output: "stdout"},
		Exchange: ExchangeConfig{
			Mode:         "paper",
			QuoteAsset:   "USDT",
			PaperBalance: 10000,
		},
		Stream: StreamConfig{
			URL:     "wss://stream.binance.com:9443/ws",
			Symbols: []string{"BTCUSDT", "ETHUSDT"},
		},
		Alerts:   alerts.DefaultThresholds(),
		Risk:     risk.DefaultLimits(),
		Trading:  trading.DefaultConfig(),
		Postgres: store.PostgresConfig{Host: "localhost", Port: 5432, User: "tradepilot", Database: "tradepilot", SSLMode: "disable"},
		Redis:    store.RedisConfig{Addr: "localhost:6379"},
		Server: ServerConfig{
			Enabled:         true,
			Port:            8080,
			Host:            "0.0.0.0",
			AllowedOrigins:  "*",
			ReadTimeout:     30,
			WriteTimeout:    30,
			ShutdownTimeout: 10,
		},
		Auth: AuthConfig{AccessTokenDuration: 15 * time.Minute},
		Vault: VaultConfig{
			Address:    "http://localhost:8200",
			MountPath:  "secret",
			SecretPath: "tradepilot/api-keys",
		},
		Pipeline: PipelineConfig{
			DecisionInterval:   30 * time.Second,
			CandleHistory:      100,
			CleanupSchedule:    "0 * * * *",
			DailyResetSchedule: "0 0 * * *",
			EquitySchedule:     "*/5 * * * *",
			AutoTrade:          true,
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the config.
// Exchange credentials are read from the environment only as a fallback;
// with Vault enabled they come from Vault instead.
func applyEnvOverrides(cfg *Config) {
	cfg.Logging.Level = getEnvOrDefault("LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.Output = getEnvOrDefault("LOG_OUTPUT", cfg.Logging.Output)
	cfg.Logging.Console = getEnvOrDefault("LOG_CONSOLE", boolStr(cfg.Logging.Console)) == "true"

	cfg.Exchange.Mode = getEnvOrDefault("EXCHANGE_MODE", cfg.Exchange.Mode)
	cfg.Exchange.QuoteAsset = getEnvOrDefault("EXCHANGE_QUOTE_ASSET", cfg.Exchange.QuoteAsset)
	cfg.Exchange.PaperBalance = getEnvFloatOrDefault("EXCHANGE_PAPER_BALANCE", cfg.Exchange.PaperBalance)
	cfg.Exchange.APIKey = getEnvOrDefault("EXCHANGE_API_KEY", cfg.Exchange.APIKey)
	cfg.Exchange.SecretKey = getEnvOrDefault("EXCHANGE_SECRET_KEY", cfg.Exchange.SecretKey)

	cfg.Stream.URL = getEnvOrDefault("STREAM_URL", cfg.Stream.URL)
	if symbols := os.Getenv("STREAM_SYMBOLS"); symbols != "" {
		cfg.Stream.Symbols = splitSymbols(symbols)
	}

	cfg.Postgres.Host = getEnvOrDefault("POSTGRES_HOST", cfg.Postgres.Host)
	cfg.Postgres.Port = getEnvIntOrDefault("POSTGRES_PORT", cfg.Postgres.Port)
	cfg.Postgres.User = getEnvOrDefault("POSTGRES_USER", cfg.Postgres.User)
	cfg.Postgres.Password = getEnvOrDefault("POSTGRES_PASSWORD", cfg.Postgres.Password)
	cfg.Postgres.Database = getEnvOrDefault("POSTGRES_DB", cfg.Postgres.Database)
	cfg.Postgres.SSLMode = getEnvOrDefault("POSTGRES_SSLMODE", cfg.Postgres.SSLMode)

	cfg.Redis.Addr = getEnvOrDefault("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = getEnvOrDefault("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = getEnvIntOrDefault("REDIS_DB", cfg.Redis.DB)

	cfg.Notification.Enabled = getEnvOrDefault("NOTIFICATIONS_ENABLED", boolStr(cfg.Notification.Enabled)) == "true"
	cfg.Notification.Telegram.Enabled = getEnvOrDefault("TELEGRAM_ENABLED", boolStr(cfg.Notification.Telegram.Enabled)) == "true"
	cfg.Notification.Telegram.BotToken = getEnvOrDefault("TELEGRAM_BOT_TOKEN", cfg.Notification.Telegram.BotToken)
	cfg.Notification.Telegram.ChatID = getEnvOrDefault("TELEGRAM_CHAT_ID", cfg.Notification.Telegram.ChatID)
	cfg.Notification.Discord.Enabled = getEnvOrDefault("DISCORD_ENABLED", boolStr(cfg.Notification.Discord.Enabled)) == "true"
	cfg.Notification.Discord.WebhookURL = getEnvOrDefault("DISCORD_WEBHOOK_URL", cfg.Notification.Discord.WebhookURL)

	cfg.Server.Enabled = getEnvOrDefault("SERVER_ENABLED", boolStr(cfg.Server.Enabled)) == "true"
	cfg.Server.Port = getEnvIntOrDefault("SERVER_PORT", cfg.Server.Port)
	cfg.Server.Host = getEnvOrDefault("SERVER_HOST", cfg.Server.Host)
	cfg.Server.AllowedOrigins = getEnvOrDefault("SERVER_ALLOWED_ORIGINS", cfg.Server.AllowedOrigins)

	cfg.Auth.Enabled = getEnvOrDefault("AUTH_ENABLED", boolStr(cfg.Auth.Enabled)) == "true"
	cfg.Auth.JWTSecret = getEnvOrDefault("AUTH_JWT_SECRET", cfg.Auth.JWTSecret)
	cfg.Auth.AccessTokenDuration = getEnvDurationOrDefault("AUTH_ACCESS_TOKEN_DURATION", cfg.Auth.AccessTokenDuration)

	cfg.Vault.Enabled = getEnvOrDefault("VAULT_ENABLED", boolStr(cfg.Vault.Enabled)) == "true"
	cfg.Vault.Address = getEnvOrDefault("VAULT_ADDR", cfg.Vault.Address)
	cfg.Vault.Token = getEnvOrDefault("VAULT_TOKEN", cfg.Vault.Token)
	cfg.Vault.MountPath = getEnvOrDefault("VAULT_MOUNT_PATH", cfg.Vault.MountPath)
	cfg.Vault.SecretPath = getEnvOrDefault("VAULT_SECRET_PATH", cfg.Vault.SecretPath)

	cfg.Pipeline.DecisionInterval = getEnvDurationOrDefault("PIPELINE_DECISION_INTERVAL", cfg.Pipeline.DecisionInterval)
	cfg.Pipeline.AutoTrade = getEnvOrDefault("PIPELINE_AUTO_TRADE", boolStr(cfg.Pipeline.AutoTrade)) == "true"
}

func loadFromFile(filename string) (*Config, error) {
	file, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := defaults()
	if err := json.Unmarshal(file, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	return cfg, nil
}

func splitSymbols(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(strings.ToUpper(p)); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func boolStr(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// GenerateSampleConfig writes a reference configuration file.
func GenerateSampleConfig(filename string) error {
	data, err := json.MarshalIndent(defaults(), "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filename, data, 0644)
}
