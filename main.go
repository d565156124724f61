package main

import (
	"context"
	"flag"
	"log"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"tradepilot/config"
	"tradepilot/internal/alerts"
	"tradepilot/internal/api"
	"tradepilot/internal/auth"
	"tradepilot/internal/equity"
	"tradepilot/internal/events"
	"tradepilot/internal/exchange"
	"tradepilot/internal/logging"
	"tradepilot/internal/market"
	"tradepilot/internal/notification"
	"tradepilot/internal/pipeline"
	"tradepilot/internal/proposer"
	"tradepilot/internal/risk"
	"tradepilot/internal/secrets"
	"tradepilot/internal/store"
	"tradepilot/internal/trading"
)

func main() {
	sampleConfig := flag.String("sample-config", "", "write a sample config file to the given path and exit")
	flag.Parse()

	if *sampleConfig != "" {
		if err := config.GenerateSampleConfig(*sampleConfig); err != nil {
			log.Fatalf("write sample config: %v", err)
		}
		return
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load configuration: %v", err)
	}

	logger := logging.New(cfg.Logging)
	logger.Info().Str("mode", cfg.Exchange.Mode).Msg("starting tradepilot")

	ctx, stop := ossignal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Secrets: Vault when enabled, config values otherwise.
	loader, err := secrets.NewLoader(secrets.Config{
		Enabled:    cfg.Vault.Enabled,
		Address:    cfg.Vault.Address,
		Token:      cfg.Vault.Token,
		MountPath:  cfg.Vault.MountPath,
		SecretPath: cfg.Vault.SecretPath,
	}, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("vault setup failed")
	}
	creds := loader.ExchangeCredentials(ctx, secrets.ExchangeCredentials{
		APIKey:    cfg.Exchange.APIKey,
		SecretKey: cfg.Exchange.SecretKey,
	})
	webhooks := loader.WebhookTokens(ctx, secrets.WebhookTokens{
		TelegramBotToken:  cfg.Notification.Telegram.BotToken,
		DiscordWebhookURL: cfg.Notification.Discord.WebhookURL,
	})
	_ = creds // live adapter credentials; unused in paper mode

	// Execution adapter. Only the paper adapter ships today; live trading
	// plugs in behind the same interface.
	var ex exchange.Exchange
	switch cfg.Exchange.Mode {
	case "paper", "":
		ex = exchange.NewPaper(cfg.Exchange.QuoteAsset, cfg.Exchange.PaperBalance)
	default:
		logger.Fatal().Str("mode", cfg.Exchange.Mode).Msg("unsupported exchange mode")
	}

	bus := events.NewBus()

	// Notifications ride the event bus; a disabled channel is simply absent.
	if cfg.Notification.Enabled {
		telegramCfg := cfg.Notification.Telegram
		telegramCfg.BotToken = webhooks.TelegramBotToken
		discordCfg := cfg.Notification.Discord
		discordCfg.WebhookURL = webhooks.DiscordWebhookURL

		notifier := notification.NewManager(logger,
			notification.NewTelegramNotifier(telegramCfg),
			notification.NewDiscordNotifier(discordCfg),
		)
		notifier.ListenOn(bus)
	}

	engine := alerts.NewEngine(cfg.Alerts, logger)
	gate := risk.NewGate(cfg.Risk, logger)
	tracker := equity.NewTracker(logger)

	manager := trading.NewManager(cfg.Trading, ex, logger)
	manager.SetEventBus(bus)

	// Persistence is best effort: a missing database or cache downgrades
	// auditing, never trading.
	var ledger *store.Ledger
	if cfg.Postgres.Host != "" {
		ledger, err = store.NewLedger(ctx, cfg.Postgres, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("ledger unavailable, order auditing disabled")
		} else {
			manager.SetLedger(ledger)
			defer ledger.Close()
		}
	}

	snapshots := store.NewPositionSnapshots(cfg.Redis, logger)
	manager.SetSnapshotStore(snapshots)
	defer snapshots.Close()

	if err := manager.RestorePositions(ctx); err != nil {
		logger.Warn().Err(err).Msg("position restore failed, starting flat")
	}

	stream := market.NewStream(cfg.Stream.URL, cfg.Stream.Symbols, logger)

	pipe := pipeline.New(pipeline.Config{
		DecisionInterval:   cfg.Pipeline.DecisionInterval,
		CandleHistory:      cfg.Pipeline.CandleHistory,
		CleanupSchedule:    cfg.Pipeline.CleanupSchedule,
		DailyResetSchedule: cfg.Pipeline.DailyResetSchedule,
		EquitySchedule:     cfg.Pipeline.EquitySchedule,
		AutoTrade:          cfg.Pipeline.AutoTrade,
		QuoteAsset:         cfg.Exchange.QuoteAsset,
	}, stream, engine, proposer.NewConsensus(), gate, manager, tracker, ex, bus, logger)
	if ledger != nil {
		pipe.SetDecisionRecorder(ledger)
	}

	errCh := make(chan error, 3)

	go func() { errCh <- stream.Run(ctx) }()
	go func() { errCh <- pipe.Run(ctx) }()

	if cfg.Server.Enabled {
		var jwtManager *auth.JWTManager
		if cfg.Auth.Enabled {
			if cfg.Auth.JWTSecret == "" {
				logger.Fatal().Msg("auth enabled but no JWT secret configured")
			}
			jwtManager = auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenDuration)
		}

		server := api.NewServer(api.ServerConfig{
			Port:            cfg.Server.Port,
			Host:            cfg.Server.Host,
			AllowedOrigins:  cfg.Server.AllowedOrigins,
			ReadTimeout:     time.Duration(cfg.Server.ReadTimeout) * time.Second,
			WriteTimeout:    time.Duration(cfg.Server.WriteTimeout) * time.Second,
			ShutdownTimeout: time.Duration(cfg.Server.ShutdownTimeout) * time.Second,
			AuthEnabled:     cfg.Auth.Enabled,
		}, pipe, manager, gate, tracker, jwtManager, logger)
		go func() { errCh <- server.Start(ctx) }()
	}

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil && err != context.Canceled {
			logger.Error().Err(err).Msg("component failed")
		}
	}

	stop()
	// Give in-flight goroutines a moment to observe cancellation.
	time.Sleep(500 * time.Millisecond)
	logger.Info().Msg("tradepilot stopped")
}
