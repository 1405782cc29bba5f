package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Black-And-White-Club/discord-rules-bot/app/bot"
	discord "github.com/Black-And-White-Club/discord-rules-bot/app/discordgo"
	"github.com/Black-And-White-Club/discord-rules-bot/app/shared/observability"
	"github.com/Black-And-White-Club/discord-rules-bot/app/shared/observability/attr"
	"github.com/Black-And-White-Club/discord-rules-bot/config"
	"github.com/bwmarrin/discordgo"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/otel"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	// Load configuration.
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger.
	logger, flushLogs, err := observability.NewLogger(observability.LoggerOptions{
		Level:        cfg.Logging.Level,
		Format:       cfg.Logging.Format,
		ServiceName:  cfg.Service.Name,
		LokiURL:      cfg.Loki.URL,
		LokiTenantID: cfg.Loki.TenantID,
		LokiUsername: cfg.Loki.Username,
		LokiPassword: cfg.Loki.Password,
	})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer flushLogs()
	logger.Info("Loaded configuration", attr.Any("config", cfg))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize OpenTelemetry/Tempo tracing.
	tracerShutdown, err := observability.InitTracing(ctx, observability.TracingOptions{
		ServiceName:    cfg.Service.Name,
		ServiceVersion: cfg.Service.Version,
		Endpoint:       cfg.Tempo.Endpoint,
		Insecure:       cfg.Tempo.Insecure,
		SampleRate:     cfg.Tempo.SampleRate,
	})
	if err != nil {
		logger.Error("Failed to initialize tracing", attr.Error(err))
		return
	}
	defer func() {
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		if err := tracerShutdown(shutdownCtx); err != nil {
			logger.Error("Failed to flush traces", attr.Error(err))
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// Create Discord session.
	discordSession, err := discordgo.New("Bot " + cfg.Discord.Token)
	if err != nil {
		logger.Error("Failed to create Discord session", attr.Error(err))
		return
	}
	discordSession.Identify.Intents = bot.Intents

	sessionWrapper := discord.NewDiscordSession(discordSession, logger)

	discordBot, err := bot.NewDiscordBot(ctx, sessionWrapper, cfg, logger, registry, otel.Tracer(cfg.Service.Name))
	if err != nil {
		logger.Error("Failed to create Discord bot", attr.Error(err))
		return
	}

	if err := discordBot.Run(ctx); err != nil {
		logger.Error("Discord bot error", attr.Error(err))
		discordBot.Close()
		return
	}

	// Handle graceful shutdown.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down gracefully...")
	discordBot.Close()
	cancel()

	logger.Info("Shutdown complete.")
}
