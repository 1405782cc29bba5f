package bot

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Black-And-White-Club/discord-rules-bot/app/commands"
	discord "github.com/Black-And-White-Club/discord-rules-bot/app/discordgo"
	"github.com/Black-And-White-Club/discord-rules-bot/app/guildconfig"
	"github.com/Black-And-White-Club/discord-rules-bot/app/health"
	"github.com/Black-And-White-Club/discord-rules-bot/app/interactions"
	"github.com/Black-And-White-Club/discord-rules-bot/app/reactionrole"
	"github.com/Black-And-White-Club/discord-rules-bot/app/shared/observability/attr"
	"github.com/Black-And-White-Club/discord-rules-bot/app/welcome"
	"github.com/Black-And-White-Club/discord-rules-bot/app/whitelist"
	cache "github.com/Black-And-White-Club/discord-rules-bot/bigcache"
	"github.com/Black-And-White-Club/discord-rules-bot/config"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/bwmarrin/discordgo"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"
)

// Intents are the gateway intents the bot needs: guild metadata, member lookups and reactions.
const Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMembers | discordgo.IntentsGuildMessageReactions

const (
	defaultVersion  = "dev"
	shutdownTimeout = 10 * time.Second
	busBufferSize   = 64
)

type commandRegistrar func(ctx context.Context, s discord.Session, logger *slog.Logger, appID, guildID string) error

type DiscordBot struct {
	Session         discord.Session
	Logger          *slog.Logger
	Config          *config.Config
	Rules           guildconfig.RuleLookup
	WatermillRouter *message.Router
	PubSub          *gochannel.GoChannel
	Health          *health.Handler

	dispatcher   *reactionrole.Dispatcher
	dedupeCache  *cache.Cache
	seeder       *reactionrole.Seeder
	commands     *interactions.Registry
	reactions    *interactions.ReactionRegistry
	healthServer *health.Server

	commandRegistrar commandRegistrar
}

// NewDiscordBot wires the reaction role pipeline, the welcome bus and the slash commands around
// session. Nothing talks to Discord until Run.
func NewDiscordBot(ctx context.Context, session discord.Session, cfg *config.Config, logger *slog.Logger, registry *prometheus.Registry, tracer trace.Tracer) (*DiscordBot, error) {
	logger.Info("Creating DiscordBot")

	rules, err := guildconfig.NewRegistry(cfg.Rules(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build guild registry: %w", err)
	}

	metrics := reactionrole.NewPrometheusMetrics(registry)

	markTTL := reactionrole.StripMarkTTL(cfg.Workers.EventTimeout, cfg.Workers.DedupeWindow)
	dedupeCache, err := cache.NewCache(ctx, markTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to create dedupe cache: %w", err)
	}
	dedupe := reactionrole.NewDedupe(dedupeCache, cfg.Workers.DedupeWindow, markTTL)

	ops := discord.NewOperations(session, logger)

	wmLogger := watermill.NewSlogLogger(logger)
	pubsub := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: busBufferSize}, wmLogger)
	router, err := message.NewRouter(message.RouterConfig{}, wmLogger)
	if err != nil {
		_ = dedupeCache.Close()
		return nil, fmt.Errorf("failed to create watermill router: %w", err)
	}

	notifier := welcome.NewNotifier(ops, tracer, logger)
	welcome.NewRouter(router, pubsub, rules, notifier, logger).Configure()

	engine := reactionrole.NewEngine(session, ops, rules, welcome.NewPublisher(pubsub, logger), dedupe, metrics, tracer, logger)
	dispatcher := reactionrole.NewDispatcher(cfg.Workers.Size, cfg.Workers.EventTimeout, metrics, logger)

	reactions := interactions.NewReactionRegistry(logger)
	reactionrole.NewGateway(session, dispatcher, engine, logger).Register(reactions)

	version := cfg.Service.Version
	if version == "" {
		version = defaultVersion
	}

	var relay whitelist.Relay
	if cfg.Whitelist.URL != "" {
		relay = whitelist.NewClient(cfg.Whitelist.URL, cfg.Whitelist.Token, cfg.Whitelist.Timeout, cfg.Whitelist.MaxRetries, logger)
	}
	commandRegistry := interactions.NewRegistry(session, logger)
	status := reactionrole.NewStatusReporter(session, rules, logger)
	commands.RegisterHandlers(commandRegistry, commands.NewCommandManager(session, status, relay, logger, version))

	healthHandler := health.NewHandler(version, registry)
	var healthServer *health.Server
	if cfg.Health.Addr != "" && cfg.Health.Addr != config.HealthDisabled {
		healthServer = health.NewServer(cfg.Health.Addr, healthHandler, logger)
	}

	return &DiscordBot{
		Session:          session,
		Logger:           logger,
		Config:           cfg,
		Rules:            rules,
		WatermillRouter:  router,
		PubSub:           pubsub,
		Health:           healthHandler,
		dispatcher:       dispatcher,
		dedupeCache:      dedupeCache,
		seeder:           reactionrole.NewSeeder(ops, logger),
		commands:         commandRegistry,
		reactions:        reactions,
		healthServer:     healthServer,
		commandRegistrar: discord.RegisterCommands,
	}, nil
}

// Run starts the event bus, attaches handlers, opens the gateway and registers the slash
// commands. It returns once the bot is connected; ctx bounds the router.
func (bot *DiscordBot) Run(ctx context.Context) error {
	bot.Logger.Info("Entering bot.Run()...")

	if bot.healthServer != nil {
		bot.healthServer.Start()
	}

	go func() {
		if err := bot.WatermillRouter.Run(ctx); err != nil {
			bot.Logger.Error("Watermill router stopped", attr.Error(err))
		}
	}()
	select {
	case <-bot.WatermillRouter.Running():
	case <-ctx.Done():
		return ctx.Err()
	}

	bot.reactions.RegisterWithSession(bot.Session)
	bot.commands.RegisterWithSession(bot.Session)
	bot.Session.AddHandler(func(_ *discordgo.Session, r *discordgo.Ready) {
		bot.onReady(ctx, r)
	})

	if err := bot.Session.Open(); err != nil {
		bot.Logger.Error("Error opening discord connection", attr.Error(err))
		return fmt.Errorf("failed to open discord session: %w", err)
	}

	if err := bot.commandRegistrar(ctx, bot.Session, bot.Logger, bot.Config.Discord.AppID, bot.Config.Discord.CommandGuildID); err != nil {
		bot.Logger.Error("Failed to register slash commands", attr.Error(err))
		return err
	}

	bot.Logger.Info("Discord bot is now running.")
	return nil
}

func (bot *DiscordBot) onReady(ctx context.Context, r *discordgo.Ready) {
	var guilds []*discordgo.Guild
	if r != nil {
		guilds = r.Guilds
	}
	configured, unconfigured := bot.reportGuilds(guilds)
	bot.Logger.Info("Discord bot is connected and ready.",
		attr.Int("configured_guilds", configured),
		attr.Int("unconfigured_guilds", unconfigured),
	)

	if bot.Health != nil {
		bot.Health.SetReady(true)
	}

	if bot.Config.Discord.SeedReactions && bot.seeder != nil {
		if failed := bot.seeder.SeedAll(ctx, bot.Rules.Rules()); failed > 0 {
			bot.Logger.Warn("Some rules reactions could not be seeded", attr.Int("failed", failed))
		}
	}
}

// reportGuilds logs each joined guild as configured or not and returns the counts.
func (bot *DiscordBot) reportGuilds(guilds []*discordgo.Guild) (configured, unconfigured int) {
	for _, g := range guilds {
		if g == nil {
			continue
		}
		if rule, ok := bot.Rules.Lookup(g.ID); ok {
			configured++
			bot.Logger.Info("Guild configured",
				attr.GuildID(g.ID),
				attr.String("guild_name", rule.GuildName),
				attr.Bool("reaction_role_active", rule.Active()),
				attr.Bool("welcome_enabled", rule.WelcomeEnabled),
			)
			continue
		}
		unconfigured++
		bot.Logger.Warn("Guild has no configuration", attr.GuildID(g.ID))
	}
	return configured, unconfigured
}

// Close shuts the bot down: the gateway first so no new events arrive, then the queued reaction
// work, then the bus.
func (bot *DiscordBot) Close() {
	bot.Logger.Info("Closing bot")

	if bot.Health != nil {
		bot.Health.SetReady(false)
	}

	if err := bot.Session.Close(); err != nil {
		bot.Logger.Error("Failed to close Discord session", attr.Error(err))
	}

	if bot.dispatcher != nil {
		bot.dispatcher.Stop()
	}

	if bot.WatermillRouter != nil {
		if err := bot.WatermillRouter.Close(); err != nil {
			bot.Logger.Error("Failed to close Watermill router", attr.Error(err))
		}
	}
	if bot.PubSub != nil {
		if err := bot.PubSub.Close(); err != nil {
			bot.Logger.Error("Failed to close event bus", attr.Error(err))
		}
	}

	if bot.dedupeCache != nil {
		if err := bot.dedupeCache.Close(); err != nil {
			bot.Logger.Error("Failed to close dedupe cache", attr.Error(err))
		}
	}

	if bot.healthServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := bot.healthServer.Shutdown(ctx); err != nil {
			bot.Logger.Error("Failed to stop health server", attr.Error(err))
		}
	}
}
