package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/Black-And-White-Club/discord-rules-bot/app/guildconfig"
	"github.com/Black-And-White-Club/discord-rules-bot/app/shared/redaction"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config struct to hold the configuration settings
type Config struct {
	Discord   DiscordConfig   `yaml:"discord"`
	Servers   []ServerConfig  `yaml:"servers"`
	Workers   WorkerConfig    `yaml:"workers"`
	Whitelist WhitelistConfig `yaml:"whitelist"`
	Health    HealthConfig    `yaml:"health"`
	Service   ServiceConfig   `yaml:"service"`
	Logging   LoggingConfig   `yaml:"logging"`
	Loki      LokiConfig      `yaml:"loki"`
	Tempo     TempoConfig     `yaml:"tempo"`
}

// DiscordConfig holds Discord configuration.
type DiscordConfig struct {
	Token          string `yaml:"token"`
	AppID          string `yaml:"app_id"`
	CommandGuildID string `yaml:"command_guild_id"`
	SeedReactions  bool   `yaml:"seed_reactions"`
}

// ServerConfig is one per-guild record. Pointer booleans distinguish "unset" from false so the
// defaults below can apply.
type ServerConfig struct {
	ServerID                string `yaml:"server_id"`
	ServerName              string `yaml:"server_name"`
	AutoRoleID              string `yaml:"auto_role_id"`
	RulesChannelID          string `yaml:"rules_channel_id"`
	RulesMessageID          string `yaml:"rules_message_id"`
	ReactionEmoji           string `yaml:"reaction_emoji"`
	WelcomeChannelID        string `yaml:"welcome_channel_id"`
	WelcomeMessage          string `yaml:"welcome_message"`
	EnableReactionRole      *bool  `yaml:"enable_reaction_role"`
	EnableWelcomeMessage    *bool  `yaml:"enable_welcome_message"`
	RemoveReactionAfterRole *bool  `yaml:"remove_reaction_after_role"`
}

// WorkerConfig sizes the reaction event pool.
type WorkerConfig struct {
	Size         int           `yaml:"size"`
	EventTimeout time.Duration `yaml:"event_timeout"`
	DedupeWindow time.Duration `yaml:"dedupe_window"`
}

// WhitelistConfig points the /whitelist command at the relay endpoint.
type WhitelistConfig struct {
	URL        string        `yaml:"url"`
	Token      string        `yaml:"token"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
}

// HealthDisabled as health.addr turns the health listener off.
const HealthDisabled = "off"

// HealthConfig holds the health/metrics listener address.
type HealthConfig struct {
	Addr string `yaml:"addr"`
}

// ServiceConfig holds general service configuration
type ServiceConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

// LoggingConfig selects level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// LokiConfig holds Loki configuration.
type LokiConfig struct {
	URL      string `yaml:"url"`
	TenantID string `yaml:"tenant_id"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

type TempoConfig struct {
	Endpoint   string  `yaml:"url"`
	Insecure   bool    `yaml:"insecure"`
	SampleRate float64 `yaml:"sample_rate"`
}

const (
	defaultWorkerSize       = 8
	defaultEventTimeout     = 15 * time.Second
	defaultDedupeWindow     = 5 * time.Second
	defaultWhitelistTimeout = 10 * time.Second
	defaultWhitelistRetries = 3
	defaultHealthAddr       = ":8080"
	defaultServiceName      = "discord-rules-bot"
)

// LoadConfig loads the configuration from a YAML file, falling back to environment variables for
// anything the file leaves empty. A missing file is not an error.
func LoadConfig(filename string) (*Config, error) {
	// .env is optional; it only seeds the process environment.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	var cfg Config
	data, err := os.ReadFile(filename)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
		// env-only configuration
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	loadConfigFromEnv(&cfg)
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// loadConfigFromEnv fills values not already set by the file.
func loadConfigFromEnv(cfg *Config) {
	setIfEmpty(&cfg.Discord.Token, "DISCORD_TOKEN")
	setIfEmpty(&cfg.Discord.AppID, "DISCORD_APP_ID")
	setIfEmpty(&cfg.Discord.CommandGuildID, "DISCORD_COMMAND_GUILD_ID")
	setIfEmpty(&cfg.Whitelist.URL, "WHITELIST_URL")
	setIfEmpty(&cfg.Whitelist.Token, "WHITELIST_TOKEN")
	setIfEmpty(&cfg.Health.Addr, "HEALTH_ADDR")
	setIfEmpty(&cfg.Service.Name, "SERVICE_NAME")
	setIfEmpty(&cfg.Logging.Level, "LOG_LEVEL")
	setIfEmpty(&cfg.Loki.URL, "LOKI_URL")
	setIfEmpty(&cfg.Loki.TenantID, "LOKI_TENANT_ID")
	setIfEmpty(&cfg.Loki.Username, "LOKI_USERNAME")
	setIfEmpty(&cfg.Loki.Password, "LOKI_PASSWORD")
	setIfEmpty(&cfg.Tempo.Endpoint, "TEMPO_URL")

	if cfg.Workers.Size == 0 {
		if n, err := strconv.Atoi(os.Getenv("WORKER_POOL_SIZE")); err == nil {
			cfg.Workers.Size = n
		}
	}
}

func setIfEmpty(field *string, key string) {
	if *field == "" {
		*field = os.Getenv(key)
	}
}

func (c *Config) applyDefaults() {
	if c.Workers.Size == 0 {
		c.Workers.Size = defaultWorkerSize
	}
	if c.Workers.EventTimeout == 0 {
		c.Workers.EventTimeout = defaultEventTimeout
	}
	if c.Workers.DedupeWindow == 0 {
		c.Workers.DedupeWindow = defaultDedupeWindow
	}
	if c.Whitelist.Timeout == 0 {
		c.Whitelist.Timeout = defaultWhitelistTimeout
	}
	if c.Whitelist.MaxRetries == 0 {
		c.Whitelist.MaxRetries = defaultWhitelistRetries
	}
	if c.Health.Addr == "" {
		c.Health.Addr = defaultHealthAddr
	}
	if c.Service.Name == "" {
		c.Service.Name = defaultServiceName
	}
}

// Validate checks the configuration for values the bot cannot start without.
func (c *Config) Validate() error {
	if c.Discord.Token == "" {
		return fmt.Errorf("discord token is required (discord.token or DISCORD_TOKEN)")
	}
	if c.Workers.Size < 0 {
		return fmt.Errorf("workers.size must be positive, got %d", c.Workers.Size)
	}
	if c.Workers.EventTimeout < 0 {
		return fmt.Errorf("workers.event_timeout must be positive, got %v", c.Workers.EventTimeout)
	}
	if c.Workers.DedupeWindow < 0 {
		return fmt.Errorf("workers.dedupe_window must not be negative, got %v", c.Workers.DedupeWindow)
	}
	if c.Whitelist.Timeout < 0 {
		return fmt.Errorf("whitelist.timeout must not be negative, got %v", c.Whitelist.Timeout)
	}
	if c.Whitelist.MaxRetries < 0 {
		return fmt.Errorf("whitelist.max_retries must not be negative, got %d", c.Whitelist.MaxRetries)
	}

	seen := make(map[string]struct{}, len(c.Servers))
	for i, s := range c.Servers {
		if s.ServerID == "" {
			return fmt.Errorf("servers[%d]: server_id is required", i)
		}
		if _, dup := seen[s.ServerID]; dup {
			return fmt.Errorf("servers[%d]: duplicate server_id %s", i, s.ServerID)
		}
		seen[s.ServerID] = struct{}{}
		if boolOr(s.EnableReactionRole, true) && s.AutoRoleID == "" {
			return fmt.Errorf("servers[%d]: auto_role_id is required when reaction role is enabled", i)
		}
	}
	return nil
}

// Rules converts the server records into guild rules.
func (c *Config) Rules() []guildconfig.GuildRule {
	rules := make([]guildconfig.GuildRule, 0, len(c.Servers))
	for _, s := range c.Servers {
		rules = append(rules, s.Rule())
	}
	return rules
}

// Rule converts one server record, applying the record defaults.
func (s ServerConfig) Rule() guildconfig.GuildRule {
	emoji := s.ReactionEmoji
	if emoji == "" {
		emoji = guildconfig.DefaultReactionEmoji
	}
	template := s.WelcomeMessage
	if template == "" {
		template = guildconfig.DefaultWelcomeTemplate
	}
	return guildconfig.GuildRule{
		GuildID:                  s.ServerID,
		GuildName:                s.ServerName,
		RoleID:                   s.AutoRoleID,
		RulesChannelID:           s.RulesChannelID,
		RulesMessageID:           s.RulesMessageID,
		ReactionEmoji:            emoji,
		WelcomeChannelID:         s.WelcomeChannelID,
		WelcomeMessageTemplate:   template,
		ReactionRoleEnabled:      boolOr(s.EnableReactionRole, true),
		WelcomeEnabled:           boolOr(s.EnableWelcomeMessage, false),
		RemoveReactionAfterGrant: boolOr(s.RemoveReactionAfterRole, false),
	}
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

// LogValue renders the configuration for startup logs with secrets masked.
func (c *Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("discord_token", redaction.RedactSecret(c.Discord.Token)),
		slog.String("app_id", c.Discord.AppID),
		slog.String("command_guild_id", c.Discord.CommandGuildID),
		slog.Bool("seed_reactions", c.Discord.SeedReactions),
		slog.Int("servers", len(c.Servers)),
		slog.Int("workers", c.Workers.Size),
		slog.Duration("event_timeout", c.Workers.EventTimeout),
		slog.Duration("dedupe_window", c.Workers.DedupeWindow),
		slog.String("whitelist_url", redaction.RedactURL(c.Whitelist.URL)),
		slog.String("whitelist_token", redaction.RedactSecret(c.Whitelist.Token)),
		slog.String("health_addr", c.Health.Addr),
		slog.String("loki_url", redaction.RedactURL(c.Loki.URL)),
		slog.String("loki_password", redaction.RedactSecret(c.Loki.Password)),
		slog.String("tempo_url", c.Tempo.Endpoint),
	)
}
