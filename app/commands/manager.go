package commands

import (
	"context"
	"log/slog"
	"time"

	discord "github.com/Black-And-White-Club/discord-rules-bot/app/discordgo"
	"github.com/Black-And-White-Club/discord-rules-bot/app/whitelist"
	"github.com/bwmarrin/discordgo"
)

// StatusSource produces the per-guild setup summary shown by /info.
type StatusSource interface {
	ServerStatus(ctx context.Context, guildID string) string
}

// CommandManager handles the bot's slash commands.
type CommandManager interface {
	HandleInfoCommand(ctx context.Context, i *discordgo.InteractionCreate)
	HandleWhitelistCommand(ctx context.Context, i *discordgo.InteractionCreate)
}

type commandManager struct {
	session   discord.Session
	status    StatusSource
	relay     whitelist.Relay
	logger    *slog.Logger
	version   string
	startedAt time.Time
	now       func() time.Time
}

// NewCommandManager creates a CommandManager. relay may be nil when no whitelist endpoint is
// configured.
func NewCommandManager(session discord.Session, status StatusSource, relay whitelist.Relay, logger *slog.Logger, version string) CommandManager {
	return &commandManager{
		session:   session,
		status:    status,
		relay:     relay,
		logger:    logger,
		version:   version,
		startedAt: time.Now(),
		now:       time.Now,
	}
}

func interactionUser(i *discordgo.InteractionCreate) *discordgo.User {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User
	}
	if i.User != nil {
		return i.User
	}
	return &discordgo.User{}
}
