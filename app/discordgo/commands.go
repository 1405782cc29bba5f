package discord

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Black-And-White-Club/discord-rules-bot/app/shared/observability/attr"
	"github.com/bwmarrin/discordgo"
)

const (
	CommandInfo      = "info"
	CommandWhitelist = "whitelist"

	WhitelistUsernameOption = "username"
)

// Commands returns the slash commands the bot serves.
func Commands() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{
			Name:        CommandInfo,
			Description: "Show bot information and this server's reaction role setup",
		},
		{
			Name:        CommandWhitelist,
			Description: "Request a whitelist entry for a game username",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        WhitelistUsernameOption,
					Description: "The in-game username to whitelist",
					Required:    true,
					MinLength:   intPtr(3),
					MaxLength:   16,
				},
			},
		},
	}
}

// RegisterCommands overwrites the bot's slash commands with the current set. An empty guildID
// registers them globally. The overwrite replaces stale commands left by older releases.
func RegisterCommands(ctx context.Context, s Session, logger *slog.Logger, appID, guildID string) error {
	if appID == "" {
		bot, err := s.GetBotUser()
		if err != nil {
			return fmt.Errorf("failed to retrieve bot user: %w", err)
		}
		appID = bot.ID
	}

	commands := Commands()
	var registered []*discordgo.ApplicationCommand
	err := RetryDiscordAPI(ctx, logger, "application_command_bulk_overwrite", func() error {
		var err error
		registered, err = s.ApplicationCommandBulkOverwrite(appID, guildID, commands)
		return err
	})
	if err != nil {
		logger.Error("Failed to register slash commands",
			attr.String("app_id", appID),
			attr.GuildID(guildID),
			attr.Error(err),
		)
		return fmt.Errorf("failed to register slash commands: %w", err)
	}

	for _, cmd := range registered {
		if cmd == nil {
			continue
		}
		logger.Info("registered command", attr.String("command", "/"+cmd.Name), attr.GuildID(guildID))
	}
	return nil
}

func intPtr(v int) *int { return &v }
