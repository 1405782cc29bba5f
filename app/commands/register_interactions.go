package commands

import (
	"context"

	discord "github.com/Black-And-White-Club/discord-rules-bot/app/discordgo"
	"github.com/Black-And-White-Club/discord-rules-bot/app/interactions"
	"github.com/bwmarrin/discordgo"
)

// RegisterHandlers registers the slash command handlers.
func RegisterHandlers(registry *interactions.Registry, manager CommandManager) {
	registry.RegisterHandler(discord.CommandInfo, func(ctx context.Context, i *discordgo.InteractionCreate) {
		manager.HandleInfoCommand(ctx, i)
	})
	registry.RegisterHandler(discord.CommandWhitelist, func(ctx context.Context, i *discordgo.InteractionCreate) {
		manager.HandleWhitelistCommand(ctx, i)
	})
}
