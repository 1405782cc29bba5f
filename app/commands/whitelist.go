package commands

import (
	"context"
	"errors"

	discord "github.com/Black-And-White-Club/discord-rules-bot/app/discordgo"
	"github.com/Black-And-White-Club/discord-rules-bot/app/shared/observability/attr"
	"github.com/Black-And-White-Club/discord-rules-bot/app/whitelist"
	"github.com/bwmarrin/discordgo"
)

const (
	WhitelistDisabledReply = "Whitelist relay is not configured"
	whitelistFailedReply   = "Something went wrong while processing your whitelist request. Please try again later."
)

// HandleWhitelistCommand handles the /whitelist slash command. The reply is deferred because the
// relay may retry past the interaction deadline.
func (m *commandManager) HandleWhitelistCommand(ctx context.Context, i *discordgo.InteractionCreate) {
	user := interactionUser(i)
	logger := m.logger.With(attr.UserID(user.ID), attr.GuildID(i.GuildID))

	if m.relay == nil {
		m.respondEphemeral(ctx, i, WhitelistDisabledReply)
		return
	}

	username := usernameOption(i)
	if !whitelist.ValidUsername(username) {
		m.respondEphemeral(ctx, i, "Invalid username: "+whitelist.ErrInvalidUsername.Error())
		return
	}

	if err := m.session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral},
	}, discordgo.WithContext(ctx)); err != nil {
		logger.ErrorContext(ctx, "Failed to defer /whitelist response", attr.Error(err))
		return
	}

	resp, err := m.relay.Relay(ctx, whitelist.Request{
		Username:    username,
		GuildID:     i.GuildID,
		RequestedBy: user.ID,
	})

	content := resp.Message
	switch {
	case err != nil:
		logger.ErrorContext(ctx, "Whitelist relay failed", attr.String("username", username), attr.Error(err))
		content = whitelistFailedReply
		var statusErr *whitelist.StatusError
		if errors.As(err, &statusErr) && statusErr.Message != "" {
			content = statusErr.Message
		}
	case content == "" && resp.Success:
		content = "✅ " + username + " has been whitelisted."
	case content == "":
		content = "❌ " + username + " could not be whitelisted."
	default:
		logger.InfoContext(ctx, "Whitelist request relayed", attr.String("username", username), attr.Bool("success", resp.Success))
	}

	// Not bound to ctx: the relay may have spent it and the edit must still land.
	if _, err := m.session.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{
		Content: &content,
	}); err != nil {
		logger.ErrorContext(ctx, "Failed to edit /whitelist response", attr.Error(err))
	}
}

func (m *commandManager) respondEphemeral(ctx context.Context, i *discordgo.InteractionCreate, content string) {
	if err := m.session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Flags:   discordgo.MessageFlagsEphemeral,
			Content: content,
		},
	}, discordgo.WithContext(ctx)); err != nil {
		m.logger.ErrorContext(ctx, "Failed to respond to command", attr.GuildID(i.GuildID), attr.Error(err))
	}
}

func usernameOption(i *discordgo.InteractionCreate) string {
	for _, opt := range i.ApplicationCommandData().Options {
		if opt.Name == discord.WhitelistUsernameOption && opt.Type == discordgo.ApplicationCommandOptionString {
			return opt.StringValue()
		}
	}
	return ""
}
