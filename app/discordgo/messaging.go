package discord

import (
	"context"
	"fmt"

	"github.com/Black-And-White-Club/discord-rules-bot/app/shared/observability/attr"
	"github.com/bwmarrin/discordgo"
)

// SendChannelMessage posts a plain message to a channel, retrying transient failures.
func (d *discordOperations) SendChannelMessage(ctx context.Context, channelID, content string) (*discordgo.Message, error) {
	var msg *discordgo.Message
	err := RetryDiscordAPI(ctx, d.logger, "channel_message_send", func() error {
		var err error
		msg, err = d.session.ChannelMessageSend(channelID, content, discordgo.WithContext(ctx))
		return err
	})
	if err != nil {
		d.logger.Error("Failed to send channel message", attr.ChannelID(channelID), attr.Error(err))
		return nil, fmt.Errorf("failed to send channel message: %w", err)
	}
	d.logger.Info("Channel message sent", attr.MessageID(msg.ID), attr.ChannelID(msg.ChannelID))
	return msg, nil
}

// RemoveUserReaction removes one user's reaction from a message.
func (d *discordOperations) RemoveUserReaction(ctx context.Context, channelID, messageID, emojiAPIName, userID string) error {
	err := RetryDiscordAPI(ctx, d.logger, "message_reaction_remove", func() error {
		return d.session.MessageReactionRemove(channelID, messageID, emojiAPIName, userID, discordgo.WithContext(ctx))
	})
	if err != nil {
		return fmt.Errorf("failed to remove reaction: %w", err)
	}
	return nil
}

// AddBotReaction adds the bot's own reaction to a message.
func (d *discordOperations) AddBotReaction(ctx context.Context, channelID, messageID, emojiAPIName string) error {
	err := RetryDiscordAPI(ctx, d.logger, "message_reaction_add", func() error {
		return d.session.MessageReactionAdd(channelID, messageID, emojiAPIName, discordgo.WithContext(ctx))
	})
	if err != nil {
		return fmt.Errorf("failed to add reaction: %w", err)
	}
	return nil
}
