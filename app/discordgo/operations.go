package discord

import (
	"context"
	"log/slog"

	"github.com/bwmarrin/discordgo"
)

// Operations defines an interface for higher-level Discord operations.
type Operations interface {
	SendChannelMessage(ctx context.Context, channelID, content string) (*discordgo.Message, error)
	RemoveUserReaction(ctx context.Context, channelID, messageID, emojiAPIName, userID string) error
	AddBotReaction(ctx context.Context, channelID, messageID, emojiAPIName string) error
}

// discordOperations implements the Operations interface.
type discordOperations struct {
	session Session
	logger  *slog.Logger
}

// NewOperations creates a new Operations instance.
func NewOperations(session Session, logger *slog.Logger) Operations {
	return &discordOperations{
		session: session,
		logger:  logger,
	}
}
