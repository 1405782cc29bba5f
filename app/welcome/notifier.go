package welcome

import (
	"context"
	"fmt"
	"log/slog"

	discord "github.com/Black-And-White-Club/discord-rules-bot/app/discordgo"
	"github.com/Black-And-White-Club/discord-rules-bot/app/guildconfig"
	"github.com/Black-And-White-Club/discord-rules-bot/app/shared/observability/attr"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Notifier posts the templated welcome message for a newly granted member.
type Notifier struct {
	ops    discord.Operations
	tracer trace.Tracer
	logger *slog.Logger
}

func NewNotifier(ops discord.Operations, tracer trace.Tracer, logger *slog.Logger) *Notifier {
	return &Notifier{ops: ops, tracer: tracer, logger: logger}
}

// Mention formats a user mention.
func Mention(userID string) string {
	return fmt.Sprintf("<@%s>", userID)
}

// Notify sends the welcome message. A rule without a welcome channel is skipped and is not an
// error. Send failures are logged and returned; callers treat them as non-fatal.
func (n *Notifier) Notify(ctx context.Context, rule guildconfig.GuildRule, userID string) error {
	ctx, span := n.tracer.Start(ctx, "welcome.notify", trace.WithAttributes(
		attribute.String("guild_id", rule.GuildID),
		attribute.String("user_id", userID),
		attribute.String("channel_id", rule.WelcomeChannelID),
	))
	defer span.End()

	if rule.WelcomeChannelID == "" {
		n.logger.Info("Welcome enabled without a channel, skipping", attr.GuildID(rule.GuildID), attr.UserID(userID))
		return nil
	}

	content := rule.RenderWelcome(Mention(userID))
	if _, err := n.ops.SendChannelMessage(ctx, rule.WelcomeChannelID, content); err != nil {
		span.RecordError(err)
		n.logger.Warn("Failed to send welcome message",
			attr.GuildID(rule.GuildID),
			attr.UserID(userID),
			attr.ChannelID(rule.WelcomeChannelID),
			attr.Error(err),
		)
		return fmt.Errorf("failed to send welcome message: %w", err)
	}

	n.logger.Info("Sent welcome message", attr.GuildID(rule.GuildID), attr.UserID(userID), attr.ChannelID(rule.WelcomeChannelID))
	return nil
}
