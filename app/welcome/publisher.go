package welcome

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	reactionroleevents "github.com/Black-And-White-Club/discord-rules-bot/app/events/reactionrole"
	"github.com/Black-And-White-Club/discord-rules-bot/app/guildconfig"
	"github.com/Black-And-White-Club/discord-rules-bot/app/shared/observability/attr"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
)

// Publisher hands the welcome off to the event bus so the reaction worker does not wait on the
// message send.
type Publisher struct {
	publisher message.Publisher
	logger    *slog.Logger
	now       func() time.Time
}

func NewPublisher(publisher message.Publisher, logger *slog.Logger) *Publisher {
	return &Publisher{publisher: publisher, logger: logger, now: time.Now}
}

// Notify publishes a RoleGranted event for the router to pick up.
func (p *Publisher) Notify(ctx context.Context, rule guildconfig.GuildRule, userID string) error {
	payload, err := json.Marshal(reactionroleevents.RoleGrantedPayload{
		GuildID:   rule.GuildID,
		UserID:    userID,
		RoleID:    rule.RoleID,
		GrantedAt: p.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal role granted payload: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)
	middleware.SetCorrelationID(watermill.NewShortUUID(), msg)
	msg.Metadata.Set("guild_id", rule.GuildID)

	if err := p.publisher.Publish(reactionroleevents.RoleGranted, msg); err != nil {
		p.logger.Error("Failed to publish role granted event", attr.GuildID(rule.GuildID), attr.UserID(userID), attr.Error(err))
		return fmt.Errorf("failed to publish role granted event: %w", err)
	}
	return nil
}
