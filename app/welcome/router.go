package welcome

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	reactionroleevents "github.com/Black-And-White-Club/discord-rules-bot/app/events/reactionrole"
	"github.com/Black-And-White-Club/discord-rules-bot/app/guildconfig"
	"github.com/Black-And-White-Club/discord-rules-bot/app/shared/observability/attr"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
)

// Sender is the part of Notifier the router needs.
type Sender interface {
	Notify(ctx context.Context, rule guildconfig.GuildRule, userID string) error
}

// Router consumes RoleGranted events and sends the welcome message.
type Router struct {
	Router     *message.Router
	subscriber message.Subscriber
	rules      guildconfig.RuleLookup
	sender     Sender
	logger     *slog.Logger
}

// NewRouter creates a new Router.
func NewRouter(router *message.Router, subscriber message.Subscriber, rules guildconfig.RuleLookup, sender Sender, logger *slog.Logger) *Router {
	return &Router{
		Router:     router,
		subscriber: subscriber,
		rules:      rules,
		sender:     sender,
		logger:     logger,
	}
}

// Configure sets up the router.
func (r *Router) Configure() {
	r.Router.AddMiddleware(
		middleware.CorrelationID,
		middleware.Recoverer,
	)
	r.Router.AddNoPublisherHandler(
		"welcome."+reactionroleevents.RoleGranted,
		reactionroleevents.RoleGranted,
		r.subscriber,
		r.HandleRoleGranted,
	)
}

// HandleRoleGranted sends the welcome for one RoleGranted event. Malformed payloads and send
// failures are logged and acked; a welcome is never retried.
func (r *Router) HandleRoleGranted(msg *message.Message) error {
	var payload reactionroleevents.RoleGrantedPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		r.logger.Error("Dropping malformed role granted event", attr.String("message_id", msg.UUID), attr.Error(err))
		return nil
	}

	rule, ok := r.rules.Lookup(payload.GuildID)
	if !ok {
		r.logger.Warn("Role granted for a guild without a rule", attr.GuildID(payload.GuildID))
		return nil
	}

	if err := r.sender.Notify(msg.Context(), rule, payload.UserID); err != nil {
		r.logger.Warn("Welcome not sent",
			attr.GuildID(payload.GuildID),
			attr.UserID(payload.UserID),
			attr.String("correlation_id", middleware.MessageCorrelationID(msg)),
			attr.Error(err),
		)
	}
	return nil
}

// Close stops the router.
func (r *Router) Close() error {
	if err := r.Router.Close(); err != nil {
		return fmt.Errorf("failed to close welcome router: %w", err)
	}
	return nil
}
