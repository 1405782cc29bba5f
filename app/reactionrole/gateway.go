package reactionrole

import (
	"context"
	"log/slog"
	"time"

	discord "github.com/Black-And-White-Club/discord-rules-bot/app/discordgo"
	"github.com/Black-And-White-Club/discord-rules-bot/app/interactions"
	"github.com/Black-And-White-Club/discord-rules-bot/app/shared/observability/attr"
	"github.com/bwmarrin/discordgo"
)

// EventHandler processes one resolved reaction event.
type EventHandler interface {
	Handle(ctx context.Context, event ReactionEvent) Outcome
}

// Gateway turns discordgo reaction callbacks into queued engine work. The callbacks only decode;
// lookups happen on the worker.
type Gateway struct {
	session    discord.Session
	dispatcher *Dispatcher
	handler    EventHandler
	logger     *slog.Logger
	now        func() time.Time
}

// NewGateway creates a Gateway.
func NewGateway(session discord.Session, dispatcher *Dispatcher, handler EventHandler, logger *slog.Logger) *Gateway {
	return &Gateway{
		session:    session,
		dispatcher: dispatcher,
		handler:    handler,
		logger:     logger,
		now:        time.Now,
	}
}

// pendingEvent is a decoded callback whose bot flag may still need a lookup.
type pendingEvent struct {
	event       ReactionEvent
	botResolved bool
}

// Register adds the reaction handlers to the registry.
func (g *Gateway) Register(registry *interactions.ReactionRegistry) {
	registry.RegisterMessageReactionAddHandler(func(r *discordgo.MessageReactionAdd) {
		g.OnReactionAdd(nil, r)
	})
	registry.RegisterMessageReactionRemoveHandler(func(r *discordgo.MessageReactionRemove) {
		g.OnReactionRemove(nil, r)
	})
}

func (g *Gateway) OnReactionAdd(_ *discordgo.Session, r *discordgo.MessageReactionAdd) {
	if r == nil || r.MessageReaction == nil {
		return
	}
	p := decodeReaction(r.MessageReaction, Added, g.now())
	if r.Member != nil && r.Member.User != nil {
		p.event.UserIsBot = r.Member.User.Bot
		p.botResolved = true
	}
	g.submit(p)
}

func (g *Gateway) OnReactionRemove(_ *discordgo.Session, r *discordgo.MessageReactionRemove) {
	if r == nil || r.MessageReaction == nil {
		return
	}
	g.submit(decodeReaction(r.MessageReaction, Removed, g.now()))
}

func decodeReaction(r *discordgo.MessageReaction, dir Direction, at time.Time) pendingEvent {
	return pendingEvent{event: ReactionEvent{
		GuildID:    r.GuildID,
		ChannelID:  r.ChannelID,
		MessageID:  r.MessageID,
		Emoji:      EmoteFromDiscord(r.Emoji),
		UserID:     r.UserID,
		Direction:  dir,
		ReceivedAt: at,
	}}
}

func (g *Gateway) submit(p pendingEvent) {
	_, err := g.dispatcher.Submit("reaction."+p.event.Direction.String(), func(ctx context.Context) {
		event, ok := g.resolve(ctx, p)
		if !ok {
			return
		}
		g.handler.Handle(ctx, event)
	})
	if err != nil {
		g.logger.Warn("Dropping reaction event", attr.MessageID(p.event.MessageID), attr.UserID(p.event.UserID), attr.Error(err))
	}
}

// resolve fills in the guild and the bot flag when the gateway payload left them out. A failed
// lookup drops the event.
func (g *Gateway) resolve(ctx context.Context, p pendingEvent) (ReactionEvent, bool) {
	event := p.event
	logger := g.logger.With(
		attr.EventID(EventIDFromContext(ctx)),
		attr.ChannelID(event.ChannelID),
		attr.MessageID(event.MessageID),
		attr.UserID(event.UserID),
	)

	if event.ChannelID == "" || event.MessageID == "" || event.UserID == "" {
		logger.Error("Dropping malformed reaction event")
		return event, false
	}

	if event.GuildID == "" {
		ch, err := g.session.GetChannel(event.ChannelID, discordgo.WithContext(ctx))
		if err != nil {
			logger.Error("Failed to resolve reaction channel", attr.Error(err))
			return event, false
		}
		event.GuildID = ch.GuildID
	}

	// Direct messages are ignored whoever reacted, so skip the user lookup.
	if !p.botResolved && event.GuildID != "" {
		user, err := g.session.User(event.UserID, discordgo.WithContext(ctx))
		if err != nil {
			logger.Error("Failed to resolve reacting user", attr.Error(err))
			return event, false
		}
		event.UserIsBot = user.Bot
	}

	return event, true
}
