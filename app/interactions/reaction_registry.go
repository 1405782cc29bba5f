// interactions/reaction_registry.go
package interactions

import (
	"log/slog"
	"runtime/debug"

	"github.com/Black-And-White-Club/discord-rules-bot/app/shared/observability/attr"
	"github.com/bwmarrin/discordgo"
)

// ReactionRegistry manages reaction event handlers
type ReactionRegistry struct {
	messageReactionAddHandlers    []func(r *discordgo.MessageReactionAdd)
	messageReactionRemoveHandlers []func(r *discordgo.MessageReactionRemove)
	logger                        *slog.Logger
}

// NewReactionRegistry creates a new ReactionRegistry
func NewReactionRegistry(logger *slog.Logger) *ReactionRegistry {
	return &ReactionRegistry{
		messageReactionAddHandlers:    make([]func(r *discordgo.MessageReactionAdd), 0),
		messageReactionRemoveHandlers: make([]func(r *discordgo.MessageReactionRemove), 0),
		logger:                        logger,
	}
}

// RegisterMessageReactionAddHandler registers a handler for MessageReactionAdd events
func (r *ReactionRegistry) RegisterMessageReactionAddHandler(handler func(r *discordgo.MessageReactionAdd)) {
	r.messageReactionAddHandlers = append(r.messageReactionAddHandlers, handler)
}

// RegisterMessageReactionRemoveHandler registers a handler for MessageReactionRemove events
func (r *ReactionRegistry) RegisterMessageReactionRemoveHandler(handler func(r *discordgo.MessageReactionRemove)) {
	r.messageReactionRemoveHandlers = append(r.messageReactionRemoveHandlers, handler)
}

// RegisterWithSession registers all handlers with the Discord session
func (r *ReactionRegistry) RegisterWithSession(session discordgoAdder) {
	session.AddHandler(r.HandleReactionAdd)
	session.AddHandler(r.HandleReactionRemove)
}

// HandleReactionAdd fans a MessageReactionAdd out to every handler.
func (r *ReactionRegistry) HandleReactionAdd(_ *discordgo.Session, e *discordgo.MessageReactionAdd) {
	if e == nil || e.MessageReaction == nil {
		r.logger.Warn("Ignoring MessageReactionAdd event with nil payload")
		return
	}
	for idx, handler := range r.messageReactionAddHandlers {
		r.run("MessageReactionAdd", idx, e.MessageReaction, func() { handler(e) })
	}
}

// HandleReactionRemove fans a MessageReactionRemove out to every handler.
func (r *ReactionRegistry) HandleReactionRemove(_ *discordgo.Session, e *discordgo.MessageReactionRemove) {
	if e == nil || e.MessageReaction == nil {
		r.logger.Warn("Ignoring MessageReactionRemove event with nil payload")
		return
	}
	for idx, handler := range r.messageReactionRemoveHandlers {
		r.run("MessageReactionRemove", idx, e.MessageReaction, func() { handler(e) })
	}
}

func (r *ReactionRegistry) run(event string, index int, mr *discordgo.MessageReaction, fn func()) {
	defer func() {
		if recovered := recover(); recovered != nil {
			r.logger.Error("Recovered panic from reaction handler",
				attr.String("event", event),
				attr.Int("handler_index", index),
				attr.ChannelID(mr.ChannelID),
				attr.MessageID(mr.MessageID),
				attr.Any("panic", recovered),
				attr.String("stack_trace", string(debug.Stack())),
			)
		}
	}()
	fn()
}
