// interactions/registry.go
package interactions

import (
	"context"
	"log/slog"
	"runtime/debug"
	"time"

	discord "github.com/Black-And-White-Club/discord-rules-bot/app/discordgo"
	"github.com/Black-And-White-Club/discord-rules-bot/app/shared/observability/attr"
	"github.com/bwmarrin/discordgo"
)

// UnknownCommandReply is sent for commands with no registered handler.
const UnknownCommandReply = "Unknown command."

const defaultInteractionTimeout = 10 * time.Second

type HandlerFunc func(ctx context.Context, i *discordgo.InteractionCreate)

type discordgoAdder interface {
	AddHandler(handler interface{}) func()
}

// Registry routes slash commands to their handlers by name.
type Registry struct {
	handlers map[string]HandlerFunc
	session  discord.Session
	logger   *slog.Logger
	timeout  time.Duration
}

func NewRegistry(session discord.Session, logger *slog.Logger) *Registry {
	return &Registry{
		handlers: make(map[string]HandlerFunc),
		session:  session,
		logger:   logger,
		timeout:  defaultInteractionTimeout,
	}
}

func (r *Registry) RegisterHandler(id string, handler HandlerFunc) {
	r.handlers[id] = handler
}

// RegisterWithSession attaches the registry to the gateway.
func (r *Registry) RegisterWithSession(session discordgoAdder) {
	session.AddHandler(r.HandleInteraction)
}

func (r *Registry) HandleInteraction(_ *discordgo.Session, i *discordgo.InteractionCreate) {
	if i == nil || i.Interaction == nil {
		return
	}
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	id := i.ApplicationCommandData().Name
	handler, ok := r.handlers[id]
	if !ok {
		r.logger.Warn("Received unknown command", attr.String("command", id), attr.GuildID(i.GuildID))
		r.replyUnknown(i)
		return
	}

	defer func() {
		if recovered := recover(); recovered != nil {
			r.logger.Error("Recovered panic from command handler",
				attr.String("command", id),
				attr.GuildID(i.GuildID),
				attr.Any("panic", recovered),
				attr.String("stack_trace", string(debug.Stack())),
			)
		}
	}()

	handler(ctx, i)
}

func (r *Registry) replyUnknown(i *discordgo.InteractionCreate) {
	err := r.session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: UnknownCommandReply,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		r.logger.Error("Failed to reply to unknown command", attr.Error(err))
	}
}
