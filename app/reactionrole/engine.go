package reactionrole

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	discord "github.com/Black-And-White-Club/discord-rules-bot/app/discordgo"
	"github.com/Black-And-White-Club/discord-rules-bot/app/guildconfig"
	"github.com/Black-And-White-Club/discord-rules-bot/app/shared/observability/attr"
	"github.com/bwmarrin/discordgo"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Outcome is what handling one intent did.
type Outcome string

const (
	OutcomeGranted     Outcome = "granted"
	OutcomeAlreadyHeld Outcome = "already-held"
	OutcomeRevoked     Outcome = "revoked"
	OutcomeNotHeld     Outcome = "not-held"
	OutcomeIgnored     Outcome = "ignored"
	OutcomeDuplicate   Outcome = "duplicate"
	OutcomeStripped    Outcome = "stripped"
	OutcomeFailed      Outcome = "failed"
)

//go:generate mockgen -destination=mocks/mock_notifier.go -package=mocks github.com/Black-And-White-Club/discord-rules-bot/app/reactionrole WelcomeNotifier

// WelcomeNotifier announces a member who was just granted the role.
type WelcomeNotifier interface {
	Notify(ctx context.Context, rule guildconfig.GuildRule, userID string) error
}

// Deduper filters repeated deliveries and the removal events caused by the bot itself.
type Deduper interface {
	Observe(event ReactionEvent) bool
	MarkStripped(guildID, userID string)
	ConsumeStripped(event ReactionEvent) bool
	ResolveStrip(guildID, userID string, stripped bool) bool
}

// Engine applies grant and revoke intents against live guild membership. Membership is read from
// Discord before every mutation; nothing is cached between events.
type Engine struct {
	session  discord.Session
	ops      discord.Operations
	rules    guildconfig.RuleLookup
	notifier WelcomeNotifier
	deduper  Deduper
	metrics  Metrics
	tracer   trace.Tracer
	logger   *slog.Logger
}

// NewEngine wires an engine. deduper may be nil; notifier may be nil when no guild sends welcomes.
func NewEngine(
	session discord.Session,
	ops discord.Operations,
	rules guildconfig.RuleLookup,
	notifier WelcomeNotifier,
	deduper Deduper,
	metrics Metrics,
	tracer trace.Tracer,
	logger *slog.Logger,
) *Engine {
	if metrics == nil {
		metrics = NoopMetrics{}
	}
	return &Engine{
		session:  session,
		ops:      ops,
		rules:    rules,
		notifier: notifier,
		deduper:  deduper,
		metrics:  metrics,
		tracer:   tracer,
		logger:   logger,
	}
}

// Handle classifies one event and applies it. Failures are logged and reported through the
// returned Outcome; they never escape.
func (e *Engine) Handle(ctx context.Context, event ReactionEvent) Outcome {
	logger := e.logger.With(
		attr.EventID(EventIDFromContext(ctx)),
		attr.GuildID(event.GuildID),
		attr.ChannelID(event.ChannelID),
		attr.MessageID(event.MessageID),
		attr.UserID(event.UserID),
		attr.String("direction", event.Direction.String()),
	)

	intent := Classify(event, e.rules)
	if intent.Kind == IntentIgnore {
		logger.Debug("Ignoring reaction", attr.String("reason", string(intent.Reason)))
		e.metrics.EventHandled(event.Direction, OutcomeIgnored)
		return OutcomeIgnored
	}

	if intent.Kind == IntentRevoke && e.deduper != nil && e.deduper.ConsumeStripped(event) {
		logger.Debug("Ignoring removal of a reaction stripped by the bot")
		e.metrics.EventHandled(event.Direction, OutcomeStripped)
		return OutcomeStripped
	}

	if e.deduper != nil && e.deduper.Observe(event) {
		logger.Debug("Dropping duplicate reaction delivery")
		e.metrics.EventHandled(event.Direction, OutcomeDuplicate)
		return OutcomeDuplicate
	}

	var (
		outcome Outcome
		err     error
	)
	switch intent.Kind {
	case IntentGrant:
		outcome, err = e.grant(ctx, intent.Rule, intent.UserID, event.Emoji)
	case IntentRevoke:
		outcome, err = e.Revoke(ctx, intent.Rule, intent.UserID)
	}

	if err != nil {
		logger.Error("Failed to apply reaction role",
			attr.RoleID(intent.Rule.RoleID),
			attr.String("intent", intent.Kind.String()),
			attr.Bool("transient", IsTransient(err)),
			attr.String("reason", FailureReason(err)),
			attr.Error(err),
		)
		outcome = OutcomeFailed
	}

	e.metrics.EventHandled(event.Direction, outcome)
	return outcome
}

// Grant gives the rule's role to the user unless they already hold it. Only a real transition
// triggers the welcome message. With RemoveReactionAfterGrant the reaction is stripped either way,
// so the rules message never keeps a reaction from a member who holds the role.
func (e *Engine) Grant(ctx context.Context, rule guildconfig.GuildRule, userID string) (Outcome, error) {
	return e.grant(ctx, rule, userID, ParseEmote(rule.ReactionEmoji))
}

func (e *Engine) grant(ctx context.Context, rule guildconfig.GuildRule, userID string, emote Emote) (Outcome, error) {
	ctx, span := e.tracer.Start(ctx, "reactionrole.grant", trace.WithAttributes(
		attribute.String("guild_id", rule.GuildID),
		attribute.String("user_id", userID),
		attribute.String("role_id", rule.RoleID),
	))
	defer span.End()

	logger := e.logger.With(
		attr.EventID(EventIDFromContext(ctx)),
		attr.GuildID(rule.GuildID),
		attr.UserID(userID),
		attr.RoleID(rule.RoleID),
	)

	held, err := e.holdsRole(ctx, rule, userID)
	if err != nil {
		recordSpanError(span, err)
		return OutcomeFailed, err
	}
	if held {
		logger.Debug("User already holds role")
		span.SetAttributes(attribute.String("outcome", string(OutcomeAlreadyHeld)))
		if rule.RemoveReactionAfterGrant {
			e.stripReaction(ctx, logger, rule, userID, emote)
		}
		return OutcomeAlreadyHeld, nil
	}

	err = e.session.GuildMemberRoleAdd(rule.GuildID, userID, rule.RoleID, discordgo.WithContext(ctx))
	e.metrics.RoleMutation("grant", err)
	if err != nil {
		opErr := newRoleOperationError("grant", rule.GuildID, userID, rule.RoleID, err)
		recordSpanError(span, opErr)
		return OutcomeFailed, opErr
	}
	logger.Info("Granted role")
	span.SetAttributes(attribute.String("outcome", string(OutcomeGranted)))

	if rule.WelcomeEnabled && e.notifier != nil {
		if err := e.notifier.Notify(ctx, rule, userID); err != nil {
			logger.Warn("Welcome notification failed", attr.Error(err))
		}
	}

	if rule.RemoveReactionAfterGrant {
		e.stripReaction(ctx, logger, rule, userID, emote)
	}

	return OutcomeGranted, nil
}

// Revoke removes the rule's role from the user if they hold it.
func (e *Engine) Revoke(ctx context.Context, rule guildconfig.GuildRule, userID string) (Outcome, error) {
	ctx, span := e.tracer.Start(ctx, "reactionrole.revoke", trace.WithAttributes(
		attribute.String("guild_id", rule.GuildID),
		attribute.String("user_id", userID),
		attribute.String("role_id", rule.RoleID),
	))
	defer span.End()

	logger := e.logger.With(
		attr.EventID(EventIDFromContext(ctx)),
		attr.GuildID(rule.GuildID),
		attr.UserID(userID),
		attr.RoleID(rule.RoleID),
	)

	held, err := e.holdsRole(ctx, rule, userID)
	if err != nil {
		recordSpanError(span, err)
		return OutcomeFailed, err
	}
	if !held {
		logger.Debug("User does not hold role")
		span.SetAttributes(attribute.String("outcome", string(OutcomeNotHeld)))
		return OutcomeNotHeld, nil
	}

	err = e.session.GuildMemberRoleRemove(rule.GuildID, userID, rule.RoleID, discordgo.WithContext(ctx))
	e.metrics.RoleMutation("revoke", err)
	if err != nil {
		opErr := newRoleOperationError("revoke", rule.GuildID, userID, rule.RoleID, err)
		recordSpanError(span, opErr)
		return OutcomeFailed, opErr
	}
	logger.Info("Revoked role")
	span.SetAttributes(attribute.String("outcome", string(OutcomeRevoked)))
	return OutcomeRevoked, nil
}

func (e *Engine) holdsRole(ctx context.Context, rule guildconfig.GuildRule, userID string) (bool, error) {
	member, err := e.session.GuildMember(rule.GuildID, userID, discordgo.WithContext(ctx))
	if err != nil {
		return false, newRoleOperationError("read_membership", rule.GuildID, userID, rule.RoleID, err)
	}
	if member == nil {
		return false, newRoleOperationError("read_membership", rule.GuildID, userID, rule.RoleID,
			fmt.Errorf("empty member payload"))
	}
	return slices.Contains(member.Roles, rule.RoleID), nil
}

// stripReaction removes the user's reaction from the rules message. The mark is placed first
// because the gateway can deliver the removal before the REST call returns. If the call fails,
// any removal the mark absorbed in the meantime was the user's own and is applied here.
func (e *Engine) stripReaction(ctx context.Context, logger *slog.Logger, rule guildconfig.GuildRule, userID string, emote Emote) {
	if e.ops == nil {
		return
	}
	if e.deduper != nil {
		e.deduper.MarkStripped(rule.GuildID, userID)
	}
	err := e.ops.RemoveUserReaction(ctx, rule.RulesChannelID, rule.RulesMessageID, emote.APIName(), userID)
	absorbed := e.deduper != nil && e.deduper.ResolveStrip(rule.GuildID, userID, err == nil)
	if err == nil {
		logger.Debug("Removed reaction after grant")
		return
	}
	logger.Warn("Failed to remove reaction after grant", attr.Error(err))
	if !absorbed {
		return
	}

	logger.Info("User withdrew reaction while it was being stripped")
	if _, err := e.Revoke(ctx, rule, userID); err != nil {
		logger.Error("Failed to revoke role after withdrawn reaction",
			attr.String("reason", FailureReason(err)),
			attr.Error(err),
		)
	}
}

func recordSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
