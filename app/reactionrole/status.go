package reactionrole

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	discord "github.com/Black-And-White-Club/discord-rules-bot/app/discordgo"
	"github.com/Black-And-White-Club/discord-rules-bot/app/guildconfig"
	"github.com/Black-And-White-Club/discord-rules-bot/app/shared/observability/attr"
	"github.com/bwmarrin/discordgo"
)

const (
	StatusNotConfigured = "❌ Server not configured"
	StatusNotFound      = "❌ Server not found"
)

// StatusReporter summarizes a guild's reaction role setup and checks that the referenced role,
// channels and message still resolve.
type StatusReporter struct {
	session discord.Session
	rules   guildconfig.RuleLookup
	logger  *slog.Logger
}

func NewStatusReporter(session discord.Session, rules guildconfig.RuleLookup, logger *slog.Logger) *StatusReporter {
	return &StatusReporter{session: session, rules: rules, logger: logger}
}

// ServerStatus returns a multi-line text summary for the guild.
func (s *StatusReporter) ServerStatus(ctx context.Context, guildID string) string {
	rule, ok := s.rules.Lookup(guildID)
	if !ok {
		return StatusNotConfigured
	}

	guild, err := s.session.Guild(guildID, discordgo.WithContext(ctx))
	if err != nil || guild == nil {
		s.logger.WarnContext(ctx, "Failed to resolve guild for status", attr.GuildID(guildID), attr.Error(err))
		return StatusNotFound
	}

	name := rule.GuildName
	if name == "" {
		name = guild.Name
	}

	var b strings.Builder
	fmt.Fprintf(&b, "✅ **%s**\n", name)

	if rule.ReactionRoleEnabled {
		fmt.Fprintf(&b, "🎭 Reaction Role: %s\n", s.roleName(guild.Roles, rule.RoleID))
		fmt.Fprintf(&b, "📋 Rules Channel: %s\n", s.channelName(ctx, guildID, rule.RulesChannelID, "Channel not configured"))
		fmt.Fprintf(&b, "📝 Message ID: %s\n", s.messageState(ctx, rule))
		fmt.Fprintf(&b, "😀 Emoji: %s\n", rule.ReactionEmoji)
	} else {
		b.WriteString("🎭 Reaction Role: Disabled\n")
	}

	if rule.WelcomeEnabled {
		fmt.Fprintf(&b, "💬 Welcome Message: %s\n", s.channelName(ctx, guildID, rule.WelcomeChannelID, "Channel not found"))
	} else {
		b.WriteString("💬 Welcome Message: Disabled\n")
	}

	return b.String()
}

func (s *StatusReporter) roleName(roles []*discordgo.Role, roleID string) string {
	for _, r := range roles {
		if r != nil && r.ID == roleID {
			return r.Name
		}
	}
	return "Role not found"
}

func (s *StatusReporter) channelName(ctx context.Context, guildID, channelID, missing string) string {
	if channelID == "" {
		return missing
	}
	ch, err := s.session.GetChannel(channelID, discordgo.WithContext(ctx))
	if err != nil || ch == nil || ch.GuildID != guildID {
		return missing
	}
	return ch.Name
}

func (s *StatusReporter) messageState(ctx context.Context, rule guildconfig.GuildRule) string {
	if rule.RulesMessageID == "" {
		return "Not configured"
	}
	if rule.RulesChannelID == "" {
		return rule.RulesMessageID + " (channel not configured)"
	}
	if _, err := s.session.ChannelMessage(rule.RulesChannelID, rule.RulesMessageID, discordgo.WithContext(ctx)); err != nil {
		return rule.RulesMessageID + " (message not found)"
	}
	return rule.RulesMessageID
}
