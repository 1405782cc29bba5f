package reactionrole

import (
	"context"
	"log/slog"

	discord "github.com/Black-And-White-Club/discord-rules-bot/app/discordgo"
	"github.com/Black-And-White-Club/discord-rules-bot/app/guildconfig"
	"github.com/Black-And-White-Club/discord-rules-bot/app/shared/observability/attr"
)

// Seeder puts the configured emoji on each rules message so members have something to click.
type Seeder struct {
	ops    discord.Operations
	logger *slog.Logger
}

func NewSeeder(ops discord.Operations, logger *slog.Logger) *Seeder {
	return &Seeder{ops: ops, logger: logger}
}

// Seed adds the rule's emoji to its rules message. Inactive rules are skipped.
func (s *Seeder) Seed(ctx context.Context, rule guildconfig.GuildRule) error {
	if !rule.Active() {
		return nil
	}
	emote := ParseEmote(rule.ReactionEmoji)
	if err := s.ops.AddBotReaction(ctx, rule.RulesChannelID, rule.RulesMessageID, emote.APIName()); err != nil {
		return err
	}
	s.logger.Info("Seeded rules reaction",
		attr.GuildID(rule.GuildID),
		attr.ChannelID(rule.RulesChannelID),
		attr.MessageID(rule.RulesMessageID),
		attr.String("emoji", emote.String()),
	)
	return nil
}

// SeedAll seeds every rule and returns how many failed. Failures are logged per guild.
func (s *Seeder) SeedAll(ctx context.Context, rules []guildconfig.GuildRule) int {
	failed := 0
	for _, rule := range rules {
		if err := s.Seed(ctx, rule); err != nil {
			failed++
			s.logger.Error("Failed to seed rules reaction", attr.GuildID(rule.GuildID), attr.Error(err))
		}
	}
	return failed
}
