package guildconfig

import (
	"log/slog"
	"sort"
	"sync/atomic"

	"github.com/Black-And-White-Club/discord-rules-bot/app/shared/observability/attr"
)

// Registry maps guild ids to their rule. The table is built once and only ever replaced whole, so
// lookups never observe a half-applied reload.
type Registry struct {
	table  atomic.Pointer[map[string]GuildRule]
	logger *slog.Logger
}

// NewRegistry builds a registry from the given rules.
func NewRegistry(rules []GuildRule, logger *slog.Logger) (*Registry, error) {
	r := &Registry{logger: logger}
	if err := r.Replace(rules); err != nil {
		return nil, err
	}
	return r, nil
}

// Replace validates the rules and swaps in a new table. On error the current table is kept.
func (r *Registry) Replace(rules []GuildRule) error {
	table, err := buildTable(rules)
	if err != nil {
		return err
	}

	for _, rule := range table {
		if rule.ReactionRoleEnabled && !rule.HasTarget() {
			r.logger.Warn("Reaction role enabled without a rules message; rule will never match",
				attr.GuildID(rule.GuildID),
				attr.String("rules_channel_id", rule.RulesChannelID),
				attr.String("rules_message_id", rule.RulesMessageID),
			)
		}
	}

	r.table.Store(&table)
	r.logger.Info("Loaded guild rules", attr.Int("guild_count", len(table)))
	return nil
}

func buildTable(rules []GuildRule) (map[string]GuildRule, error) {
	table := make(map[string]GuildRule, len(rules))
	for _, rule := range rules {
		if rule.GuildID == "" {
			return nil, NewInvalidRuleError("", "guild id is required")
		}
		if rule.ReactionRoleEnabled && rule.RoleID == "" {
			return nil, NewInvalidRuleError(rule.GuildID, "role id is required when reaction role is enabled")
		}
		if _, exists := table[rule.GuildID]; exists {
			return nil, &DuplicateGuildError{GuildID: rule.GuildID}
		}
		table[rule.GuildID] = rule.withDefaults()
	}
	return table, nil
}

// Lookup returns the rule for a guild.
func (r *Registry) Lookup(guildID string) (GuildRule, bool) {
	table := r.table.Load()
	if table == nil {
		return GuildRule{}, false
	}
	rule, ok := (*table)[guildID]
	return rule, ok
}

// Rules returns every rule ordered by guild id.
func (r *Registry) Rules() []GuildRule {
	table := r.table.Load()
	if table == nil {
		return nil
	}
	rules := make([]GuildRule, 0, len(*table))
	for _, rule := range *table {
		rules = append(rules, rule)
	}
	sort.Slice(rules, func(i, j int) bool { return rules[i].GuildID < rules[j].GuildID })
	return rules
}

var _ RuleLookup = (*Registry)(nil)
