package guildconfig

import "strings"

const (
	// DefaultReactionEmoji is used when a server record does not name an emoji.
	DefaultReactionEmoji = "✅"
	// DefaultWelcomeTemplate is used when a server record does not provide a welcome message.
	DefaultWelcomeTemplate = "Welcome to the server, {user}!"
	// UserPlaceholder is replaced with a mention of the new member in welcome templates.
	UserPlaceholder = "{user}"
)

// GuildRule is the per-guild reaction role configuration.
type GuildRule struct {
	GuildID   string
	GuildName string
	RoleID    string

	// RulesChannelID and RulesMessageID identify the monitored message. Either one empty leaves the
	// rule inert.
	RulesChannelID string
	RulesMessageID string
	ReactionEmoji  string

	WelcomeChannelID       string
	WelcomeMessageTemplate string

	ReactionRoleEnabled      bool
	WelcomeEnabled           bool
	RemoveReactionAfterGrant bool
}

// HasTarget reports whether both the rules channel and message are configured.
func (r GuildRule) HasTarget() bool {
	return r.RulesChannelID != "" && r.RulesMessageID != ""
}

// Active reports whether the rule can ever produce a grant or revoke.
func (r GuildRule) Active() bool {
	return r.ReactionRoleEnabled && r.HasTarget()
}

// WelcomeConfigured reports whether a welcome message should be attempted after a grant.
func (r GuildRule) WelcomeConfigured() bool {
	return r.WelcomeEnabled && r.WelcomeChannelID != ""
}

// RenderWelcome substitutes every {user} placeholder with the given mention.
func (r GuildRule) RenderWelcome(mention string) string {
	template := r.WelcomeMessageTemplate
	if template == "" {
		template = DefaultWelcomeTemplate
	}
	return strings.ReplaceAll(template, UserPlaceholder, mention)
}

// withDefaults fills in the emoji and template defaults.
func (r GuildRule) withDefaults() GuildRule {
	if r.ReactionEmoji == "" {
		r.ReactionEmoji = DefaultReactionEmoji
	}
	if r.WelcomeMessageTemplate == "" {
		r.WelcomeMessageTemplate = DefaultWelcomeTemplate
	}
	return r
}
