package reactionrole

import "github.com/Black-And-White-Club/discord-rules-bot/app/guildconfig"

// IntentKind is the action a reaction event asks for.
type IntentKind int

const (
	IntentIgnore IntentKind = iota
	IntentGrant
	IntentRevoke
)

func (k IntentKind) String() string {
	switch k {
	case IntentGrant:
		return "grant"
	case IntentRevoke:
		return "revoke"
	default:
		return "ignore"
	}
}

// IgnoreReason explains an Ignore intent.
type IgnoreReason string

const (
	ReasonBotActor        IgnoreReason = "bot-actor"
	ReasonNonGuildChannel IgnoreReason = "non-guild-channel"
	ReasonNotConfigured   IgnoreReason = "not-configured"
	ReasonWrongTarget     IgnoreReason = "wrong-target"
	ReasonWrongEmoji      IgnoreReason = "wrong-emoji"
)

// Intent is the result of classifying a reaction event.
type Intent struct {
	Kind   IntentKind
	Reason IgnoreReason
	Rule   guildconfig.GuildRule
	UserID string
}

func ignore(reason IgnoreReason) Intent {
	return Intent{Kind: IntentIgnore, Reason: reason}
}

// Classify decides what a reaction event means. The first matching check wins. It performs no I/O.
//
// A rule that is enabled but has no rules channel or message fails the target check and is
// reported as wrong-target.
func Classify(event ReactionEvent, rules guildconfig.RuleLookup) Intent {
	if event.UserIsBot {
		return ignore(ReasonBotActor)
	}
	if event.GuildID == "" {
		return ignore(ReasonNonGuildChannel)
	}

	rule, ok := rules.Lookup(event.GuildID)
	if !ok || !rule.ReactionRoleEnabled {
		return ignore(ReasonNotConfigured)
	}

	if !rule.HasTarget() || event.ChannelID != rule.RulesChannelID || event.MessageID != rule.RulesMessageID {
		return ignore(ReasonWrongTarget)
	}
	if !Matches(event.Emoji, rule.ReactionEmoji) {
		return ignore(ReasonWrongEmoji)
	}

	kind := IntentGrant
	if event.Direction == Removed {
		kind = IntentRevoke
	}
	return Intent{Kind: kind, Rule: rule, UserID: event.UserID}
}
