package guildconfig

// RuleLookup is the read side of the registry consumed by the reaction engine and the commands.
type RuleLookup interface {
	Lookup(guildID string) (GuildRule, bool)
	Rules() []GuildRule
}
