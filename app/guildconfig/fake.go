package guildconfig

// FakeRuleLookup provides a programmable stub for the RuleLookup interface.
type FakeRuleLookup struct {
	LookupFunc func(guildID string) (GuildRule, bool)
	RulesFunc  func() []GuildRule
}

func (f *FakeRuleLookup) Lookup(guildID string) (GuildRule, bool) {
	if f.LookupFunc != nil {
		return f.LookupFunc(guildID)
	}
	return GuildRule{}, false
}

func (f *FakeRuleLookup) Rules() []GuildRule {
	if f.RulesFunc != nil {
		return f.RulesFunc()
	}
	return nil
}

var _ RuleLookup = (*FakeRuleLookup)(nil)
