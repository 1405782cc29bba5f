package main

import (
	"testing"

	"github.com/Black-And-White-Club/discord-rules-bot/app/guildconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectRules(t *testing.T) {
	active := guildconfig.GuildRule{GuildID: "A", RoleID: "R", RulesChannelID: "C", RulesMessageID: "M", ReactionEmoji: "✅", ReactionRoleEnabled: true}
	disabled := guildconfig.GuildRule{GuildID: "B", RoleID: "R", RulesChannelID: "C", RulesMessageID: "M", ReactionEmoji: "✅"}
	untargeted := guildconfig.GuildRule{GuildID: "C", RoleID: "R", ReactionEmoji: "✅", ReactionRoleEnabled: true}
	rules := []guildconfig.GuildRule{active, disabled, untargeted}

	got, err := selectRules(rules, "")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "A", got[0].GuildID)

	got, err = selectRules(rules, "A")
	require.NoError(t, err)
	assert.Len(t, got, 1)

	_, err = selectRules(rules, "B")
	assert.Error(t, err)

	_, err = selectRules(rules, "missing")
	assert.Error(t, err)
}
