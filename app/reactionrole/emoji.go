package reactionrole

import (
	"strings"

	"github.com/bwmarrin/discordgo"
)

// Emote is an emoji as it arrives on a reaction. Unicode emoji only carry a Name; custom guild
// emoji also carry an ID.
type Emote struct {
	Name     string
	ID       string
	Animated bool
}

// EmoteFromDiscord converts the gateway payload.
func EmoteFromDiscord(e discordgo.Emoji) Emote {
	return Emote{Name: e.Name, ID: e.ID, Animated: e.Animated}
}

// String returns the canonical text form: <:name:id>, <a:name:id>, or the unicode glyph.
func (e Emote) String() string {
	if e.ID == "" {
		return e.Name
	}
	prefix := "<:"
	if e.Animated {
		prefix = "<a:"
	}
	return prefix + e.Name + ":" + e.ID + ">"
}

// APIName returns the form the reaction endpoints expect: name:id for custom emoji, the glyph
// otherwise.
func (e Emote) APIName() string {
	if e.ID == "" {
		return e.Name
	}
	return e.Name + ":" + e.ID
}

// ParseEmote reads a configured emoji string. It understands <:name:id>, <a:name:id>, name:id and
// bare unicode glyphs or names.
func ParseEmote(s string) Emote {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "<") && strings.HasSuffix(s, ">") {
		inner := strings.TrimSuffix(strings.TrimPrefix(s, "<"), ">")
		animated := false
		if strings.HasPrefix(inner, "a:") {
			animated = true
			inner = strings.TrimPrefix(inner, "a:")
		} else {
			inner = strings.TrimPrefix(inner, ":")
		}
		if name, id, ok := strings.Cut(inner, ":"); ok && name != "" && id != "" {
			return Emote{Name: name, ID: id, Animated: animated}
		}
		return Emote{Name: s}
	}
	if name, id, ok := strings.Cut(s, ":"); ok && name != "" && isSnowflake(id) {
		return Emote{Name: name, ID: id}
	}
	return Emote{Name: s}
}

func isSnowflake(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Matches compares an inbound emote against the configured emoji. It accepts either the short name
// or the full canonical form. The comparison is case-sensitive.
func Matches(inbound Emote, configured string) bool {
	if configured == "" {
		return false
	}
	return configured == inbound.Name || configured == inbound.String()
}
