package reactionrole

import "time"

// Direction says whether a reaction was added or removed.
type Direction int

const (
	Added Direction = iota
	Removed
)

func (d Direction) String() string {
	switch d {
	case Added:
		return "added"
	case Removed:
		return "removed"
	default:
		return "unknown"
	}
}

func (d Direction) opposite() Direction {
	if d == Added {
		return Removed
	}
	return Added
}

// ReactionEvent is one decoded reaction callback. An empty GuildID means the channel is not
// guild-scoped. ReceivedAt is when the gateway callback fired, before any queueing.
type ReactionEvent struct {
	GuildID   string
	ChannelID string
	MessageID string
	Emoji     Emote
	UserID    string
	UserIsBot bool
	Direction Direction

	ReceivedAt time.Time
}
