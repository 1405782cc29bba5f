// Package attr holds the slog attribute helpers used across the bot so log keys stay consistent.
package attr

import (
	"log/slog"
	"time"
)

func String(key, value string) slog.Attr {
	return slog.String(key, value)
}

func Int(key string, value int) slog.Attr {
	return slog.Int(key, value)
}

func Bool(key string, value bool) slog.Attr {
	return slog.Bool(key, value)
}

func Duration(key string, value time.Duration) slog.Attr {
	return slog.Duration(key, value)
}

func Any(key string, value any) slog.Attr {
	return slog.Any(key, value)
}

// Error returns an "error" attribute; a nil error renders as an empty string.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "")
	}
	return slog.String("error", err.Error())
}

func GuildID(id string) slog.Attr {
	return slog.String("guild_id", id)
}

func UserID(id string) slog.Attr {
	return slog.String("user_id", id)
}

func RoleID(id string) slog.Attr {
	return slog.String("role_id", id)
}

func ChannelID(id string) slog.Attr {
	return slog.String("channel_id", id)
}

func MessageID(id string) slog.Attr {
	return slog.String("message_id", id)
}

func EventID(id string) slog.Attr {
	return slog.String("event_id", id)
}
