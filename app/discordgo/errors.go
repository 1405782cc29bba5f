package discord

import (
	"errors"
	"net"
	"net/http"

	"github.com/bwmarrin/discordgo"
)

// ErrorKind separates failures worth retrying from ones that will fail again.
type ErrorKind string

const (
	ErrorTransient ErrorKind = "transient"
	ErrorPermanent ErrorKind = "permanent"
)

// ClassifyError reports whether a Discord API failure is transient (rate limits, 5xx, network
// timeouts) or permanent (missing permissions, unknown role, unknown member and other 4xx).
func ClassifyError(err error) ErrorKind {
	if err == nil {
		return ErrorPermanent
	}
	if isRetryableDiscordError(err) {
		return ErrorTransient
	}
	return ErrorPermanent
}

func restCode(err error) (int, bool) {
	var restErr *discordgo.RESTError
	if !errors.As(err, &restErr) || restErr.Message == nil {
		return 0, false
	}
	return restErr.Message.Code, true
}

// IsUnknownRole reports a role that was deleted or never existed.
func IsUnknownRole(err error) bool {
	code, ok := restCode(err)
	return ok && code == discordgo.ErrCodeUnknownRole
}

// IsUnknownMember reports a user that has left the guild.
func IsUnknownMember(err error) bool {
	code, ok := restCode(err)
	return ok && code == discordgo.ErrCodeUnknownMember
}

// IsUnknownMessage reports a deleted message or channel.
func IsUnknownMessage(err error) bool {
	code, ok := restCode(err)
	return ok && (code == discordgo.ErrCodeUnknownMessage || code == discordgo.ErrCodeUnknownChannel)
}

// IsMissingPermissions reports that the bot lacks the permission or the role hierarchy position
// for the call.
func IsMissingPermissions(err error) bool {
	code, ok := restCode(err)
	return ok && (code == discordgo.ErrCodeMissingPermissions || code == discordgo.ErrCodeMissingAccess)
}

func isRetryableDiscordError(err error) bool {
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) {
		if restErr.Response != nil {
			status := restErr.Response.StatusCode
			if status == http.StatusTooManyRequests || status >= http.StatusInternalServerError {
				return true
			}
		}
		return false
	}

	var rateErr *discordgo.RateLimitError
	if errors.As(err, &rateErr) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}

	return false
}
