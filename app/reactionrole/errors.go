package reactionrole

import (
	"errors"
	"fmt"

	discord "github.com/Black-And-White-Club/discord-rules-bot/app/discordgo"
)

// RoleOperationError wraps a failed Discord call made while applying an intent.
type RoleOperationError struct {
	Op      string
	GuildID string
	UserID  string
	RoleID  string
	Kind    discord.ErrorKind
	Cause   error
}

func (e *RoleOperationError) Error() string {
	return fmt.Sprintf("%s failed for user %s role %s in guild %s (%s): %v", e.Op, e.UserID, e.RoleID, e.GuildID, e.Kind, e.Cause)
}

func (e *RoleOperationError) Unwrap() error {
	return e.Cause
}

// IsTransient reports whether the failure might succeed if the user reacts again.
func IsTransient(err error) bool {
	var target *RoleOperationError
	return errors.As(err, &target) && target.Kind == discord.ErrorTransient
}

// IsRoleOperationError checks if an error came from a role operation
func IsRoleOperationError(err error) bool {
	var target *RoleOperationError
	return errors.As(err, &target)
}

// FailureReason names the Discord failure behind err for logs and metric labels. Unrecognized
// failures are "error".
func FailureReason(err error) string {
	switch {
	case err == nil:
		return "success"
	case discord.IsMissingPermissions(err):
		return "missing-permissions"
	case discord.IsUnknownRole(err):
		return "unknown-role"
	case discord.IsUnknownMember(err):
		return "unknown-member"
	case discord.IsUnknownMessage(err):
		return "unknown-message"
	case discord.ClassifyError(err) == discord.ErrorTransient:
		return "transient"
	default:
		return "error"
	}
}

func newRoleOperationError(op, guildID, userID, roleID string, cause error) *RoleOperationError {
	return &RoleOperationError{
		Op:      op,
		GuildID: guildID,
		UserID:  userID,
		RoleID:  roleID,
		Kind:    discord.ClassifyError(cause),
		Cause:   cause,
	}
}
