package reactionroleevents

import "time"

// RoleGranted is published after a member was given the rules role.
const RoleGranted = "reactionrole.role.granted"

// RoleGrantedPayload is the body of a RoleGranted message.
type RoleGrantedPayload struct {
	GuildID   string    `json:"guild_id"`
	UserID    string    `json:"user_id"`
	RoleID    string    `json:"role_id"`
	GrantedAt time.Time `json:"granted_at"`
}
