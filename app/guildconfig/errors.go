package guildconfig

import (
	"errors"
	"fmt"
)

// DuplicateGuildError indicates two rules were supplied for the same guild.
type DuplicateGuildError struct {
	GuildID string
}

func (e *DuplicateGuildError) Error() string {
	return fmt.Sprintf("duplicate rule for guild %s", e.GuildID)
}

// IsDuplicateGuild checks if an error indicates a duplicate guild rule
func IsDuplicateGuild(err error) bool {
	var target *DuplicateGuildError
	return errors.As(err, &target)
}

// InvalidRuleError indicates a rule that cannot be loaded at all.
type InvalidRuleError struct {
	GuildID string
	Reason  string
}

func (e *InvalidRuleError) Error() string {
	return fmt.Sprintf("invalid rule for guild %q: %s", e.GuildID, e.Reason)
}

// IsInvalidRule checks if an error indicates an invalid rule
func IsInvalidRule(err error) bool {
	var target *InvalidRuleError
	return errors.As(err, &target)
}

// NewInvalidRuleError creates an InvalidRuleError
func NewInvalidRuleError(guildID, reason string) *InvalidRuleError {
	return &InvalidRuleError{GuildID: guildID, Reason: reason}
}
