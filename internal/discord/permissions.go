package discord

import (
	"slices"

	"github.com/bwmarrin/discordgo"
)

// PermissionChecker validates that a Discord user has the controller role
// before executing commands that change playback or bindings.
type PermissionChecker struct {
	controllerRoleID string
}

// NewPermissionChecker creates a PermissionChecker with the given controller
// role ID.
func NewPermissionChecker(controllerRoleID string) *PermissionChecker {
	return &PermissionChecker{controllerRoleID: controllerRoleID}
}

// IsController checks whether the interaction author has the configured
// controller role. If the role ID is empty, every user is a controller.
// Returns false if the interaction has no Member (e.g., DM channel
// interactions).
func (p *PermissionChecker) IsController(i *discordgo.InteractionCreate) bool {
	if p.controllerRoleID == "" {
		return true
	}
	if i.Member == nil {
		return false
	}
	return slices.Contains(i.Member.Roles, p.controllerRoleID)
}
