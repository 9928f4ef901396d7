package cache

import (
	"fmt"

	"github.com/google/uuid"
)

// Access decisions are cached per role, not per user. Reassigning a
// member's role lands on a different key automatically, so only grant
// and revoke operations need explicit invalidation.

// RoleChannelKey is the key for a single role-to-channel access decision
func RoleChannelKey(roleID, channelID uuid.UUID) string {
	return fmt.Sprintf("access:role:%s:channel:%s", roleID, channelID)
}

// RoleVisibleKey is the key for a role's full visible channel list
func RoleVisibleKey(roleID uuid.UUID) string {
	return fmt.Sprintf("access:role:%s:visible", roleID)
}

// RolePrefix covers every cached decision for a role
func RolePrefix(roleID uuid.UUID) string {
	return fmt.Sprintf("access:role:%s:", roleID)
}
