package cache

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestRoleChannelKey(t *testing.T) {
	premium := uuid.New()
	free := uuid.New()
	signals := uuid.New()
	offtopic := uuid.New()

	key := RoleChannelKey(premium, signals)
	assert.Contains(t, key, premium.String())
	assert.Contains(t, key, signals.String())

	assert.NotEqual(t, key, RoleChannelKey(free, signals))
	assert.NotEqual(t, key, RoleChannelKey(premium, offtopic))
}

func TestRoleVisibleKey(t *testing.T) {
	premium := uuid.New()
	free := uuid.New()

	assert.NotEqual(t, RoleVisibleKey(premium), RoleVisibleKey(free))
	assert.NotEqual(t, RoleVisibleKey(premium), RoleChannelKey(premium, uuid.New()))
}

func TestRolePrefix(t *testing.T) {
	roleID := uuid.New()
	prefix := RolePrefix(roleID)

	// Deleting by the role prefix must cover every decision key for
	// that role, and no other role's keys.
	assert.True(t, strings.HasPrefix(RoleChannelKey(roleID, uuid.New()), prefix))
	assert.True(t, strings.HasPrefix(RoleVisibleKey(roleID), prefix))
	assert.False(t, strings.HasPrefix(RoleChannelKey(uuid.New(), uuid.New()), prefix))
}
