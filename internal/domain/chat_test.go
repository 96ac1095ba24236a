package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRole(t *testing.T) {
	assert.True(t, RoleUser.IsValid())
	assert.True(t, RoleAssistant.IsValid())
	assert.False(t, Role("system").IsValid())

	assert.Equal(t, "User", RoleUser.Label())
	assert.Equal(t, "Assistant", RoleAssistant.Label())
}

func TestSessionTitle(t *testing.T) {
	assert.Equal(t, "Chat 1", SessionTitle(1))
	assert.Equal(t, "Chat 12", SessionTitle(12))
}

func TestValidateChatMessage(t *testing.T) {
	msg := NewChatMessage(RoleUser, "What is RSI?")
	assert.NoError(t, ValidateChatMessage(&msg))

	bad := NewChatMessage(Role("bot"), "hi")
	assert.Equal(t, ErrInvalidRole, ValidateChatMessage(&bad))

	empty := NewChatMessage(RoleAssistant, "")
	assert.Error(t, ValidateChatMessage(&empty))

	assert.Error(t, ValidateChatMessage(nil))
}
