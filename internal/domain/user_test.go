package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewUser(t *testing.T) {
	now := time.Now()
	u := NewUser("u-1", "alice", now)

	assert.Equal(t, "u-1", u.ID)
	assert.Equal(t, "alice", u.Name)
	assert.Equal(t, now, u.CreatedAt)
}

func TestValidateUser(t *testing.T) {
	assert.NoError(t, ValidateUser(&User{ID: "u-1", Name: "alice"}))
	assert.Error(t, ValidateUser(nil))
	assert.Error(t, ValidateUser(&User{Name: "alice"}))
	assert.Error(t, ValidateUser(&User{ID: "u-1"}))
}
