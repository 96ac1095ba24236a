package domain

import (
	"fmt"
	"time"
)

// User owns chat sessions and API keys.
type User struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

func NewUser(id, name string, createdAt time.Time) *User {
	return &User{
		ID:        id,
		Name:      name,
		CreatedAt: createdAt,
	}
}

func ValidateUser(u *User) error {
	if u == nil {
		return fmt.Errorf("user cannot be nil")
	}
	if u.ID == "" {
		return fmt.Errorf("user ID is required")
	}
	if u.Name == "" {
		return fmt.Errorf("user Name is required")
	}
	return nil
}
