package service

import "github.com/google/uuid"

// UUIDGenerator generates identifiers; tests substitute deterministic ones.
type UUIDGenerator interface {
	NewString() string
}

// DefaultUUIDGenerator returns random v4 UUIDs.
type DefaultUUIDGenerator struct{}

func (DefaultUUIDGenerator) NewString() string {
	return uuid.NewString()
}
