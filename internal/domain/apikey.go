package domain

import (
	"encoding/hex"
	"fmt"
	"time"
)

// keyHashLen is the hex length of a SHA-256 digest.
const keyHashLen = 64

// APIKey is a credential of a user. Only the SHA-256 hash of the token is
// stored; the token itself is shown once at creation.
type APIKey struct {
	ID        string
	UserID    string
	Name      string
	KeyHash   string
	CreatedAt time.Time
	RevokedAt *time.Time
}

func NewAPIKey(id, userID, name, keyHash string, createdAt time.Time, revokedAt *time.Time) *APIKey {
	return &APIKey{
		ID:        id,
		UserID:    userID,
		Name:      name,
		KeyHash:   keyHash,
		CreatedAt: createdAt,
		RevokedAt: revokedAt,
	}
}

func (a *APIKey) IsRevoked() bool {
	return a.RevokedAt != nil
}

// Owner returns the user a request made with this key acts as.
func (a *APIKey) Owner() (string, error) {
	if a.IsRevoked() {
		return "", ErrAPIKeyRevoked
	}
	return a.UserID, nil
}

func ValidateAPIKey(a *APIKey) error {
	switch {
	case a == nil:
		return fmt.Errorf("api key cannot be nil")
	case a.ID == "":
		return fmt.Errorf("api key ID is required")
	case a.UserID == "":
		return fmt.Errorf("api key UserID is required")
	case a.Name == "":
		return fmt.Errorf("api key Name is required")
	case len(a.KeyHash) != keyHashLen:
		return fmt.Errorf("api key KeyHash must be %d hex characters", keyHashLen)
	}
	if _, err := hex.DecodeString(a.KeyHash); err != nil {
		return fmt.Errorf("api key KeyHash is not hex: %w", err)
	}
	return nil
}
