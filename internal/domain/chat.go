package domain

import (
	"fmt"
	"time"
)

// Role identifies the author of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

func (r Role) IsValid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Label is the capitalised role name used in prompts and exports.
func (r Role) Label() string {
	switch r {
	case RoleUser:
		return "User"
	case RoleAssistant:
		return "Assistant"
	default:
		return string(r)
	}
}

// ChatMessage is one append-only entry of a session. Seq and CreatedAt
// increase strictly within a session.
type ChatMessage struct {
	ID        string
	SessionID string
	Seq       int
	Role      Role
	Content   string
	CreatedAt time.Time
}

// Session is a user's conversation.
type Session struct {
	ID        string
	UserID    string
	Title     string
	CreatedAt time.Time
	UpdatedAt time.Time
	Messages  []ChatMessage
}

// SessionTitle is the default title of the n-th session of a user.
func SessionTitle(n int) string {
	return fmt.Sprintf("Chat %d", n)
}

func NewChatMessage(role Role, content string) ChatMessage {
	return ChatMessage{Role: role, Content: content}
}

func ValidateChatMessage(m *ChatMessage) error {
	if m == nil {
		return fmt.Errorf("chat message cannot be nil")
	}
	if !m.Role.IsValid() {
		return ErrInvalidRole
	}
	if m.Content == "" {
		return fmt.Errorf("chat message Content is required")
	}
	return nil
}

// Article is a news item used as optional prompt context.
type Article struct {
	Headline    string
	Summary     string
	PublishedAt time.Time
	URL         string
	SourceName  string
}
