package memstore

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/cloo-solutions/cryptoadvisor/internal/domain"
	"github.com/cloo-solutions/cryptoadvisor/internal/pagination"
)

// SessionStore keeps sessions and their messages in memory. It implements
// both the session and the message repository.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*domain.Session
	messages map[string][]domain.ChatMessage
	nextID   int64
	now      func() time.Time

	// FailAppend, when set, is returned by every append.
	FailAppend error
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*domain.Session),
		messages: make(map[string][]domain.ChatMessage),
		now:      time.Now,
	}
}

func (s *SessionStore) Create(_ context.Context, session *domain.Session) error {
	if session == nil || session.ID == "" || session.UserID == "" {
		return domain.ErrMissingRequiredField
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[session.ID]; ok {
		return domain.NewDomainError(domain.ErrCodeAlreadyExists, "session already exists")
	}
	cp := *session
	cp.Messages = nil
	s.sessions[session.ID] = &cp
	return nil
}

func (s *SessionStore) GetByID(_ context.Context, id string) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	cp := *session
	return &cp, nil
}

// ListByUser returns the user's sessions newest first, after cursor if given.
func (s *SessionStore) ListByUser(_ context.Context, userID string, limit int, cursor *pagination.Cursor) ([]*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*domain.Session
	for _, session := range s.sessions {
		if session.UserID != userID {
			continue
		}
		if cursor != nil && !before(session, cursor) {
			continue
		}
		cp := *session
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func before(session *domain.Session, c *pagination.Cursor) bool {
	if session.CreatedAt.Equal(c.Timestamp) {
		return session.ID < c.LastID
	}
	return session.CreatedAt.Before(c.Timestamp)
}

func (s *SessionStore) CountByUser(_ context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, session := range s.sessions {
		if session.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (s *SessionStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return domain.ErrSessionNotFound
	}
	delete(s.sessions, id)
	delete(s.messages, id)
	return nil
}

func (s *SessionStore) Append(_ context.Context, sessionID string, msg *domain.ChatMessage) error {
	return s.append(sessionID, msg)
}

// AppendTurn stores both messages or neither.
func (s *SessionStore) AppendTurn(_ context.Context, sessionID string, user, assistant *domain.ChatMessage) error {
	return s.append(sessionID, user, assistant)
}

func (s *SessionStore) append(sessionID string, msgs ...*domain.ChatMessage) error {
	for _, m := range msgs {
		if err := domain.ValidateChatMessage(m); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailAppend != nil {
		return s.FailAppend
	}
	session, ok := s.sessions[sessionID]
	if !ok {
		return domain.ErrSessionNotFound
	}

	history := s.messages[sessionID]
	var last time.Time
	if n := len(history); n > 0 {
		last = history[n-1].CreatedAt
	}
	staged := make([]domain.ChatMessage, 0, len(msgs))
	for _, m := range msgs {
		ts := s.now().UTC().Truncate(time.Microsecond)
		if !ts.After(last) {
			ts = last.Add(time.Microsecond)
		}
		last = ts
		s.nextID++
		m.ID = strconv.FormatInt(s.nextID, 10)
		m.SessionID = sessionID
		m.Seq = len(history) + len(staged) + 1
		m.CreatedAt = ts
		staged = append(staged, *m)
	}
	s.messages[sessionID] = append(history, staged...)
	session.UpdatedAt = last
	return nil
}

func (s *SessionStore) Load(_ context.Context, sessionID string) ([]domain.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sessionID]; !ok {
		return nil, domain.ErrSessionNotFound
	}
	return append([]domain.ChatMessage{}, s.messages[sessionID]...), nil
}
