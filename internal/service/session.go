package service

import (
	"context"
	"time"

	"github.com/cloo-solutions/cryptoadvisor/internal/domain"
	"github.com/cloo-solutions/cryptoadvisor/internal/pagination"
)

const (
	defaultSessionPageSize = 20
	maxSessionPageSize     = 100
)

type SessionService struct {
	sessions SessionRepository
	messages MessageRepository
	uuidGen  UUIDGenerator
	now      func() time.Time
}

func NewSessionService(sessions SessionRepository, messages MessageRepository, uuidGen UUIDGenerator) *SessionService {
	return &SessionService{
		sessions: sessions,
		messages: messages,
		uuidGen:  uuidGen,
		now:      time.Now,
	}
}

// Create starts a new session titled "Chat N", N being the user's session count.
func (s *SessionService) Create(ctx context.Context, userID string) (*domain.Session, error) {
	if userID == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "user ID is required")
	}
	count, err := s.sessions.CountByUser(ctx, userID)
	if err != nil {
		return nil, domain.NewPersistenceError(err)
	}

	now := s.now().UTC().Truncate(time.Microsecond)
	session := &domain.Session{
		ID:        s.uuidGen.NewString(),
		UserID:    userID,
		Title:     domain.SessionTitle(count + 1),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, domain.NewPersistenceError(err)
	}
	return session, nil
}

// List pages through the user's sessions, newest first.
func (s *SessionService) List(ctx context.Context, userID, cursor string, limit int) (*pagination.PageResult[*domain.Session], error) {
	decoded, err := pagination.DecodeCursor(cursor)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid cursor", err)
	}
	limit = pagination.ClampLimit(limit, defaultSessionPageSize, maxSessionPageSize)

	sessions, err := s.sessions.ListByUser(ctx, userID, limit+1, decoded)
	if err != nil {
		return nil, domain.NewPersistenceError(err)
	}
	page := pagination.Page(sessions, limit, func(s *domain.Session) (string, time.Time) {
		return s.ID, s.CreatedAt
	})
	return &page, nil
}

// Get returns the session with its full history. Sessions of other users
// are reported as not found.
func (s *SessionService) Get(ctx context.Context, userID, sessionID string) (*domain.Session, error) {
	session, err := s.owned(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	msgs, err := s.messages.Load(ctx, sessionID)
	if err != nil {
		return nil, domain.NewPersistenceError(err)
	}
	session.Messages = msgs
	return session, nil
}

func (s *SessionService) History(ctx context.Context, userID, sessionID string) ([]domain.ChatMessage, error) {
	session, err := s.Get(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	return session.Messages, nil
}

func (s *SessionService) Delete(ctx context.Context, userID, sessionID string) error {
	if _, err := s.owned(ctx, userID, sessionID); err != nil {
		return err
	}
	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		if domain.HasCode(err, domain.ErrCodeNotFound) {
			return domain.ErrSessionNotFound
		}
		return domain.NewPersistenceError(err)
	}
	return nil
}

func (s *SessionService) owned(ctx context.Context, userID, sessionID string) (*domain.Session, error) {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if domain.HasCode(err, domain.ErrCodeNotFound) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, domain.NewPersistenceError(err)
	}
	if session.UserID != userID {
		return nil, domain.ErrSessionNotFound
	}
	return session, nil
}
