package service

import (
	"context"

	"github.com/cloo-solutions/cryptoadvisor/internal/domain"
	"github.com/cloo-solutions/cryptoadvisor/internal/pagination"
)

// SegmentStore is the vector store adapter. Query returns at most k results
// by descending cosine similarity, ties broken by ascending segment id, and
// never returns segments outside filter.
type SegmentStore interface {
	UpsertBatch(ctx context.Context, segments []domain.Segment, vectors [][]float32, model string) error
	Query(ctx context.Context, vector []float32, k int, filter domain.SegmentFilter) ([]domain.RetrievalResult, error)
	PruneSource(ctx context.Context, sourceID string, keep int) (int64, error)
	Stats(ctx context.Context) (*domain.KnowledgeStats, error)
}

// SourceStore records which documents were ingested and from which content.
type SourceStore interface {
	Get(ctx context.Context, id string) (*domain.Source, error)
	Upsert(ctx context.Context, src *domain.Source) error
	List(ctx context.Context) ([]*domain.Source, error)
}

type SessionRepository interface {
	Create(ctx context.Context, session *domain.Session) error
	GetByID(ctx context.Context, id string) (*domain.Session, error)
	ListByUser(ctx context.Context, userID string, limit int, cursor *pagination.Cursor) ([]*domain.Session, error)
	CountByUser(ctx context.Context, userID string) (int, error)
	Delete(ctx context.Context, id string) error
}

// MessageRepository is the append-only chat history of sessions. Append and
// AppendTurn assign Seq, ID and CreatedAt on the passed messages.
type MessageRepository interface {
	Append(ctx context.Context, sessionID string, msg *domain.ChatMessage) error
	AppendTurn(ctx context.Context, sessionID string, user, assistant *domain.ChatMessage) error
	Load(ctx context.Context, sessionID string) ([]domain.ChatMessage, error)
}

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByName(ctx context.Context, name string) (*domain.User, error)
	List(ctx context.Context) ([]*domain.User, error)
	Delete(ctx context.Context, id string) error
}

type APIKeyRepository interface {
	Create(ctx context.Context, key *domain.APIKey) error
	GetByID(ctx context.Context, id string) (*domain.APIKey, error)
	GetByHash(ctx context.Context, hash string) (*domain.APIKey, error)
	GetByUserID(ctx context.Context, userID string) ([]*domain.APIKey, error)
	Revoke(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}
