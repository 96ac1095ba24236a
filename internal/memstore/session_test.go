package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/cryptoadvisor/internal/domain"
	"github.com/cloo-solutions/cryptoadvisor/internal/pagination"
)

func newSession(t *testing.T, store *SessionStore, id, user string, created time.Time) {
	t.Helper()
	require.NoError(t, store.Create(context.Background(), &domain.Session{
		ID: id, UserID: user, Title: id, CreatedAt: created, UpdatedAt: created,
	}))
}

func TestSessionStore_AppendOrdersStrictly(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore()
	frozen := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return frozen }
	newSession(t, store, "s1", "u1", frozen)

	user := domain.NewChatMessage(domain.RoleUser, "What is BTC?")
	assistant := domain.NewChatMessage(domain.RoleAssistant, "Bitcoin.")
	require.NoError(t, store.AppendTurn(ctx, "s1", &user, &assistant))
	follow := domain.NewChatMessage(domain.RoleUser, "And ETH?")
	require.NoError(t, store.Append(ctx, "s1", &follow))

	msgs, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	for i := 1; i < len(msgs); i++ {
		assert.True(t, msgs[i].CreatedAt.After(msgs[i-1].CreatedAt))
		assert.Equal(t, i+1, msgs[i].Seq)
	}
	assert.Equal(t, domain.RoleAssistant, msgs[1].Role)
	assert.Equal(t, 1, user.Seq)
	assert.NotEmpty(t, assistant.ID)
}

func TestSessionStore_AppendFailureKeepsHistory(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore()
	newSession(t, store, "s1", "u1", time.Now())
	store.FailAppend = errors.New("disk full")

	user := domain.NewChatMessage(domain.RoleUser, "hi")
	assistant := domain.NewChatMessage(domain.RoleAssistant, "hello")
	require.Error(t, store.AppendTurn(ctx, "s1", &user, &assistant))

	msgs, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestSessionStore_UnknownSession(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore()

	_, err := store.Load(ctx, "nope")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	msg := domain.NewChatMessage(domain.RoleUser, "hi")
	assert.ErrorIs(t, store.Append(ctx, "nope", &msg), domain.ErrSessionNotFound)
	assert.ErrorIs(t, store.Delete(ctx, "nope"), domain.ErrSessionNotFound)
}

func TestSessionStore_ListByUserPaginates(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	newSession(t, store, "a", "u1", base)
	newSession(t, store, "b", "u1", base.Add(time.Hour))
	newSession(t, store, "c", "u1", base.Add(2*time.Hour))
	newSession(t, store, "x", "u2", base.Add(3*time.Hour))

	page, err := store.ListByUser(ctx, "u1", 2, nil)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "c", page[0].ID)
	assert.Equal(t, "b", page[1].ID)

	rest, err := store.ListByUser(ctx, "u1", 2, &pagination.Cursor{LastID: "b", Timestamp: page[1].CreatedAt})
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, "a", rest[0].ID)

	n, err := store.CountByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestSessionStore_DeleteDropsMessages(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore()
	newSession(t, store, "s1", "u1", time.Now())
	msg := domain.NewChatMessage(domain.RoleUser, "hi")
	require.NoError(t, store.Append(ctx, "s1", &msg))

	require.NoError(t, store.Delete(ctx, "s1"))
	_, err := store.GetByID(ctx, "s1")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}
