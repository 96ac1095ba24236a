package repository

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cloo-solutions/cryptoadvisor/internal/domain"
)

// MessageRepository stores the append-only history of sessions.
type MessageRepository struct {
	db  dbtx
	now func() time.Time
}

func NewMessageRepository(pool *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{db: pool, now: time.Now}
}

func (r *MessageRepository) Append(ctx context.Context, sessionID string, msg *domain.ChatMessage) error {
	return r.append(ctx, sessionID, msg)
}

// AppendTurn writes the user message and the answer in one transaction.
func (r *MessageRepository) AppendTurn(ctx context.Context, sessionID string, user, assistant *domain.ChatMessage) error {
	return r.append(ctx, sessionID, user, assistant)
}

func (r *MessageRepository) append(ctx context.Context, sessionID string, msgs ...*domain.ChatMessage) error {
	for _, m := range msgs {
		if err := domain.ValidateChatMessage(m); err != nil {
			return err
		}
	}

	return inTx(ctx, r.db, func(tx pgx.Tx) error {
		// Lock the session row so concurrent appends serialise on seq.
		var locked string
		err := tx.QueryRow(ctx, `SELECT id FROM sessions WHERE id = $1 FOR UPDATE`, sessionID).Scan(&locked)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return domain.ErrSessionNotFound
			}
			return err
		}

		var seq int
		var last *time.Time
		err = tx.QueryRow(ctx,
			`SELECT coalesce(max(seq), 0), max(created_at) FROM messages WHERE session_id = $1`,
			sessionID,
		).Scan(&seq, &last)
		if err != nil {
			return err
		}

		var prev time.Time
		if last != nil {
			prev = *last
		}
		for _, m := range msgs {
			ts := r.now().UTC().Truncate(time.Microsecond)
			if !ts.After(prev) {
				ts = prev.Add(time.Microsecond)
			}
			prev = ts
			seq++

			var id int64
			err := tx.QueryRow(ctx,
				`INSERT INTO messages (session_id, seq, role, content, created_at)
				 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
				sessionID, seq, string(m.Role), m.Content, ts,
			).Scan(&id)
			if err != nil {
				return err
			}
			m.ID = strconv.FormatInt(id, 10)
			m.SessionID = sessionID
			m.Seq = seq
			m.CreatedAt = ts
		}

		_, err = tx.Exec(ctx, `UPDATE sessions SET updated_at = $1 WHERE id = $2`, prev, sessionID)
		return err
	})
}

// Load returns the full history of a session in order.
func (r *MessageRepository) Load(ctx context.Context, sessionID string) ([]domain.ChatMessage, error) {
	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM sessions WHERE id = $1)`, sessionID).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, domain.ErrSessionNotFound
	}

	rows, err := r.db.Query(ctx,
		`SELECT id, session_id, seq, role, content, created_at
		 FROM messages WHERE session_id = $1 ORDER BY seq`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	msgs := []domain.ChatMessage{}
	for rows.Next() {
		var m domain.ChatMessage
		var id int64
		var role string
		if err := rows.Scan(&id, &m.SessionID, &m.Seq, &role, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.ID = strconv.FormatInt(id, 10)
		m.Role = domain.Role(role)
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}
