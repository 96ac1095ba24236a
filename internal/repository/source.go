package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cloo-solutions/cryptoadvisor/internal/domain"
)

type SourceRepository struct {
	db dbtx
}

func NewSourceRepository(pool *pgxpool.Pool) *SourceRepository {
	return &SourceRepository{db: pool}
}

func NewSourceRepositoryWithTx(tx pgx.Tx) *SourceRepository {
	return &SourceRepository{db: tx}
}

func (r *SourceRepository) Get(ctx context.Context, id string) (*domain.Source, error) {
	var src domain.Source
	err := r.db.QueryRow(ctx,
		`SELECT id, content_hash, segment_count, ingested_at FROM sources WHERE id = $1`,
		id,
	).Scan(&src.ID, &src.ContentHash, &src.SegmentCount, &src.IngestedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrSourceNotFound
		}
		return nil, err
	}
	return &src, nil
}

func (r *SourceRepository) Upsert(ctx context.Context, src *domain.Source) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO sources (id, content_hash, segment_count, ingested_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO UPDATE SET
		     content_hash = EXCLUDED.content_hash,
		     segment_count = EXCLUDED.segment_count,
		     ingested_at = EXCLUDED.ingested_at`,
		src.ID, src.ContentHash, src.SegmentCount, src.IngestedAt,
	)
	return err
}

func (r *SourceRepository) List(ctx context.Context) ([]*domain.Source, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, content_hash, segment_count, ingested_at FROM sources ORDER BY id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sources := []*domain.Source{}
	for rows.Next() {
		var src domain.Source
		if err := rows.Scan(&src.ID, &src.ContentHash, &src.SegmentCount, &src.IngestedAt); err != nil {
			return nil, err
		}
		sources = append(sources, &src)
	}
	return sources, rows.Err()
}
