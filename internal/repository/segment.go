package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/cloo-solutions/cryptoadvisor/internal/domain"
)

type SegmentRepository struct {
	db dbtx
}

func NewSegmentRepository(pool *pgxpool.Pool) *SegmentRepository {
	return &SegmentRepository{db: pool}
}

func NewSegmentRepositoryWithTx(tx pgx.Tx) *SegmentRepository {
	return &SegmentRepository{db: tx}
}

const upsertSegmentSQL = `
INSERT INTO segments (id, source_id, ordinal, content, overlap_prev, embedding, model, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, now())
ON CONFLICT (id) DO UPDATE SET
    content = EXCLUDED.content,
    overlap_prev = EXCLUDED.overlap_prev,
    embedding = EXCLUDED.embedding,
    model = EXCLUDED.model,
    created_at = EXCLUDED.created_at`

func (r *SegmentRepository) Upsert(ctx context.Context, seg *domain.Segment, vector []float32, model string) error {
	if err := domain.ValidateSegment(seg); err != nil {
		return err
	}
	_, err := r.db.Exec(ctx, upsertSegmentSQL,
		seg.ID, seg.SourceID, seg.Ordinal, seg.Content, seg.OverlapPrev,
		pgvector.NewVector(vector), model,
	)
	return err
}

// UpsertBatch writes all segments in one round trip.
func (r *SegmentRepository) UpsertBatch(ctx context.Context, segments []domain.Segment, vectors [][]float32, model string) error {
	if len(segments) != len(vectors) {
		return fmt.Errorf("got %d segments and %d vectors", len(segments), len(vectors))
	}
	if len(segments) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for i := range segments {
		seg := &segments[i]
		if err := domain.ValidateSegment(seg); err != nil {
			return err
		}
		batch.Queue(upsertSegmentSQL,
			seg.ID, seg.SourceID, seg.Ordinal, seg.Content, seg.OverlapPrev,
			pgvector.NewVector(vectors[i]), model,
		)
	}

	return inTx(ctx, r.db, func(tx pgx.Tx) error {
		return tx.SendBatch(ctx, batch).Close()
	})
}

// Query ranks segments by cosine similarity to vector.
func (r *SegmentRepository) Query(ctx context.Context, vector []float32, k int, filter domain.SegmentFilter) ([]domain.RetrievalResult, error) {
	results := []domain.RetrievalResult{}
	if k <= 0 {
		return results, nil
	}

	vec := pgvector.NewVector(vector)
	var rows pgx.Rows
	var err error
	if len(filter.SourceIDs) > 0 {
		rows, err = r.db.Query(ctx,
			`SELECT id, source_id, ordinal, content, overlap_prev, created_at,
			        1 - (embedding <=> $1) AS score
			 FROM segments
			 WHERE source_id = ANY($3)
			 ORDER BY embedding <=> $1, id
			 LIMIT $2`,
			vec, k, filter.SourceIDs,
		)
	} else {
		rows, err = r.db.Query(ctx,
			`SELECT id, source_id, ordinal, content, overlap_prev, created_at,
			        1 - (embedding <=> $1) AS score
			 FROM segments
			 ORDER BY embedding <=> $1, id
			 LIMIT $2`,
			vec, k,
		)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var res domain.RetrievalResult
		var score float64
		s := &res.Segment
		if err := rows.Scan(&s.ID, &s.SourceID, &s.Ordinal, &s.Content, &s.OverlapPrev, &s.CreatedAt, &score); err != nil {
			return nil, err
		}
		res.Score = float32(score)
		results = append(results, res)
	}
	return results, rows.Err()
}

// PruneSource removes the segments of sourceID with ordinal >= keep.
func (r *SegmentRepository) PruneSource(ctx context.Context, sourceID string, keep int) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM segments WHERE source_id = $1 AND ordinal >= $2`,
		sourceID, keep,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *SegmentRepository) Stats(ctx context.Context) (*domain.KnowledgeStats, error) {
	var stats domain.KnowledgeStats
	err := r.db.QueryRow(ctx,
		`SELECT (SELECT count(*) FROM sources), (SELECT count(*) FROM segments)`,
	).Scan(&stats.Sources, &stats.Segments)
	if err != nil {
		return nil, err
	}
	return &stats, nil
}
