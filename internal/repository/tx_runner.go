package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cloo-solutions/cryptoadvisor/internal/service"
)

// TxRunner provides transactional repositories using a pgx pool.
type TxRunner struct {
	pool *pgxpool.Pool
}

func NewTxRunner(pool *pgxpool.Pool) *TxRunner {
	return &TxRunner{pool: pool}
}

func (r *TxRunner) WithTx(ctx context.Context, fn func(repos service.TxRepositories) error) error {
	return inTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(&txRepos{tx: tx})
	})
}

type txRepos struct {
	tx pgx.Tx
}

func (r *txRepos) Segments() service.SegmentStore {
	return NewSegmentRepositoryWithTx(r.tx)
}

func (r *txRepos) Sources() service.SourceStore {
	return NewSourceRepositoryWithTx(r.tx)
}
