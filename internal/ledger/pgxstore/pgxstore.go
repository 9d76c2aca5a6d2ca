// Package pgxstore persists the sync ledger in Postgres, one row per synced
// post id. Suited for deployments that already run a database; the file
// store is the default otherwise.
package pgxstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/orgball2608/tweet-crosspost-bot/internal/ledger"
	pkgerrors "github.com/orgball2608/tweet-crosspost-bot/pkg/errors"
	"github.com/orgball2608/tweet-crosspost-bot/pkg/logger"
)

var sqBuilder = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

type PgxStore struct {
	pg     *pgxpool.Pool
	logger logger.Logger

	mu     sync.RWMutex
	synced map[string]struct{}
}

func New(pg *pgxpool.Pool, log logger.Logger) *PgxStore {
	return &PgxStore{
		pg:     pg,
		logger: log.WithComponent("LedgerPgxStore"),
		synced: make(map[string]struct{}),
	}
}

var _ ledger.Repository = (*PgxStore)(nil)

func (p *PgxStore) Load(ctx context.Context) error {
	query, args, err := sqBuilder.
		Select("post_id").
		From("synced_posts").
		ToSql()
	if err != nil {
		return pkgerrors.WrapWithCode(err, pkgerrors.CodeLedgerIO, "bad ledger query")
	}

	rows, err := p.pg.Query(ctx, query, args...)
	if err != nil {
		return pkgerrors.WrapWithCode(
			fmt.Errorf("%w: %v", ledger.ErrPersist, err),
			pkgerrors.CodeLedgerIO,
			"could not load ledger",
		)
	}
	defer rows.Close()

	p.mu.Lock()
	defer p.mu.Unlock()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return pkgerrors.WrapWithCode(
				fmt.Errorf("%w: %v", ledger.ErrPersist, err),
				pkgerrors.CodeLedgerIO,
				"could not scan ledger row",
			)
		}
		p.synced[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return pkgerrors.WrapWithCode(
			fmt.Errorf("%w: %v", ledger.ErrPersist, err),
			pkgerrors.CodeLedgerIO,
			"could not read ledger rows",
		)
	}

	p.logger.Info("Loaded ledger", "synced_count", len(p.synced))
	return nil
}

func (p *PgxStore) Contains(id string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.synced[id]
	return ok
}

func (p *PgxStore) MarkSynced(ctx context.Context, id string) error {
	p.mu.RLock()
	_, ok := p.synced[id]
	p.mu.RUnlock()
	if ok {
		return nil
	}

	query, args, err := sqBuilder.
		Insert("synced_posts").
		Columns("post_id", "created_at").
		Values(id, time.Now()).
		Suffix("ON CONFLICT (post_id) DO NOTHING").
		ToSql()
	if err != nil {
		return pkgerrors.WrapWithCode(err, pkgerrors.CodeLedgerIO, "bad ledger query")
	}

	if _, err := p.pg.Exec(ctx, query, args...); err != nil {
		return pkgerrors.WrapWithCode(
			fmt.Errorf("%w: insert %s: %v", ledger.ErrPersist, id, err),
			pkgerrors.CodeLedgerIO,
			"could not persist synced id",
		)
	}

	p.mu.Lock()
	p.synced[id] = struct{}{}
	p.mu.Unlock()
	return nil
}
