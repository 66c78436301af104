package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"medication-reminder-bot/internal/domain"
	"medication-reminder-bot/internal/domain/model"
	"medication-reminder-bot/internal/domain/ports/repository"
)

var _ repository.PollRepository = (*PostgresPollRepo)(nil)

type PostgresPollRepo struct {
	pool *pgxpool.Pool
}

func NewPollRepo(pool *pgxpool.Pool) *PostgresPollRepo {
	return &PostgresPollRepo{pool: pool}
}

func (r *PostgresPollRepo) RecordPoll(ctx context.Context, tx repository.Tx, p *model.PollRecord) error {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO polls (poll_id, chat_id, message_id, created_at) VALUES ($1, $2, $3, $4)
ON CONFLICT (poll_id) DO NOTHING;`
	tag, err := ex.Exec(ctx, q, p.PollID, p.ChatID, p.MessageID, p.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.ErrDuplicateKey
		}
		return wrapErr("record poll", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrDuplicateKey
	}
	return nil
}

func (r *PostgresPollRepo) FindByID(ctx context.Context, tx repository.Tx, pollID string) (*model.PollRecord, error) {
	const q = `SELECT poll_id, chat_id, message_id, created_at, closed_at FROM polls WHERE poll_id=$1;`
	var p model.PollRecord
	if err := pickRow(ctx, r.pool, tx, q, pollID).Scan(&p.PollID, &p.ChatID, &p.MessageID, &p.CreatedAt, &p.ClosedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, wrapErr("find poll", err)
	}
	return &p, nil
}

func (r *PostgresPollRepo) MarkClosed(ctx context.Context, tx repository.Tx, pollID string, at time.Time) error {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	tag, err := ex.Exec(ctx, `UPDATE polls SET closed_at = COALESCE(closed_at, $2) WHERE poll_id=$1;`, pollID, at)
	if err != nil {
		return wrapErr("mark closed", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
