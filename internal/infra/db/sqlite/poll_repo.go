package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"medication-reminder-bot/internal/domain"
	"medication-reminder-bot/internal/domain/model"
	"medication-reminder-bot/internal/domain/ports/repository"
)

var _ repository.PollRepository = (*PollRepo)(nil)

type PollRepo struct {
	store *Store
}

func NewPollRepo(store *Store) *PollRepo {
	return &PollRepo{store: store}
}

func (r *PollRepo) RecordPoll(ctx context.Context, tx repository.Tx, p *model.PollRecord) error {
	ex, err := r.store.getExecutor(tx)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO polls (poll_id, chat_id, message_id, created_at) VALUES (?, ?, ?, ?)
ON CONFLICT (poll_id) DO NOTHING`
	// chat_id stays TEXT to match files written by earlier versions
	res, err := ex.ExecContext(ctx, q, p.PollID, strconv.FormatInt(p.ChatID, 10), p.MessageID, formatTime(p.CreatedAt))
	if err != nil {
		return fmt.Errorf("%w: record poll: %w", domain.ErrPersistence, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: record poll: %w", domain.ErrPersistence, err)
	}
	if n == 0 {
		return domain.ErrDuplicateKey
	}
	return nil
}

func (r *PollRepo) FindByID(ctx context.Context, tx repository.Tx, pollID string) (*model.PollRecord, error) {
	ex, err := r.store.getExecutor(tx)
	if err != nil {
		return nil, err
	}
	var (
		p               model.PollRecord
		chatID, created string
		closed          sql.NullString
	)
	err = ex.QueryRowContext(ctx, `SELECT poll_id, chat_id, message_id, created_at, closed_at FROM polls WHERE poll_id = ?`, pollID).
		Scan(&p.PollID, &chatID, &p.MessageID, &created, &closed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: find poll: %w", domain.ErrPersistence, err)
	}
	if p.ChatID, err = strconv.ParseInt(chatID, 10, 64); err != nil {
		return nil, fmt.Errorf("%w: chat_id %q: %w", domain.ErrPersistence, chatID, err)
	}
	if p.CreatedAt, err = parseTime(created); err != nil {
		return nil, fmt.Errorf("%w: created_at %q: %w", domain.ErrPersistence, created, err)
	}
	if closed.Valid && closed.String != "" {
		at, err := parseTime(closed.String)
		if err != nil {
			return nil, fmt.Errorf("%w: closed_at %q: %w", domain.ErrPersistence, closed.String, err)
		}
		p.ClosedAt = &at
	}
	return &p, nil
}

// MarkClosed stamps closed_at once; later calls keep the first value.
func (r *PollRepo) MarkClosed(ctx context.Context, tx repository.Tx, pollID string, at time.Time) error {
	ex, err := r.store.getExecutor(tx)
	if err != nil {
		return err
	}
	res, err := ex.ExecContext(ctx, `UPDATE polls SET closed_at = COALESCE(closed_at, ?) WHERE poll_id = ?`, formatTime(at), pollID)
	if err != nil {
		return fmt.Errorf("%w: mark closed: %w", domain.ErrPersistence, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: mark closed: %w", domain.ErrPersistence, err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}
