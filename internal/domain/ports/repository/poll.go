package repository

import (
	"context"
	"time"

	"medication-reminder-bot/internal/domain/model"
)

// -----------------------------
// Poll registry
// -----------------------------

type PollRepository interface {
	// RecordPoll inserts a poll. Returns domain.ErrDuplicateKey if the poll id exists.
	RecordPoll(ctx context.Context, tx Tx, p *model.PollRecord) error
	FindByID(ctx context.Context, tx Tx, pollID string) (*model.PollRecord, error)
	MarkClosed(ctx context.Context, tx Tx, pollID string, at time.Time) error
}
