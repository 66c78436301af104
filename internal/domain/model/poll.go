package model

import (
	"strings"
	"time"

	"medication-reminder-bot/internal/domain"
)

// PollStatus is derived from ClosedAt; there is no way back to dispatched.
type PollStatus string

const (
	PollStatusDispatched PollStatus = "dispatched"
	PollStatusClosed     PollStatus = "closed"
)

// PollRecord registers a dispatched poll so it can be closed later.
type PollRecord struct {
	PollID    string
	ChatID    int64
	MessageID int
	CreatedAt time.Time
	ClosedAt  *time.Time
}

func NewPollRecord(pollID string, chatID int64, messageID int, createdAt time.Time) (*PollRecord, error) {
	pollID = strings.TrimSpace(pollID)
	if pollID == "" {
		return nil, domain.ErrInvalidArgument
	}
	if chatID == 0 || messageID <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	return &PollRecord{
		PollID:    pollID,
		ChatID:    chatID,
		MessageID: messageID,
		CreatedAt: createdAt,
	}, nil
}

func (p *PollRecord) Status() PollStatus {
	if p.ClosedAt != nil {
		return PollStatusClosed
	}
	return PollStatusDispatched
}

func (p *PollRecord) IsClosed() bool { return p.ClosedAt != nil }

// Close marks the record closed. Closing twice keeps the first timestamp.
func (p *PollRecord) Close(at time.Time) {
	if p.ClosedAt != nil {
		return
	}
	t := at
	p.ClosedAt = &t
}
