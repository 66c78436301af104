package adapter

import "context"

// PollRef identifies a poll created by the gateway.
type PollRef struct {
	PollID    string
	MessageID int
}

// NotificationGateway is everything the core needs from the chat platform.
type NotificationGateway interface {
	DispatchPoll(ctx context.Context, chatID int64, question string, options []string, exclusive bool) (PollRef, error)
	// ClosePoll stops a poll. Closing an already closed poll is not an error.
	ClosePoll(ctx context.Context, chatID int64, messageID int) error
	SendMessage(ctx context.Context, chatID int64, text string) error
}
