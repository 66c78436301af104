package adapter

import (
	"context"
	"time"
)

// Deferrer runs fn once after delay without blocking the caller. It returns
// the id of the queued entry. Failures of fn are logged by the implementation.
type Deferrer interface {
	After(kind string, delay time.Duration, fn func(ctx context.Context) error) string
}
