package sched

import (
	"context"

	"medication-reminder-bot/internal/infra/metrics"
)

// PoolStatsFunc reports open, idle and in-use store connections.
type PoolStatsFunc func() (open, idle, inUse int32)

// PoolStatsJob publishes the store connection gauges for driver on every run.
func PoolStatsJob(driver string, stats PoolStatsFunc) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		open, idle, inUse := stats()
		metrics.SetStoreConnections(driver, open, idle, inUse)
		return nil
	}
}
