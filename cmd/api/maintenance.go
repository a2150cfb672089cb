// AngelaMos | 2026
// maintenance.go

package main

import (
	"context"
	"log/slog"
	"time"
)

const maintenanceLockKey = "maintenance:reconcile"

type tryLocker interface {
	TryLock(ctx context.Context, key string) (unlock func(), ok bool, err error)
}

type maintenanceTask struct {
	name string
	run  func(ctx context.Context) (int, error)
}

// maintenance runs periodic repair work on at most one replica per tick.
type maintenance struct {
	locker   tryLocker
	interval time.Duration
	logger   *slog.Logger
	tasks    []maintenanceTask
}

func (m *maintenance) run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.tick(ctx)
		}
	}
}

func (m *maintenance) tick(ctx context.Context) {
	unlock, ok, err := m.locker.TryLock(ctx, maintenanceLockKey)
	if err != nil {
		m.logger.WarnContext(ctx, "maintenance lock unavailable", "error", err)
		return
	}
	if !ok {
		return
	}
	defer unlock()

	for _, t := range m.tasks {
		start := time.Now()
		n, err := t.run(ctx)
		if err != nil {
			m.logger.ErrorContext(ctx, "maintenance task failed",
				"task", t.name,
				"affected", n,
				"error", err,
			)
			continue
		}
		if n > 0 {
			m.logger.InfoContext(ctx, "maintenance task finished",
				"task", t.name,
				"affected", n,
				"duration", time.Since(start),
			)
		}
	}
}
