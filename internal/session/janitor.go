package session

import (
	"context"
	"log/slog"
	"time"
)

// IdlePruner is implemented by repositories without native expiry.
type IdlePruner interface {
	PruneIdle(ctx context.Context, before time.Time) (int, error)
}

// Counter is implemented by repositories that can report their size.
type Counter interface {
	Count(ctx context.Context) (int, error)
}

// StartJanitor drops sessions idle for longer than ttl. Repositories that
// expire keys on their own are left alone.
func StartJanitor(ctx context.Context, repo Repository, ttl, interval time.Duration, onPrune func(int)) {
	pruner, ok := repo.(IdlePruner)
	if !ok || ttl <= 0 {
		return
	}
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := pruner.PruneIdle(ctx, time.Now().UTC().Add(-ttl))
				if err != nil {
					slog.Warn("session prune failed", "error", err)
					continue
				}
				if n > 0 && onPrune != nil {
					onPrune(n)
				}
			}
		}
	}()
}
