package consumer

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/outofforest/logger"
	"github.com/outofforest/parallel"
	"github.com/outofforest/replica/types"
)

// AnnouncementWatcher reports the latest announced version.
type AnnouncementWatcher interface {
	Latest(ctx context.Context) (types.Version, error)
}

// DefaultRefreshInterval is the default interval between refreshes.
const DefaultRefreshInterval = 20 * time.Second

// NewRefresher creates refresher periodically moving coordinator to the announced version.
func NewRefresher(coordinator *Coordinator, watcher AnnouncementWatcher, interval time.Duration) *Refresher {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	return &Refresher{
		coordinator: coordinator,
		watcher:     watcher,
		interval:    interval,
		triggerCh:   make(chan struct{}, 1),
	}
}

// Refresher periodically moves coordinator to the announced version.
type Refresher struct {
	coordinator *Coordinator
	watcher     AnnouncementWatcher
	interval    time.Duration
	triggerCh   chan struct{}
}

// Trigger requests refresh without waiting for the next tick.
func (r *Refresher) Trigger() {
	select {
	case r.triggerCh <- struct{}{}:
	default:
	}
}

// Run runs the refresh loop.
func (r *Refresher) Run(ctx context.Context) error {
	return parallel.Run(ctx, func(ctx context.Context, spawn parallel.SpawnFn) error {
		spawn("refresher", parallel.Fail, func(ctx context.Context) error {
			ticker := time.NewTicker(r.interval)
			defer ticker.Stop()

			for {
				// Errors are logged and refresh is retried on the next tick.
				if err := r.Refresh(ctx); err != nil && ctx.Err() == nil {
					logger.Get(ctx).Error("Refresh failed", zap.Error(err))
				}

				select {
				case <-ctx.Done():
					return errors.WithStack(ctx.Err())
				case <-ticker.C:
				case <-r.triggerCh:
				}
			}
		})

		return nil
	})
}

// Refresh moves coordinator to the latest announced version.
func (r *Refresher) Refresh(ctx context.Context) error {
	latest, err := r.watcher.Latest(ctx)
	if err != nil {
		return err
	}
	if latest == types.VersionNull {
		return nil
	}

	reached, err := r.coordinator.Update(ctx, latest)
	if err != nil {
		return err
	}
	if !reached {
		logger.Get(ctx).Warn("Announced version not reached",
			zap.Int64("announced", int64(latest)),
			zap.Int64("current", int64(r.coordinator.CurrentVersion())))
	}
	return nil
}
