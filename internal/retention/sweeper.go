// Package retention deletes notifications older than the configured
// maximum age on a fixed interval.
package retention

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/gitping/relay/internal/metrics"
)

// Store is the slice of the notification repository the sweeper needs.
type Store interface {
	DeleteNotificationsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Config holds sweeper settings.
type Config struct {
	MaxAge   time.Duration // notifications older than this are deleted
	Interval time.Duration // time between sweeps
}

// Sweeper periodically removes expired notifications.
type Sweeper struct {
	store  Store
	config Config
	logger *zap.Logger
}

// New creates a Sweeper.
func New(store Store, config Config, logger *zap.Logger) *Sweeper {
	return &Sweeper{
		store:  store,
		config: config,
		logger: logger,
	}
}

// Start runs the sweep loop until ctx is cancelled. One sweep runs
// immediately so a restart cannot defer overdue cleanup by a full interval.
func (s *Sweeper) Start(ctx context.Context) {
	s.sweep(ctx)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("retention sweeper stopping")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	cutoff := time.Now().Add(-s.config.MaxAge)

	deleted, err := s.store.DeleteNotificationsBefore(ctx, cutoff)
	if err != nil {
		s.logger.Error("retention sweep failed", zap.Error(err))
		return
	}

	metrics.RecordNotificationsSwept(deleted)
	if deleted > 0 {
		s.logger.Info("retention sweep completed",
			zap.Int64("deleted", deleted),
			zap.Time("cutoff", cutoff),
		)
	}
}
