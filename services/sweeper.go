package services

import (
	"context"
	"time"

	"listing-service/repository"

	"go.uber.org/zap"
)

// Sweeper retires listings past their expiry on a fixed period. Failures are
// logged and deferred to the next cycle; the sweep never retries within a
// cycle and never surfaces errors to callers.
type Sweeper struct {
	listings repository.ListingRepository
	cache    *listingCache
	period   time.Duration
	logger   *zap.Logger
	done     chan struct{}
}

// NewSweeper creates a Sweeper. rdb may be nil.
func NewSweeper(listings repository.ListingRepository, rdb RedisCmdable, period time.Duration, logger *zap.Logger) *Sweeper {
	return &Sweeper{
		listings: listings,
		cache:    newListingCache(rdb, logger),
		period:   period,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// Start runs the sweep loop until ctx is cancelled. An immediate first sweep
// catches listings that expired while the service was down.
func (s *Sweeper) Start(ctx context.Context) {
	go func() {
		defer close(s.done)

		s.logger.Info("expiration sweeper started", zap.Duration("period", s.period))
		s.sweep(ctx)

		ticker := time.NewTicker(s.period)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				s.logger.Info("expiration sweeper stopping")
				return
			case <-ticker.C:
				s.sweep(ctx)
			}
		}
	}()
}

// Wait blocks until the sweep loop has exited.
func (s *Sweeper) Wait() {
	<-s.done
}

func (s *Sweeper) sweep(ctx context.Context) {
	expired, err := s.listings.ExpireStale(ctx, time.Now().UTC())
	if err != nil {
		s.logger.Error("expiration sweep failed, will retry next cycle", zap.Error(err))
		return
	}

	if expired > 0 {
		s.cache.Invalidate(ctx)
		s.logger.Info("expired stale listings", zap.Int64("count", expired))
	}
}
