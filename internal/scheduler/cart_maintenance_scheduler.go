package scheduler

import (
	"context"
	"time"

	"github.com/ikkim/storefront-backend/pkg/logger"
	"github.com/robfig/cron/v3"
)

const (
	purgeRemovalsSpec    = "@every 1m"
	releaseStaleCartSpec = "@every 5m"
)

// CartMaintainer is the part of the cart service the sweeps call.
type CartMaintainer interface {
	PurgeExpiredRemovals(ctx context.Context) (int, error)
	ReleaseStaleReservations(ctx context.Context, before time.Time) (int, error)
}

// CartMaintenanceScheduler sweeps expired pending removals and, when a
// reservation TTL is set, returns stock held by abandoned carts.
type CartMaintenanceScheduler struct {
	cron           *cron.Cron
	carts          CartMaintainer
	reservationTTL time.Duration
	now            func() time.Time
}

func NewCartMaintenanceScheduler(carts CartMaintainer, reservationTTL time.Duration) *CartMaintenanceScheduler {
	return &CartMaintenanceScheduler{
		cron:           cron.New(),
		carts:          carts,
		reservationTTL: reservationTTL,
		now:            time.Now,
	}
}

func (s *CartMaintenanceScheduler) Start() error {
	if _, err := s.cron.AddFunc(purgeRemovalsSpec, func() {
		s.PurgeRemovals(context.Background())
	}); err != nil {
		logger.Error("Failed to add cron job for pending removal purge", err)
		return err
	}

	if s.reservationTTL > 0 {
		if _, err := s.cron.AddFunc(releaseStaleCartSpec, func() {
			s.ReleaseStale(context.Background())
		}); err != nil {
			logger.Error("Failed to add cron job for stale reservation release", err)
			return err
		}
	}

	s.cron.Start()
	logger.Info("Cart maintenance scheduler started", map[string]interface{}{
		"reservation_ttl": s.reservationTTL.String(),
	})
	return nil
}

// Stop waits for running jobs to finish.
func (s *CartMaintenanceScheduler) Stop() {
	logger.Info("Stopping cart maintenance scheduler...")
	<-s.cron.Stop().Done()
	logger.Info("Cart maintenance scheduler stopped")
}

func (s *CartMaintenanceScheduler) PurgeRemovals(ctx context.Context) int {
	purged, err := s.carts.PurgeExpiredRemovals(ctx)
	if err != nil {
		logger.Error("Failed to purge expired pending removals", err)
		return 0
	}
	if purged > 0 {
		logger.Info("Purged expired pending removals", map[string]interface{}{
			"count": purged,
		})
	}
	return purged
}

// ReleaseStale releases lines untouched for longer than the reservation TTL.
// It does nothing when no TTL is configured.
func (s *CartMaintenanceScheduler) ReleaseStale(ctx context.Context) int {
	if s.reservationTTL <= 0 {
		return 0
	}

	before := s.now().Add(-s.reservationTTL)
	released, err := s.carts.ReleaseStaleReservations(ctx, before)
	if err != nil {
		logger.Error("Failed to release stale reservations", err, map[string]interface{}{
			"before": before,
		})
		return released
	}
	if released > 0 {
		logger.Info("Released stale cart reservations", map[string]interface{}{
			"count":  released,
			"before": before,
		})
	}
	return released
}
