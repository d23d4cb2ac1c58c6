// Package jobs runs scheduled background maintenance.
package jobs

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"sticker-album-backend/internal/config"
)

// PointsResyncer recomputes user points from approved unlocks.
type PointsResyncer interface {
	ResyncPoints(ctx context.Context) (int, error)
}

// Scheduler owns the cron jobs of the service.
type Scheduler struct {
	cron     *cron.Cron
	resyncer PointsResyncer
}

// NewScheduler creates the scheduler with all jobs registered.
func NewScheduler(cfg config.JobsConfig, resyncer PointsResyncer) (*Scheduler, error) {
	c := cron.New()
	s := &Scheduler{cron: c, resyncer: resyncer}

	_, err := c.AddFunc(cfg.PointsResync, func() {
		ctx := context.Background()
		corrected, err := s.resyncer.ResyncPoints(ctx)
		if err != nil {
			log.Error().Err(err).Msg("Points resync failed")
			return
		}
		if corrected > 0 {
			log.Info().Int("corrected", corrected).Msg("Points resync corrected drift")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid points resync schedule %q: %w", cfg.PointsResync, err)
	}
	return s, nil
}

// Start launches the cron loop.
func (s *Scheduler) Start() {
	s.cron.Start()
	log.Info().Msg("Job scheduler started")
}

// Stop halts the scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Info().Msg("Job scheduler stopped")
}
