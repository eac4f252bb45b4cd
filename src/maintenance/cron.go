package maintenance

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	logger "github.com/sirupsen/logrus"
)

// Jobs runs the health probe and the retention sweep on their cron schedules, in UTC.
type Jobs struct {
	cron *cron.Cron
	log  *logger.Entry
}

func NewJobs(cfg Config, health *HealthMonitor, sweeper *RetentionSweeper) (*Jobs, error) {
	log := logger.WithField("component", "maintenance")
	c := cron.New(cron.WithLocation(time.UTC))

	if _, err := c.AddFunc(cfg.HealthSchedule, func() {
		if failed := health.Probe(context.Background()); failed > 0 {
			log.WithField("failed", failed).Warn("Health probe found failing sessions")
		}
	}); err != nil {
		return nil, fmt.Errorf("health schedule %q: %w", cfg.HealthSchedule, err)
	}

	if _, err := c.AddFunc(cfg.MaintenanceSchedule, func() {
		if _, err := sweeper.Sweep(context.Background()); err != nil {
			log.WithError(err).Error("Retention sweep failed")
		}
	}); err != nil {
		return nil, fmt.Errorf("maintenance schedule %q: %w", cfg.MaintenanceSchedule, err)
	}

	return &Jobs{cron: c, log: log}, nil
}

// Run starts the schedules and blocks until ctx ends, then waits for running jobs.
func (j *Jobs) Run(ctx context.Context) error {
	j.cron.Start()
	j.log.Info("maintenance jobs started")
	<-ctx.Done()
	<-j.cron.Stop().Done()
	j.log.Info("maintenance jobs stopped")
	return nil
}
