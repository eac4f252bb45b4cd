package executors

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	logger "github.com/sirupsen/logrus"

	"futuresbot/src/metrics"
)

// Loop runs Tick every Interval until ctx is cancelled. Ticks never overlap;
// a slow tick delays the next one.
type Loop struct {
	Name     string
	Interval time.Duration
	// Jitter adds a random delay in [0, Jitter) before each tick.
	Jitter time.Duration
	Tick   func(ctx context.Context) error
}

func (l *Loop) Run(ctx context.Context) error {
	log := logger.WithField("loop", l.Name)

	if l.Interval <= 0 {
		return fmt.Errorf("loop %s: interval must be positive, got %s", l.Name, l.Interval)
	}

	ticker := time.NewTicker(l.Interval) // Set up a ticker that fires periodically
	defer ticker.Stop()

	log.WithField("interval", l.Interval).Info("loop started")

	for {
		select {
		case <-ctx.Done():
			log.Info("loop stopped")
			return nil

		case <-ticker.C:
			if l.Jitter > 0 {
				select {
				case <-time.After(time.Duration(rand.Int63n(int64(l.Jitter)))):
				case <-ctx.Done():
					log.Info("loop stopped")
					return nil
				}
			}

			started := time.Now()
			metrics.CycleTicks.WithLabelValues(l.Name).Inc()
			err := l.Tick(ctx)
			metrics.CycleDuration.WithLabelValues(l.Name).Observe(time.Since(started).Seconds())

			if err != nil {
				log.WithError(err).Error("loop tick failed")
				continue
			}
			log.WithField("took", time.Since(started)).Debug("loop tick")
		}
	}
}
