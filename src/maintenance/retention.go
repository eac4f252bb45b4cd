package maintenance

import (
	"context"
	"errors"
	"fmt"
	"time"

	logger "github.com/sirupsen/logrus"

	"futuresbot/src/metrics"
)

// AgedStore is a per-user collection whose old rows can be pruned.
type AgedStore interface {
	DistinctUserIDs(ctx context.Context) ([]string, error)
	DeleteOlderThan(ctx context.Context, userID string, cutoff time.Time) (int64, error)
}

// SweepResult counts removed rows per table.
type SweepResult struct {
	TradeHistory int64
	ActivityLogs int64
}

type RetentionSweeper struct {
	trades         AgedStore
	activity       AgedStore
	tradeMaxAge    time.Duration
	activityMaxAge time.Duration
	now            func() time.Time
	log            *logger.Entry
}

func NewRetentionSweeper(trades, activity AgedStore, cfg Config) *RetentionSweeper {
	return &RetentionSweeper{
		trades:         trades,
		activity:       activity,
		tradeMaxAge:    cfg.TradeHistoryRetention,
		activityMaxAge: cfg.ActivityLogRetention,
		now:            time.Now,
		log:            logger.WithField("component", "retention_sweeper"),
	}
}

// Sweep deletes trade history and activity logs past their retention. A failure for
// one user does not stop the others; all failures are returned joined.
func (r *RetentionSweeper) Sweep(ctx context.Context) (SweepResult, error) {
	var res SweepResult
	now := r.now().UTC()
	var errs []error

	n, err := r.sweep(ctx, "trade_histories", r.trades, r.tradeMaxAge, now)
	res.TradeHistory = n
	errs = append(errs, err)

	n, err = r.sweep(ctx, "activity_logs", r.activity, r.activityMaxAge, now)
	res.ActivityLogs = n
	errs = append(errs, err)

	r.log.WithFields(logger.Fields{
		"trade_history": res.TradeHistory,
		"activity_logs": res.ActivityLogs,
	}).Info("Retention sweep finished")

	return res, errors.Join(errs...)
}

func (r *RetentionSweeper) sweep(ctx context.Context, table string, store AgedStore, maxAge time.Duration, now time.Time) (int64, error) {
	if store == nil || maxAge <= 0 {
		return 0, nil
	}
	users, err := store.DistinctUserIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("%s: list users: %w", table, err)
	}

	cutoff := now.Add(-maxAge)
	var total int64
	var errs []error
	for _, userID := range users {
		n, err := store.DeleteOlderThan(ctx, userID, cutoff)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: user %s: %w", table, userID, err))
			continue
		}
		total += n
	}
	metrics.RetentionDeleted.WithLabelValues(table).Add(float64(total))
	return total, errors.Join(errs...)
}
