package sweep

import (
	"context"

	"github.com/sirupsen/logrus"

	"futuresbot/src/database"
	"futuresbot/src/maintenance"
	"futuresbot/src/repository"
)

// Sweep runs the retention sweep once and exits.
type Sweep struct {
	Log *logrus.Entry
}

func (s *Sweep) Start() error {
	if err := database.InitMainDB(); err != nil {
		s.Log.WithError(err).Error("Failed to connect to main database")
		return err
	}

	sweeper := maintenance.NewRetentionSweeper(
		repository.NewTradeHistoryRepository(),
		repository.NewActivityLogRepository(),
		maintenance.GetConfig(),
	)

	res, err := sweeper.Sweep(context.Background())
	s.Log.WithFields(logrus.Fields{
		"trade_history": res.TradeHistory,
		"activity_logs": res.ActivityLogs,
	}).Info("Sweep done")
	return err
}
