package engine

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"futuresbot/src/activitylog"
	"futuresbot/src/connectors"
	"futuresbot/src/controller"
	"futuresbot/src/database"
	botengine "futuresbot/src/engine"
	"futuresbot/src/executors"
	"futuresbot/src/maintenance"
	"futuresbot/src/monitor"
	"futuresbot/src/repository"
	"futuresbot/src/security"
	"futuresbot/src/server"
	"futuresbot/src/session"
)

// Engine runs the scheduler, the maintenance jobs and the HTTP control surface
// in one process.
type Engine struct {
	Log *logrus.Entry
}

func (e *Engine) Start() error {
	config := GetConfig()
	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)

	defer stop()

	// Initialize main (read/write) database
	if err := database.InitMainDB(); err != nil {
		e.Log.WithError(err).Error("Failed to connect to main database")
		return err
	}

	cipher, err := security.NewCipherFromConfig()
	if err != nil {
		e.Log.WithError(err).Warn("No credentials key configured, encrypted api keys cannot be opened")
		cipher = nil
	}

	connCfg := connectors.GetConfig()
	execCfg := executors.GetConfig()
	maintCfg := maintenance.GetConfig()

	registry := session.NewRegistry(
		connectors.NewBinanceFactory(connCfg, connectors.NewCandleSource(connCfg)),
		execCfg.CallTimeout,
	)

	settingsRepo := repository.NewSettingsRepository()
	statusRepo := repository.NewBotStatusRepository()
	positionRepo := repository.NewPositionRepository()
	activityRepo := repository.NewActivityLogRepository()
	tradeRepo := repository.NewTradeHistoryRepository()
	activity := activitylog.New(activityRepo)

	eng := botengine.New(botengine.Deps{
		Registry: registry,
		Keys:     repository.NewAPIKeysRepository(),
		Settings: settingsRepo,
		Status:   statusRepo,
		Activity: activity,
		Cipher:   cipher,
	})

	scheduler := executors.NewScheduler(executors.Deps{
		Registry:   registry,
		Settings:   settingsRepo,
		Status:     statusRepo,
		Exceptions: repository.NewExceptionRepository(),
		Activity:   activity,
		Executor:   controller.NewOrderExecutor(positionRepo, statusRepo, activity, controller.GetConfig()),
		Monitor:    monitor.NewPositionMonitor(positionRepo, tradeRepo, statusRepo, activity, execCfg.CallTimeout),
	}, execCfg)

	jobs, err := maintenance.NewJobs(
		maintCfg,
		maintenance.NewHealthMonitor(registry, statusRepo, maintCfg.ProbeTimeout),
		maintenance.NewRetentionSweeper(tradeRepo, activityRepo, maintCfg),
	)
	if err != nil {
		e.Log.WithError(err).Error("Invalid maintenance schedule")
		return err
	}

	if config.LoadActiveOnBoot {
		started, err := eng.LoadActiveSessions(ctx)
		if err != nil {
			e.Log.WithError(err).Warn("Some sessions could not be restored")
		}
		e.Log.WithField("started", started).Info("Sessions restored")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return scheduler.Start(gctx) })
	g.Go(func() error { return jobs.Run(gctx) })
	g.Go(func() error { return server.Run(gctx, server.GetConfig(), server.NewRouter(eng, activityRepo)) })

	runErr := g.Wait()

	e.Log.Info("Releasing exchange sessions")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	if err := registry.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	return runErr
}
