package executors

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	logger "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"futuresbot/src/controller"
	"futuresbot/src/metrics"
	"futuresbot/src/model"
	"futuresbot/src/session"
	"futuresbot/src/strategy"
)

const (
	CycleTrading    = "trading"
	CycleMonitoring = "monitoring"
)

type SettingsStore interface {
	Get(ctx context.Context, userID string) (*model.TradingSettings, error)
}

type StatusStore interface {
	Patch(ctx context.Context, userID string, patch model.BotStatusPatch) error
}

type OrderExecutor interface {
	Execute(ctx context.Context, sess *session.Session, symbol string, signal model.Side, currentPrice float64) (*model.Position, error)
}

type PositionMonitor interface {
	Check(ctx context.Context, sess *session.Session) error
}

type Activity interface {
	Error(ctx context.Context, userID, message string, details map[string]any)
}

type Deps struct {
	Registry   *session.Registry
	Settings   SettingsStore
	Status     StatusStore
	Exceptions controller.ExceptionStore
	Activity   Activity
	Executor   OrderExecutor
	Monitor    PositionMonitor
}

// Scheduler drives the trading and monitoring cycles over every registered session.
type Scheduler struct {
	Deps
	cfg   Config
	guard *keyGuard
	now   func() time.Time
	log   *logger.Entry
}

func NewScheduler(deps Deps, cfg Config) *Scheduler {
	if cfg.WorkerPoolSize <= 0 {
		cfg.WorkerPoolSize = 1
	}
	if cfg.CandleLimit <= 0 {
		cfg.CandleLimit = 100
	}
	if cfg.TradingInterval <= 0 {
		cfg.TradingInterval = DefaultTradingInterval
	}
	if cfg.MonitoringInterval <= 0 {
		cfg.MonitoringInterval = DefaultMonitoringInterval
	}
	return &Scheduler{
		Deps:  deps,
		cfg:   cfg,
		guard: newKeyGuard(),
		now:   time.Now,
		log:   logger.WithField("component", "scheduler"),
	}
}

// Start runs both cycles until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	trading := &Loop{Name: CycleTrading, Interval: s.cfg.TradingInterval, Jitter: s.cfg.LoopJitter, Tick: s.RunTradingCycle}
	monitoring := &Loop{Name: CycleMonitoring, Interval: s.cfg.MonitoringInterval, Jitter: s.cfg.LoopJitter, Tick: s.RunMonitoringCycle}

	g.Go(func() error { return trading.Run(ctx) })
	g.Go(func() error { return monitoring.Run(ctx) })
	return g.Wait()
}

// RunTradingCycle evaluates every symbol of every session once. Only fatal
// failures are returned; everything else is logged and retried next tick.
func (s *Scheduler) RunTradingCycle(ctx context.Context) error {
	return s.forEachSession(ctx, CycleTrading, s.tradeUser)
}

// RunMonitoringCycle reconciles positions of every session once.
func (s *Scheduler) RunMonitoringCycle(ctx context.Context) error {
	return s.forEachSession(ctx, CycleMonitoring, func(ctx context.Context, sess *session.Session, fatal *tickErrors) {
		s.runUnit(ctx, CycleMonitoring, sess, "", fatal, func(ctx context.Context) error {
			return s.Monitor.Check(ctx, sess)
		})
	})
}

type tickErrors struct {
	mu   sync.Mutex
	errs []error
}

func (t *tickErrors) add(err error) {
	t.mu.Lock()
	t.errs = append(t.errs, err)
	t.mu.Unlock()
}

func (t *tickErrors) join() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return errors.Join(t.errs...)
}

func (s *Scheduler) forEachSession(ctx context.Context, cycle string, fn func(ctx context.Context, sess *session.Session, fatal *tickErrors)) error {
	sessions := s.Registry.List()
	metrics.ActiveSessions.Set(float64(len(sessions)))

	fatal := &tickErrors{}
	var g errgroup.Group
	g.SetLimit(s.cfg.WorkerPoolSize)

	for _, sess := range sessions {
		sess := sess
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if !sess.Acquire() {
				return nil
			}
			defer sess.Release()
			fn(ctx, sess, fatal)
			return nil
		})
	}
	_ = g.Wait()

	return fatal.join()
}

func (s *Scheduler) tradeUser(ctx context.Context, sess *session.Session, fatal *tickErrors) {
	var settings model.TradingSettings
	ok := s.runUnit(ctx, CycleTrading, sess, "", fatal, func(ctx context.Context) error {
		stored, err := s.Settings.Get(ctx, sess.UserID)
		if err != nil {
			return fmt.Errorf("load settings: %w", err)
		}
		if stored == nil {
			stored = &model.TradingSettings{UserID: sess.UserID}
		}
		settings = stored.WithDefaults()
		if err := settings.Validate(); err != nil {
			if errors.Is(err, model.ErrValidation) {
				settings.Symbols = nil
				return nil
			}
			return err
		}
		settings.Symbols = settings.NormalizedSymbols()
		sess.UpdateSettings(settings)
		return nil
	})
	if !ok {
		return
	}

	for _, symbol := range settings.Symbols {
		if ctx.Err() != nil || sess.Stopped() {
			return
		}
		ok := s.runUnit(ctx, CycleTrading, sess, symbol, fatal, func(ctx context.Context) error {
			return s.tradeSymbol(ctx, sess, settings, symbol)
		})
		if !ok {
			return
		}
	}
}

func (s *Scheduler) tradeSymbol(ctx context.Context, sess *session.Session, settings model.TradingSettings, symbol string) error {
	release, ok := s.guard.tryLock(sess.UserID + "|" + symbol)
	if !ok {
		s.log.WithFields(logger.Fields{"user_id": sess.UserID, "symbol": symbol}).Debug("Symbol busy, skipping")
		return nil
	}
	defer release()

	fetchCtx, cancel := s.callContext(ctx)
	candles, err := sess.Client().FetchOHLCV(fetchCtx, symbol, settings.Timeframe, s.cfg.CandleLimit)
	cancel()
	if err != nil {
		return fmt.Errorf("fetch candles: %w", err)
	}

	side, ok := strategy.Evaluate(candles, settings)
	if !ok {
		return nil
	}

	sess.MarkSignal(s.now())
	metrics.Signals.WithLabelValues(string(side)).Inc()

	log := s.log.WithFields(logger.Fields{"user_id": sess.UserID, "symbol": symbol, "signal": side})
	if sess.Degraded() {
		log.Warn("Connectivity degraded, signal not traded")
		return nil
	}
	log.Info("Signal detected")

	price := candles[len(candles)-1].Close
	_, err = s.Executor.Execute(ctx, sess, symbol, side, price)
	return err
}

// runUnit runs fn as one isolated unit of work and routes its failure by class.
// It returns false when the failure was fatal and the session was stopped.
func (s *Scheduler) runUnit(ctx context.Context, cycle string, sess *session.Session, symbol string, fatal *tickErrors, fn func(ctx context.Context) error) bool {
	err := safely(ctx, fn)
	class := model.Classify(err)
	if class == model.ClassNone {
		return true
	}
	metrics.UnitErrors.WithLabelValues(cycle, string(class)).Inc()

	log := s.log.WithError(err).WithFields(logger.Fields{
		"cycle":   cycle,
		"user_id": sess.UserID,
		"symbol":  symbol,
		"class":   class,
	})

	switch class {
	case model.ClassDuplicatePosition, model.ClassValidation:
		log.Info("Unit skipped")
	case model.ClassInsufficientBalance, model.ClassTransient:
		log.Warn("Unit failed, retrying next tick")
	case model.ClassAuth:
		log.Error("Exchange rejected credentials")
		s.patchStatus(ctx, sess.UserID, model.BotStatusPatch{Error: model.String(fmt.Sprintf("Exchange authentication failed: %v", err))})
	case model.ClassFatal:
		log.Error("Fatal failure, stopping session")
		s.stopOnFatal(ctx, cycle, sess, symbol, err)
		fatal.add(fmt.Errorf("user %s: %w", sess.UserID, err))
		return false
	}
	return true
}

func (s *Scheduler) stopOnFatal(ctx context.Context, cycle string, sess *session.Session, symbol string, err error) {
	controller.Capture(ctx, s.Exceptions, "scheduler", cycle, "runUnit", sess.UserID, "fatal", err, map[string]interface{}{
		"symbol": symbol,
	})
	s.patchStatus(ctx, sess.UserID, model.BotStatusPatch{
		IsRunning: model.Bool(false),
		Error:     model.String(err.Error()),
	})
	if s.Activity != nil {
		s.Activity.Error(ctx, sess.UserID, "Trading stopped after a fatal error", map[string]any{
			"symbol": symbol,
			"error":  err.Error(),
		})
	}
	s.Registry.Unregister(sess.UserID)
}

func (s *Scheduler) patchStatus(ctx context.Context, userID string, patch model.BotStatusPatch) {
	if err := s.Status.Patch(context.WithoutCancel(ctx), userID, patch); err != nil {
		s.log.WithError(err).WithField("user_id", userID).Warn("Failed to patch bot status")
	}
}

func (s *Scheduler) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.CallTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.cfg.CallTimeout)
}

// safely runs fn and turns a panic into a fatal error.
func safely(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic: %v", model.ErrFatal, r)
		}
	}()
	return fn(ctx)
}
