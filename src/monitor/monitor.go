// Package monitor keeps stored positions in step with what the exchange reports.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	logger "github.com/sirupsen/logrus"

	"futuresbot/src/connectors"
	"futuresbot/src/metrics"
	"futuresbot/src/model"
	"futuresbot/src/risk"
	"futuresbot/src/session"
)

type PositionStore interface {
	ListOpen(ctx context.Context, userID string) ([]model.Position, error)
	UpdateMarket(ctx context.Context, id string, currentPrice, pnl float64) error
	Close(ctx context.Context, id string, exitPrice, pnl float64, closedAt time.Time) (bool, error)
}

type TradeStore interface {
	Create(ctx context.Context, rec *model.TradeHistory) error
}

type StatusStore interface {
	Patch(ctx context.Context, userID string, patch model.BotStatusPatch) error
}

type Activity interface {
	Info(ctx context.Context, userID, message string, details map[string]any)
}

// Snapshot is one read of the exchange's live positions alongside the stored open ones.
type Snapshot struct {
	At   time.Time
	Live map[string]connectors.ExchangePosition
	Open []model.Position
}

type PositionMonitor struct {
	positions   PositionStore
	trades      TradeStore
	status      StatusStore
	activity    Activity
	callTimeout time.Duration
	now         func() time.Time
	log         *logger.Entry
}

func NewPositionMonitor(positions PositionStore, trades TradeStore, status StatusStore, activity Activity, callTimeout time.Duration) *PositionMonitor {
	return &PositionMonitor{
		positions:   positions,
		trades:      trades,
		status:      status,
		activity:    activity,
		callTimeout: callTimeout,
		now:         time.Now,
		log:         logger.WithField("component", "position_monitor"),
	}
}

// Reconcile refreshes price and PnL of stored open positions from the exchange and
// publishes the live position count. It never creates or deletes positions.
func (m *PositionMonitor) Reconcile(ctx context.Context, sess *session.Session) error {
	_, err := m.reconcile(ctx, sess)
	return err
}

// Check runs Reconcile followed by close detection on the same snapshot.
func (m *PositionMonitor) Check(ctx context.Context, sess *session.Session) error {
	snap, err := m.reconcile(ctx, sess)
	if err != nil {
		return err
	}
	return m.DetectClosed(ctx, sess.UserID, snap)
}

func (m *PositionMonitor) reconcile(ctx context.Context, sess *session.Session) (*Snapshot, error) {
	userID := sess.UserID
	snap := &Snapshot{At: m.now().UTC(), Live: map[string]connectors.ExchangePosition{}}

	fetchCtx, cancel := m.callContext(ctx)
	reported, err := sess.Client().FetchPositions(fetchCtx)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("fetch positions: %w", err)
	}
	for _, p := range reported {
		if p.Size > 0 {
			snap.Live[p.Symbol] = p
		}
	}

	err = m.within(ctx, func(ctx context.Context) error {
		var err error
		snap.Open, err = m.positions.ListOpen(ctx, userID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list open positions: %w", err)
	}

	var errs []error
	for i := range snap.Open {
		p := &snap.Open[i]
		live, ok := snap.Live[p.Symbol]
		if !ok || live.MarkPrice <= 0 {
			continue
		}
		pnl := live.UnrealizedPnl
		err := m.within(ctx, func(ctx context.Context) error {
			return m.positions.UpdateMarket(ctx, p.ID, live.MarkPrice, pnl)
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("update position %s: %w", p.ID, err))
			continue
		}
		p.CurrentPrice = live.MarkPrice
		p.PnL = pnl
	}

	err = m.within(ctx, func(ctx context.Context) error {
		return m.status.Patch(ctx, userID, model.BotStatusPatch{ActivePositions: model.Int(len(snap.Live))})
	})
	if err != nil {
		errs = append(errs, fmt.Errorf("patch bot status: %w", err))
	}

	m.log.WithFields(logger.Fields{
		"user_id": userID,
		"live":    len(snap.Live),
		"stored":  len(snap.Open),
	}).Debug("Positions reconciled")

	return snap, errors.Join(errs...)
}

// DetectClosed closes stored positions that the exchange no longer reports. Positions
// opened after the snapshot was taken are left alone. Each close is recorded in the
// trade history with the last known price as exit.
func (m *PositionMonitor) DetectClosed(ctx context.Context, userID string, snap *Snapshot) error {
	var errs []error
	for _, p := range snap.Open {
		if _, live := snap.Live[p.Symbol]; live {
			continue
		}
		if !p.Timestamp.Before(snap.At) {
			continue
		}

		exit := p.CurrentPrice
		if exit <= 0 {
			exit = p.EntryPrice
		}
		pnl := risk.UnrealizedPnL(p.Side, p.Size, p.EntryPrice, exit)

		var closed bool
		err := m.within(ctx, func(ctx context.Context) error {
			var err error
			closed, err = m.positions.Close(ctx, p.ID, exit, pnl, snap.At)
			return err
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("close position %s: %w", p.ID, err))
			continue
		}
		if !closed {
			continue
		}
		metrics.PositionsClosed.Inc()

		rec := &model.TradeHistory{
			ID:         uuid.NewString(),
			UserID:     userID,
			PositionID: p.ID,
			Symbol:     p.Symbol,
			Side:       p.Side,
			Size:       p.Size,
			EntryPrice: p.EntryPrice,
			ExitPrice:  exit,
			PnL:        pnl,
			Timestamp:  snap.At,
		}
		err = m.within(ctx, func(ctx context.Context) error {
			return m.trades.Create(ctx, rec)
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("record trade %s: %w", p.ID, err))
		}

		m.log.WithFields(logger.Fields{
			"user_id":     userID,
			"position_id": p.ID,
			"symbol":      p.Symbol,
			"pnl":         pnl,
		}).Info("Position closed on exchange")

		m.activity.Info(ctx, userID, fmt.Sprintf("%s position on %s closed", p.Side, p.Symbol), map[string]any{
			"symbol":     p.Symbol,
			"side":       string(p.Side),
			"size":       p.Size,
			"entryPrice": p.EntryPrice,
			"exitPrice":  exit,
			"pnl":        pnl,
		})
	}
	return errors.Join(errs...)
}

// within runs a store call under the same bound as exchange calls.
func (m *PositionMonitor) within(ctx context.Context, fn func(ctx context.Context) error) error {
	callCtx, cancel := m.callContext(ctx)
	defer cancel()
	return fn(callCtx)
}

func (m *PositionMonitor) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if m.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, m.callTimeout)
}
