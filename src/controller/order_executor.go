package controller

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"

	"futuresbot/src/connectors"
	"futuresbot/src/metrics"
	"futuresbot/src/model"
	"futuresbot/src/risk"
	"futuresbot/src/session"
	"futuresbot/src/tp_sl"
)

// Step names used when wrapping a failed execution step.
const (
	StepCheckPosition = "check open position"
	StepFetchBalance  = "fetch balance"
	StepSizePosition  = "size position"
	StepSetLeverage   = "set leverage"
	StepMarketOrder   = "market order"
	StepBracketPrices = "bracket prices"
	StepTakeProfit    = "take profit order"
	StepStopLoss      = "stop loss order"
	StepPersist       = "persist position"
)

type PositionStore interface {
	Create(ctx context.Context, p *model.Position) error
	FindOpenBySymbol(ctx context.Context, userID, symbol string) (*model.Position, error)
}

type StatusStore interface {
	Patch(ctx context.Context, userID string, patch model.BotStatusPatch) error
}

// Activity is the user-facing activity feed.
type Activity interface {
	Info(ctx context.Context, userID, message string, details map[string]any)
	Success(ctx context.Context, userID, message string, details map[string]any)
	Warning(ctx context.Context, userID, message string, details map[string]any)
	Error(ctx context.Context, userID, message string, details map[string]any)
}

// OrderExecutor turns a signal into an entry order plus its take-profit and
// stop-loss brackets, and records the resulting position.
type OrderExecutor struct {
	positions PositionStore
	status    StatusStore
	activity  Activity
	cfg       Config
	now       func() time.Time
	log       *logger.Entry
}

func NewOrderExecutor(positions PositionStore, status StatusStore, activity Activity, cfg Config) *OrderExecutor {
	if cfg.QuoteCurrency == "" {
		cfg.QuoteCurrency = "USDT"
	}
	return &OrderExecutor{
		positions: positions,
		status:    status,
		activity:  activity,
		cfg:       cfg,
		now:       time.Now,
		log:       logger.WithField("component", "order_executor"),
	}
}

// Execute opens a position on symbol in the direction of signal.
//
// It returns (nil, nil) when the market order fills nothing. When a bracket order
// fails after the entry filled, the position is still recorded and returned
// together with the error so the exposure stays visible to the monitor.
func (e *OrderExecutor) Execute(ctx context.Context, sess *session.Session, symbol string, signal model.Side, currentPrice float64) (*model.Position, error) {
	userID := sess.UserID
	settings := sess.Settings()
	client := sess.Client()

	log := e.log.WithFields(logger.Fields{
		"user_id": userID,
		"symbol":  symbol,
		"signal":  signal,
	})

	e.activity.Info(ctx, userID, fmt.Sprintf("Analyzing %s signal for %s", signal, symbol), map[string]any{
		"symbol": symbol,
		"signal": string(signal),
		"price":  currentPrice,
	})

	if !signal.Valid() {
		return nil, fmt.Errorf("%w: unknown signal %q", model.ErrValidation, signal)
	}

	var existing *model.Position
	err := withTimeout(ctx, e.cfg.CallTimeout, func(ctx context.Context) error {
		var err error
		existing, err = e.positions.FindOpenBySymbol(ctx, userID, symbol)
		return err
	})
	if err != nil {
		return nil, e.fail(ctx, userID, symbol, StepCheckPosition, err)
	}
	if existing != nil {
		e.activity.Warning(ctx, userID, fmt.Sprintf("Position already open on %s, signal skipped", symbol), map[string]any{
			"symbol":     symbol,
			"positionId": existing.ID,
			"side":       string(existing.Side),
		})
		return nil, fmt.Errorf("%w: %s", model.ErrDuplicatePosition, symbol)
	}

	var balance connectors.Balance
	err = withTimeout(ctx, e.cfg.CallTimeout, func(ctx context.Context) error {
		var err error
		balance, err = client.FetchBalance(ctx)
		return err
	})
	if err != nil {
		return nil, e.fail(ctx, userID, symbol, StepFetchBalance, err)
	}

	free := balance[e.cfg.QuoteCurrency]
	if free < e.cfg.MinFreeBalance {
		e.activity.Error(ctx, userID, fmt.Sprintf("Insufficient %s balance to open a position", e.cfg.QuoteCurrency), map[string]any{
			"symbol":   symbol,
			"free":     free,
			"required": e.cfg.MinFreeBalance,
		})
		return nil, fmt.Errorf("%w: free %s %.2f below %.2f", model.ErrInsufficientBalance, e.cfg.QuoteCurrency, free, e.cfg.MinFreeBalance)
	}

	qty, err := risk.PositionSizeFloat(free, settings.RiskPercentage, settings.Leverage, currentPrice)
	if err == nil && qty <= 0 {
		err = fmt.Errorf("%w: computed size is zero", model.ErrValidation)
	}
	if err != nil {
		return nil, e.fail(ctx, userID, symbol, StepSizePosition, err)
	}

	log = log.WithField("quantity", qty)
	log.Info("Placing entry order")

	err = withTimeout(ctx, e.cfg.CallTimeout, func(ctx context.Context) error {
		return client.SetLeverage(ctx, symbol, settings.Leverage)
	})
	if err != nil {
		return nil, e.fail(ctx, userID, symbol, StepSetLeverage, err)
	}

	var entry *connectors.OrderResult
	err = withTimeout(ctx, e.cfg.CallTimeout, func(ctx context.Context) error {
		var err error
		entry, err = client.CreateMarketOrder(ctx, symbol, signal.EntrySide(), qty)
		return err
	})
	if err != nil {
		return nil, e.fail(ctx, userID, symbol, StepMarketOrder, err)
	}
	metrics.OrdersPlaced.WithLabelValues("market").Inc()

	if entry == nil || entry.Filled <= 0 {
		log.Warn("Market order did not fill")
		e.activity.Warning(ctx, userID, fmt.Sprintf("Market order on %s did not fill", symbol), map[string]any{"symbol": symbol})
		return nil, nil
	}

	filled := entry.Filled
	entryPrice := entry.Average
	if entryPrice <= 0 {
		entryPrice = currentPrice
	}

	brackets, err := tp_sl.BracketPrices(signal,
		decimal.NewFromFloat(entryPrice),
		decimal.NewFromFloat(settings.TPPercentage),
		decimal.NewFromFloat(settings.SLPercentage))
	if err != nil {
		return nil, e.fail(ctx, userID, symbol, StepBracketPrices, err)
	}
	tp := brackets.TakeProfit.InexactFloat64()
	sl := brackets.StopLoss.InexactFloat64()

	bracketStep, bracketErr := e.placeBrackets(ctx, client, symbol, signal.CloseSide(), filled, tp, sl)

	now := e.now().UTC()
	pos := &model.Position{
		ID:              uuid.NewString(),
		UserID:          userID,
		ExchangeOrderID: entry.OrderID,
		Symbol:          symbol,
		Side:            signal,
		Size:            filled,
		EntryPrice:      entryPrice,
		CurrentPrice:    entryPrice,
		TPPrice:         tp,
		SLPrice:         sl,
		Status:          model.PositionStatusOpen,
		Timestamp:       now,
		UpdatedAt:       now,
	}
	err = withTimeout(ctx, e.cfg.CallTimeout, func(ctx context.Context) error {
		return e.positions.Create(ctx, pos)
	})
	if err != nil {
		return nil, e.fail(ctx, userID, symbol, StepPersist, err)
	}

	if bracketErr != nil {
		return pos, e.fail(ctx, userID, symbol, bracketStep, bracketErr)
	}

	log.WithFields(logger.Fields{
		"position_id": pos.ID,
		"entry":       entryPrice,
		"tp":          tp,
		"sl":          sl,
	}).Info("Position opened")

	e.activity.Success(ctx, userID, fmt.Sprintf("Opened %s position on %s", signal, symbol), map[string]any{
		"symbol":     symbol,
		"side":       string(signal),
		"size":       filled,
		"entryPrice": entryPrice,
		"tpPrice":    tp,
		"slPrice":    sl,
		"orderId":    entry.OrderID,
	})
	return pos, nil
}

// placeBrackets submits the reduce-only exits. It reports the failing step, if any.
func (e *OrderExecutor) placeBrackets(ctx context.Context, client connectors.ExchangeClient, symbol string, side model.OrderSide, qty, tp, sl float64) (string, error) {
	err := withTimeout(ctx, e.cfg.CallTimeout, func(ctx context.Context) error {
		_, err := client.CreateLimitOrder(ctx, symbol, side, qty, tp, true)
		return err
	})
	if err != nil {
		return StepTakeProfit, err
	}
	metrics.OrdersPlaced.WithLabelValues("take_profit").Inc()

	err = withTimeout(ctx, e.cfg.CallTimeout, func(ctx context.Context) error {
		_, err := client.CreateStopMarketOrder(ctx, symbol, side, qty, sl, true)
		return err
	})
	if err != nil {
		return StepStopLoss, err
	}
	metrics.OrdersPlaced.WithLabelValues("stop_loss").Inc()
	return "", nil
}

// fail wraps err with the step name and reports it on every user-facing channel.
func (e *OrderExecutor) fail(ctx context.Context, userID, symbol, step string, err error) error {
	wrapped := fmt.Errorf("%s: %w", step, err)

	e.log.WithError(err).WithFields(logger.Fields{
		"user_id": userID,
		"symbol":  symbol,
		"step":    step,
	}).Error("Order execution failed")

	e.activity.Error(ctx, userID, fmt.Sprintf("Order execution failed on %s", symbol), map[string]any{
		"symbol": symbol,
		"step":   step,
		"error":  err.Error(),
	})

	perr := withTimeout(ctx, e.cfg.CallTimeout, func(ctx context.Context) error {
		return e.status.Patch(ctx, userID, model.BotStatusPatch{Error: model.String(wrapped.Error())})
	})
	if perr != nil {
		e.log.WithError(perr).WithField("user_id", userID).Warn("Failed to record execution error on bot status")
	}
	return wrapped
}
