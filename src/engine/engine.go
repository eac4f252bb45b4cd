// Package engine is the control surface over the session registry: it starts and
// stops users' bots and reports their status.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	logger "github.com/sirupsen/logrus"

	"futuresbot/src/connectors"
	"futuresbot/src/metrics"
	"futuresbot/src/model"
	"futuresbot/src/security"
	"futuresbot/src/session"
)

const (
	msgInvalidKeys = "Invalid API keys or exchange unreachable"
	msgMissingKeys = "API keys not configured"
)

type APIKeysStore interface {
	Get(ctx context.Context, userID string) (*model.APIKeys, error)
}

type SettingsStore interface {
	Get(ctx context.Context, userID string) (*model.TradingSettings, error)
}

type StatusStore interface {
	Get(ctx context.Context, userID string) (*model.BotStatus, error)
	Patch(ctx context.Context, userID string, patch model.BotStatusPatch) error
	ListRunning(ctx context.Context) ([]string, error)
}

type Activity interface {
	Info(ctx context.Context, userID, message string, details map[string]any)
	Error(ctx context.Context, userID, message string, details map[string]any)
}

type Deps struct {
	Registry *session.Registry
	Keys     APIKeysStore
	Settings SettingsStore
	Status   StatusStore
	Activity Activity
	// Cipher opens encrypted credential blobs. It may be nil when no blob is encrypted.
	Cipher *security.Cipher
}

type Engine struct {
	Deps
	now func() time.Time
	log *logger.Entry
}

func New(deps Deps) *Engine {
	return &Engine{
		Deps: deps,
		now:  time.Now,
		log:  logger.WithField("component", "engine"),
	}
}

// StartSession loads the user's keys and settings and registers a session. A
// successful start marks the bot running and clears any stored error.
func (e *Engine) StartSession(ctx context.Context, userID string) error {
	log := e.log.WithField("user_id", userID)

	creds, err := e.credentials(ctx, userID)
	if err != nil {
		e.markStopped(ctx, userID, err)
		return err
	}

	stored, err := e.Settings.Get(ctx, userID)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	if stored == nil {
		stored = &model.TradingSettings{UserID: userID}
	}
	settings := stored.WithDefaults()
	settings.Symbols = settings.NormalizedSymbols()

	if _, err := e.Registry.Register(ctx, userID, creds, settings); err != nil {
		log.WithError(err).Warn("Failed to start session")
		e.markStopped(ctx, userID, err)
		return err
	}
	metrics.ActiveSessions.Set(float64(e.Registry.Len()))

	if err := e.Status.Patch(ctx, userID, model.BotStatusPatch{IsRunning: model.Bool(true), ClearError: true}); err != nil {
		return fmt.Errorf("update bot status: %w", err)
	}
	e.Activity.Info(ctx, userID, "Trading bot started", map[string]any{
		"symbols":   settings.Symbols,
		"timeframe": string(settings.Timeframe),
		"leverage":  settings.Leverage,
	})
	log.Info("Session started")
	return nil
}

func (e *Engine) credentials(ctx context.Context, userID string) (connectors.Credentials, error) {
	keys, err := e.Keys.Get(ctx, userID)
	if err != nil {
		return connectors.Credentials{}, fmt.Errorf("load api keys: %w", err)
	}
	apiKey, apiSecret, err := security.DecodeAPIKeys(keys, e.Cipher)
	if err != nil {
		return connectors.Credentials{}, err
	}
	return connectors.Credentials{APIKey: apiKey, APISecret: apiSecret}, nil
}

// markStopped records a failed start on the bot status. Store errors other than
// credential problems leave the status untouched.
func (e *Engine) markStopped(ctx context.Context, userID string, cause error) {
	var msg string
	switch {
	case errors.Is(cause, model.ErrMissingCredentials):
		msg = msgMissingKeys
	case errors.Is(cause, model.ErrAuth):
		msg = msgInvalidKeys
	case errors.Is(cause, model.ErrFatal):
		msg = cause.Error()
	default:
		return
	}

	if err := e.Status.Patch(ctx, userID, model.BotStatusPatch{IsRunning: model.Bool(false), Error: &msg}); err != nil {
		e.log.WithError(err).WithField("user_id", userID).Warn("Failed to patch bot status")
	}
	e.Activity.Error(ctx, userID, "Trading bot could not start", map[string]any{"error": msg})
}

// StopSession unregisters the user's session. Stopping a user without a session
// still records the bot as stopped.
func (e *Engine) StopSession(ctx context.Context, userID string) error {
	removed := e.Registry.Unregister(userID)
	metrics.ActiveSessions.Set(float64(e.Registry.Len()))

	if err := e.Status.Patch(ctx, userID, model.BotStatusPatch{IsRunning: model.Bool(false), ClearError: true}); err != nil {
		return fmt.Errorf("update bot status: %w", err)
	}
	if removed {
		e.Activity.Info(ctx, userID, "Trading bot stopped", nil)
		e.log.WithField("user_id", userID).Info("Session stopped")
	}
	return nil
}

// GetStatus returns the stored status, or a stopped default when none exists.
func (e *Engine) GetStatus(ctx context.Context, userID string) (model.BotStatus, error) {
	st, err := e.Status.Get(ctx, userID)
	if err != nil {
		return model.BotStatus{}, err
	}
	if st == nil {
		return model.DefaultBotStatus(userID, e.now().UTC()), nil
	}
	return *st, nil
}

// LoadActiveSessions restarts every user whose stored status says the bot is
// running. It returns how many sessions started.
func (e *Engine) LoadActiveSessions(ctx context.Context) (int, error) {
	users, err := e.Status.ListRunning(ctx)
	if err != nil {
		return 0, fmt.Errorf("list running bots: %w", err)
	}

	started := 0
	var errs []error
	for _, userID := range users {
		if err := e.StartSession(ctx, userID); err != nil {
			errs = append(errs, fmt.Errorf("user %s: %w", userID, err))
			continue
		}
		started++
	}

	e.log.WithFields(logger.Fields{
		"running": len(users),
		"started": started,
	}).Info("Active sessions loaded")
	return started, errors.Join(errs...)
}

func (e *Engine) ActiveUsers() int {
	return e.Registry.Len()
}
