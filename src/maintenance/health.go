package maintenance

import (
	"context"
	"fmt"
	"strings"
	"time"

	logger "github.com/sirupsen/logrus"

	"futuresbot/src/model"
	"futuresbot/src/session"
)

// ConnectivityError is the bot status message set while a session's probe fails.
const ConnectivityError = "Exchange connectivity check failed"

type StatusStore interface {
	Get(ctx context.Context, userID string) (*model.BotStatus, error)
	Patch(ctx context.Context, userID string, patch model.BotStatusPatch) error
}

// HealthMonitor probes every session's exchange handle. A failed probe degrades the
// session so it stops placing orders; it is never unregistered here.
type HealthMonitor struct {
	registry *session.Registry
	status   StatusStore
	timeout  time.Duration
	log      *logger.Entry
}

func NewHealthMonitor(registry *session.Registry, status StatusStore, timeout time.Duration) *HealthMonitor {
	return &HealthMonitor{
		registry: registry,
		status:   status,
		timeout:  timeout,
		log:      logger.WithField("component", "health_monitor"),
	}
}

// Probe checks each session once and returns how many failed.
func (h *HealthMonitor) Probe(ctx context.Context) int {
	failed := 0
	for _, sess := range h.registry.List() {
		if ctx.Err() != nil {
			break
		}
		if !sess.Acquire() {
			continue
		}
		if !h.probe(ctx, sess) {
			failed++
		}
		sess.Release()
	}
	return failed
}

func (h *HealthMonitor) probe(ctx context.Context, sess *session.Session) bool {
	log := h.log.WithField("user_id", sess.UserID)

	probeCtx, cancel := context.WithTimeout(ctx, h.timeout)
	_, err := sess.Client().FetchBalance(probeCtx)
	cancel()

	if err != nil {
		log.WithError(err).Warn("Connectivity probe failed")
		if sess.SetDegraded(true) {
			msg := fmt.Sprintf("%s: %v", ConnectivityError, err)
			if perr := h.status.Patch(ctx, sess.UserID, model.BotStatusPatch{Error: &msg}); perr != nil {
				log.WithError(perr).Warn("Failed to patch bot status")
			}
		}
		return false
	}

	if sess.SetDegraded(false) {
		log.Info("Connectivity restored")
		h.clearConnectivityError(ctx, sess.UserID)
	}
	return true
}

// clearConnectivityError removes the status error only when it is the one the probe set.
func (h *HealthMonitor) clearConnectivityError(ctx context.Context, userID string) {
	st, err := h.status.Get(ctx, userID)
	if err != nil {
		h.log.WithError(err).WithField("user_id", userID).Warn("Failed to read bot status")
		return
	}
	if st == nil || st.Error == nil || !strings.HasPrefix(*st.Error, ConnectivityError) {
		return
	}
	if err := h.status.Patch(ctx, userID, model.BotStatusPatch{ClearError: true}); err != nil {
		h.log.WithError(err).WithField("user_id", userID).Warn("Failed to clear bot status error")
	}
}
