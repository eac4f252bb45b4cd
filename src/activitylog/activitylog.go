package activitylog

import (
	"context"
	"time"

	"github.com/google/uuid"
	logger "github.com/sirupsen/logrus"

	"futuresbot/src/model"
)

// Store is where entries are written. Ordering is the store's insertion order.
type Store interface {
	Append(ctx context.Context, entry *model.ActivityLogEntry) error
}

// Log is the append-only, user-facing activity feed. It keeps no state of its own.
type Log struct {
	store Store
	now   func() time.Time
	log   *logger.Entry
}

func New(store Store) *Log {
	return &Log{
		store: store,
		now:   time.Now,
		log:   logger.WithField("component", "activitylog"),
	}
}

// Append writes one entry for userID. Key and Timestamp are filled when empty, and a
// "symbol" detail is promoted to the entry's Symbol.
func (l *Log) Append(ctx context.Context, userID string, entry model.ActivityLogEntry) error {
	entry.UserID = userID
	if entry.Key == "" {
		entry.Key = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = l.now().UTC()
	}
	if entry.Symbol == nil {
		if sym, ok := entry.Details["symbol"].(string); ok && sym != "" {
			entry.Symbol = &sym
		}
	}

	if err := l.store.Append(ctx, &entry); err != nil {
		l.log.WithError(err).WithFields(logger.Fields{
			"user_id": userID,
			"type":    entry.Type,
			"message": entry.Message,
		}).Error("Failed to append activity log entry")
		return err
	}
	return nil
}

func (l *Log) Info(ctx context.Context, userID, message string, details map[string]any) {
	l.write(ctx, userID, model.ActivityInfo, message, details)
}

func (l *Log) Success(ctx context.Context, userID, message string, details map[string]any) {
	l.write(ctx, userID, model.ActivitySuccess, message, details)
}

func (l *Log) Warning(ctx context.Context, userID, message string, details map[string]any) {
	l.write(ctx, userID, model.ActivityWarning, message, details)
}

func (l *Log) Error(ctx context.Context, userID, message string, details map[string]any) {
	l.write(ctx, userID, model.ActivityError, message, details)
}

// write never fails the caller; Append already logged the store error.
func (l *Log) write(ctx context.Context, userID string, typ model.ActivityType, message string, details map[string]any) {
	_ = l.Append(ctx, userID, model.ActivityLogEntry{Type: typ, Message: message, Details: details})
}
