package controller

import (
	"context"
	"encoding/json"
	"runtime/debug"
	"time"

	logger "github.com/sirupsen/logrus"

	"futuresbot/src/model"
)

// ExceptionStore persists captured exceptions.
type ExceptionStore interface {
	Create(ctx context.Context, exc *model.Exception) error
}

// Capture records a system exception, logs it locally, and optionally
// persists it in the database.
func Capture(
	ctx context.Context,
	repo ExceptionStore,
	service string,
	module string,
	method string,
	userID string,
	level string,
	err error,
	contextData map[string]interface{},
) {

	if err == nil {
		return
	}

	var ctxJSON string
	if contextData != nil {
		if b, e := json.Marshal(contextData); e == nil {
			ctxJSON = string(b)
		}
	}

	exc := &model.Exception{
		Service:   service,
		Module:    module,
		Method:    method,
		UserID:    userID,
		Message:   err.Error(),
		Stack:     string(debug.Stack()),
		Level:     level,
		Context:   ctxJSON,
		CreatedAt: time.Now().UTC(),
	}

	logger.WithFields(map[string]interface{}{
		"service": service,
		"module":  module,
		"method":  method,
		"user_id": userID,
		"level":   level,
	}).WithError(err).Error("System exception captured")

	// Persist in database
	if repo != nil {
		if e := repo.Create(context.WithoutCancel(ctx), exc); e != nil {
			logger.WithError(e).Error("Failed to persist exception")
		}
	}
}

// withTimeout runs fn under a derived deadline. A zero timeout leaves ctx as is.
func withTimeout(ctx context.Context, timeout time.Duration, fn func(ctx context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(callCtx)
}
