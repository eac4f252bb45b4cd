package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	logger "github.com/sirupsen/logrus"

	"futuresbot/src/model"
)

type botController interface {
	StartSession(ctx context.Context, userID string) error
	StopSession(ctx context.Context, userID string) error
	GetStatus(ctx context.Context, userID string) (model.BotStatus, error)
	ActiveUsers() int
}

type activityLister interface {
	ListRecent(ctx context.Context, userID string, limit int) ([]model.ActivityLogEntry, error)
}

type botRequest struct {
	UserID string `json:"userId"`
}

const maxActivityPage = 200

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.WithError(err).Error("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeBotRequest(w http.ResponseWriter, r *http.Request) (string, bool) {
	var payload botRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&payload); err != nil {
		logger.WithError(err).Warn("invalid bot control payload")
		writeError(w, http.StatusBadRequest, "Invalid payload")
		return "", false
	}
	userID := strings.TrimSpace(payload.UserID)
	if userID == "" {
		writeError(w, http.StatusBadRequest, "userId is required")
		return "", false
	}
	return userID, true
}

// StartBotHandler registers a session for the user in the JSON body.
func StartBotHandler(ctrl botController) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := decodeBotRequest(w, r)
		if !ok {
			return
		}

		if err := ctrl.StartSession(r.Context(), userID); err != nil {
			log := logger.WithError(err).WithField("user_id", userID)
			switch {
			case errors.Is(err, model.ErrMissingCredentials):
				log.Warn("bot start without api keys")
				writeError(w, http.StatusBadRequest, "API keys not found")
			case errors.Is(err, model.ErrAuth):
				log.Warn("bot start with rejected api keys")
				writeError(w, http.StatusUnauthorized, "Invalid API keys")
			default:
				log.Error("failed to start bot")
				writeError(w, http.StatusInternalServerError, err.Error())
			}
			return
		}

		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	}
}

func StopBotHandler(ctrl botController) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := decodeBotRequest(w, r)
		if !ok {
			return
		}

		if err := ctrl.StopSession(r.Context(), userID); err != nil {
			logger.WithError(err).WithField("user_id", userID).Error("failed to stop bot")
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	}
}

func BotStatusHandler(ctrl botController) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "userID")
		if userID == "" {
			writeError(w, http.StatusBadRequest, "userID is required")
			return
		}

		status, err := ctrl.GetStatus(r.Context(), userID)
		if err != nil {
			logger.WithError(err).WithField("user_id", userID).Error("failed to load bot status")
			writeError(w, http.StatusInternalServerError, "Internal Server Error")
			return
		}
		writeJSON(w, http.StatusOK, status)
	}
}

// ActivityHandler lists the user's most recent activity entries, newest first.
func ActivityHandler(repo activityLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "userID")

		limit := 50
		if limitParam := r.URL.Query().Get("limit"); limitParam != "" {
			parsed, err := strconv.Atoi(limitParam)
			if err != nil || parsed <= 0 {
				writeError(w, http.StatusBadRequest, "invalid limit")
				return
			}
			limit = min(parsed, maxActivityPage)
		}

		entries, err := repo.ListRecent(r.Context(), userID, limit)
		if err != nil {
			logger.WithError(err).WithField("user_id", userID).Error("failed to list activity")
			writeError(w, http.StatusInternalServerError, "Internal Server Error")
			return
		}
		if entries == nil {
			entries = []model.ActivityLogEntry{}
		}
		writeJSON(w, http.StatusOK, entries)
	}
}

func HealthHandler(ctrl botController) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status":      "healthy",
			"activeUsers": ctrl.ActiveUsers(),
			"timestamp":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}
