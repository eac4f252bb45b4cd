package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	logger "github.com/sirupsen/logrus"

	"futuresbot/src/engine"
	"futuresbot/src/handler"
	"futuresbot/src/repository"
)

// NewRouter wires the bot control routes onto a chi router.
func NewRouter(eng *engine.Engine, activity repository.ActivityLogRepository) http.Handler {
	// Router with middleware
	r := chi.NewRouter()
	// === Global Middleware ===
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	// Public routes
	r.Get("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("OK")); err != nil {
			logger.WithError(err).Error(" \"/healthcheck error")
		}
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", handler.HealthHandler(eng))
		r.Route("/bot", func(r chi.Router) {
			r.Post("/start", handler.StartBotHandler(eng))
			r.Post("/stop", handler.StopBotHandler(eng))
			r.Get("/status/{userID}", handler.BotStatusHandler(eng))
			r.Get("/activity/{userID}", handler.ActivityHandler(activity))
		})
	})

	return r
}

// Run serves h on the configured port until ctx is cancelled, then shuts down gracefully.
func Run(ctx context.Context, cfg *Config, h http.Handler) error {
	// Server setup
	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	// Start server in goroutine
	go func() {
		logger.Infof("Listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Shutdown error")
		return err
	}
	return nil
}
