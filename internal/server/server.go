// Package server exposes health, readiness, metrics and chat webhooks over HTTP.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"derogation-bot/internal/common/logger"
)

// Check reports whether one dependency is usable.
type Check func(ctx context.Context) error

// Webhook is a chat platform binding that receives events over HTTP.
type Webhook interface {
	Verify(w http.ResponseWriter, r *http.Request)
	Receive(w http.ResponseWriter, r *http.Request)
}

type Options struct {
	Version string
	// Checks run on /ready, keyed by dependency name.
	Checks map[string]Check
	// Webhooks are mounted at /webhooks/{name}.
	Webhooks map[string]Webhook
}

// NewRouter builds the HTTP handler of the bot.
func NewRouter(opts Options, log logger.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(requestLogger(log))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status":  "healthy",
			"version": opts.Version,
			"time":    time.Now().Format(time.RFC3339),
		})
	})
	r.Get("/ready", readyHandler(opts.Checks, log))
	r.Handle("/metrics", promhttp.Handler())

	for name, hook := range opts.Webhooks {
		r.Route("/webhooks/"+name, func(r chi.Router) {
			r.Get("/", hook.Verify)
			r.Post("/", hook.Receive)
		})
	}
	return r
}

func readyHandler(checks map[string]Check, log logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		results := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(ctx); err != nil {
				log.Warn("readiness check failed", map[string]interface{}{"check": name, "error": err})
				results[name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			results[name] = "ok"
		}
		writeJSON(w, status, map[string]interface{}{
			"ready":  status == http.StatusOK,
			"checks": results,
		})
	}
}

func requestLogger(log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Debug("http request", map[string]interface{}{
				"method":     r.Method,
				"path":       r.URL.Path,
				"status":     ww.Status(),
				"durationMs": time.Since(start).Milliseconds(),
				"requestId":  middleware.GetReqID(r.Context()),
			})
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	raw, err := sonic.Marshal(v)
	if err != nil {
		http.Error(w, "encode response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(raw)
}

// Serve runs an HTTP server on addr until ctx is cancelled, then shuts it down gracefully.
func Serve(ctx context.Context, addr string, handler http.Handler, log logger.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", map[string]interface{}{"address": addr})
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	log.Info("http server shutting down", nil)
	return srv.Shutdown(shutdownCtx)
}
