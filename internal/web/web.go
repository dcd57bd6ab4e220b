// Package web serves the daemon-mode HTTP surface: /health for liveness
// probes and /metrics for Prometheus scrapes.
package web

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	appLog "github.com/illixion/CalendarTransformer/internal/log"
)

// Server exposes daemon status over HTTP.
type Server struct {
	mux     *http.ServeMux
	started time.Time
}

// NewServer constructs the handler set.
func NewServer() *Server {
	s := &Server{
		mux:     http.NewServeMux(),
		started: time.Now(),
	}
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.Handle("/metrics", promhttp.Handler())
	return s
}

// Handler returns the underlying http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":         "ok",
		"uptime_seconds": int(time.Since(s.started).Seconds()),
	})
}

// Start runs the listener until ctx is canceled, then shuts down
// gracefully. Intended to be called from a goroutine in daemon mode.
func Start(ctx context.Context, listen string) {
	srv := &http.Server{
		Addr:         listen,
		Handler:      NewServer().Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutCtx)
	}()

	appLog.Info("http server starting", "listen", listen)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		appLog.Error("http server stopped", err, "listen", listen)
	}
}
