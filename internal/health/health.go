// Package health serves liveness and runtime status over HTTP.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"tunepilot/internal/music/engine"
	"tunepilot/internal/version"
)

// RunServer starts the status HTTP server and blocks until ctx is cancelled
// or the listener fails; run in a goroutine.
func RunServer(ctx context.Context, addr string, eng *engine.Engine, log *zap.Logger) {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})

	status := func(w http.ResponseWriter, _ *http.Request) {
		s := eng.Stats()
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"status":       "ok",
			"name":         version.AppName,
			"version":      version.AppVersion,
			"uptime":       s.Uptime.Round(time.Second).String(),
			"total_plays":  s.TotalPlays,
			"total_users":  s.TotalUsers,
			"active_chats": s.ActiveChats,
			"queued":       s.Queued,
		})
	}
	mux.HandleFunc("/health", status)
	mux.HandleFunc("/status", status)

	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutCtx) //nolint:errcheck
	}()

	log.Info("health server listening", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		// Do not kill the process over a status endpoint.
		log.Error("health server exited", zap.Error(err))
	}
}
