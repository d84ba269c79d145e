// Package server exposes the HTTP surface: health, status, and metrics.
package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/onnwee/record-herald/state"
)

// NewMux returns the HTTP handler with all routes.
func NewMux(store *state.Store) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", handleHealthz(store))
	mux.HandleFunc("/status", handleStatus(store))
	return mux
}

// handleHealthz responds to liveness probes by checking that the state
// store is readable.
func handleHealthz(store *state.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := store.Load(); err != nil {
			http.Error(w, "unhealthy", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}

// handleStatus reports a snapshot summary of the persisted pipeline state.
func handleStatus(store *state.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, err := store.Load()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		openCount := 0
		for _, a := range st.RecentScores {
			if a.Open {
				openCount++
			}
		}
		lastPoll := ""
		if st.LastPoll > 0 {
			lastPoll = time.Unix(st.LastPoll, 0).UTC().Format(time.RFC3339)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"last_poll":            lastPoll,
			"video_queue_depth":    len(st.VideoQueue),
			"open_announcements":   openCount,
			"recent_announcements": len(st.RecentScores),
			"subscribed_channels":  len(st.Subscriptions),
		})
	}
}
