package persistence

import (
	"encoding/json"
	"net/http"

	"github.com/apogeecmb/smartSprinkler/internal/model/messages"
)

// LatestFunc returns the most recent status record, if any.
type LatestFunc func() (messages.StatusRecord, bool)

// NewHTTPMux serves /healthz and /status/latest. More handlers can be added by the caller.
func NewHTTPMux(latest LatestFunc) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("ok")) })

	// GET /status/latest
	mux.HandleFunc("/status/latest", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		rec, ok := latest()
		if !ok {
			http.Error(w, "no cycle has completed yet", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(rec)
	})

	return mux
}
