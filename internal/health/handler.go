// Package health serves liveness and readiness probes.
package health

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"time"
)

// Handler answers /healthz and /readyz. db may be nil, in which case readiness
// reports ok unconditionally.
type Handler struct {
	db *sql.DB
}

// NewHandler returns a probe handler over db.
func NewHandler(db *sql.DB) *Handler {
	return &Handler{db: db}
}

// Register mounts the probe routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.handleLive)
	mux.HandleFunc("GET /readyz", h.handleReady)
}

type probeBody struct {
	Status string `json:"status"`
}

func (h *Handler) handleLive(w http.ResponseWriter, _ *http.Request) {
	writeProbe(w, http.StatusOK, "ok")
}

func (h *Handler) handleReady(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.PingContext(ctx); err != nil {
			writeProbe(w, http.StatusServiceUnavailable, "database unreachable")
			return
		}
	}
	writeProbe(w, http.StatusOK, "ok")
}

func writeProbe(w http.ResponseWriter, code int, status string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(probeBody{Status: status})
}
