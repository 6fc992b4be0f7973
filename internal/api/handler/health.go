package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/velia-hr/portal/internal/api/middleware"
	"github.com/velia-hr/portal/internal/api/response"
)

// DBPinger checks database connectivity.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler handles the GET /health endpoint.
type HealthHandler struct {
	db      DBPinger
	version string
}

// NewHealthHandler creates a new HealthHandler. db may be nil, in which case
// the database is reported as disconnected.
func NewHealthHandler(db DBPinger, version string) *HealthHandler {
	return &HealthHandler{db: db, version: version}
}

type databaseStatus struct {
	Connected bool `json:"connected"`
}

type healthData struct {
	Status   string         `json:"status"`
	Version  string         `json:"version"`
	Database databaseStatus `json:"database"`
}

// ServeHTTP reports "healthy" when the database answers a ping within two
// seconds and "degraded" otherwise. Both are served with 200.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	connected := false
	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.Ping(ctx); err != nil {
			slog.Warn("database ping failed", "error", err)
		} else {
			connected = true
		}
	}

	status := "healthy"
	if !connected {
		status = "degraded"
	}

	response.Success(w, http.StatusOK, healthData{
		Status:   status,
		Version:  h.version,
		Database: databaseStatus{Connected: connected},
	}, requestID)
}
