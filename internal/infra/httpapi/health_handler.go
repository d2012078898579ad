package httpapi

import (
	"context"
	"net/http"
	"time"
)

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type HealthHandler struct {
	db Pinger
}

func NewHealthHandler(db Pinger) *HealthHandler {
	return &HealthHandler{db: db}
}

func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	data := map[string]string{"status": "ok", "db": "ok"}
	status := http.StatusOK
	if err := h.db.PingContext(ctx); err != nil {
		data["status"] = "degraded"
		data["db"] = err.Error()
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, data)
}
