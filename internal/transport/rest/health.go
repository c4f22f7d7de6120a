package rest

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"time"
)

type HealthStatus string

const (
	HealthHealthy   HealthStatus = "healthy"
	HealthUnhealthy HealthStatus = "unhealthy"
)

const healthTimeout = 2 * time.Second

type HealthResponse struct {
	Status     HealthStatus          `json:"status"`
	CheckedAt  time.Time             `json:"checked_at"`
	Components map[string]CheckEntry `json:"components"`
}

type CheckEntry struct {
	Status     HealthStatus   `json:"status"`
	Message    string         `json:"message,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
	DurationMs int64          `json:"duration_ms"`
}

// backlogQueries count the rows the sweeps and provider callbacks are still expected to settle.
// A failing query also means the schema is missing.
var backlogQueries = map[string]string{
	"active_holds":     `SELECT COUNT(*) FROM bookings WHERE status = 'HOLD'`,
	"pending_payments": `SELECT COUNT(*) FROM payments WHERE status = 'PENDING'`,
}

type HealthHandler struct {
	db *sql.DB
}

func NewHealthHandler(db *sql.DB) *HealthHandler {
	return &HealthHandler{db: db}
}

func (h *HealthHandler) pingHandler(w http.ResponseWriter, r *http.Request) {
	writeHealth(w, http.StatusOK, map[string]string{"status": "OK"})
}

// healthCheckHandler reports readiness. The booking store is the only hard dependency; the payment
// provider is left out because its outages surface per request as gateway errors.
func (h *HealthHandler) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	components := map[string]CheckEntry{
		"postgres": timed(func() CheckEntry { return h.checkConnection(ctx) }),
	}
	if components["postgres"].Status == HealthHealthy {
		components["backlog"] = timed(func() CheckEntry { return h.checkBacklog(ctx) })
	}

	resp := HealthResponse{Status: HealthHealthy, CheckedAt: time.Now().UTC(), Components: components}
	for _, c := range components {
		if c.Status != HealthHealthy {
			resp.Status = HealthUnhealthy
		}
	}

	statusCode := http.StatusOK
	if resp.Status == HealthUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}
	writeHealth(w, statusCode, resp)
}

func (h *HealthHandler) checkConnection(ctx context.Context) CheckEntry {
	if err := h.db.PingContext(ctx); err != nil {
		return CheckEntry{Status: HealthUnhealthy, Message: err.Error()}
	}
	stats := h.db.Stats()
	return CheckEntry{
		Status: HealthHealthy,
		Details: map[string]any{
			"open_connections": stats.OpenConnections,
			"in_use":           stats.InUse,
		},
	}
}

func (h *HealthHandler) checkBacklog(ctx context.Context) CheckEntry {
	details := make(map[string]any, len(backlogQueries))
	for name, query := range backlogQueries {
		var n int64
		if err := h.db.QueryRowContext(ctx, query).Scan(&n); err != nil {
			return CheckEntry{Status: HealthUnhealthy, Message: name + ": " + err.Error()}
		}
		details[name] = n
	}
	return CheckEntry{Status: HealthHealthy, Details: details}
}

func timed(check func() CheckEntry) CheckEntry {
	start := time.Now()
	entry := check()
	entry.DurationMs = time.Since(start).Milliseconds()
	return entry
}

func writeHealth(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
