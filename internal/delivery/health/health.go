package health

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"covid_slayer/internal/httpresponse"
)

const checkTimeout = 2 * time.Second

// Pinger is a dependency whose reachability is reported by the health check.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	checks map[string]Pinger
	log    *zap.SugaredLogger
	now    func() time.Time
}

func NewHealthHandler(checks map[string]Pinger, log *zap.SugaredLogger) *HealthHandler {
	return &HealthHandler{checks: checks, log: log, now: time.Now}
}

// Check pings every dependency and returns the per-dependency status.
func (h *HealthHandler) Check(ctx context.Context) (map[string]string, bool) {
	statuses := make(map[string]string, len(h.checks))
	healthy := true
	for name, p := range h.checks {
		pingCtx, cancel := context.WithTimeout(ctx, checkTimeout)
		err := p.Ping(pingCtx)
		cancel()
		if err != nil {
			h.log.Warnf("health: %s unreachable: %v", name, err)
			statuses[name] = "down"
			healthy = false
			continue
		}
		statuses[name] = "up"
	}
	return statuses, healthy
}

func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	statuses, healthy := h.Check(r.Context())
	body := httpresponse.Payload{
		"message":   "Covid Slayer API is running",
		"timestamp": h.now().UTC(),
		"checks":    statuses,
	}
	if !healthy {
		body["success"] = false
		body["message"] = "Covid Slayer API is degraded"
		httpresponse.WriteResponseWithStatus(w, http.StatusServiceUnavailable, body)
		return
	}
	httpresponse.WriteOK(w, http.StatusOK, body)
}

func HandleNotFound(w http.ResponseWriter, r *http.Request) {
	httpresponse.WriteMessage(w, http.StatusNotFound, "Route not found")
}
