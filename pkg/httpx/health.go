package httpx

import (
	"context"
	"net/http"
	"time"
)

const healthTimeout = 2 * time.Second

// HealthChecker is anything with a Ping: the database, the Redis client and
// the event bus all qualify.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// HealthChecks lists the dependencies probed by /health. A nil checker is
// reported as "disabled" and does not degrade the status. Environment is
// echoed back so operators can tell which settings bundle is live.
type HealthChecks struct {
	Environment string
	Database    HealthChecker
	Redis       HealthChecker
	EventBus    HealthChecker
}

type healthResponse struct {
	Status      string `json:"status"`
	Environment string `json:"environment,omitempty"`
	Database    string `json:"database"`
	Redis       string `json:"redis"`
	EventBus    string `json:"event_bus"`
}

// HealthHandler probes every configured checker and answers 200 when all of
// them respond, 503 otherwise.
func HealthHandler(checks HealthChecks) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()

		degraded := false
		probe := func(c HealthChecker) string {
			switch {
			case c == nil:
				return "disabled"
			case c.Ping(ctx) != nil:
				degraded = true
				return "unreachable"
			default:
				return "ok"
			}
		}
		resp := healthResponse{
			Status:      "ok",
			Environment: checks.Environment,
			Database:    probe(checks.Database),
			Redis:       probe(checks.Redis),
			EventBus:    probe(checks.EventBus),
		}

		status := http.StatusOK
		if degraded {
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
		}
		JSON(w, status, resp)
	}
}
