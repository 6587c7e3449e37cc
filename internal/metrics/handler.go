package metrics

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Check reports the state of one component for /health. A non-nil error
// marks the collector unhealthy.
type Check struct {
	Name string
	Fn   func(ctx context.Context) (any, error)
}

// NewHandler serves Prometheus metrics at metricsPath and a JSON health
// report at /health.
func NewHandler(m *Metrics, metricsPath string, checks ...Check) http.Handler {
	if metricsPath == "" {
		metricsPath = "/metrics"
	}

	mux := http.NewServeMux()
	mux.Handle(metricsPath, promhttp.HandlerFor(m.Registry(), promhttp.HandlerOpts{}))

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		health := struct {
			Status     string         `json:"status"`
			Components map[string]any `json:"components"`
		}{
			Status:     "healthy",
			Components: make(map[string]any),
		}

		for _, c := range checks {
			detail, err := c.Fn(ctx)
			if err != nil {
				health.Status = "unhealthy"
				health.Components[c.Name] = map[string]string{
					"status": "error",
					"error":  err.Error(),
				}
				continue
			}
			health.Components[c.Name] = detail
		}

		w.Header().Set("Content-Type", "application/json")
		if health.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(health)
	})

	return mux
}
