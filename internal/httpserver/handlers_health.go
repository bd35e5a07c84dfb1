package httpserver

import (
	"net/http"
	"time"
)

type healthResponse struct {
	Status          string  `json:"status"`
	UptimeSeconds   float64 `json:"uptime_seconds"`
	HoldCreateAvgMs float64 `json:"hold_create_avg_ms"`
	WebhookAvgMs    float64 `json:"webhook_avg_ms"`
}

// health reports liveness plus rolling latency averages for the two hot
// write paths.
func (h handlers) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:          "ok",
		UptimeSeconds:   time.Since(serverStartTime).Seconds(),
		HoldCreateAvgMs: float64(h.metrics.HoldCreationAverage()) / float64(time.Millisecond),
		WebhookAvgMs:    float64(h.metrics.WebhookAverage()) / float64(time.Millisecond),
	})
}
