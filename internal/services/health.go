package services

import (
	"net/http"
	"time"

	"github.com/goccy/go-json"
)

// HealthStatus represents the health check response structure
type HealthStatus struct {
	Status          string `json:"status"`
	WorkerID        string `json:"worker_id"`
	Uptime          string `json:"uptime"`
	EventsReceived  int64  `json:"events_received"`
	PushSent        int64  `json:"push_sent"`
	HistoryRecorded int64  `json:"history_recorded"`
	EmailsSent      int64  `json:"emails_sent"`
	TotalErrors     int64  `json:"total_errors"`
}

// Health snapshots the metrics into a status document.
func Health(metrics *Metrics, workerID string) HealthStatus {
	totalErrors := metrics.PushErrors.Load() +
		metrics.HistoryErrors.Load() +
		metrics.EmailErrors.Load() +
		metrics.RelayErrors.Load() +
		metrics.TeamsErrors.Load()

	return HealthStatus{
		Status:          "healthy",
		WorkerID:        workerID,
		Uptime:          time.Since(metrics.StartTime).Round(time.Second).String(),
		EventsReceived:  metrics.EventsReceived.Load(),
		PushSent:        metrics.PushSent.Load(),
		HistoryRecorded: metrics.HistoryRecorded.Load(),
		EmailsSent:      metrics.EmailsSent.Load(),
		TotalErrors:     totalErrors,
	}
}

// HealthCheckHandler returns an HTTP handler for health checks
func HealthCheckHandler(metrics *Metrics, workerID string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(Health(metrics, workerID))
	}
}
