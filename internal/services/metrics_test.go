package services

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsRegister(t *testing.T) {
	m := NewMetrics()
	reg := prometheus.NewRegistry()
	if err := m.Register(reg); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	m.PushSent.Add(3)
	m.TokensDeleted.Add(1)

	expected := `
# HELP rapidworks_push_sent_total Push notifications delivered to the provider
# TYPE rapidworks_push_sent_total counter
rapidworks_push_sent_total 3
# HELP rapidworks_tokens_deleted_total Tokens removed after permanent failures
# TYPE rapidworks_tokens_deleted_total counter
rapidworks_tokens_deleted_total 1
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"rapidworks_push_sent_total", "rapidworks_tokens_deleted_total"); err != nil {
		t.Errorf("unexpected metrics: %v", err)
	}

	// Registering twice on the same registry must fail
	if err := m.Register(reg); err == nil {
		t.Error("expected duplicate registration error")
	}
}

func TestHealthCheckHandler(t *testing.T) {
	m := NewMetrics()
	m.EventsReceived.Add(2)
	m.PushErrors.Add(1)
	m.EmailErrors.Add(2)

	rec := httptest.NewRecorder()
	HealthCheckHandler(m, "worker-1")(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var status HealthStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if status.WorkerID != "worker-1" || status.Status != "healthy" {
		t.Errorf("unexpected status %+v", status)
	}
	if status.EventsReceived != 2 {
		t.Errorf("EventsReceived = %d, want 2", status.EventsReceived)
	}
	if status.TotalErrors != 3 {
		t.Errorf("TotalErrors = %d, want 3", status.TotalErrors)
	}
}
