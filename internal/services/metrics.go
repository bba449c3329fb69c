package services

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Rapid-Works/RapidWorks-sub002/internal/logging"
)

// Metrics tracks worker statistics
type Metrics struct {
	// Events and fan-out
	EventsReceived    atomic.Int64
	Recipients        atomic.Int64
	RecipientsSkipped atomic.Int64

	// Channels
	PushSent        atomic.Int64
	PushErrors      atomic.Int64
	TokensDeleted   atomic.Int64
	HistoryRecorded atomic.Int64
	HistoryErrors   atomic.Int64
	EmailsSent      atomic.Int64
	EmailErrors     atomic.Int64

	// External relays
	RelaySubmitted atomic.Int64
	RelayErrors    atomic.Int64
	TeamsPosted    atomic.Int64
	TeamsErrors    atomic.Int64

	// Timing
	TotalPushProcessingTimeMs atomic.Int64
	StartTime                 time.Time
}

// NewMetrics creates a new Metrics instance
func NewMetrics() *Metrics {
	return &Metrics{
		StartTime: time.Now(),
	}
}

// Register exposes the counters on a Prometheus registry. The atomics stay the
// source of truth; Prometheus reads them on scrape.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	counters := []struct {
		name string
		help string
		v    *atomic.Int64
	}{
		{"rapidworks_events_received_total", "Source events received", &m.EventsReceived},
		{"rapidworks_recipients_total", "Recipients processed", &m.Recipients},
		{"rapidworks_recipients_skipped_total", "Recipients skipped (no identity or counterpart)", &m.RecipientsSkipped},
		{"rapidworks_push_sent_total", "Push notifications delivered to the provider", &m.PushSent},
		{"rapidworks_push_errors_total", "Push sends that failed", &m.PushErrors},
		{"rapidworks_tokens_deleted_total", "Tokens removed after permanent failures", &m.TokensDeleted},
		{"rapidworks_history_recorded_total", "Notification history records written", &m.HistoryRecorded},
		{"rapidworks_history_errors_total", "Notification history writes that failed", &m.HistoryErrors},
		{"rapidworks_emails_sent_total", "Notification emails sent", &m.EmailsSent},
		{"rapidworks_email_errors_total", "Notification emails that failed", &m.EmailErrors},
		{"rapidworks_relay_submitted_total", "Records relayed to Airtable", &m.RelaySubmitted},
		{"rapidworks_relay_errors_total", "Airtable relay failures", &m.RelayErrors},
		{"rapidworks_teams_posted_total", "Teams webhook messages posted", &m.TeamsPosted},
		{"rapidworks_teams_errors_total", "Teams webhook failures", &m.TeamsErrors},
	}

	for _, c := range counters {
		v := c.v
		collector := prometheus.NewCounterFunc(
			prometheus.CounterOpts{Name: c.name, Help: c.help},
			func() float64 { return float64(v.Load()) },
		)
		if err := reg.Register(collector); err != nil {
			return err
		}
	}

	return reg.Register(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{Name: "rapidworks_uptime_seconds", Help: "Seconds since the worker started"},
		func() float64 { return time.Since(m.StartTime).Seconds() },
	))
}

// LogMetricsPeriodically logs metrics at regular intervals
func LogMetricsPeriodically(ctx context.Context, m *Metrics, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// Log final metrics before shutdown
			LogMetrics(m)
			return
		case <-ticker.C:
			LogMetrics(m)
		}
	}
}

// LogMetrics outputs current metrics to the log
func LogMetrics(m *Metrics) {
	uptime := time.Since(m.StartTime)

	pushSent := m.PushSent.Load()
	pushErrors := m.PushErrors.Load()

	avgPushProcessingTime := float64(0)
	if pushSent+pushErrors > 0 {
		avgPushProcessingTime = float64(m.TotalPushProcessingTimeMs.Load()) / float64(pushSent+pushErrors)
	}

	logging.Info().
		Str("uptime", uptime.Round(time.Second).String()).
		Int64("events", m.EventsReceived.Load()).
		Int64("recipients", m.Recipients.Load()).
		Int64("recipients_skipped", m.RecipientsSkipped.Load()).
		Int64("push_sent", pushSent).
		Int64("push_errors", pushErrors).
		Int64("tokens_deleted", m.TokensDeleted.Load()).
		Int64("history_recorded", m.HistoryRecorded.Load()).
		Int64("history_errors", m.HistoryErrors.Load()).
		Int64("emails_sent", m.EmailsSent.Load()).
		Int64("email_errors", m.EmailErrors.Load()).
		Int64("relay_submitted", m.RelaySubmitted.Load()).
		Int64("relay_errors", m.RelayErrors.Load()).
		Int64("teams_posted", m.TeamsPosted.Load()).
		Int64("teams_errors", m.TeamsErrors.Load()).
		Float64("avg_push_ms", avgPushProcessingTime).
		Msg("metrics report")
}
