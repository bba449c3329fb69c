package api

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Rapid-Works/RapidWorks-sub002/internal/config"
	"github.com/Rapid-Works/RapidWorks-sub002/internal/integrations"
	"github.com/Rapid-Works/RapidWorks-sub002/internal/models"
	"github.com/Rapid-Works/RapidWorks-sub002/internal/services"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubAirtable struct {
	table  string
	fields map[string]interface{}
	err    error
}

func (s *stubAirtable) Submit(_ context.Context, table string, fields map[string]interface{}) (*integrations.AirtableRecord, error) {
	s.table, s.fields = table, fields
	if s.err != nil {
		return nil, s.err
	}
	return &integrations.AirtableRecord{ID: "rec42"}, nil
}

type stubTeams struct {
	cards int
}

func (s *stubTeams) Post(_ context.Context, _ integrations.AdaptiveCard) error {
	s.cards++
	return nil
}

type stubAssistant struct {
	reply  string
	fields map[string]string
	err    error
}

func (s *stubAssistant) Chat(_ context.Context, _ []integrations.ChatMessage) (string, error) {
	return s.reply, s.err
}

func (s *stubAssistant) Extract(_ context.Context, _ string, _ []string) (map[string]string, error) {
	return s.fields, s.err
}

type stubTokens struct {
	records []models.TokenRecord
}

func (s *stubTokens) FindTokensByEmail(_ context.Context, email string) ([]models.TokenRecord, error) {
	var out []models.TokenRecord
	for _, r := range s.records {
		if r.Email == email {
			out = append(out, r)
		}
	}
	return out, nil
}

type stubDispatcher struct {
	live, dry int
}

func (s *stubDispatcher) Send(_ context.Context, tokens []string, _ models.PushPayload) models.SendResult {
	s.live++
	return models.SendResult{SentCount: len(tokens), Errors: []models.TokenError{}}
}

func (s *stubDispatcher) SendDryRun(_ context.Context, tokens []string, _ models.PushPayload) models.SendResult {
	s.dry++
	return models.SendResult{SentCount: len(tokens), Errors: []models.TokenError{}}
}

type stubIdentity struct{}

func (stubIdentity) ResolveUserID(_ context.Context, email string) (string, error) {
	if email == "a@acme.io" {
		return "uid-a", nil
	}
	return "", integrations.ErrUserNotFound
}

type stubHistory struct {
	entries []models.HistoryEntry
}

func (s *stubHistory) Record(_ context.Context, _ string, entry models.HistoryEntry) bool {
	s.entries = append(s.entries, entry)
	return true
}

func testConfig() *config.Config {
	return &config.Config{
		WorkerID:   "test-worker",
		HTTPPort:   "0",
		AppBaseURL: "https://rapid-works.io",
		Airtable: config.AirtableConfig{
			ServiceTable:    "Service Requests",
			NewsletterTable: "Newsletter",
		},
	}
}

func newTestRouter(deps Deps) *gin.Engine {
	cfg := testConfig()
	return NewRouter(cfg, NewHandler(cfg, deps), nil)
}

func doJSON(t *testing.T, r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if s, ok := body.(string); ok {
		buf.WriteString(s)
	} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
		t.Fatalf("encode body: %v", err)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestValidateEmail(t *testing.T) {
	r := newTestRouter(Deps{})

	tests := []struct {
		email     string
		wantValid bool
	}{
		{"founder@acme.io", true},
		{"someone@gmail.com", false},
		{"Someone@GMX.de", false},
		{"not-an-email", false},
	}

	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			w := doJSON(t, r, http.MethodPost, "/api/validate-email", map[string]string{"email": tt.email})
			if w.Code != http.StatusOK {
				t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
			}
			var resp ValidateEmailResponse
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Valid != tt.wantValid {
				t.Errorf("valid = %v, want %v (reason %q)", resp.Valid, tt.wantValid, resp.Reason)
			}
		})
	}
}

func TestValidateEmailMissingField(t *testing.T) {
	w := doJSON(t, newTestRouter(Deps{}), http.MethodPost, "/api/validate-email", map[string]string{})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
	var resp ErrorResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Code != CodeInvalidArgument || !strings.Contains(resp.Message, "Email") {
		t.Errorf("resp = %+v", resp)
	}
}

func TestSubmitForm(t *testing.T) {
	air, teams := &stubAirtable{}, &stubTeams{}
	metrics := services.NewMetrics()
	r := newTestRouter(Deps{Airtable: air, Teams: teams, Metrics: metrics})

	w := doJSON(t, r, http.MethodPost, "/api/forms/service", map[string]string{
		"name":    "Ada",
		"email":   "ada@acme.io",
		"service": "Branding",
		"company": "",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp FormResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if !resp.Success || resp.RecordID != "rec42" {
		t.Errorf("resp = %+v", resp)
	}
	if air.table != "Service Requests" || air.fields["Service"] != "Branding" {
		t.Errorf("submitted %q %v", air.table, air.fields)
	}
	if _, ok := air.fields["Company"]; ok {
		t.Error("blank fields should be dropped")
	}
	if teams.cards != 1 || metrics.RelaySubmitted.Load() != 1 {
		t.Errorf("cards = %d relay = %d", teams.cards, metrics.RelaySubmitted.Load())
	}
}

func TestSubmitFormErrors(t *testing.T) {
	t.Run("unknown kind", func(t *testing.T) {
		w := doJSON(t, newTestRouter(Deps{Airtable: &stubAirtable{}}), http.MethodPost, "/api/forms/careers", map[string]string{"email": "a@acme.io"})
		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d", w.Code)
		}
	})

	t.Run("validation failure", func(t *testing.T) {
		w := doJSON(t, newTestRouter(Deps{Airtable: &stubAirtable{}}), http.MethodPost, "/api/forms/newsletter", map[string]string{"email": "nope"})
		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d", w.Code)
		}
	})

	t.Run("malformed json", func(t *testing.T) {
		w := doJSON(t, newTestRouter(Deps{Airtable: &stubAirtable{}}), http.MethodPost, "/api/forms/newsletter", "{")
		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d", w.Code)
		}
	})

	t.Run("relay failure is a structured result", func(t *testing.T) {
		air := &stubAirtable{err: errors.New("airtable returned 422: bad field")}
		teams := &stubTeams{}
		w := doJSON(t, newTestRouter(Deps{Airtable: air, Teams: teams}), http.MethodPost, "/api/forms/newsletter", map[string]string{"email": "a@acme.io"})
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d", w.Code)
		}
		var resp FormResponse
		_ = json.Unmarshal(w.Body.Bytes(), &resp)
		if resp.Success || !strings.Contains(resp.Error, "422") {
			t.Errorf("resp = %+v", resp)
		}
		if teams.cards != 0 {
			t.Error("no card for failed submissions")
		}
	})

	t.Run("relay not configured", func(t *testing.T) {
		w := doJSON(t, newTestRouter(Deps{}), http.MethodPost, "/api/forms/newsletter", map[string]string{"email": "a@acme.io"})
		if w.Code != http.StatusServiceUnavailable {
			t.Errorf("status = %d", w.Code)
		}
	})

	t.Run("airtable without credentials", func(t *testing.T) {
		metrics := services.NewMetrics()
		teams := &stubTeams{}
		deps := Deps{Airtable: integrations.NewAirtable(config.AirtableConfig{}), Teams: teams, Metrics: metrics}
		w := doJSON(t, newTestRouter(deps), http.MethodPost, "/api/forms/newsletter", map[string]string{"email": "a@acme.io"})
		if w.Code != http.StatusServiceUnavailable {
			t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
		}
		var resp ErrorResponse
		_ = json.Unmarshal(w.Body.Bytes(), &resp)
		if resp.Code != CodeUnavailable {
			t.Errorf("code = %q, want %q", resp.Code, CodeUnavailable)
		}
		if got := metrics.RelayErrors.Load(); got != 0 {
			t.Errorf("RelayErrors = %d, want 0", got)
		}
		if teams.cards != 0 {
			t.Error("no card without a relay")
		}
	})
}

func TestAssistantEndpoints(t *testing.T) {
	assistant := &stubAssistant{reply: "Hello!", fields: map[string]string{"company": "Acme"}}
	r := newTestRouter(Deps{Assistant: assistant})

	w := doJSON(t, r, http.MethodPost, "/api/ai/chat", map[string]interface{}{
		"messages": []map[string]string{{"role": "user", "content": "Hi"}},
	})
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "Hello!") {
		t.Errorf("chat: %d %s", w.Code, w.Body.String())
	}

	w = doJSON(t, r, http.MethodPost, "/api/ai/chat", map[string]interface{}{
		"messages": []map[string]string{{"role": "system", "content": "Hi"}},
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("invalid role: status = %d", w.Code)
	}

	w = doJSON(t, r, http.MethodPost, "/api/ai/extract", map[string]interface{}{
		"text":   "Acme GmbH",
		"fields": []string{"company"},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("extract: %d %s", w.Code, w.Body.String())
	}
	var resp ExtractResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Fields["company"] != "Acme" {
		t.Errorf("fields = %v", resp.Fields)
	}

	w = doJSON(t, newTestRouter(Deps{}), http.MethodPost, "/api/ai/extract", map[string]interface{}{
		"text":   "x",
		"fields": []string{"a"},
	})
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("disabled assistant: status = %d", w.Code)
	}
}

func TestTestNotification(t *testing.T) {
	tokens := &stubTokens{records: []models.TokenRecord{
		{Email: "a@acme.io", Token: "T1"},
		{Email: "a@acme.io", Token: "T2"},
	}}

	t.Run("live send records history", func(t *testing.T) {
		dispatcher, history := &stubDispatcher{}, &stubHistory{}
		r := newTestRouter(Deps{Tokens: tokens, Dispatcher: dispatcher, Identity: stubIdentity{}, History: history})

		w := doJSON(t, r, http.MethodPost, "/api/notifications/test", map[string]interface{}{"email": "a@acme.io"})
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
		}
		var resp TestNotificationResponse
		_ = json.Unmarshal(w.Body.Bytes(), &resp)
		if resp.Tokens != 2 || resp.Result.SentCount != 2 || !resp.Recorded {
			t.Errorf("resp = %+v", resp)
		}
		if dispatcher.live != 1 || dispatcher.dry != 0 {
			t.Errorf("live=%d dry=%d", dispatcher.live, dispatcher.dry)
		}
		if len(history.entries) != 1 || history.entries[0].Type != "test" {
			t.Errorf("history = %+v", history.entries)
		}
	})

	t.Run("dry run", func(t *testing.T) {
		dispatcher, history := &stubDispatcher{}, &stubHistory{}
		r := newTestRouter(Deps{Tokens: tokens, Dispatcher: dispatcher, Identity: stubIdentity{}, History: history})

		w := doJSON(t, r, http.MethodPost, "/api/notifications/test", map[string]interface{}{"email": "a@acme.io", "dryRun": true, "title": "Ping"})
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d", w.Code)
		}
		if dispatcher.dry != 1 || dispatcher.live != 0 || len(history.entries) != 0 {
			t.Errorf("live=%d dry=%d history=%d", dispatcher.live, dispatcher.dry, len(history.entries))
		}
	})

	t.Run("dispatch not configured", func(t *testing.T) {
		w := doJSON(t, newTestRouter(Deps{Tokens: tokens}), http.MethodPost, "/api/notifications/test", map[string]interface{}{"email": "a@acme.io"})
		if w.Code != http.StatusServiceUnavailable {
			t.Fatalf("status = %d", w.Code)
		}
		var resp ErrorResponse
		_ = json.Unmarshal(w.Body.Bytes(), &resp)
		if resp.Code != CodeUnavailable {
			t.Errorf("code = %q, want %q", resp.Code, CodeUnavailable)
		}
	})

	t.Run("missing email", func(t *testing.T) {
		r := newTestRouter(Deps{Tokens: tokens, Dispatcher: &stubDispatcher{}})
		w := doJSON(t, r, http.MethodPost, "/api/notifications/test", map[string]interface{}{"title": "x"})
		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d", w.Code)
		}
	})
}

func TestHealthAndMetricsRoutes(t *testing.T) {
	cfg := testConfig()
	metrics := services.NewMetrics()
	metrics.PushSent.Add(3)
	reg := prometheus.NewRegistry()
	if err := metrics.Register(reg); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	r := NewRouter(cfg, NewHandler(cfg, Deps{Metrics: metrics}), reg)

	for _, path := range []string{"/health", "/healthz"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "test-worker") {
			t.Errorf("%s: %d %s", path, w.Code, w.Body.String())
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "rapidworks_push_sent_total 3") {
		t.Errorf("metrics: %d %s", w.Code, w.Body.String())
	}
}

func TestRequestIDHeader(t *testing.T) {
	r := newTestRouter(Deps{})
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if got := w.Header().Get(requestIDHeader); got != "abc-123" {
		t.Errorf("request id = %q", got)
	}
}
