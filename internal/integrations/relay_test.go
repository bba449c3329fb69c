package integrations

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goccy/go-json"

	"github.com/Rapid-Works/RapidWorks-sub002/internal/config"
)

func TestAirtableSubmit(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"rec123","createdTime":"2026-01-01T00:00:00.000Z","fields":{"Name":"Ada"}}`))
	}))
	defer server.Close()

	a := NewAirtable(config.AirtableConfig{APIKey: "key1", BaseID: "app1", BaseURL: server.URL})
	rec, err := a.Submit(context.Background(), "Service Requests", map[string]interface{}{"Name": "Ada"})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if rec.ID != "rec123" {
		t.Errorf("record id = %q, want rec123", rec.ID)
	}
	if gotPath != "/v0/app1/Service%20Requests" {
		t.Errorf("path = %q", gotPath)
	}
	if gotAuth != "Bearer key1" {
		t.Errorf("authorization = %q", gotAuth)
	}
	if gotBody["typecast"] != true {
		t.Errorf("expected typecast=true, got %v", gotBody["typecast"])
	}
	fields, _ := gotBody["fields"].(map[string]interface{})
	if fields["Name"] != "Ada" {
		t.Errorf("fields = %v", gotBody["fields"])
	}
}

func TestAirtableSubmitError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"error":{"type":"UNKNOWN_FIELD_NAME","message":"Unknown field name: \"Foo\""}}`))
	}))
	defer server.Close()

	a := NewAirtable(config.AirtableConfig{APIKey: "key1", BaseID: "app1", BaseURL: server.URL})
	_, err := a.Submit(context.Background(), "T", map[string]interface{}{"Foo": 1})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "422") || !strings.Contains(err.Error(), "Unknown field name") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAirtableDisabled(t *testing.T) {
	a := NewAirtable(config.AirtableConfig{})
	if _, err := a.Submit(context.Background(), "T", nil); !errors.Is(err, ErrRelayDisabled) {
		t.Fatalf("Submit() error = %v, want ErrRelayDisabled", err)
	}
}

func TestTeamsPost(t *testing.T) {
	var body []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("1"))
	}))
	defer server.Close()

	card := NewCard("New task request", "Logo redesign", []CardFact{{Title: "Customer", Value: "a@x.com"}}, "https://rapid-works.io/tasks/t1")
	if err := NewTeams(server.URL).Post(context.Background(), card); err != nil {
		t.Fatalf("Post() error = %v", err)
	}

	var msg struct {
		Type        string `json:"type"`
		Attachments []struct {
			ContentType string       `json:"contentType"`
			Content     AdaptiveCard `json:"content"`
		} `json:"attachments"`
	}
	if err := json.Unmarshal(body, &msg); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if msg.Type != "message" || len(msg.Attachments) != 1 {
		t.Fatalf("unexpected envelope: %s", body)
	}
	att := msg.Attachments[0]
	if att.ContentType != "application/vnd.microsoft.card.adaptive" {
		t.Errorf("contentType = %q", att.ContentType)
	}
	if len(att.Content.Body) != 3 || att.Content.Body[2].Facts[0].Value != "a@x.com" {
		t.Errorf("unexpected card body: %+v", att.Content.Body)
	}
	if len(att.Content.Actions) != 1 {
		t.Errorf("expected open-url action")
	}
}

func TestTeamsPostFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("Webhook message delivery failed"))
	}))
	defer server.Close()

	err := NewTeams(server.URL).Post(context.Background(), NewCard("t", "", nil, ""))
	if err == nil || !strings.Contains(err.Error(), "400") {
		t.Fatalf("Post() error = %v, want 400", err)
	}

	if err := NewTeams("").Post(context.Background(), NewCard("t", "", nil, "")); !errors.Is(err, ErrTeamsDisabled) {
		t.Fatalf("Post() error = %v, want ErrTeamsDisabled", err)
	}
}
