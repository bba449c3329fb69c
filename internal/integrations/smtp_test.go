package integrations

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"

	"github.com/Rapid-Works/RapidWorks-sub002/internal/config"
)

func TestComposeEmail(t *testing.T) {
	msg, err := ComposeEmail("noreply@rapid-works.io", "a@x.com", "Your branding kit is ready!", "<p>Kit <b>Acme</b> &amp; co</p>")
	if err != nil {
		t.Fatalf("ComposeEmail() error = %v", err)
	}

	out := string(msg)
	for _, want := range []string{
		"Subject: Your branding kit is ready!",
		"a@x.com",
		"multipart/alternative",
		"text/plain",
		"text/html",
		"Kit Acme & co",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in message:\n%s", want, out)
		}
	}
}

func TestStripHTMLTags(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"<p>Hello</p>", "Hello"},
		{"<style>p{}</style><b>x</b>&nbsp;y", "x y"},
		{"plain", "plain"},
	}
	for _, tt := range tests {
		if got := stripHTMLTags(tt.in); got != tt.want {
			t.Errorf("stripHTMLTags(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestMailerDialError(t *testing.T) {
	m := NewMailer(config.SmtpConfig{From: "noreply@rapid-works.io", Host: "localhost", Port: "25"})
	dialErr := errors.New("connection refused")
	m.dial = func(context.Context, config.SmtpConfig) (*smtp.Client, error) { return nil, dialErr }

	err := m.SendEmail(context.Background(), "a@x.com", "s", "<p>b</p>")
	if !errors.Is(err, dialErr) {
		t.Fatalf("SendEmail() error = %v, want wrapped dial error", err)
	}
}

func TestMailerClosedPool(t *testing.T) {
	m := NewMailer(config.SmtpConfig{From: "noreply@rapid-works.io"})
	m.Close()
	m.Close() // idempotent

	_, err := m.getConnection(context.Background())
	if !errors.Is(err, errPoolClosed) {
		t.Fatalf("getConnection() error = %v, want errPoolClosed", err)
	}
}
