package integrations

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/smtp"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/emersion/go-message/mail"

	"github.com/Rapid-Works/RapidWorks-sub002/internal/config"
	"github.com/Rapid-Works/RapidWorks-sub002/internal/connections"
	"github.com/Rapid-Works/RapidWorks-sub002/internal/logging"
)

// Connection max age before refresh
const maxConnectionAge = 5 * time.Minute

var errPoolClosed = errors.New("SMTP pool closed")

type smtpConn struct {
	client    *smtp.Client
	createdAt time.Time
}

// Mailer sends notification emails over a small pool of SMTP connections.
type Mailer struct {
	cfg  config.SmtpConfig
	dial func(ctx context.Context, cfg config.SmtpConfig) (*smtp.Client, error)

	mu     sync.Mutex
	pool   chan *smtpConn
	closed bool
}

// NewMailer creates a mailer. Connections are dialed lazily.
func NewMailer(cfg config.SmtpConfig) *Mailer {
	size := cfg.PoolSize
	if size <= 0 {
		size = config.DefaultSmtpPoolSize
	}
	return &Mailer{
		cfg:  cfg,
		dial: connections.DialSMTP,
		pool: make(chan *smtpConn, size),
	}
}

func (m *Mailer) getConnection(ctx context.Context) (*smtpConn, error) {
	for {
		select {
		case c, ok := <-m.pool:
			if !ok {
				return nil, errPoolClosed
			}
			if time.Since(c.createdAt) > maxConnectionAge || c.client.Noop() != nil {
				c.client.Close()
				continue
			}
			return c, nil
		default:
			client, err := m.dial(ctx, m.cfg)
			if err != nil {
				return nil, err
			}
			return &smtpConn{client: client, createdAt: time.Now()}, nil
		}
	}
}

func (m *Mailer) returnConnection(c *smtpConn, healthy bool) {
	if !healthy {
		c.client.Close()
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		c.client.Close()
		return
	}
	select {
	case m.pool <- c:
	default:
		c.client.Close()
	}
}

// Close drains the pool. Further sends fail.
func (m *Mailer) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	close(m.pool)
	for c := range m.pool {
		c.client.Quit()
	}
	logging.Info().Msg("SMTP pool closed")
}

// SendEmail sends an HTML email with a plain text alternative.
func (m *Mailer) SendEmail(ctx context.Context, to, subject, htmlBody string) error {
	msg, err := ComposeEmail(m.cfg.From, to, subject, htmlBody)
	if err != nil {
		return fmt.Errorf("compose email: %w", err)
	}

	c, err := m.getConnection(ctx)
	if err != nil {
		return fmt.Errorf("failed to get SMTP connection: %w", err)
	}

	healthy := true
	defer func() { m.returnConnection(c, healthy) }()

	if err := c.client.Mail(m.cfg.From); err != nil {
		healthy = false
		return err
	}
	if err := c.client.Rcpt(to); err != nil {
		healthy = false
		return err
	}

	wc, err := c.client.Data()
	if err != nil {
		healthy = false
		return err
	}
	if _, err := wc.Write(msg); err != nil {
		healthy = false
		wc.Close()
		return err
	}
	if err := wc.Close(); err != nil {
		healthy = false
		return err
	}
	return c.client.Reset()
}

// ComposeEmail builds a multipart/alternative message.
func ComposeEmail(from, to, subject, htmlBody string) ([]byte, error) {
	var h mail.Header
	h.SetDate(time.Now())
	h.SetAddressList("From", []*mail.Address{{Name: "RapidWorks", Address: from}})
	h.SetAddressList("To", []*mail.Address{{Address: to}})
	h.SetSubject(subject)

	var buf bytes.Buffer
	mw, err := mail.CreateWriter(&buf, h)
	if err != nil {
		return nil, err
	}

	tw, err := mw.CreateInline()
	if err != nil {
		return nil, err
	}

	parts := []struct {
		contentType string
		body        string
	}{
		{"text/plain; charset=utf-8", stripHTMLTags(htmlBody)},
		{"text/html; charset=utf-8", htmlBody},
	}
	for _, p := range parts {
		var ph mail.InlineHeader
		ph.Set("Content-Type", p.contentType)
		w, err := tw.CreatePart(ph)
		if err != nil {
			return nil, err
		}
		if _, err := io.WriteString(w, p.body); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
	}

	if err := tw.Close(); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

var (
	scriptStyleRe = regexp.MustCompile(`(?s)<script[^>]*>.*?</script>|<style[^>]*>.*?</style>`)
	tagRe         = regexp.MustCompile(`<[^>]*>`)
)

// stripHTMLTags removes HTML tags from a string, returning plain text
func stripHTMLTags(html string) string {
	text := scriptStyleRe.ReplaceAllString(html, "")
	text = tagRe.ReplaceAllString(text, "")

	text = strings.ReplaceAll(text, "&nbsp;", " ")
	text = strings.ReplaceAll(text, "&lt;", "<")
	text = strings.ReplaceAll(text, "&gt;", ">")
	text = strings.ReplaceAll(text, "&amp;", "&")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.TrimSpace(text)
}
