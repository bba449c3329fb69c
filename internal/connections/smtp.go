package connections

import (
	"context"
	"crypto/tls"
	"net"
	"net/smtp"
	"time"

	"github.com/Rapid-Works/RapidWorks-sub002/internal/config"
)

const smtpDialTimeout = 10 * time.Second

// DialSMTP opens an authenticated STARTTLS connection.
func DialSMTP(ctx context.Context, cfg config.SmtpConfig) (*smtp.Client, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dialer := net.Dialer{Timeout: smtpDialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(cfg.Host, cfg.Port))
	if err != nil {
		return nil, err
	}

	client, err := smtp.NewClient(conn, cfg.Host)
	if err != nil {
		conn.Close()
		return nil, err
	}

	if err := client.StartTLS(&tls.Config{ServerName: cfg.Host}); err != nil {
		client.Close()
		return nil, err
	}

	auth := smtp.PlainAuth("", cfg.From, cfg.Password, cfg.Host)
	if err := client.Auth(auth); err != nil {
		client.Close()
		return nil, err
	}

	return client, nil
}
