package integrations

import (
	"context"
	"errors"
	"time"

	"firebase.google.com/go/v4/errorutils"
	"firebase.google.com/go/v4/messaging"
	"golang.org/x/time/rate"

	"github.com/Rapid-Works/RapidWorks-sub002/internal/constants"
	"github.com/Rapid-Works/RapidWorks-sub002/internal/logging"
	"github.com/Rapid-Works/RapidWorks-sub002/internal/models"
	"github.com/Rapid-Works/RapidWorks-sub002/internal/services"
)

// MessageSender is the subset of *messaging.Client the dispatcher uses.
type MessageSender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
	SendDryRun(ctx context.Context, message *messaging.Message) (string, error)
}

// TokenRemover deletes tokens the provider reported as permanently invalid.
type TokenRemover interface {
	DeleteToken(ctx context.Context, token string)
}

// PushError carries an explicit provider error code.
type PushError struct {
	Code string
	Err  error
}

func (e *PushError) Error() string {
	if e.Err != nil {
		return e.Code + ": " + e.Err.Error()
	}
	return e.Code
}

func (e *PushError) Unwrap() error { return e.Err }

// ErrorCode maps a send error to a provider error code.
func ErrorCode(err error) string {
	var pe *PushError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &pe):
		return pe.Code
	case messaging.IsUnregistered(err):
		return constants.ErrCodeTokenNotRegistered
	case errorutils.IsInvalidArgument(err):
		// FCM v1 reports malformed registration tokens as INVALID_ARGUMENT
		return constants.ErrCodeInvalidToken
	default:
		return constants.ErrCodeUnknown
	}
}

// IsPermanentTokenError reports whether code means the token will never succeed again.
func IsPermanentTokenError(code string) bool {
	return code == constants.ErrCodeTokenNotRegistered || code == constants.ErrCodeInvalidToken
}

// PushDispatcher sends one rendered payload to a set of tokens, one attempt per token.
type PushDispatcher struct {
	client  MessageSender
	tokens  TokenRemover
	limiter *rate.Limiter
	metrics *services.Metrics
}

func NewPushDispatcher(client MessageSender, tokens TokenRemover, limiter *rate.Limiter, metrics *services.Metrics) *PushDispatcher {
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 1)
	}
	if metrics == nil {
		metrics = services.NewMetrics()
	}
	return &PushDispatcher{
		client:  client,
		tokens:  tokens,
		limiter: limiter,
		metrics: metrics,
	}
}

// Send delivers payload to each token. Permanent token failures trigger exactly one
// registry deletion for that token; other failures are only recorded.
func (d *PushDispatcher) Send(ctx context.Context, tokens []string, payload models.PushPayload) models.SendResult {
	return d.send(ctx, tokens, payload, false)
}

// SendDryRun validates the messages with the provider without delivering them.
// No cleanup happens on dry runs.
func (d *PushDispatcher) SendDryRun(ctx context.Context, tokens []string, payload models.PushPayload) models.SendResult {
	return d.send(ctx, tokens, payload, true)
}

func (d *PushDispatcher) send(ctx context.Context, tokens []string, payload models.PushPayload, dryRun bool) models.SendResult {
	result := models.SendResult{Errors: []models.TokenError{}}

	for _, token := range tokens {
		if token == "" {
			continue
		}

		if err := d.limiter.Wait(ctx); err != nil {
			d.metrics.PushErrors.Add(1)
			result.Errors = append(result.Errors, models.TokenError{
				TokenPrefix: logging.TokenPrefix(token),
				Code:        constants.ErrCodeUnknown,
				Error:       err.Error(),
			})
			continue
		}

		startTime := time.Now()
		msg := BuildMessage(token, payload)

		var err error
		if dryRun {
			_, err = d.client.SendDryRun(ctx, msg)
		} else {
			_, err = d.client.Send(ctx, msg)
		}
		d.metrics.TotalPushProcessingTimeMs.Add(time.Since(startTime).Milliseconds())

		if err == nil {
			result.SentCount++
			d.metrics.PushSent.Add(1)
			logging.Debug().Str("token", logging.TokenPrefix(token)).Bool("dry_run", dryRun).Msg("push sent")
			continue
		}

		code := ErrorCode(err)
		d.metrics.PushErrors.Add(1)
		result.Errors = append(result.Errors, models.TokenError{
			TokenPrefix: logging.TokenPrefix(token),
			Code:        code,
			Error:       err.Error(),
		})
		logging.Warn().Err(err).Str("token", logging.TokenPrefix(token)).Str("code", code).Msg("push failed")

		if IsPermanentTokenError(code) && !dryRun && d.tokens != nil {
			d.tokens.DeleteToken(ctx, token)
		}
	}

	return result
}

// BuildMessage converts a payload into an FCM message for one token.
func BuildMessage(token string, payload models.PushPayload) *messaging.Message {
	data := make(map[string]string, len(payload.Data)+1)
	for k, v := range payload.Data {
		data[k] = v
	}
	if payload.Link != "" {
		data["url"] = payload.Link
	}

	msg := &messaging.Message{
		Token: token,
		Notification: &messaging.Notification{
			Title: payload.Title,
			Body:  payload.Body,
		},
		Data: data,
		Android: &messaging.AndroidConfig{
			Priority: "high",
		},
		APNS: &messaging.APNSConfig{
			Headers: map[string]string{"apns-priority": "10"},
		},
	}
	if payload.Link != "" {
		msg.Webpush = &messaging.WebpushConfig{
			FCMOptions: &messaging.WebpushFCMOptions{Link: payload.Link},
		}
	}
	return msg
}
