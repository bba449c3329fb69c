package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Rapid-Works/RapidWorks-sub002/internal/integrations"
	"github.com/Rapid-Works/RapidWorks-sub002/internal/logging"
	"github.com/Rapid-Works/RapidWorks-sub002/internal/models"
	"github.com/Rapid-Works/RapidWorks-sub002/internal/services"
)

type IdentityResolver interface {
	ResolveUserID(ctx context.Context, email string) (string, error)
}

type PreferenceReader interface {
	GetPreferences(ctx context.Context, userID string) models.Preferences
}

type TokenFinder interface {
	FindTokensByEmail(ctx context.Context, email string) ([]models.TokenRecord, error)
	ListSubscriberEmails(ctx context.Context) ([]string, error)
}

type PushSender interface {
	Send(ctx context.Context, tokens []string, payload models.PushPayload) models.SendResult
}

type HistoryRecorder interface {
	Record(ctx context.Context, userID string, entry models.HistoryEntry) bool
}

type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, htmlBody string) error
}

// FanoutDeps are the collaborators of the orchestrator. Mailer may be nil.
type FanoutDeps struct {
	Identity    IdentityResolver
	Preferences PreferenceReader
	Tokens      TokenFinder
	Push        PushSender
	History     HistoryRecorder
	Mailer      EmailSender
	Metrics     *services.Metrics
	BaseURL     string
	Concurrency int
}

// Orchestrator turns one source event into per-recipient deliveries.
type Orchestrator struct {
	identity    IdentityResolver
	prefs       PreferenceReader
	tokens      TokenFinder
	push        PushSender
	history     HistoryRecorder
	mailer      EmailSender
	metrics     *services.Metrics
	baseURL     string
	concurrency int
}

func NewOrchestrator(deps FanoutDeps) *Orchestrator {
	if deps.Metrics == nil {
		deps.Metrics = services.NewMetrics()
	}
	if deps.Concurrency <= 0 {
		deps.Concurrency = 1
	}
	return &Orchestrator{
		identity:    deps.Identity,
		prefs:       deps.Preferences,
		tokens:      deps.Tokens,
		push:        deps.Push,
		history:     deps.History,
		mailer:      deps.Mailer,
		metrics:     deps.Metrics,
		baseURL:     deps.BaseURL,
		concurrency: deps.Concurrency,
	}
}

// HandleBlogPublished notifies every subscriber once. Unpublished posts are ignored.
func (o *Orchestrator) HandleBlogPublished(ctx context.Context, e models.BlogPublished) models.FanoutResult {
	if !e.Published {
		logging.Info().Str("blog_id", e.ID).Msg("blog post not published, skipping")
		return models.FanoutResult{}
	}

	emails, err := o.tokens.ListSubscriberEmails(ctx)
	if err != nil {
		logging.Error().Err(err).Str("blog_id", e.ID).Msg("failed to list subscribers")
		return models.FanoutResult{}
	}

	return o.fanout(ctx, emails, RenderBlogPublished(e))
}

func (o *Orchestrator) HandleBrandingKitReady(ctx context.Context, e models.BrandingKitReady) models.FanoutResult {
	if len(e.Emails) == 0 {
		logging.Info().Str("kit_id", e.KitID).Msg("branding kit has no associated email, skipping")
		return models.FanoutResult{}
	}
	return o.fanout(ctx, e.Emails, RenderBrandingKitReady(e))
}

// HandleTaskMessageAppended notifies the sender's counterpart. A task without a
// counterpart yet (no expert assigned) is skipped without history.
func (o *Orchestrator) HandleTaskMessageAppended(ctx context.Context, e models.TaskMessageAppended) models.FanoutResult {
	if e.RecipientEmail == "" {
		logging.Info().Str("task_id", e.TaskID).Str("sender", e.Sender).Msg("no counterpart for task message, skipping")
		o.metrics.RecipientsSkipped.Add(1)
		return models.FanoutResult{Skipped: 1}
	}
	return o.fanout(ctx, []string{e.RecipientEmail}, RenderTaskMessage(e))
}

type tally struct {
	recipients atomic.Int64
	skipped    atomic.Int64
	pushed     atomic.Int64
	recorded   atomic.Int64
	emailed    atomic.Int64
}

func (o *Orchestrator) fanout(ctx context.Context, emails []string, content Content) models.FanoutResult {
	startTime := time.Now()
	recipients := UniqueEmails(emails)

	var t tally
	var g errgroup.Group
	g.SetLimit(o.concurrency)
	for _, email := range recipients {
		g.Go(func() error {
			o.deliver(ctx, email, content, &t)
			return nil
		})
	}
	_ = g.Wait()

	res := models.FanoutResult{
		Recipients: int(t.recipients.Load()),
		Skipped:    int(t.skipped.Load()),
		Pushed:     int(t.pushed.Load()),
		Recorded:   int(t.recorded.Load()),
		Emailed:    int(t.emailed.Load()),
	}
	logging.Info().
		Str("type", content.Type).
		Int("recipients", res.Recipients).
		Int("skipped", res.Skipped).
		Int("pushed", res.Pushed).
		Int("recorded", res.Recorded).
		Int("emailed", res.Emailed).
		Dur("duration", time.Since(startTime)).
		Msg("fan-out complete")
	return res
}

// deliver runs one recipient's pipeline. Failures stay inside this recipient.
func (o *Orchestrator) deliver(ctx context.Context, email string, content Content, t *tally) {
	log := logging.With().Str("email", email).Str("type", content.Type).Logger()

	userID, err := o.identity.ResolveUserID(ctx, email)
	if err != nil {
		if errors.Is(err, integrations.ErrUserNotFound) {
			log.Info().Msg("no account for recipient, skipping")
		} else {
			log.Warn().Err(err).Msg("identity lookup failed, skipping")
		}
		t.skipped.Add(1)
		o.metrics.RecipientsSkipped.Add(1)
		return
	}
	t.recipients.Add(1)
	o.metrics.Recipients.Add(1)

	pref := o.prefs.GetPreferences(ctx, userID).For(content.Category)

	if pref.Mobile {
		records, err := o.tokens.FindTokensByEmail(ctx, email)
		switch {
		case err != nil:
			log.Warn().Err(err).Msg("token lookup failed")
		case len(records) == 0:
			log.Debug().Msg("recipient has no push tokens")
		default:
			tokens := make([]string, 0, len(records))
			for _, r := range records {
				tokens = append(tokens, r.Token)
			}
			res := o.push.Send(ctx, tokens, content.Payload(o.baseURL))
			t.pushed.Add(int64(res.SentCount))
		}
	} else {
		log.Debug().Str("category", content.Category).Msg("mobile notifications disabled")
	}

	if o.history.Record(ctx, userID, content.HistoryEntry()) {
		t.recorded.Add(1)
	}

	if pref.Email && content.Emailable && o.mailer != nil {
		if err := o.mailer.SendEmail(ctx, email, content.Title, content.EmailHTML(o.baseURL)); err != nil {
			o.metrics.EmailErrors.Add(1)
			log.Warn().Err(err).Msg("notification email failed")
			return
		}
		o.metrics.EmailsSent.Add(1)
		t.emailed.Add(1)
	}
}

// UniqueEmails drops empty and repeated addresses, keeping first-seen order.
func UniqueEmails(emails []string) []string {
	seen := make(map[string]struct{}, len(emails))
	out := make([]string, 0, len(emails))
	for _, e := range emails {
		if e == "" {
			continue
		}
		if _, dup := seen[e]; dup {
			continue
		}
		seen[e] = struct{}{}
		out = append(out, e)
	}
	return out
}
