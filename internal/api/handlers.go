package api

import (
	"context"
	"errors"
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/Rapid-Works/RapidWorks-sub002/internal/config"
	"github.com/Rapid-Works/RapidWorks-sub002/internal/constants"
	"github.com/Rapid-Works/RapidWorks-sub002/internal/integrations"
	"github.com/Rapid-Works/RapidWorks-sub002/internal/logging"
	"github.com/Rapid-Works/RapidWorks-sub002/internal/models"
	"github.com/Rapid-Works/RapidWorks-sub002/internal/services"
	"github.com/Rapid-Works/RapidWorks-sub002/internal/worker"
)

type Assistant interface {
	Chat(ctx context.Context, history []integrations.ChatMessage) (string, error)
	Extract(ctx context.Context, text string, fields []string) (map[string]string, error)
}

type TokenLookup interface {
	FindTokensByEmail(ctx context.Context, email string) ([]models.TokenRecord, error)
}

type Dispatcher interface {
	Send(ctx context.Context, tokens []string, payload models.PushPayload) models.SendResult
	SendDryRun(ctx context.Context, tokens []string, payload models.PushPayload) models.SendResult
}

// Deps are the collaborators of the HTTP handlers. Any of them may be nil,
// in which case the matching endpoints answer 503.
type Deps struct {
	Airtable   worker.RecordSubmitter
	Teams      worker.CardPoster
	Assistant  Assistant
	Tokens     TokenLookup
	Dispatcher Dispatcher
	Identity   worker.IdentityResolver
	History    worker.HistoryRecorder
	Metrics    *services.Metrics
}

type Handler struct {
	deps    Deps
	tables  map[string]string
	baseURL string
}

func NewHandler(cfg *config.Config, deps Deps) *Handler {
	if deps.Metrics == nil {
		deps.Metrics = services.NewMetrics()
	}
	return &Handler{
		deps: deps,
		tables: map[string]string{
			"service":    cfg.Airtable.ServiceTable,
			"webinar":    cfg.Airtable.WebinarTable,
			"partner":    cfg.Airtable.PartnerTable,
			"expert":     cfg.Airtable.ExpertTable,
			"newsletter": cfg.Airtable.NewsletterTable,
		},
		baseURL: cfg.AppBaseURL,
	}
}

func (h *Handler) ValidateEmail(c *gin.Context) {
	var req ValidateEmailRequest
	if err := bind(c, &req); err != nil {
		Error(c, err)
		return
	}
	Success(c, ValidateBusinessEmail(req.Email))
}

func newForm(kind string) (Form, bool) {
	switch kind {
	case "service":
		return &ServiceForm{}, true
	case "webinar":
		return &WebinarForm{}, true
	case "partner":
		return &PartnerForm{}, true
	case "expert":
		return &ExpertForm{}, true
	case "newsletter":
		return &NewsletterForm{}, true
	default:
		return nil, false
	}
}

// SubmitForm relays a public form to its Airtable table and announces it in Teams.
// Relay failures are answered with success=false, not an HTTP error.
func (h *Handler) SubmitForm(c *gin.Context) {
	kind := c.Param("kind")
	form, ok := newForm(kind)
	if !ok {
		Error(c, fmt.Errorf("%w: unknown form %q", ErrInvalidInput, kind))
		return
	}
	if err := bind(c, form); err != nil {
		Error(c, err)
		return
	}
	if h.deps.Airtable == nil {
		Error(c, integrations.ErrRelayDisabled)
		return
	}

	ctx := c.Request.Context()
	rec, err := h.deps.Airtable.Submit(ctx, h.tables[kind], form.Fields())
	if errors.Is(err, integrations.ErrRelayDisabled) {
		Error(c, err)
		return
	}
	if err != nil {
		h.deps.Metrics.RelayErrors.Add(1)
		logging.Error().Err(err).Str("form", kind).Msg("form relay failed")
		Success(c, FormResponse{Success: false, Error: err.Error()})
		return
	}
	h.deps.Metrics.RelaySubmitted.Add(1)

	if h.deps.Teams != nil {
		card := integrations.NewCard(
			fmt.Sprintf("New %s form submission", kind),
			form.Summary(),
			[]integrations.CardFact{
				{Title: "Email", Value: form.Contact()},
				{Title: "Airtable", Value: rec.ID},
			},
			"",
		)
		switch err := h.deps.Teams.Post(ctx, card); {
		case errors.Is(err, integrations.ErrTeamsDisabled):
		case err != nil:
			h.deps.Metrics.TeamsErrors.Add(1)
			logging.Warn().Err(err).Str("form", kind).Msg("teams notification failed")
		default:
			h.deps.Metrics.TeamsPosted.Add(1)
		}
	}

	Success(c, FormResponse{Success: true, RecordID: rec.ID})
}

func (h *Handler) Chat(c *gin.Context) {
	var req ChatRequest
	if err := bind(c, &req); err != nil {
		Error(c, err)
		return
	}
	if h.deps.Assistant == nil {
		Error(c, integrations.ErrAssistantDisabled)
		return
	}

	reply, err := h.deps.Assistant.Chat(c.Request.Context(), req.Messages)
	if err != nil {
		Error(c, err)
		return
	}
	Success(c, ChatResponse{Reply: reply})
}

func (h *Handler) Extract(c *gin.Context) {
	var req ExtractRequest
	if err := bind(c, &req); err != nil {
		Error(c, err)
		return
	}
	if h.deps.Assistant == nil {
		Error(c, integrations.ErrAssistantDisabled)
		return
	}

	fields, err := h.deps.Assistant.Extract(c.Request.Context(), req.Text, req.Fields)
	if err != nil {
		Error(c, err)
		return
	}
	Success(c, ExtractResponse{Fields: fields})
}

// TestNotification pushes a test message to every device of an email and, unless
// it is a dry run, records it in the user's history.
func (h *Handler) TestNotification(c *gin.Context) {
	var req TestNotificationRequest
	if err := bind(c, &req); err != nil {
		Error(c, err)
		return
	}
	if h.deps.Tokens == nil || h.deps.Dispatcher == nil {
		Error(c, ErrPushDisabled)
		return
	}

	ctx := c.Request.Context()
	records, err := h.deps.Tokens.FindTokensByEmail(ctx, req.Email)
	if err != nil {
		Error(c, err)
		return
	}
	tokens := make([]string, 0, len(records))
	for _, r := range records {
		tokens = append(tokens, r.Token)
	}

	content := testContent(req)
	payload := content.Payload(h.baseURL)

	var result models.SendResult
	if req.DryRun {
		result = h.deps.Dispatcher.SendDryRun(ctx, tokens, payload)
	} else {
		result = h.deps.Dispatcher.Send(ctx, tokens, payload)
	}

	recorded := false
	if !req.DryRun && h.deps.Identity != nil && h.deps.History != nil {
		if uid, err := h.deps.Identity.ResolveUserID(ctx, req.Email); err == nil {
			recorded = h.deps.History.Record(ctx, uid, content.HistoryEntry())
		} else {
			logging.Info().Err(err).Str("email", req.Email).Msg("test notification not recorded")
		}
	}

	Success(c, TestNotificationResponse{
		Tokens:   len(tokens),
		Result:   result,
		Recorded: recorded,
		Payload:  payload,
	})
}

func testContent(req TestNotificationRequest) worker.Content {
	title := req.Title
	if title == "" {
		title = "Test notification"
	}
	body := req.Body
	if body == "" {
		body = "Push notifications are working."
	}
	return worker.Content{
		Type:     constants.NotificationTypeTest,
		Title:    title,
		Body:     body,
		URL:      "/notifications",
		Metadata: map[string]string{},
	}
}
