package integrations

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// ErrTeamsDisabled is returned when no webhook URL is configured.
var ErrTeamsDisabled = errors.New("teams webhook is not configured")

// AdaptiveCard is the subset of the adaptive card schema we render.
type AdaptiveCard struct {
	Schema  string            `json:"$schema"`
	Type    string            `json:"type"`
	Version string            `json:"version"`
	Body    []CardElement     `json:"body"`
	Actions []CardAction      `json:"actions,omitempty"`
	MSTeams map[string]string `json:"msteams,omitempty"`
}

type CardElement struct {
	Type   string     `json:"type"`
	Text   string     `json:"text,omitempty"`
	Size   string     `json:"size,omitempty"`
	Weight string     `json:"weight,omitempty"`
	Wrap   bool       `json:"wrap,omitempty"`
	Facts  []CardFact `json:"facts,omitempty"`
}

type CardFact struct {
	Title string `json:"title"`
	Value string `json:"value"`
}

type CardAction struct {
	Type  string `json:"type"`
	Title string `json:"title"`
	URL   string `json:"url"`
}

type teamsAttachment struct {
	ContentType string       `json:"contentType"`
	ContentURL  *string      `json:"contentUrl"`
	Content     AdaptiveCard `json:"content"`
}

type teamsMessage struct {
	Type        string            `json:"type"`
	Attachments []teamsAttachment `json:"attachments"`
}

// NewCard builds a card with a heading, an optional text block and a fact set.
func NewCard(title, text string, facts []CardFact, link string) AdaptiveCard {
	body := []CardElement{
		{Type: "TextBlock", Text: title, Size: "Large", Weight: "Bolder", Wrap: true},
	}
	if text != "" {
		body = append(body, CardElement{Type: "TextBlock", Text: text, Wrap: true})
	}
	if len(facts) > 0 {
		body = append(body, CardElement{Type: "FactSet", Facts: facts})
	}

	card := AdaptiveCard{
		Schema:  "http://adaptivecards.io/schemas/adaptive-card.json",
		Type:    "AdaptiveCard",
		Version: "1.4",
		Body:    body,
		MSTeams: map[string]string{"width": "Full"},
	}
	if link != "" {
		card.Actions = []CardAction{{Type: "Action.OpenUrl", Title: "Open", URL: link}}
	}
	return card
}

// Teams posts adaptive cards to an incoming webhook.
type Teams struct {
	http       *resty.Client
	webhookURL string
}

func NewTeams(webhookURL string) *Teams {
	return &Teams{
		http: resty.New().
			SetTimeout(10*time.Second).
			SetHeader("Content-Type", "application/json"),
		webhookURL: webhookURL,
	}
}

func (t *Teams) Post(ctx context.Context, card AdaptiveCard) error {
	if t.webhookURL == "" {
		return ErrTeamsDisabled
	}

	resp, err := t.http.R().
		SetContext(ctx).
		SetBody(teamsMessage{
			Type: "message",
			Attachments: []teamsAttachment{{
				ContentType: "application/vnd.microsoft.card.adaptive",
				Content:     card,
			}},
		}).
		Post(t.webhookURL)
	if err != nil {
		return fmt.Errorf("teams webhook: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("teams webhook returned %d: %s", resp.StatusCode(), resp.String())
	}
	return nil
}
