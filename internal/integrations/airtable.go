package integrations

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/Rapid-Works/RapidWorks-sub002/internal/config"
)

// ErrRelayDisabled is returned when no Airtable credentials are configured.
var ErrRelayDisabled = errors.New("airtable relay is not configured")

// AirtableRecord is the created record as returned by the API.
type AirtableRecord struct {
	ID          string                 `json:"id"`
	CreatedTime string                 `json:"createdTime"`
	Fields      map[string]interface{} `json:"fields"`
}

type airtableError struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Airtable relays form submissions to an Airtable base.
type Airtable struct {
	http    *resty.Client
	baseID  string
	enabled bool
}

func NewAirtable(cfg config.AirtableConfig) *Airtable {
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetAuthToken(cfg.APIKey).
		SetTimeout(15*time.Second).
		SetHeader("Content-Type", "application/json")

	return &Airtable{
		http:    client,
		baseID:  cfg.BaseID,
		enabled: cfg.Enabled(),
	}
}

// Submit creates one record in table. It does not retry.
func (a *Airtable) Submit(ctx context.Context, table string, fields map[string]interface{}) (*AirtableRecord, error) {
	if !a.enabled {
		return nil, ErrRelayDisabled
	}
	if table == "" {
		return nil, errors.New("airtable table name is required")
	}

	var record AirtableRecord
	var apiErr airtableError
	resp, err := a.http.R().
		SetContext(ctx).
		SetBody(map[string]interface{}{
			"fields":   fields,
			"typecast": true,
		}).
		SetResult(&record).
		SetError(&apiErr).
		Post("/v0/" + url.PathEscape(a.baseID) + "/" + url.PathEscape(table))
	if err != nil {
		return nil, fmt.Errorf("airtable request: %w", err)
	}

	if resp.IsError() {
		msg := apiErr.Error.Message
		if msg == "" {
			msg = resp.String()
		}
		return nil, fmt.Errorf("airtable returned %d: %s", resp.StatusCode(), msg)
	}

	return &record, nil
}
