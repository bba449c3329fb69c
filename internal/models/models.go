package models

import (
	"time"

	"github.com/Rapid-Works/RapidWorks-sub002/internal/constants"
)

// TokenRecord is one device registration in the fcmTokens collection.
type TokenRecord struct {
	Token     string    `firestore:"token"`
	Email     string    `firestore:"email"`
	CreatedAt time.Time `firestore:"createdAt"`
}

// ChannelPreference holds the per-channel switches of one category.
type ChannelPreference struct {
	Mobile bool `firestore:"mobile" json:"mobile"`
	Email  bool `firestore:"email" json:"email"`
}

// Preferences maps a category name to its channel switches.
type Preferences map[string]ChannelPreference

// DefaultPreferences enables every channel for every known category.
func DefaultPreferences() Preferences {
	return Preferences{
		constants.CategoryBlog:        {Mobile: true, Email: true},
		constants.CategoryBrandingKit: {Mobile: true, Email: true},
		constants.CategoryTaskMessage: {Mobile: true, Email: true},
	}
}

// For returns the switches for a category, defaulting to enabled when absent.
func (p Preferences) For(category string) ChannelPreference {
	if pref, ok := p[category]; ok {
		return pref
	}
	return ChannelPreference{Mobile: true, Email: true}
}

// HistoryEntry is what callers hand to the history log.
type HistoryEntry struct {
	Title    string
	Body     string
	Type     string
	URL      string
	Metadata map[string]interface{}
}

// HistoryRecord is the persisted notificationHistory document.
type HistoryRecord struct {
	UserID    string                 `firestore:"userId"`
	Title     string                 `firestore:"title"`
	Body      string                 `firestore:"body"`
	Type      string                 `firestore:"type"`
	URL       string                 `firestore:"url"`
	Read      bool                   `firestore:"read"`
	CreatedAt time.Time              `firestore:"createdAt,serverTimestamp"`
	Metadata  map[string]interface{} `firestore:"metadata"`
}

// PushPayload is the rendered push notification shared by all tokens of an event.
type PushPayload struct {
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Link  string            `json:"link,omitempty"`
	Data  map[string]string `json:"data,omitempty"`
}

// TokenError describes one failed send.
type TokenError struct {
	TokenPrefix string `json:"tokenPrefix"`
	Code        string `json:"code"`
	Error       string `json:"error"`
}

// SendResult summarizes one dispatcher invocation.
type SendResult struct {
	SentCount int          `json:"sentCount"`
	Errors    []TokenError `json:"errors"`
}

// Source events. These are the canonical, already-normalized shapes produced by the
// change watcher; downstream code never sees raw documents.

type BlogPublished struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Excerpt   string `json:"excerpt"`
	Slug      string `json:"slug"`
	Published bool   `json:"published"`
}

type BrandingKitReady struct {
	KitID  string   `json:"kitId"`
	Name   string   `json:"name"`
	Emails []string `json:"emails"`
}

type TaskMessageAppended struct {
	TaskID    string `json:"taskId"`
	TaskTitle string `json:"taskTitle"`
	Sender    string `json:"sender"`
	// RecipientEmail is the counterpart's address; empty when nobody is assigned.
	RecipientEmail string `json:"recipientEmail"`
	Content        string `json:"content"`
	Kind           string `json:"kind"`
}

type TaskRequestCreated struct {
	TaskID      string                 `json:"taskId"`
	Title       string                 `json:"title"`
	Description string                 `json:"description"`
	UserEmail   string                 `json:"userEmail"`
	Fields      map[string]interface{} `json:"fields"`
}

// FanoutResult summarizes one orchestrator invocation.
type FanoutResult struct {
	Recipients int `json:"recipients"`
	Skipped    int `json:"skipped"`
	Pushed     int `json:"pushed"`
	Recorded   int `json:"recorded"`
	Emailed    int `json:"emailed"`
}
