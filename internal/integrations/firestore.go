package integrations

import (
	"context"
	"fmt"
	"sort"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/Rapid-Works/RapidWorks-sub002/internal/constants"
	"github.com/Rapid-Works/RapidWorks-sub002/internal/logging"
	"github.com/Rapid-Works/RapidWorks-sub002/internal/models"
	"github.com/Rapid-Works/RapidWorks-sub002/internal/services"
)

// PreferenceStore reads userNotificationPreferences documents.
type PreferenceStore struct {
	client *firestore.Client
}

func NewPreferenceStore(client *firestore.Client) *PreferenceStore {
	return &PreferenceStore{client: client}
}

// GetPreferences never fails: a missing document or a read error yields the defaults.
func (s *PreferenceStore) GetPreferences(ctx context.Context, userID string) models.Preferences {
	prefs := models.DefaultPreferences()
	if userID == "" {
		return prefs
	}

	snap, err := s.client.Collection(constants.CollectionPreferences).Doc(userID).Get(ctx)
	if err != nil {
		if status.Code(err) != codes.NotFound {
			logging.Warn().Err(err).Str("user_id", userID).Msg("preference lookup failed, using defaults")
		}
		return prefs
	}

	return MergePreferences(prefs, snap.Data())
}

// MergePreferences overlays stored category switches on top of defaults. Categories
// or switches that are missing or not booleans keep their default value.
func MergePreferences(defaults models.Preferences, data map[string]interface{}) models.Preferences {
	merged := make(models.Preferences, len(defaults))
	for category, pref := range defaults {
		merged[category] = pref
	}

	for category, pref := range merged {
		raw, ok := data[category].(map[string]interface{})
		if !ok {
			continue
		}
		if v, ok := raw["mobile"].(bool); ok {
			pref.Mobile = v
		}
		if v, ok := raw["email"].(bool); ok {
			pref.Email = v
		}
		merged[category] = pref
	}
	return merged
}

// TokenRegistry stores device push tokens keyed by email.
type TokenRegistry struct {
	client  *firestore.Client
	metrics *services.Metrics
}

func NewTokenRegistry(client *firestore.Client, metrics *services.Metrics) *TokenRegistry {
	return &TokenRegistry{client: client, metrics: metrics}
}

// FindTokensByEmail returns every token record whose email equals email exactly.
func (r *TokenRegistry) FindTokensByEmail(ctx context.Context, email string) ([]models.TokenRecord, error) {
	docs, err := r.client.Collection(constants.CollectionTokens).
		Where("email", "==", email).
		Documents(ctx).
		GetAll()
	if err != nil {
		return nil, fmt.Errorf("query tokens for %s: %w", email, err)
	}

	records := make([]models.TokenRecord, 0, len(docs))
	for _, doc := range docs {
		var rec models.TokenRecord
		if err := doc.DataTo(&rec); err != nil {
			logging.Warn().Err(err).Str("doc", doc.Ref.ID).Msg("skipping malformed token record")
			continue
		}
		if rec.Token == "" {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// ListSubscriberEmails returns the distinct emails present in the registry, sorted.
// The registry doubles as the blog subscriber list.
func (r *TokenRegistry) ListSubscriberEmails(ctx context.Context) ([]string, error) {
	docs, err := r.client.Collection(constants.CollectionTokens).Select("email").Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("list token emails: %w", err)
	}

	seen := make(map[string]struct{}, len(docs))
	emails := make([]string, 0, len(docs))
	for _, doc := range docs {
		email, _ := doc.Data()["email"].(string)
		if email == "" {
			continue
		}
		if _, dup := seen[email]; dup {
			continue
		}
		seen[email] = struct{}{}
		emails = append(emails, email)
	}
	sort.Strings(emails)
	return emails, nil
}

// DeleteToken removes every record carrying token. Errors are logged, never
// returned; deleting an absent token is a no-op.
func (r *TokenRegistry) DeleteToken(ctx context.Context, token string) {
	if token == "" {
		return
	}

	docs, err := r.client.Collection(constants.CollectionTokens).
		Where("token", "==", token).
		Documents(ctx).
		GetAll()
	if err != nil {
		logging.Error().Err(err).Str("token", logging.TokenPrefix(token)).Msg("token cleanup query failed")
		return
	}

	for _, doc := range docs {
		if _, err := doc.Ref.Delete(ctx); err != nil {
			logging.Error().Err(err).Str("doc", doc.Ref.ID).Msg("token cleanup delete failed")
			continue
		}
		if r.metrics != nil {
			r.metrics.TokensDeleted.Add(1)
		}
		logging.Info().Str("token", logging.TokenPrefix(token)).Str("doc", doc.Ref.ID).Msg("removed invalid token")
	}
}

// HistoryLog appends notificationHistory records.
type HistoryLog struct {
	client  *firestore.Client
	metrics *services.Metrics
}

func NewHistoryLog(client *firestore.Client, metrics *services.Metrics) *HistoryLog {
	return &HistoryLog{client: client, metrics: metrics}
}

// Record writes one history row. Failures are logged and swallowed so history never
// blocks the notification itself.
func (h *HistoryLog) Record(ctx context.Context, userID string, entry models.HistoryEntry) bool {
	rec := models.HistoryRecord{
		UserID:   userID,
		Title:    entry.Title,
		Body:     entry.Body,
		Type:     entry.Type,
		URL:      entry.URL,
		Read:     false,
		Metadata: entry.Metadata,
	}
	if rec.Metadata == nil {
		rec.Metadata = map[string]interface{}{}
	}

	if _, _, err := h.client.Collection(constants.CollectionHistory).Add(ctx, rec); err != nil {
		if h.metrics != nil {
			h.metrics.HistoryErrors.Add(1)
		}
		logging.Error().Err(err).Str("user_id", userID).Str("type", entry.Type).Msg("history write failed")
		return false
	}

	if h.metrics != nil {
		h.metrics.HistoryRecorded.Add(1)
	}
	return true
}

// TaskStore updates relay bookkeeping fields on taskRequests documents.
type TaskStore struct {
	client *firestore.Client
}

func NewTaskStore(client *firestore.Client) *TaskStore {
	return &TaskStore{client: client}
}

// MarkAirtableSync records the outcome of relaying a task to Airtable.
func (s *TaskStore) MarkAirtableSync(ctx context.Context, taskID, recordID string, syncErr error) error {
	fields := map[string]interface{}{
		"airtableSynced":   syncErr == nil,
		"airtableSyncedAt": firestore.ServerTimestamp,
	}
	if syncErr != nil {
		fields["syncError"] = syncErr.Error()
	} else {
		fields["airtableRecordId"] = recordID
		fields["syncError"] = firestore.Delete
	}

	_, err := s.client.Collection(constants.CollectionTaskRequests).Doc(taskID).Set(ctx, fields, firestore.MergeAll)
	if err != nil {
		return fmt.Errorf("update task %s sync status: %w", taskID, err)
	}
	return nil
}
