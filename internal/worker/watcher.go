package worker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/Rapid-Works/RapidWorks-sub002/internal/constants"
	"github.com/Rapid-Works/RapidWorks-sub002/internal/logging"
	"github.com/Rapid-Works/RapidWorks-sub002/internal/models"
)

// Envelope is an event ready to be published.
type Envelope struct {
	Topic   string
	Key     string
	Payload interface{}
}

// Tracker turns document changes of one collection into events. Each tracker is
// owned by exactly one listener goroutine.
type Tracker interface {
	Collection() string
	// Seed records existing state without producing events.
	Seed(id string, data map[string]interface{})
	Observe(id string, data map[string]interface{}) []Envelope
	Forget(id string)
	// Retain drops every document not in present.
	Retain(present map[string]struct{})
}

// NewEnvelopeMessage encodes an envelope as a watermill message.
func NewEnvelopeMessage(env Envelope) (*message.Message, error) {
	payload, err := json.Marshal(env.Payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s event: %w", env.Topic, err)
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set("key", env.Key)
	return msg, nil
}

// Watcher listens to Firestore collections and publishes source events.
type Watcher struct {
	client       *firestore.Client
	publisher    message.Publisher
	restartDelay time.Duration
}

func NewWatcher(client *firestore.Client, publisher message.Publisher) *Watcher {
	return &Watcher{
		client:       client,
		publisher:    publisher,
		restartDelay: 5 * time.Second,
	}
}

// Run starts one listener per collection and blocks until ctx is done.
func (w *Watcher) Run(ctx context.Context) {
	trackers := []Tracker{
		NewBlogTracker(),
		NewBrandKitTracker(),
		NewTaskTracker(),
	}

	var wg sync.WaitGroup
	for _, tr := range trackers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.listen(ctx, tr)
		}()
	}
	wg.Wait()
	logging.Info().Msg("watcher stopped")
}

// listen keeps a snapshot listener open, reopening it after stream errors. The
// tracker survives restarts, so changes made while the stream was down are
// still diffed against the last state we saw.
func (w *Watcher) listen(ctx context.Context, tr Tracker) {
	seeded := false
	for {
		err := w.stream(ctx, tr, &seeded)
		if ctx.Err() != nil {
			return
		}
		logging.Warn().Err(err).Str("collection", tr.Collection()).Dur("retry_in", w.restartDelay).Msg("snapshot listener stopped, reopening")

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.restartDelay):
		}
	}
}

func (w *Watcher) stream(ctx context.Context, tr Tracker, seeded *bool) error {
	it := w.client.Collection(tr.Collection()).Snapshots(ctx)
	defer it.Stop()

	// The first snapshot of a reopened stream lists every live document, so
	// anything the tracker still holds beyond that was deleted while we were down.
	reopened := *seeded

	for {
		qs, err := it.Next()
		if err != nil {
			if errors.Is(err, iterator.Done) || status.Code(err) == codes.Canceled {
				return ctx.Err()
			}
			return err
		}

		if !*seeded {
			for _, ch := range qs.Changes {
				tr.Seed(ch.Doc.Ref.ID, ch.Doc.Data())
			}
			*seeded = true
			logging.Info().Str("collection", tr.Collection()).Int("documents", qs.Size).Msg("listener seeded")
			continue
		}

		if reopened {
			present := make(map[string]struct{}, len(qs.Changes))
			for _, ch := range qs.Changes {
				if ch.Kind != firestore.DocumentRemoved {
					present[ch.Doc.Ref.ID] = struct{}{}
				}
			}
			tr.Retain(present)
			reopened = false
		}

		for _, ch := range qs.Changes {
			id := ch.Doc.Ref.ID
			if ch.Kind == firestore.DocumentRemoved {
				tr.Forget(id)
				continue
			}
			for _, env := range tr.Observe(id, ch.Doc.Data()) {
				w.publish(env)
			}
		}
	}
}

func (w *Watcher) publish(env Envelope) {
	msg, err := NewEnvelopeMessage(env)
	if err != nil {
		logging.Error().Err(err).Str("key", env.Key).Msg("failed to encode event")
		return
	}
	if err := w.publisher.Publish(env.Topic, msg); err != nil {
		logging.Error().Err(err).Str("topic", env.Topic).Str("key", env.Key).Msg("failed to publish event")
		return
	}
	logging.Debug().Str("topic", env.Topic).Str("key", env.Key).Msg("event published")
}

// BlogTracker emits BlogPublished for documents it has not seen before.
type BlogTracker struct {
	seen map[string]struct{}
}

func NewBlogTracker() *BlogTracker {
	return &BlogTracker{seen: make(map[string]struct{})}
}

func (t *BlogTracker) Collection() string { return constants.CollectionBlogs }

func (t *BlogTracker) Seed(id string, _ map[string]interface{}) { t.seen[id] = struct{}{} }

func (t *BlogTracker) Forget(id string) { delete(t.seen, id) }

func (t *BlogTracker) Retain(present map[string]struct{}) { retainKeys(t.seen, present) }

func (t *BlogTracker) Observe(id string, data map[string]interface{}) []Envelope {
	if _, ok := t.seen[id]; ok {
		return nil
	}
	t.seen[id] = struct{}{}
	return []Envelope{{Topic: constants.TopicBlogPublished, Key: id, Payload: BlogFromData(id, data)}}
}

// BrandKitTracker emits BrandingKitReady when a known kit's status becomes ready.
type BrandKitTracker struct {
	status map[string]string
}

func NewBrandKitTracker() *BrandKitTracker {
	return &BrandKitTracker{status: make(map[string]string)}
}

func (t *BrandKitTracker) Collection() string { return constants.CollectionBrandKits }

func (t *BrandKitTracker) Seed(id string, data map[string]interface{}) {
	t.status[id] = stringField(data, "status")
}

func (t *BrandKitTracker) Forget(id string) { delete(t.status, id) }

func (t *BrandKitTracker) Retain(present map[string]struct{}) { retainKeys(t.status, present) }

func (t *BrandKitTracker) Observe(id string, data map[string]interface{}) []Envelope {
	before, known := t.status[id]
	after := stringField(data, "status")
	t.status[id] = after

	if !known || before == constants.BrandKitStatusReady || after != constants.BrandKitStatusReady {
		return nil
	}
	return []Envelope{{Topic: constants.TopicBrandingKitReady, Key: id, Payload: BrandKitFromData(id, data)}}
}

// TaskTracker emits TaskRequestCreated for new tasks and one TaskMessageAppended
// per message appended to a known task.
type TaskTracker struct {
	messages map[string]int
}

func NewTaskTracker() *TaskTracker {
	return &TaskTracker{messages: make(map[string]int)}
}

func (t *TaskTracker) Collection() string { return constants.CollectionTaskRequests }

func (t *TaskTracker) Seed(id string, data map[string]interface{}) {
	t.messages[id] = len(messagesOf(data))
}

func (t *TaskTracker) Forget(id string) { delete(t.messages, id) }

func (t *TaskTracker) Retain(present map[string]struct{}) { retainKeys(t.messages, present) }

func retainKeys[V any](m map[string]V, present map[string]struct{}) {
	for id := range m {
		if _, ok := present[id]; !ok {
			delete(m, id)
		}
	}
}

func (t *TaskTracker) Observe(id string, data map[string]interface{}) []Envelope {
	msgs := messagesOf(data)
	before, known := t.messages[id]
	t.messages[id] = len(msgs)

	if !known {
		return []Envelope{{Topic: constants.TopicTaskRequestCreated, Key: id, Payload: TaskRequestFromData(id, data)}}
	}

	var out []Envelope
	for i := before; i < len(msgs); i++ {
		out = append(out, Envelope{
			Topic:   constants.TopicTaskMessageAppended,
			Key:     fmt.Sprintf("%s/%d", id, i),
			Payload: TaskMessageFromData(id, data, msgs[i]),
		})
	}
	return out
}

func BlogFromData(id string, data map[string]interface{}) models.BlogPublished {
	published, _ := data["published"].(bool)
	return models.BlogPublished{
		ID:        id,
		Title:     stringField(data, "title"),
		Excerpt:   stringField(data, "excerpt"),
		Slug:      stringField(data, "slug"),
		Published: published,
	}
}

// BrandKitFromData reads both the single "email" and the "emails" list shapes.
func BrandKitFromData(id string, data map[string]interface{}) models.BrandingKitReady {
	emails := NormalizeEmails(data["emails"])
	emails = append(emails, NormalizeEmails(data["email"])...)
	return models.BrandingKitReady{
		KitID:  id,
		Name:   stringField(data, "name"),
		Emails: UniqueEmails(emails),
	}
}

// NormalizeEmails accepts a string or a list and returns trimmed, non-empty,
// distinct addresses.
func NormalizeEmails(v interface{}) []string {
	var raw []string
	switch t := v.(type) {
	case string:
		raw = []string{t}
	case []string:
		raw = t
	case []interface{}:
		for _, item := range t {
			if s, ok := item.(string); ok {
				raw = append(raw, s)
			}
		}
	}

	out := make([]string, 0, len(raw))
	for _, s := range raw {
		out = append(out, strings.TrimSpace(s))
	}
	return UniqueEmails(out)
}

// Optional task document fields copied into the relay record, keyed by document field.
var taskRecordColumns = map[string]string{
	"expertEmail": "Expert Email",
	"service":     "Service",
	"budget":      "Budget",
	"deadline":    "Deadline",
	"companyName": "Company",
}

func TaskRequestFromData(id string, data map[string]interface{}) models.TaskRequestCreated {
	fields := make(map[string]interface{})
	for key, column := range taskRecordColumns {
		switch v := data[key].(type) {
		case string:
			if v != "" {
				fields[column] = v
			}
		case int64, float64, bool:
			fields[column] = v
		}
	}
	return models.TaskRequestCreated{
		TaskID:      id,
		Title:       stringField(data, "title"),
		Description: stringField(data, "description"),
		UserEmail:   stringField(data, "userEmail"),
		Fields:      fields,
	}
}

// TaskMessageFromData addresses an appended message to the sender's counterpart.
func TaskMessageFromData(id string, data map[string]interface{}, msg map[string]interface{}) models.TaskMessageAppended {
	sender := stringField(msg, "sender")
	return models.TaskMessageAppended{
		TaskID:         id,
		TaskTitle:      stringField(data, "title"),
		Sender:         sender,
		RecipientEmail: CounterpartEmail(sender, data),
		Content:        stringField(msg, "content"),
		Kind:           stringField(msg, "type"),
	}
}

// CounterpartEmail is userEmail for expert messages and expertEmail for customer
// messages. Unknown senders have no counterpart.
func CounterpartEmail(sender string, data map[string]interface{}) string {
	switch sender {
	case constants.SenderExpert:
		return strings.TrimSpace(stringField(data, "userEmail"))
	case constants.SenderCustomer:
		return strings.TrimSpace(stringField(data, "expertEmail"))
	default:
		return ""
	}
}

func messagesOf(data map[string]interface{}) []map[string]interface{} {
	list, _ := data["messages"].([]interface{})
	out := make([]map[string]interface{}, 0, len(list))
	for _, item := range list {
		m, ok := item.(map[string]interface{})
		if !ok {
			m = map[string]interface{}{}
		}
		out = append(out, m)
	}
	return out
}

func stringField(data map[string]interface{}, key string) string {
	s, _ := data[key].(string)
	return s
}
