package worker

import (
	"context"
	"errors"
	"fmt"

	"github.com/Rapid-Works/RapidWorks-sub002/internal/integrations"
	"github.com/Rapid-Works/RapidWorks-sub002/internal/logging"
	"github.com/Rapid-Works/RapidWorks-sub002/internal/models"
	"github.com/Rapid-Works/RapidWorks-sub002/internal/services"
)

type RecordSubmitter interface {
	Submit(ctx context.Context, table string, fields map[string]interface{}) (*integrations.AirtableRecord, error)
}

type CardPoster interface {
	Post(ctx context.Context, card integrations.AdaptiveCard) error
}

type SyncMarker interface {
	MarkAirtableSync(ctx context.Context, taskID, recordID string, syncErr error) error
}

// TaskRelay mirrors new task requests into Airtable and announces them in Teams.
type TaskRelay struct {
	airtable RecordSubmitter
	teams    CardPoster
	tasks    SyncMarker
	table    string
	baseURL  string
	metrics  *services.Metrics
}

func NewTaskRelay(airtable RecordSubmitter, teams CardPoster, tasks SyncMarker, table, baseURL string, metrics *services.Metrics) *TaskRelay {
	if metrics == nil {
		metrics = services.NewMetrics()
	}
	return &TaskRelay{
		airtable: airtable,
		teams:    teams,
		tasks:    tasks,
		table:    table,
		baseURL:  baseURL,
		metrics:  metrics,
	}
}

// TaskRecordFields maps a task request to Airtable columns. Extra document fields
// never override the named columns.
func TaskRecordFields(e models.TaskRequestCreated) map[string]interface{} {
	fields := make(map[string]interface{}, len(e.Fields)+4)
	for k, v := range e.Fields {
		fields[k] = v
	}
	fields["Task ID"] = e.TaskID
	fields["Title"] = e.Title
	fields["Description"] = e.Description
	fields["Customer Email"] = e.UserEmail
	return fields
}

// HandleTaskRequestCreated submits the task once. The outcome is written back to
// the task document; the returned error is the relay error, if any.
func (r *TaskRelay) HandleTaskRequestCreated(ctx context.Context, e models.TaskRequestCreated) error {
	log := logging.With().Str("task_id", e.TaskID).Logger()

	var relayErr error
	recordID := ""
	if r.airtable != nil {
		rec, err := r.airtable.Submit(ctx, r.table, TaskRecordFields(e))
		switch {
		case errors.Is(err, integrations.ErrRelayDisabled):
			log.Debug().Msg("airtable relay disabled")
		case err != nil:
			relayErr = err
			r.metrics.RelayErrors.Add(1)
			log.Error().Err(err).Msg("airtable submit failed")
			r.markSync(ctx, e.TaskID, "", err)
		default:
			recordID = rec.ID
			r.metrics.RelaySubmitted.Add(1)
			log.Info().Str("record_id", rec.ID).Msg("task relayed to airtable")
			r.markSync(ctx, e.TaskID, rec.ID, nil)
		}
	}

	if r.teams != nil {
		facts := []integrations.CardFact{
			{Title: "Customer", Value: e.UserEmail},
			{Title: "Task ID", Value: e.TaskID},
		}
		if recordID != "" {
			facts = append(facts, integrations.CardFact{Title: "Airtable", Value: recordID})
		}
		if relayErr != nil {
			facts = append(facts, integrations.CardFact{Title: "Sync error", Value: relayErr.Error()})
		}
		card := integrations.NewCard(
			fmt.Sprintf("New task request: %s", e.Title),
			Preview(e.Description, 300),
			facts,
			RenderTaskLink(r.baseURL, e.TaskID),
		)
		r.postCard(ctx, card)
	}

	return relayErr
}

func (r *TaskRelay) markSync(ctx context.Context, taskID, recordID string, syncErr error) {
	if r.tasks == nil {
		return
	}
	if err := r.tasks.MarkAirtableSync(ctx, taskID, recordID, syncErr); err != nil {
		logging.Error().Err(err).Str("task_id", taskID).Msg("failed to store sync status")
	}
}

func (r *TaskRelay) postCard(ctx context.Context, card integrations.AdaptiveCard) {
	err := r.teams.Post(ctx, card)
	switch {
	case errors.Is(err, integrations.ErrTeamsDisabled):
	case err != nil:
		r.metrics.TeamsErrors.Add(1)
		logging.Warn().Err(err).Msg("teams notification failed")
	default:
		r.metrics.TeamsPosted.Add(1)
	}
}

// RenderTaskLink is the absolute link to a task page.
func RenderTaskLink(baseURL, taskID string) string {
	return Content{URL: "/tasks/" + taskID}.Link(baseURL)
}
