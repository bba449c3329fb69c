package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/Rapid-Works/RapidWorks-sub002/internal/integrations"
	"github.com/Rapid-Works/RapidWorks-sub002/internal/models"
	"github.com/Rapid-Works/RapidWorks-sub002/internal/services"
)

type fakeSubmitter struct {
	table  string
	fields map[string]interface{}
	err    error
}

func (f *fakeSubmitter) Submit(_ context.Context, table string, fields map[string]interface{}) (*integrations.AirtableRecord, error) {
	f.table = table
	f.fields = fields
	if f.err != nil {
		return nil, f.err
	}
	return &integrations.AirtableRecord{ID: "rec1", Fields: fields}, nil
}

type fakePoster struct {
	cards []integrations.AdaptiveCard
	err   error
}

func (f *fakePoster) Post(_ context.Context, card integrations.AdaptiveCard) error {
	f.cards = append(f.cards, card)
	return f.err
}

type syncCall struct {
	taskID, recordID string
	err              error
}

type fakeSync struct {
	calls []syncCall
}

func (f *fakeSync) MarkAirtableSync(_ context.Context, taskID, recordID string, syncErr error) error {
	f.calls = append(f.calls, syncCall{taskID: taskID, recordID: recordID, err: syncErr})
	return nil
}

var sampleTask = models.TaskRequestCreated{
	TaskID:      "t1",
	Title:       "Logo",
	Description: "A new logo",
	UserEmail:   "c@x.com",
	Fields:      map[string]interface{}{"Budget": "5k", "Title": "override attempt"},
}

func TestTaskRelaySuccess(t *testing.T) {
	air, teams, tasks := &fakeSubmitter{}, &fakePoster{}, &fakeSync{}
	metrics := services.NewMetrics()
	r := NewTaskRelay(air, teams, tasks, "Tasks", "https://rapid-works.io", metrics)

	if err := r.HandleTaskRequestCreated(context.Background(), sampleTask); err != nil {
		t.Fatalf("HandleTaskRequestCreated() error = %v", err)
	}

	if air.table != "Tasks" || air.fields["Title"] != "Logo" || air.fields["Budget"] != "5k" {
		t.Errorf("submitted %s %v", air.table, air.fields)
	}
	if len(tasks.calls) != 1 || tasks.calls[0].recordID != "rec1" || tasks.calls[0].err != nil {
		t.Errorf("sync calls = %+v", tasks.calls)
	}
	if len(teams.cards) != 1 {
		t.Fatalf("cards = %d", len(teams.cards))
	}
	if metrics.RelaySubmitted.Load() != 1 || metrics.TeamsPosted.Load() != 1 {
		t.Errorf("metrics relay=%d teams=%d", metrics.RelaySubmitted.Load(), metrics.TeamsPosted.Load())
	}
}

func TestTaskRelayFailureMarksSyncError(t *testing.T) {
	relayErr := errors.New("airtable returned 422: Unknown field name")
	air, teams, tasks := &fakeSubmitter{err: relayErr}, &fakePoster{}, &fakeSync{}
	r := NewTaskRelay(air, teams, tasks, "Tasks", "", nil)

	err := r.HandleTaskRequestCreated(context.Background(), sampleTask)
	if !errors.Is(err, relayErr) {
		t.Fatalf("error = %v, want relay error", err)
	}
	if len(tasks.calls) != 1 || !errors.Is(tasks.calls[0].err, relayErr) {
		t.Errorf("sync calls = %+v", tasks.calls)
	}
	if len(teams.cards) != 1 {
		t.Error("teams card is posted even when the relay fails")
	}
}

func TestTaskRelayDisabledSkipsSync(t *testing.T) {
	air, teams, tasks := &fakeSubmitter{err: integrations.ErrRelayDisabled}, &fakePoster{err: integrations.ErrTeamsDisabled}, &fakeSync{}
	metrics := services.NewMetrics()
	r := NewTaskRelay(air, teams, tasks, "Tasks", "", metrics)

	if err := r.HandleTaskRequestCreated(context.Background(), sampleTask); err != nil {
		t.Fatalf("error = %v", err)
	}
	if len(tasks.calls) != 0 {
		t.Errorf("sync status written while relay disabled: %+v", tasks.calls)
	}
	if metrics.TeamsErrors.Load() != 0 || metrics.RelayErrors.Load() != 0 {
		t.Error("disabled integrations must not count as errors")
	}
}
