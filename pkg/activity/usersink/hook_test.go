package usersink_test

import (
	"context"
	"testing"
	"time"

	"github.com/goliatone/go-formstate/pkg/activity"
	"github.com/goliatone/go-formstate/pkg/activity/usersink"
	usertypes "github.com/goliatone/go-users/pkg/types"
	"github.com/google/uuid"
)

type recordingSink struct {
	records []usertypes.ActivityRecord
	err     error
}

func (s *recordingSink) Log(_ context.Context, record usertypes.ActivityRecord) error {
	s.records = append(s.records, record)
	return s.err
}

func TestHookNotifyMapsFormEvent(t *testing.T) {
	sink := &recordingSink{}
	hook := usersink.Hook{Sink: sink}

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	actorID := uuid.New()
	userID := uuid.New()
	tenantID := uuid.New()
	formID := uuid.New().String()

	event := activity.BuildFormSubmittedEvent(activity.FormEventInput{
		ActorID:        actorID.String(),
		UserID:         userID.String(),
		TenantID:       tenantID.String(),
		FormID:         formID,
		Channel:        "forms",
		DefinitionCode: "signup",
		Recipients:     []string{"recipient@example.com"},
		Fields:         []string{"email"},
		OccurredAt:     now,
	})

	if err := hook.Notify(context.Background(), event); err != nil {
		t.Fatalf("notify: %v", err)
	}

	if len(sink.records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(sink.records))
	}
	record := sink.records[0]
	if record.ActorID != actorID || record.UserID != userID || record.TenantID != tenantID {
		t.Fatalf("unexpected identity: %+v", record)
	}
	if record.Verb != activity.VerbFormSubmitted || record.ObjectType != activity.ObjectTypeForm || record.ObjectID != formID {
		t.Fatalf("unexpected record payload: %+v", record)
	}
	if record.Channel != "forms" {
		t.Fatalf("expected channel forms got %q", record.Channel)
	}
	if !record.OccurredAt.Equal(now) {
		t.Fatalf("expected occurred_at %v got %v", now, record.OccurredAt)
	}
	if record.Data["form_id"] != formID {
		t.Fatalf("expected form_id data got %v", record.Data["form_id"])
	}
	if record.Data["definition_code"] != "signup" {
		t.Fatalf("expected definition_code data got %v", record.Data["definition_code"])
	}
	recipients, ok := record.Data["recipients"].([]string)
	if !ok || len(recipients) != 1 || recipients[0] != "recipient@example.com" {
		t.Fatalf("expected recipients data got %v", record.Data["recipients"])
	}
}

func TestHookNotifyFiltersVerbs(t *testing.T) {
	sink := &recordingSink{}
	hook := usersink.NewHook(sink, activity.VerbFormSubmitted)

	reset := activity.BuildFormResetEvent(activity.FormEventInput{FormID: "f"})
	if err := hook.Notify(context.Background(), reset); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if len(sink.records) != 0 {
		t.Fatalf("expected reset filtered out, got %d records", len(sink.records))
	}

	submitted := activity.BuildFormSubmittedEvent(activity.FormEventInput{FormID: "f"})
	if err := hook.Notify(context.Background(), submitted); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if len(sink.records) != 1 {
		t.Fatalf("expected submitted forwarded, got %d records", len(sink.records))
	}
}

func TestHookNotifySkipsMissingVerb(t *testing.T) {
	sink := &recordingSink{}
	hook := usersink.Hook{Sink: sink}

	_ = hook.Notify(context.Background(), activity.Event{})

	if len(sink.records) != 0 {
		t.Fatalf("expected no records for empty event, got %d", len(sink.records))
	}
}

func TestHookNotifyDefaultsTimestampAndNilIDs(t *testing.T) {
	sink := &recordingSink{}
	hook := usersink.Hook{Sink: sink}

	err := hook.Notify(context.Background(), activity.Event{
		Verb:       activity.VerbFormReset,
		ObjectType: activity.ObjectTypeForm,
		ObjectID:   "1",
		ActorID:    "not-a-uuid",
	})
	if err != nil {
		t.Fatalf("notify: %v", err)
	}
	if len(sink.records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(sink.records))
	}
	if sink.records[0].OccurredAt.IsZero() {
		t.Fatalf("expected occurred_at to be defaulted")
	}
	if sink.records[0].ActorID != uuid.Nil {
		t.Fatalf("expected invalid actor to map to uuid.Nil, got %s", sink.records[0].ActorID)
	}
}
