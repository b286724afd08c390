package usersink

import (
	"context"
	"strings"
	"time"

	"github.com/goliatone/go-formstate/pkg/activity"
	usertypes "github.com/goliatone/go-users/pkg/types"
	"github.com/google/uuid"
)

// Hook adapts form activity events to a go-users ActivitySink.
type Hook struct {
	Sink usertypes.ActivitySink
	// Verbs limits which events are forwarded. Empty forwards every verb.
	Verbs []string
}

// NewHook forwards the given verbs to sink.
func NewHook(sink usertypes.ActivitySink, verbs ...string) Hook {
	return Hook{Sink: sink, Verbs: append([]string(nil), verbs...)}
}

// Notify maps the event into an ActivityRecord and forwards it to the sink.
func (h Hook) Notify(ctx context.Context, event activity.Event) error {
	if h.Sink == nil {
		return nil
	}

	normalized := event.Normalized()
	if normalized.Verb == "" || normalized.ObjectType == "" || normalized.ObjectID == "" {
		return nil
	}
	if !h.accepts(normalized.Verb) {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	record := usertypes.ActivityRecord{
		ActorID:    parseUUID(normalized.ActorID),
		UserID:     parseUUID(normalized.UserID),
		TenantID:   parseUUID(normalized.TenantID),
		Verb:       normalized.Verb,
		ObjectType: normalized.ObjectType,
		ObjectID:   normalized.ObjectID,
		Channel:    normalized.Channel,
		Data:       cloneMap(normalized.Metadata),
		OccurredAt: normalized.OccurredAt,
	}
	if record.OccurredAt.IsZero() {
		record.OccurredAt = time.Now()
	}
	if formID := normalized.FormID(); formID != "" {
		record.Data = withData(record.Data, "form_id", formID)
	}
	if normalized.DefinitionCode != "" {
		record.Data = withData(record.Data, "definition_code", normalized.DefinitionCode)
	}
	if len(normalized.Recipients) > 0 {
		record.Data = withData(record.Data, "recipients", append([]string{}, normalized.Recipients...))
	}

	return h.Sink.Log(ctx, record)
}

func (h Hook) accepts(verb string) bool {
	if len(h.Verbs) == 0 {
		return true
	}
	for _, candidate := range h.Verbs {
		if strings.TrimSpace(candidate) == verb {
			return true
		}
	}
	return false
}

func parseUUID(input string) uuid.UUID {
	id, err := uuid.Parse(strings.TrimSpace(input))
	if err != nil {
		return uuid.Nil
	}
	return id
}

func withData(data map[string]any, key string, value any) map[string]any {
	if data == nil {
		data = map[string]any{}
	}
	data[key] = value
	return data
}

func cloneMap(src map[string]any) map[string]any {
	if len(src) == 0 {
		return nil
	}
	dst := make(map[string]any, len(src))
	for key, value := range src {
		dst[key] = value
	}
	return dst
}
