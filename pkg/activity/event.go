package activity

import (
	"strings"
	"time"
)

// Metadata keys set by the form event builders.
const (
	MetaFields        = "fields"
	MetaInvalidFields = "invalid_fields"
	MetaErrors        = "errors"
	MetaError         = "error"
)

// Event is one form lifecycle occurrence. IDs are plain strings so hooks can
// map them onto whatever identifier type their sink uses.
type Event struct {
	Verb           string
	ActorID        string
	UserID         string
	TenantID       string
	ObjectType     string
	ObjectID       string
	Channel        string
	DefinitionCode string
	Recipients     []string
	Metadata       map[string]any
	OccurredAt     time.Time
}

// FormID returns the ID of the form the event describes, or "" when the event
// is about some other object.
func (e Event) FormID() string {
	if strings.TrimSpace(e.ObjectType) != ObjectTypeForm {
		return ""
	}
	return strings.TrimSpace(e.ObjectID)
}

// InvalidFields returns the fields a rejected submit recorded, sorted.
func (e Event) InvalidFields() []string {
	fields, _ := e.Metadata[MetaInvalidFields].([]string)
	return append([]string(nil), fields...)
}

// FieldErrors returns the per-field messages a rejected submit recorded.
func (e Event) FieldErrors() map[string]string {
	errs, _ := e.Metadata[MetaErrors].(map[string]string)
	out := make(map[string]string, len(errs))
	for field, message := range errs {
		out[field] = message
	}
	return out
}

// Normalized returns a copy of e with trimmed identifiers, detached metadata
// and recipients, and OccurredAt defaulted to now.
func (e Event) Normalized() Event {
	out := Event{
		Verb:           strings.TrimSpace(e.Verb),
		ActorID:        strings.TrimSpace(e.ActorID),
		UserID:         strings.TrimSpace(e.UserID),
		TenantID:       strings.TrimSpace(e.TenantID),
		ObjectType:     strings.TrimSpace(e.ObjectType),
		ObjectID:       strings.TrimSpace(e.ObjectID),
		Channel:        strings.TrimSpace(e.Channel),
		DefinitionCode: strings.TrimSpace(e.DefinitionCode),
		Metadata:       cloneMap(e.Metadata),
		OccurredAt:     e.OccurredAt,
	}
	if len(e.Recipients) > 0 {
		out.Recipients = append([]string(nil), e.Recipients...)
	}
	if out.OccurredAt.IsZero() {
		out.OccurredAt = time.Now()
	}
	return out
}

// routable reports whether hooks have enough to record the event.
func (e Event) routable() bool {
	return e.Verb != "" && e.ObjectType != "" && e.ObjectID != ""
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
