package activity

import (
	"sort"
	"strings"
	"time"
)

// Form lifecycle verbs.
const (
	VerbFormSubmitted      = "form.submitted"
	VerbFormSubmitRejected = "form.submit.rejected"
	VerbFormSubmitFailed   = "form.submit.failed"
	VerbFormReset          = "form.reset"
)

// ObjectTypeForm is the object type of every form event.
const ObjectTypeForm = "form"

// FormEventInput describes the common fields for form lifecycle events.
type FormEventInput struct {
	ActorID        string
	UserID         string
	TenantID       string
	FormID         string
	Channel        string
	DefinitionCode string
	Recipients     []string
	Metadata       map[string]any
	Fields         []string
	Errors         map[string]string
	Err            error
	OccurredAt     time.Time
}

// BuildFormSubmittedEvent describes a submit whose callback completed.
func BuildFormSubmittedEvent(input FormEventInput) Event {
	return buildFormEvent(VerbFormSubmitted, input)
}

// BuildFormSubmitRejectedEvent describes a submit blocked by validation
// errors. The failing fields are recorded in metadata.
func BuildFormSubmitRejectedEvent(input FormEventInput) Event {
	return buildFormEvent(VerbFormSubmitRejected, input)
}

// BuildFormSubmitFailedEvent describes a submit whose callback or validator
// failed.
func BuildFormSubmitFailedEvent(input FormEventInput) Event {
	return buildFormEvent(VerbFormSubmitFailed, input)
}

// BuildFormResetEvent describes a form restored to its initial values.
func BuildFormResetEvent(input FormEventInput) Event {
	return buildFormEvent(VerbFormReset, input)
}

func buildFormEvent(verb string, input FormEventInput) Event {
	metadata := cloneMap(input.Metadata)
	if len(input.Fields) > 0 {
		metadata = ensureMetadata(metadata)
		metadata[MetaFields] = append([]string{}, input.Fields...)
	}
	if len(input.Errors) > 0 {
		metadata = ensureMetadata(metadata)
		invalid := make([]string, 0, len(input.Errors))
		errs := make(map[string]string, len(input.Errors))
		for field, message := range input.Errors {
			invalid = append(invalid, field)
			errs[field] = message
		}
		sort.Strings(invalid)
		metadata[MetaInvalidFields] = invalid
		metadata[MetaErrors] = errs
	}
	if input.Err != nil {
		metadata = ensureMetadata(metadata)
		metadata[MetaError] = input.Err.Error()
	}

	recipients := input.Recipients
	if len(recipients) > 0 {
		recipients = append([]string{}, input.Recipients...)
	}

	objectID := strings.TrimSpace(input.FormID)
	if objectID == "" {
		objectID = ObjectTypeForm
	}

	return Event{
		Verb:           verb,
		ActorID:        strings.TrimSpace(input.ActorID),
		UserID:         strings.TrimSpace(input.UserID),
		TenantID:       strings.TrimSpace(input.TenantID),
		ObjectType:     ObjectTypeForm,
		ObjectID:       objectID,
		Channel:        strings.TrimSpace(input.Channel),
		DefinitionCode: strings.TrimSpace(input.DefinitionCode),
		Recipients:     recipients,
		Metadata:       metadata,
		OccurredAt:     input.OccurredAt,
	}
}

func ensureMetadata(meta map[string]any) map[string]any {
	if meta == nil {
		return map[string]any{}
	}
	return meta
}
