package activity

import (
	"context"
	"sync"
)

// CaptureHook records every event it receives, for tests and examples. Notify
// returns Err when set.
type CaptureHook struct {
	mu     sync.Mutex
	Events []Event
	Err    error
}

// Notify records the normalized event.
func (h *CaptureHook) Notify(_ context.Context, event Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Events = append(h.Events, event.Normalized())
	return h.Err
}

// Verbs returns the captured verbs in arrival order.
func (h *CaptureHook) Verbs() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	verbs := make([]string, len(h.Events))
	for i, event := range h.Events {
		verbs[i] = event.Verb
	}
	return verbs
}

// ForForm returns the captured events of formID.
func (h *CaptureHook) ForForm(formID string) []Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []Event
	for _, event := range h.Events {
		if event.FormID() == formID {
			out = append(out, event)
		}
	}
	return out
}
