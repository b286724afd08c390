package activity

import (
	"context"
	"errors"
	"fmt"
)

// Hook receives normalized form events.
type Hook interface {
	Notify(ctx context.Context, event Event) error
}

// HookFunc adapts a function to Hook.
type HookFunc func(ctx context.Context, event Event) error

// Notify calls fn.
func (fn HookFunc) Notify(ctx context.Context, event Event) error {
	if fn == nil {
		return nil
	}
	return fn(ctx, event)
}

// Hooks delivers each event to every hook in order. A failing hook does not
// stop delivery; failures are joined and name the hook position and verb.
type Hooks []Hook

// Notify normalizes event and delivers it. Events without a verb or object
// are dropped.
func (h Hooks) Notify(ctx context.Context, event Event) error {
	event = event.Normalized()
	if len(h) == 0 || !event.routable() {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	var errs []error
	for i, hook := range h {
		if hook == nil {
			continue
		}
		if err := hook.Notify(ctx, event); err != nil {
			errs = append(errs, fmt.Errorf("activity: hook %d on %s: %w", i, event.Verb, err))
		}
	}
	return errors.Join(errs...)
}

// compact returns a copy of h without nil hooks, or nil when none remain.
func (h Hooks) compact() Hooks {
	var out Hooks
	for _, hook := range h {
		if hook != nil {
			out = append(out, hook)
		}
	}
	return out
}
