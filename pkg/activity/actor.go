package activity

import (
	"context"
	"strings"
)

// Actor identifies who triggered a form lifecycle event.
type Actor struct {
	ActorID  string
	UserID   string
	TenantID string
}

type actorKey struct{}

// ContextWithActor attaches actor to ctx for the emitter to pick up.
func ContextWithActor(ctx context.Context, actor Actor) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFromContext returns the actor attached by ContextWithActor.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	if ctx == nil {
		return Actor{}, false
	}
	actor, ok := ctx.Value(actorKey{}).(Actor)
	return actor, ok
}

// apply fills identity fields the event left blank.
func (a Actor) apply(event Event) Event {
	if strings.TrimSpace(event.ActorID) == "" {
		event.ActorID = a.ActorID
	}
	if strings.TrimSpace(event.UserID) == "" {
		event.UserID = a.UserID
	}
	if strings.TrimSpace(event.TenantID) == "" {
		event.TenantID = a.TenantID
	}
	return event
}
