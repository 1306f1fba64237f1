package shared

import (
	"context"
	"strings"
)

// ActorHeader names the request header identifying the acting user.
// Authentication terminates upstream; the service only needs a stable
// actor string for audit trails.
const ActorHeader = "X-Actor"

// SystemActor is recorded when no actor header is present.
const SystemActor = "system"

type actorContextKey struct{}

// ContextWithActor stores the actor identity in the context.
func ContextWithActor(ctx context.Context, actor string) context.Context {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return ctx
	}
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext returns the acting user, falling back to SystemActor.
func ActorFromContext(ctx context.Context) string {
	if actor, ok := ctx.Value(actorContextKey{}).(string); ok && actor != "" {
		return actor
	}
	return SystemActor
}
