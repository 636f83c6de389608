package gateway

import "context"

type actorKey struct{}

// SystemActor identifies maintenance jobs run outside of a user session.
const SystemActor = "system"

// WithActor binds the acting user id to ctx; procedures read it through app_current_user().
func WithActor(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, actorKey{}, userID)
}

// ActorFrom returns the acting user id bound to ctx, or "".
func ActorFrom(ctx context.Context) string {
	actor, _ := ctx.Value(actorKey{}).(string)
	return actor
}
