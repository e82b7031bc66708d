package shared

import "context"

// Roles understood by the engine. Authentication happens upstream; the engine
// treats the resolved user id and role as trusted inputs.
const (
	RoleOwner   = "owner"
	RoleManager = "manager"
	RoleCashier = "cashier"
)

// Actor is the authenticated caller attached to every engine operation.
type Actor struct {
	UserID int64
	Role   string
}

// Privileged reports whether the actor may perform owner/manager actions
// (catalog mutation, report approval, editing other users' events).
func (a Actor) Privileged() bool {
	return a.Role == RoleOwner || a.Role == RoleManager
}

type actorContextKey struct{}

// ContextWithActor stores the actor in context.
func ContextWithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext extracts the actor from context. The zero Actor means the
// request carried no identity.
func ActorFromContext(ctx context.Context) Actor {
	actor, _ := ctx.Value(actorContextKey{}).(Actor)
	return actor
}
