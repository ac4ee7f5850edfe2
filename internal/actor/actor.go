// Package actor carries the authenticated caller established by the upstream
// identity service. The engine never verifies credentials itself.
package actor

import "context"

type Role string

const (
	RoleRequester Role = "requester"
	RoleProvider  Role = "provider"
)

func (r Role) Valid() bool {
	return r == RoleRequester || r == RoleProvider
}

type Actor struct {
	ID   int64
	Role Role
}

type contextKey struct{}

func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, contextKey{}, a)
}

// FromContext returns the actor attached to ctx. Internal callers such as the
// seeder run without one.
func FromContext(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(contextKey{}).(Actor)
	return a, ok
}

// IDFromContext returns the actor id, or nil when no actor is attached.
func IDFromContext(ctx context.Context) *int64 {
	a, ok := FromContext(ctx)
	if !ok {
		return nil
	}
	id := a.ID
	return &id
}
