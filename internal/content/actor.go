package content

import "context"

// Actor is the authenticated user on whose behalf an operation runs
type Actor struct {
	ID    int64  `json:"id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
}

type actorKey struct{}

// WithActor returns a context carrying actor
func WithActor(ctx context.Context, actor *Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFrom returns the actor carried by ctx, or nil
func ActorFrom(ctx context.Context) *Actor {
	actor, _ := ctx.Value(actorKey{}).(*Actor)
	return actor
}

// currentUser resolves the acting user through the getUser filter, which
// may replace or reject the actor found in ctx. Subscribers return a nil
// *Actor to reject.
func (s *Service) currentUser(ctx context.Context) (*Actor, error) {
	return applyFilter(ctx, s.bus, FilterGetUser, ActorFrom(ctx))
}
