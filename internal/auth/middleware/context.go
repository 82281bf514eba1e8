package auth

import (
	"context"

	"github.com/mind-engage/mindengage-quiz/internal/quiz"
)

type actorKey struct{}

// WithActor stores the authenticated user. The role is whatever the auth
// chain settled on; AttachRoleFromDB overwrites the token's claim.
func WithActor(ctx context.Context, a quiz.Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

func ActorFromContext(ctx context.Context) (quiz.Actor, bool) {
	a, ok := ctx.Value(actorKey{}).(quiz.Actor)
	return a, ok && a.ID != ""
}

// SubjectFromContext is the acting user's id, "" when unauthenticated.
func SubjectFromContext(ctx context.Context) string {
	a, _ := ActorFromContext(ctx)
	return a.ID
}
