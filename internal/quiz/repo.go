package quiz

import (
	"context"
	"time"
)

type AttemptListOpts struct {
	QuizID string
	UserID string
	Status Status // optional
	Limit  int
	Offset int
}

// Mutation edits an attempt inside the store's atomic region. Returning
// changed=false leaves the stored row untouched; a non-nil error aborts.
type Mutation func(a *Attempt) (changed bool, err error)

type Store interface {
	PutQuiz(ctx context.Context, q Quiz) error
	// GetQuiz returns the full quiz, answer keys included.
	GetQuiz(ctx context.Context, id string) (Quiz, error)

	// CreateAttempt counts the user's attempts on a.QuizID and inserts a
	// only if fewer than maxAttempts exist, as one atomic step. It fails
	// with ErrAttemptLimitReached otherwise.
	CreateAttempt(ctx context.Context, a Attempt, maxAttempts int) error
	GetAttempt(ctx context.Context, id string) (Attempt, error)
	// UpdateAttempt re-reads the attempt, applies fn and persists the
	// result, as one atomic step.
	UpdateAttempt(ctx context.Context, id string, fn Mutation) (Attempt, error)
	CountAttempts(ctx context.Context, quizID, userID string) (int, error)
	ListAttempts(ctx context.Context, opts AttemptListOpts) ([]Attempt, error)
	// ListOverdue returns in-progress attempts whose deadline is before t.
	ListOverdue(ctx context.Context, t time.Time) ([]Attempt, error)
}
