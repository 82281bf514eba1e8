package quiz

import "errors"

type Code string

const (
	CodeNotPermitted        Code = "not_permitted"
	CodeAttemptLimitReached Code = "attempt_limit_reached"
	CodeQuizNotPublished    Code = "quiz_not_published"
	CodeNotFound            Code = "not_found"
	CodeNotOwner            Code = "not_owner"
	CodeAlreadyCompleted    Code = "already_completed"
	CodeAttemptExpired      Code = "attempt_expired"
	CodeInvalidQuiz         Code = "invalid_quiz"
)

// Error is a rejection the caller can act on. Compare with errors.Is
// against the Err* values; only the Code takes part in the comparison.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

var (
	ErrNotPermitted        = &Error{Code: CodeNotPermitted, Message: "not permitted on this course"}
	ErrAttemptLimitReached = &Error{Code: CodeAttemptLimitReached, Message: "maximum number of attempts reached"}
	ErrQuizNotPublished    = &Error{Code: CodeQuizNotPublished, Message: "quiz is not published"}
	ErrNotFound            = &Error{Code: CodeNotFound, Message: "not found"}
	ErrNotOwner            = &Error{Code: CodeNotOwner, Message: "attempt belongs to another user"}
	ErrAlreadyCompleted    = &Error{Code: CodeAlreadyCompleted, Message: "attempt already completed"}
	ErrAttemptExpired      = &Error{Code: CodeAttemptExpired, Message: "attempt time limit exceeded"}
)

// Invalid builds an authoring validation error.
func Invalid(msg string) *Error { return &Error{Code: CodeInvalidQuiz, Message: msg} }

// CodeOf returns the rejection code carried by err, or "" for
// infrastructure errors.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
