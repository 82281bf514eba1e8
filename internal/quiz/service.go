package quiz

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/mind-engage/mindengage-quiz/internal/grading"
	"github.com/mind-engage/mindengage-quiz/internal/lock"
	"github.com/mind-engage/mindengage-quiz/internal/logger"
	syncx "github.com/mind-engage/mindengage-quiz/internal/sync"
)

// Access answers course-permission questions owned by the enrollment side.
type Access interface {
	IsUserPermittedOnCourse(ctx context.Context, userID, courseID string) (bool, error)
	IsCourseStaff(ctx context.Context, userID, courseID string) (bool, error)
}

type EventSink interface {
	Append(ctx context.Context, e syncx.Event) error
}

type Options struct {
	Log    *logger.Logger
	Locker lock.Locker // defaults to an in-process KeyedMutex
	Events EventSink   // optional
	Now    func() time.Time
	// Seed fixes the shuffle source; 0 seeds from the clock.
	Seed int64
	// ExpiryGrace is how long past its deadline an attempt still accepts
	// answers.
	ExpiryGrace time.Duration
}

type Service struct {
	store  Store
	access Access
	locks  lock.Locker
	events EventSink
	log    *logger.Logger
	clock  func() time.Time
	grace  time.Duration
	tracer trace.Tracer

	rngMu sync.Mutex
	rng   *rand.Rand
}

func NewService(store Store, access Access, opts Options) *Service {
	if opts.Log == nil {
		opts.Log = logger.Nop()
	}
	if opts.Locker == nil {
		opts.Locker = lock.NewKeyedMutex()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Service{
		store:  store,
		access: access,
		locks:  opts.Locker,
		events: opts.Events,
		log:    opts.Log.With("component", "quiz.Service"),
		clock:  opts.Now,
		grace:  opts.ExpiryGrace,
		tracer: otel.Tracer("github.com/mind-engage/mindengage-quiz/internal/quiz"),
		rng:    rand.New(rand.NewSource(seed)),
	}
}

func (s *Service) now() time.Time { return s.clock().UTC().Truncate(time.Millisecond) }

// GetQuiz returns the quiz without answer keys. Unpublished quizzes are
// visible to course staff only.
func (s *Service) GetQuiz(ctx context.Context, quizID string, actor Actor) (v QuizView, err error) {
	ctx, span := s.startSpan(ctx, "quiz.GetQuiz", attribute.String("quiz.id", quizID))
	defer func() { endSpan(span, err) }()

	q, err := s.store.GetQuiz(ctx, quizID)
	if err != nil {
		return QuizView{}, err
	}
	staff, err := s.isStaff(ctx, actor, q.CourseID)
	if err != nil {
		return QuizView{}, err
	}
	if !staff {
		ok, err := s.permitted(ctx, actor, q.CourseID)
		if err != nil {
			return QuizView{}, err
		}
		if !ok {
			return QuizView{}, ErrNotPermitted
		}
		if !q.Published {
			return QuizView{}, ErrQuizNotPublished
		}
	}
	qs := byPosition(q.Questions)
	v = QuizView{Quiz: q, QuestionsCount: len(qs), TotalPoints: TotalPoints(q)}
	v.Questions = make([]QuestionView, 0, len(qs))
	for _, qq := range qs {
		v.Questions = append(v.Questions, qq.view())
	}
	return v, nil
}

// StartAttempt issues a new attempt after the permission, publication and
// attempt-limit checks. The limit check and the insert are one atomic step.
func (s *Service) StartAttempt(ctx context.Context, quizID string, actor Actor) (v AttemptView, err error) {
	ctx, span := s.startSpan(ctx, "quiz.StartAttempt",
		attribute.String("quiz.id", quizID), attribute.String("user.id", actor.ID))
	defer func() { endSpan(span, err) }()

	q, err := s.store.GetQuiz(ctx, quizID)
	if err != nil {
		return AttemptView{}, err
	}
	ok, err := s.permitted(ctx, actor, q.CourseID)
	if err != nil {
		return AttemptView{}, err
	}
	if !ok {
		return AttemptView{}, ErrNotPermitted
	}
	if !q.Published {
		return AttemptView{}, ErrQuizNotPublished
	}

	unlock, err := s.locks.Lock(ctx, ledgerKey(q.ID, actor.ID))
	if err != nil {
		return AttemptView{}, fmt.Errorf("ledger lock: %w", err)
	}
	defer unlock()

	now := s.now()
	a := Attempt{
		ID:        uuid.NewString(),
		QuizID:    q.ID,
		UserID:    actor.ID,
		Status:    StatusInProgress,
		StartedAt: now,
		Answers:   map[string]interface{}{},
		Order:     s.shuffle(q.Questions, q.Randomize),
	}
	if q.DurationMinutes > 0 {
		d := now.Add(time.Duration(q.DurationMinutes) * time.Minute)
		a.Deadline = &d
	}
	if err := s.store.CreateAttempt(ctx, a, q.MaxAttempts); err != nil {
		if errors.Is(err, ErrAttemptLimitReached) {
			s.log.Info("attempt limit reached", "quiz_id", q.ID, "user_id", actor.ID, "max_attempts", q.MaxAttempts)
		}
		return AttemptView{}, err
	}
	s.log.Info("attempt started", "attempt_id", a.ID, "quiz_id", q.ID, "user_id", actor.ID)
	s.emit(ctx, syncx.TypeAttemptStarted, a)
	return s.view(ctx, a, q, actor), nil
}

// SubmitAnswers merges answers into an in-progress attempt. Ids that are
// not on the quiz are dropped; a nil value clears a stored answer.
func (s *Service) SubmitAnswers(ctx context.Context, attemptID string, actor Actor, answers map[string]interface{}) (v AttemptView, err error) {
	ctx, span := s.startSpan(ctx, "quiz.SubmitAnswers",
		attribute.String("attempt.id", attemptID), attribute.String("user.id", actor.ID))
	defer func() { endSpan(span, err) }()

	unlock, q, err := s.lockOwned(ctx, attemptID, actor)
	if err != nil {
		return AttemptView{}, err
	}
	defer unlock()

	known := make(map[string]bool, len(q.Questions))
	for _, qq := range q.Questions {
		known[qq.ID] = true
	}
	now := s.now()
	expired := false
	a, err := s.store.UpdateAttempt(ctx, attemptID, func(a *Attempt) (bool, error) {
		if a.UserID != actor.ID {
			return false, ErrNotOwner
		}
		if a.Status.Terminal() {
			return false, ErrAlreadyCompleted
		}
		if s.overdue(*a, now) {
			s.expire(a, q)
			expired = true
			return true, nil
		}
		for id, val := range answers {
			if !known[id] {
				continue
			}
			if val == nil {
				delete(a.Answers, id)
				continue
			}
			a.Answers[id] = val
		}
		return true, nil
	})
	if err != nil {
		return AttemptView{}, err
	}
	if expired {
		s.log.Info("attempt expired on submit", "attempt_id", a.ID, "user_id", actor.ID)
		s.emit(ctx, syncx.TypeAttemptExpired, a)
		return AttemptView{}, ErrAttemptExpired
	}
	s.emit(ctx, syncx.TypeAnswersSaved, a)
	return s.view(ctx, a, q, actor), nil
}

// FinalizeAttempt scores the attempt against the quiz's current questions
// and freezes it. Finalizing a terminal attempt returns it unchanged.
func (s *Service) FinalizeAttempt(ctx context.Context, attemptID string, actor Actor) (v AttemptView, err error) {
	ctx, span := s.startSpan(ctx, "quiz.FinalizeAttempt",
		attribute.String("attempt.id", attemptID), attribute.String("user.id", actor.ID))
	defer func() { endSpan(span, err) }()

	unlock, q, err := s.lockOwned(ctx, attemptID, actor)
	if err != nil {
		return AttemptView{}, err
	}
	defer unlock()

	now := s.now()
	transitioned := false
	a, err := s.store.UpdateAttempt(ctx, attemptID, func(a *Attempt) (bool, error) {
		if a.UserID != actor.ID {
			return false, ErrNotOwner
		}
		if a.Status.Terminal() {
			return false, nil
		}
		if s.overdue(*a, now) {
			s.expire(a, q)
		} else {
			finish(a, q, StatusCompleted, now)
		}
		transitioned = true
		return true, nil
	})
	if err != nil {
		return AttemptView{}, err
	}
	if transitioned {
		s.log.Info("attempt finalized", "attempt_id", a.ID, "status", a.Status,
			"earned", a.Result.Earned, "total", a.Result.Total, "score", a.Result.Score)
		s.emit(ctx, eventFor(a.Status), a)
	}
	return s.view(ctx, a, q, actor), nil
}

// GetAttempt replays the attempt in its snapshot order. Owners and course
// staff may read it.
func (s *Service) GetAttempt(ctx context.Context, attemptID string, actor Actor) (v AttemptView, err error) {
	ctx, span := s.startSpan(ctx, "quiz.GetAttempt", attribute.String("attempt.id", attemptID))
	defer func() { endSpan(span, err) }()

	a, err := s.store.GetAttempt(ctx, attemptID)
	if err != nil {
		return AttemptView{}, err
	}
	q, err := s.store.GetQuiz(ctx, a.QuizID)
	if err != nil {
		return AttemptView{}, err
	}
	if a.UserID != actor.ID {
		staff, err := s.isStaff(ctx, actor, q.CourseID)
		if err != nil {
			return AttemptView{}, err
		}
		if !staff {
			return AttemptView{}, ErrNotOwner
		}
	}
	return s.view(ctx, a, q, actor), nil
}

// ListAttempts returns attempt history on a quiz. Non-staff callers only
// ever see their own attempts, whatever opts.UserID says.
func (s *Service) ListAttempts(ctx context.Context, actor Actor, opts AttemptListOpts) (out []AttemptView, err error) {
	ctx, span := s.startSpan(ctx, "quiz.ListAttempts", attribute.String("quiz.id", opts.QuizID))
	defer func() { endSpan(span, err) }()

	q, err := s.store.GetQuiz(ctx, opts.QuizID)
	if err != nil {
		return nil, err
	}
	staff, err := s.isStaff(ctx, actor, q.CourseID)
	if err != nil {
		return nil, err
	}
	if !staff {
		opts.UserID = actor.ID
	}
	list, err := s.store.ListAttempts(ctx, opts)
	if err != nil {
		return nil, err
	}
	out = make([]AttemptView, 0, len(list))
	for _, a := range list {
		out = append(out, s.view(ctx, a, q, actor))
	}
	return out, nil
}

// GetBestScore is the user's highest scored attempt on the quiz, nil if
// none is finished. Reading another user's score takes course staff.
func (s *Service) GetBestScore(ctx context.Context, quizID string, actor Actor, userID string) (best *float64, err error) {
	ctx, span := s.startSpan(ctx, "quiz.GetBestScore", attribute.String("quiz.id", quizID))
	defer func() { endSpan(span, err) }()

	if userID == "" {
		userID = actor.ID
	}
	q, err := s.store.GetQuiz(ctx, quizID)
	if err != nil {
		return nil, err
	}
	if userID != actor.ID {
		staff, err := s.isStaff(ctx, actor, q.CourseID)
		if err != nil {
			return nil, err
		}
		if !staff {
			return nil, ErrNotPermitted
		}
	}
	list, err := s.store.ListAttempts(ctx, AttemptListOpts{QuizID: quizID, UserID: userID})
	if err != nil {
		return nil, err
	}
	return BestScore(list), nil
}

// AttemptsUsed counts every attempt the user holds on the quiz, in
// progress or not.
func (s *Service) AttemptsUsed(ctx context.Context, quizID, userID string) (int, error) {
	return s.store.CountAttempts(ctx, quizID, userID)
}

// QuizStats is staff-only.
func (s *Service) QuizStats(ctx context.Context, quizID string, actor Actor) (st Stats, err error) {
	ctx, span := s.startSpan(ctx, "quiz.QuizStats", attribute.String("quiz.id", quizID))
	defer func() { endSpan(span, err) }()

	q, err := s.store.GetQuiz(ctx, quizID)
	if err != nil {
		return Stats{}, err
	}
	staff, err := s.isStaff(ctx, actor, q.CourseID)
	if err != nil {
		return Stats{}, err
	}
	if !staff {
		return Stats{}, ErrNotPermitted
	}
	list, err := s.store.ListAttempts(ctx, AttemptListOpts{QuizID: quizID})
	if err != nil {
		return Stats{}, err
	}
	return ComputeStats(q, list), nil
}

// ExpireOverdue moves every in-progress attempt past its deadline plus
// grace to expired, scoring what was submitted. It returns how many
// attempts it expired.
func (s *Service) ExpireOverdue(ctx context.Context) (n int, err error) {
	ctx, span := s.startSpan(ctx, "quiz.ExpireOverdue")
	defer func() { endSpan(span, err) }()

	now := s.now()
	list, err := s.store.ListOverdue(ctx, now.Add(-s.grace))
	if err != nil {
		return 0, err
	}
	quizzes := map[string]Quiz{}
	for _, cand := range list {
		q, ok := quizzes[cand.QuizID]
		if !ok {
			if q, err = s.store.GetQuiz(ctx, cand.QuizID); err != nil {
				s.log.Warn("expiry sweep: quiz unavailable", "quiz_id", cand.QuizID, "error", err)
				continue
			}
			quizzes[cand.QuizID] = q
		}
		expired, err := s.expireOne(ctx, cand.ID, q, now)
		if err != nil {
			s.log.Warn("expiry sweep: attempt skipped", "attempt_id", cand.ID, "error", err)
			continue
		}
		if expired {
			n++
		}
	}
	return n, nil
}

func (s *Service) expireOne(ctx context.Context, attemptID string, q Quiz, now time.Time) (bool, error) {
	unlock, err := s.locks.Lock(ctx, attemptKey(attemptID))
	if err != nil {
		return false, err
	}
	defer unlock()

	expired := false
	a, err := s.store.UpdateAttempt(ctx, attemptID, func(a *Attempt) (bool, error) {
		if a.Status.Terminal() || !s.overdue(*a, now) {
			return false, nil
		}
		s.expire(a, q)
		expired = true
		return true, nil
	})
	if err != nil {
		return false, err
	}
	if expired {
		s.log.Info("attempt expired by sweep", "attempt_id", a.ID, "user_id", a.UserID, "score", a.Result.Score)
		s.emit(ctx, syncx.TypeAttemptExpired, a)
	}
	return expired, nil
}

// lockOwned takes the per-attempt lock after checking the attempt exists
// and belongs to actor. Ownership is checked again inside the store's
// atomic region.
func (s *Service) lockOwned(ctx context.Context, attemptID string, actor Actor) (func(), Quiz, error) {
	a, err := s.store.GetAttempt(ctx, attemptID)
	if err != nil {
		return nil, Quiz{}, err
	}
	if a.UserID != actor.ID {
		return nil, Quiz{}, ErrNotOwner
	}
	q, err := s.store.GetQuiz(ctx, a.QuizID)
	if err != nil {
		return nil, Quiz{}, err
	}
	unlock, err := s.locks.Lock(ctx, attemptKey(attemptID))
	if err != nil {
		return nil, Quiz{}, fmt.Errorf("attempt lock: %w", err)
	}
	return unlock, q, nil
}

func (s *Service) overdue(a Attempt, now time.Time) bool {
	return a.Status == StatusInProgress && a.Deadline != nil && now.After(a.Deadline.Add(s.grace))
}

// expire closes an overdue attempt as of its deadline.
func (s *Service) expire(a *Attempt, q Quiz) {
	finish(a, q, StatusExpired, *a.Deadline)
}

func finish(a *Attempt, q Quiz, status Status, at time.Time) {
	qs := byPosition(q.Questions)
	gq := make([]grading.Q, len(qs))
	for i, qq := range qs {
		gq[i] = qq.grading()
	}
	res := grading.Score(gq, a.Answers, q.PassingScore)
	a.Result = &Result{
		Earned: res.Earned,
		Total:  res.Total,
		Score:  res.Percentage,
		Passed: res.Passed,
		Items:  res.Items,
	}
	a.Status = status
	a.CompletedAt = &at
	mins := int(at.Sub(a.StartedAt) / time.Minute)
	if mins < 0 {
		mins = 0
	}
	a.TimeSpent = &mins
}

func (s *Service) shuffle(qs []Question, randomize bool) []string {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return snapshotOrder(qs, randomize, s.rng)
}

func (s *Service) permitted(ctx context.Context, actor Actor, courseID string) (bool, error) {
	if actor.ID == "" {
		return false, nil
	}
	if actor.IsAdmin() {
		return true, nil
	}
	ok, err := s.access.IsUserPermittedOnCourse(ctx, actor.ID, courseID)
	if err != nil {
		return false, fmt.Errorf("course access: %w", err)
	}
	return ok, nil
}

func (s *Service) isStaff(ctx context.Context, actor Actor, courseID string) (bool, error) {
	if actor.ID == "" {
		return false, nil
	}
	if actor.IsAdmin() {
		return true, nil
	}
	if actor.Role != RoleTeacher {
		return false, nil
	}
	ok, err := s.access.IsCourseStaff(ctx, actor.ID, courseID)
	if err != nil {
		return false, fmt.Errorf("course staff: %w", err)
	}
	return ok, nil
}

func (s *Service) view(ctx context.Context, a Attempt, q Quiz, actor Actor) AttemptView {
	qs := replayOrder(q.Questions, a.Order)
	v := AttemptView{
		ID:          a.ID,
		QuizID:      a.QuizID,
		UserID:      a.UserID,
		Status:      a.Status,
		StartedAt:   a.StartedAt,
		CompletedAt: a.CompletedAt,
		Deadline:    a.Deadline,
		TimeSpent:   a.TimeSpent,
		Questions:   make([]QuestionView, 0, len(qs)),
		Answers:     a.Answers,
	}
	for _, qq := range qs {
		v.Questions = append(v.Questions, qq.view())
	}
	if a.Result != nil && s.resultsVisible(ctx, q, actor) {
		v.Result = a.Result
	}
	return v
}

func (s *Service) resultsVisible(ctx context.Context, q Quiz, actor Actor) bool {
	if q.ShowResults {
		return true
	}
	staff, err := s.isStaff(ctx, actor, q.CourseID)
	if err != nil {
		s.log.Warn("result visibility check failed", "quiz_id", q.ID, "error", err)
		return false
	}
	return staff
}

func (s *Service) emit(ctx context.Context, typ string, a Attempt) {
	if s.events == nil {
		return
	}
	data := map[string]interface{}{
		"attempt_id": a.ID,
		"quiz_id":    a.QuizID,
		"user_id":    a.UserID,
		"status":     a.Status,
	}
	if a.Result != nil {
		data["earned_points"] = a.Result.Earned
		data["total_points"] = a.Result.Total
		data["score"] = a.Result.Score
		data["passed"] = a.Result.Passed
	}
	buf, err := json.Marshal(data)
	if err != nil {
		s.log.Warn("event payload encode failed", "type", typ, "attempt_id", a.ID, "error", err)
		return
	}
	if err := s.events.Append(ctx, syncx.Event{Type: typ, Key: a.ID, DataJSON: string(buf)}); err != nil {
		s.log.Warn("event append failed", "type", typ, "attempt_id", a.ID, "error", err)
	}
}

func eventFor(st Status) string {
	if st == StatusExpired {
		return syncx.TypeAttemptExpired
	}
	return syncx.TypeAttemptCompleted
}

func (s *Service) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// endSpan marks infrastructure failures only; rejections are normal outcomes.
func endSpan(span trace.Span, err error) {
	if err != nil {
		if code := CodeOf(err); code != "" {
			span.SetAttributes(attribute.String("quiz.rejection", string(code)))
		} else {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}
	span.End()
}

func ledgerKey(quizID, userID string) string { return "ledger:" + quizID + ":" + userID }
func attemptKey(attemptID string) string     { return "attempt:" + attemptID }
