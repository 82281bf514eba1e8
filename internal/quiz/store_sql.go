package quiz

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mind-engage/mindengage-quiz/internal/db"
	"github.com/mind-engage/mindengage-quiz/internal/grading"
	"github.com/mind-engage/mindengage-quiz/internal/logger"
)

type SQLStore struct {
	db     *sql.DB
	driver db.Driver
	log    *logger.Logger
}

func NewSQLStore(sqlDB *sql.DB, driver db.Driver, log *logger.Logger) *SQLStore {
	if log == nil {
		log = logger.Nop()
	}
	return &SQLStore{db: sqlDB, driver: driver, log: log.With("component", "quiz.SQLStore")}
}

type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *SQLStore) PutQuiz(ctx context.Context, q Quiz) error {
	if err := ValidateQuiz(q); err != nil {
		return err
	}
	now := time.Now().UnixMilli()
	created := now
	if !q.CreatedAt.IsZero() {
		created = q.CreatedAt.UnixMilli()
	}
	return db.WithTx(ctx, s.db, nil, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO quizzes
			(id,title,description,course_id,lesson_id,duration_minutes,max_attempts,passing_score,
			 is_published,is_randomized,show_results,created_at,updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
			ON CONFLICT (id) DO UPDATE SET title=EXCLUDED.title, description=EXCLUDED.description,
			  course_id=EXCLUDED.course_id, lesson_id=EXCLUDED.lesson_id,
			  duration_minutes=EXCLUDED.duration_minutes, max_attempts=EXCLUDED.max_attempts,
			  passing_score=EXCLUDED.passing_score, is_published=EXCLUDED.is_published,
			  is_randomized=EXCLUDED.is_randomized, show_results=EXCLUDED.show_results,
			  updated_at=EXCLUDED.updated_at`,
			q.ID, q.Title, q.Description, q.CourseID, q.LessonID, q.DurationMinutes, q.MaxAttempts,
			q.PassingScore, q.Published, q.Randomize, q.ShowResults, created, now)
		if err != nil {
			return fmt.Errorf("upsert quiz: %w", err)
		}
		// Questions are replaced wholesale; stored attempts keep their
		// frozen results.
		if _, err := tx.ExecContext(ctx, `DELETE FROM questions WHERE quiz_id=$1`, q.ID); err != nil {
			return fmt.Errorf("clear questions: %w", err)
		}
		for _, qq := range q.Questions {
			typ, opts, answer := EncodeKey(qq.Key)
			diff := qq.Difficulty
			if diff == "" {
				diff = DefaultDifficulty
			}
			_, err := tx.ExecContext(ctx, `INSERT INTO questions
				(quiz_id,id,position,prompt,question_type,options_json,correct_answer,explanation,points,difficulty)
				VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
				q.ID, qq.ID, qq.Position, qq.Prompt, typ, opts, answer, qq.Explanation, qq.Points, diff)
			if err != nil {
				return fmt.Errorf("insert question %s: %w", qq.ID, err)
			}
		}
		return nil
	})
}

func (s *SQLStore) GetQuiz(ctx context.Context, id string) (Quiz, error) {
	var q Quiz
	var created, updated int64
	err := s.db.QueryRowContext(ctx, `SELECT id,title,description,course_id,lesson_id,duration_minutes,
		max_attempts,passing_score,is_published,is_randomized,show_results,created_at,updated_at
		FROM quizzes WHERE id=$1`, id).
		Scan(&q.ID, &q.Title, &q.Description, &q.CourseID, &q.LessonID, &q.DurationMinutes,
			&q.MaxAttempts, &q.PassingScore, &q.Published, &q.Randomize, &q.ShowResults, &created, &updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Quiz{}, ErrNotFound
		}
		return Quiz{}, err
	}
	q.CreatedAt = time.UnixMilli(created).UTC()
	q.UpdatedAt = time.UnixMilli(updated).UTC()

	rows, err := s.db.QueryContext(ctx, `SELECT id,position,prompt,question_type,options_json,correct_answer,
		explanation,points,difficulty FROM questions WHERE quiz_id=$1 ORDER BY position`, id)
	if err != nil {
		return Quiz{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var qq Question
		var typ, opts, answer string
		if err := rows.Scan(&qq.ID, &qq.Position, &qq.Prompt, &typ, &opts, &answer,
			&qq.Explanation, &qq.Points, &qq.Difficulty); err != nil {
			return Quiz{}, err
		}
		qid := qq.ID
		qq.Key = DecodeKey(typ, opts, answer, func(msg string) {
			s.log.Warn("question data quality", "quiz_id", id, "question_id", qid, "problem", msg)
		})
		q.Questions = append(q.Questions, qq)
	}
	return q, rows.Err()
}

func (s *SQLStore) CreateAttempt(ctx context.Context, a Attempt, maxAttempts int) error {
	return db.WithTx(ctx, s.db, nil, func(tx *sql.Tx) error {
		if s.driver == db.DriverPostgres {
			// Serializes check-and-create per (quiz, user) across instances.
			if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`,
				"ledger:"+a.QuizID+":"+a.UserID); err != nil {
				return fmt.Errorf("advisory lock: %w", err)
			}
		}
		var exist int
		if err := tx.QueryRowContext(ctx, `SELECT 1 FROM quizzes WHERE id=$1`, a.QuizID).Scan(&exist); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}
		n, err := countAttempts(ctx, tx, a.QuizID, a.UserID)
		if err != nil {
			return err
		}
		if n >= maxAttempts {
			return ErrAttemptLimitReached
		}
		ansJSON, _ := json.Marshal(nonNilAnswers(a.Answers))
		orderJSON, _ := json.Marshal(nonNilOrder(a.Order))
		_, err = tx.ExecContext(ctx, `INSERT INTO attempts
			(id,quiz_id,user_id,status,started_at,deadline,answers_json,order_json)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			a.ID, a.QuizID, a.UserID, string(a.Status), a.StartedAt.UnixMilli(),
			nullMillis(a.Deadline), string(ansJSON), string(orderJSON))
		if err != nil {
			return fmt.Errorf("insert attempt: %w", err)
		}
		return nil
	})
}

func (s *SQLStore) GetAttempt(ctx context.Context, id string) (Attempt, error) {
	return s.getAttempt(ctx, s.db, id, false)
}

func (s *SQLStore) UpdateAttempt(ctx context.Context, id string, fn Mutation) (Attempt, error) {
	var out Attempt
	err := db.WithTx(ctx, s.db, nil, func(tx *sql.Tx) error {
		a, err := s.getAttempt(ctx, tx, id, true)
		if err != nil {
			return err
		}
		orig := cloneAttempt(a)
		changed, err := fn(&a)
		if err != nil {
			return err
		}
		if !changed {
			out = orig
			return nil
		}
		if err := writeAttempt(ctx, tx, a); err != nil {
			return err
		}
		out = a
		return nil
	})
	if err != nil {
		return Attempt{}, err
	}
	return out, nil
}

func (s *SQLStore) CountAttempts(ctx context.Context, quizID, userID string) (int, error) {
	return countAttempts(ctx, s.db, quizID, userID)
}

func (s *SQLStore) ListAttempts(ctx context.Context, opts AttemptListOpts) ([]Attempt, error) {
	var where []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if opts.QuizID != "" {
		add("quiz_id=$%d", opts.QuizID)
	}
	if opts.UserID != "" {
		add("user_id=$%d", opts.UserID)
	}
	if opts.Status != "" {
		add("status=$%d", string(opts.Status))
	}
	q := `SELECT ` + attemptCols + ` FROM attempts`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY started_at DESC, id`
	if opts.Limit > 0 {
		q += fmt.Sprintf(` LIMIT %d`, opts.Limit)
		if opts.Offset > 0 {
			q += fmt.Sprintf(` OFFSET %d`, opts.Offset)
		}
	}
	return s.queryAttempts(ctx, q, args...)
}

func (s *SQLStore) ListOverdue(ctx context.Context, t time.Time) ([]Attempt, error) {
	return s.queryAttempts(ctx, `SELECT `+attemptCols+` FROM attempts
		WHERE status=$1 AND deadline IS NOT NULL AND deadline < $2 ORDER BY deadline`,
		string(StatusInProgress), t.UnixMilli())
}

const attemptCols = `id,quiz_id,user_id,status,started_at,completed_at,deadline,answers_json,order_json,
	total_points,earned_points,score,passed,items_json,time_spent_minutes`

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *SQLStore) getAttempt(ctx context.Context, q queryer, id string, forUpdate bool) (Attempt, error) {
	query := `SELECT ` + attemptCols + ` FROM attempts WHERE id=$1`
	if forUpdate && s.driver == db.DriverPostgres {
		query += ` FOR UPDATE`
	}
	a, err := s.scanAttempt(q.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Attempt{}, ErrNotFound
	}
	return a, err
}

func (s *SQLStore) queryAttempts(ctx context.Context, query string, args ...any) ([]Attempt, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Attempt{}
	for rows.Next() {
		a, err := s.scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *SQLStore) scanAttempt(r rowScanner) (Attempt, error) {
	var (
		a                       Attempt
		status                  string
		started                 int64
		completed, deadline     sql.NullInt64
		ansJSON, orderJSON      string
		total, earned, timeSpnt sql.NullInt64
		score                   sql.NullFloat64
		passed                  sql.NullBool
		itemsJSON               sql.NullString
	)
	if err := r.Scan(&a.ID, &a.QuizID, &a.UserID, &status, &started, &completed, &deadline,
		&ansJSON, &orderJSON, &total, &earned, &score, &passed, &itemsJSON, &timeSpnt); err != nil {
		return Attempt{}, err
	}
	a.Status = Status(status)
	a.StartedAt = time.UnixMilli(started).UTC()
	a.CompletedAt = millisPtr(completed)
	a.Deadline = millisPtr(deadline)
	if err := json.Unmarshal([]byte(ansJSON), &a.Answers); err != nil || a.Answers == nil {
		if err != nil {
			s.log.Warn("attempt data quality", "attempt_id", a.ID, "problem", "malformed answers", "error", err)
		}
		a.Answers = map[string]interface{}{}
	}
	if err := json.Unmarshal([]byte(orderJSON), &a.Order); err != nil {
		s.log.Warn("attempt data quality", "attempt_id", a.ID, "problem", "malformed order", "error", err)
		a.Order = nil
	}
	if a.Status.Terminal() && total.Valid {
		res := &Result{
			Total:  int(total.Int64),
			Earned: int(earned.Int64),
			Score:  score.Float64,
			Passed: passed.Bool,
		}
		if itemsJSON.Valid && itemsJSON.String != "" {
			var items []grading.ItemResult
			if err := json.Unmarshal([]byte(itemsJSON.String), &items); err == nil {
				res.Items = items
			}
		}
		a.Result = res
	}
	if timeSpnt.Valid {
		n := int(timeSpnt.Int64)
		a.TimeSpent = &n
	}
	return a, nil
}

func writeAttempt(ctx context.Context, tx *sql.Tx, a Attempt) error {
	ansJSON, _ := json.Marshal(nonNilAnswers(a.Answers))
	var total, earned, timeSpent sql.NullInt64
	var score sql.NullFloat64
	var passed sql.NullBool
	var items sql.NullString
	if a.Result != nil {
		total = sql.NullInt64{Int64: int64(a.Result.Total), Valid: true}
		earned = sql.NullInt64{Int64: int64(a.Result.Earned), Valid: true}
		score = sql.NullFloat64{Float64: a.Result.Score, Valid: true}
		passed = sql.NullBool{Bool: a.Result.Passed, Valid: true}
		buf, _ := json.Marshal(a.Result.Items)
		items = sql.NullString{String: string(buf), Valid: true}
	}
	if a.TimeSpent != nil {
		timeSpent = sql.NullInt64{Int64: int64(*a.TimeSpent), Valid: true}
	}
	_, err := tx.ExecContext(ctx, `UPDATE attempts SET status=$1, completed_at=$2, answers_json=$3,
		total_points=$4, earned_points=$5, score=$6, passed=$7, items_json=$8, time_spent_minutes=$9
		WHERE id=$10`,
		string(a.Status), nullMillis(a.CompletedAt), string(ansJSON),
		total, earned, score, passed, items, timeSpent, a.ID)
	if err != nil {
		return fmt.Errorf("update attempt %s: %w", a.ID, err)
	}
	return nil
}

func countAttempts(ctx context.Context, q queryer, quizID, userID string) (int, error) {
	var n int
	err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM attempts WHERE quiz_id=$1 AND user_id=$2`,
		quizID, userID).Scan(&n)
	return n, err
}

func nullMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

func millisPtr(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.UnixMilli(v.Int64).UTC()
	return &t
}

func nonNilAnswers(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return map[string]interface{}{}
	}
	return m
}

func nonNilOrder(o []string) []string {
	if o == nil {
		return []string{}
	}
	return o
}
