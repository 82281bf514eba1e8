package quiz

import (
	"time"

	"github.com/mind-engage/mindengage-quiz/internal/grading"
)

type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusExpired    Status = "expired" // deadline passed; scored with what was submitted
)

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool { return s == StatusCompleted || s == StatusExpired }

const (
	RoleStudent = "student"
	RoleTeacher = "teacher"
	RoleAdmin   = "admin"
)

// Actor is the acting user of a call. It is always passed explicitly.
type Actor struct {
	ID   string
	Role string
}

func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }

type Question struct {
	ID          string    `json:"id"`
	Prompt      string    `json:"prompt"`
	Key         AnswerKey `json:"-"`
	Explanation string    `json:"explanation,omitempty"`
	Points      int       `json:"points"`
	Position    int       `json:"position"`
	Difficulty  string    `json:"difficulty,omitempty"`
}

// Type is the question type derived from its answer key.
func (q Question) Type() string {
	if q.Key == nil {
		return ""
	}
	return q.Key.Type()
}

func (q Question) grading() grading.Q {
	g := grading.Q{ID: q.ID, Type: q.Type(), Points: q.Points}
	if q.Key != nil {
		g.AnswerKey = q.Key.Canonical()
	}
	return g
}

type Quiz struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	Description     string     `json:"description,omitempty"`
	CourseID        string     `json:"course_id"`
	LessonID        string     `json:"lesson_id,omitempty"`
	DurationMinutes int        `json:"duration_minutes"` // 0 = unlimited
	MaxAttempts     int        `json:"max_attempts"`
	PassingScore    int        `json:"passing_score"`
	Published       bool       `json:"is_published"`
	Randomize       bool       `json:"is_randomized"`
	ShowResults     bool       `json:"show_results_immediately"`
	Questions       []Question `json:"-"` // ordered by Position
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Defaults used when an imported quiz leaves a knob unset.
const (
	DefaultDurationMinutes = 30
	DefaultMaxAttempts     = 3
	DefaultPassingScore    = 70
	DefaultDifficulty      = "medium"
)

// Result is the frozen score of a terminal attempt.
type Result struct {
	Earned int                  `json:"earned_points"`
	Total  int                  `json:"total_points"`
	Score  float64              `json:"score"`
	Passed bool                 `json:"passed"`
	Items  []grading.ItemResult `json:"items,omitempty"`
}

type Attempt struct {
	ID          string                 `json:"id"`
	QuizID      string                 `json:"quiz_id"`
	UserID      string                 `json:"user_id"`
	Status      Status                 `json:"status"`
	StartedAt   time.Time              `json:"started_at"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
	Deadline    *time.Time             `json:"deadline,omitempty"`
	Answers     map[string]interface{} `json:"answers"`
	Order       []string               `json:"order"` // question ids fixed at issue
	Result      *Result                `json:"result,omitempty"`
	TimeSpent   *int                   `json:"time_spent_minutes,omitempty"`
}

// QuestionView is a question as shown to a quiz taker: no answer key.
type QuestionView struct {
	ID         string   `json:"id"`
	Prompt     string   `json:"prompt"`
	Type       string   `json:"type"`
	Options    []string `json:"options,omitempty"`
	Points     int      `json:"points"`
	Position   int      `json:"position"`
	Difficulty string   `json:"difficulty,omitempty"`
}

type QuizView struct {
	Quiz
	QuestionsCount int            `json:"questions_count"`
	TotalPoints    int            `json:"total_points"`
	Questions      []QuestionView `json:"questions,omitempty"`
}

type AttemptView struct {
	ID          string                 `json:"id"`
	QuizID      string                 `json:"quiz_id"`
	UserID      string                 `json:"user_id"`
	Status      Status                 `json:"status"`
	StartedAt   time.Time              `json:"started_at"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
	Deadline    *time.Time             `json:"deadline,omitempty"`
	TimeSpent   *int                   `json:"time_spent_minutes,omitempty"`
	Questions   []QuestionView         `json:"questions"`
	Answers     map[string]interface{} `json:"answers"`
	Result      *Result                `json:"result,omitempty"`
}

// Stats summarizes a quiz for staff.
type Stats struct {
	QuizID         string  `json:"quiz_id"`
	Attempts       int     `json:"attempts"`
	Finished       int     `json:"finished"`
	AverageScore   float64 `json:"average_score"`
	CompletionRate float64 `json:"completion_rate"`
	QuestionsCount int     `json:"questions_count"`
	TotalPoints    int     `json:"total_points"`
}
