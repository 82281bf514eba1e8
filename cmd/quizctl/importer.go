package main

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/mind-engage/mindengage-quiz/internal/quiz"
)

// quizFile is the authoring format accepted by `quizctl import`. Pointer
// fields distinguish "unset" (take the default) from an explicit zero.
type quizFile struct {
	ID              string         `yaml:"id"`
	Title           string         `yaml:"title"`
	Description     string         `yaml:"description"`
	CourseID        string         `yaml:"course_id"`
	LessonID        string         `yaml:"lesson_id"`
	DurationMinutes *int           `yaml:"duration_minutes"`
	MaxAttempts     *int           `yaml:"max_attempts"`
	PassingScore    *int           `yaml:"passing_score"`
	Published       bool           `yaml:"published"`
	Randomize       *bool          `yaml:"randomize"`
	ShowResults     *bool          `yaml:"show_results"`
	Questions       []questionFile `yaml:"questions"`
}

type questionFile struct {
	ID          string   `yaml:"id"`
	Prompt      string   `yaml:"prompt"`
	Type        string   `yaml:"type"`
	Options     []string `yaml:"options"`
	Answer      any      `yaml:"answer"` // true, 42 and "text" are all accepted
	Explanation string   `yaml:"explanation"`
	Points      *int     `yaml:"points"`
	Position    int      `yaml:"position"`
	Difficulty  string   `yaml:"difficulty"`
}

func parseQuizYAML(data []byte) (quiz.Quiz, error) {
	var f quizFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return quiz.Quiz{}, fmt.Errorf("parse yaml: %w", err)
	}
	q := quiz.Quiz{
		ID:              f.ID,
		Title:           f.Title,
		Description:     f.Description,
		CourseID:        f.CourseID,
		LessonID:        f.LessonID,
		DurationMinutes: intOr(f.DurationMinutes, quiz.DefaultDurationMinutes),
		MaxAttempts:     intOr(f.MaxAttempts, quiz.DefaultMaxAttempts),
		PassingScore:    intOr(f.PassingScore, quiz.DefaultPassingScore),
		Published:       f.Published,
		Randomize:       boolOr(f.Randomize, true),
		ShowResults:     boolOr(f.ShowResults, true),
	}
	for i, qf := range f.Questions {
		answer := ""
		if qf.Answer != nil {
			answer = fmt.Sprint(qf.Answer)
		}
		key, err := quiz.NewKey(qf.Type, qf.Options, answer)
		if err != nil {
			return quiz.Quiz{}, fmt.Errorf("question %d (%s): %w", i+1, qf.ID, err)
		}
		pos := qf.Position
		if pos == 0 {
			pos = i + 1
		}
		q.Questions = append(q.Questions, quiz.Question{
			ID:          qf.ID,
			Prompt:      qf.Prompt,
			Key:         key,
			Explanation: qf.Explanation,
			Points:      intOr(qf.Points, 1),
			Position:    pos,
			Difficulty:  qf.Difficulty,
		})
	}
	if err := quiz.ValidateQuiz(q); err != nil {
		return quiz.Quiz{}, err
	}
	return q, nil
}

func intOr(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}
