package main

import (
	"testing"

	"github.com/mind-engage/mindengage-quiz/internal/quiz"
)

const cellsYAML = `
id: cells-1
title: Cell biology
course_id: bio-101
published: true
randomize: false
questions:
  - id: q1
    prompt: Powerhouse of the cell?
    type: short_answer
    answer: Mitochondria
    points: 3
  - id: q2
    prompt: Cells have membranes.
    type: true_false
    answer: true
  - id: q3
    prompt: Pick the organelle.
    type: multiple_choice
    options: [nucleus, sidewalk]
    answer: nucleus
    points: 0
`

func TestParseQuizYAMLDefaults(t *testing.T) {
	q, err := parseQuizYAML([]byte(cellsYAML))
	if err != nil {
		t.Fatal(err)
	}
	if q.DurationMinutes != quiz.DefaultDurationMinutes || q.MaxAttempts != quiz.DefaultMaxAttempts ||
		q.PassingScore != quiz.DefaultPassingScore {
		t.Fatalf("defaults not applied: %+v", q)
	}
	if q.Randomize || !q.ShowResults || !q.Published {
		t.Fatalf("flags = randomize %v show %v published %v", q.Randomize, q.ShowResults, q.Published)
	}
	if len(q.Questions) != 3 {
		t.Fatalf("questions = %d", len(q.Questions))
	}
	wantPoints := []int{3, 1, 0}
	for i, qq := range q.Questions {
		if qq.Position != i+1 || qq.Points != wantPoints[i] {
			t.Fatalf("question %d: position %d points %d", i, qq.Position, qq.Points)
		}
	}
	if k, ok := q.Questions[1].Key.(quiz.BoolKey); !ok || !k.Answer {
		t.Fatalf("bool key = %#v", q.Questions[1].Key)
	}
	if !quiz.CorrectnessOf(q.Questions[0], " mitochondria ") {
		t.Fatal("short answer should match case-insensitively")
	}
	if quiz.TotalPoints(q) != 4 {
		t.Fatalf("total = %d", quiz.TotalPoints(q))
	}
}

func TestParseQuizYAMLRejects(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"missing course", "id: x\n"},
		{"zero attempts", "id: x\ncourse_id: c\nmax_attempts: 0\n"},
		{"passing over 100", "id: x\ncourse_id: c\npassing_score: 101\n"},
		{"answer not an option", `
id: x
course_id: c
questions:
  - {id: q1, type: multiple_choice, options: [a, b], answer: c}
`},
		{"unknown type", `
id: x
course_id: c
questions:
  - {id: q1, type: essay, answer: anything}
`},
		{"duplicate position", `
id: x
course_id: c
questions:
  - {id: q1, type: short_answer, answer: a, position: 2}
  - {id: q2, type: short_answer, answer: b, position: 2}
`},
		{"negative points", `
id: x
course_id: c
questions:
  - {id: q1, type: short_answer, answer: a, points: -1}
`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseQuizYAML([]byte(tt.doc))
			if quiz.CodeOf(err) != quiz.CodeInvalidQuiz {
				t.Fatalf("err = %v, want invalid_quiz", err)
			}
		})
	}

	if _, err := parseQuizYAML([]byte("id: [unterminated")); err == nil {
		t.Fatal("malformed yaml accepted")
	}
}

func TestParseQuizYAMLExplicitZeroDuration(t *testing.T) {
	q, err := parseQuizYAML([]byte("id: x\ncourse_id: c\nduration_minutes: 0\nshow_results: false\n"))
	if err != nil {
		t.Fatal(err)
	}
	if q.DurationMinutes != 0 || q.ShowResults {
		t.Fatalf("got duration %d show %v", q.DurationMinutes, q.ShowResults)
	}
}
