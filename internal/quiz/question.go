package quiz

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/mind-engage/mindengage-quiz/internal/grading"
)

const (
	TypeMultipleChoice = "multiple_choice"
	TypeTrueFalse      = "true_false"
	TypeShortAnswer    = "short_answer"
)

// AnswerKey is the correct answer of a question, one variant per type.
type AnswerKey interface {
	Type() string
	// Canonical is the text a response is compared against.
	Canonical() string
}

type ChoiceKey struct {
	Options []string
	Answer  string
}

func (ChoiceKey) Type() string        { return TypeMultipleChoice }
func (k ChoiceKey) Canonical() string { return k.Answer }

// BoolKey keeps the stored answer text next to its parsed value. Responses
// are matched against the text, so a stored "T" accepts "t" but not "true".
type BoolKey struct {
	Answer bool
	Text   string
}

func (BoolKey) Type() string { return TypeTrueFalse }

func (k BoolKey) Canonical() string {
	if strings.TrimSpace(k.Text) != "" {
		return k.Text
	}
	return strconv.FormatBool(k.Answer)
}

type TextKey struct{ Answer string }

func (TextKey) Type() string        { return TypeShortAnswer }
func (k TextKey) Canonical() string { return k.Answer }

// unknownKey carries a stored question whose type is not recognized. It
// never matches a response.
type unknownKey struct {
	typ    string
	answer string
}

func (k unknownKey) Type() string    { return k.typ }
func (unknownKey) Canonical() string { return "" }

// NewKey builds an answer key from authoring input and rejects anything
// that would make the question unanswerable.
func NewKey(typ string, options []string, answer string) (AnswerKey, error) {
	switch typ {
	case TypeMultipleChoice:
		if len(options) == 0 {
			return nil, Invalid("multiple_choice question needs options")
		}
		found := false
		for _, o := range options {
			if normalize(o) == normalize(answer) {
				found = true
				break
			}
		}
		if !found {
			return nil, Invalid(fmt.Sprintf("answer %q is not one of the options", answer))
		}
		return ChoiceKey{Options: append([]string(nil), options...), Answer: answer}, nil
	case TypeTrueFalse:
		b, err := strconv.ParseBool(normalize(answer))
		if err != nil {
			return nil, Invalid(fmt.Sprintf("true_false answer %q is not a boolean", answer))
		}
		return BoolKey{Answer: b, Text: strings.TrimSpace(answer)}, nil
	case TypeShortAnswer:
		if strings.TrimSpace(answer) == "" {
			return nil, Invalid("short_answer question needs an answer")
		}
		return TextKey{Answer: answer}, nil
	default:
		return nil, Invalid(fmt.Sprintf("unknown question type %q", typ))
	}
}

// DecodeKey rebuilds a key from its stored columns. Malformed data never
// fails: it degrades to an empty option list or an unknown key, and warn
// (if set) is told why.
func DecodeKey(typ, optionsJSON, answer string, warn func(msg string)) AnswerKey {
	switch typ {
	case TypeMultipleChoice:
		opts, err := ParseOptions(optionsJSON)
		if err != nil && warn != nil {
			warn("malformed options: " + err.Error())
		}
		return ChoiceKey{Options: opts, Answer: answer}
	case TypeTrueFalse:
		b, err := strconv.ParseBool(normalize(answer))
		if err != nil && warn != nil {
			warn(fmt.Sprintf("true_false answer %q is not a boolean", answer))
		}
		return BoolKey{Answer: b, Text: answer}
	case TypeShortAnswer:
		return TextKey{Answer: answer}
	default:
		if warn != nil {
			warn(fmt.Sprintf("unknown question type %q", typ))
		}
		return unknownKey{typ: typ, answer: answer}
	}
}

// EncodeKey is the inverse of DecodeKey: type, options JSON and answer text.
func EncodeKey(k AnswerKey) (typ, optionsJSON, answer string) {
	switch v := k.(type) {
	case ChoiceKey:
		buf, _ := json.Marshal(v.Options)
		return TypeMultipleChoice, string(buf), v.Answer
	case BoolKey:
		return TypeTrueFalse, "", v.Canonical()
	case TextKey:
		return TypeShortAnswer, "", v.Answer
	case unknownKey:
		return v.typ, "", v.answer
	default:
		return "", "", ""
	}
}

// ParseOptions decodes a stored option list. On error it returns an
// empty, non-nil list alongside the error.
func ParseOptions(raw string) ([]string, error) {
	if strings.TrimSpace(raw) == "" {
		return []string{}, nil
	}
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return []string{}, err
	}
	if out == nil {
		out = []string{}
	}
	return out, nil
}

// OptionsOf returns the selectable options; empty for non-choice questions.
func OptionsOf(q Question) []string {
	if k, ok := q.Key.(ChoiceKey); ok && len(k.Options) > 0 {
		return append([]string(nil), k.Options...)
	}
	return []string{}
}

// CorrectnessOf reports whether answer is correct for q. Both sides are
// trimmed and lowercased regardless of type; unknown types are false.
func CorrectnessOf(q Question, answer interface{}) bool {
	return grading.Correct(q.grading(), answer)
}

// ValidateQuiz checks the quiz settings and its questions. Every store runs
// it before writing.
func ValidateQuiz(q Quiz) error {
	switch {
	case strings.TrimSpace(q.ID) == "":
		return Invalid("quiz id required")
	case strings.TrimSpace(q.CourseID) == "":
		return Invalid("quiz course_id required")
	case q.DurationMinutes < 0:
		return Invalid("duration_minutes must be >= 0")
	case q.MaxAttempts < 1:
		return Invalid("max_attempts must be positive")
	case q.PassingScore < 0 || q.PassingScore > 100:
		return Invalid("passing_score must be within 0..100")
	}
	return ValidateQuestions(q.Questions)
}

// ValidateQuestions checks ids, positions and points before a quiz is stored.
func ValidateQuestions(qs []Question) error {
	ids := make(map[string]bool, len(qs))
	positions := make(map[int]bool, len(qs))
	for _, q := range qs {
		if strings.TrimSpace(q.ID) == "" {
			return Invalid("question id required")
		}
		if ids[q.ID] {
			return Invalid(fmt.Sprintf("duplicate question id %q", q.ID))
		}
		ids[q.ID] = true
		if positions[q.Position] {
			return Invalid(fmt.Sprintf("duplicate position %d", q.Position))
		}
		positions[q.Position] = true
		if q.Points < 0 {
			return Invalid(fmt.Sprintf("question %q has negative points", q.ID))
		}
		if q.Key == nil {
			return Invalid(fmt.Sprintf("question %q has no answer key", q.ID))
		}
	}
	return nil
}

func (q Question) view() QuestionView {
	return QuestionView{
		ID:         q.ID,
		Prompt:     q.Prompt,
		Type:       q.Type(),
		Options:    OptionsOf(q),
		Points:     q.Points,
		Position:   q.Position,
		Difficulty: q.Difficulty,
	}
}

func normalize(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
