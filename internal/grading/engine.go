package grading

// Q is the minimal view of a question needed for grading.
type Q struct {
	ID        string
	Type      string
	AnswerKey string
	Points    int
}

// ItemResult is the outcome for a single question.
type ItemResult struct {
	QuestionID string `json:"question_id"`
	Answered   bool   `json:"answered"`
	Correct    bool   `json:"correct"`
	Points     int    `json:"points"`
	Awarded    int    `json:"awarded"`
}

// Result is the outcome of scoring a whole answer set.
type Result struct {
	Earned     int          `json:"earned_points"`
	Total      int          `json:"total_points"`
	Percentage float64      `json:"score"`
	Passed     bool         `json:"passed"`
	Items      []ItemResult `json:"items,omitempty"`
}

// Strategy decides correctness of one response for one question type.
type Strategy interface {
	Correct(q Q, response interface{}) bool
}

// Engine routes by question type to the matching Strategy.
type Engine struct {
	strategies map[string]Strategy
}

// NewEngine installs the built-in strategies. All three built-in types
// share the same trim+lowercase exact match.
func NewEngine() *Engine {
	exact := exactMatchStrategy{}
	return &Engine{
		strategies: map[string]Strategy{
			"multiple_choice": exact,
			"true_false":      exact,
			"short_answer":    exact,
		},
	}
}

var defaultEngine = NewEngine()

// Correct reports whether response is correct for q. Unknown types are
// never correct.
func (e *Engine) Correct(q Q, response interface{}) bool {
	s, ok := e.strategies[q.Type]
	if !ok {
		return false
	}
	return s.Correct(q, response)
}

// Score grades answers against questions. It has no side effects and the
// same inputs always produce the same Result. Answers for ids that are not
// in questions are ignored.
func (e *Engine) Score(questions []Q, answers map[string]interface{}, passingScore int) Result {
	var res Result
	res.Items = make([]ItemResult, 0, len(questions))
	for _, q := range questions {
		pts := q.Points
		if pts < 0 {
			pts = 0
		}
		res.Total += pts
		item := ItemResult{QuestionID: q.ID, Points: pts}
		if resp, ok := answers[q.ID]; ok && resp != nil {
			item.Answered = true
			if e.Correct(q, resp) {
				item.Correct = true
				item.Awarded = pts
				res.Earned += pts
			}
		}
		res.Items = append(res.Items, item)
	}
	if res.Total > 0 {
		res.Percentage = float64(res.Earned) / float64(res.Total) * 100
	}
	res.Passed = res.Percentage >= float64(passingScore)
	return res
}

// Correct uses the default engine.
func Correct(q Q, response interface{}) bool { return defaultEngine.Correct(q, response) }

// Score uses the default engine.
func Score(questions []Q, answers map[string]interface{}, passingScore int) Result {
	return defaultEngine.Score(questions, answers, passingScore)
}

type exactMatchStrategy struct{}

func (exactMatchStrategy) Correct(q Q, response interface{}) bool {
	text, ok := responseText(response)
	if !ok {
		return false
	}
	return normalize(text) == normalize(q.AnswerKey)
}
