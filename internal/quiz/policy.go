package quiz

// Ledger arithmetic over a user's attempt history. Counting for the
// attempt limit is done by the Store inside its check-and-create region.

// CanAttempt reports whether another attempt fits under the limit.
func CanAttempt(q Quiz, used int) bool { return used < q.MaxAttempts }

// TotalPoints sums the points of the questions currently on the quiz.
func TotalPoints(q Quiz) int {
	total := 0
	for _, qq := range q.Questions {
		if qq.Points > 0 {
			total += qq.Points
		}
	}
	return total
}

// BestScore is the highest score among scored attempts, nil if none.
func BestScore(attempts []Attempt) *float64 {
	var best *float64
	for _, a := range attempts {
		if !a.Status.Terminal() || a.Result == nil {
			continue
		}
		s := a.Result.Score
		if best == nil || s > *best {
			best = &s
		}
	}
	return best
}

// ComputeStats summarizes every attempt made on q.
func ComputeStats(q Quiz, attempts []Attempt) Stats {
	st := Stats{
		QuizID:         q.ID,
		Attempts:       len(attempts),
		QuestionsCount: len(q.Questions),
		TotalPoints:    TotalPoints(q),
	}
	var sum float64
	for _, a := range attempts {
		if a.Status.Terminal() && a.Result != nil {
			st.Finished++
			sum += a.Result.Score
		}
	}
	if st.Finished > 0 {
		st.AverageScore = sum / float64(st.Finished)
	}
	if st.Attempts > 0 {
		st.CompletionRate = float64(st.Finished) / float64(st.Attempts) * 100
	}
	return st
}
