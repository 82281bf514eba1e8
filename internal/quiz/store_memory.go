package quiz

import (
	"context"
	"sort"
	"sync"
	"time"
)

type memoryStore struct {
	mu       sync.RWMutex
	quizzes  map[string]Quiz
	attempts map[string]Attempt
}

// NewInMemoryStore keeps everything in process. One mutex covers all
// writes, which makes every Store operation atomic.
func NewInMemoryStore() Store {
	return &memoryStore{
		quizzes:  map[string]Quiz{},
		attempts: map[string]Attempt{},
	}
}

func (m *memoryStore) PutQuiz(_ context.Context, q Quiz) error {
	if err := ValidateQuiz(q); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	if old, ok := m.quizzes[q.ID]; ok {
		q.CreatedAt = old.CreatedAt
	} else if q.CreatedAt.IsZero() {
		q.CreatedAt = now
	}
	q.UpdatedAt = now
	q.Questions = byPosition(q.Questions)
	m.quizzes[q.ID] = q
	return nil
}

func (m *memoryStore) GetQuiz(_ context.Context, id string) (Quiz, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	q, ok := m.quizzes[id]
	if !ok {
		return Quiz{}, ErrNotFound
	}
	q.Questions = append([]Question(nil), q.Questions...)
	return q, nil
}

func (m *memoryStore) CreateAttempt(_ context.Context, a Attempt, maxAttempts int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.quizzes[a.QuizID]; !ok {
		return ErrNotFound
	}
	if m.countLocked(a.QuizID, a.UserID) >= maxAttempts {
		return ErrAttemptLimitReached
	}
	m.attempts[a.ID] = cloneAttempt(a)
	return nil
}

func (m *memoryStore) GetAttempt(_ context.Context, id string) (Attempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.attempts[id]
	if !ok {
		return Attempt{}, ErrNotFound
	}
	return cloneAttempt(a), nil
}

func (m *memoryStore) UpdateAttempt(_ context.Context, id string, fn Mutation) (Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.attempts[id]
	if !ok {
		return Attempt{}, ErrNotFound
	}
	a := cloneAttempt(cur)
	changed, err := fn(&a)
	if err != nil {
		return Attempt{}, err
	}
	if !changed {
		return cloneAttempt(cur), nil
	}
	m.attempts[id] = cloneAttempt(a)
	return a, nil
}

func (m *memoryStore) CountAttempts(_ context.Context, quizID, userID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.countLocked(quizID, userID), nil
}

func (m *memoryStore) countLocked(quizID, userID string) int {
	n := 0
	for _, a := range m.attempts {
		if a.QuizID == quizID && a.UserID == userID {
			n++
		}
	}
	return n
}

func (m *memoryStore) ListAttempts(_ context.Context, opts AttemptListOpts) ([]Attempt, error) {
	m.mu.RLock()
	out := make([]Attempt, 0)
	for _, a := range m.attempts {
		if opts.QuizID != "" && a.QuizID != opts.QuizID {
			continue
		}
		if opts.UserID != "" && a.UserID != opts.UserID {
			continue
		}
		if opts.Status != "" && a.Status != opts.Status {
			continue
		}
		out = append(out, cloneAttempt(a))
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].StartedAt.After(out[j].StartedAt)
		}
		return out[i].ID < out[j].ID
	})
	return page(out, opts.Limit, opts.Offset), nil
}

func (m *memoryStore) ListOverdue(_ context.Context, t time.Time) ([]Attempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Attempt
	for _, a := range m.attempts {
		if a.Status == StatusInProgress && a.Deadline != nil && a.Deadline.Before(t) {
			out = append(out, cloneAttempt(a))
		}
	}
	return out, nil
}

func page(in []Attempt, limit, offset int) []Attempt {
	if offset > 0 {
		if offset >= len(in) {
			return []Attempt{}
		}
		in = in[offset:]
	}
	if limit > 0 && limit < len(in) {
		in = in[:limit]
	}
	return in
}

// cloneAttempt copies the maps and slices so callers never share state
// with the store.
func cloneAttempt(a Attempt) Attempt {
	ans := make(map[string]interface{}, len(a.Answers))
	for k, v := range a.Answers {
		ans[k] = v
	}
	a.Answers = ans
	a.Order = append([]string(nil), a.Order...)
	if a.Result != nil {
		r := *a.Result
		r.Items = append(r.Items[:0:0], r.Items...)
		a.Result = &r
	}
	if a.CompletedAt != nil {
		t := *a.CompletedAt
		a.CompletedAt = &t
	}
	if a.Deadline != nil {
		t := *a.Deadline
		a.Deadline = &t
	}
	if a.TimeSpent != nil {
		n := *a.TimeSpent
		a.TimeSpent = &n
	}
	return a
}
