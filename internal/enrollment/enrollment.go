// Package enrollment records who may access a course and in what role.
package enrollment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"
)

const (
	RoleStudent = "student"
	RoleTeacher = "teacher"
)

type Enrollment struct {
	UserID    string    `json:"user_id"`
	CourseID  string    `json:"course_id"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

func validRole(r string) bool { return r == RoleStudent || r == RoleTeacher }

// SQLRepo is backed by the enrollments table.
type SQLRepo struct{ db *sql.DB }

func NewSQLRepo(db *sql.DB) *SQLRepo { return &SQLRepo{db: db} }

// Enroll adds or updates a user's role on a course.
func (r *SQLRepo) Enroll(ctx context.Context, userID, courseID, role string) error {
	if !validRole(role) {
		return fmt.Errorf("enrollment: unknown role %q", role)
	}
	_, err := r.db.ExecContext(ctx, `INSERT INTO enrollments (user_id,course_id,role,created_at)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (user_id,course_id) DO UPDATE SET role=EXCLUDED.role`,
		userID, courseID, role, time.Now().UnixMilli())
	return err
}

func (r *SQLRepo) Unenroll(ctx context.Context, userID, courseID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM enrollments WHERE user_id=$1 AND course_id=$2`, userID, courseID)
	return err
}

func (r *SQLRepo) role(ctx context.Context, userID, courseID string) (string, error) {
	var role string
	err := r.db.QueryRowContext(ctx, `SELECT role FROM enrollments WHERE user_id=$1 AND course_id=$2`,
		userID, courseID).Scan(&role)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return role, err
}

// IsUserPermittedOnCourse is true for any enrollment, student or teacher.
func (r *SQLRepo) IsUserPermittedOnCourse(ctx context.Context, userID, courseID string) (bool, error) {
	role, err := r.role(ctx, userID, courseID)
	return role != "", err
}

func (r *SQLRepo) IsCourseStaff(ctx context.Context, userID, courseID string) (bool, error) {
	role, err := r.role(ctx, userID, courseID)
	return role == RoleTeacher, err
}

func (r *SQLRepo) ListByCourse(ctx context.Context, courseID string) ([]Enrollment, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT user_id,course_id,role,created_at FROM enrollments
		WHERE course_id=$1 ORDER BY user_id`, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Enrollment
	for rows.Next() {
		var e Enrollment
		var created int64
		if err := rows.Scan(&e.UserID, &e.CourseID, &e.Role, &created); err != nil {
			return nil, err
		}
		e.CreatedAt = time.UnixMilli(created).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

// Memory is an in-process Access used by tests and the dev server.
type Memory struct {
	mu    sync.RWMutex
	roles map[string]string // user|course -> role
}

func NewMemory() *Memory { return &Memory{roles: map[string]string{}} }

func (m *Memory) Enroll(_ context.Context, userID, courseID, role string) error {
	if !validRole(role) {
		return fmt.Errorf("enrollment: unknown role %q", role)
	}
	m.mu.Lock()
	m.roles[userID+"|"+courseID] = role
	m.mu.Unlock()
	return nil
}

func (m *Memory) IsUserPermittedOnCourse(_ context.Context, userID, courseID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.roles[userID+"|"+courseID] != "", nil
}

func (m *Memory) IsCourseStaff(_ context.Context, userID, courseID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.roles[userID+"|"+courseID] == RoleTeacher, nil
}
