package enrollment

import (
	"context"
	"strings"
	"testing"

	"github.com/mind-engage/mindengage-quiz/internal/db"
)

func openTestDB(t *testing.T) *SQLRepo {
	t.Helper()
	name := strings.ReplaceAll(t.Name(), "/", "_")
	sqlDB, err := db.Open(context.Background(), db.DriverSQLite, "file:"+name+"?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })
	return NewSQLRepo(sqlDB)
}

func TestSQLRepo_Roles(t *testing.T) {
	ctx := context.Background()
	r := openTestDB(t)

	if err := r.Enroll(ctx, "u1", "c1", RoleStudent); err != nil {
		t.Fatal(err)
	}
	if err := r.Enroll(ctx, "t1", "c1", RoleTeacher); err != nil {
		t.Fatal(err)
	}
	if err := r.Enroll(ctx, "u1", "c1", "owner"); err == nil {
		t.Fatal("expected unknown role to be rejected")
	}

	tests := []struct {
		user, course    string
		permitted, staff bool
	}{
		{"u1", "c1", true, false},
		{"t1", "c1", true, true},
		{"u1", "c2", false, false},
		{"nobody", "c1", false, false},
	}
	for _, tt := range tests {
		p, err := r.IsUserPermittedOnCourse(ctx, tt.user, tt.course)
		if err != nil || p != tt.permitted {
			t.Errorf("permitted(%s,%s) = %v,%v want %v", tt.user, tt.course, p, err, tt.permitted)
		}
		s, err := r.IsCourseStaff(ctx, tt.user, tt.course)
		if err != nil || s != tt.staff {
			t.Errorf("staff(%s,%s) = %v,%v want %v", tt.user, tt.course, s, err, tt.staff)
		}
	}

	// Re-enrolling updates the role in place.
	if err := r.Enroll(ctx, "u1", "c1", RoleTeacher); err != nil {
		t.Fatal(err)
	}
	list, err := r.ListByCourse(ctx, "c1")
	if err != nil || len(list) != 2 {
		t.Fatalf("list = %v, %v", list, err)
	}
	if ok, _ := r.IsCourseStaff(ctx, "u1", "c1"); !ok {
		t.Fatal("role not updated")
	}

	if err := r.Unenroll(ctx, "u1", "c1"); err != nil {
		t.Fatal(err)
	}
	if ok, _ := r.IsUserPermittedOnCourse(ctx, "u1", "c1"); ok {
		t.Fatal("still permitted after unenroll")
	}
}

func TestMemory(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	_ = m.Enroll(ctx, "s", "c", RoleStudent)
	_ = m.Enroll(ctx, "t", "c", RoleTeacher)
	if ok, _ := m.IsUserPermittedOnCourse(ctx, "s", "c"); !ok {
		t.Fatal("student should be permitted")
	}
	if ok, _ := m.IsCourseStaff(ctx, "s", "c"); ok {
		t.Fatal("student is not staff")
	}
	if ok, _ := m.IsCourseStaff(ctx, "t", "c"); !ok {
		t.Fatal("teacher is staff")
	}
}
