package auth

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/mind-engage/mindengage-quiz/internal/db"
	"github.com/mind-engage/mindengage-quiz/internal/rbac"
)

func openUsersDB(t *testing.T) *sql.DB {
	t.Helper()
	name := strings.ReplaceAll(t.Name(), "/", "_")
	sqlDB, err := db.Open(context.Background(), db.DriverSQLite, "file:"+name+"?mode=memory&cache=shared")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })
	hash, _ := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	if _, err := sqlDB.Exec(`INSERT INTO users (id,username,password_hash,role) VALUES ('u-1','alice',$1,'teacher')`, string(hash)); err != nil {
		t.Fatal(err)
	}
	return sqlDB
}

func TestIssueAndParse(t *testing.T) {
	a := NewAuthService("k1")
	tok, err := a.IssueJWT("u-1", "student")
	if err != nil {
		t.Fatal(err)
	}
	c, err := a.Parse(tok)
	if err != nil || c.Sub != "u-1" || c.Role != "student" {
		t.Fatalf("claims = %+v, %v", c, err)
	}
	if _, err := NewAuthService("other").Parse(tok); err == nil {
		t.Fatal("token accepted with wrong key")
	}
}

func TestLoginHandler(t *testing.T) {
	sqlDB := openUsersDB(t)
	a := NewAuthService("k1")
	h := LoginHandler(a, sqlDB)

	tests := []struct {
		user, pass string
		want       int
	}{
		{"alice", "s3cret", http.StatusOK},
		{"alice", "wrong", http.StatusUnauthorized},
		{"bob", "s3cret", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		body, _ := json.Marshal(map[string]string{"username": tt.user, "password": tt.pass})
		rec := httptest.NewRecorder()
		h(rec, httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader(body)))
		if rec.Code != tt.want {
			t.Fatalf("%s/%s: status %d, want %d", tt.user, tt.pass, rec.Code, tt.want)
		}
		if rec.Code == http.StatusOK {
			var out map[string]string
			_ = json.NewDecoder(rec.Body).Decode(&out)
			c, err := a.Parse(out["access_token"])
			if err != nil || c.Sub != "u-1" || c.Role != "teacher" {
				t.Fatalf("claims = %+v, %v", c, err)
			}
		}
	}
}

func TestJWTMiddlewareAndAttachRole(t *testing.T) {
	sqlDB := openUsersDB(t)
	a := NewAuthService("k1")

	var gotSub, gotRole, actorRole string
	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSub = SubjectFromContext(r.Context())
		gotRole = rbac.RoleFromContext(r.Context())
		a, _ := ActorFromContext(r.Context())
		actorRole = a.Role
	})
	strict := JWTMiddleware(a)(AttachRoleFromDB(sqlDB, false)(final))
	lenient := JWTMiddleware(a)(AttachRoleFromDB(sqlDB, true)(final))

	call := func(h http.Handler, sub, role string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if sub != "" {
			tok, _ := a.IssueJWT(sub, role)
			req.Header.Set("Authorization", "Bearer "+tok)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	// The DB role wins over the claim.
	if code := call(strict, "u-1", "admin"); code != 200 || gotSub != "u-1" || gotRole != "teacher" || actorRole != "teacher" {
		t.Fatalf("db user: %d sub=%q role=%q actor role=%q", code, gotSub, gotRole, actorRole)
	}
	if code := call(strict, "ghost", "student"); code != http.StatusForbidden {
		t.Fatalf("unknown user strict: %d", code)
	}
	if code := call(lenient, "ghost", "student"); code != 200 || gotRole != "student" || actorRole != "student" {
		t.Fatalf("unknown user lenient: %d role=%q", code, gotRole)
	}
	if code := call(strict, "", ""); code != http.StatusUnauthorized {
		t.Fatalf("no token: %d", code)
	}
}
