package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	authmw "github.com/mind-engage/mindengage-quiz/internal/auth/middleware"
	"github.com/mind-engage/mindengage-quiz/internal/enrollment"
	"github.com/mind-engage/mindengage-quiz/internal/logger"
	"github.com/mind-engage/mindengage-quiz/internal/quiz"
)

type testServer struct {
	srv  *httptest.Server
	auth *authmw.AuthService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()
	store := quiz.NewInMemoryStore()
	err := store.PutQuiz(ctx, quiz.Quiz{
		ID: "quiz-1", Title: "Cells", CourseID: "bio", MaxAttempts: 1, PassingScore: 70,
		Published: true, ShowResults: true,
		Questions: []quiz.Question{
			{ID: "q1", Key: quiz.ChoiceKey{Options: []string{"a", "b"}, Answer: "a"}, Points: 1, Position: 1},
			{ID: "q2", Key: quiz.TextKey{Answer: "mitochondria"}, Points: 3, Position: 2},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	access := enrollment.NewMemory()
	_ = access.Enroll(ctx, "stu", "bio", enrollment.RoleStudent)
	_ = access.Enroll(ctx, "peer", "bio", enrollment.RoleStudent)
	_ = access.Enroll(ctx, "tea", "bio", enrollment.RoleTeacher)

	log := logger.Nop()
	svc := quiz.NewService(store, access, quiz.Options{Log: log})
	authSvc := authmw.NewAuthService("test-secret")

	r := chi.NewRouter()
	r.Use(RequestLogger(log))
	r.Group(func(pr chi.Router) {
		pr.Use(authmw.JWTMiddleware(authSvc))
		MountQuizRoutes(pr, svc, log)
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &testServer{srv: srv, auth: authSvc}
}

func (ts *testServer) do(t *testing.T, method, path, user, role string, body interface{}) (int, map[string]interface{}) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req, _ := http.NewRequest(method, ts.srv.URL+path, &buf)
	if user != "" {
		tok, err := ts.auth.IssueJWT(user, role)
		if err != nil {
			t.Fatal(err)
		}
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var out map[string]interface{}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func TestAttemptFlowOverHTTP(t *testing.T) {
	ts := newTestServer(t)

	code, quizView := ts.do(t, "GET", "/quizzes/quiz-1", "stu", "student", nil)
	if code != 200 || quizView["total_points"].(float64) != 4 {
		t.Fatalf("get quiz: %d %v", code, quizView)
	}
	for _, q := range quizView["questions"].([]interface{}) {
		if _, leaked := q.(map[string]interface{})["answer"]; leaked {
			t.Fatal("answer key leaked")
		}
	}

	code, att := ts.do(t, "POST", "/quizzes/quiz-1/attempts", "stu", "student", nil)
	if code != http.StatusCreated {
		t.Fatalf("start: %d %v", code, att)
	}
	id := att["id"].(string)
	if _, ok := att["result"]; ok {
		t.Fatal("in-progress attempt carries a result")
	}

	code, body := ts.do(t, "POST", "/quizzes/quiz-1/attempts", "stu", "student", nil)
	if code != http.StatusConflict || body["error"] != "attempt_limit_reached" {
		t.Fatalf("second start: %d %v", code, body)
	}

	code, body = ts.do(t, "POST", "/attempts/"+id+"/answers", "peer", "student",
		map[string]interface{}{"answers": map[string]interface{}{"q1": "a"}})
	if code != http.StatusForbidden || body["error"] != "not_owner" {
		t.Fatalf("peer submit: %d %v", code, body)
	}

	code, body = ts.do(t, "POST", "/attempts/"+id+"/answers", "stu", "student",
		map[string]interface{}{"answers": map[string]interface{}{"q2": "Mitochondria", "zz": 1}})
	if code != 200 {
		t.Fatalf("submit: %d %v", code, body)
	}
	if answers := body["answers"].(map[string]interface{}); len(answers) != 1 {
		t.Fatalf("answers = %v", answers)
	}

	code, body = ts.do(t, "POST", "/attempts/"+id+"/finalize", "stu", "student", nil)
	if code != 200 || body["status"] != "completed" {
		t.Fatalf("finalize: %d %v", code, body)
	}
	res := body["result"].(map[string]interface{})
	if res["earned_points"].(float64) != 3 || res["total_points"].(float64) != 4 || res["score"].(float64) != 75 || res["passed"] != true {
		t.Fatalf("result = %v", res)
	}

	code, body = ts.do(t, "POST", "/attempts/"+id+"/answers", "stu", "student",
		map[string]interface{}{"answers": map[string]interface{}{"q1": "a"}})
	if code != http.StatusConflict || body["error"] != "already_completed" {
		t.Fatalf("late submit: %d %v", code, body)
	}

	code, body = ts.do(t, "GET", "/quizzes/quiz-1/best-score", "stu", "student", nil)
	if code != 200 || body["best_score"].(float64) != 75 {
		t.Fatalf("best: %d %v", code, body)
	}
	code, body = ts.do(t, "GET", "/quizzes/quiz-1/best-score?user_id=peer", "stu", "student", nil)
	if code != http.StatusForbidden {
		t.Fatalf("peer best: %d %v", code, body)
	}
	code, body = ts.do(t, "GET", "/quizzes/quiz-1/best-score?user_id=peer", "tea", "teacher", nil)
	if code != 200 || body["best_score"] != nil {
		t.Fatalf("teacher peer best: %d %v", code, body)
	}

	code, body = ts.do(t, "GET", "/quizzes/quiz-1/stats", "tea", "teacher", nil)
	if code != 200 || body["finished"].(float64) != 1 {
		t.Fatalf("stats: %d %v", code, body)
	}
}

func TestHTTPErrors(t *testing.T) {
	ts := newTestServer(t)
	tests := []struct {
		name, method, path, user, role string
		want                           int
	}{
		{"no token", "GET", "/quizzes/quiz-1", "", "", http.StatusUnauthorized},
		{"missing quiz", "GET", "/quizzes/nope", "stu", "student", http.StatusNotFound},
		{"not enrolled", "POST", "/quizzes/quiz-1/attempts", "stranger", "student", http.StatusForbidden},
		{"stats for student", "GET", "/quizzes/quiz-1/stats", "stu", "student", http.StatusForbidden},
		{"missing attempt", "POST", "/attempts/nope/finalize", "stu", "student", http.StatusNotFound},
		{"unknown role", "GET", "/quizzes/quiz-1", "stu", "guest", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if code, body := ts.do(t, tt.method, tt.path, tt.user, tt.role, nil); code != tt.want {
				t.Fatalf("status = %d, want %d (%v)", code, tt.want, body)
			}
		})
	}

	code, _ := ts.do(t, "POST", "/attempts/x/answers", "stu", "student", "not an object")
	if code != http.StatusBadRequest {
		t.Fatalf("bad body status = %d", code)
	}
}

func TestListAttemptsHTTP(t *testing.T) {
	ts := newTestServer(t)
	ts.do(t, "POST", "/quizzes/quiz-1/attempts", "stu", "student", nil)
	ts.do(t, "POST", "/quizzes/quiz-1/attempts", "peer", "student", nil)

	req, _ := http.NewRequest("GET", ts.srv.URL+"/quizzes/quiz-1/attempts?user_id=peer", nil)
	tok, _ := ts.auth.IssueJWT("stu", "student")
	req.Header.Set("Authorization", "Bearer "+tok)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var list []map[string]interface{}
	_ = json.NewDecoder(resp.Body).Decode(&list)
	if len(list) != 1 || list[0]["user_id"] != "stu" {
		t.Fatalf("student list = %v", list)
	}
}
