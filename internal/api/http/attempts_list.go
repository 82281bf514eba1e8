package http

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/mindengage-quiz/internal/logger"
	"github.com/mind-engage/mindengage-quiz/internal/quiz"
)

// GET /quizzes/{quizID}/attempts?user_id=...&status=...&limit=50&offset=0
// Students always get their own history; user_id only narrows for staff.
func ListAttemptsHandler(svc *quiz.Service, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		list, err := svc.ListAttempts(r.Context(), actorFrom(r), quiz.AttemptListOpts{
			QuizID: chi.URLParam(r, "quizID"),
			UserID: strings.TrimSpace(q.Get("user_id")),
			Status: quiz.Status(strings.TrimSpace(q.Get("status"))),
			Limit:  parseIntDefault(q.Get("limit"), 50),
			Offset: parseIntDefault(q.Get("offset"), 0),
		})
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}
