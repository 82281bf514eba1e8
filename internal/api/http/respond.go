package http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	authmw "github.com/mind-engage/mindengage-quiz/internal/auth/middleware"
	"github.com/mind-engage/mindengage-quiz/internal/logger"
	"github.com/mind-engage/mindengage-quiz/internal/quiz"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps a rejection code to an HTTP status.
func statusFor(code quiz.Code) int {
	switch code {
	case quiz.CodeNotFound:
		return http.StatusNotFound
	case quiz.CodeNotPermitted, quiz.CodeNotOwner:
		return http.StatusForbidden
	case quiz.CodeAttemptLimitReached, quiz.CodeQuizNotPublished,
		quiz.CodeAlreadyCompleted, quiz.CodeAttemptExpired:
		return http.StatusConflict
	case quiz.CodeInvalidQuiz:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// writeError reports rejections with their code and hides everything else
// behind a 500 after logging it.
func writeError(w http.ResponseWriter, r *http.Request, log *logger.Logger, err error) {
	code := quiz.CodeOf(err)
	if code == "" {
		log.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error":   "internal",
			"message": "internal error",
		})
		return
	}
	writeJSON(w, statusFor(code), map[string]string{
		"error":   string(code),
		"message": err.Error(),
	})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad_request", "message": msg})
}

// actorFrom returns the acting user the auth middleware stored.
func actorFrom(r *http.Request) quiz.Actor {
	a, _ := authmw.ActorFromContext(r.Context())
	return a
}

func parseIntDefault(s string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return def
	}
	return n
}
