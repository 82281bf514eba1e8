package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mind-engage/mindengage-quiz/internal/logger"
	"github.com/mind-engage/mindengage-quiz/internal/quiz"
	"github.com/mind-engage/mindengage-quiz/internal/rbac"
)

// MountQuizRoutes registers the quiz and attempt endpoints. The caller is
// expected to have put the acting user into the context already.
func MountQuizRoutes(r chi.Router, svc *quiz.Service, log *logger.Logger) {
	r.Route("/quizzes/{quizID}", func(qr chi.Router) {
		qr.With(rbac.Require(rbac.PermQuizView)).Get("/", GetQuizHandler(svc, log))
		qr.With(rbac.Require(rbac.PermAttemptCreate)).Post("/attempts", StartAttemptHandler(svc, log))
		qr.With(rbac.RequireAny(rbac.PermAttemptViewOwn, rbac.PermAttemptViewAll)).
			Get("/attempts", ListAttemptsHandler(svc, log))
		qr.With(rbac.RequireAny(rbac.PermAttemptViewOwn, rbac.PermAttemptViewAll)).
			Get("/best-score", BestScoreHandler(svc, log))
		qr.With(rbac.Require(rbac.PermQuizStats)).Get("/stats", QuizStatsHandler(svc, log))
	})
	r.Route("/attempts/{attemptID}", func(ar chi.Router) {
		ar.With(rbac.RequireAny(rbac.PermAttemptViewOwn, rbac.PermAttemptViewAll)).Get("/", GetAttemptHandler(svc, log))
		ar.With(rbac.Require(rbac.PermAttemptSave)).Post("/answers", SubmitAnswersHandler(svc, log))
		ar.With(rbac.Require(rbac.PermAttemptFinalize)).Post("/finalize", FinalizeAttemptHandler(svc, log))
	})
}

// RequestLogger logs one line per request through the service logger.
func RequestLogger(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}
