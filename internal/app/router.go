package app

import (
	"fmt"
	"net/http"
	"time"

	"vocabquiz/internal/aigrader"
	"vocabquiz/internal/app/observability"
	"vocabquiz/internal/auth"
	"vocabquiz/internal/draft"
	"vocabquiz/internal/grading"
	"vocabquiz/internal/quiz"
	"vocabquiz/internal/results"
	"vocabquiz/internal/scoring"
	"vocabquiz/internal/submission"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jmoiron/sqlx"
)

// requestTimeout also bounds a draft submit, which waits for every grading call.
const requestTimeout = 3 * time.Minute

// NewRouter wires every endpoint on top of an opened database.
func NewRouter(cfg Config, db *sqlx.DB) (http.Handler, error) {
	sessionStore, err := draft.NewFilesystemSessionStore(cfg.SessionDir, []byte(cfg.SessionKey), cfg.IsProduction())
	if err != nil {
		return nil, fmt.Errorf("draft sessions: %w", err)
	}

	collector := observability.NewCollector(db.DB)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", csrfHeaderName, auth.ServiceTokenHeader},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(collector.Middleware)
	r.Use(CSRFMiddleware(cfg.CSRFEnforced))

	authSvc := auth.NewService(auth.ServiceConfig{Secret: cfg.JWTSecret})
	authHandler := auth.NewHandler(authSvc, !cfg.IsProduction())
	authLimiter := NewIPRateLimiter(cfg.AuthRateLimitPerMin, time.Minute)
	gradingLimiter := NewIPRateLimiter(cfg.GradingRateLimitPerMin, time.Minute)
	gradingGuard := auth.NewServiceTokenVerifier(cfg.GradingTokenHash)

	quizStore := quiz.NewStore(db)
	quizHandler := quiz.NewHandler(quizStore)

	resultSvc := results.NewService(results.NewStore(db), quizStore)
	resultHandler := results.NewHandler(resultSvc)

	aiHandler := aigrader.NewHandler(aigrader.NewService(aigrader.ServiceConfig{
		APIKey:  cfg.AIAPIKey,
		BaseURL: cfg.AIBaseURL,
		Model:   cfg.AIModel,
	}))

	policy := &scoring.RetryPolicy{
		Grader: grading.NewClient(grading.Config{
			BaseURL: cfg.GradingBaseURL,
			Token:   cfg.GradingToken,
		}),
		Backoff:           cfg.GradingRetryBackoff,
		Timeout:           cfg.GradingTaskTimeout,
		RetryClientErrors: cfg.GradingRetryClientErrors,
		Observer:          collector,
	}
	submitSvc := submission.NewService(policy, resultSvc, cfg.GradingConcurrency)
	draftHandler := draft.NewHandler(quizStore, sessionStore, submitSvc)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
	r.Get("/metrics", collector.MetricsHandler)

	r.Route("/api/v1", func(api chi.Router) {
		api.With(RateLimitMiddleware(authLimiter)).Post("/auth/login", authHandler.Login)
		api.Post("/auth/logout", authHandler.Logout)
		api.Get("/auth/csrf", CSRFTokenHandler(cfg.IsProduction()))

		api.Group(func(ai chi.Router) {
			// Submissions grade through loopback, so token holders share one IP.
			if gradingGuard.Enabled() {
				ai.Use(auth.RequireServiceToken(gradingGuard))
			} else {
				ai.Use(RateLimitMiddleware(gradingLimiter))
			}
			ai.Post("/ai"+grading.FillInTheBlankPath, aiHandler.FillInTheBlankScore)
			ai.Post("/ai"+grading.SentencePath, aiHandler.SentenceScore)
		})

		api.Group(func(secure chi.Router) {
			secure.Use(authHandler.RequireAuth)
			secure.Get("/auth/me", authHandler.Me)

			secure.Get("/quizzes/{id}", quizHandler.Get)
			secure.Get("/quizzes/{id}/questions", quizHandler.Questions)

			secure.Post("/quizzes/{id}/draft", draftHandler.Start)
			secure.Get("/quizzes/{id}/draft", draftHandler.Get)
			secure.Put("/quizzes/{id}/draft/answers", draftHandler.PutAnswer)
			secure.Put("/quizzes/{id}/draft/section", draftHandler.PutSection)
			secure.Get("/quizzes/{id}/draft/progress", draftHandler.Progress)
			secure.Post("/quizzes/{id}/draft/submit", draftHandler.Submit)

			secure.Post("/results", resultHandler.Create)
			secure.Get("/results", resultHandler.List)
			secure.Get("/results/{id}", resultHandler.Get)
			secure.Get("/results/{id}/review", resultHandler.Review)
			secure.Get("/results/{id}/export.xlsx", resultHandler.Export)

			secure.Group(func(teacher chi.Router) {
				teacher.Use(authHandler.RequireRoles(auth.RoleTeacher))
				teacher.Post("/quizzes", quizHandler.Import)
				teacher.Patch("/results/{id}/rescore", resultHandler.Rescore)
			})
		})
	})

	return r, nil
}
