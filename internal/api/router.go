package api

import (
	"net/http"
	"time"

	"taskmaster/internal/api/handler"
	"taskmaster/internal/api/middleware"
	"taskmaster/internal/app/service"
	"taskmaster/internal/common"
	"taskmaster/internal/common/security"
	"taskmaster/internal/domain/model"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/jwtauth/v5"
)

// Services groups everything the HTTP layer calls into.
type Services struct {
	Tokens   *security.TokenIssuer
	Auth     *service.AuthService
	Users    *service.UserService
	Projects *service.ProjectService
	Tasks    *service.TaskService
	Insights *service.InsightService

	DueSoonDays int
	StartedAt   time.Time
}

func NewRouter(s Services) http.Handler {
	if s.StartedAt.IsZero() {
		s.StartedAt = time.Now()
	}

	r := chi.NewRouter()

	// Base Middlewares
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(60 * time.Second))

	// Verifier only parses "Authorization: Bearer T"; requireAuth decides
	// whether a route needs it.
	r.Use(jwtauth.Verifier(s.Tokens.Auth()))
	requireAuth := middleware.Authenticator(s.Auth)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		common.RespondWithError(w, http.StatusNotFound, "Route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		common.RespondWithError(w, http.StatusNotFound, "Route not found")
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		common.RespondWithJSON(w, http.StatusOK, healthResponse{
			Status:    "OK",
			Timestamp: model.NewTimestamp(time.Now()),
			Uptime:    time.Since(s.StartedAt).Seconds(),
		})
	})

	r.Route("/api", func(api chi.Router) {
		userHandler := handler.NewUserHandler(s.Users)

		authHandler := handler.NewAuthHandler(s.Auth, userHandler, requireAuth)
		api.Route("/auth", authHandler.RegisterRoutes)

		// Utilities (public)
		api.Route("/strings", handler.NewStringsHandler().RegisterRoutes)
		api.Route("/calculator", handler.NewCalculatorHandler().RegisterRoutes)
		api.Route("/datetime", handler.NewDateTimeHandler(s.DueSoonDays).RegisterRoutes)

		api.Group(func(authed chi.Router) {
			authed.Use(requireAuth)
			authed.Route("/users", userHandler.RegisterRoutes)
			authed.Route("/projects", handler.NewProjectHandler(s.Projects).RegisterRoutes)
			authed.Route("/tasks", handler.NewTaskHandler(s.Tasks).RegisterRoutes)
			authed.Route("/advanced", handler.NewAdvancedHandler(s.Insights).RegisterRoutes)
		})
	})

	return r
}

type healthResponse struct {
	Status    string          `json:"status"`
	Timestamp model.Timestamp `json:"timestamp"`
	Uptime    float64         `json:"uptime"`
}
