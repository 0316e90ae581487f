// Package httpapi exposes the task pipeline over HTTP: multipart image
// upload, the task read model, model listing and account endpoints.
package httpapi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/melcdl/melcdl-backend/internal/logging"
	"github.com/melcdl/melcdl-backend/internal/server/services"
)

// TaskAPI is the slice of the task service the handlers call. Implemented
// by services.TaskService.
type TaskAPI interface {
	Upload(ctx context.Context, userID, contentType, fileName string, data []byte, modelID string) (*services.TaskItem, error)
	List(ctx context.Context, userID string, currentPage, batchSize int) (*services.TaskPage, error)
	Get(ctx context.Context, userID, taskID string) (*services.TaskDetail, error)
	Models(ctx context.Context) ([]services.ModelItem, error)
}

// UserAPI is the slice of the user service the handlers call. Implemented
// by services.UserService.
type UserAPI interface {
	Register(ctx context.Context, login, password, passwordRepeated string) (*services.UserView, error)
	Login(ctx context.Context, login, password string) (*services.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*services.TokenPair, error)
}

// Config carries the router's auth material.
type Config struct {
	SecretKey []byte
}

// NewRouter builds the chi router with all routes and middleware.
func NewRouter(tasksAPI TaskAPI, usersAPI UserAPI, cfg Config, log logging.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	taskHandler := &taskHandler{tasks: tasksAPI, log: log.With("handler", "tasks")}
	authHandler := &authHandler{users: usersAPI, log: log.With("handler", "auth")}

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", healthHandler)

		r.Route("/v1", func(r chi.Router) {
			r.Post("/auth/register", authHandler.register)
			r.Post("/auth/login", authHandler.login)
			r.Post("/auth/refresh", authHandler.refresh)

			r.Group(func(r chi.Router) {
				r.Use(authMiddleware(cfg.SecretKey, log))

				r.Put("/ml/tasks/{model_id}", taskHandler.upload)
				r.Get("/ml/tasks", taskHandler.list)
				r.Get("/ml/tasks/{id}", taskHandler.get)
				r.Get("/ml/models", taskHandler.models)
			})
		})
	})

	return r
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
