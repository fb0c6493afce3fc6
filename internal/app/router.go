package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/gatehouse-vms/gatehouse/internal/auth"
	"github.com/gatehouse-vms/gatehouse/internal/masterdata"
	"github.com/gatehouse-vms/gatehouse/internal/users"
	"github.com/gatehouse-vms/gatehouse/internal/visitors"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger            *slog.Logger
	Config            *Config
	AuthHandler       *auth.Handler
	AuthMiddleware    auth.Middleware
	UsersHandler      *users.Handler
	MasterDataHandler *masterdata.Handler
	VisitorsHandler   *visitors.Handler
}

// NewRouter constructs the chi.Router for the API server.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger: params.Logger,
		Config: params.Config,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/api/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/auth", func(r chi.Router) {
		r.With(LoginRateLimit()).Group(params.AuthHandler.MountRoutes)
		r.Group(func(r chi.Router) {
			r.Use(params.AuthMiddleware.RequireAuth)
			params.AuthHandler.MountProtectedRoutes(r)
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(params.AuthMiddleware.RequireAuth)
		r.Route("/api/users", params.UsersHandler.MountRoutes)
		r.Route("/api/master-data", params.MasterDataHandler.MountRoutes)
		r.Route("/api/visitors", params.VisitorsHandler.MountRoutes)
		r.Route("/api/reports", params.VisitorsHandler.MountReportRoutes)
	})

	return r
}
