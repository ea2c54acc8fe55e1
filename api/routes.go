package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/garnizeh/fieldops/internal/auth"
	"github.com/garnizeh/fieldops/internal/config"
	"github.com/garnizeh/fieldops/internal/dashboard"
	"github.com/garnizeh/fieldops/internal/db"
	"github.com/garnizeh/fieldops/internal/repository/sqlite"
	"github.com/garnizeh/fieldops/internal/service"
)

func SetupRoutes(cfg *config.Config, version, buildTime string, db *db.DB) *mux.Router {
	r := mux.NewRouter()

	// Middleware chain
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware)
	r.Use(CORSMiddleware)
	r.Use(RecoveryMiddleware)

	// Repository
	repo := sqlite.New(db, logger.With("component", "repository"))

	// Services
	authSvc := auth.New(repo, cfg.JWTSecret, cfg.TokenDuration, cfg.RefreshTokenDuration, logger.With("component", "auth"))
	svc := service.New(repo.Repository(), logger.With("component", "service"))
	svc.SetPagination(cfg.Pagination.DefaultPageSize, cfg.Pagination.MaxPageSize)
	agg := dashboard.New(repo, logger.With("component", "dashboard"))

	// Create handlers
	systemHandler := &SystemHandler{db: db}
	authHandler := NewAuthHandler(authSvc)
	jobsHandler := NewJobsHandler(svc)
	tasksHandler := NewTasksHandler(svc)
	equipmentHandler := NewEquipmentHandler(svc)
	dashboardHandler := NewDashboardHandler(agg, svc)

	// Open endpoints
	r.HandleFunc("/version", systemHandler.VersionHandler(version, buildTime)).Methods(http.MethodGet)
	r.HandleFunc("/health", systemHandler.HealthHandler).Methods(http.MethodGet)
	r.HandleFunc("/login", authHandler.Login).Methods(http.MethodPost)
	r.HandleFunc("/token/refresh", authHandler.Refresh).Methods(http.MethodPost)

	// Protected routes
	protected := r.NewRoute().Subrouter()
	protected.Use(AuthMiddleware(authSvc))

	protected.HandleFunc("/signup", authHandler.Signup).Methods(http.MethodPost)
	protected.HandleFunc("/signout", authHandler.Signout).Methods(http.MethodPost)

	resource(protected, "/jobs", jobsHandler)
	resource(protected, "/tasks", tasksHandler)
	resource(protected, "/equipment", equipmentHandler)

	protected.HandleFunc("/technician-dashboard", dashboardHandler.Technician).Methods(http.MethodGet)

	return r
}

type crudHandler interface {
	List(http.ResponseWriter, *http.Request)
	Create(http.ResponseWriter, *http.Request)
	Get(http.ResponseWriter, *http.Request)
	Replace(http.ResponseWriter, *http.Request)
	Update(http.ResponseWriter, *http.Request)
	Delete(http.ResponseWriter, *http.Request)
}

func resource(r *mux.Router, prefix string, h crudHandler) {
	r.HandleFunc(prefix, h.List).Methods(http.MethodGet)
	r.HandleFunc(prefix, h.Create).Methods(http.MethodPost)
	item := prefix + "/{id:[0-9]+}"
	r.HandleFunc(item, h.Get).Methods(http.MethodGet)
	r.HandleFunc(item, h.Replace).Methods(http.MethodPut)
	r.HandleFunc(item, h.Update).Methods(http.MethodPatch)
	r.HandleFunc(item, h.Delete).Methods(http.MethodDelete)
}
