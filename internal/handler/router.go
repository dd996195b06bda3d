package handler

import (
	"net/http"

	"github.com/Shivanand-hulikatti/workshop-enrollment/internal/logger"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// RouterConfig carries what the router needs besides the handlers.
type RouterConfig struct {
	Log *logger.Logger
	// JWTSecret enables bearer token identities when set.
	JWTSecret []byte
	// Metrics is mounted at /metrics when non-nil.
	Metrics http.Handler
}

// NewRouter builds the chi router with the middleware stack and all routes.
func NewRouter(h *Handler, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(Logger(cfg.Log))
	r.Use(CORS)

	r.Get("/health", HealthCheck)
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}

	r.Route("/api", func(r chi.Router) {
		if len(cfg.JWTSecret) > 0 {
			r.Use(Identity(cfg.JWTSecret, cfg.Log))
		}
		r.Route("/workshops", func(r chi.Router) {
			r.Post("/", h.CreateWorkshop)
			r.Get("/", h.ListWorkshops)
			r.Get("/{id}", h.GetWorkshop)
			r.Patch("/{id}/capacity", h.ResizeWorkshop)
			r.Post("/{id}/enroll", h.Enroll)
			r.Get("/{id}/enrollments", h.ListEnrollments)
		})
		r.Route("/enrollments", func(r chi.Router) {
			r.Get("/", h.ListEnrollmentsByStatus)
			r.Post("/{id}/payment", h.ApplyPayment)
			r.Patch("/{id}/status", h.UpdateStatus)
		})
		r.Route("/contacts", func(r chi.Router) {
			r.Get("/", h.ListContacts)
			r.Get("/{id}", h.GetContact)
			r.Put("/{id}/organization", h.LinkOrganization)
		})
		r.Post("/organizations", h.CreateOrganization)
		r.Post("/interests", h.CreateInterest)
	})

	return r
}
