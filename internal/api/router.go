package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/carebridge/telehealth/internal/auth"
	"github.com/carebridge/telehealth/internal/scheduling"
)

type RouterConfig struct {
	Booking   *scheduling.BookingService
	Lifecycle *scheduling.LifecycleService
	Query     *scheduling.QueryService
	Auth      *auth.Resolver
	DB        Pinger
	EventBus  Pinger
	Logger    zerolog.Logger
	Env       string
	Version   string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(RecoveryMiddleware(cfg.Logger))

	// Health endpoints
	health := NewHealthHandler(cfg.DB, cfg.EventBus, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	// Everything else requires a resolved caller.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Auth))

		r.Post("/appointments", bookAppointmentHandler(cfg.Booking, cfg.Logger))
		r.Get("/appointments", listOwnAppointmentsHandler(cfg.Query, cfg.Logger))
		r.Get("/appointments/all", listAllAppointmentsHandler(cfg.Query, cfg.Logger))
		r.Get("/appointments/{id}", getAppointmentHandler(cfg.Query, cfg.Logger))
		r.Post("/appointments/{id}/confirm", confirmAppointmentHandler(cfg.Lifecycle, cfg.Logger))
		r.Post("/appointments/{id}/cancel", cancelAppointmentHandler(cfg.Lifecycle, cfg.Logger))
		r.Put("/appointments/{id}/reschedule", rescheduleAppointmentHandler(cfg.Lifecycle, cfg.Logger))
		r.Patch("/appointments/{id}", updateAppointmentHandler(cfg.Lifecycle, cfg.Logger))

		r.Post("/doctors/{doctorID}/availability", createAvailabilityHandler(cfg.Booking, cfg.Logger))
	})

	return r
}
