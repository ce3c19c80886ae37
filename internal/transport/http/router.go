package http

import (
	"net/http"

	"github.com/complaint-hub/internal/application/notification"
	"github.com/complaint-hub/internal/application/reminder"
	"github.com/complaint-hub/internal/config"
	"github.com/complaint-hub/internal/domain"
	"github.com/complaint-hub/internal/transport/http/handler"
	appmiddleware "github.com/complaint-hub/internal/transport/http/middleware"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/time/rate"
)

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	var authMw func(http.Handler) http.Handler
	if deps.JWTProvider != nil {
		authMw = appmiddleware.Auth(deps.JWTProvider)
	} else {
		authMw = func(next http.Handler) http.Handler { return next }
	}

	// 5 requests/second, burst of 10 — keeps reconnect storms from
	// hammering the upgrade endpoint.
	streamRL := appmiddleware.NewRateLimiter(rate.Limit(5), 10)

	notifSvc := notification.NewService(deps.NotificationRepo, int32(cfg.NotificationsLimit))
	reminderSvc := reminder.NewService(deps.ReminderRepo)

	healthH := handler.NewHealthHandler()
	notifH := handler.NewNotificationHandler(notifSvc)
	reminderH := handler.NewReminderHandler(reminderSvc)
	eventH := handler.NewEventHandler(deps.Dispatcher)
	streamH := handler.NewStreamHandler(deps.Registry, deps.JWTProvider, cfg.SessionSendBuffer, cfg.AllowedOrigins)

	r.Route("/v1", func(r chi.Router) {
		// ── Public routes (no auth) ──────────────────────────────────────────
		r.Get("/health-check/{action}", healthH.Ping)
		r.Post("/health-check/{action}", healthH.Ping)

		// WebSocket upgrade authenticates inside the handler (browsers
		// cannot set headers on the upgrade request).
		r.With(streamRL.Limit).Get("/stream", streamH.Stream)

		// ── Authenticated routes ─────────────────────────────────────────────
		r.Group(func(r chi.Router) {
			r.Use(authMw)

			r.Get("/notifications", notifH.List)
			r.Put("/notifications/read", notifH.MarkRead)
			r.Delete("/notifications", notifH.Clear)

			r.Get("/reminders", reminderH.List)
			r.Get("/reminders/{id}", reminderH.Get)
			r.Put("/reminders/{id}", reminderH.Update)

			// Staff-only routes
			r.Group(func(r chi.Router) {
				r.Use(appmiddleware.RequireRole(domain.RoleAdmin, domain.RoleStaff))

				r.Post("/events", eventH.Dispatch)
				r.Post("/reminders", reminderH.Create)
				r.Delete("/reminders/{id}", reminderH.Delete)
			})
		})
	})

	return r
}
