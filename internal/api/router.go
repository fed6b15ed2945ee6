// Package api provides HTTP routing for the REST API and live channel.
package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/servio/backend/internal/api/handlers"
	"github.com/servio/backend/internal/api/middleware"
	"github.com/servio/backend/internal/booking"
	"github.com/servio/backend/internal/notification"
	"github.com/servio/backend/internal/storage"
	"github.com/servio/backend/internal/websocket"
)

// Deps are the services the router dispatches to.
type Deps struct {
	DB             *storage.DB
	Hub            *websocket.Hub
	Bookings       *booking.Service
	Notifications  *notification.Service
	Auth           middleware.Authenticator
	BookingLimiter *middleware.RateLimiter // throttles POST /api/appointments when set
	Logger         zerolog.Logger
	Version        string
}

// NewRouter creates and configures the HTTP router with all API routes.
func NewRouter(d Deps) *mux.Router {
	r := mux.NewRouter()
	log := d.Logger

	r.Use(middleware.Recovery(log))
	r.Use(middleware.Logging(log))

	api := r.PathPrefix("/api").Subrouter()

	// Public endpoints
	api.HandleFunc("/health", handlers.HealthCheck(d.DB, d.Hub, d.Version)).Methods(http.MethodGet)
	api.HandleFunc("/appointments/booked-slots", handlers.BookedSlots(d.Bookings, log)).Methods(http.MethodGet)
	api.Handle("/ws", middleware.OptionalAuth(d.Auth)(handlers.WebSocketUpgrade(d.Hub, log))).Methods(http.MethodGet)

	priv := api.NewRoute().Subrouter()
	priv.Use(middleware.RequireAuth(d.Auth))

	// Appointment endpoints
	var create http.Handler = handlers.CreateAppointment(d.Bookings, log)
	if d.BookingLimiter != nil {
		create = d.BookingLimiter.Limit(create)
	}
	priv.Handle("/appointments", create).Methods(http.MethodPost)
	priv.HandleFunc("/appointments", handlers.ListAppointments(d.Bookings, log)).Methods(http.MethodGet)
	priv.HandleFunc("/appointments/recent", handlers.RecentAppointments(d.Bookings, log)).Methods(http.MethodGet)
	priv.HandleFunc("/appointments/my", handlers.MyAppointments(d.Bookings, log)).Methods(http.MethodGet)
	priv.HandleFunc("/appointments/status/{status}", handlers.AppointmentsByStatus(d.Bookings, log)).Methods(http.MethodGet)
	priv.HandleFunc("/appointments/user/{subject}", handlers.AppointmentsByOwner(d.Bookings, log)).Methods(http.MethodGet)
	priv.HandleFunc("/appointments/{id:[0-9]+}", handlers.GetAppointment(d.Bookings, log)).Methods(http.MethodGet)
	priv.HandleFunc("/appointments/{id:[0-9]+}/status", handlers.UpdateAppointmentStatus(d.Bookings, log)).Methods(http.MethodPatch)
	priv.HandleFunc("/appointments/{id:[0-9]+}", handlers.UpdateAppointment(d.Bookings, log)).Methods(http.MethodPatch)
	priv.HandleFunc("/appointments/{id:[0-9]+}", handlers.DeleteAppointment(d.Bookings, log)).Methods(http.MethodDelete)

	// Notification endpoints
	priv.HandleFunc("/notifications", handlers.CreateNotification(d.Notifications, log)).Methods(http.MethodPost)
	priv.HandleFunc("/notifications/user/{id}", handlers.ListNotifications(d.Notifications, log)).Methods(http.MethodGet)
	priv.HandleFunc("/notifications/user/{id}/unread", handlers.UnreadNotifications(d.Notifications, log)).Methods(http.MethodGet)
	priv.HandleFunc("/notifications/user/{id}/unread/count", handlers.UnreadCount(d.Notifications, log)).Methods(http.MethodGet)
	priv.HandleFunc("/notifications/user/{id}/read-all", handlers.MarkAllNotificationsRead(d.Notifications, log)).Methods(http.MethodPatch)
	priv.HandleFunc("/notifications/user/{id}/old", handlers.DeleteOldNotifications(d.Notifications, log)).Methods(http.MethodDelete)
	priv.HandleFunc("/notifications/{id:[0-9]+}", handlers.GetNotification(d.Notifications, log)).Methods(http.MethodGet)
	priv.HandleFunc("/notifications/{id:[0-9]+}/read", handlers.MarkNotificationRead(d.Notifications, log)).Methods(http.MethodPatch)
	priv.HandleFunc("/notifications/{id:[0-9]+}", handlers.DeleteNotification(d.Notifications, log)).Methods(http.MethodDelete)

	return r
}
