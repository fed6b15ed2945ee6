package handlers

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/servio/backend/internal/api/middleware"
	"github.com/servio/backend/internal/booking"
)

// CreateAppointment books an appointment for the caller.
func CreateAppointment(svc *booking.Service, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req booking.CreateRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		c := caller(r)
		if req.CustomerName == "" {
			req.CustomerName = c.Contact.Name
		}
		if req.CustomerEmail == "" {
			req.CustomerEmail = c.Contact.Email
		}
		if req.CustomerPhone == "" {
			req.CustomerPhone = c.Contact.Phone
		}

		appt, err := svc.Create(r.Context(), c.Ref(), req)
		if err != nil {
			middleware.WriteServiceError(w, logger, err)
			return
		}
		middleware.WriteJSON(w, http.StatusCreated, "Appointment booked successfully", appt)
	}
}

// ListAppointments returns every appointment, optionally filtered by ?status=.
func ListAppointments(svc *booking.Service, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requireStaff(w, r) {
			return
		}

		list, err := svc.ListAll(r.Context())
		if status := r.URL.Query().Get("status"); status != "" {
			list, err = svc.ListByStatus(r.Context(), status)
		}
		if err != nil {
			middleware.WriteServiceError(w, logger, err)
			return
		}
		middleware.WriteJSON(w, http.StatusOK, "", list)
	}
}

// RecentAppointments returns the newest appointments.
func RecentAppointments(svc *booking.Service, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requireStaff(w, r) {
			return
		}

		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		list, err := svc.ListRecent(r.Context(), limit)
		if err != nil {
			middleware.WriteServiceError(w, logger, err)
			return
		}
		middleware.WriteJSON(w, http.StatusOK, "", list)
	}
}

// BookedSlots returns the taken "HH:mm" slots of ?date=YYYY-MM-DD.
func BookedSlots(svc *booking.Service, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slots, err := svc.BookedSlots(r.Context(), r.URL.Query().Get("date"))
		if err != nil {
			middleware.WriteServiceError(w, logger, err)
			return
		}
		middleware.WriteJSON(w, http.StatusOK, "", slots)
	}
}

// MyAppointments returns the caller's own appointments.
func MyAppointments(svc *booking.Service, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := svc.ListMine(r.Context(), caller(r).Ref())
		if err != nil {
			middleware.WriteServiceError(w, logger, err)
			return
		}
		middleware.WriteJSON(w, http.StatusOK, "", list)
	}
}

// AppointmentsByStatus returns the appointments in one status.
func AppointmentsByStatus(svc *booking.Service, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requireStaff(w, r) {
			return
		}

		list, err := svc.ListByStatus(r.Context(), mux.Vars(r)["status"])
		if err != nil {
			middleware.WriteServiceError(w, logger, err)
			return
		}
		middleware.WriteJSON(w, http.StatusOK, "", list)
	}
}

// AppointmentsByOwner returns the appointments of one owner. Customers may
// only ask for themselves.
func AppointmentsByOwner(svc *booking.Service, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		subject := mux.Vars(r)["subject"]
		if !requireAccess(w, r, subject) {
			return
		}

		list, err := svc.ListByOwner(r.Context(), subject)
		if err != nil {
			middleware.WriteServiceError(w, logger, err)
			return
		}
		middleware.WriteJSON(w, http.StatusOK, "", list)
	}
}

// GetAppointment returns one appointment the caller owns, or any for staff.
func GetAppointment(svc *booking.Service, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathInt(w, r, "id")
		if !ok {
			return
		}

		appt, err := svc.Get(r.Context(), id)
		if err != nil {
			middleware.WriteServiceError(w, logger, err)
			return
		}
		if !requireAccess(w, r, appt.Owner.Key()) {
			return
		}
		middleware.WriteJSON(w, http.StatusOK, "", appt)
	}
}

// UpdateAppointmentStatus moves an appointment to ?status=.
func UpdateAppointmentStatus(svc *booking.Service, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requireStaff(w, r) {
			return
		}
		id, ok := pathInt(w, r, "id")
		if !ok {
			return
		}

		status := r.URL.Query().Get("status")
		if status == "" {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "status is required")
			return
		}

		appt, err := svc.UpdateStatus(r.Context(), id, status)
		if err != nil {
			middleware.WriteServiceError(w, logger, err)
			return
		}
		middleware.WriteJSON(w, http.StatusOK, "Appointment status updated", appt)
	}
}

// UpdateAppointment applies a staff edit of status, notes and actual cost.
func UpdateAppointment(svc *booking.Service, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requireStaff(w, r) {
			return
		}
		id, ok := pathInt(w, r, "id")
		if !ok {
			return
		}

		var req booking.UpdateRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		appt, err := svc.Update(r.Context(), id, req)
		if err != nil {
			middleware.WriteServiceError(w, logger, err)
			return
		}
		middleware.WriteJSON(w, http.StatusOK, "Appointment updated", appt)
	}
}

// DeleteAppointment removes an appointment.
func DeleteAppointment(svc *booking.Service, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requireStaff(w, r) {
			return
		}
		id, ok := pathInt(w, r, "id")
		if !ok {
			return
		}

		if err := svc.Delete(r.Context(), id); err != nil {
			middleware.WriteServiceError(w, logger, err)
			return
		}
		middleware.WriteJSON(w, http.StatusOK, "Appointment deleted", nil)
	}
}
