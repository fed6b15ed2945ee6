package handlers

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/servio/backend/internal/api/middleware"
	"github.com/servio/backend/internal/notification"
	"github.com/servio/backend/internal/storage/models"
)

// CreateNotification stores a system-issued notification.
func CreateNotification(svc *notification.Service, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requireStaff(w, r) {
			return
		}

		var req notification.CreateRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		n, err := svc.Create(r.Context(), req)
		if err != nil {
			middleware.WriteServiceError(w, logger, err)
			return
		}
		middleware.WriteJSON(w, http.StatusCreated, "Notification created", n)
	}
}

// accountParam reads the {id} account path parameter and checks that the
// caller may act for it.
func accountParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	if !requireAccess(w, r, mux.Vars(r)["id"]) {
		return 0, false
	}
	return pathInt(w, r, "id")
}

// ListNotifications returns an account's notifications, newest first.
func ListNotifications(svc *notification.Service, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := accountParam(w, r)
		if !ok {
			return
		}

		list, err := svc.ListByOwner(r.Context(), id)
		if err != nil {
			middleware.WriteServiceError(w, logger, err)
			return
		}
		middleware.WriteJSON(w, http.StatusOK, "", list)
	}
}

// UnreadNotifications returns an account's unread notifications.
func UnreadNotifications(svc *notification.Service, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := accountParam(w, r)
		if !ok {
			return
		}

		list, err := svc.ListUnread(r.Context(), id)
		if err != nil {
			middleware.WriteServiceError(w, logger, err)
			return
		}
		middleware.WriteJSON(w, http.StatusOK, "", list)
	}
}

// UnreadCount returns the number of unread notifications of an account.
func UnreadCount(svc *notification.Service, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := accountParam(w, r)
		if !ok {
			return
		}

		count, err := svc.CountUnread(r.Context(), id)
		if err != nil {
			middleware.WriteServiceError(w, logger, err)
			return
		}
		middleware.WriteJSON(w, http.StatusOK, "", map[string]int64{"count": count})
	}
}

// MarkAllNotificationsRead marks every notification of an account as read.
func MarkAllNotificationsRead(svc *notification.Service, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := accountParam(w, r)
		if !ok {
			return
		}

		n, err := svc.MarkAllRead(r.Context(), id)
		if err != nil {
			middleware.WriteServiceError(w, logger, err)
			return
		}
		middleware.WriteJSON(w, http.StatusOK, "All notifications marked as read", map[string]int64{"updated": n})
	}
}

// DeleteOldNotifications prunes notifications older than ?daysOld= days.
func DeleteOldNotifications(svc *notification.Service, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := accountParam(w, r)
		if !ok {
			return
		}

		days := notification.DefaultRetentionDays
		if raw := r.URL.Query().Get("daysOld"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil {
				middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "daysOld must be an integer")
				return
			}
			days = parsed
		}

		n, err := svc.DeleteOlderThan(r.Context(), id, days)
		if err != nil {
			middleware.WriteServiceError(w, logger, err)
			return
		}
		middleware.WriteJSON(w, http.StatusOK, "Old notifications deleted", map[string]int64{"deleted": n})
	}
}

// ownedNotification loads {id} and checks that the caller owns it.
func ownedNotification(w http.ResponseWriter, r *http.Request, svc *notification.Service, logger zerolog.Logger) (*models.Notification, bool) {
	id, ok := pathInt(w, r, "id")
	if !ok {
		return nil, false
	}

	n, err := svc.Get(r.Context(), id)
	if err != nil {
		middleware.WriteServiceError(w, logger, err)
		return nil, false
	}
	if !requireAccess(w, r, strconv.FormatInt(n.AccountID, 10)) {
		return nil, false
	}
	return n, true
}

// GetNotification returns one notification.
func GetNotification(svc *notification.Service, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, ok := ownedNotification(w, r, svc, logger)
		if !ok {
			return
		}
		middleware.WriteJSON(w, http.StatusOK, "", n)
	}
}

// MarkNotificationRead marks one notification as read.
func MarkNotificationRead(svc *notification.Service, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, ok := ownedNotification(w, r, svc, logger)
		if !ok {
			return
		}

		updated, err := svc.MarkRead(r.Context(), n.ID)
		if err != nil {
			middleware.WriteServiceError(w, logger, err)
			return
		}
		middleware.WriteJSON(w, http.StatusOK, "Notification marked as read", updated)
	}
}

// DeleteNotification removes one notification.
func DeleteNotification(svc *notification.Service, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, ok := ownedNotification(w, r, svc, logger)
		if !ok {
			return
		}

		if err := svc.Delete(r.Context(), n.ID); err != nil {
			middleware.WriteServiceError(w, logger, err)
			return
		}
		middleware.WriteJSON(w, http.StatusOK, "Notification deleted", nil)
	}
}
