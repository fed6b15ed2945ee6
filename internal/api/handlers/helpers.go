// Package handlers provides HTTP request handlers for the API endpoints.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/servio/backend/internal/api/middleware"
	"github.com/servio/backend/internal/auth"
)

// maxBodyBytes bounds every JSON request body.
const maxBodyBytes = 1 << 20

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Invalid request body")
		return false
	}
	return true
}

func pathInt(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	if err != nil || id <= 0 {
		middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Invalid "+name)
		return 0, false
	}
	return id, true
}

func caller(r *http.Request) auth.Caller {
	c, _ := auth.FromContext(r.Context())
	return c
}

func requireStaff(w http.ResponseWriter, r *http.Request) bool {
	if !caller(r).IsStaff() {
		middleware.WriteError(w, http.StatusForbidden, middleware.ErrForbidden, "Staff access required")
		return false
	}
	return true
}

func requireAccess(w http.ResponseWriter, r *http.Request, subject string) bool {
	if !caller(r).CanAccess(subject) {
		middleware.WriteError(w, http.StatusForbidden, middleware.ErrForbidden, "Not allowed to access another user's data")
		return false
	}
	return true
}
