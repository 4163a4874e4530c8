package handler

// RESPONSE ENVELOPE:
// Failures are values on the bridge. Every response body is an object
// with a success flag, so the UI can branch on one field:
//
//	{"success": true,  "user": {...}}
//	{"success": false, "error": "not_found", "message": "User not found"}
//
// The HTTP status carries the same information for tools (curl, logs,
// metrics), but the UI only needs the body.

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/RedPatata13/SAA-E-LIbrary/internal/apperror"
)

// maxBodyBytes bounds request bodies. Uploads pass a file path, not bytes.
const maxBodyBytes = 1 << 20

// ErrorResponse is the body of every failed call.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

// writeJSON sends data with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeOK sends {"success": true} plus fields.
func writeOK(w http.ResponseWriter, status int, fields map[string]any) {
	body := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		body[k] = v
	}
	body["success"] = true
	writeJSON(w, status, body)
}

// writeError maps err to a status code and a {success:false} body.
// Messages of *apperror.AppError are shown to the user as-is; anything
// else is logged and replaced by a generic message.
func writeError(w http.ResponseWriter, err error) {
	kind := apperror.Kind(err)
	status := statusFor(kind)

	message := "An internal error occurred"
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		message = appErr.Message
	}

	if status >= http.StatusInternalServerError {
		slog.Error("bridge call failed",
			slog.String("kind", kind),
			slog.String("error", err.Error()),
		)
	}

	writeJSON(w, status, ErrorResponse{
		Success: false,
		Error:   kind,
		Message: message,
	})
}

func statusFor(kind string) int {
	switch kind {
	case "validation_error":
		return http.StatusBadRequest
	case "invalid_credentials":
		return http.StatusUnauthorized
	case "not_verified", "forbidden":
		return http.StatusForbidden
	case "not_found":
		return http.StatusNotFound
	case "conflict", "duplicate_username":
		return http.StatusConflict
	case "store_busy":
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// decodeJSON reads the request body into dst. On failure it writes a
// validation error and returns false.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, apperror.ValidationFailed("body", fmt.Sprintf("Invalid JSON body: %v", err)))
		return false
	}
	return true
}
