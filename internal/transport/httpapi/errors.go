package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"reorder/internal/recurring"
	"reorder/internal/session"
)

const (
	codeNotFound           = "not_found"
	codeMethodNotAllowed   = "method_not_allowed"
	codeInvalidRequestBody = "invalid_request_body"
	codeInvalidDate        = "invalid_date"
	codeClientRequired     = "client_required"
	codeValidationFailed   = "validation_failed"
	codeOrderNotFound      = "order_not_found"
	codeSessionInactive    = "session_inactive"
	codeInternalError      = "internal_error"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	payload, err := json.Marshal(errorResponse{Error: msg, Code: code})
	if err != nil {
		_, _ = w.Write([]byte(`{"error":"internal error","code":"internal_error"}`))
		return
	}
	_, _ = w.Write(payload)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// classify maps a domain error to an HTTP status and error code. ok is
// false for errors that should surface as 500.
func classify(err error) (status int, code string, ok bool) {
	switch {
	case errors.Is(err, session.ErrInactive):
		return http.StatusConflict, codeSessionInactive, true
	case errors.Is(err, session.ErrClientMissing), errors.Is(err, recurring.ErrClientMissing):
		return http.StatusBadRequest, codeClientRequired, true
	case errors.Is(err, recurring.ErrNotFound):
		return http.StatusNotFound, codeOrderNotFound, true
	case errors.Is(err, recurring.ErrValidation):
		return http.StatusBadRequest, codeValidationFailed, true
	}
	return http.StatusInternalServerError, codeInternalError, false
}

func notFound(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusNotFound, codeNotFound, "not found")
}

func methodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
}
