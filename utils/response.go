package utils

import (
	"encoding/json"
	"net/http"

	"mahatour/apperr"

	"go.uber.org/zap"
)

type M map[string]any

func RespondWithError(w http.ResponseWriter, code int, msg string) {
	RespondWithJSON(w, code, M{"error": msg})
}

// Sends a JSON response
func RespondWithJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// RespondWithAppError writes err as {"error": msg} with the status of its
// kind. Server-side failures are logged and reach the client as a generic
// message.
func RespondWithAppError(w http.ResponseWriter, log *zap.Logger, err error) {
	status := apperr.Status(err)
	if status >= http.StatusInternalServerError && log != nil {
		log.Error("request failed", zap.Int("status", status), zap.Error(err))
	}
	RespondWithError(w, status, apperr.Message(err))
}

// MethodNotAllowed answers 405 in the same JSON shape as every other error.
func MethodNotAllowed() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		RespondWithAppError(w, nil, apperr.MethodNotAllowed(r.Method))
	})
}

// NotFound answers 404 for unknown routes.
func NotFound() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		RespondWithError(w, http.StatusNotFound, "Not found")
	})
}
