// Package httpx holds HTTP helpers shared by handlers and middleware:
// JSON responses, session cookies and token extraction.
package httpx

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/DrakonKapysta/web-beat-api/pkg/api"
)

// WriteJSON отправляет JSON ответ
func WriteJSON(w http.ResponseWriter, logger *slog.Logger, data any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil && logger != nil {
		logger.Error("failed to encode JSON response", slog.Any("error", err))
	}
}

// WriteError отправляет JSON ответ с ошибкой
func WriteError(w http.ResponseWriter, logger *slog.Logger, message string, statusCode int) {
	WriteJSON(w, logger, api.ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
	}, statusCode)
}
