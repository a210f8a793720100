package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/DrakonKapysta/web-beat-api/internal/server/httpx"
)

// Recovery перехватывает panic, логирует стек вызовов и возвращает 500 в JSON.
// http.ErrAbortHandler пробрасывается дальше, как ожидает net/http
func Recovery(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				logger.ErrorContext(r.Context(), "Panic recovered",
					slog.Any("error", rec),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("remote_addr", r.RemoteAddr),
					slog.String("stack", string(debug.Stack())),
				)

				// Детали паники клиенту не раскрываем
				httpx.WriteError(w, logger, "internal server error", http.StatusInternalServerError)
			}()

			next.ServeHTTP(w, r)
		})
	}
}
