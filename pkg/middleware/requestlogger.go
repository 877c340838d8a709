package middleware

import (
	"log/slog"
	"net/http"

	"github.com/utafrali/ClassifiedsGo/pkg/logger"
)

// UserHeader identifies the caller. Authentication happens upstream; the media
// service only uses the value for logging and lock ownership.
const UserHeader = "X-User-ID"

// RequestLogger stores a request-scoped logger in the context carrying the
// correlation ID, the caller's user ID and the active trace. Mount it after
// RequestLogging and Tracing; handlers fetch it with logger.FromContext.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if userID := r.Header.Get(UserHeader); userID != "" {
				ctx = logger.WithUserID(ctx, userID)
			}
			ctx = logger.NewContext(ctx, logger.WithContext(ctx, base))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
