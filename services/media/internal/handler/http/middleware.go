package http

import (
	"mime"
	"net/http"
	"slices"
	"strings"

	"github.com/utafrali/ClassifiedsGo/pkg/httputil"
)

// RequireContentType rejects requests whose body is not one of the given
// media types with 415.
func RequireContentType(types ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
			if err != nil || !slices.Contains(types, mt) {
				httputil.WriteJSON(w, http.StatusUnsupportedMediaType, httputil.Response{
					Error: &httputil.ErrorResponse{
						Code:    "UNSUPPORTED_MEDIA_TYPE",
						Message: "Content-Type must be one of " + strings.Join(types, ", "),
					},
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
