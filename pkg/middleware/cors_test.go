package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestCORS_Origins(t *testing.T) {
	tests := []struct {
		name       string
		cfg        CORSConfig
		origin     string
		wantOrigin string
		wantVary   string
	}{
		{"development allows any", CORSConfig{Environment: "development"}, "https://evil.example", "*", ""},
		{"wildcard in list", CORSConfig{AllowedOrigins: []string{"https://a.example", "*"}, Environment: "production"}, "https://b.example", "*", ""},
		{"listed origin echoed", CORSConfig{AllowedOrigins: []string{"https://a.example", "https://b.example"}, Environment: "production"}, "https://b.example", "https://b.example", "Origin"},
		{"unlisted origin", CORSConfig{AllowedOrigins: []string{"https://a.example"}, Environment: "production"}, "https://evil.example", "", ""},
		{"no origin header", CORSConfig{AllowedOrigins: []string{"https://a.example"}, Environment: "production"}, "", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/images/avatars/a.png", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			rec := httptest.NewRecorder()
			CORS(tt.cfg)(okHandler()).ServeHTTP(rec, req)

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.wantOrigin, rec.Header().Get("Access-Control-Allow-Origin"))
			assert.Equal(t, tt.wantVary, rec.Header().Get("Vary"))
		})
	}
}

func TestCORS_Preflight(t *testing.T) {
	reached := false
	h := CORS(DefaultCORSConfig())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { reached = true }))

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/owners/avatar/u1/image", nil)
	req.Header.Set("Origin", "https://app.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.False(t, reached)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), http.MethodPut)
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), UserHeader)
	assert.Equal(t, CorrelationHeader, rec.Header().Get("Access-Control-Expose-Headers"))
	assert.Equal(t, "3600", rec.Header().Get("Access-Control-Max-Age"))
}

func TestCORS_Credentials(t *testing.T) {
	rec := httptest.NewRecorder()
	CORS(CORSConfig{AllowedOrigins: []string{"https://a.example"}, AllowCredentials: true})(okHandler()).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
}
