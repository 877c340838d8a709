package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func uploadFrom(remote string) *http.Request {
	req := httptest.NewRequest(http.MethodPut, "/api/v1/owners/avatar/u1/image", nil)
	req.RemoteAddr = remote
	return req
}

func TestRateLimit_WithinBurstPasses(t *testing.T) {
	l, _ := bufferLogger()
	h := RateLimit(1, 5, nil, l)(okHandler())

	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, uploadFrom("192.168.1.1:1234"))
		assert.Equal(t, http.StatusOK, rec.Code, "request %d", i+1)
	}
}

func TestRateLimit_ExceedingBurstReturns429(t *testing.T) {
	l, buf := bufferLogger()
	h := RateLimit(0.001, 2, nil, l)(okHandler())

	codes := make([]int, 0, 3)
	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		last = httptest.NewRecorder()
		h.ServeHTTP(last, uploadFrom("10.0.0.1:5555"))
		codes = append(codes, last.Code)
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
	assert.Contains(t, last.Body.String(), "RATE_LIMITED")
	assert.Equal(t, "1", last.Header().Get("Retry-After"))
	assert.Contains(t, buf.String(), "rate limit exceeded")
}

func TestRateLimit_ClientsAreIndependent(t *testing.T) {
	l, _ := bufferLogger()
	h := RateLimit(0.001, 1, nil, l)(okHandler())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, uploadFrom("10.0.0.1:1"))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, uploadFrom("10.0.0.2:1"))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, uploadFrom("10.0.0.1:2"))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestRateLimit_DisabledWhenRateNotPositive(t *testing.T) {
	l, _ := bufferLogger()
	h := RateLimit(0, 0, nil, l)(okHandler())

	for i := 0; i < 20; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, uploadFrom("10.0.0.1:1"))
		require.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestRateLimit_ForwardedHeaderFromUntrustedPeerIsIgnored(t *testing.T) {
	l, _ := bufferLogger()
	h := RateLimit(0.001, 1, []string{"10.0.0.0/8"}, l)(okHandler())

	send := func(remote, forwarded string) int {
		req := uploadFrom(remote)
		req.Header.Set("X-Forwarded-For", forwarded)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	// A direct client cannot reset its bucket by rotating the header.
	assert.Equal(t, http.StatusOK, send("203.0.113.9:1", "198.51.100.1"))
	assert.Equal(t, http.StatusTooManyRequests, send("203.0.113.9:2", "198.51.100.2"))

	// Behind the trusted proxy each forwarded client has its own bucket.
	assert.Equal(t, http.StatusOK, send("10.0.0.5:1", "198.51.100.3"))
	assert.Equal(t, http.StatusOK, send("10.0.0.5:2", "198.51.100.4"))
	assert.Equal(t, http.StatusTooManyRequests, send("10.0.0.5:3", "198.51.100.3"))
}

func TestClientIP(t *testing.T) {
	l, _ := bufferLogger()
	trusted := parseCIDRs([]string{"10.0.0.0/8", "not-a-cidr"}, l)

	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{name: "remote addr", remote: "192.0.2.1:80", want: "192.0.2.1"},
		{name: "forwarded from untrusted peer", headers: map[string]string{"X-Forwarded-For": "203.0.113.7"}, remote: "192.0.2.1:80", want: "192.0.2.1"},
		{name: "real ip from untrusted peer", headers: map[string]string{"X-Real-IP": "198.51.100.2"}, remote: "192.0.2.1:80", want: "192.0.2.1"},
		{name: "first forwarded hop from proxy", headers: map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.1"}, remote: "10.0.0.1:80", want: "203.0.113.7"},
		{name: "real ip from proxy", headers: map[string]string{"X-Real-IP": "198.51.100.2"}, remote: "10.0.0.1:80", want: "198.51.100.2"},
		{name: "garbage forwarded header from proxy", headers: map[string]string{"X-Forwarded-For": "nope"}, remote: "10.0.0.9:80", want: "10.0.0.9"},
		{name: "remote without port", remote: "192.0.2.2", want: "192.0.2.2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, clientIP(req, trusted))
		})
	}
}

func TestVisitorStore_SweepsIdleClients(t *testing.T) {
	s := newVisitorStore(1, 1, time.Minute)
	clock := time.Now()
	s.now = func() time.Time { return clock }
	s.lastSweep = clock

	s.get("a")
	s.get("b")
	require.Equal(t, 2, s.len())

	clock = clock.Add(2 * time.Minute)
	s.get("c")
	assert.Equal(t, 1, s.len())
}
