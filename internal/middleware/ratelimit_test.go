package middleware

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimitMiddleware_DisabledGeneral(t *testing.T) {
	handler := NewRateLimitMiddleware(-1, 1).Handler(okHandler())

	for i := 0; i < 200; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/users/me", nil))
		assert.Equal(t, http.StatusOK, rec.Code, "request %d", i)
	}
}

func TestRateLimitMiddleware_LimitedAuth(t *testing.T) {
	handler := NewRateLimitMiddleware(-1, 1).Handler(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/auth/login", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	// Burst of one: the second immediate request is over budget.
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/auth/refresh-token", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), `"code":"RATE_LIMITED"`)

	// Other clients keep their own budget.
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
	req.RemoteAddr = "203.0.113.9:40000"
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimitMiddleware_Configuration(t *testing.T) {
	mw := NewRateLimitMiddleware(-1, 0)
	assert.Equal(t, -1, mw.generalRPM)
	assert.Equal(t, defaultAuthRPM, mw.authRPM)

	mw = NewRateLimitMiddleware(0, 5)
	assert.Equal(t, defaultGeneralRPM, mw.generalRPM)
	assert.Equal(t, 5, mw.authRPM)
}

func TestRateLimitMiddleware_IgnoresForwardedForFromUntrustedPeer(t *testing.T) {
	trusted := []netip.Prefix{netip.MustParsePrefix("10.0.0.0/8")}
	handler := RealIP(trusted)(NewRateLimitMiddleware(-1, 2).Handler(okHandler()))

	admitted := 0
	for i := 0; i < 50; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
		req.RemoteAddr = "192.0.2.50:40000"
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("198.51.100.%d", i))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code == http.StatusOK {
			admitted++
		}
	}
	assert.Equal(t, 2, admitted)
}

func TestRateLimitMiddleware_KeysOnClientBehindTrustedProxy(t *testing.T) {
	trusted := []netip.Prefix{netip.MustParsePrefix("10.0.0.0/8")}
	mw := NewRateLimitMiddleware(-1, 1)
	handler := RealIP(trusted)(mw.Handler(okHandler()))

	send := func(client string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
		req.RemoteAddr = "10.0.0.2:40000"
		req.Header.Set("X-Forwarded-For", client+", 10.0.0.3")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, send("203.0.113.1"))
	assert.Equal(t, http.StatusTooManyRequests, send("203.0.113.1"))
	assert.Equal(t, http.StatusOK, send("203.0.113.2"))
	assert.Len(t, mw.clients, 2)
}

func TestRateLimitMiddleware_AuthPathMatching(t *testing.T) {
	assert.True(t, isAuthPath("/api/auth"))
	assert.True(t, isAuthPath("/api/auth/login"))
	assert.True(t, isAuthPath("/API/Auth/refresh-token"))
	assert.False(t, isAuthPath("/api/authx"))
	assert.False(t, isAuthPath("/api/authorize/login"))

	handler := NewRateLimitMiddleware(-1, 1).Handler(okHandler())
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/authx", nil))
		assert.Equal(t, http.StatusOK, rec.Code, "request %d", i)
	}
}

func TestClientIP(t *testing.T) {
	trusted := []netip.Prefix{
		netip.MustParsePrefix("10.0.0.0/8"),
		netip.MustParsePrefix("2001:db8::/32"),
	}

	cases := map[string]struct {
		remote    string
		forwarded []string
		realIP    string
		want      string
	}{
		"untrusted peer ignores headers": {remote: "192.0.2.7:51234", forwarded: []string{"203.0.113.9"}, realIP: "198.51.100.4", want: "192.0.2.7"},
		"trusted peer without headers":   {remote: "10.1.2.3:51234", want: "10.1.2.3"},
		"rightmost untrusted hop":        {remote: "10.1.2.3:51234", forwarded: []string{"1.1.1.1, 203.0.113.9, 10.0.0.8"}, want: "203.0.113.9"},
		"repeated headers are joined":    {remote: "10.1.2.3:51234", forwarded: []string{"1.1.1.1", "203.0.113.9"}, want: "203.0.113.9"},
		"malformed hop stops the walk":   {remote: "10.1.2.3:51234", forwarded: []string{"203.0.113.9, not-an-ip"}, want: "10.1.2.3"},
		"all hops trusted uses real ip":  {remote: "10.1.2.3:51234", forwarded: []string{"10.0.0.9"}, realIP: "198.51.100.4", want: "198.51.100.4"},
		"ipv6 trusted peer":              {remote: "[2001:db8::1]:443", forwarded: []string{"2001:db8::2, 198.51.100.8"}, want: "198.51.100.8"},
		"mapped ipv4 hop":                {remote: "10.1.2.3:51234", forwarded: []string{"::ffff:203.0.113.9"}, want: "203.0.113.9"},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tc.remote
			for _, value := range tc.forwarded {
				req.Header.Add("X-Forwarded-For", value)
			}
			if tc.realIP != "" {
				req.Header.Set("X-Real-IP", tc.realIP)
			}

			var got string
			RealIP(trusted)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = ClientIP(r)
			})).ServeHTTP(httptest.NewRecorder(), req)
			assert.Equal(t, tc.want, got)
		})
	}

	// Without RealIP in the chain only the socket peer counts.
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.7:51234"
	req.Header.Set("X-Forwarded-For", "203.0.113.9")
	assert.Equal(t, "192.0.2.7", ClientIP(req))
}
