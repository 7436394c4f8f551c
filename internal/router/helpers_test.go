package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"go-tour-auth/internal/config"
	"go-tour-auth/internal/event"
	"go-tour-auth/internal/handler"
	"go-tour-auth/internal/metrics"
	"go-tour-auth/internal/middleware"
	"go-tour-auth/internal/model"
	"go-tour-auth/internal/repository"
	"go-tour-auth/internal/service"
	"go-tour-auth/internal/token"
)

const (
	testAccessTTL  = 15 * time.Minute
	testRefreshTTL = 7 * 24 * time.Hour
	testPassword   = "secret-pw"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testServer struct {
	*httptest.Server
	users *repository.MemoryUserRepository
	redis *miniredis.Miniredis
	clock *clock
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code   string             `json:"code"`
		Fields []model.FieldError `json:"fields"`
	} `json:"error"`
}

type authData struct {
	User struct {
		ID    string `json:"id"`
		Email string `json:"email"`
		Role  string `json:"role"`
	} `json:"user"`
	AccessToken string `json:"accessToken"`
	ExpiresIn   int64  `json:"expiresIn"`
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})

	c := &clock{now: time.Now().UTC()}
	cfg := &config.Config{
		Env:               "test",
		JWTAccessSecret:   "router-access-secret-0123456789abcdef",
		JWTRefreshSecret:  "router-refresh-secret-0123456789abcdef",
		JWTAccessTTL:      testAccessTTL,
		JWTRefreshTTL:     testRefreshTTL,
		RefreshCookieName: "refreshToken",
		RefreshCookiePath: "/api/auth",
		RequestTimeout:    5 * time.Second,
		CORSOrigins:       []string{"http://localhost:3000"},
		RateLimitRPM:      -1,
		AuthRateLimitRPM:  1000,
	}

	issuer, err := token.NewIssuer(cfg.JWTAccessSecret, cfg.JWTRefreshSecret, cfg.JWTAccessTTL, cfg.JWTRefreshTTL)
	require.NoError(t, err)
	verifier, err := token.NewVerifier(cfg.JWTAccessSecret, cfg.JWTRefreshSecret)
	require.NoError(t, err)
	issuer.SetClock(c.Now)
	verifier.SetClock(c.Now)

	m := metrics.New()
	bus := event.NewBus()
	users := repository.NewMemoryUserRepository()
	sessions := repository.NewSessionRepository(client, "refresh:", 500*time.Millisecond)

	authService, err := service.NewAuthService(users, service.NewSessionService(sessions, issuer, verifier, m), bus, m, bcrypt.MinCost)
	require.NoError(t, err)
	auditService := service.NewAuditService(repository.NewMemoryAuditRepository())

	ctx, cancel := context.WithCancel(context.Background())
	go auditService.Run(ctx, bus)

	cookie := handler.RefreshCookie{Name: cfg.RefreshCookieName, Path: cfg.RefreshCookiePath}
	server := httptest.NewServer(New(cfg, middleware.NewAuthMiddleware(verifier), m, Handlers{
		Auth:   handler.NewAuthHandler(authService, cookie),
		User:   handler.NewUserHandler(authService, cookie),
		Audit:  handler.NewAuditHandler(auditService),
		Health: handler.NewHealthHandler("user-service", map[string]handler.Pinger{"redis": sessions}),
	}))

	t.Cleanup(func() {
		server.Close()
		cancel()
		_ = client.Close()
		mr.Close()
	})

	return &testServer{Server: server, users: users, redis: mr, clock: c}
}

func (s *testServer) seedUser(t *testing.T, email string, role model.Role) model.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	require.NoError(t, err)

	user := model.User{
		ID:           role.String() + "-" + email,
		Name:         "Seeded " + role.String(),
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
	}
	require.NoError(t, s.users.Create(context.Background(), user))
	return user
}

// login returns the access token and the refresh cookie.
func (s *testServer) login(t *testing.T, email string) (string, *http.Cookie) {
	t.Helper()

	resp := s.postJSON(t, "/api/auth/login", map[string]string{"email": email, "password": testPassword})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var data authData
	decodeData(t, resp, &data)
	require.NotEmpty(t, data.AccessToken)

	return data.AccessToken, refreshCookie(t, resp)
}

func (s *testServer) postJSON(t *testing.T, path string, payload any) *http.Response {
	t.Helper()

	body, err := json.Marshal(payload)
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, s.URL+path, bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	return doRequest(t, req)
}

func (s *testServer) refresh(t *testing.T, cookie *http.Cookie) *http.Response {
	t.Helper()

	req, err := http.NewRequest(http.MethodPost, s.URL+"/api/auth/refresh-token", nil)
	require.NoError(t, err)
	if cookie != nil {
		req.AddCookie(&http.Cookie{Name: cookie.Name, Value: cookie.Value})
	}
	return doRequest(t, req)
}

func (s *testServer) authed(t *testing.T, method string, path string, accessToken string, payload any) *http.Response {
	t.Helper()

	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		require.NoError(t, err)
	}

	req, err := http.NewRequest(method, s.URL+path, bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+accessToken)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return doRequest(t, req)
}

func doRequest(t *testing.T, req *http.Request) *http.Response {
	t.Helper()

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decodeEnvelope(t *testing.T, resp *http.Response) envelope {
	t.Helper()

	var parsed envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&parsed))
	return parsed
}

func decodeData(t *testing.T, resp *http.Response, dst any) {
	t.Helper()

	parsed := decodeEnvelope(t, resp)
	require.True(t, parsed.Success, parsed.Message)
	require.NoError(t, json.Unmarshal(parsed.Data, dst))
}

func refreshCookie(t *testing.T, resp *http.Response) *http.Cookie {
	t.Helper()

	for _, cookie := range resp.Cookies() {
		if cookie.Name == "refreshToken" {
			return cookie
		}
	}
	require.FailNow(t, "refresh cookie not set")
	return nil
}

func errorCode(t *testing.T, resp *http.Response) string {
	t.Helper()

	parsed := decodeEnvelope(t, resp)
	require.False(t, parsed.Success)
	require.NotNil(t, parsed.Error)
	return parsed.Error.Code
}
