// AngelaMos | 2026
// middleware_test.go

package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	redis_rate "github.com/go-redis/redis_rate/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/carterperez-dev/templates/events-api/internal/config"
	"github.com/carterperez-dev/templates/events-api/internal/core"
	"github.com/carterperez-dev/templates/events-api/internal/user"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func message(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	msg, _ := body["message"].(string)
	return msg
}

type staticVerifier struct {
	claims *TokenClaims
	err    error
}

func (v staticVerifier) VerifyAccessToken(context.Context, string) (*TokenClaims, error) {
	return v.claims, v.err
}

type mapLoader map[primitive.ObjectID]*user.User

func (m mapLoader) GetByID(_ context.Context, id primitive.ObjectID, _ user.FindOptions) (*user.User, error) {
	if u, ok := m[id]; ok {
		return u, nil
	}
	return nil, core.ErrNotFound
}

func TestProtect(t *testing.T) {
	rs := core.NewResponder(discardLogger(), false)
	iat := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	alice := &user.User{Name: "Alice", Role: user.RoleUser}
	alice.ID = primitive.NewObjectID()
	changed := iat.Add(time.Minute)
	bob := &user.User{Name: "Bobby", Role: user.RoleUser, PasswordChangedAt: &changed}
	bob.ID = primitive.NewObjectID()
	users := mapLoader{alice.ID: alice, bob.ID: bob}

	tests := []struct {
		name     string
		verifier staticVerifier
		header   string
		status   int
		message  string
	}{
		{
			name:    "no token",
			status:  http.StatusUnauthorized,
			message: "You are not logged in! Please log in to get access.",
		},
		{
			name:     "expired",
			verifier: staticVerifier{err: core.ErrTokenExpired},
			header:   "Bearer abc",
			status:   http.StatusUnauthorized,
			message:  "Your token has expired! Please log in again.",
		},
		{
			name:     "invalid",
			verifier: staticVerifier{err: core.ErrTokenInvalid},
			header:   "Bearer abc",
			status:   http.StatusUnauthorized,
			message:  "Invalid token. Please log in again!",
		},
		{
			name:     "unknown user",
			verifier: staticVerifier{claims: &TokenClaims{UserID: primitive.NewObjectID().Hex(), IssuedAt: iat}},
			header:   "Bearer abc",
			status:   http.StatusUnauthorized,
			message:  "The user belonging to this token does no longer exist.",
		},
		{
			name:     "password changed",
			verifier: staticVerifier{claims: &TokenClaims{UserID: bob.ID.Hex(), IssuedAt: iat}},
			header:   "Bearer abc",
			status:   http.StatusUnauthorized,
			message:  "User recently changed password! Please log in again.",
		},
		{
			name:     "valid",
			verifier: staticVerifier{claims: &TokenClaims{UserID: alice.ID.Hex(), IssuedAt: iat}},
			header:   "Bearer abc",
			status:   http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen *user.User
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = user.Current(r.Context())
				assert.NotEmpty(t, GetUserID(r.Context()))
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			Protect(tt.verifier, users, rs, "jwt")(next).ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			if tt.message != "" {
				assert.Equal(t, tt.message, message(t, rec))
				assert.Nil(t, seen)
			} else {
				require.NotNil(t, seen)
				assert.Equal(t, alice.ID, seen.ID)
			}
		})
	}
}

func TestRestrict(t *testing.T) {
	rs := core.NewResponder(discardLogger(), false)
	h := Restrict(rs, user.RoleAdmin, user.RoleSuperAdmin)(okHandler())

	serve := func(u *user.User) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if u != nil {
			req = req.WithContext(user.WithCurrent(req.Context(), u))
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusUnauthorized, serve(nil).Code)

	rec := serve(&user.User{Role: user.RoleUser})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "You do not have permission to perform this action", message(t, rec))

	assert.Equal(t, http.StatusOK, serve(&user.User{Role: user.RoleSuperAdmin}).Code)
}

func TestExtractToken(t *testing.T) {
	tests := map[string]string{
		"":               "",
		"Bearer abc.def": "abc.def",
		"bearer  abc ":   "abc",
		"Basic dXNlcjpw": "",
		"Bearer":         "",
	}
	for header, want := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		assert.Equal(t, want, ExtractToken(req), header)
	}
}

func hourly(requests int) redis_rate.Limit {
	return LimitFromConfig(config.RateLimitConfig{Requests: requests, Window: time.Hour})
}

func TestRateLimiterFallsBackToMemory(t *testing.T) {
	rl := NewRateLimiter(nil, RateLimitConfig{
		Limit:     hourly(2),
		Responder: core.NewResponder(discardLogger(), false),
	})
	h := rl.Handler(okHandler())

	hit := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/events", nil)
		req.RemoteAddr = ip + ":5555"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, hit("10.0.0.1").Code)
	rec := hit("10.0.0.1")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))

	rec = hit("10.0.0.1")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Equal(t, "Too many requests from this IP, please try again in an hour!", message(t, rec))

	assert.Equal(t, http.StatusOK, hit("10.0.0.2").Code)
}

func TestLocalLimiterRefillsAndSweeps(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	l := newLocalLimiter(func() time.Time { return now })
	limit := hourly(2)

	for range 2 {
		res, err := l.allow("a", limit)
		require.NoError(t, err)
		assert.Equal(t, 1, res.Allowed)
	}

	res, err := l.allow("a", limit)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Allowed)
	assert.Equal(t, 0, res.Remaining)
	assert.InDelta(t, (30 * time.Minute).Seconds(), res.RetryAfter.Seconds(), 1)

	now = now.Add(30 * time.Minute)
	res, err = l.allow("a", limit)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Allowed)

	_, err = l.allow("b", limit)
	require.NoError(t, err)
	assert.Len(t, l.entries, 2)

	now = now.Add(11 * time.Minute)
	_, err = l.allow("a", limit)
	require.NoError(t, err)
	assert.Len(t, l.entries, 2, "idle buckets that have not refilled are kept")

	now = now.Add(2 * time.Hour)
	_, err = l.allow("c", limit)
	require.NoError(t, err)
	assert.Len(t, l.entries, 1)
	assert.Contains(t, l.entries, "c")

	_, err = l.allow("d", hourly(0))
	assert.Error(t, err)
}

func TestLocalLimiterHoldsHourlyBudgetAcrossSweeps(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	l := newLocalLimiter(func() time.Time { return now })
	limit := hourly(100)

	send := func(n int) int {
		allowed := 0
		for range n {
			res, err := l.allow("ratelimit:ip:192.0.2.10", limit)
			require.NoError(t, err)
			allowed += res.Allowed
		}
		return allowed
	}

	require.Equal(t, 100, send(150))

	refilled := 0
	for range 5 {
		now = now.Add(11 * time.Minute)
		refilled += send(100)
	}

	// 55 minutes at 100/hour refill about 91 tokens
	assert.GreaterOrEqual(t, refilled, 85)
	assert.LessOrEqual(t, refilled, 92)
}

func TestRateLimiterBypass(t *testing.T) {
	rl := NewRateLimiter(nil, RateLimitConfig{
		Limit:      hourly(1),
		BypassFunc: func(r *http.Request) bool { return r.URL.Path == "/healthz" },
	})
	h := rl.Handler(okHandler())

	for range 3 {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestLimitFromConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.RateLimitConfig
		want redis_rate.Limit
	}{
		{
			name: "burst defaults to requests",
			cfg:  config.RateLimitConfig{Requests: 100, Window: time.Hour},
			want: redis_rate.Limit{Rate: 100, Burst: 100, Period: time.Hour},
		},
		{
			name: "explicit burst",
			cfg:  config.RateLimitConfig{Requests: 60, Window: time.Minute, Burst: 10},
			want: redis_rate.Limit{Rate: 60, Burst: 10, Period: time.Minute},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, LimitFromConfig(tt.cfg))
		})
	}
}

func TestKeyByIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{
			name:       "host and port",
			remoteAddr: "192.0.2.7:1234",
			want:       "ratelimit:ip:192.0.2.7",
		},
		{
			name:       "bare host",
			remoteAddr: "192.0.2.8",
			want:       "ratelimit:ip:192.0.2.8",
		},
		{
			name:       "forwarding headers ignored",
			remoteAddr: "192.0.2.7:1234",
			headers: map[string]string{
				"X-Forwarded-For": "203.0.113.1, 198.51.100.2",
				"X-Real-IP":       "198.51.100.3",
			},
			want: "ratelimit:ip:192.0.2.7",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, KeyByIP(req))
		})
	}
}

func TestRateLimiterIgnoresRotatedForwardedFor(t *testing.T) {
	rl := NewRateLimiter(nil, RateLimitConfig{
		Limit:     hourly(5),
		Responder: core.NewResponder(discardLogger(), false),
	})
	h := rl.Handler(okHandler())

	allowed := 0
	for i := range 50 {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/events", nil)
		req.RemoteAddr = "192.0.2.50:40000"
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("203.0.113.%d", i))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code == http.StatusOK {
			allowed++
		}
	}

	assert.Equal(t, 5, allowed)
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = core.RequestIDFromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get(RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", seen)

	req.Header.Set(RequestIDHeader, strings.Repeat("x", 500))
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Len(t, seen, 36)
}

func TestRecoverer(t *testing.T) {
	rs := core.NewResponder(discardLogger(), false)
	h := Recoverer(rs, discardLogger())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Something went wrong!", message(t, rec))
}

func TestSecurityHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	SecurityHeaders(false)(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Empty(t, rec.Header().Get("Strict-Transport-Security"))

	rec = httptest.NewRecorder()
	SecurityHeaders(true)(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, rec.Header().Get("Strict-Transport-Security"))
}

func TestCORS(t *testing.T) {
	h := CORS(config.CORSConfig{
		AllowedOrigins:   []string{"https://app.example.com"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	})(okHandler())

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/events", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", "PATCH")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "PATCH")
	assert.Equal(t, "300", rec.Header().Get("Access-Control-Max-Age"))

	req = httptest.NewRequest(http.MethodGet, "/api/v1/events", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestBodyLimit(t *testing.T) {
	rs := core.NewResponder(discardLogger(), false)
	h := BodyLimit(16, 1024)(rs.Wrap(func(w http.ResponseWriter, r *http.Request) error {
		if _, err := io.ReadAll(r.Body); err != nil {
			return err
		}
		w.WriteHeader(http.StatusOK)
		return nil
	}))

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(strings.Repeat("a", 64)))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(strings.Repeat("a", 64)))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=x")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
