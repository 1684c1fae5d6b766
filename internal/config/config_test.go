// AngelaMos | 2026
// config_test.go

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func requiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("MONGODB_URI", "mongodb://localhost:27017")
	t.Setenv("JWT_SECRET", testSecret)
}

func setOrUnset(t *testing.T, key, value string) {
	t.Helper()
	t.Setenv(key, value)
	if value == "" {
		require.NoError(t, os.Unsetenv(key))
	}
}

func TestLoadDefaultsAndEnv(t *testing.T) {
	requiredEnv(t)
	t.Setenv("PORT", "4000")
	t.Setenv("JWT_EXPIRES_IN", "90m")
	t.Setenv("JWT_COOKIE_EXPIRES_IN", "7")
	t.Setenv("NODE_ENV", "production")

	c, err := load("", "")
	require.NoError(t, err)

	assert.Equal(t, 4000, c.Server.Port)
	assert.Equal(t, "events", c.Database.Name)
	assert.Equal(t, 90*time.Minute, c.JWT.ExpiresIn)
	assert.Equal(t, 7*24*time.Hour, c.JWT.CookieTTL())
	assert.Equal(t, "jwt", c.JWT.CookieName)
	assert.Equal(t, time.Hour, c.RateLimit.Window)
	assert.Equal(t, 100, c.RateLimit.Requests)
	assert.True(t, c.IsProduction())
	assert.False(t, c.Redis.Enabled())
	assert.False(t, c.Mail.Enabled())
	assert.False(t, c.Media.Enabled())
}

func TestLoadFileThenEnv(t *testing.T) {
	requiredEnv(t)
	t.Setenv("LOG_LEVEL", "warn")

	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := strings.Join([]string{
		"server:",
		"  port: 5000",
		"log:",
		"  level: debug",
		"  format: text",
		"redis:",
		"  url: redis://localhost:6379/0",
	}, "\n")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	c, err := load(path, "")
	require.NoError(t, err)

	assert.Equal(t, 5000, c.Server.Port)
	assert.Equal(t, "text", c.Log.Format)
	assert.Equal(t, "warn", c.Log.Level)
	assert.True(t, c.Redis.Enabled())
}

func TestLoadMissingFilesAreIgnored(t *testing.T) {
	requiredEnv(t)

	dir := t.TempDir()
	_, err := load(filepath.Join(dir, "absent.yaml"), filepath.Join(dir, ".env"))
	assert.NoError(t, err)
}

func TestLoadDotenv(t *testing.T) {
	requiredEnv(t)
	t.Setenv("MAIL_HOST", "")
	require.NoError(t, os.Unsetenv("MAIL_HOST"))

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("MAIL_HOST=smtp.example.com\n"), 0o600))

	c, err := load("", path)
	require.NoError(t, err)
	assert.Equal(t, "smtp.example.com", c.Mail.Host)
	assert.True(t, c.Mail.Enabled())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{
			name: "missing mongo uri",
			env:  map[string]string{"MONGODB_URI": ""},
			want: "MONGODB_URI is required",
		},
		{
			name: "short secret",
			env:  map[string]string{"JWT_SECRET": "short"},
			want: "JWT_SECRET is required",
		},
		{
			name: "zero expiry",
			env:  map[string]string{"JWT_EXPIRES_IN": "0s"},
			want: "JWT_EXPIRES_IN must be positive",
		},
		{
			name: "zero rate limit",
			env:  map[string]string{"RATE_LIMIT_REQUESTS": "0"},
			want: "rate_limit.requests",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			requiredEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := load("", "")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidateRejectsWildcardWithCredentials(t *testing.T) {
	c := &Config{
		Database:  DatabaseConfig{URI: "mongodb://x", Name: "events"},
		JWT:       JWTConfig{Secret: testSecret, ExpiresIn: time.Hour, CookieExpiresDays: 1},
		CORS:      CORSConfig{AllowedOrigins: []string{"*"}, AllowCredentials: true},
		Server:    ServerConfig{ReadTimeout: time.Second, WriteTimeout: time.Second},
		RateLimit: RateLimitConfig{Requests: 1, Window: time.Second},
	}

	err := validate(c)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wildcard")

	c.CORS.AllowCredentials = false
	assert.NoError(t, validate(c))
}

func TestServerAddress(t *testing.T) {
	s := ServerConfig{Host: "127.0.0.1", Port: 3000}
	assert.Equal(t, "127.0.0.1:3000", s.Address())
}

func TestEnvironmentPrecedence(t *testing.T) {
	tests := []struct {
		name        string
		environment string
		nodeEnv     string
		want        string
	}{
		{name: "both set", environment: "staging", nodeEnv: "production", want: "staging"},
		{name: "only node env", nodeEnv: "production", want: "production"},
		{name: "only environment", environment: "test", want: "test"},
		{name: "neither", want: "development"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			requiredEnv(t)
			setOrUnset(t, "ENVIRONMENT", tt.environment)
			setOrUnset(t, "NODE_ENV", tt.nodeEnv)

			c, err := load("", "")
			require.NoError(t, err)
			assert.Equal(t, tt.want, c.App.Environment)
		})
	}
}

func TestOtelEndpointPrecedence(t *testing.T) {
	requiredEnv(t)
	t.Setenv("OTEL_ENDPOINT", "collector:4317")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "other:4317")

	c, err := load("", "")
	require.NoError(t, err)
	assert.Equal(t, "collector:4317", c.Otel.Endpoint)

	t.Setenv("OTEL_ENDPOINT", "")
	c, err = load("", "")
	require.NoError(t, err)
	assert.Equal(t, "other:4317", c.Otel.Endpoint)
}

func TestTrustProxyDefaultsOff(t *testing.T) {
	requiredEnv(t)

	c, err := load("", "")
	require.NoError(t, err)
	assert.False(t, c.Server.TrustProxy)

	t.Setenv("TRUST_PROXY", "true")
	c, err = load("", "")
	require.NoError(t, err)
	assert.True(t, c.Server.TrustProxy)
}
