// AngelaMos | 2026
// config.go

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const minSecretLength = 32

type Config struct {
	App       AppConfig       `koanf:"app"`
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Redis     RedisConfig     `koanf:"redis"`
	JWT       JWTConfig       `koanf:"jwt"`
	Mail      MailConfig      `koanf:"mail"`
	Media     MediaConfig     `koanf:"media"`
	RateLimit RateLimitConfig `koanf:"rate_limit"`
	CORS      CORSConfig      `koanf:"cors"`
	Log       LogConfig       `koanf:"log"`
	Otel      OtelConfig      `koanf:"otel"`
}

type AppConfig struct {
	Name        string `koanf:"name"`
	Version     string `koanf:"version"`
	Environment string `koanf:"environment"`
}

type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	MaxBodyBytes    int64         `koanf:"max_body_bytes"`
	MaxUploadBytes  int64         `koanf:"max_upload_bytes"`
	TrustProxy      bool          `koanf:"trust_proxy"`
}

type DatabaseConfig struct {
	URI            string        `koanf:"uri"`
	Name           string        `koanf:"name"`
	MaxPoolSize    uint64        `koanf:"max_pool_size"`
	MinPoolSize    uint64        `koanf:"min_pool_size"`
	MaxConnIdle    time.Duration `koanf:"max_conn_idle_time"`
	ConnectTimeout time.Duration `koanf:"connect_timeout"`
}

type RedisConfig struct {
	URL          string `koanf:"url"`
	PoolSize     int    `koanf:"pool_size"`
	MinIdleConns int    `koanf:"min_idle_conns"`
}

func (r RedisConfig) Enabled() bool {
	return r.URL != ""
}

type JWTConfig struct {
	Secret            string        `koanf:"secret"`
	ExpiresIn         time.Duration `koanf:"expires_in"`
	CookieExpiresDays int           `koanf:"cookie_expires_days"`
	CookieName        string        `koanf:"cookie_name"`
	Issuer            string        `koanf:"issuer"`
	Audience          string        `koanf:"audience"`
}

type MailConfig struct {
	Host     string        `koanf:"host"`
	Port     int           `koanf:"port"`
	Username string        `koanf:"username"`
	Password string        `koanf:"password"`
	From     string        `koanf:"from"`
	Timeout  time.Duration `koanf:"timeout"`
}

func (m MailConfig) Enabled() bool {
	return m.Host != ""
}

type MediaConfig struct {
	CloudName string        `koanf:"cloud_name"`
	APIKey    string        `koanf:"api_key"`
	APISecret string        `koanf:"api_secret"`
	Folder    string        `koanf:"folder"`
	Timeout   time.Duration `koanf:"timeout"`
}

func (m MediaConfig) Enabled() bool {
	return m.CloudName != "" && m.APIKey != "" && m.APISecret != ""
}

type RateLimitConfig struct {
	Requests int           `koanf:"requests"`
	Window   time.Duration `koanf:"window"`
	Burst    int           `koanf:"burst"`
}

type CORSConfig struct {
	AllowedOrigins   []string `koanf:"allowed_origins"`
	AllowedMethods   []string `koanf:"allowed_methods"`
	AllowedHeaders   []string `koanf:"allowed_headers"`
	AllowCredentials bool     `koanf:"allow_credentials"`
	MaxAge           int      `koanf:"max_age"`
}

type LogConfig struct {
	Level      string `koanf:"level"`
	Format     string `koanf:"format"`
	File       string `koanf:"file"`
	MaxSizeMB  int    `koanf:"max_size_mb"`
	MaxBackups int    `koanf:"max_backups"`
	MaxAgeDays int    `koanf:"max_age_days"`
}

type OtelConfig struct {
	Endpoint    string  `koanf:"endpoint"`
	ServiceName string  `koanf:"service_name"`
	Enabled     bool    `koanf:"enabled"`
	Insecure    bool    `koanf:"insecure"`
	SampleRate  float64 `koanf:"sample_rate"`
}

// Load layers defaults, the optional YAML file at configPath and the
// environment, after reading a .env file from the working directory.
func Load(configPath string) (*Config, error) {
	return load(configPath, ".env")
}

func load(configPath, dotenvPath string) (*Config, error) {
	if dotenvPath != "" {
		if err := godotenv.Load(dotenvPath); err != nil &&
			!errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load dotenv: %w", err)
		}
	}

	k := koanf.New(".")

	if err := loadDefaults(k); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil &&
			!errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	if err := k.Load(env.Provider("", ".", envKeyReplacer), nil); err != nil {
		return nil, fmt.Errorf("load env vars: %w", err)
	}

	if err := loadEnvFallbacks(k); err != nil {
		return nil, fmt.Errorf("load env fallbacks: %w", err)
	}

	c := &Config{}
	if err := k.Unmarshal("", c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validate(c); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return c, nil
}

func loadDefaults(k *koanf.Koanf) error {
	defaults := map[string]any{
		"app.name":        "Events API",
		"app.version":     "1.0.0",
		"app.environment": "development",

		"server.host":             "0.0.0.0",
		"server.port":             3000,
		"server.read_timeout":     "30s",
		"server.write_timeout":    "30s",
		"server.idle_timeout":     "120s",
		"server.shutdown_timeout": "15s",
		"server.max_body_bytes":   10 << 10,
		"server.max_upload_bytes": 5 << 20,
		"server.trust_proxy":      false,

		"database.name":               "events",
		"database.max_pool_size":      50,
		"database.min_pool_size":      5,
		"database.max_conn_idle_time": "30m",
		"database.connect_timeout":    "10s",

		"redis.pool_size":      10,
		"redis.min_idle_conns": 2,

		"jwt.expires_in":          "2160h",
		"jwt.cookie_expires_days": 90,
		"jwt.cookie_name":         "jwt",
		"jwt.issuer":              "events-api",
		"jwt.audience":            "events-api",

		"mail.port":    587,
		"mail.timeout": "10s",

		"media.folder":  "events-api",
		"media.timeout": "30s",

		"rate_limit.requests": 100,
		"rate_limit.window":   "1h",
		"rate_limit.burst":    100,

		"cors.allowed_origins": []string{"http://localhost:3000"},
		"cors.allowed_methods": []string{
			"GET",
			"POST",
			"PUT",
			"PATCH",
			"DELETE",
			"OPTIONS",
		},
		"cors.allowed_headers": []string{
			"Accept",
			"Authorization",
			"Content-Type",
			"X-Request-ID",
		},
		"cors.allow_credentials": true,
		"cors.max_age":           300,

		"log.level":        "info",
		"log.format":       "json",
		"log.max_size_mb":  10,
		"log.max_backups":  3,
		"log.max_age_days": 28,

		"otel.enabled":      false,
		"otel.insecure":     true,
		"otel.sample_rate":  0.1,
		"otel.service_name": "events-api",
	}

	for key, value := range defaults {
		if err := k.Set(key, value); err != nil {
			return fmt.Errorf("set default %s: %w", key, err)
		}
	}

	return nil
}

var envKeyMap = map[string]string{
	"MONGODB_URI":           "database.uri",
	"MONGODB_DATABASE":      "database.name",
	"REDIS_URL":             "redis.url",
	"ENVIRONMENT":           "app.environment",
	"HOST":                  "server.host",
	"PORT":                  "server.port",
	"TRUST_PROXY":           "server.trust_proxy",
	"LOG_LEVEL":             "log.level",
	"LOG_FORMAT":            "log.format",
	"LOG_FILE":              "log.file",
	"JWT_SECRET":            "jwt.secret",
	"JWT_EXPIRES_IN":        "jwt.expires_in",
	"JWT_COOKIE_EXPIRES_IN": "jwt.cookie_expires_days",
	"JWT_ISSUER":            "jwt.issuer",
	"JWT_AUDIENCE":          "jwt.audience",
	"MAIL_HOST":             "mail.host",
	"MAIL_PORT":             "mail.port",
	"MAIL_USER":             "mail.username",
	"MAIL_PASS":             "mail.password",
	"MAIL_FROM":             "mail.from",
	"CLOUDINARY_API_NAME":   "media.cloud_name",
	"CLOUDINARY_API_KEY":    "media.api_key",
	"CLOUDINARY_API_SECRET": "media.api_secret",
	"CLOUDINARY_FOLDER":     "media.folder",
	"RATE_LIMIT_REQUESTS":   "rate_limit.requests",
	"RATE_LIMIT_WINDOW":     "rate_limit.window",
	"RATE_LIMIT_BURST":      "rate_limit.burst",
	"OTEL_ENDPOINT":         "otel.endpoint",
	"OTEL_SERVICE_NAME":     "otel.service_name",
	"OTEL_ENABLED":          "otel.enabled",
	"OTEL_INSECURE":         "otel.insecure",
	"OTEL_SAMPLE_RATE":      "otel.sample_rate",
}

func envKeyReplacer(s string) string {
	if mapped, ok := envKeyMap[s]; ok {
		return mapped
	}
	return ""
}

func validate(c *Config) error {
	if c.Database.URI == "" {
		return fmt.Errorf("MONGODB_URI is required")
	}

	if c.Database.Name == "" {
		return fmt.Errorf("MONGODB_DATABASE must not be empty")
	}

	if len(c.JWT.Secret) < minSecretLength {
		return fmt.Errorf(
			"JWT_SECRET is required and must be at least %d bytes",
			minSecretLength,
		)
	}

	if c.JWT.ExpiresIn <= 0 {
		return fmt.Errorf("JWT_EXPIRES_IN must be positive")
	}

	if c.JWT.CookieExpiresDays <= 0 {
		return fmt.Errorf("JWT_COOKIE_EXPIRES_IN must be positive")
	}

	if c.CORS.AllowCredentials {
		for _, origin := range c.CORS.AllowedOrigins {
			if origin == "*" {
				return fmt.Errorf(
					"CORS wildcard '*' cannot be used with AllowCredentials",
				)
			}
		}
	}

	if c.App.Environment == "production" {
		if c.Otel.Enabled && c.Otel.Insecure {
			return fmt.Errorf("OTEL_INSECURE must be false in production")
		}
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server.read_timeout must be positive")
	}

	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server.write_timeout must be positive")
	}

	if c.RateLimit.Requests <= 0 || c.RateLimit.Window <= 0 {
		return fmt.Errorf("rate_limit.requests and rate_limit.window must be positive")
	}

	return nil
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// CookieTTL is the lifetime of the session cookie.
func (j *JWTConfig) CookieTTL() time.Duration {
	return time.Duration(j.CookieExpiresDays) * 24 * time.Hour
}

// envFallbacks name variables that are read only when the primary one is
// unset or empty, so ENVIRONMENT always wins over NODE_ENV.
var envFallbacks = []struct {
	primary  string
	fallback string
}{
	{primary: "ENVIRONMENT", fallback: "NODE_ENV"},
	{primary: "OTEL_ENDPOINT", fallback: "OTEL_EXPORTER_OTLP_ENDPOINT"},
}

func loadEnvFallbacks(k *koanf.Koanf) error {
	for _, f := range envFallbacks {
		if os.Getenv(f.primary) != "" {
			continue
		}
		value := os.Getenv(f.fallback)
		if value == "" {
			continue
		}
		if err := k.Set(envKeyMap[f.primary], value); err != nil {
			return fmt.Errorf("set %s from %s: %w", f.primary, f.fallback, err)
		}
	}
	return nil
}
