// AngelaMos | 2026
// main.go

package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/carterperez-dev/templates/events-api/internal/admin"
	"github.com/carterperez-dev/templates/events-api/internal/auth"
	"github.com/carterperez-dev/templates/events-api/internal/config"
	"github.com/carterperez-dev/templates/events-api/internal/core"
	"github.com/carterperez-dev/templates/events-api/internal/event"
	"github.com/carterperez-dev/templates/events-api/internal/health"
	"github.com/carterperez-dev/templates/events-api/internal/mailer"
	"github.com/carterperez-dev/templates/events-api/internal/media"
	"github.com/carterperez-dev/templates/events-api/internal/middleware"
	"github.com/carterperez-dev/templates/events-api/internal/server"
	"github.com/carterperez-dev/templates/events-api/internal/user"
)

const (
	drainDelay = 5 * time.Second
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

//nolint:funlen // bootstrap code is inherently verbose
func run(configPath string) error {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := setupLogger(cfg.Log)
	slog.SetDefault(logger)

	logger.Info("starting application",
		"name", cfg.App.Name,
		"version", cfg.App.Version,
		"environment", cfg.App.Environment,
	)

	var telemetry *core.Telemetry
	if cfg.Otel.Enabled {
		tel, telErr := core.NewTelemetry(ctx, cfg.Otel, cfg.App)
		if telErr != nil {
			logger.Warn("failed to initialize telemetry", "error", telErr)
		} else {
			telemetry = tel
			logger.Info("OpenTelemetry tracer initialized",
				"endpoint", cfg.Otel.Endpoint,
			)
		}
	}

	db, err := core.NewDatabase(ctx, cfg.Database)
	if err != nil {
		return err
	}
	logger.Info("database connected",
		"database", cfg.Database.Name,
		"max_pool_size", cfg.Database.MaxPoolSize,
	)

	rdb, err := core.NewRedis(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	var rateClient *redis.Client
	if rdb != nil {
		rateClient = rdb.Client
		logger.Info("redis connected", "pool_size", cfg.Redis.PoolSize)
	} else {
		logger.Info("redis not configured, using in-process rate limiting")
	}

	tokens, err := auth.NewTokenManager(cfg.JWT)
	if err != nil {
		return err
	}

	rs := core.NewResponder(logger, cfg.IsDevelopment())

	userRepo := user.NewRepository(db.DB)
	eventRepo := event.NewRepository(db.DB)
	if err := core.EnsureIndexes(ctx, userRepo, eventRepo); err != nil {
		return err
	}

	var mail auth.Mailer
	smtp, err := mailer.NewSMTP(cfg.Mail, logger)
	switch {
	case errors.Is(err, core.ErrNotConfigured):
		logger.Warn("mail relay not configured, password reset mail will be logged")
		mail = mailer.NewLog(logger)
	case err != nil:
		return err
	default:
		mail = smtp
	}

	var photoUpload, imageUpload func(http.Handler) http.Handler
	images, err := media.NewCloudinary(cfg.Media, logger)
	switch {
	case errors.Is(err, core.ErrNotConfigured):
		logger.Warn("image host not configured, multipart uploads disabled")
	case err != nil:
		return err
	default:
		photoUpload = media.Images(images, rs, "photo")
		imageUpload = media.Images(images, rs, "image")
	}

	userSvc := user.NewService(userRepo)
	authSvc := auth.NewService(userRepo, mail, logger)
	authHandler := auth.NewHandler(authSvc, tokens, auth.CookieConfigFrom(cfg))
	userHandler := user.NewHandler(userSvc, authHandler)
	eventHandler := event.NewHandler(eventRepo, userRepo)

	deps := []health.Dependency{{Name: "mongodb", Checker: db}}
	adminCfg := admin.HandlerConfig{
		DBPing: db.Ping,
		Counters: []admin.Counter{
			{Name: "users", Count: func(ctx context.Context) (int64, error) {
				return userSvc.Count(ctx, user.FindOptions{})
			}},
			{Name: "users_total", Count: func(ctx context.Context) (int64, error) {
				return userSvc.Count(ctx, user.FindOptions{IncludeInactive: true})
			}},
			{Name: "events", Count: eventRepo.Counter()},
		},
	}
	if rdb != nil {
		deps = append(deps, health.Dependency{Name: "redis", Checker: rdb, Optional: true})
		adminCfg.RedisPing = rdb.Ping
		adminCfg.RedisStats = rdb.PoolStats
	} else {
		deps = append(deps, health.Dependency{Name: "redis", Optional: true})
	}
	healthHandler := health.NewHandler(deps...)
	adminHandler := admin.NewHandler(adminCfg)

	limiter := middleware.NewRateLimiter(rateClient, middleware.RateLimitConfig{
		Limit:     middleware.LimitFromConfig(cfg.RateLimit),
		FailOpen:  true,
		Responder: rs,
	})

	protect := middleware.Protect(tokens, userRepo, rs, cfg.JWT.CookieName)
	adminOnly := middleware.Restrict(rs, user.RoleAdmin, user.RoleSuperAdmin)

	srv := server.New(server.Config{
		ServerConfig:  cfg.Server,
		HealthHandler: healthHandler,
		Responder:     rs,
		Logger:        logger,
		Middleware:    globalMiddleware(cfg, rs, logger),
		APIMiddleware: []func(http.Handler) http.Handler{
			limiter.Handler,
		},
		Mount: func(r chi.Router) {
			r.Route("/users", func(r chi.Router) {
				authHandler.RegisterRoutes(r, rs, protect, photoUpload)
				userHandler.RegisterRoutes(r, rs, protect, adminOnly, photoUpload)
			})

			r.Route("/events", func(r chi.Router) {
				eventHandler.RegisterRoutes(r, rs, imageUpload)
			})

			adminHandler.RegisterRoutes(r, rs, protect, adminOnly)
		},
	})

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		cfg.Server.ShutdownTimeout+drainDelay+5*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx, drainDelay); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			logger.Error("telemetry shutdown error", "error", err)
		}
	}

	if err := rdb.Close(); err != nil {
		logger.Error("redis close error", "error", err)
	}

	if err := db.Close(shutdownCtx); err != nil {
		logger.Error("database close error", "error", err)
	}

	logger.Info("application stopped")
	return nil
}

// globalMiddleware wraps every route. Forwarding headers only replace the
// peer address when the deployment sits behind a trusted proxy.
func globalMiddleware(
	cfg *config.Config,
	rs *core.Responder,
	logger *slog.Logger,
) []func(http.Handler) http.Handler {
	mw := []func(http.Handler) http.Handler{middleware.RequestID}
	if cfg.Server.TrustProxy {
		mw = append(mw, chimw.RealIP)
	}
	return append(mw,
		middleware.Recoverer(rs, logger),
		middleware.Tracing(cfg.Otel.ServiceName),
		middleware.Logger(logger),
		middleware.SecurityHeaders(cfg.IsProduction()),
		middleware.CORS(cfg.CORS),
		middleware.BodyLimit(cfg.Server.MaxBodyBytes, cfg.Server.MaxUploadBytes),
	)
}

func setupLogger(cfg config.LogConfig) *slog.Logger {
	var handler slog.Handler

	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	var out io.Writer = os.Stdout
	if cfg.File != "" {
		out = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		})
	}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}

	return slog.New(handler)
}
