package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/gitping/relay/internal/api"
	"github.com/gitping/relay/internal/auth"
	"github.com/gitping/relay/internal/circuitbreaker"
	"github.com/gitping/relay/internal/config"
	"github.com/gitping/relay/internal/db"
	"github.com/gitping/relay/internal/dispatch"
	"github.com/gitping/relay/internal/ingest"
	"github.com/gitping/relay/internal/metrics"
	"github.com/gitping/relay/internal/observ"
	"github.com/gitping/relay/internal/push"
	"github.com/gitping/relay/internal/redis"
	"github.com/gitping/relay/internal/retention"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load .env in development; a missing file is fine.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := observ.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("starting relay",
		zap.String("env", cfg.Env),
		zap.Int("port", cfg.Port),
	)

	// Database
	ctx := context.Background()
	database, err := db.New(ctx, db.Config{
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		User:     cfg.DBUser,
		Password: cfg.DBPassword,
		Database: cfg.DBName,
		SSLMode:  cfg.DBSSLMode,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	userRepo := db.NewUserRepository(database, logger)
	notifRepo := db.NewNotificationRepository(database, logger)

	// Redis backs the rate limiter only; the relay runs without it.
	var rateLimiter *redis.RateLimiter
	var redisPinger api.Pinger
	redisClient, err := redis.New(ctx, redis.Config{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, logger)
	if err != nil {
		logger.Warn("redis unavailable, rate limiting disabled",
			zap.Error(err),
			zap.String("host", cfg.RedisHost),
		)
	} else {
		rateLimiter = redis.NewRateLimiter(redisClient, logger, redis.RateLimitConfig{
			Limit:  100,
			Window: 1 * time.Minute,
		})
		redisPinger = redisClient
		defer redisClient.Close()
	}

	// Push provider behind a circuit breaker
	pushClient := push.NewClient(push.Config{
		BaseURL:     cfg.ExpoBaseURL,
		AccessToken: cfg.ExpoAccessToken,
		Timeout:     cfg.PushTimeout,
	}, logger)

	breaker := circuitbreaker.New(circuitbreaker.DefaultConfig("expo"), logger)
	protected := circuitbreaker.NewProtectedClient(pushClient, breaker, logger)

	dispatcher := dispatch.New(protected, logger)
	pipeline := ingest.New(cfg.WebhookSecret, userRepo, notifRepo, dispatcher, logger)

	// Auth services
	tokens, err := auth.NewTokenService(cfg.JWTAccessSecret, cfg.JWTRefreshSecret)
	if err != nil {
		return fmt.Errorf("failed to create token service: %w", err)
	}
	passwords := auth.NewPasswordService()

	var gitlabOAuth *api.GitlabOAuth
	if cfg.GitlabAppID != "" && cfg.GitlabAppSecret != "" {
		gitlabOAuth = api.NewGitlabOAuth(
			cfg.GitlabAppID,
			cfg.GitlabAppSecret,
			cfg.PublicBaseURL+"/auth/gitlab/callback",
			cfg.AppRedirectScheme,
		)
	} else {
		logger.Warn("gitlab OAuth not configured, /auth/gitlab routes disabled")
	}

	handler := api.NewHandler(logger, pipeline, userRepo, notifRepo, tokens, passwords, gitlabOAuth, cfg.HookDomain)

	// Retention sweep
	sweeper := retention.New(notifRepo, retention.Config{
		MaxAge:   cfg.RetentionMaxAge,
		Interval: cfg.RetentionInterval,
	}, logger)

	sweepCtx, sweepCancel := context.WithCancel(context.Background())
	defer sweepCancel()
	go sweeper.Start(sweepCtx)

	// Router
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(metrics.Middleware)

	// Request logging
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger.Info("request completed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration_ms", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	})

	// Inbound mail webhook
	r.Group(func(r chi.Router) {
		r.Use(api.RateLimitMiddleware(rateLimiter, logger, api.WebhookKeyFunc))
		r.Post("/webhook", handler.Webhook)
	})

	// Auth
	r.Route("/auth", func(r chi.Router) {
		r.Use(api.RateLimitMiddleware(rateLimiter, logger, api.AuthKeyFunc))

		r.With(auth.OptionalAuth(tokens)).Post("/signup", handler.Signup)
		r.Post("/login", handler.Login)
		r.Post("/refresh", handler.Refresh)
		r.Post("/anonymous", handler.Anonymous)

		if gitlabOAuth != nil {
			r.Get("/gitlab", handler.GitlabAuthorize)
			r.Get("/gitlab/callback", handler.GitlabCallback)
		}
	})

	// Account
	r.Route("/user", func(r chi.Router) {
		r.Use(auth.RequireAuth(tokens))

		r.Get("/", handler.GetUser)
		r.Put("/", handler.UpdateUser)
		r.Delete("/", handler.DeleteUser)
	})

	// Notifications
	r.Route("/notification", func(r chi.Router) {
		r.Use(auth.RequireAuth(tokens))

		r.Get("/list", handler.ListNotifications)
		r.Get("/{id}", handler.GetNotification)
		r.Put("/{id}", handler.UpdateNotification)
	})

	r.Get("/health", handler.Health(database, redisPinger))
	r.Get("/account-deletion-info", handler.AccountDeletionInfo)
	r.Handle("/metrics", metrics.Handler())

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", srv.Addr))
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdown:
		logger.Info("shutdown signal received", zap.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			srv.Close()
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}

		logger.Info("server stopped gracefully")
	}

	return nil
}
