package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port     int
	LogLevel string
	Env      string

	// Database
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Redis (rate limiting); optional, the limiter is disabled when unreachable
	RedisHost     string
	RedisPort     int
	RedisPassword string
	RedisDB       int

	// Inbound webhook shared secret (query parameter on POST /webhook)
	WebhookSecret string

	// JWT secrets: access tokens are short lived, refresh tokens long lived
	JWTAccessSecret  string
	JWTRefreshSecret string

	// Expo push provider
	ExpoAccessToken string
	ExpoBaseURL     string
	PushTimeout     time.Duration

	// GitLab OAuth. PublicBaseURL is the externally reachable address used
	// to build the OAuth callback redirect URI.
	PublicBaseURL     string
	GitlabAppID       string
	GitlabAppSecret   string
	AppRedirectScheme string

	// Domain used to build hook addresses, e.g. brave_otter@pfg.app
	HookDomain string

	// Retention sweep for old notifications
	RetentionMaxAge   time.Duration
	RetentionInterval time.Duration
}

// Load reads configuration from environment variables with sensible defaults.
// The three secrets (webhook, access, refresh) have no defaults and are
// required: refusing to boot beats running with a guessable secret.
func Load() (*Config, error) {
	cfg := &Config{
		Port:     8080,
		LogLevel: "info",
		Env:      "development",

		DBHost:     "localhost",
		DBPort:     5432,
		DBUser:     "relay",
		DBPassword: "",
		DBName:     "relay",
		DBSSLMode:  "disable",

		RedisHost:     "localhost",
		RedisPort:     6379,
		RedisPassword: "",
		RedisDB:       0,

		ExpoBaseURL: "https://exp.host/--/api/v2",
		PushTimeout: 30 * time.Second,

		PublicBaseURL:     "http://localhost:8080",
		AppRedirectScheme: "pingforgitlab://",
		HookDomain:        "pfg.app",

		RetentionMaxAge:   365 * 24 * time.Hour,
		RetentionInterval: 24 * time.Hour,
	}

	if port := os.Getenv("PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("invalid PORT: %w", err)
		}
		cfg.Port = p
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.LogLevel = level
	}

	if env := os.Getenv("ENV"); env != "" {
		cfg.Env = env
	}

	// Database config
	if host := os.Getenv("DB_HOST"); host != "" {
		cfg.DBHost = host
	}

	if port := os.Getenv("DB_PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("invalid DB_PORT: %w", err)
		}
		cfg.DBPort = p
	}

	if user := os.Getenv("DB_USER"); user != "" {
		cfg.DBUser = user
	}

	if password := os.Getenv("DB_PASSWORD"); password != "" {
		cfg.DBPassword = password
	}

	if dbname := os.Getenv("DB_NAME"); dbname != "" {
		cfg.DBName = dbname
	}

	if sslmode := os.Getenv("DB_SSLMODE"); sslmode != "" {
		cfg.DBSSLMode = sslmode
	}

	// Redis config
	if host := os.Getenv("REDIS_HOST"); host != "" {
		cfg.RedisHost = host
	}

	if port := os.Getenv("REDIS_PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_PORT: %w", err)
		}
		cfg.RedisPort = p
	}

	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		cfg.RedisPassword = password
	}

	if db := os.Getenv("REDIS_DB"); db != "" {
		d, err := strconv.Atoi(db)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
		}
		cfg.RedisDB = d
	}

	// Secrets
	cfg.WebhookSecret = os.Getenv("WEBHOOK_SECRET")
	if cfg.WebhookSecret == "" {
		return nil, fmt.Errorf("WEBHOOK_SECRET is required")
	}

	cfg.JWTAccessSecret = os.Getenv("JWT_ACCESS_SECRET")
	if cfg.JWTAccessSecret == "" {
		return nil, fmt.Errorf("JWT_ACCESS_SECRET is required")
	}

	cfg.JWTRefreshSecret = os.Getenv("JWT_REFRESH_SECRET")
	if cfg.JWTRefreshSecret == "" {
		return nil, fmt.Errorf("JWT_REFRESH_SECRET is required")
	}

	// Expo push provider
	if token := os.Getenv("EXPO_ACCESS_TOKEN"); token != "" {
		cfg.ExpoAccessToken = token
	}

	if url := os.Getenv("EXPO_BASE_URL"); url != "" {
		cfg.ExpoBaseURL = url
	}

	if timeout := os.Getenv("PUSH_TIMEOUT"); timeout != "" {
		d, err := time.ParseDuration(timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid PUSH_TIMEOUT: %w", err)
		}
		cfg.PushTimeout = d
	}

	// GitLab OAuth
	if base := os.Getenv("PUBLIC_BASE_URL"); base != "" {
		cfg.PublicBaseURL = base
	}

	if id := os.Getenv("GITLAB_APP_ID"); id != "" {
		cfg.GitlabAppID = id
	}

	if secret := os.Getenv("GITLAB_APP_SECRET"); secret != "" {
		cfg.GitlabAppSecret = secret
	}

	if scheme := os.Getenv("APP_REDIRECT_SCHEME"); scheme != "" {
		cfg.AppRedirectScheme = scheme
	}

	if domain := os.Getenv("HOOK_DOMAIN"); domain != "" {
		cfg.HookDomain = domain
	}

	// Retention
	if age := os.Getenv("RETENTION_MAX_AGE"); age != "" {
		d, err := time.ParseDuration(age)
		if err != nil {
			return nil, fmt.Errorf("invalid RETENTION_MAX_AGE: %w", err)
		}
		cfg.RetentionMaxAge = d
	}

	if interval := os.Getenv("RETENTION_INTERVAL"); interval != "" {
		d, err := time.ParseDuration(interval)
		if err != nil {
			return nil, fmt.Errorf("invalid RETENTION_INTERVAL: %w", err)
		}
		cfg.RetentionInterval = d
	}

	return cfg, nil
}
