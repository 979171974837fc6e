package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv           string
	Port             string
	DatabaseURL      string
	SessionSecret    string
	SessionCookie    string
	RedisURL         string
	GeoIPDBPath      string
	AdminEmails      []string
	CORSOrigins      []string
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerMin  int
	TokenRateLimit   int
	WorkerMetrics    string

	Platform   PlatformConfig
	Generation GenerationConfig
	Storage    StorageConfig
}

// PlatformConfig configures the external job platform client.
type PlatformConfig struct {
	BaseURL            string
	APIToken           string
	ImageJobID         string
	SpeechJobID        string
	InitialDelay       time.Duration
	PollInterval       time.Duration
	MaxAttempts        int
	RequestsPerSecond  float64
	RequestTimeout     time.Duration
	EmbedCorrelationID bool
}

// GenerationConfig configures how admitted generations are executed.
type GenerationConfig struct {
	Sync              bool
	WorkerConcurrency int
	LeaseDuration     time.Duration
	ClaimInterval     time.Duration
	ReconcileSchedule string
}

// StorageConfig selects where completed results are archived.
type StorageConfig struct {
	Backend        string
	Path           string
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:           getEnv("APP_ENV", "development"),
		Port:             getEnv("PORT", "8080"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		SessionSecret:    os.Getenv("SESSION_JWT_SECRET"),
		SessionCookie:    getEnv("SESSION_COOKIE_NAME", "hb_session"),
		RedisURL:         os.Getenv("REDIS_URL"),
		GeoIPDBPath:      os.Getenv("GEOIP_DB_PATH"),
		AdminEmails:      splitList(os.Getenv("ADMIN_EMAILS")),
		CORSOrigins:      splitList(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000")),
		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:  getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
		TokenRateLimit:   getEnvInt("TOKEN_RATE_LIMIT_PER_MINUTE", 60),
		WorkerMetrics:    os.Getenv("WORKER_METRICS_ADDR"),
		Platform: PlatformConfig{
			BaseURL:            getEnv("JOB_PLATFORM_BASE_URL", "https://xgodo.com/api/v2"),
			APIToken:           os.Getenv("JOB_PLATFORM_API_TOKEN"),
			ImageJobID:         os.Getenv("IMAGE_JOB_ID"),
			SpeechJobID:        os.Getenv("AUDIO_JOB_ID"),
			InitialDelay:       time.Second * time.Duration(getEnvInt("POLL_INITIAL_DELAY_SECONDS", 30)),
			PollInterval:       time.Second * time.Duration(getEnvInt("POLL_INTERVAL_SECONDS", 30)),
			MaxAttempts:        getEnvInt("POLL_MAX_ATTEMPTS", 15),
			RequestsPerSecond:  getEnvFloat("PLATFORM_REQUESTS_PER_SECOND", 5),
			RequestTimeout:     time.Second * time.Duration(getEnvInt("PLATFORM_REQUEST_TIMEOUT_SECONDS", 30)),
			EmbedCorrelationID: getEnvBool("EMBED_CORRELATION_ID", false),
		},
		Generation: GenerationConfig{
			Sync:              getEnvBool("SYNC_GENERATION", false),
			WorkerConcurrency: getEnvInt("WORKER_CONCURRENCY", 4),
			LeaseDuration:     time.Second * time.Duration(getEnvInt("LEASE_SECONDS", 900)),
			ClaimInterval:     time.Second * time.Duration(getEnvInt("WORKER_CLAIM_INTERVAL_SECONDS", 2)),
			ReconcileSchedule: getEnv("RECONCILE_SCHEDULE", "@every 5m"),
		},
		Storage: StorageConfig{
			Backend:        getEnv("STORAGE_BACKEND", "none"),
			Path:           getEnv("STORAGE_PATH", "./storage"),
			MinioEndpoint:  os.Getenv("MINIO_ENDPOINT"),
			MinioAccessKey: os.Getenv("MINIO_ACCESS_KEY"),
			MinioSecretKey: os.Getenv("MINIO_SECRET_KEY"),
			MinioBucket:    getEnv("MINIO_BUCKET", "generations"),
			MinioUseSSL:    getEnvBool("MINIO_USE_SSL", false),
		},
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.SessionSecret == "" {
		return nil, fmt.Errorf("SESSION_JWT_SECRET is required")
	}

	if cfg.Platform.MaxAttempts < 1 {
		return nil, fmt.Errorf("POLL_MAX_ATTEMPTS must be positive")
	}

	if wait := cfg.Platform.MaxPollWait(); cfg.Generation.LeaseDuration <= wait {
		return nil, fmt.Errorf("LEASE_SECONDS (%s) must exceed the longest poll (%s)", cfg.Generation.LeaseDuration, wait)
	}

	switch cfg.Storage.Backend {
	case "none", "filesystem":
	case "minio":
		if cfg.Storage.MinioEndpoint == "" {
			return nil, fmt.Errorf("MINIO_ENDPOINT is required for the minio storage backend")
		}
	default:
		return nil, fmt.Errorf("unknown STORAGE_BACKEND %q", cfg.Storage.Backend)
	}

	return cfg, nil
}

// MaxPollWait is the longest a generation can poll before it times out.
func (c PlatformConfig) MaxPollWait() time.Duration {
	return c.InitialDelay + time.Duration(c.MaxAttempts)*c.PollInterval
}

// IsAdmin reports whether the email belongs to a configured administrator.
func (c *Config) IsAdmin(email string) bool {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return false
	}
	for _, admin := range c.AdminEmails {
		if strings.ToLower(admin) == email {
			return true
		}
	}
	return false
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
