package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type DatabaseDriver string

const (
	DatabaseDriverSQLite   DatabaseDriver = "sqlite"
	DatabaseDriverPostgres DatabaseDriver = "postgres"
)

type StorageBackend string

const (
	StorageBackendLocal StorageBackend = "local" // Files under Storage.LocalDir (default)
	StorageBackendMinio StorageBackend = "minio" // S3-compatible bucket
)

type (
	Config struct {
		HTTP
		Global
		Database
		Auth
		Redis
		Storage
		Tasks
		Audit
		Logging
		Tracing
		CORS
	}

	HTTP struct {
		Port int32
		Host string
	}
	Global struct {
		ShutdownTimeoutInSeconds int
		Environment              string
	}
	Database struct {
		Driver DatabaseDriver
		Path   string // SQLite file path
		DSN    string // Postgres connection string
	}
	Auth struct {
		TokenSecret       string
		TokenIssuer       string
		TokenExpiry       time.Duration
		BcryptCost        int
		MinPasswordLength int

		// Cookie sessions for the browser client
		SessionsEnabled bool
		SessionSecret   string
		SessionLifetime time.Duration
		SecureCookies   bool // Set to false for local dev without HTTPS

		// Rate limiting configuration
		MaxLoginAttempts int           // Max failed attempts before lockout (default: 5)
		RateLimitWindow  time.Duration // Time window for counting attempts (default: 15m)
		LockoutDuration  time.Duration // How long to lock out (default: 30m)
	}
	Redis struct {
		Addr     string // Empty disables Redis; revocations are kept in memory
		Password string
		DB       int
	}
	Storage struct {
		Backend       StorageBackend
		LocalDir      string
		PublicPrefix  string // URL prefix the local store is served under
		Endpoint      string
		AccessKey     string
		SecretKey     string
		Bucket        string
		UseSSL        bool
		PresignExpiry time.Duration
		MaxUploadSize int64
	}
	Tasks struct {
		Enabled           bool
		Workers           int
		MaxRetries        int
		RetryDelay        time.Duration
		TaskTimeout       time.Duration
		ReleaseAfter      time.Duration
		CleanupInterval   time.Duration
		RetentionDuration time.Duration
	}
	Audit struct {
		RetentionDays   int    // Days to keep audit events (default: 30)
		CleanupSchedule string // Cron format: "30 3 * * *" = daily at 03:30
	}
	Logging struct {
		Mode string // "development" or "production"
	}
	Tracing struct {
		Exporter    string // "none", "stdout" or "otlp"
		Endpoint    string
		Insecure    bool
		SampleRatio float64
		ServiceName string
	}
	CORS struct {
		AllowedOrigins []string
	}
)

// NewConfig reads configuration from the environment, after loading a .env
// file from the working directory if one exists.
func NewConfig() *Config {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("port", 8188)
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("shutdown_timeout_in_seconds", 5)
	v.SetDefault("environment", "development")

	v.SetDefault("database_driver", string(DatabaseDriverSQLite))
	v.SetDefault("database_path", DefaultDatabasePath)
	v.SetDefault("database_dsn", "")

	// Auth defaults
	v.SetDefault("auth_token_secret", "") // Auto-generated if empty
	v.SetDefault("auth_token_issuer", "bookshelf")
	v.SetDefault("auth_token_expiry", "24h")
	v.SetDefault("auth_bcrypt_cost", 12)
	v.SetDefault("auth_min_password_length", 8)
	v.SetDefault("auth_sessions_enabled", false)
	v.SetDefault("auth_session_secret", "") // Auto-generated if empty
	v.SetDefault("auth_session_lifetime", "24h")
	v.SetDefault("auth_secure_cookies", true)
	v.SetDefault("auth_max_login_attempts", 5)
	v.SetDefault("auth_rate_limit_window", "15m")
	v.SetDefault("auth_lockout_duration", "30m")

	v.SetDefault("redis_addr", "")
	v.SetDefault("redis_password", "")
	v.SetDefault("redis_db", 0)

	v.SetDefault("storage_backend", string(StorageBackendLocal))
	v.SetDefault("storage_local_dir", DefaultStorageDir)
	v.SetDefault("storage_public_prefix", "/files")
	v.SetDefault("storage_endpoint", "localhost:9000")
	v.SetDefault("storage_access_key", "")
	v.SetDefault("storage_secret_key", "")
	v.SetDefault("storage_bucket", "bookshelf")
	v.SetDefault("storage_use_ssl", false)
	v.SetDefault("storage_presign_expiry", "15m")
	v.SetDefault("storage_max_upload_size", 100<<20)

	// Task queue defaults
	v.SetDefault("tasks_enabled", true)
	v.SetDefault("task_workers", 2)
	v.SetDefault("task_max_retries", 3)
	v.SetDefault("task_retry_delay", "1m")
	v.SetDefault("task_timeout", "5m")
	v.SetDefault("task_release_after", "15m")
	v.SetDefault("task_cleanup_interval", "1h")
	v.SetDefault("task_retention_duration", "24h")

	v.SetDefault("audit_retention_days", 30)
	v.SetDefault("audit_cleanup_schedule", "30 3 * * *")

	v.SetDefault("log_mode", "development")

	v.SetDefault("tracing_exporter", "none")
	v.SetDefault("tracing_endpoint", "")
	v.SetDefault("tracing_insecure", false)
	v.SetDefault("tracing_sample_ratio", 1.0)
	v.SetDefault("tracing_service_name", "bookshelf")

	v.SetDefault("cors_allowed_origins", "http://localhost:3000,http://localhost:5173")

	return &Config{
		HTTP: HTTP{
			Port: v.GetInt32("PORT"),
			Host: v.GetString("HOST"),
		},
		Global: Global{
			ShutdownTimeoutInSeconds: v.GetInt("SHUTDOWN_TIMEOUT_IN_SECONDS"),
			Environment:              v.GetString("ENVIRONMENT"),
		},
		Database: Database{
			Driver: DatabaseDriver(strings.ToLower(v.GetString("DATABASE_DRIVER"))),
			Path:   v.GetString("DATABASE_PATH"),
			DSN:    v.GetString("DATABASE_DSN"),
		},
		Auth: Auth{
			TokenSecret:       v.GetString("AUTH_TOKEN_SECRET"),
			TokenIssuer:       v.GetString("AUTH_TOKEN_ISSUER"),
			TokenExpiry:       v.GetDuration("AUTH_TOKEN_EXPIRY"),
			BcryptCost:        v.GetInt("AUTH_BCRYPT_COST"),
			MinPasswordLength: v.GetInt("AUTH_MIN_PASSWORD_LENGTH"),
			SessionsEnabled:   v.GetBool("AUTH_SESSIONS_ENABLED"),
			SessionSecret:     v.GetString("AUTH_SESSION_SECRET"),
			SessionLifetime:   v.GetDuration("AUTH_SESSION_LIFETIME"),
			SecureCookies:     v.GetBool("AUTH_SECURE_COOKIES"),
			MaxLoginAttempts:  v.GetInt("AUTH_MAX_LOGIN_ATTEMPTS"),
			RateLimitWindow:   v.GetDuration("AUTH_RATE_LIMIT_WINDOW"),
			LockoutDuration:   v.GetDuration("AUTH_LOCKOUT_DURATION"),
		},
		Redis: Redis{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		Storage: Storage{
			Backend:       StorageBackend(strings.ToLower(v.GetString("STORAGE_BACKEND"))),
			LocalDir:      v.GetString("STORAGE_LOCAL_DIR"),
			PublicPrefix:  v.GetString("STORAGE_PUBLIC_PREFIX"),
			Endpoint:      v.GetString("STORAGE_ENDPOINT"),
			AccessKey:     v.GetString("STORAGE_ACCESS_KEY"),
			SecretKey:     v.GetString("STORAGE_SECRET_KEY"),
			Bucket:        v.GetString("STORAGE_BUCKET"),
			UseSSL:        v.GetBool("STORAGE_USE_SSL"),
			PresignExpiry: v.GetDuration("STORAGE_PRESIGN_EXPIRY"),
			MaxUploadSize: v.GetInt64("STORAGE_MAX_UPLOAD_SIZE"),
		},
		Tasks: Tasks{
			Enabled:           v.GetBool("TASKS_ENABLED"),
			Workers:           v.GetInt("TASK_WORKERS"),
			MaxRetries:        v.GetInt("TASK_MAX_RETRIES"),
			RetryDelay:        v.GetDuration("TASK_RETRY_DELAY"),
			TaskTimeout:       v.GetDuration("TASK_TIMEOUT"),
			ReleaseAfter:      v.GetDuration("TASK_RELEASE_AFTER"),
			CleanupInterval:   v.GetDuration("TASK_CLEANUP_INTERVAL"),
			RetentionDuration: v.GetDuration("TASK_RETENTION_DURATION"),
		},
		Audit: Audit{
			RetentionDays:   v.GetInt("AUDIT_RETENTION_DAYS"),
			CleanupSchedule: v.GetString("AUDIT_CLEANUP_SCHEDULE"),
		},
		Logging: Logging{
			Mode: v.GetString("LOG_MODE"),
		},
		Tracing: Tracing{
			Exporter:    strings.ToLower(v.GetString("TRACING_EXPORTER")),
			Endpoint:    v.GetString("TRACING_ENDPOINT"),
			Insecure:    v.GetBool("TRACING_INSECURE"),
			SampleRatio: v.GetFloat64("TRACING_SAMPLE_RATIO"),
			ServiceName: v.GetString("TRACING_SERVICE_NAME"),
		},
		CORS: CORS{
			AllowedOrigins: splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
		},
	}
}

// splitList turns a comma-separated value into a trimmed, non-empty slice.
func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
