package entrypoint

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/mrlokans/bookshelf/internal/audit"
	"github.com/mrlokans/bookshelf/internal/auth"
	"github.com/mrlokans/bookshelf/internal/catalog"
	"github.com/mrlokans/bookshelf/internal/config"
	"github.com/mrlokans/bookshelf/internal/database"
	auditrepo "github.com/mrlokans/bookshelf/internal/database/audit"
	"github.com/mrlokans/bookshelf/internal/database/books"
	"github.com/mrlokans/bookshelf/internal/database/favourites"
	"github.com/mrlokans/bookshelf/internal/database/history"
	prefrepo "github.com/mrlokans/bookshelf/internal/database/preferences"
	shelfrepo "github.com/mrlokans/bookshelf/internal/database/shelves"
	"github.com/mrlokans/bookshelf/internal/database/users"
	http_controllers "github.com/mrlokans/bookshelf/internal/http"
	"github.com/mrlokans/bookshelf/internal/logger"
	"github.com/mrlokans/bookshelf/internal/observability"
	"github.com/mrlokans/bookshelf/internal/preferences"
	"github.com/mrlokans/bookshelf/internal/scheduler"
	"github.com/mrlokans/bookshelf/internal/search"
	"github.com/mrlokans/bookshelf/internal/shelves"
	"github.com/mrlokans/bookshelf/internal/storage"
	"github.com/mrlokans/bookshelf/internal/tasks"
)

// ShutdownFunc is called during graceful shutdown to clean up resources.
type ShutdownFunc func(ctx context.Context)

// Serve runs the HTTP server until ctx is cancelled or the listener fails.
// onShutdown runs before the server drains its connections.
func Serve(ctx context.Context, router *gin.Engine, cfg *config.Config, log *logger.Logger, onShutdown ShutdownFunc) error {
	timeout := time.Duration(cfg.Global.ShutdownTimeoutInSeconds) * time.Second

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("starting server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server", "timeout", timeout)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		// Call shutdown callback first (e.g., to stop task queue)
		if onShutdown != nil {
			onShutdown(shutdownCtx)
		}
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		log.Info("server exiting")
		return nil
	})

	return g.Wait()
}

// Run wires every component from cfg and serves until ctx is cancelled.
func Run(ctx context.Context, cfg *config.Config, version string) error {
	log, err := logger.New(cfg.Logging.Mode)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer log.Sync()

	log.Info("starting bookshelf", "version", version, "environment", cfg.Global.Environment)

	shutdownTracing, err := observability.InitTracing(ctx, log, cfg.Tracing, cfg.Global.Environment, version)
	if err != nil {
		log.Warn("tracing disabled", "error", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			log.Warn("failed to flush traces", "error", err)
		}
	}()
	serviceName := ""
	if err == nil && cfg.Tracing.Exporter != observability.ExporterNone {
		serviceName = cfg.Tracing.ServiceName
	}

	db, err := database.NewDatabase(cfg.Database, log)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("error closing database", "error", err)
		}
	}()

	redisClient, err := OpenRedis(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	var revoker auth.Revoker = auth.NewMemoryRevoker(cfg.Auth.TokenExpiry)
	if redisClient != nil {
		defer redisClient.Close()
		revoker = auth.NewRedisRevoker(redisClient, cfg.Auth.TokenExpiry)
		log.Info("token revocations stored in redis", "addr", cfg.Redis.Addr)
	}

	auditService := audit.NewService(auditrepo.NewRepository(db.DB), log)
	defer auditService.Wait()

	tokenSecret, err := secretBytes(cfg.Auth.TokenSecret)
	if err != nil {
		return fmt.Errorf("failed to generate token secret: %w", err)
	}
	if cfg.Auth.TokenSecret == "" {
		log.Warn("generated token secret; set AUTH_TOKEN_SECRET to keep tokens valid across restarts")
	}

	var limiter auth.LoginLimiter = auth.NewMemoryLoginLimiter(cfg.Auth.MaxLoginAttempts, cfg.Auth.RateLimitWindow)
	if redisClient != nil {
		limiter = auth.NewRedisLoginLimiter(redisClient, cfg.Auth.MaxLoginAttempts, cfg.Auth.RateLimitWindow)
	}

	authService := auth.NewService(
		users.NewRepository(db.DB),
		auth.NewTokenManager(tokenSecret, cfg.Auth.TokenIssuer, cfg.Auth.TokenExpiry),
		revoker,
		cfg.Auth,
		log,
	).WithRateLimiter(limiter).WithAuditor(auditService)

	hasUsers, err := authService.HasUsers(ctx)
	if err != nil {
		log.Warn("failed to count users", "error", err)
	} else if !hasUsers {
		log.Info("no users found; run 'bookshelf create-admin' to create an administrator")
	}

	blobs, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}

	bookRepo := books.NewRepository(db.DB)
	catalogService := catalog.NewService(bookRepo, blobs, log).WithAuditor(auditService)
	if cfg.Storage.MaxUploadSize > 0 {
		catalogService.WithMaxUploadSize(cfg.Storage.MaxUploadSize)
	}

	// Initialize task queue if enabled
	var taskClient *tasks.Client
	var maintenance *scheduler.MaintenanceScheduler
	taskCtx, taskCtxCancel := context.WithCancel(context.Background())
	defer taskCtxCancel()

	if cfg.Tasks.Enabled {
		taskClient, err = tasks.NewClient(cfg.Database.Path, tasks.ConfigFrom(cfg.Tasks), log)
		if err != nil {
			return fmt.Errorf("failed to initialize task queue: %w", err)
		}
		defer func() {
			if err := taskClient.Close(); err != nil {
				log.Error("error closing task client", "error", err)
			}
		}()

		taskClient.Register(
			tasks.NewPurgeBookBlobsQueue(blobs, log),
			tasks.NewCleanupAuditEventsQueue(auditService, log),
		)
		catalogService.WithPurger(taskClient)
		taskClient.Start(taskCtx)

		maintenance = scheduler.NewMaintenanceScheduler(taskClient, cfg.Audit.CleanupSchedule, cfg.Audit.RetentionDays, log)
		if err := maintenance.Start(ctx); err != nil {
			return err
		}
	} else {
		log.Warn("task queue disabled; blobs of deleted books are not purged")
	}

	var sessionManager *auth.SessionManager
	var csrfSecret []byte
	if cfg.Auth.SessionsEnabled {
		sessionManager, err = newSessionManager(db, cfg.Auth)
		if err != nil {
			return err
		}
		csrfSecret, err = secretBytes(cfg.Auth.SessionSecret)
		if err != nil {
			return fmt.Errorf("failed to generate session secret: %w", err)
		}
		if cfg.Auth.SessionSecret == "" {
			log.Warn("generated session secret; set AUTH_SESSION_SECRET to persist")
		}
	}

	healthChecks := map[string]http_controllers.Pinger{"database": db}
	if redisClient != nil {
		healthChecks["redis"] = redisPinger{client: redisClient}
	} else {
		healthChecks["redis"] = nil
	}
	if minioStore, ok := blobs.(*storage.MinioStore); ok {
		healthChecks["storage"] = minioStore
	}

	routerCfg := http_controllers.RouterConfig{
		AuthService: authService,
		Catalog:     catalogService,
		Search:      search.NewEngine(bookRepo, log),
		Library: shelves.NewManager(
			shelfrepo.NewRepository(db.DB),
			history.NewRepository(db.DB),
			favourites.NewRepository(db.DB),
			log,
		),
		Preferences:        preferences.NewService(prefrepo.NewRepository(db.DB), log).WithAuditor(auditService),
		Log:                log,
		SessionManager:     sessionManager,
		CSRFSecret:         csrfSecret,
		SecureCookies:      cfg.Auth.SecureCookies,
		AllowedOrigins:     cfg.CORS.AllowedOrigins,
		ServiceName:        serviceName,
		AuditService:       auditService,
		AuditRetentionDays: cfg.Audit.RetentionDays,
		HealthChecks:       healthChecks,
		Version:            version,
	}
	if taskClient != nil {
		routerCfg.TaskRunner = taskClient
	}
	if localStore, ok := blobs.(*storage.LocalStore); ok {
		routerCfg.FilesPrefix = localStore.Prefix()
		routerCfg.FilesDir = localStore.Root()
	}

	if cfg.Logging.Mode == "production" || cfg.Logging.Mode == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := http_controllers.NewRouter(routerCfg)

	onShutdown := func(ctx context.Context) {
		if maintenance != nil {
			maintenance.Stop()
		}
		if taskClient != nil {
			taskClient.Stop(ctx)
			taskCtxCancel()
		}
	}

	return Serve(ctx, router, cfg, log, onShutdown)
}

// OpenRedis connects to the configured Redis server. It returns a nil client
// when no address is configured.
func OpenRedis(ctx context.Context, cfg config.Redis) (*redis.Client, error) {
	if cfg.Addr == "" {
		return nil, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}
	return client, nil
}

type redisPinger struct {
	client *redis.Client
}

func (p redisPinger) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

// newSessionManager keeps sessions in the main database on SQLite and in
// memory otherwise.
func newSessionManager(db *database.Database, cfg config.Auth) (*auth.SessionManager, error) {
	store := auth.NewMemorySessionStore()
	if db.Driver == config.DatabaseDriverSQLite {
		sqlDB, err := db.SQLDB()
		if err != nil {
			return nil, fmt.Errorf("failed to get SQL DB for sessions: %w", err)
		}
		store, err = auth.NewSQLiteSessionStore(sqlDB)
		if err != nil {
			return nil, err
		}
	}
	return auth.NewSessionManager(store, cfg), nil
}

// secretBytes decodes a hex secret, falling back to the raw bytes for
// non-hex values. An empty value yields a freshly generated secret.
func secretBytes(configured string) ([]byte, error) {
	if configured != "" {
		if b, err := hex.DecodeString(configured); err == nil {
			return b, nil
		}
		return []byte(configured), nil
	}
	secret, err := auth.GenerateSecret()
	if err != nil {
		return nil, err
	}
	return hex.DecodeString(secret)
}
