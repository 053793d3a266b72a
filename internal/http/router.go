package http

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/mrlokans/bookshelf/internal/auth"
	"github.com/mrlokans/bookshelf/internal/entities"
)

// NewRouter creates and configures the HTTP router with all endpoints.
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	if cfg.ServiceName != "" {
		router.Use(otelgin.Middleware(cfg.ServiceName))
	}
	router.Use(RequestLogger(cfg.Log))

	// Apply security headers to all responses
	router.Use(auth.SecurityHeadersMiddleware())
	if cfg.SecureCookies {
		router.Use(auth.StrictTransportSecurityMiddleware(0))
	}

	if len(cfg.AllowedOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", auth.CSRFTokenHeader},
			ExposeHeaders:    []string{auth.CSRFTokenHeader},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Sessions load first so the CSRF check sees the session cookie context
	if cfg.SessionManager != nil {
		router.Use(cfg.SessionManager.SessionLoadSave())
		if len(cfg.CSRFSecret) > 0 {
			router.Use(auth.CSRFMiddleware(cfg.CSRFSecret, cfg.SecureCookies, cfg.SessionManager.Cookie.Name))
		}
	}

	router.SetHTMLTemplate(readerTemplates())
	router.NoRoute(routeNotFound)

	authMiddleware := auth.NewMiddleware(cfg.AuthService, cfg.SessionManager)
	requireAuth := authMiddleware.RequireAuth()

	// Health endpoints
	health := NewHealthController(cfg.HealthChecks, cfg.Version, cfg.Log)
	router.GET("/health", health.Status)
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"message": "pong",
		})
	})

	// Auth endpoints
	authController := NewAuthController(cfg.AuthService, cfg.SessionManager, cfg.Log)
	router.POST("/auth/register", authController.Register)
	router.POST("/auth/login", authController.Login)
	router.POST("/auth/logout", requireAuth, authController.Logout)
	router.POST("/auth/password", requireAuth, authController.ChangePassword)

	profileController := NewProfileController(cfg.AuthService, cfg.Library, cfg.Log)
	router.GET("/profile", requireAuth, profileController.Profile)

	// Catalog and search endpoints
	booksController := NewBooksController(cfg.Catalog, cfg.Search, cfg.Log)
	router.GET("/search", booksController.Search)
	router.GET("/books", booksController.ListBooks)
	router.GET("/books/search", booksController.SearchBooks)
	router.GET("/books/category/:category", booksController.ListByCategory)
	router.GET("/books/:id", booksController.GetBook)
	router.POST("/books", requireAuth, booksController.CreateBook)
	router.POST("/books/upload", requireAuth, booksController.UploadBook)
	router.DELETE("/books/:id", requireAuth, booksController.DeleteBook)

	readerController := NewReaderController(cfg.Catalog, cfg.Preferences, cfg.Log)
	router.GET("/reader/:bookId", authMiddleware.Optional(), readerController.Reader)

	if cfg.FilesDir != "" && cfg.FilesPrefix != "" {
		router.Static(cfg.FilesPrefix, cfg.FilesDir)
	}

	// Library endpoints
	user := router.Group("/user", requireAuth)
	{
		shelvesController := NewShelvesController(cfg.Library, cfg.Log)
		user.POST("/shelves", shelvesController.SetShelf)
		user.GET("/shelves", shelvesController.ListShelves)
		user.DELETE("/shelves/:book_id", shelvesController.RemoveFromShelf)
		user.POST("/history", shelvesController.RecordProgress)
		user.GET("/history", shelvesController.History)
		router.PUT("/book/:id/status", requireAuth, shelvesController.SetBookStatus)

		favouritesController := NewFavouritesController(cfg.Library, cfg.Log)
		user.GET("/favorites", favouritesController.ListFavourites)
		user.POST("/favorites/:book_id", favouritesController.AddFavourite)
		user.DELETE("/favorites/:book_id", favouritesController.RemoveFavourite)

		preferencesController := NewPreferencesController(cfg.Preferences, cfg.Log)
		user.GET("/theme", preferencesController.GetTheme)
		user.PUT("/theme", preferencesController.SetTheme)
		user.POST("/theme/toggle", preferencesController.ToggleTheme)
		user.GET("/preferences", preferencesController.ListPreferences)
		user.GET("/preferences/:key", preferencesController.GetPreference)
		user.PUT("/preferences/:key", preferencesController.SetPreference)
		user.DELETE("/preferences/:key", preferencesController.ResetPreference)
	}

	// Admin endpoints
	admin := router.Group("/admin", requireAuth, authMiddleware.RequireRole(entities.UserRoleAdmin))
	{
		if cfg.AuditService != nil {
			auditController := NewAuditController(cfg.AuditService, cfg.Log)
			admin.GET("/audit", auditController.GetAuditEvents)
		}
		if cfg.TaskRunner != nil {
			tasksController := NewTasksController(cfg.TaskRunner, cfg.AuditRetentionDays, cfg.Log)
			admin.GET("/tasks/types", tasksController.ListTaskTypes)
			admin.GET("/tasks/:id", tasksController.GetTaskStatus)
			admin.POST("/tasks/:type/run", tasksController.RunTask)
		}
	}

	return router
}
