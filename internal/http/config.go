package http

import (
	"github.com/mrlokans/bookshelf/internal/audit"
	"github.com/mrlokans/bookshelf/internal/auth"
	"github.com/mrlokans/bookshelf/internal/catalog"
	"github.com/mrlokans/bookshelf/internal/logger"
	"github.com/mrlokans/bookshelf/internal/preferences"
	"github.com/mrlokans/bookshelf/internal/search"
	"github.com/mrlokans/bookshelf/internal/shelves"
)

// RouterConfig contains all dependencies and configuration needed
// to create the HTTP router.
type RouterConfig struct {
	// Core dependencies
	AuthService *auth.Service
	Catalog     *catalog.Service
	Search      *search.Engine
	Library     *shelves.Manager
	Preferences *preferences.Service
	Log         *logger.Logger

	// Cookie sessions (optional). CSRF protection applies to session
	// authenticated requests when CSRFSecret is set.
	SessionManager *auth.SessionManager
	CSRFSecret     []byte
	SecureCookies  bool

	// CORS
	AllowedOrigins []string

	// Tracing; empty disables the otelgin middleware
	ServiceName string

	// Local blob store served as static files (optional)
	FilesPrefix string
	FilesDir    string

	// Admin endpoints (optional)
	AuditService       *audit.Service
	TaskRunner         TaskRunner
	AuditRetentionDays int

	// Health checks, by name
	HealthChecks map[string]Pinger

	// Application info
	Version string
}
