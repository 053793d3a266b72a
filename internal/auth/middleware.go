package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/bookshelf/internal/apperr"
	"github.com/mrlokans/bookshelf/internal/entities"
)

// Context keys for user data
const (
	ContextKeyIdentity = "auth_identity"
	ContextKeyAuthType = "auth_type" // "session", "bearer", or "none"
)

// AuthType indicates how the user was authenticated
type AuthType string

const (
	AuthTypeNone    AuthType = "none"
	AuthTypeSession AuthType = "session"
	AuthTypeBearer  AuthType = "bearer"
)

// Middleware handles authentication for HTTP requests.
type Middleware struct {
	service        *Service
	sessionManager *SessionManager
}

// NewMiddleware creates a new authentication middleware. sessionManager may
// be nil when cookie sessions are disabled.
func NewMiddleware(service *Service, sessionManager *SessionManager) *Middleware {
	return &Middleware{
		service:        service,
		sessionManager: sessionManager,
	}
}

// Optional resolves the caller when credentials are present and lets
// anonymous requests through. A bearer header that fails to validate is
// still rejected.
func (m *Middleware) Optional() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !m.authenticate(c) {
			return
		}
		c.Next()
	}
}

// RequireAuth rejects requests without a valid bearer token or session.
func (m *Middleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !m.authenticate(c) {
			return
		}
		if GetIdentity(c) == nil {
			abortUnauthenticated(c, "authentication required")
			return
		}
		c.Next()
	}
}

// authenticate tries the bearer header, then the session cookie. It returns
// false after aborting the request.
func (m *Middleware) authenticate(c *gin.Context) bool {
	if GetIdentity(c) != nil {
		return true
	}

	if header := c.GetHeader("Authorization"); header != "" {
		token, ok := bearerToken(header)
		if !ok {
			abortUnauthenticated(c, "malformed authorization header")
			return false
		}
		identity, err := m.service.Authenticate(c.Request.Context(), token)
		if err != nil {
			if !errors.Is(err, apperr.ErrUnauthenticated) {
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error": "failed to authenticate request",
					"code":  "internal",
				})
				return false
			}
			abortUnauthenticated(c, "invalid or expired token")
			return false
		}
		setIdentity(c, identity, AuthTypeBearer)
		return true
	}

	if m.sessionManager != nil {
		if data := m.sessionManager.GetSessionData(c.Request); data != nil {
			identity, err := m.service.SessionIdentity(c.Request.Context(), data.UserID, data.LoginAt)
			if err == nil {
				setIdentity(c, identity, AuthTypeSession)
				return true
			}
			// Stale session: drop it and continue as anonymous
			_ = m.sessionManager.DestroySession(c.Request)
		}
	}

	c.Set(ContextKeyAuthType, AuthTypeNone)
	return true
}

// RequireRole returns a middleware that requires one of the given roles.
// It must run after RequireAuth.
func (m *Middleware) RequireRole(roles ...entities.UserRole) gin.HandlerFunc {
	roleSet := make(map[entities.UserRole]bool)
	for _, r := range roles {
		roleSet[r] = true
	}

	return func(c *gin.Context) {
		identity := GetIdentity(c)
		if identity == nil {
			abortUnauthenticated(c, "authentication required")
			return
		}
		if !roleSet[identity.Role] {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "insufficient permissions",
				"code":  "forbidden",
			})
			return
		}
		c.Next()
	}
}

func abortUnauthenticated(c *gin.Context, message string) {
	c.Header("WWW-Authenticate", `Bearer realm="bookshelf"`)
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error": message,
		"code":  "unauthenticated",
	})
}

// bearerToken extracts the token from "Bearer <token>".
func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

func setIdentity(c *gin.Context, identity *Identity, authType AuthType) {
	c.Set(ContextKeyIdentity, identity)
	c.Set(ContextKeyAuthType, authType)
}

// Helper functions to extract auth data from Gin context

// GetIdentity returns the authenticated caller, or nil.
func GetIdentity(c *gin.Context) *Identity {
	if v, exists := c.Get(ContextKeyIdentity); exists {
		if identity, ok := v.(*Identity); ok {
			return identity
		}
	}
	return nil
}

// GetUserID retrieves the authenticated user's ID, or "" for anonymous requests.
func GetUserID(c *gin.Context) string {
	if identity := GetIdentity(c); identity != nil {
		return identity.UserID
	}
	return ""
}

// GetAuthType retrieves the authentication method used.
func GetAuthType(c *gin.Context) AuthType {
	if t, exists := c.Get(ContextKeyAuthType); exists {
		if authType, ok := t.(AuthType); ok {
			return authType
		}
	}
	return AuthTypeNone
}

// GetClientInfo collects the request details used for lockout and audit.
func GetClientInfo(c *gin.Context) ClientInfo {
	return ClientInfo{IP: c.ClientIP(), UserAgent: c.Request.UserAgent()}
}
