package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/bookshelf/internal/auth"
	"github.com/mrlokans/bookshelf/internal/entities"
	"github.com/mrlokans/bookshelf/internal/logger"
)

// AuthController handles registration, login, logout and password changes.
type AuthController struct {
	service  *auth.Service
	sessions *auth.SessionManager
	log      *logger.Logger
}

// NewAuthController creates a new AuthController. sessions may be nil when
// cookie sessions are disabled.
func NewAuthController(service *auth.Service, sessions *auth.SessionManager, log *logger.Logger) *AuthController {
	return &AuthController{service: service, sessions: sessions, log: logger.OrNop(log)}
}

type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Username string `json:"username"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// UserResponse is the public view of an account.
type UserResponse struct {
	ID       string            `json:"id"`
	Email    string            `json:"email"`
	Username string            `json:"username,omitempty"`
	Role     entities.UserRole `json:"role"`
}

// TokenResponse is returned by register and login.
type TokenResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	ExpiresIn   int64        `json:"expires_in"`
	User        UserResponse `json:"user"`
}

func newUserResponse(user *entities.User) UserResponse {
	return UserResponse{ID: user.ID, Email: user.Email, Username: user.Username, Role: user.Role}
}

func newTokenResponse(user *entities.User, token auth.IssuedToken) TokenResponse {
	return TokenResponse{
		AccessToken: token.Token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(token.ExpiresAt.Sub(token.IssuedAt).Seconds()),
		User:        newUserResponse(user),
	}
}

// Register creates an account.
// POST /auth/register
func (ac *AuthController) Register(c *gin.Context) {
	var req RegisterRequest
	if !bindJSON(c, &req) {
		return
	}

	user, token, err := ac.service.Register(c.Request.Context(), req.Email, req.Password, req.Username, auth.GetClientInfo(c))
	if err != nil {
		respondError(c, ac.log, err)
		return
	}

	c.JSON(http.StatusCreated, newTokenResponse(user, token))
}

// Login verifies credentials and issues an access token. With cookie
// sessions enabled it also opens a session.
// POST /auth/login
func (ac *AuthController) Login(c *gin.Context) {
	var req LoginRequest
	if !bindJSON(c, &req) {
		return
	}

	user, token, err := ac.service.Login(c.Request.Context(), req.Email, req.Password, auth.GetClientInfo(c))
	if err != nil {
		respondError(c, ac.log, err)
		return
	}

	if ac.sessions != nil {
		if err := ac.sessions.CreateSession(c.Request, user); err != nil {
			ac.log.Warn("failed to create session", "user_id", user.ID, "error", err)
		}
	}

	c.JSON(http.StatusOK, newTokenResponse(user, token))
}

// Logout revokes the presented token and ends the cookie session.
// POST /auth/logout
func (ac *AuthController) Logout(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}

	if err := ac.service.Logout(c.Request.Context(), identity, auth.GetClientInfo(c)); err != nil {
		respondError(c, ac.log, err)
		return
	}
	if ac.sessions != nil && auth.GetAuthType(c) == auth.AuthTypeSession {
		if err := ac.sessions.DestroySession(c.Request); err != nil {
			ac.log.Warn("failed to destroy session", "user_id", identity.UserID, "error", err)
		}
	}

	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// ChangePassword replaces the caller's password. Tokens issued before the
// change stop working.
// POST /auth/password
func (ac *AuthController) ChangePassword(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}

	var req ChangePasswordRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.CurrentPassword == "" || req.NewPassword == "" {
		respondBadRequest(c, "current_password and new_password are required")
		return
	}

	if err := ac.service.ChangePassword(c.Request.Context(), identity, req.CurrentPassword, req.NewPassword, auth.GetClientInfo(c)); err != nil {
		respondError(c, ac.log, err)
		return
	}
	if ac.sessions != nil && auth.GetAuthType(c) == auth.AuthTypeSession {
		_ = ac.sessions.DestroySession(c.Request)
	}

	c.JSON(http.StatusOK, gin.H{"message": "password changed"})
}
