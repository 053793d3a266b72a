package auth

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/mrlokans/bookshelf/internal/apperr"
	"github.com/mrlokans/bookshelf/internal/config"
	"github.com/mrlokans/bookshelf/internal/entities"
	"github.com/mrlokans/bookshelf/internal/logger"
)

// Validation patterns
var (
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{3,64}$`)
	emailPattern    = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("email is already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidRole        = errors.New("invalid role")
	ErrEmailRequired      = errors.New("email is required")
	ErrPasswordRequired   = errors.New("password is required")
	ErrAccountLocked      = errors.New("account is locked due to too many failed login attempts")
	ErrUsernameInvalid    = errors.New("username must be 3-64 characters, alphanumeric and underscore/hyphen only")
	ErrEmailInvalid       = errors.New("invalid email format")
)

// UserStore is the persistence the service needs. Implemented by
// database/users.Repository.
type UserStore interface {
	Create(ctx context.Context, user *entities.User) error
	GetByID(ctx context.Context, id string) (*entities.User, error)
	GetByEmail(ctx context.Context, email string) (*entities.User, error)
	RecordLoginSuccess(ctx context.Context, id string, at time.Time) error
	RecordLoginFailure(ctx context.Context, id string, failedCount int, lockedUntil *time.Time) error
	UpdatePassword(ctx context.Context, id, passwordHash string, changedAt time.Time) error
	Count(ctx context.Context) (int64, error)
}

// AuthAuditor records authentication events.
type AuthAuditor interface {
	LogAuth(userID, action, ipAddr, userAgent string, success bool)
}

// Identity is a verified caller.
type Identity struct {
	UserID    string
	Email     string
	Username  string
	Role      entities.UserRole
	TokenID   string // empty for cookie sessions
	ExpiresAt time.Time
}

// Actor converts the identity into the form domain services authorize against.
func (i *Identity) Actor() entities.Actor {
	return entities.Actor{UserID: i.UserID, Role: i.Role}
}

// ClientInfo describes where a request came from, for lockout and audit.
type ClientInfo struct {
	IP        string
	UserAgent string
}

// Service handles registration, login and token verification.
type Service struct {
	users   UserStore
	tokens  *TokenManager
	revoker Revoker
	limiter LoginLimiter
	audit   AuthAuditor
	config  config.Auth
	log     *logger.Logger
	now     func() time.Time
}

// NewService creates a new authentication service.
func NewService(users UserStore, tokens *TokenManager, revoker Revoker, cfg config.Auth, log *logger.Logger) *Service {
	if cfg.MinPasswordLength <= 0 {
		cfg.MinPasswordLength = 8
	}
	if cfg.MaxLoginAttempts <= 0 {
		cfg.MaxLoginAttempts = 5
	}
	if cfg.LockoutDuration <= 0 {
		cfg.LockoutDuration = 30 * time.Minute
	}
	return &Service{
		users:   users,
		tokens:  tokens,
		revoker: revoker,
		config:  cfg,
		log:     logger.OrNop(log),
		now:     time.Now,
	}
}

// WithRateLimiter enables per client+email throttling of login attempts.
func (s *Service) WithRateLimiter(rl LoginLimiter) *Service {
	s.limiter = rl
	return s
}

// WithAuditor records authentication events.
func (s *Service) WithAuditor(a AuthAuditor) *Service {
	s.audit = a
	return s
}

// Tokens exposes the token manager, e.g. for reporting the token lifetime.
func (s *Service) Tokens() *TokenManager {
	return s.tokens
}

// CreateUser validates the input and stores a new account.
func (s *Service) CreateUser(ctx context.Context, email, password, username string, role entities.UserRole) (*entities.User, error) {
	email = entities.NormalizeEmail(email)
	username = strings.TrimSpace(username)

	if email == "" {
		return nil, apperr.Wrap(apperr.ErrValidation, ErrEmailRequired)
	}
	if len(email) > 254 || !emailPattern.MatchString(email) {
		return nil, apperr.Wrap(apperr.ErrValidation, ErrEmailInvalid)
	}
	if password == "" {
		return nil, apperr.Wrap(apperr.ErrValidation, ErrPasswordRequired)
	}
	if err := ValidatePassword(password, s.config.MinPasswordLength); err != nil {
		return nil, apperr.Validation("%s", err.Error())
	}
	if username != "" && !usernamePattern.MatchString(username) {
		return nil, apperr.Wrap(apperr.ErrValidation, ErrUsernameInvalid)
	}
	if !role.Valid() {
		return nil, apperr.Wrap(apperr.ErrValidation, ErrInvalidRole)
	}

	passwordHash, err := HashPassword(password, s.config.BcryptCost)
	if err != nil {
		return nil, apperr.Internal(err, "failed to hash password")
	}

	user := &entities.User{
		Email:        email,
		Username:     username,
		PasswordHash: passwordHash,
		Role:         role,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperr.Wrap(apperr.ErrConflict, ErrUserExists)
		}
		return nil, apperr.Internal(err, "failed to create user")
	}

	return user, nil
}

// Register creates a regular account and signs a first access token.
func (s *Service) Register(ctx context.Context, email, password, username string, client ClientInfo) (*entities.User, IssuedToken, error) {
	user, err := s.CreateUser(ctx, email, password, username, entities.UserRoleUser)
	if err != nil {
		return nil, IssuedToken{}, err
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		return nil, IssuedToken{}, apperr.Internal(err, "failed to issue token")
	}

	s.log.Info("user registered", "user_id", user.ID)
	s.logAuth(user.ID, "register", client, true)
	return user, token, nil
}

// Login verifies credentials and signs an access token. Repeated failures
// lock the account for the configured lockout duration.
func (s *Service) Login(ctx context.Context, email, password string, client ClientInfo) (*entities.User, IssuedToken, error) {
	email = entities.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, IssuedToken{}, apperr.Validation("email and password are required")
	}

	if s.limiter != nil {
		allowed, retryAfter, err := s.limiter.Allow(ctx, client.IP, email)
		if err != nil {
			// Fail closed
			s.log.Error("login rate limiter unavailable", "error", err)
		}
		if !allowed {
			return nil, IssuedToken{}, apperr.RateLimited("too many login attempts, retry in %s", retryAfter.Round(time.Second))
		}
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.recordLimiterFailure(ctx, client, email)
			s.logAuth("", "login", client, false)
			return nil, IssuedToken{}, apperr.Wrap(apperr.ErrUnauthenticated, ErrInvalidCredentials)
		}
		return nil, IssuedToken{}, apperr.Internal(err, "failed to look up user")
	}

	now := s.now()
	if user.LockedUntil != nil && now.Before(*user.LockedUntil) {
		s.logAuth(user.ID, "login", client, false)
		return nil, IssuedToken{}, apperr.Wrap(apperr.ErrUnauthenticated, ErrAccountLocked)
	}

	if err := CheckPassword(password, user.PasswordHash); err != nil {
		s.recordLimiterFailure(ctx, client, email)
		s.recordFailedLogin(ctx, user)
		s.logAuth(user.ID, "login", client, false)
		return nil, IssuedToken{}, apperr.Wrap(apperr.ErrUnauthenticated, ErrInvalidCredentials)
	}

	if err := s.users.RecordLoginSuccess(ctx, user.ID, now); err != nil {
		s.log.Warn("failed to record login", "user_id", user.ID, "error", err)
	}
	if s.limiter != nil {
		if err := s.limiter.Reset(ctx, client.IP, email); err != nil {
			s.log.Warn("failed to reset login limiter", "error", err)
		}
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		return nil, IssuedToken{}, apperr.Internal(err, "failed to issue token")
	}

	s.logAuth(user.ID, "login", client, true)
	return user, token, nil
}

// recordFailedLogin increments the failed login counter and locks the account if threshold reached.
func (s *Service) recordFailedLogin(ctx context.Context, user *entities.User) {
	user.FailedLoginCount++

	var lockedUntil *time.Time
	if user.FailedLoginCount >= s.config.MaxLoginAttempts {
		until := s.now().Add(s.config.LockoutDuration)
		lockedUntil = &until
	}

	if err := s.users.RecordLoginFailure(ctx, user.ID, user.FailedLoginCount, lockedUntil); err != nil {
		s.log.Warn("failed to record login failure", "user_id", user.ID, "error", err)
	}
}

func (s *Service) recordLimiterFailure(ctx context.Context, client ClientInfo, email string) {
	if s.limiter == nil {
		return
	}
	limited, err := s.limiter.RecordFailure(ctx, client.IP, email)
	if err != nil {
		s.log.Warn("failed to record login attempt", "error", err)
		return
	}
	if limited {
		s.log.Warn("login attempts throttled", "ip", client.IP)
	}
}

// Authenticate validates a bearer token and resolves the caller. Any failure
// is reported as an Unauthenticated error.
func (s *Service) Authenticate(ctx context.Context, bearer string) (*Identity, error) {
	claims, err := s.tokens.Parse(bearer)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrUnauthenticated, unwrapTokenError(err))
	}

	revoked, err := s.revoker.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, apperr.Internal(err, "failed to check token revocation")
	}
	if revoked {
		return nil, apperr.Wrap(apperr.ErrUnauthenticated, ErrTokenRevoked)
	}

	identity, err := s.resolve(ctx, claims.Subject, claims.IssuedAt.Time)
	if err != nil {
		return nil, err
	}
	identity.TokenID = claims.ID
	identity.ExpiresAt = claims.ExpiresAt.Time
	return identity, nil
}

// SessionIdentity resolves the user behind a cookie session opened at loginAt.
func (s *Service) SessionIdentity(ctx context.Context, userID string, loginAt time.Time) (*Identity, error) {
	if userID == "" {
		return nil, apperr.Unauthenticated("no active session")
	}
	return s.resolve(ctx, userID, loginAt)
}

func (s *Service) resolve(ctx context.Context, userID string, issuedAt time.Time) (*Identity, error) {
	cutoff, err := s.revoker.UserCutoff(ctx, userID)
	if err != nil {
		return nil, apperr.Internal(err, "failed to check token revocation")
	}
	if IssuedBeforeCutoff(issuedAt, cutoff) {
		return nil, apperr.Wrap(apperr.ErrUnauthenticated, ErrTokenRevoked)
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.Wrap(apperr.ErrUnauthenticated, ErrUserNotFound)
		}
		return nil, apperr.Internal(err, "failed to load user")
	}

	return &Identity{
		UserID:   user.ID,
		Email:    user.Email,
		Username: user.Username,
		Role:     user.Role,
	}, nil
}

// Logout revokes the token the identity was authenticated with.
func (s *Service) Logout(ctx context.Context, identity *Identity, client ClientInfo) error {
	if identity.TokenID != "" {
		if err := s.revoker.Revoke(ctx, identity.TokenID, identity.ExpiresAt); err != nil {
			return apperr.Internal(err, "failed to revoke token")
		}
	}
	s.logAuth(identity.UserID, "logout", client, true)
	return nil
}

// ChangePassword replaces the caller's password. Every token and session
// issued before the change stops validating.
func (s *Service) ChangePassword(ctx context.Context, identity *Identity, current, next string, client ClientInfo) error {
	user, err := s.users.GetByID(ctx, identity.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.Wrap(apperr.ErrNotFound, ErrUserNotFound)
		}
		return apperr.Internal(err, "failed to load user")
	}

	if err := CheckPassword(current, user.PasswordHash); err != nil {
		s.logAuth(user.ID, "password_change", client, false)
		return apperr.Wrap(apperr.ErrUnauthenticated, ErrInvalidCredentials)
	}
	if err := ValidatePassword(next, s.config.MinPasswordLength); err != nil {
		return apperr.Validation("%s", err.Error())
	}

	hash, err := HashPassword(next, s.config.BcryptCost)
	if err != nil {
		return apperr.Internal(err, "failed to hash password")
	}

	now := s.now()
	if err := s.users.UpdatePassword(ctx, user.ID, hash, now); err != nil {
		return apperr.Internal(err, "failed to update password")
	}
	if err := s.revoker.RevokeUserBefore(ctx, user.ID, now); err != nil {
		return apperr.Internal(err, "failed to revoke existing tokens")
	}
	// Tokens issued earlier in the same second survive the cutoff.
	if identity.TokenID != "" {
		if err := s.revoker.Revoke(ctx, identity.TokenID, identity.ExpiresAt); err != nil {
			return apperr.Internal(err, "failed to revoke token")
		}
	}

	s.logAuth(user.ID, "password_change", client, true)
	return nil
}

// GetUser returns the account behind an ID.
func (s *Service) GetUser(ctx context.Context, id string) (*entities.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.Wrap(apperr.ErrNotFound, ErrUserNotFound)
		}
		return nil, apperr.Internal(err, "failed to load user")
	}
	return user, nil
}

// HasUsers returns true if any users exist in the database.
func (s *Service) HasUsers(ctx context.Context) (bool, error) {
	count, err := s.users.Count(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to count users: %w", err)
	}
	return count > 0, nil
}

func (s *Service) logAuth(userID, action string, client ClientInfo, success bool) {
	if s.audit != nil {
		s.audit.LogAuth(userID, action, client.IP, client.UserAgent, success)
	}
}

func unwrapTokenError(err error) error {
	if errors.Is(err, ErrTokenExpired) {
		return ErrTokenExpired
	}
	return ErrInvalidToken
}
