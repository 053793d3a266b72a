// Package auth provides authentication and authorization for the API.
//
// Callers authenticate with an HS256 bearer token issued at register or
// login. When cookie sessions are enabled the browser client may use a
// session cookie instead; unsafe cookie-authenticated requests then go
// through CSRF checks.
//
// Tokens carry a jti so they can be revoked one by one (logout), and every
// user has a revocation cutoff: tokens and sessions issued before the last
// password change stop validating. Revocations live in Redis when it is
// configured and in memory otherwise.
//
// # Configuration
//
//	AUTH_TOKEN_SECRET=<random>       # Auto-generated if empty (tokens then die on restart)
//	AUTH_TOKEN_EXPIRY=24h            # Access token lifetime
//	AUTH_BCRYPT_COST=12              # bcrypt cost factor
//	AUTH_SESSIONS_ENABLED=false      # Cookie sessions for the browser client
//	AUTH_SECURE_COOKIES=true         # HTTPS-only cookies
//	REDIS_ADDR=localhost:6379        # Shared revocation store
//
// # Usage
//
// Initialize authentication in entrypoint:
//
//	tokens := auth.NewTokenManager(secret, cfg.Auth.TokenIssuer, cfg.Auth.TokenExpiry)
//	authService := auth.NewService(users.NewRepository(db.DB), tokens, revoker, cfg.Auth, log)
//	authMiddleware := auth.NewMiddleware(authService, sessionManager)
//	protected := router.Group("/", authMiddleware.RequireAuth())
//
// Extract the caller in handlers:
//
//	identity := auth.GetIdentity(c) // nil for anonymous requests
package auth
