package auth

import (
	"database/sql"
	"encoding/gob"
	"fmt"
	"net/http"
	"time"

	"github.com/alexedwards/scs/sqlite3store"
	"github.com/alexedwards/scs/v2"
	"github.com/alexedwards/scs/v2/memstore"

	"github.com/mrlokans/bookshelf/internal/config"
	"github.com/mrlokans/bookshelf/internal/entities"
)

// Session data keys
const (
	SessionKeyUserID  = "user_id"
	SessionKeyRole    = "role"
	SessionKeyLoginAt = "login_at"
)

func init() {
	// Register types that will be stored in sessions
	gob.Register(entities.UserRole(""))
	gob.Register(time.Time{})
}

// SessionManager wraps scs.SessionManager with application-specific methods.
type SessionManager struct {
	*scs.SessionManager
}

// NewSQLiteSessionStore prepares the sessions table and returns a store
// backed by it. sqlDB should be the handle underlying GORM.
func NewSQLiteSessionStore(sqlDB *sql.DB) (scs.Store, error) {
	_, err := sqlDB.Exec(`CREATE TABLE IF NOT EXISTS sessions (
		token TEXT PRIMARY KEY,
		data BLOB NOT NULL,
		expiry REAL NOT NULL
	);
	CREATE INDEX IF NOT EXISTS sessions_expiry_idx ON sessions(expiry);`)
	if err != nil {
		return nil, fmt.Errorf("failed to create sessions table: %w", err)
	}
	return sqlite3store.New(sqlDB), nil
}

// NewMemorySessionStore keeps sessions in process memory. Used when the
// database is not SQLite.
func NewMemorySessionStore() scs.Store {
	return memstore.New()
}

// NewSessionManager creates a configured session manager.
func NewSessionManager(store scs.Store, cfg config.Auth) *SessionManager {
	sm := scs.New()
	sm.Store = store

	lifetime := cfg.SessionLifetime
	if lifetime <= 0 {
		lifetime = 24 * time.Hour
	}
	sm.Lifetime = lifetime
	sm.IdleTimeout = lifetime / 2

	sm.Cookie.Name = "session"
	sm.Cookie.HttpOnly = true
	sm.Cookie.Secure = cfg.SecureCookies
	sm.Cookie.SameSite = http.SameSiteStrictMode
	sm.Cookie.Path = "/"

	return &SessionManager{SessionManager: sm}
}

// CreateSession stores the user in the request's session after a
// successful login.
func (sm *SessionManager) CreateSession(r *http.Request, user *entities.User) error {
	// Renew token to prevent session fixation
	if err := sm.RenewToken(r.Context()); err != nil {
		return err
	}

	sm.Put(r.Context(), SessionKeyUserID, user.ID)
	sm.Put(r.Context(), SessionKeyRole, user.Role)
	sm.Put(r.Context(), SessionKeyLoginAt, time.Now().UTC())

	return nil
}

// DestroySession removes all session data and invalidates the session.
func (sm *SessionManager) DestroySession(r *http.Request) error {
	return sm.Destroy(r.Context())
}

// GetUserID retrieves the user ID from the session, or "" if there is none.
func (sm *SessionManager) GetUserID(r *http.Request) string {
	return sm.GetString(r.Context(), SessionKeyUserID)
}

// SessionData holds the session information for a request.
type SessionData struct {
	UserID  string
	Role    entities.UserRole
	LoginAt time.Time
}

// GetSessionData retrieves all session data at once.
func (sm *SessionManager) GetSessionData(r *http.Request) *SessionData {
	userID := sm.GetUserID(r)
	if userID == "" {
		return nil
	}

	role, _ := sm.Get(r.Context(), SessionKeyRole).(entities.UserRole)
	loginAt, _ := sm.Get(r.Context(), SessionKeyLoginAt).(time.Time)

	return &SessionData{
		UserID:  userID,
		Role:    role,
		LoginAt: loginAt,
	}
}
