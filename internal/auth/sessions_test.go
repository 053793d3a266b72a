package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mrlokans/bookshelf/internal/config"
	"github.com/mrlokans/bookshelf/internal/entities"
)

func setupSessionManager(t *testing.T) *SessionManager {
	t.Helper()

	db := setupTestDB(t)
	sqlDB, err := db.SQLDB()
	if err != nil {
		t.Fatalf("failed to get SQL DB: %v", err)
	}

	store, err := NewSQLiteSessionStore(sqlDB)
	if err != nil {
		t.Fatalf("failed to create session store: %v", err)
	}

	return NewSessionManager(store, config.Auth{
		SessionLifetime: 24 * time.Hour,
		SecureCookies:   false,
	})
}

func TestNewSessionManager(t *testing.T) {
	sm := setupSessionManager(t)

	if sm.Cookie.Name != "session" {
		t.Errorf("Expected cookie name 'session', got '%s'", sm.Cookie.Name)
	}
	if !sm.Cookie.HttpOnly {
		t.Error("Cookie should be HttpOnly")
	}
	if sm.Cookie.SameSite != http.SameSiteStrictMode {
		t.Errorf("Expected SameSiteStrictMode, got %v", sm.Cookie.SameSite)
	}
	if sm.IdleTimeout != 12*time.Hour {
		t.Errorf("IdleTimeout = %v, want 12h", sm.IdleTimeout)
	}
}

func TestSessionManager_CreateAndRetrieveSession(t *testing.T) {
	sm := setupSessionManager(t)

	user := &entities.User{ID: "user-123", Email: "test@example.com", Role: entities.UserRoleAdmin}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rr := httptest.NewRecorder()

	handler := sm.LoadAndSave(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if sm.GetSessionData(r) != nil {
			t.Error("expected no session data before login")
		}

		if err := sm.CreateSession(r, user); err != nil {
			t.Fatalf("failed to create session: %v", err)
		}

		data := sm.GetSessionData(r)
		if data == nil {
			t.Fatal("expected session data after login")
		}
		if data.UserID != user.ID {
			t.Errorf("Expected user ID %s, got %s", user.ID, data.UserID)
		}
		if data.Role != user.Role {
			t.Errorf("Expected role '%s', got '%s'", user.Role, data.Role)
		}
		if data.LoginAt.IsZero() {
			t.Error("LoginAt should be set")
		}

		w.WriteHeader(http.StatusOK)
	}))

	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rr.Code)
	}
	if len(rr.Result().Cookies()) == 0 {
		t.Error("expected a session cookie")
	}
}

func TestSessionManager_DestroySession(t *testing.T) {
	sm := NewSessionManager(NewMemorySessionStore(), config.Auth{})
	user := &entities.User{ID: "user-9", Role: entities.UserRoleUser}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rr := httptest.NewRecorder()

	handler := sm.LoadAndSave(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := sm.CreateSession(r, user); err != nil {
			t.Fatalf("failed to create session: %v", err)
		}
		if err := sm.DestroySession(r); err != nil {
			t.Fatalf("failed to destroy session: %v", err)
		}
		if id := sm.GetUserID(r); id != "" {
			t.Errorf("Expected empty user ID after destroy, got %q", id)
		}
		w.WriteHeader(http.StatusOK)
	}))

	handler.ServeHTTP(rr, req)
}
