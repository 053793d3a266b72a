package audit

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/mrlokans/bookshelf/internal/config"
	"github.com/mrlokans/bookshelf/internal/database"
	auditRepo "github.com/mrlokans/bookshelf/internal/database/audit"
	"github.com/mrlokans/bookshelf/internal/entities"
)

func setupTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	db, err := database.NewDatabase(config.Database{Path: filepath.Join(t.TempDir(), "audit.db")}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewService(auditRepo.NewRepository(db.DB), nil), db.DB
}

func TestService_Log(t *testing.T) {
	svc, db := setupTestService(t)

	event := &entities.AuditEvent{
		UserID:    "user-1",
		EventType: entities.AuditEventCatalog,
		Action:    "book_create",
		Status:    entities.AuditStatusSuccess,
	}

	require.NoError(t, svc.Log(context.Background(), event))

	var saved entities.AuditEvent
	require.NoError(t, db.First(&saved, event.ID).Error)
	assert.Equal(t, "book_create", saved.Action)
}

func TestService_LogAuth(t *testing.T) {
	svc, db := setupTestService(t)

	svc.LogAuth("user-1", "login", "127.0.0.1", "curl/8", false)
	svc.Wait()

	var event entities.AuditEvent
	require.NoError(t, db.Where("action = ?", "login").First(&event).Error)
	assert.Equal(t, entities.AuditEventAuth, event.EventType)
	assert.Equal(t, entities.AuditStatusFailed, event.Status)
	assert.Equal(t, "127.0.0.1", event.IPAddress)
}

func TestService_LogCatalogFailure(t *testing.T) {
	svc, db := setupTestService(t)

	svc.LogCatalog("user-1", "book_upload", "", "Dune", errors.New("disk full"))
	svc.Wait()

	var event entities.AuditEvent
	require.NoError(t, db.Where("action = ?", "book_upload").First(&event).Error)
	assert.Equal(t, entities.AuditStatusFailed, event.Status)
	assert.Equal(t, "disk full", event.ErrorMsg)
}

func TestService_LogDeleteAndPreference(t *testing.T) {
	svc, db := setupTestService(t)

	svc.LogDelete("user-1", "book", "book-1", "Dune")
	svc.LogPreference("user-1", "theme", "dark")
	svc.Wait()

	var deleted entities.AuditEvent
	require.NoError(t, db.Where("action = ?", "book_delete").First(&deleted).Error)
	assert.Equal(t, "book-1", deleted.EntityID)
	assert.Equal(t, "Deleted book: Dune", deleted.Description)

	var pref entities.AuditEvent
	require.NoError(t, db.Where("event_type = ?", entities.AuditEventPreference).First(&pref).Error)
	assert.Equal(t, "theme", pref.EntityID)
}

func TestService_LogMaintenanceMetadata(t *testing.T) {
	svc, db := setupTestService(t)

	svc.LogMaintenance("audit_cleanup", "Removed old audit events", 7, nil)
	svc.Wait()

	var event entities.AuditEvent
	require.NoError(t, db.Where("action = ?", "audit_cleanup").First(&event).Error)
	assert.JSONEq(t, `{"affected":7}`, string(event.Metadata))
}

func TestService_DeleteOldEvents(t *testing.T) {
	svc, _ := setupTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Log(ctx, &entities.AuditEvent{
		EventType: entities.AuditEventAuth, Action: "old", CreatedAt: time.Now().UTC().Add(-72 * time.Hour),
	}))
	require.NoError(t, svc.Log(ctx, &entities.AuditEvent{EventType: entities.AuditEventAuth, Action: "fresh"}))

	deleted, err := svc.DeleteOldEvents(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	events, total, err := svc.GetEvents(ctx, "", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "fresh", events[0].Action)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	long := strings.Repeat("x", 20)
	assert.Equal(t, "xxxxxxx...", truncate(long, 10))
}
