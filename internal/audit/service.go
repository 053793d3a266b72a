package audit

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"gorm.io/datatypes"

	"github.com/mrlokans/bookshelf/internal/database/audit"
	"github.com/mrlokans/bookshelf/internal/entities"
	"github.com/mrlokans/bookshelf/internal/logger"
)

// Service provides high-level audit logging functionality.
type Service struct {
	repo *audit.Repository
	log  *logger.Logger
	wg   sync.WaitGroup
}

// NewService creates a new audit service.
func NewService(repo *audit.Repository, log *logger.Logger) *Service {
	return &Service{repo: repo, log: logger.OrNop(log)}
}

// Log records a generic audit event.
func (s *Service) Log(ctx context.Context, event *entities.AuditEvent) error {
	return s.repo.LogEvent(ctx, event)
}

// LogAsync records an audit event in the background (non-blocking).
func (s *Service) LogAsync(event *entities.AuditEvent) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.repo.LogEvent(context.Background(), event); err != nil {
			s.log.Warn("failed to log audit event", "action", event.Action, "error", err)
		}
	}()
}

// Wait blocks until every pending asynchronous write has finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

// LogAuth records an authentication event.
func (s *Service) LogAuth(userID, action, ipAddr, userAgent string, success bool) {
	event := &entities.AuditEvent{
		UserID:    userID,
		EventType: entities.AuditEventAuth,
		Action:    action,
		IPAddress: ipAddr,
		UserAgent: truncate(userAgent, 500),
		Status:    entities.AuditStatusSuccess,
	}

	if !success {
		event.Status = entities.AuditStatusFailed
	}

	s.LogAsync(event)
}

// LogCatalog records a catalog change such as a book upload.
func (s *Service) LogCatalog(userID, action, bookID, title string, err error) {
	event := &entities.AuditEvent{
		UserID:      userID,
		EventType:   entities.AuditEventCatalog,
		Action:      action,
		Description: truncate(title, 500),
		EntityType:  "book",
		EntityID:    bookID,
		Status:      entities.AuditStatusSuccess,
	}

	if err != nil {
		event.Status = entities.AuditStatusFailed
		event.ErrorMsg = truncate(err.Error(), 500)
	}

	s.LogAsync(event)
}

// LogDelete records a deletion event.
func (s *Service) LogDelete(userID, entityType, entityID, entityName string) {
	event := &entities.AuditEvent{
		UserID:      userID,
		EventType:   entities.AuditEventDelete,
		Action:      entityType + "_delete",
		Description: truncate("Deleted "+entityType+": "+entityName, 500),
		EntityType:  entityType,
		EntityID:    entityID,
		Status:      entities.AuditStatusSuccess,
	}

	s.LogAsync(event)
}

// LogPreference records a preference change.
func (s *Service) LogPreference(userID, key, value string) {
	event := &entities.AuditEvent{
		UserID:      userID,
		EventType:   entities.AuditEventPreference,
		Action:      "preference_set",
		Description: truncate(key+" = "+value, 500),
		EntityType:  "preference",
		EntityID:    key,
		Status:      entities.AuditStatusSuccess,
	}

	s.LogAsync(event)
}

// LogMaintenance records the outcome of a background maintenance job.
func (s *Service) LogMaintenance(action, description string, affected int64, err error) {
	event := &entities.AuditEvent{
		EventType:   entities.AuditEventMaintenance,
		Action:      action,
		Description: truncate(description, 500),
		Metadata:    metadata(map[string]any{"affected": affected}),
		Status:      entities.AuditStatusSuccess,
	}

	if err != nil {
		event.Status = entities.AuditStatusFailed
		event.ErrorMsg = truncate(err.Error(), 500)
	}

	s.LogAsync(event)
}

// GetEvents retrieves paginated audit events.
func (s *Service) GetEvents(ctx context.Context, userID string, limit, offset int) ([]entities.AuditEvent, int64, error) {
	return s.repo.GetEvents(ctx, userID, limit, offset)
}

// GetEventsByType retrieves audit events filtered by type.
func (s *Service) GetEventsByType(ctx context.Context, eventType entities.AuditEventType, userID string, limit, offset int) ([]entities.AuditEvent, int64, error) {
	return s.repo.GetEventsByType(ctx, eventType, userID, limit, offset)
}

// DeleteOldEvents removes events older than the specified duration.
func (s *Service) DeleteOldEvents(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-retention)
	return s.repo.DeleteOldEvents(ctx, cutoff)
}

func metadata(values map[string]any) datatypes.JSON {
	raw, err := json.Marshal(values)
	if err != nil {
		return nil
	}
	return datatypes.JSON(raw)
}

// truncate shortens a string to max length.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
