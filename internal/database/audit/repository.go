// Package audit provides database operations for the audit trail.
//
// # Usage
//
//	repo := audit.NewRepository(db)
//	events, total, err := repo.GetEvents(ctx, userID, 50, 0)
package audit

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/mrlokans/bookshelf/internal/entities"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// LogEvent saves an audit event to the database.
func (r *Repository) LogEvent(ctx context.Context, event *entities.AuditEvent) error {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	return r.db.WithContext(ctx).Create(event).Error
}

// GetEvents retrieves paginated audit events for a user, ordered by most
// recent first. An empty userID returns events of every user.
func (r *Repository) GetEvents(ctx context.Context, userID string, limit, offset int) ([]entities.AuditEvent, int64, error) {
	return r.page(ctx, r.db.WithContext(ctx).Model(&entities.AuditEvent{}), userID, limit, offset)
}

// GetEventsByType retrieves audit events filtered by type.
func (r *Repository) GetEventsByType(ctx context.Context, eventType entities.AuditEventType, userID string, limit, offset int) ([]entities.AuditEvent, int64, error) {
	query := r.db.WithContext(ctx).Model(&entities.AuditEvent{}).Where("event_type = ?", eventType)
	return r.page(ctx, query, userID, limit, offset)
}

func (r *Repository) page(ctx context.Context, query *gorm.DB, userID string, limit, offset int) ([]entities.AuditEvent, int64, error) {
	var events []entities.AuditEvent
	var total int64

	if userID != "" {
		query = query.Where("user_id = ?", userID)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	err := query.Order("created_at DESC").Order("id DESC").Limit(limit).Offset(offset).Find(&events).Error
	return events, total, err
}

// DeleteOldEvents removes audit events older than the specified time.
// Returns the number of deleted events.
func (r *Repository) DeleteOldEvents(ctx context.Context, olderThan time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Where("created_at < ?", olderThan).Delete(&entities.AuditEvent{})
	return result.RowsAffected, result.Error
}
