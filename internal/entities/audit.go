package entities

import (
	"time"

	"gorm.io/datatypes"
)

type AuditEventType string

const (
	AuditEventAuth        AuditEventType = "auth"
	AuditEventCatalog     AuditEventType = "catalog"
	AuditEventDelete      AuditEventType = "delete"
	AuditEventPreference  AuditEventType = "preference"
	AuditEventMaintenance AuditEventType = "maintenance"
)

type AuditStatus string

const (
	AuditStatusSuccess AuditStatus = "success"
	AuditStatusFailed  AuditStatus = "failed"
)

type AuditEvent struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	UserID      string         `gorm:"index;size:36" json:"user_id,omitempty"`
	EventType   AuditEventType `gorm:"index;size:50" json:"event_type"`
	Action      string         `gorm:"size:100" json:"action"`      // e.g., "login", "book_delete"
	Description string         `gorm:"size:500" json:"description"` // Human-readable summary
	EntityType  string         `gorm:"size:50" json:"entity_type,omitempty"`
	EntityID    string         `gorm:"index;size:36" json:"entity_id,omitempty"`
	Metadata    datatypes.JSON `json:"metadata,omitempty"`
	IPAddress   string         `gorm:"size:45" json:"ip_address,omitempty"`
	UserAgent   string         `gorm:"size:500" json:"user_agent,omitempty"`
	Status      AuditStatus    `gorm:"size:20" json:"status"`
	ErrorMsg    string         `gorm:"size:500" json:"error_msg,omitempty"`
	CreatedAt   time.Time      `gorm:"index" json:"created_at"`
}

func (AuditEvent) TableName() string {
	return "audit_events"
}
