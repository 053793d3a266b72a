package entities

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type UserRole string

const (
	UserRoleUser  UserRole = "user"
	UserRoleAdmin UserRole = "admin"
)

// Valid reports whether r is one of the known roles.
func (r UserRole) Valid() bool {
	return r == UserRoleUser || r == UserRoleAdmin
}

type User struct {
	ID                string     `gorm:"primaryKey;size:36" json:"id"`
	Email             string     `gorm:"uniqueIndex;size:255;not null" json:"email"` // stored normalized, see NormalizeEmail
	Username          string     `gorm:"size:100" json:"username,omitempty"`
	PasswordHash      string     `gorm:"size:255;not null" json:"-"`
	Role              UserRole   `gorm:"size:20;not null;default:user" json:"role"`
	FailedLoginCount  int        `gorm:"not null;default:0" json:"-"`
	LockedUntil       *time.Time `json:"-"`
	LastLoginAt       *time.Time `json:"last_login_at,omitempty"`
	PasswordChangedAt *time.Time `json:"-"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.Role == "" {
		u.Role = UserRoleUser
	}
	return nil
}

func (u *User) IsAdmin() bool {
	return u.Role == UserRoleAdmin
}

// NormalizeEmail folds an address to the form used for uniqueness checks.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Actor is the authenticated caller of a domain operation.
type Actor struct {
	UserID string
	Role   UserRole
}

func (a Actor) IsAdmin() bool {
	return a.Role == UserRoleAdmin
}

// CanAccess reports whether the actor may read or change data owned by ownerID.
func (a Actor) CanAccess(ownerID string) bool {
	return a.UserID != "" && (a.UserID == ownerID || a.IsAdmin())
}
