// Package users provides database operations for user accounts.
//
// # Usage
//
//	repo := users.NewRepository(db)
//	user, err := repo.GetByEmail(ctx, "reader@example.com")
package users

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/mrlokans/bookshelf/internal/entities"
)

// Repository handles all user database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new users repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a user. The email is normalized before insert; a second
// account with the same address yields gorm.ErrDuplicatedKey.
func (r *Repository) Create(ctx context.Context, user *entities.User) error {
	user.Email = entities.NormalizeEmail(user.Email)
	return r.db.WithContext(ctx).Create(user).Error
}

// GetByID retrieves a user by ID.
func (r *Repository) GetByID(ctx context.Context, id string) (*entities.User, error) {
	var user entities.User
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByEmail retrieves a user by email, ignoring case.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*entities.User, error) {
	var user entities.User
	err := r.db.WithContext(ctx).Where("email = ?", entities.NormalizeEmail(email)).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// RecordLoginSuccess resets the failure counter and stamps the login time.
func (r *Repository) RecordLoginSuccess(ctx context.Context, id string, at time.Time) error {
	return r.db.WithContext(ctx).Model(&entities.User{}).Where("id = ?", id).Updates(map[string]any{
		"last_login_at":      at,
		"failed_login_count": 0,
		"locked_until":       nil,
	}).Error
}

// RecordLoginFailure stores the new failure count and an optional lock.
func (r *Repository) RecordLoginFailure(ctx context.Context, id string, failedCount int, lockedUntil *time.Time) error {
	updates := map[string]any{"failed_login_count": failedCount}
	if lockedUntil != nil {
		updates["locked_until"] = *lockedUntil
	}
	return r.db.WithContext(ctx).Model(&entities.User{}).Where("id = ?", id).Updates(updates).Error
}

// UpdatePassword replaces the credential hash.
func (r *Repository) UpdatePassword(ctx context.Context, id, passwordHash string, changedAt time.Time) error {
	result := r.db.WithContext(ctx).Model(&entities.User{}).Where("id = ?", id).Updates(map[string]any{
		"password_hash":       passwordHash,
		"password_changed_at": changedAt,
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Count returns the number of registered users.
func (r *Repository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entities.User{}).Count(&count).Error
	return count, err
}
