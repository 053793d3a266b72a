// Package preferences provides database operations for per-user preference
// key/value pairs.
//
// # Usage
//
//	repo := preferences.NewRepository(db)
//	pref, err := repo.Upsert(ctx, userID, "theme", "dark")
package preferences

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mrlokans/bookshelf/internal/entities"
)

// Repository handles all preference database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new preferences repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Get retrieves one stored preference. Returns gorm.ErrRecordNotFound when the
// user never set the key.
func (r *Repository) Get(ctx context.Context, userID, key string) (*entities.Preference, error) {
	var pref entities.Preference
	err := r.db.WithContext(ctx).Where("user_id = ? AND key = ?", userID, key).First(&pref).Error
	if err != nil {
		return nil, err
	}
	return &pref, nil
}

// List returns every stored preference for a user ordered by key.
func (r *Repository) List(ctx context.Context, userID string) ([]entities.Preference, error) {
	prefs := []entities.Preference{}
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("key ASC").Find(&prefs).Error
	return prefs, err
}

// Upsert writes a preference value, last write wins.
func (r *Repository) Upsert(ctx context.Context, userID, key, value string) (*entities.Preference, error) {
	var pref entities.Preference
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := upsert(tx, userID, key, value); err != nil {
			return err
		}
		return tx.Where("user_id = ? AND key = ?", userID, key).First(&pref).Error
	})
	if err != nil {
		return nil, err
	}
	return &pref, nil
}

// Update applies fn to the current value inside a single write transaction,
// so concurrent read-modify-write cycles on the same key serialize. found is
// false when the key has never been set.
func (r *Repository) Update(ctx context.Context, userID, key string, fn func(current string, found bool) (string, error)) (*entities.Preference, error) {
	var pref entities.Preference
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current entities.Preference
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ? AND key = ?", userID, key).
			First(&current).Error
		found := true
		if errors.Is(err, gorm.ErrRecordNotFound) {
			found = false
		} else if err != nil {
			return err
		}

		next, err := fn(current.Value, found)
		if err != nil {
			return err
		}
		if err := upsert(tx, userID, key, next); err != nil {
			return err
		}
		return tx.Where("user_id = ? AND key = ?", userID, key).First(&pref).Error
	})
	if err != nil {
		return nil, err
	}
	return &pref, nil
}

// Delete removes a stored preference so it falls back to its default.
func (r *Repository) Delete(ctx context.Context, userID, key string) error {
	return r.db.WithContext(ctx).Where("user_id = ? AND key = ?", userID, key).
		Delete(&entities.Preference{}).Error
}

func upsert(tx *gorm.DB, userID, key, value string) error {
	now := tx.NowFunc()
	pref := entities.Preference{UserID: userID, Key: key, Value: value, CreatedAt: now, UpdatedAt: now}
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&pref).Error
}
