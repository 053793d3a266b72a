// Package favourites provides database operations for per-user favourite books.
//
// # Usage
//
//	repo := favourites.NewRepository(db)
//	books, err := repo.List(ctx, userID)
package favourites

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mrlokans/bookshelf/internal/entities"
)

// Repository handles all favourites database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new favourites repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Add marks a book as a favourite. Adding twice is a no-op. Returns
// gorm.ErrRecordNotFound if the book does not exist.
func (r *Repository) Add(ctx context.Context, userID, bookID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&entities.Book{}).Where("id = ?", bookID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&entities.Favourite{UserID: userID, BookID: bookID}).Error
	})
}

// Remove unmarks a favourite. Reports whether a row existed.
func (r *Repository) Remove(ctx context.Context, userID, bookID string) (bool, error) {
	result := r.db.WithContext(ctx).Where("user_id = ? AND book_id = ?", userID, bookID).
		Delete(&entities.Favourite{})
	return result.RowsAffected > 0, result.Error
}

// IsFavourite reports whether the user marked the book.
func (r *Repository) IsFavourite(ctx context.Context, userID, bookID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entities.Favourite{}).
		Where("user_id = ? AND book_id = ?", userID, bookID).Count(&count).Error
	return count > 0, err
}

// List returns the user's favourite books, most recently added first.
func (r *Repository) List(ctx context.Context, userID string) ([]entities.Book, error) {
	books := []entities.Book{}
	err := r.db.WithContext(ctx).
		Preload("Categories", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Joins("JOIN favourites ON favourites.book_id = books.id").
		Where("favourites.user_id = ?", userID).
		Order("favourites.created_at DESC").
		Order("books.id ASC").
		Find(&books).Error
	return books, err
}

// Count returns how many favourites the user has.
func (r *Repository) Count(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entities.Favourite{}).Where("user_id = ?", userID).Count(&count).Error
	return count, err
}
