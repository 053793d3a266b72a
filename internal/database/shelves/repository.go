// Package shelves provides database operations for per-user shelf assignments.
//
// A user holds at most one row per book; writes are upserts keyed on
// (user_id, book_id) and run inside a transaction that first checks the book
// still exists, so a shelf row never points at a deleted book.
//
// # Usage
//
//	repo := shelves.NewRepository(db)
//	entry, err := repo.Upsert(ctx, userID, bookID, entities.ShelfReading)
package shelves

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mrlokans/bookshelf/internal/entities"
)

// Repository handles all shelf database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new shelves repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Upsert places a book on a shelf for a user, replacing any previous shelf.
// Returns gorm.ErrRecordNotFound if the book does not exist.
func (r *Repository) Upsert(ctx context.Context, userID, bookID string, shelf entities.Shelf) (*entities.ShelfEntry, error) {
	var entry entities.ShelfEntry
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requireBook(tx, bookID); err != nil {
			return err
		}

		now := tx.NowFunc()
		upsert := entities.ShelfEntry{
			UserID:    userID,
			BookID:    bookID,
			Shelf:     shelf,
			CreatedAt: now,
			UpdatedAt: now,
		}
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "book_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"shelf", "updated_at"}),
		}).Create(&upsert).Error
		if err != nil {
			return err
		}

		return tx.Where("user_id = ? AND book_id = ?", userID, bookID).First(&entry).Error
	})
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// Get returns the shelf entry for one book.
func (r *Repository) Get(ctx context.Context, userID, bookID string) (*entities.ShelfEntry, error) {
	var entry entities.ShelfEntry
	err := r.db.WithContext(ctx).Where("user_id = ? AND book_id = ?", userID, bookID).First(&entry).Error
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// ListByUser returns every shelf entry of a user with its book, most
// recently changed first.
func (r *Repository) ListByUser(ctx context.Context, userID string) ([]entities.ShelfEntry, error) {
	entries := []entities.ShelfEntry{}
	err := r.db.WithContext(ctx).
		Joins("JOIN books ON books.id = shelf_entries.book_id").
		Preload("Book").
		Where("shelf_entries.user_id = ?", userID).
		Order("shelf_entries.updated_at DESC").
		Order("shelf_entries.book_id ASC").
		Find(&entries).Error
	return entries, err
}

// Delete removes a book from the user's shelves. Reports whether a row existed.
func (r *Repository) Delete(ctx context.Context, userID, bookID string) (bool, error) {
	result := r.db.WithContext(ctx).
		Where("user_id = ? AND book_id = ?", userID, bookID).
		Delete(&entities.ShelfEntry{})
	return result.RowsAffected > 0, result.Error
}

// CountByShelf returns how many books the user has on each shelf.
func (r *Repository) CountByShelf(ctx context.Context, userID string) (map[entities.Shelf]int64, error) {
	var rows []struct {
		Shelf entities.Shelf
		Total int64
	}
	err := r.db.WithContext(ctx).Model(&entities.ShelfEntry{}).
		Select("shelf, COUNT(*) AS total").
		Where("user_id = ?", userID).
		Group("shelf").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[entities.Shelf]int64, len(entities.AllShelves))
	for _, s := range entities.AllShelves {
		counts[s] = 0
	}
	for _, row := range rows {
		counts[row.Shelf] = row.Total
	}
	return counts, nil
}

func requireBook(tx *gorm.DB, bookID string) error {
	var count int64
	if err := tx.Model(&entities.Book{}).Where("id = ?", bookID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

