// Package history provides database operations for the append-only reading
// progress log.
//
// # Usage
//
//	repo := history.NewRepository(db)
//	latest, err := repo.LatestPerBook(ctx, userID)
package history

import (
	"context"

	"gorm.io/gorm"

	"github.com/mrlokans/bookshelf/internal/entities"
)

// latestPerBook keeps, per (user, book), the row with the newest recorded_at;
// ties resolve to the highest id so the projection is deterministic.
const latestPerBook = `reading_history.id = (
	SELECT h.id FROM reading_history h
	WHERE h.user_id = reading_history.user_id AND h.book_id = reading_history.book_id
	ORDER BY h.recorded_at DESC, h.id DESC
	LIMIT 1
)`

// Repository handles all reading history database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new history repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Append records a progress entry. Returns gorm.ErrRecordNotFound if the book
// does not exist.
func (r *Repository) Append(ctx context.Context, entry *entities.ReadingHistoryEntry) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&entities.Book{}).Where("id = ?", entry.BookID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return gorm.ErrRecordNotFound
		}
		if entry.RecordedAt.IsZero() {
			entry.RecordedAt = tx.NowFunc()
		}
		return tx.Create(entry).Error
	})
}

// LatestPerBook returns the most recent entry for every book the user has
// progress on, newest first.
func (r *Repository) LatestPerBook(ctx context.Context, userID string) ([]entities.ReadingHistoryEntry, error) {
	entries := []entities.ReadingHistoryEntry{}
	err := r.db.WithContext(ctx).
		Where("reading_history.user_id = ?", userID).
		Where(latestPerBook).
		Order("reading_history.recorded_at DESC").
		Order("reading_history.book_id ASC").
		Find(&entries).Error
	return entries, err
}

// Series returns the full log for one book, newest first. A non-positive
// limit returns every entry.
func (r *Repository) Series(ctx context.Context, userID, bookID string, limit int) ([]entities.ReadingHistoryEntry, error) {
	query := r.db.WithContext(ctx).
		Where("user_id = ? AND book_id = ?", userID, bookID).
		Order("recorded_at DESC").
		Order("id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	entries := []entities.ReadingHistoryEntry{}
	err := query.Find(&entries).Error
	return entries, err
}
