// Package books provides database operations for the book catalog.
//
// Searchable text is matched against the case-folded shadow columns of
// entities.Book, so every query argument must be folded with entities.Fold
// before it reaches this package.
//
// # Usage
//
//	repo := books.NewRepository(db)
//	book, err := repo.GetByID(ctx, id)
package books

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/mrlokans/bookshelf/internal/entities"
)

// Repository handles all book database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new books repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Filter narrows a candidate scan. Empty fields are ignored; the rest are
// combined with AND. Values are expected to be folded already.
type Filter struct {
	Query     string // substring of title, authors or description
	Category  string // exact category name
	Title     string
	Author    string
	Publisher string
}

// Create inserts a book together with its categories.
func (r *Repository) Create(ctx context.Context, book *entities.Book) error {
	return r.db.WithContext(ctx).Create(book).Error
}

// GetByID retrieves a book with its categories.
func (r *Repository) GetByID(ctx context.Context, id string) (*entities.Book, error) {
	var book entities.Book
	err := r.db.WithContext(ctx).Preload("Categories", orderCategories).
		Where("id = ?", id).First(&book).Error
	if err != nil {
		return nil, err
	}
	return &book, nil
}

// Exists reports whether a book with the given ID is present.
func (r *Repository) Exists(ctx context.Context, id string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entities.Book{}).Where("id = ?", id).Count(&count).Error
	return count > 0, err
}

// GetByTitleAndAuthors finds a book by its folded title and author line.
// Returns gorm.ErrRecordNotFound when there is none.
func (r *Repository) GetByTitleAndAuthors(ctx context.Context, title, authors string) (*entities.Book, error) {
	var book entities.Book
	err := r.db.WithContext(ctx).
		Where("title_folded = ? AND authors_folded = ?", entities.Fold(title), entities.Fold(authors)).
		Order("created_at ASC").
		First(&book).Error
	if err != nil {
		return nil, err
	}
	return &book, nil
}

// List returns a page of books, newest first, and the catalog size.
func (r *Repository) List(ctx context.Context, limit, offset int) ([]entities.Book, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&entities.Book{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query := r.db.WithContext(ctx).Preload("Categories", orderCategories).
		Order("created_at DESC").Order("id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	books := []entities.Book{}
	err := query.Find(&books).Error
	return books, total, err
}

// Candidates returns every book the filter may match. The LIKE prefilter is
// a superset check; callers re-verify matches before ranking.
func (r *Repository) Candidates(ctx context.Context, f Filter) ([]entities.Book, error) {
	query := r.db.WithContext(ctx).Model(&entities.Book{}).Preload("Categories", orderCategories)

	if f.Query != "" {
		pattern := likePattern(f.Query)
		query = query.Where(
			"title_folded LIKE ? ESCAPE '\\' OR authors_folded LIKE ? ESCAPE '\\' OR description_folded LIKE ? ESCAPE '\\'",
			pattern, pattern, pattern,
		)
	}
	if f.Category != "" {
		query = query.Where(
			"EXISTS (SELECT 1 FROM book_categories bc WHERE bc.book_id = books.id AND bc.name_folded = ?)",
			f.Category,
		)
	}
	if f.Title != "" {
		query = query.Where("title_folded LIKE ? ESCAPE '\\'", likePattern(f.Title))
	}
	if f.Author != "" {
		query = query.Where("authors_folded LIKE ? ESCAPE '\\'", likePattern(f.Author))
	}
	if f.Publisher != "" {
		query = query.Where("publisher_folded LIKE ? ESCAPE '\\'", likePattern(f.Publisher))
	}

	books := []entities.Book{}
	err := query.Order("created_at DESC").Order("id ASC").Find(&books).Error
	return books, err
}

// Delete removes a book and every per-user row that references it in one
// transaction. Returns gorm.ErrRecordNotFound if the book does not exist.
func (r *Repository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dependents := []any{
			&entities.ShelfEntry{},
			&entities.ReadingHistoryEntry{},
			&entities.Favourite{},
			&entities.BookCategory{},
		}
		for _, model := range dependents {
			if err := tx.Where("book_id = ?", id).Delete(model).Error; err != nil {
				return err
			}
		}

		result := tx.Where("id = ?", id).Delete(&entities.Book{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

// Count returns the number of books in the catalog.
func (r *Repository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entities.Book{}).Count(&count).Error
	return count, err
}

func orderCategories(db *gorm.DB) *gorm.DB {
	return db.Order("id ASC")
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likePattern wraps s for a substring LIKE match with wildcards escaped.
func likePattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}
