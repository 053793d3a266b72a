// Package shelves manages a user's personal library: which shelf each book
// sits on, reading progress over time and favourites.
//
// Every operation takes the acting caller and the owner of the library
// being touched; callers may only act on their own library unless they are
// admins.
package shelves

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/mrlokans/bookshelf/internal/apperr"
	"github.com/mrlokans/bookshelf/internal/entities"
	"github.com/mrlokans/bookshelf/internal/logger"
)

const (
	DefaultHistoryLimit = 100
	MaxHistoryLimit     = 1000
)

// ShelfStore is implemented by database/shelves.Repository.
type ShelfStore interface {
	Upsert(ctx context.Context, userID, bookID string, shelf entities.Shelf) (*entities.ShelfEntry, error)
	ListByUser(ctx context.Context, userID string) ([]entities.ShelfEntry, error)
	Delete(ctx context.Context, userID, bookID string) (bool, error)
	CountByShelf(ctx context.Context, userID string) (map[entities.Shelf]int64, error)
}

// HistoryStore is implemented by database/history.Repository.
type HistoryStore interface {
	Append(ctx context.Context, entry *entities.ReadingHistoryEntry) error
	LatestPerBook(ctx context.Context, userID string) ([]entities.ReadingHistoryEntry, error)
	Series(ctx context.Context, userID, bookID string, limit int) ([]entities.ReadingHistoryEntry, error)
}

// FavouriteStore is implemented by database/favourites.Repository.
type FavouriteStore interface {
	Add(ctx context.Context, userID, bookID string) error
	Remove(ctx context.Context, userID, bookID string) (bool, error)
	List(ctx context.Context, userID string) ([]entities.Book, error)
	Count(ctx context.Context, userID string) (int64, error)
}

// Summary counts the books in a user's library.
type Summary struct {
	Shelves    map[entities.Shelf]int64
	Favourites int64
}

// Manager implements the library operations.
type Manager struct {
	shelves    ShelfStore
	history    HistoryStore
	favourites FavouriteStore
	log        *logger.Logger
	now        func() time.Time
}

func NewManager(shelves ShelfStore, history HistoryStore, favourites FavouriteStore, log *logger.Logger) *Manager {
	return &Manager{
		shelves:    shelves,
		history:    history,
		favourites: favourites,
		log:        logger.OrNop(log),
		now:        time.Now,
	}
}

// SetShelf puts a book on the named shelf, replacing any previous shelf.
// Any shelf may follow any other; repeating a call changes nothing. An
// unknown shelf name is rejected before anything is written.
func (m *Manager) SetShelf(ctx context.Context, actor entities.Actor, ownerID, bookID, shelf string) (*entities.ShelfEntry, error) {
	if err := authorize(actor, ownerID); err != nil {
		return nil, err
	}
	parsed, ok := entities.ParseShelf(shelf)
	if !ok {
		return nil, apperr.Validation("invalid shelf %q: must be one of %s", shelf, shelfNames())
	}
	if err := requireBookID(bookID); err != nil {
		return nil, err
	}

	entry, err := m.shelves.Upsert(ctx, ownerID, bookID, parsed)
	if err != nil {
		return nil, storeError(err, "failed to update shelf")
	}
	m.log.Debug("shelf updated", "user_id", ownerID, "book_id", bookID, "shelf", parsed)
	return entry, nil
}

// GetShelves lists every shelved book of the owner, most recently changed
// first.
func (m *Manager) GetShelves(ctx context.Context, actor entities.Actor, ownerID string) ([]entities.ShelfEntry, error) {
	if err := authorize(actor, ownerID); err != nil {
		return nil, err
	}
	entries, err := m.shelves.ListByUser(ctx, ownerID)
	if err != nil {
		return nil, apperr.Internal(err, "failed to load shelves")
	}
	if entries == nil {
		entries = []entities.ShelfEntry{}
	}
	return entries, nil
}

// RemoveFromShelf takes a book off the owner's shelves. Removing a book that
// is not shelved is not an error.
func (m *Manager) RemoveFromShelf(ctx context.Context, actor entities.Actor, ownerID, bookID string) error {
	if err := authorize(actor, ownerID); err != nil {
		return err
	}
	if err := requireBookID(bookID); err != nil {
		return err
	}
	if _, err := m.shelves.Delete(ctx, ownerID, bookID); err != nil {
		return apperr.Internal(err, "failed to remove from shelf")
	}
	return nil
}

// RecordProgress appends a progress entry for a book. Progress is a page
// number and must not be negative.
func (m *Manager) RecordProgress(ctx context.Context, actor entities.Actor, ownerID, bookID string, progress int) (*entities.ReadingHistoryEntry, error) {
	if err := authorize(actor, ownerID); err != nil {
		return nil, err
	}
	if err := requireBookID(bookID); err != nil {
		return nil, err
	}
	if progress < 0 {
		return nil, apperr.Validation("progress must not be negative")
	}

	entry := &entities.ReadingHistoryEntry{
		UserID:     ownerID,
		BookID:     bookID,
		Progress:   progress,
		RecordedAt: m.now().UTC(),
	}
	if err := m.history.Append(ctx, entry); err != nil {
		return nil, storeError(err, "failed to record progress")
	}
	return entry, nil
}

// LatestProgress returns the newest progress entry per book.
func (m *Manager) LatestProgress(ctx context.Context, actor entities.Actor, ownerID string) ([]entities.ReadingHistoryEntry, error) {
	if err := authorize(actor, ownerID); err != nil {
		return nil, err
	}
	entries, err := m.history.LatestPerBook(ctx, ownerID)
	if err != nil {
		return nil, apperr.Internal(err, "failed to load reading history")
	}
	if entries == nil {
		entries = []entities.ReadingHistoryEntry{}
	}
	return entries, nil
}

// History returns the progress log of one book, newest first.
func (m *Manager) History(ctx context.Context, actor entities.Actor, ownerID, bookID string, limit int) ([]entities.ReadingHistoryEntry, error) {
	if err := authorize(actor, ownerID); err != nil {
		return nil, err
	}
	if err := requireBookID(bookID); err != nil {
		return nil, err
	}
	switch {
	case limit < 0:
		return nil, apperr.Validation("limit must not be negative")
	case limit == 0:
		limit = DefaultHistoryLimit
	case limit > MaxHistoryLimit:
		limit = MaxHistoryLimit
	}

	entries, err := m.history.Series(ctx, ownerID, bookID, limit)
	if err != nil {
		return nil, apperr.Internal(err, "failed to load reading history")
	}
	if entries == nil {
		entries = []entities.ReadingHistoryEntry{}
	}
	return entries, nil
}

// AddFavourite marks a book. Marking twice is not an error.
func (m *Manager) AddFavourite(ctx context.Context, actor entities.Actor, ownerID, bookID string) error {
	if err := authorize(actor, ownerID); err != nil {
		return err
	}
	if err := requireBookID(bookID); err != nil {
		return err
	}
	if err := m.favourites.Add(ctx, ownerID, bookID); err != nil {
		return storeError(err, "failed to add favourite")
	}
	return nil
}

// RemoveFavourite unmarks a book. Unmarking an unmarked book is not an error.
func (m *Manager) RemoveFavourite(ctx context.Context, actor entities.Actor, ownerID, bookID string) error {
	if err := authorize(actor, ownerID); err != nil {
		return err
	}
	if err := requireBookID(bookID); err != nil {
		return err
	}
	if _, err := m.favourites.Remove(ctx, ownerID, bookID); err != nil {
		return apperr.Internal(err, "failed to remove favourite")
	}
	return nil
}

// Favourites lists the owner's favourite books, most recently marked first.
func (m *Manager) Favourites(ctx context.Context, actor entities.Actor, ownerID string) ([]entities.Book, error) {
	if err := authorize(actor, ownerID); err != nil {
		return nil, err
	}
	books, err := m.favourites.List(ctx, ownerID)
	if err != nil {
		return nil, apperr.Internal(err, "failed to load favourites")
	}
	if books == nil {
		books = []entities.Book{}
	}
	return books, nil
}

// Summary counts the owner's books per shelf and favourites.
func (m *Manager) Summary(ctx context.Context, actor entities.Actor, ownerID string) (*Summary, error) {
	if err := authorize(actor, ownerID); err != nil {
		return nil, err
	}
	counts, err := m.shelves.CountByShelf(ctx, ownerID)
	if err != nil {
		return nil, apperr.Internal(err, "failed to count shelves")
	}
	favourites, err := m.favourites.Count(ctx, ownerID)
	if err != nil {
		return nil, apperr.Internal(err, "failed to count favourites")
	}
	return &Summary{Shelves: counts, Favourites: favourites}, nil
}

func authorize(actor entities.Actor, ownerID string) error {
	if actor.UserID == "" {
		return apperr.Unauthenticated("authentication required")
	}
	if ownerID == "" || !actor.CanAccess(ownerID) {
		return apperr.Forbidden("not allowed to access this library")
	}
	return nil
}

func requireBookID(bookID string) error {
	if strings.TrimSpace(bookID) == "" {
		return apperr.Validation("book_id is required")
	}
	return nil
}

// storeError maps a missing book onto NotFound and anything else onto an
// internal failure.
func storeError(err error, message string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound("book not found")
	}
	return apperr.Internal(err, message)
}

func shelfNames() string {
	names := make([]string, len(entities.AllShelves))
	for i, s := range entities.AllShelves {
		names[i] = `"` + string(s) + `"`
	}
	return strings.Join(names, ", ")
}
