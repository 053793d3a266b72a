// Package catalog owns the shared book catalog: creating books, paging
// through them, uploading PDFs and deleting books together with everything
// that references them.
//
// Only the uploader of a book or an admin may delete it. Deletion removes
// shelf, history and favourite rows in the same transaction as the book;
// blobs the book pointed at are purged afterwards by a background task.
package catalog

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/mrlokans/bookshelf/internal/apperr"
	"github.com/mrlokans/bookshelf/internal/entities"
	"github.com/mrlokans/bookshelf/internal/logger"
	"github.com/mrlokans/bookshelf/internal/storage"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100

	maxTitleLength       = 512
	maxAuthorLength      = 256
	maxPublisherLength   = 256
	maxCategoryLength    = 100
	maxCategories        = 20
	maxReferenceLength   = 2048
	maxDescriptionLength = 20000
)

// BookStore is the persistence the catalog needs. Implemented by
// database/books.Repository.
type BookStore interface {
	Create(ctx context.Context, book *entities.Book) error
	GetByID(ctx context.Context, id string) (*entities.Book, error)
	List(ctx context.Context, limit, offset int) ([]entities.Book, int64, error)
	Delete(ctx context.Context, id string) error
}

// BlobPurger removes blobs of deleted books out of band.
type BlobPurger interface {
	EnqueueBlobPurge(ctx context.Context, bookID string, keys []string) error
}

// Auditor records catalog changes.
type Auditor interface {
	LogCatalog(userID, action, bookID, title string, err error)
	LogDelete(userID, entityType, entityID, entityName string)
}

// BookInput carries the client-supplied fields of a new book.
type BookInput struct {
	Title               string
	Authors             []string
	Publisher           string
	Description         string
	Categories          []string
	PDFReference        string
	CoverImageReference string
	Pages               int
}

// Page is one slice of the catalog listing.
type Page struct {
	Books  []entities.Book
	Total  int64
	Limit  int
	Offset int
}

// Service implements the catalog operations.
type Service struct {
	books  BookStore
	blobs  storage.BlobStore
	purger BlobPurger
	audit  Auditor
	log    *logger.Logger

	maxUploadSize int64
}

// NewService creates a catalog service. blobs may be nil when uploads are
// not supported.
func NewService(books BookStore, blobs storage.BlobStore, log *logger.Logger) *Service {
	return &Service{
		books:         books,
		blobs:         blobs,
		log:           logger.OrNop(log),
		maxUploadSize: 100 << 20,
	}
}

// WithPurger hands blob cleanup to a background queue instead of deleting
// inline.
func (s *Service) WithPurger(p BlobPurger) *Service {
	s.purger = p
	return s
}

func (s *Service) WithAuditor(a Auditor) *Service {
	s.audit = a
	return s
}

// WithMaxUploadSize caps the size of uploaded PDFs in bytes.
func (s *Service) WithMaxUploadSize(n int64) *Service {
	if n > 0 {
		s.maxUploadSize = n
	}
	return s
}

// MaxUploadSize reports the upload cap in bytes.
func (s *Service) MaxUploadSize() int64 {
	return s.maxUploadSize
}

// CreateBook validates input and stores a new book owned by actor.
func (s *Service) CreateBook(ctx context.Context, actor entities.Actor, input BookInput) (*entities.Book, error) {
	if actor.UserID == "" {
		return nil, apperr.Unauthenticated("authentication required")
	}
	book, err := buildBook(input)
	if err != nil {
		return nil, err
	}
	book.UploaderID = actor.UserID

	if err := s.books.Create(ctx, book); err != nil {
		s.logCatalog(actor.UserID, "book_create", book.ID, book.Title, err)
		return nil, apperr.Internal(err, "failed to create book")
	}
	s.logCatalog(actor.UserID, "book_create", book.ID, book.Title, nil)
	s.log.Info("book created", "book_id", book.ID, "uploader_id", actor.UserID)

	return book, nil
}

// GetBook returns one book with its categories.
func (s *Service) GetBook(ctx context.Context, id string) (*entities.Book, error) {
	if strings.TrimSpace(id) == "" {
		return nil, apperr.Validation("book id is required")
	}
	book, err := s.books.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("book not found")
		}
		return nil, apperr.Internal(err, "failed to load book")
	}
	return book, nil
}

// ListBooks pages through the catalog, newest first. A zero limit selects
// DefaultPageSize.
func (s *Service) ListBooks(ctx context.Context, limit, offset int) (*Page, error) {
	limit, offset, err := NormalizePage(limit, offset)
	if err != nil {
		return nil, err
	}
	books, total, err := s.books.List(ctx, limit, offset)
	if err != nil {
		return nil, apperr.Internal(err, "failed to list books")
	}
	return &Page{Books: books, Total: total, Limit: limit, Offset: offset}, nil
}

// DeleteBook removes a book and every shelf, history and favourite row that
// references it. Only the uploader or an admin may delete.
func (s *Service) DeleteBook(ctx context.Context, actor entities.Actor, id string) error {
	book, err := s.GetBook(ctx, id)
	if err != nil {
		return err
	}
	if !actor.CanAccess(book.UploaderID) {
		return apperr.Forbidden("only the uploader or an admin may delete this book")
	}

	if err := s.books.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Lost a race with another delete
			return apperr.NotFound("book not found")
		}
		s.logCatalog(actor.UserID, "book_delete", id, book.Title, err)
		return apperr.Internal(err, "failed to delete book")
	}

	if s.audit != nil {
		s.audit.LogDelete(actor.UserID, "book", book.ID, book.Title)
	}
	s.log.Info("book deleted", "book_id", id, "user_id", actor.UserID)

	s.purgeBlobs(ctx, book)
	return nil
}

// purgeBlobs removes the stored files of a deleted book. Only keys inside
// the book's own namespace are touched. Failures are logged only; the book
// is already gone.
func (s *Service) purgeBlobs(ctx context.Context, book *entities.Book) {
	var keys []string
	for _, ref := range []string{book.PDFReference, book.CoverImageReference} {
		if ref == "" || storage.IsExternal(ref) {
			continue
		}
		if !storage.OwnsKey(book.ID, ref) {
			s.log.Warn("skipping blob outside book namespace", "book_id", book.ID, "key", ref)
			continue
		}
		keys = append(keys, ref)
	}
	if len(keys) == 0 {
		return
	}

	if s.purger != nil {
		if err := s.purger.EnqueueBlobPurge(ctx, book.ID, keys); err != nil {
			s.log.Warn("failed to enqueue blob purge", "book_id", book.ID, "error", err)
		}
		return
	}
	if s.blobs == nil {
		return
	}
	for _, key := range keys {
		if err := s.blobs.Delete(ctx, key); err != nil {
			s.log.Warn("failed to delete blob", "book_id", book.ID, "key", key, "error", err)
		}
	}
}

// ReaderURL resolves the address of the book's PDF.
func (s *Service) ReaderURL(ctx context.Context, id string) (*entities.Book, string, error) {
	book, err := s.GetBook(ctx, id)
	if err != nil {
		return nil, "", err
	}
	if book.PDFReference == "" {
		return nil, "", apperr.NotFound("book has no PDF attached")
	}
	url, err := storage.ResolveURL(ctx, s.blobs, book.PDFReference)
	if err != nil {
		return nil, "", apperr.Internal(err, "failed to resolve PDF location")
	}
	return book, url, nil
}

// CoverURL resolves the address of the book's cover, or "" when it has none.
func (s *Service) CoverURL(ctx context.Context, book *entities.Book) string {
	url, err := storage.ResolveURL(ctx, s.blobs, book.CoverImageReference)
	if err != nil {
		s.log.Warn("failed to resolve cover", "book_id", book.ID, "error", err)
		return ""
	}
	return url
}

func (s *Service) logCatalog(userID, action, bookID, title string, err error) {
	if s.audit != nil {
		s.audit.LogCatalog(userID, action, bookID, title, err)
	}
}

// NormalizePage applies the paging defaults and bounds.
func NormalizePage(limit, offset int) (int, int, error) {
	if limit < 0 {
		return 0, 0, apperr.Validation("limit must not be negative")
	}
	if offset < 0 {
		return 0, 0, apperr.Validation("offset must not be negative")
	}
	if limit == 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	return limit, offset, nil
}

// buildBook validates input and converts it into an entity. Nothing is
// persisted when validation fails.
func buildBook(input BookInput) (*entities.Book, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, apperr.Validation("title is required")
	}
	if utf8.RuneCountInString(title) > maxTitleLength {
		return nil, apperr.Validation("title must be at most %d characters", maxTitleLength)
	}

	authors := make([]string, 0, len(input.Authors))
	for _, a := range input.Authors {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		if utf8.RuneCountInString(a) > maxAuthorLength {
			return nil, apperr.Validation("author must be at most %d characters", maxAuthorLength)
		}
		authors = append(authors, a)
	}
	if len(authors) == 0 {
		return nil, apperr.Validation("author is required")
	}

	publisher := strings.TrimSpace(input.Publisher)
	if utf8.RuneCountInString(publisher) > maxPublisherLength {
		return nil, apperr.Validation("publisher must be at most %d characters", maxPublisherLength)
	}
	description := strings.TrimSpace(input.Description)
	if utf8.RuneCountInString(description) > maxDescriptionLength {
		return nil, apperr.Validation("description must be at most %d characters", maxDescriptionLength)
	}
	if input.Pages < 0 {
		return nil, apperr.Validation("pages must not be negative")
	}

	pdfRef := strings.TrimSpace(input.PDFReference)
	coverRef := strings.TrimSpace(input.CoverImageReference)
	for _, ref := range []string{pdfRef, coverRef} {
		if len(ref) > maxReferenceLength {
			return nil, apperr.Validation("references must be at most %d bytes", maxReferenceLength)
		}
		// Stored files are attached through UploadBook only
		if ref != "" && !storage.IsExternal(ref) {
			return nil, apperr.Validation("references must be URLs; upload files through /books/upload")
		}
	}

	categories, err := buildCategories(input.Categories)
	if err != nil {
		return nil, err
	}

	return &entities.Book{
		Title:               title,
		Authors:             authors,
		Publisher:           publisher,
		Description:         description,
		Categories:          categories,
		PDFReference:        pdfRef,
		CoverImageReference: coverRef,
		Pages:               input.Pages,
	}, nil
}

// buildCategories trims names and drops case-insensitive duplicates, keeping
// the first spelling.
func buildCategories(names []string) ([]entities.BookCategory, error) {
	seen := make(map[string]bool, len(names))
	categories := make([]entities.BookCategory, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if utf8.RuneCountInString(name) > maxCategoryLength {
			return nil, apperr.Validation("category must be at most %d characters", maxCategoryLength)
		}
		folded := entities.Fold(name)
		if seen[folded] {
			continue
		}
		seen[folded] = true
		categories = append(categories, entities.BookCategory{Name: name})
	}
	if len(categories) > maxCategories {
		return nil, apperr.Validation("a book may have at most %d categories", maxCategories)
	}
	return categories, nil
}
