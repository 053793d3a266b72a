package catalog

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/mrlokans/bookshelf/internal/apperr"
	"github.com/mrlokans/bookshelf/internal/config"
	"github.com/mrlokans/bookshelf/internal/database"
	"github.com/mrlokans/bookshelf/internal/database/books"
	"github.com/mrlokans/bookshelf/internal/entities"
	"github.com/mrlokans/bookshelf/internal/storage/storagetest"
)

var (
	owner    = entities.Actor{UserID: "owner-1", Role: entities.UserRoleUser}
	stranger = entities.Actor{UserID: "stranger-1", Role: entities.UserRoleUser}
	admin    = entities.Actor{UserID: "admin-1", Role: entities.UserRoleAdmin}
)

type fakePurger struct {
	mu    sync.Mutex
	calls map[string][]string
}

func (p *fakePurger) EnqueueBlobPurge(_ context.Context, bookID string, keys []string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.calls == nil {
		p.calls = make(map[string][]string)
	}
	p.calls[bookID] = keys
	return nil
}

type fakeAuditor struct {
	mu      sync.Mutex
	actions []string
}

func (a *fakeAuditor) LogCatalog(_, action, _, _ string, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err != nil {
		action += ":failed"
	}
	a.actions = append(a.actions, action)
}

func (a *fakeAuditor) LogDelete(_, entityType, _, _ string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.actions = append(a.actions, "delete:"+entityType)
}

type fixture struct {
	svc     *Service
	db      *gorm.DB
	repo    *books.Repository
	blobs   *storagetest.MemoryStore
	purger  *fakePurger
	auditor *fakeAuditor
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db, err := database.NewDatabase(config.Database{Path: filepath.Join(t.TempDir(), "catalog.db")}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := books.NewRepository(db.DB)
	blobs := storagetest.NewMemoryStore()
	purger := &fakePurger{}
	auditor := &fakeAuditor{}
	svc := NewService(repo, blobs, nil).WithPurger(purger).WithAuditor(auditor)

	return &fixture{svc: svc, db: db.DB, repo: repo, blobs: blobs, purger: purger, auditor: auditor}
}

func validInput() BookInput {
	return BookInput{
		Title:       "Harry Potter and the Chamber of Secrets",
		Authors:     []string{"J.K. Rowling"},
		Publisher:   "Bloomsbury",
		Description: "A second year at Hogwarts.",
		Categories:  []string{"Fantasy", "fantasy", " Young Adult "},
	}
}

func TestCreateBook(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	book, err := f.svc.CreateBook(ctx, owner, validInput())
	require.NoError(t, err)
	assert.NotEmpty(t, book.ID)
	assert.Equal(t, owner.UserID, book.UploaderID)
	assert.False(t, book.CreatedAt.IsZero())

	got, err := f.svc.GetBook(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, "Harry Potter and the Chamber of Secrets", got.Title)
	assert.Equal(t, []string{"Fantasy", "Young Adult"}, got.CategoryNames())
	assert.Contains(t, f.auditor.actions, "book_create")
}

func TestCreateBook_Validation(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(*BookInput)
	}{
		{"empty title", func(in *BookInput) { in.Title = "" }},
		{"blank title", func(in *BookInput) { in.Title = "   " }},
		{"no author", func(in *BookInput) { in.Authors = nil }},
		{"blank author", func(in *BookInput) { in.Authors = []string{" "} }},
		{"negative pages", func(in *BookInput) { in.Pages = -1 }},
		{"long title", func(in *BookInput) { in.Title = strings.Repeat("x", maxTitleLength+1) }},
		{"long category", func(in *BookInput) { in.Categories = []string{strings.Repeat("c", maxCategoryLength+1)} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := validInput()
			tt.mutate(&input)
			_, err := f.svc.CreateBook(ctx, owner, input)
			assert.ErrorIs(t, err, apperr.ErrValidation)
		})
	}

	count, err := f.repo.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count, "rejected input must not persist anything")
}

func TestCreateBook_RequiresActor(t *testing.T) {
	f := setup(t)
	_, err := f.svc.CreateBook(context.Background(), entities.Actor{}, validInput())
	assert.ErrorIs(t, err, apperr.ErrUnauthenticated)
}

func TestGetBook_NotFound(t *testing.T) {
	f := setup(t)
	_, err := f.svc.GetBook(context.Background(), "missing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestListBooks(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		input := validInput()
		input.Title = []string{"A", "B", "C"}[i]
		_, err := f.svc.CreateBook(ctx, owner, input)
		require.NoError(t, err)
	}

	page, err := f.svc.ListBooks(ctx, 2, 0)
	require.NoError(t, err)
	assert.Len(t, page.Books, 2)
	assert.Equal(t, int64(3), page.Total)

	page, err = f.svc.ListBooks(ctx, 0, 2)
	require.NoError(t, err)
	assert.Len(t, page.Books, 1)
	assert.Equal(t, DefaultPageSize, page.Limit)

	_, err = f.svc.ListBooks(ctx, -1, 0)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestNormalizePage(t *testing.T) {
	limit, offset, err := NormalizePage(1000, 5)
	require.NoError(t, err)
	assert.Equal(t, MaxPageSize, limit)
	assert.Equal(t, 5, offset)

	_, _, err = NormalizePage(10, -1)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestDeleteBook_Authorization(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	book, err := f.svc.CreateBook(ctx, owner, validInput())
	require.NoError(t, err)

	err = f.svc.DeleteBook(ctx, stranger, book.ID)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = f.svc.GetBook(ctx, book.ID)
	require.NoError(t, err, "forbidden delete must leave the book in place")

	require.NoError(t, f.svc.DeleteBook(ctx, admin, book.ID))

	err = f.svc.DeleteBook(ctx, owner, book.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func uploadPDF(t *testing.T, svc *Service, actor entities.Actor, input BookInput) *entities.Book {
	t.Helper()
	doc := storagetest.MinimalPDF(2)
	book, err := svc.UploadBook(context.Background(), actor, input, Upload{
		Filename: "book.pdf",
		Size:     int64(len(doc)),
		Content:  bytes.NewReader(doc),
	})
	require.NoError(t, err)
	return book
}

func TestDeleteBook_CascadesAndPurges(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	input := validInput()
	input.CoverImageReference = "https://covers.example/x.jpg"
	book := uploadPDF(t, f.svc, owner, input)

	require.NoError(t, f.db.Create(&entities.ShelfEntry{UserID: "reader", BookID: book.ID, Shelf: entities.ShelfReading}).Error)
	require.NoError(t, f.db.Create(&entities.ReadingHistoryEntry{UserID: "reader", BookID: book.ID, Progress: 12}).Error)
	require.NoError(t, f.db.Create(&entities.Favourite{UserID: "reader", BookID: book.ID}).Error)

	require.NoError(t, f.svc.DeleteBook(ctx, owner, book.ID))

	for _, model := range []any{&entities.ShelfEntry{}, &entities.ReadingHistoryEntry{}, &entities.Favourite{}} {
		var count int64
		require.NoError(t, f.db.Model(model).Where("book_id = ?", book.ID).Count(&count).Error)
		assert.Zero(t, count, "%T rows must be removed", model)
	}

	// External references are never purged
	assert.Equal(t, []string{book.PDFReference}, f.purger.calls[book.ID])
	assert.Contains(t, f.auditor.actions, "delete:book")
}

func TestDeleteBook_InlinePurgeWithoutQueue(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	svc := NewService(f.repo, f.blobs, nil)

	book := uploadPDF(t, svc, owner, validInput())

	require.NoError(t, svc.DeleteBook(ctx, owner, book.ID))
	assert.Equal(t, []string{book.PDFReference}, f.blobs.Deleted())
	assert.Empty(t, f.blobs.Keys())
}

func TestCreateBook_RejectsStoredKeys(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	victim := uploadPDF(t, f.svc, owner, validInput())

	for _, set := range []func(*BookInput){
		func(in *BookInput) { in.PDFReference = victim.PDFReference },
		func(in *BookInput) { in.CoverImageReference = victim.PDFReference },
		func(in *BookInput) { in.PDFReference = "books/anything.pdf" },
	} {
		input := validInput()
		set(&input)
		_, err := f.svc.CreateBook(ctx, stranger, input)
		assert.ErrorIs(t, err, apperr.ErrValidation)
	}

	_, total, err := f.repo.List(ctx, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total, "rejected books must not be stored")
}

func TestDeleteBook_LeavesForeignBlobs(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	svc := NewService(f.repo, f.blobs, nil)
	victim := uploadPDF(t, svc, owner, validInput())

	// A row pointing at another book's file, as older data may hold
	decoy := &entities.Book{
		Title:        "Decoy",
		Authors:      []string{"Someone"},
		UploaderID:   stranger.UserID,
		PDFReference: victim.PDFReference,
	}
	require.NoError(t, f.repo.Create(ctx, decoy))

	require.NoError(t, svc.DeleteBook(ctx, stranger, decoy.ID))

	exists, err := f.blobs.Exists(ctx, victim.PDFReference)
	require.NoError(t, err)
	assert.True(t, exists, "deleting a book must not remove another book's file")
	assert.Empty(t, f.blobs.Deleted())

	queued := NewService(f.repo, f.blobs, nil).WithPurger(f.purger)
	decoy2 := &entities.Book{Title: "Decoy 2", Authors: []string{"Someone"}, UploaderID: stranger.UserID, PDFReference: victim.PDFReference}
	require.NoError(t, f.repo.Create(ctx, decoy2))
	require.NoError(t, queued.DeleteBook(ctx, stranger, decoy2.ID))
	_, enqueued := f.purger.calls[decoy2.ID]
	assert.False(t, enqueued, "nothing to purge for a book without its own files")
}

func TestUploadBook(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	doc := storagetest.MinimalPDF(4)

	book, err := f.svc.UploadBook(ctx, owner, validInput(), Upload{
		Filename: "Chamber.PDF",
		Size:     int64(len(doc)),
		Content:  bytes.NewReader(doc),
	})
	require.NoError(t, err)
	assert.Equal(t, 4, book.Pages)
	assert.True(t, strings.HasPrefix(book.PDFReference, "books/"+book.ID+"/"))
	assert.Equal(t, []string{book.PDFReference}, f.blobs.Keys())

	_, url, err := f.svc.ReaderURL(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://blobs.test/"+book.PDFReference+"?signed=1", url)
}

func TestUploadBook_Rejections(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	doc := storagetest.MinimalPDF(1)
	notPDF := []byte("plain text, not a document")

	tests := []struct {
		name   string
		input  BookInput
		upload Upload
	}{
		{"missing file", validInput(), Upload{Filename: "a.pdf"}},
		{"wrong extension", validInput(), Upload{Filename: "a.txt", Size: int64(len(doc)), Content: bytes.NewReader(doc)}},
		{"not a pdf", validInput(), Upload{Filename: "a.pdf", Size: int64(len(notPDF)), Content: bytes.NewReader(notPDF)}},
		{"bad metadata", BookInput{Authors: []string{"X"}}, Upload{Filename: "a.pdf", Size: int64(len(doc)), Content: bytes.NewReader(doc)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.UploadBook(ctx, owner, tt.input, tt.upload)
			assert.ErrorIs(t, err, apperr.ErrValidation)
		})
	}
	assert.Empty(t, f.blobs.Keys())

	small := NewService(f.repo, f.blobs, nil).WithMaxUploadSize(10)
	_, err := small.UploadBook(ctx, owner, validInput(), Upload{Filename: "a.pdf", Size: int64(len(doc)), Content: bytes.NewReader(doc)})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestReaderURL(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	noPDF, err := f.svc.CreateBook(ctx, owner, validInput())
	require.NoError(t, err)
	_, _, err = f.svc.ReaderURL(ctx, noPDF.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	input := validInput()
	input.PDFReference = "https://cdn.example/book.pdf"
	external, err := f.svc.CreateBook(ctx, owner, input)
	require.NoError(t, err)
	_, url, err := f.svc.ReaderURL(ctx, external.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/book.pdf", url)
}

func TestImportSeed(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	seed, err := ParseSeed(strings.NewReader(`
books:
  - title: Dune
    author: Frank Herbert
    category: Science Fiction
    pages: 412
  - title: Good Omens
    authors: [Terry Pratchett, Neil Gaiman]
    categories: [Fantasy, Comedy]
  - title: ""
    author: Nobody
`))
	require.NoError(t, err)
	require.Len(t, seed.Books, 3)

	result, err := f.svc.ImportSeed(ctx, admin, f.repo, seed)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Created)
	assert.Equal(t, 1, result.Failed)
	assert.Len(t, result.Errors, 1)

	// Re-running skips what is already there
	result, err = f.svc.ImportSeed(ctx, admin, f.repo, seed)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Created)
	assert.Equal(t, 2, result.Skipped)

	count, err := f.repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestParseSeed_JSONAndUnknownFields(t *testing.T) {
	seed, err := ParseSeed(strings.NewReader(`{"books": [{"title": "Emma", "author": "Jane Austen"}]}`))
	require.NoError(t, err)
	require.Len(t, seed.Books, 1)
	assert.Equal(t, "Emma", seed.Books[0].Title)

	_, err = ParseSeed(strings.NewReader("books:\n  - titel: Typo\n"))
	assert.Error(t, err)

	empty, err := ParseSeed(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, empty.Books)
}
