package catalog

import (
	"bytes"
	"context"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/mrlokans/bookshelf/internal/apperr"
	"github.com/mrlokans/bookshelf/internal/entities"
	"github.com/mrlokans/bookshelf/internal/storage"
)

var pdfMagic = []byte("%PDF-")

// Upload is a PDF file received from a client.
type Upload struct {
	Filename string
	Size     int64
	Content  io.ReaderAt
}

// UploadBook stores the PDF in the blob store and creates a book pointing
// at it. Page count is taken from the document unless input sets one.
func (s *Service) UploadBook(ctx context.Context, actor entities.Actor, input BookInput, file Upload) (*entities.Book, error) {
	if actor.UserID == "" {
		return nil, apperr.Unauthenticated("authentication required")
	}
	if s.blobs == nil {
		return nil, apperr.Internal(nil, "file uploads are not configured")
	}
	if file.Content == nil || file.Size <= 0 {
		return nil, apperr.Validation("file is required")
	}
	if file.Size > s.maxUploadSize {
		return nil, apperr.Validation("file exceeds the %d byte limit", s.maxUploadSize)
	}
	if ext := strings.ToLower(path.Ext(file.Filename)); ext != ".pdf" {
		return nil, apperr.Validation("only PDF files are accepted")
	}

	header := make([]byte, len(pdfMagic))
	if _, err := file.Content.ReadAt(header, 0); err != nil || !bytes.Equal(header, pdfMagic) {
		return nil, apperr.Validation("file is not a PDF document")
	}

	// Validate the metadata before touching the blob store
	input.PDFReference = ""
	book, err := buildBook(input)
	if err != nil {
		return nil, err
	}

	pages, err := storage.PageCount(file.Content, file.Size)
	if err != nil {
		return nil, apperr.Validation("file is not a readable PDF document")
	}
	if book.Pages == 0 {
		book.Pages = pages
	}

	book.ID = uuid.NewString()
	book.UploaderID = actor.UserID
	key := storage.NewBookKey(book.ID, file.Filename)

	body := io.NewSectionReader(file.Content, 0, file.Size)
	if err := s.blobs.Put(ctx, key, body, file.Size, "application/pdf"); err != nil {
		return nil, apperr.Internal(err, "failed to store file")
	}
	book.PDFReference = key

	if err := s.books.Create(ctx, book); err != nil {
		if delErr := s.blobs.Delete(ctx, key); delErr != nil {
			s.log.Warn("failed to remove orphaned upload", "key", key, "error", delErr)
		}
		s.logCatalog(actor.UserID, "book_upload", book.ID, book.Title, err)
		return nil, apperr.Internal(err, "failed to create book")
	}

	s.logCatalog(actor.UserID, "book_upload", book.ID, book.Title, nil)
	s.log.Info("book uploaded", "book_id", book.ID, "pages", book.Pages, "size", file.Size)

	return book, nil
}
