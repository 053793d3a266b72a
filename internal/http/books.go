package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/bookshelf/internal/catalog"
	"github.com/mrlokans/bookshelf/internal/entities"
	"github.com/mrlokans/bookshelf/internal/logger"
	"github.com/mrlokans/bookshelf/internal/search"
)

// multipartOverhead is the allowance for form fields sent next to an upload.
const multipartOverhead = 1 << 20

// BooksController serves the catalog and its search endpoints.
type BooksController struct {
	catalog *catalog.Service
	search  *search.Engine
	log     *logger.Logger
}

func NewBooksController(catalog *catalog.Service, search *search.Engine, log *logger.Logger) *BooksController {
	return &BooksController{catalog: catalog, search: search, log: logger.OrNop(log)}
}

// BookResponse is the wire form of a book.
type BookResponse struct {
	ID                  string    `json:"id"`
	Title               string    `json:"title"`
	Author              string    `json:"author"`
	Authors             []string  `json:"authors"`
	Publisher           string    `json:"publisher,omitempty"`
	Description         string    `json:"description,omitempty"`
	Categories          []string  `json:"categories"`
	PDFReference        string    `json:"pdf_reference,omitempty"`
	CoverImageReference string    `json:"cover_image_reference,omitempty"`
	Pages               int       `json:"pages,omitempty"`
	UploaderID          string    `json:"uploader_id"`
	CreatedAt           time.Time `json:"created_at"`
}

func newBookResponse(book *entities.Book) BookResponse {
	authors := []string(book.Authors)
	if authors == nil {
		authors = []string{}
	}
	return BookResponse{
		ID:                  book.ID,
		Title:               book.Title,
		Author:              book.AuthorLine(),
		Authors:             authors,
		Publisher:           book.Publisher,
		Description:         book.Description,
		Categories:          book.CategoryNames(),
		PDFReference:        book.PDFReference,
		CoverImageReference: book.CoverImageReference,
		Pages:               book.Pages,
		UploaderID:          book.UploaderID,
		CreatedAt:           book.CreatedAt,
	}
}

func newBookResponses(books []entities.Book) []BookResponse {
	out := make([]BookResponse, 0, len(books))
	for i := range books {
		out = append(out, newBookResponse(&books[i]))
	}
	return out
}

// CreateBookRequest accepts either a single author or an author list, and
// either a single category or a category list.
type CreateBookRequest struct {
	Title               string   `json:"title" form:"title"`
	Author              string   `json:"author" form:"author"`
	Authors             []string `json:"authors" form:"authors"`
	Publisher           string   `json:"publisher" form:"publisher"`
	Description         string   `json:"description" form:"description"`
	Category            string   `json:"category" form:"category"`
	Categories          []string `json:"categories" form:"categories"`
	PDFReference        string   `json:"pdf_reference" form:"pdf_reference"`
	CoverImageReference string   `json:"cover_image_reference" form:"cover_image_reference"`
	Pages               int      `json:"pages" form:"pages"`
}

func (r CreateBookRequest) input() catalog.BookInput {
	authors := r.Authors
	if strings.TrimSpace(r.Author) != "" {
		authors = append([]string{r.Author}, authors...)
	}
	categories := r.Categories
	if strings.TrimSpace(r.Category) != "" {
		categories = append([]string{r.Category}, categories...)
	}
	return catalog.BookInput{
		Title:               r.Title,
		Authors:             authors,
		Publisher:           r.Publisher,
		Description:         r.Description,
		Categories:          categories,
		PDFReference:        r.PDFReference,
		CoverImageReference: r.CoverImageReference,
		Pages:               r.Pages,
	}
}

// ListBooks pages through the catalog, newest first.
// GET /books?limit=&offset=
func (bc *BooksController) ListBooks(c *gin.Context) {
	limit, offset, ok := parsePagination(c)
	if !ok {
		return
	}

	page, err := bc.catalog.ListBooks(c.Request.Context(), limit, offset)
	if err != nil {
		respondError(c, bc.log, err)
		return
	}

	c.JSON(http.StatusOK, PaginatedResponse{
		Data:    newBookResponses(page.Books),
		Total:   page.Total,
		Limit:   page.Limit,
		Offset:  page.Offset,
		HasMore: int64(page.Offset+len(page.Books)) < page.Total,
	})
}

// GetBook returns a single book.
// GET /books/:id
func (bc *BooksController) GetBook(c *gin.Context) {
	book, err := bc.catalog.GetBook(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, bc.log, err)
		return
	}
	c.JSON(http.StatusOK, newBookResponse(book))
}

// CreateBook adds a book that references an existing PDF location.
// POST /books
func (bc *BooksController) CreateBook(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var req CreateBookRequest
	if !bindJSON(c, &req) {
		return
	}

	book, err := bc.catalog.CreateBook(c.Request.Context(), actor, req.input())
	if err != nil {
		respondError(c, bc.log, err)
		return
	}
	c.JSON(http.StatusCreated, newBookResponse(book))
}

// UploadBook stores an uploaded PDF and creates a book for it. The book
// fields are sent as form values next to the "file" part.
// POST /books/upload
func (bc *BooksController) UploadBook(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, bc.catalog.MaxUploadSize()+multipartOverhead)

	var req CreateBookRequest
	if err := c.ShouldBind(&req); err != nil {
		respondBadRequest(c, "invalid form: "+err.Error())
		return
	}

	header, err := c.FormFile("file")
	if err != nil {
		respondBadRequest(c, "file is required")
		return
	}
	file, err := header.Open()
	if err != nil {
		respondBadRequest(c, "failed to read uploaded file")
		return
	}
	defer file.Close()

	book, err := bc.catalog.UploadBook(c.Request.Context(), actor, req.input(), catalog.Upload{
		Filename: header.Filename,
		Size:     header.Size,
		Content:  file,
	})
	if err != nil {
		respondError(c, bc.log, err)
		return
	}
	c.JSON(http.StatusCreated, newBookResponse(book))
}

// DeleteBook removes a book together with every shelf, history and
// favourite row referencing it.
// DELETE /books/:id
func (bc *BooksController) DeleteBook(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	if err := bc.catalog.DeleteBook(c.Request.Context(), actor, c.Param("id")); err != nil {
		respondError(c, bc.log, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Search runs a free-text query, optionally narrowed by category.
// GET /search?query=&category=
func (bc *BooksController) Search(c *gin.Context) {
	bc.runSearch(c, search.Query{
		Text:     firstQuery(c, "query", "q"),
		Category: c.Query("category"),
	})
}

// SearchBooks matches individual fields. Every supplied filter must hold.
// GET /books/search?title=&author=&publisher=
func (bc *BooksController) SearchBooks(c *gin.Context) {
	bc.runSearch(c, search.Query{
		Text:      firstQuery(c, "query", "q"),
		Category:  c.Query("category"),
		Title:     c.Query("title"),
		Author:    c.Query("author"),
		Publisher: c.Query("publisher"),
	})
}

// ListByCategory returns every book in a category.
// GET /books/category/:category
func (bc *BooksController) ListByCategory(c *gin.Context) {
	limit, offset, ok := parsePagination(c)
	if !ok {
		return
	}

	books, err := bc.search.ListByCategory(c.Request.Context(), c.Param("category"), limit, offset)
	if err != nil {
		respondError(c, bc.log, err)
		return
	}
	c.JSON(http.StatusOK, newBookResponses(books))
}

func (bc *BooksController) runSearch(c *gin.Context, q search.Query) {
	limit, offset, ok := parsePagination(c)
	if !ok {
		return
	}
	q.Limit, q.Offset = limit, offset

	books, err := bc.search.Search(c.Request.Context(), q)
	if err != nil {
		respondError(c, bc.log, err)
		return
	}
	c.JSON(http.StatusOK, newBookResponses(books))
}

// firstQuery returns the first non-empty query parameter among names.
func firstQuery(c *gin.Context, names ...string) string {
	for _, name := range names {
		if v := c.Query(name); v != "" {
			return v
		}
	}
	return ""
}
