package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/bookshelf/internal/entities"
	"github.com/mrlokans/bookshelf/internal/logger"
	"github.com/mrlokans/bookshelf/internal/shelves"
)

// ShelvesController serves the caller's shelves and reading history.
type ShelvesController struct {
	library *shelves.Manager
	log     *logger.Logger
}

func NewShelvesController(library *shelves.Manager, log *logger.Logger) *ShelvesController {
	return &ShelvesController{library: library, log: logger.OrNop(log)}
}

type SetShelfRequest struct {
	BookID string `json:"book_id"`
	Shelf  string `json:"shelf"`
	Status string `json:"status"` // accepted as an alias of shelf
}

type BookStatusRequest struct {
	Status string `json:"status"`
}

type RecordProgressRequest struct {
	BookID   string `json:"book_id"`
	Progress *int   `json:"progress"`
}

// ShelfResponse is one shelf assignment.
type ShelfResponse struct {
	BookID    string         `json:"book_id"`
	Shelf     entities.Shelf `json:"shelf"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// BookStatusResponse answers PUT /book/:id/status.
type BookStatusResponse struct {
	BookID    string         `json:"book_id"`
	Status    entities.Shelf `json:"status"`
	Shelf     entities.Shelf `json:"shelf"`
	UpdatedAt time.Time      `json:"updated_at"`
}

func newShelfResponse(entry *entities.ShelfEntry) ShelfResponse {
	return ShelfResponse{BookID: entry.BookID, Shelf: entry.Shelf, UpdatedAt: entry.UpdatedAt}
}

// SetShelf puts a book on a shelf, replacing its previous shelf.
// POST /user/shelves
func (sc *ShelvesController) SetShelf(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var req SetShelfRequest
	if !bindJSON(c, &req) {
		return
	}
	shelf := req.Shelf
	if shelf == "" {
		shelf = req.Status
	}

	entry, err := sc.library.SetShelf(c.Request.Context(), actor, actor.UserID, req.BookID, shelf)
	if err != nil {
		respondError(c, sc.log, err)
		return
	}
	c.JSON(http.StatusOK, newShelfResponse(entry))
}

// SetBookStatus is SetShelf addressed by book.
// PUT /book/:id/status
func (sc *ShelvesController) SetBookStatus(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var req BookStatusRequest
	if !bindJSON(c, &req) {
		return
	}

	entry, err := sc.library.SetShelf(c.Request.Context(), actor, actor.UserID, c.Param("id"), req.Status)
	if err != nil {
		respondError(c, sc.log, err)
		return
	}
	c.JSON(http.StatusOK, BookStatusResponse{
		BookID:    entry.BookID,
		Status:    entry.Shelf,
		Shelf:     entry.Shelf,
		UpdatedAt: entry.UpdatedAt,
	})
}

// ListShelves returns every shelved book of the caller.
// GET /user/shelves
func (sc *ShelvesController) ListShelves(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	entries, err := sc.library.GetShelves(c.Request.Context(), actor, actor.UserID)
	if err != nil {
		respondError(c, sc.log, err)
		return
	}

	out := make([]ShelfResponse, 0, len(entries))
	for i := range entries {
		out = append(out, newShelfResponse(&entries[i]))
	}
	c.JSON(http.StatusOK, out)
}

// RemoveFromShelf takes a book off the caller's shelves.
// DELETE /user/shelves/:book_id
func (sc *ShelvesController) RemoveFromShelf(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	if err := sc.library.RemoveFromShelf(c.Request.Context(), actor, actor.UserID, c.Param("book_id")); err != nil {
		respondError(c, sc.log, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// RecordProgress appends a reading progress entry.
// POST /user/history
func (sc *ShelvesController) RecordProgress(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var req RecordProgressRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.Progress == nil {
		respondBadRequest(c, "progress is required")
		return
	}

	entry, err := sc.library.RecordProgress(c.Request.Context(), actor, actor.UserID, req.BookID, *req.Progress)
	if err != nil {
		respondError(c, sc.log, err)
		return
	}
	c.JSON(http.StatusCreated, entry)
}

// History returns the progress log of one book, or the latest entry per
// book when book_id is omitted.
// GET /user/history?book_id=&limit=
func (sc *ShelvesController) History(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	limit, ok := parseIntQuery(c, "limit")
	if !ok {
		return
	}

	var (
		entries []entities.ReadingHistoryEntry
		err     error
	)
	if bookID := c.Query("book_id"); bookID != "" {
		entries, err = sc.library.History(c.Request.Context(), actor, actor.UserID, bookID, limit)
	} else {
		entries, err = sc.library.LatestProgress(c.Request.Context(), actor, actor.UserID)
	}
	if err != nil {
		respondError(c, sc.log, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}
