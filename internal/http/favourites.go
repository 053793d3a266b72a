package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/bookshelf/internal/logger"
	"github.com/mrlokans/bookshelf/internal/shelves"
)

type FavouritesController struct {
	library *shelves.Manager
	log     *logger.Logger
}

func NewFavouritesController(library *shelves.Manager, log *logger.Logger) *FavouritesController {
	return &FavouritesController{library: library, log: logger.OrNop(log)}
}

// AddFavourite marks a book as favourite.
// POST /user/favorites/:book_id
func (fc *FavouritesController) AddFavourite(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	bookID := c.Param("book_id")
	if err := fc.library.AddFavourite(c.Request.Context(), actor, actor.UserID, bookID); err != nil {
		respondError(c, fc.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "favourite added", "book_id": bookID})
}

// RemoveFavourite removes a book from favourites.
// DELETE /user/favorites/:book_id
func (fc *FavouritesController) RemoveFavourite(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	if err := fc.library.RemoveFavourite(c.Request.Context(), actor, actor.UserID, c.Param("book_id")); err != nil {
		respondError(c, fc.log, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListFavourites returns the caller's favourite books.
// GET /user/favorites
func (fc *FavouritesController) ListFavourites(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	books, err := fc.library.Favourites(c.Request.Context(), actor, actor.UserID)
	if err != nil {
		respondError(c, fc.log, err)
		return
	}
	c.JSON(http.StatusOK, newBookResponses(books))
}
