package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/bookshelf/internal/auth"
	"github.com/mrlokans/bookshelf/internal/entities"
	"github.com/mrlokans/bookshelf/internal/logger"
	"github.com/mrlokans/bookshelf/internal/shelves"
)

// ProfileController serves the caller's profile.
type ProfileController struct {
	authService *auth.Service
	library     *shelves.Manager
	log         *logger.Logger
}

// NewProfileController creates a new ProfileController.
func NewProfileController(authService *auth.Service, library *shelves.Manager, log *logger.Logger) *ProfileController {
	return &ProfileController{
		authService: authService,
		library:     library,
		log:         logger.OrNop(log),
	}
}

// ProfileResponse is the caller's account with a summary of their library.
type ProfileResponse struct {
	ID             string                         `json:"id"`
	Email          string                         `json:"email"`
	Username       string                         `json:"username,omitempty"`
	Role           entities.UserRole              `json:"role"`
	CreatedAt      time.Time                      `json:"created_at"`
	LastLoginAt    *time.Time                     `json:"last_login_at,omitempty"`
	ReadingHistory []entities.ReadingHistoryEntry `json:"reading_history"`
	Shelves        map[entities.Shelf]int64       `json:"shelves"`
	Favourites     int64                          `json:"favourites"`
}

// Profile returns the caller's account, the latest progress per book and
// shelf counts.
// GET /profile
func (pc *ProfileController) Profile(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	actor := identity.Actor()

	user, err := pc.authService.GetUser(ctx, identity.UserID)
	if err != nil {
		respondError(c, pc.log, err)
		return
	}

	history, err := pc.library.LatestProgress(ctx, actor, identity.UserID)
	if err != nil {
		respondError(c, pc.log, err)
		return
	}

	summary, err := pc.library.Summary(ctx, actor, identity.UserID)
	if err != nil {
		respondError(c, pc.log, err)
		return
	}

	c.JSON(http.StatusOK, ProfileResponse{
		ID:             user.ID,
		Email:          user.Email,
		Username:       user.Username,
		Role:           user.Role,
		CreatedAt:      user.CreatedAt,
		LastLoginAt:    user.LastLoginAt,
		ReadingHistory: history,
		Shelves:        summary.Shelves,
		Favourites:     summary.Favourites,
	})
}
