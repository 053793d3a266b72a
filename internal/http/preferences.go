package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/bookshelf/internal/entities"
	"github.com/mrlokans/bookshelf/internal/logger"
	"github.com/mrlokans/bookshelf/internal/preferences"
)

// PreferencesController serves per-user settings, with shortcuts for the theme.
type PreferencesController struct {
	prefs *preferences.Service
	log   *logger.Logger
}

func NewPreferencesController(prefs *preferences.Service, log *logger.Logger) *PreferencesController {
	return &PreferencesController{prefs: prefs, log: logger.OrNop(log)}
}

type ThemeRequest struct {
	Theme string `json:"theme"`
}

type ThemeResponse struct {
	Theme string `json:"theme"`
}

type SetPreferenceRequest struct {
	Value *string `json:"value"`
}

// GetTheme returns the caller's theme, "light" when unset.
// GET /user/theme
func (pc *PreferencesController) GetTheme(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	setting, err := pc.prefs.Get(c.Request.Context(), actor, actor.UserID, entities.PreferenceKeyTheme)
	if err != nil {
		respondError(c, pc.log, err)
		return
	}
	c.JSON(http.StatusOK, ThemeResponse{Theme: setting.Value})
}

// SetTheme stores the caller's theme.
// PUT /user/theme
func (pc *PreferencesController) SetTheme(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var req ThemeRequest
	if !bindJSON(c, &req) {
		return
	}

	setting, err := pc.prefs.Set(c.Request.Context(), actor, actor.UserID, entities.PreferenceKeyTheme, req.Theme)
	if err != nil {
		respondError(c, pc.log, err)
		return
	}
	c.JSON(http.StatusOK, ThemeResponse{Theme: setting.Value})
}

// ToggleTheme flips between light and dark.
// POST /user/theme/toggle
func (pc *PreferencesController) ToggleTheme(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	setting, err := pc.prefs.Toggle(c.Request.Context(), actor, actor.UserID, entities.PreferenceKeyTheme)
	if err != nil {
		respondError(c, pc.log, err)
		return
	}
	c.JSON(http.StatusOK, ThemeResponse{Theme: setting.Value})
}

// ListPreferences returns every known key with its effective value plus
// any stored custom keys.
// GET /user/preferences
func (pc *PreferencesController) ListPreferences(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	settings, err := pc.prefs.List(c.Request.Context(), actor, actor.UserID)
	if err != nil {
		respondError(c, pc.log, err)
		return
	}
	c.JSON(http.StatusOK, settings)
}

// GetPreference returns one key.
// GET /user/preferences/:key
func (pc *PreferencesController) GetPreference(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	setting, err := pc.prefs.Get(c.Request.Context(), actor, actor.UserID, c.Param("key"))
	if err != nil {
		respondError(c, pc.log, err)
		return
	}
	c.JSON(http.StatusOK, setting)
}

// SetPreference writes one key.
// PUT /user/preferences/:key
func (pc *PreferencesController) SetPreference(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var req SetPreferenceRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.Value == nil {
		respondBadRequest(c, "value is required")
		return
	}

	setting, err := pc.prefs.Set(c.Request.Context(), actor, actor.UserID, c.Param("key"), *req.Value)
	if err != nil {
		respondError(c, pc.log, err)
		return
	}
	c.JSON(http.StatusOK, setting)
}

// ResetPreference drops a stored value so the key reads as its default.
// DELETE /user/preferences/:key
func (pc *PreferencesController) ResetPreference(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	if err := pc.prefs.Reset(c.Request.Context(), actor, actor.UserID, c.Param("key")); err != nil {
		respondError(c, pc.log, err)
		return
	}
	c.Status(http.StatusNoContent)
}
