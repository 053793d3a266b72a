package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/bookshelf/internal/apperr"
	"github.com/mrlokans/bookshelf/internal/auth"
	"github.com/mrlokans/bookshelf/internal/entities"
	"github.com/mrlokans/bookshelf/internal/logger"
)

// Machine-readable error codes returned in ErrorResponse.Code.
const (
	CodeValidation      = "validation_failed"
	CodeUnauthenticated = "unauthenticated"
	CodeForbidden       = "forbidden"
	CodeNotFound        = "not_found"
	CodeConflict        = "conflict"
	CodeRateLimited     = "rate_limited"
	CodeInternal        = "internal"
)

// --- Response Types ---

// ErrorResponse is the standard error response format for all API errors.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`    // machine-readable error code
	Details any    `json:"details,omitempty"` // additional context (validation errors, etc.)
}

// PaginatedResponse wraps paginated data with metadata.
type PaginatedResponse struct {
	Data    any   `json:"data"`
	Total   int64 `json:"total"`
	Limit   int   `json:"limit"`
	Offset  int   `json:"offset"`
	HasMore bool  `json:"has_more"`
}

// --- Error Response Helpers ---

// statusFor maps an error kind onto the HTTP status and code it is reported with.
func statusFor(err error) (int, string) {
	switch apperr.KindOf(err) {
	case apperr.ErrValidation:
		return http.StatusBadRequest, CodeValidation
	case apperr.ErrUnauthenticated:
		return http.StatusUnauthorized, CodeUnauthenticated
	case apperr.ErrForbidden:
		return http.StatusForbidden, CodeForbidden
	case apperr.ErrNotFound:
		return http.StatusNotFound, CodeNotFound
	case apperr.ErrConflict:
		return http.StatusConflict, CodeConflict
	case apperr.ErrRateLimited:
		return http.StatusTooManyRequests, CodeRateLimited
	default:
		return http.StatusInternalServerError, CodeInternal
	}
}

// respondError translates a domain error into a JSON error response.
// Internal failures are logged and reported without their cause.
func respondError(c *gin.Context, log *logger.Logger, err error) {
	status, code := statusFor(err)
	message := apperr.Message(err)

	if status == http.StatusInternalServerError {
		logger.OrNop(log).Error("request failed",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"error", err)
		var appErr *apperr.Error
		if !errors.As(err, &appErr) {
			message = "internal server error"
		}
	}
	if status == http.StatusUnauthorized {
		c.Header("WWW-Authenticate", `Bearer realm="bookshelf"`)
	}

	c.AbortWithStatusJSON(status, ErrorResponse{Error: message, Code: code})
}

// respondBadRequest sends a 400 Bad Request response.
func respondBadRequest(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Error: message, Code: CodeValidation})
}

// routeNotFound answers unknown routes.
func routeNotFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, ErrorResponse{Error: "route not found", Code: CodeNotFound})
}

// --- Caller ---

// currentIdentity returns the authenticated caller. Routes using it sit
// behind RequireAuth, so a missing identity is answered with 401.
func currentIdentity(c *gin.Context) (*auth.Identity, bool) {
	identity := auth.GetIdentity(c)
	if identity == nil {
		c.Header("WWW-Authenticate", `Bearer realm="bookshelf"`)
		c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "authentication required", Code: CodeUnauthenticated})
		return nil, false
	}
	return identity, true
}

func currentActor(c *gin.Context) (entities.Actor, bool) {
	identity, ok := currentIdentity(c)
	if !ok {
		return entities.Actor{}, false
	}
	return identity.Actor(), true
}

// --- Parameter Parsing ---

// parsePagination reads limit/offset query parameters. Missing values are
// returned as zero so services apply their own defaults.
func parsePagination(c *gin.Context) (limit, offset int, ok bool) {
	if limit, ok = parseIntQuery(c, "limit"); !ok {
		return 0, 0, false
	}
	if offset, ok = parseIntQuery(c, "offset"); !ok {
		return 0, 0, false
	}
	return limit, offset, true
}

// parseIntQuery extracts an optional non-negative integer query parameter.
// Responds with a 400 error and returns false when it is malformed.
func parseIntQuery(c *gin.Context, name string) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		respondBadRequest(c, "invalid "+name)
		return 0, false
	}
	return n, true
}

// bindJSON decodes the request body, answering 400 on malformed input or
// mismatched field types.
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		respondBadRequest(c, "invalid request body: "+err.Error())
		return false
	}
	return true
}
