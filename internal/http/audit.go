package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/bookshelf/internal/audit"
	"github.com/mrlokans/bookshelf/internal/entities"
	"github.com/mrlokans/bookshelf/internal/logger"
)

const (
	defaultAuditLimit = 25
	maxAuditLimit     = 100
)

type AuditController struct {
	auditService *audit.Service
	log          *logger.Logger
}

func NewAuditController(auditService *audit.Service, log *logger.Logger) *AuditController {
	return &AuditController{
		auditService: auditService,
		log:          logger.OrNop(log),
	}
}

// GetAuditEvents returns paginated audit events, optionally narrowed to one
// user and one event type.
// GET /admin/audit?user_id=&type=&limit=&offset=
func (ac *AuditController) GetAuditEvents(c *gin.Context) {
	limit, offset, ok := parsePagination(c)
	if !ok {
		return
	}
	if limit == 0 || limit > maxAuditLimit {
		limit = defaultAuditLimit
	}

	userID := c.Query("user_id")
	eventType := c.Query("type")

	var events []entities.AuditEvent
	var total int64
	var err error

	if eventType != "" {
		events, total, err = ac.auditService.GetEventsByType(c.Request.Context(), entities.AuditEventType(eventType), userID, limit, offset)
	} else {
		events, total, err = ac.auditService.GetEvents(c.Request.Context(), userID, limit, offset)
	}

	if err != nil {
		ac.log.Error("failed to load audit events", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to load audit events", Code: CodeInternal})
		return
	}
	if events == nil {
		events = []entities.AuditEvent{}
	}

	c.JSON(http.StatusOK, PaginatedResponse{
		Data:    events,
		Total:   total,
		Limit:   limit,
		Offset:  offset,
		HasMore: int64(offset+len(events)) < total,
	})
}
