package handler

import (
	"time"

	"github.com/billing/backend/internal/domain/invoicing"
	"github.com/billing/backend/internal/infrastructure/logger"
	"github.com/billing/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// parseID binds the :id path parameter and tags the request context with
// it. On failure it writes a 400 and returns false.
func (h *BaseHandler) parseID(c *gin.Context) (uuid.UUID, bool) {
	var req dto.IDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		h.BadRequest(c, "Invalid invoice ID")
		return uuid.Nil, false
	}
	id, err := uuid.Parse(req.ID)
	if err != nil {
		h.BadRequest(c, "Invalid invoice ID")
		return uuid.Nil, false
	}
	c.Request = c.Request.WithContext(logger.WithInvoiceID(c.Request.Context(), id.String()))
	return id, true
}

// parseAsOf reads the optional as_of query date, falling back to today
func (h *BaseHandler) parseAsOf(c *gin.Context, today time.Time) (time.Time, bool) {
	var req dto.AsOfRequest
	if !h.BindQuery(c, &req) {
		return time.Time{}, false
	}
	if req.AsOf == "" {
		return today, true
	}
	asOf, err := invoicing.ParseDate(req.AsOf)
	if err != nil {
		h.BadRequest(c, "as_of must be formatted as YYYY-MM-DD")
		return time.Time{}, false
	}
	return asOf, true
}
