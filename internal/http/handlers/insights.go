package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/mindjourney-backend/internal/http/response"
	"github.com/yungbote/mindjourney-backend/internal/services"
)

type InsightsHandler struct {
	entries services.EntryService
}

func NewInsightsHandler(entries services.EntryService) *InsightsHandler {
	return &InsightsHandler{entries: entries}
}

// GET /api/insights/status
func (h *InsightsHandler) Status(c *gin.Context) {
	rep, err := h.entries.InsightsStatus(c.Request.Context())
	if err != nil {
		response.RespondAppError(c, err)
		return
	}
	response.RespondOK(c, rep)
}

// POST /api/insights/sweep
func (h *InsightsHandler) Sweep(c *gin.Context) {
	rep, err := h.entries.RetryUnprocessed(c.Request.Context())
	if err != nil {
		response.RespondAppError(c, err)
		return
	}
	response.RespondOK(c, rep)
}
