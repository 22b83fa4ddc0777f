package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/mindjourney-backend/internal/http/response"
	"github.com/yungbote/mindjourney-backend/internal/realtime"
)

type EventsHandler struct {
	hub *realtime.Hub
}

func NewEventsHandler(hub *realtime.Hub) *EventsHandler {
	return &EventsHandler{hub: hub}
}

// GET /api/events?entry_id=...
// Without entry_id the stream carries every pipeline event.
func (h *EventsHandler) Stream(c *gin.Context) {
	channel := realtime.AllChannel
	if raw := strings.TrimSpace(c.Query("entry_id")); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			response.RespondError(c, http.StatusBadRequest, "validation", errors.New("invalid entry_id"))
			return
		}
		channel = id.String()
	}
	client := h.hub.NewClient()
	h.hub.Subscribe(client, channel)
	defer h.hub.CloseClient(client)
	h.hub.ServeHTTP(c.Writer, c.Request, client)
}
