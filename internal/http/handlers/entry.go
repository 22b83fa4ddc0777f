package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/mindjourney-backend/internal/http/response"
	"github.com/yungbote/mindjourney-backend/internal/platform/apperr"
	"github.com/yungbote/mindjourney-backend/internal/services"
)

type EntryHandler struct {
	entries services.EntryService
}

func NewEntryHandler(entries services.EntryService) *EntryHandler {
	return &EntryHandler{entries: entries}
}

type createEntryRequest struct {
	OwnerID  string `json:"owner_id"`
	Title    string `json:"title"`
	Content  string `json:"content"`
	IsPublic bool   `json:"is_public"`
}

type updateEntryRequest struct {
	Title    *string `json:"title"`
	Content  *string `json:"content"`
	IsPublic *bool   `json:"is_public"`
}

// POST /api/entries
func (h *EntryHandler) CreateEntry(c *gin.Context) {
	var req createEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	ownerID := uuid.Nil
	if req.OwnerID != "" {
		id, err := uuid.Parse(req.OwnerID)
		if err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_owner_id", err)
			return
		}
		ownerID = id
	}
	entry, err := h.entries.CreateEntry(c.Request.Context(), services.CreateEntryInput{
		OwnerID:  ownerID,
		Title:    req.Title,
		Content:  req.Content,
		IsPublic: req.IsPublic,
	})
	if err != nil {
		response.RespondAppError(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"entry": entry})
}

// GET /api/entries/:id
func (h *EntryHandler) GetEntry(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	entry, err := h.entries.GetEntry(c.Request.Context(), id)
	if err != nil {
		response.RespondAppError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"entry": entry})
}

// PATCH /api/entries/:id
func (h *EntryHandler) UpdateEntry(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req updateEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	entry, err := h.entries.UpdateEntry(c.Request.Context(), id, services.UpdateEntryInput{
		Title:    req.Title,
		Content:  req.Content,
		IsPublic: req.IsPublic,
	})
	if err != nil {
		response.RespondAppError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"entry": entry})
}

// DELETE /api/entries/:id
func (h *EntryHandler) DeleteEntry(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.entries.DeleteEntry(c.Request.Context(), id); err != nil {
		response.RespondAppError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// POST /api/entries/:id/documents (multipart field "file")
func (h *EntryHandler) AttachDocument(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	fh, err := c.FormFile("file")
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "missing_file", err)
		return
	}
	f, err := fh.Open()
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "unreadable_file", err)
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "unreadable_file", err)
		return
	}
	doc, err := h.entries.AttachDocument(c.Request.Context(), id, fh.Filename, fh.Header.Get("Content-Type"), data)
	if err != nil {
		response.RespondAppError(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"document": doc})
}

// DELETE /api/entries/:id/documents/:doc_id
func (h *EntryHandler) DeleteDocument(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	docID, ok := parseID(c, "doc_id")
	if !ok {
		return
	}
	if err := h.entries.DeleteDocument(c.Request.Context(), id, docID); err != nil {
		response.RespondAppError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// POST /api/entries/:id/reprocess
func (h *EntryHandler) Reprocess(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.entries.Reprocess(c.Request.Context(), id); err != nil {
		response.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"entry_id": id, "status": "scheduled"})
}

// GET /api/entries/:id/insights
func (h *EntryHandler) GetInsights(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	out, err := h.entries.GetInsights(c.Request.Context(), id)
	if err != nil {
		response.RespondAppError(c, err)
		return
	}
	response.RespondOK(c, out)
}

func parseID(c *gin.Context, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(param))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, string(apperr.CodeValidation), err)
		return uuid.Nil, false
	}
	return id, true
}
