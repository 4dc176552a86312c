package handlers

import (
	"net/http"
	"strings"

	"shipcompliance-backend/repository"
	"shipcompliance-backend/service"

	"github.com/gin-gonic/gin"
)

// ChatHandler handles HTTP requests for the regulation Q&A endpoint
type ChatHandler struct {
	chat        *service.ChatService
	regulations *repository.RegulationRepository
}

// NewChatHandler creates a new chat handler
func NewChatHandler(chat *service.ChatService, regulations *repository.RegulationRepository) *ChatHandler {
	return &ChatHandler{
		chat:        chat,
		regulations: regulations,
	}
}

// ChatRequest represents the request body for chat. Context may be supplied
// directly, or derived from a source/destination route's regulation document.
type ChatRequest struct {
	Query       string `json:"query"`
	Context     string `json:"context"`
	Source      string `json:"source"`
	Destination string `json:"destination"`
}

// Chat handles POST /api/chat
func (h *ChatHandler) Chat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}
	if req.Query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Query is required"})
		return
	}

	regulationContext := req.Context
	if regulationContext == "" && req.Source != "" && req.Destination != "" {
		if doc, err := h.regulations.Find(req.Source, req.Destination); err == nil {
			var b strings.Builder
			for _, section := range doc.Sections {
				b.WriteString(section.Name)
				b.WriteString(":\n")
				b.WriteString(section.Content)
				b.WriteString("\n\n")
			}
			regulationContext = b.String()
		}
	}

	reply, err := h.chat.Ask(c.Request.Context(), req.Query, regulationContext)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": reply,
	})
}
