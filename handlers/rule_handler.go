package handlers

import (
	"errors"
	"fmt"
	"log"
	"net/http"

	"shipcompliance-backend/models"
	"shipcompliance-backend/repository"

	"github.com/gin-gonic/gin"
)

// RuleHandler handles HTTP requests for route compliance rules
type RuleHandler struct {
	rules *repository.RuleRepository
	audit *repository.AuditLogRepository
}

// NewRuleHandler creates a new rule handler
func NewRuleHandler(rules *repository.RuleRepository, audit *repository.AuditLogRepository) *RuleHandler {
	return &RuleHandler{
		rules: rules,
		audit: audit,
	}
}

// AddRuleRequest represents the request body for adding a rule
type AddRuleRequest struct {
	Source      string `json:"source"`
	Destination string `json:"destination"`
	Rule        string `json:"rule"`
}

// DeleteRuleRequest represents the request body for deleting a rule
type DeleteRuleRequest struct {
	Rule string `json:"rule"`
}

// ListRules handles GET /api/rules
func (h *RuleHandler) ListRules(c *gin.Context) {
	c.JSON(http.StatusOK, h.rules.All())
}

// AddRule handles POST /api/rules
func (h *RuleHandler) AddRule(c *gin.Context) {
	var req AddRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.Source == "" || req.Destination == "" || req.Rule == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Source, destination, and rule are required"})
		return
	}

	added, list, err := h.rules.AddRule(req.Source, req.Destination, req.Rule)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	route := models.RouteKey(req.Source, req.Destination)
	message := "Rule already exists"
	if added {
		message = "Rule added successfully"
		h.recordAudit(c, repository.ActionRuleAdded, fmt.Sprintf("route=%s rule=%q", route, req.Rule))
	}

	c.JSON(http.StatusOK, gin.H{
		"message": message,
		"route":   route,
		"rules":   list,
	})
}

// GetRules handles GET /api/rules/:source/:destination
func (h *RuleHandler) GetRules(c *gin.Context) {
	source := c.Param("source")
	destination := c.Param("destination")

	c.JSON(http.StatusOK, gin.H{
		"source":      source,
		"destination": destination,
		"rules":       h.rules.Rules(source, destination),
	})
}

// DeleteRule handles DELETE /api/rules/:source/:destination
func (h *RuleHandler) DeleteRule(c *gin.Context) {
	source := c.Param("source")
	destination := c.Param("destination")

	var req DeleteRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Rule == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Rule to delete is required"})
		return
	}

	list, err := h.rules.DeleteRule(source, destination, req.Rule)
	if err != nil {
		if errors.Is(err, repository.ErrRuleNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Rule not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	route := models.RouteKey(source, destination)
	h.recordAudit(c, repository.ActionRuleDeleted, fmt.Sprintf("route=%s rule=%q", route, req.Rule))

	c.JSON(http.StatusOK, gin.H{
		"message": "Rule deleted successfully",
		"route":   route,
		"rules":   list,
	})
}

// ListFlattenedRules handles GET /api/admin/rules
func (h *RuleHandler) ListFlattenedRules(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"rules": h.rules.FlattenedRules()})
}

// ListRoutes handles GET /api/admin/routes
func (h *RuleHandler) ListRoutes(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"routes": h.rules.Routes()})
}

// ListAuditLog handles GET /api/admin/audit
func (h *RuleHandler) ListAuditLog(c *gin.Context) {
	if h.audit == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Audit log persistence is not configured"})
		return
	}

	entries, err := h.audit.ListRecent(c.Request.Context(), 50)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

// recordAudit appends an audit entry when persistence is configured.
func (h *RuleHandler) recordAudit(c *gin.Context, action, details string) {
	if h.audit == nil {
		return
	}
	if err := h.audit.Record(c.Request.Context(), action, details); err != nil {
		log.Printf("Warning: failed to record audit entry: %v", err)
	}
}
