package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"shipcompliance-backend/models"
	"shipcompliance-backend/repository"
	"shipcompliance-backend/service"

	"github.com/gin-gonic/gin"
)

// ComplianceHandler handles HTTP requests for single-shipment compliance checks
type ComplianceHandler struct {
	rules       *repository.RuleRepository
	regulations *repository.RegulationRepository
	compliance  *service.ComplianceService
	keyring     *service.Keyring
}

// NewComplianceHandler creates a new compliance handler
func NewComplianceHandler(
	rules *repository.RuleRepository,
	regulations *repository.RegulationRepository,
	compliance *service.ComplianceService,
	keyring *service.Keyring,
) *ComplianceHandler {
	return &ComplianceHandler{
		rules:       rules,
		regulations: regulations,
		compliance:  compliance,
		keyring:     keyring,
	}
}

// CheckRequest represents the request body for compliance checks
type CheckRequest struct {
	Source          string         `json:"source"`
	Destination     string         `json:"destination"`
	ShipmentDetails map[string]any `json:"shipment_details"`
}

// GetSections handles GET /api/sections
func (h *ComplianceHandler) GetSections(c *gin.Context) {
	source := c.Query("source")
	destination := c.Query("destination")

	if source == "" || destination == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Source and destination are required"})
		return
	}

	doc, err := h.regulations.Find(source, destination)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("No regulations found for %s to %s", source, destination)})
		return
	}

	c.JSON(http.StatusOK, gin.H{"sections": doc.SectionNames()})
}

// CheckSection handles POST /api/check/:section
func (h *ComplianceHandler) CheckSection(c *gin.Context) {
	sectionName := c.Param("section")

	var req CheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Source == "" || req.Destination == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Source and destination are required"})
		return
	}

	doc, err := h.regulations.Find(req.Source, req.Destination)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("No regulations found for %s to %s", req.Source, req.Destination)})
		return
	}

	section, ok := doc.Section(sectionName)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("Section '%s' not found", sectionName)})
		return
	}

	result := h.compliance.EvaluateSection(c.Request.Context(), section, req.ShipmentDetails, h.keyring.Next())

	c.JSON(http.StatusOK, gin.H{
		"section":    sectionName,
		"compliance": result,
	})
}

// CheckCompliance handles POST /api/check_compliance
func (h *ComplianceHandler) CheckCompliance(c *gin.Context) {
	var req CheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Source == "" || req.Destination == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Both source and destination countries are required"})
		return
	}
	if len(req.ShipmentDetails) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Shipment details are required"})
		return
	}

	applicable := h.rules.Rules(req.Source, req.Destination)

	var results []models.SectionResult
	if len(applicable) == 0 {
		results = []models.SectionResult{{
			Section:    "General Compliance",
			Compliance: models.GeneralComplianceResult(),
		}}
	} else {
		evaluation := h.compliance.EvaluateRules(c.Request.Context(), applicable, req.ShipmentDetails, h.keyring.Next())
		results = []models.SectionResult{{
			Section:    "Trade Compliance",
			Compliance: evaluation,
		}}
	}

	c.JSON(http.StatusOK, gin.H{
		"source":      req.Source,
		"destination": req.Destination,
		"results":     results,
	})
}

// CheckAll handles POST /api/check_all
func (h *ComplianceHandler) CheckAll(c *gin.Context) {
	var req CheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Source == "" || req.Destination == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Source and destination are required"})
		return
	}

	doc, err := h.regulations.Find(req.Source, req.Destination)
	if err != nil {
		if errors.Is(err, repository.ErrRegulationNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("No regulations found for %s to %s", req.Source, req.Destination)})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	results := h.compliance.EvaluateAllSections(c.Request.Context(), doc, req.ShipmentDetails)

	c.JSON(http.StatusOK, gin.H{
		"source":      req.Source,
		"destination": req.Destination,
		"results":     results,
	})
}
