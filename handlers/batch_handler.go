package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"shipcompliance-backend/models"
	"shipcompliance-backend/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// BatchHandler handles HTTP requests for bulk CSV compliance checks
type BatchHandler struct {
	batch *service.BatchService
}

// NewBatchHandler creates a new batch handler
func NewBatchHandler(batch *service.BatchService) *BatchHandler {
	return &BatchHandler{batch: batch}
}

// bulkResponse is a BatchResult plus the persisted run id when history is on.
type bulkResponse struct {
	models.BatchResult
	BatchID *uuid.UUID `json:"batch_id,omitempty"`
}

// CheckBulk handles POST /api/check_bulk
func (h *BatchHandler) CheckBulk(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file uploaded"})
		return
	}
	if !strings.HasSuffix(strings.ToLower(fileHeader.Filename), ".csv") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Please upload a valid CSV file"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read uploaded file"})
		return
	}
	defer file.Close()

	csvData, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read uploaded file"})
		return
	}

	rows, err := h.batch.ParseShipmentCSV(strings.NewReader(string(csvData)))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result := h.batch.RunBatch(c.Request.Context(), rows)

	resp := bulkResponse{BatchResult: *result}
	if run := h.batch.RecordRun(c.Request.Context(), fileHeader.Filename, csvData, result); run != nil {
		resp.BatchID = &run.ID
	}

	c.JSON(http.StatusOK, resp)
}

// GetBatch handles GET /api/batches/:id
func (h *BatchHandler) GetBatch(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid batch id format"})
		return
	}

	run, err := h.batch.GetRun(c.Request.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrHistoryDisabled):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Batch history persistence is not configured"})
		case errors.Is(err, pgx.ErrNoRows):
			c.JSON(http.StatusNotFound, gin.H{"error": "Batch run not found"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, run)
}

// ListBatches handles GET /api/batches
func (h *BatchHandler) ListBatches(c *gin.Context) {
	limit := 20
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}

	runs, err := h.batch.ListRuns(c.Request.Context(), limit)
	if err != nil {
		if errors.Is(err, service.ErrHistoryDisabled) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Batch history persistence is not configured"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"batches": runs})
}
