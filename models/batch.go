package models

import (
	"time"

	"github.com/google/uuid"
)

// BatchRun is the persisted record of one bulk compliance upload.
type BatchRun struct {
	ID             uuid.UUID   `json:"id"`
	Filename       string      `json:"filename"`
	TotalShipments int         `json:"total_shipments"`
	Processed      int         `json:"processed"`
	Failed         int         `json:"failed"`
	Compliant      int         `json:"compliant"`
	NonCompliant   int         `json:"non_compliant"`
	Results        RowOutcomes `json:"results"`
	CSVPath        *string     `json:"csv_path,omitempty"`
	ResultPath     *string     `json:"result_path,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
	CompletedAt    time.Time   `json:"completed_at"`
}
