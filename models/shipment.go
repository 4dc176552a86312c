package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"strings"
)

// ShipmentRow is one CSV data row: an opaque field->value mapping. Only
// source and destination are interpreted; every other column passes through
// into the evaluation prompt untouched.
type ShipmentRow map[string]string

var (
	ErrMissingSource      = errors.New("source country is required")
	ErrMissingDestination = errors.New("destination country is required")
)

// Source returns the trimmed source country, which may be empty.
func (r ShipmentRow) Source() string { return strings.TrimSpace(r["source"]) }

// Destination returns the trimmed destination country, which may be empty.
func (r ShipmentRow) Destination() string { return strings.TrimSpace(r["destination"]) }

// ShipmentID returns the caller-supplied correlation id, or "unknown".
func (r ShipmentRow) ShipmentID() string {
	if id := strings.TrimSpace(r["shipment_id"]); id != "" {
		return id
	}
	return "unknown"
}

// Validate checks the minimum fields every row must carry.
func (r ShipmentRow) Validate() error {
	if r.Source() == "" {
		return ErrMissingSource
	}
	if r.Destination() == "" {
		return ErrMissingDestination
	}
	return nil
}

// Details converts the row into the shipment_details shape the evaluator
// prompts with. Well-known CSV columns are renamed to the request-body field
// names; everything else passes through under its CSV header.
func (r ShipmentRow) Details() map[string]any {
	details := map[string]any{
		"itemDescription": r["item_description"],
		"quantity":        r["quantity"],
		"value":           r["value"],
		"weight":          r["weight"],
		"hsCode":          r["hs_code"],
	}
	for k, v := range r {
		switch k {
		case "source", "destination", "item_description", "quantity", "value", "weight", "hs_code":
		default:
			details[k] = v
		}
	}
	return details
}

// Row processing status values.
const (
	RowStatusProcessed = "processed"
	RowStatusFailed    = "failed"
)

// RowOutcome is the per-row result of a bulk run. Row is the 1-based CSV
// data row index; results correlate to input rows by both Row and
// ShipmentID, and the results slice preserves input order.
type RowOutcome struct {
	Row             int             `json:"row"`
	ShipmentID      string          `json:"shipment_id"`
	Source          string          `json:"source"`
	Destination     string          `json:"destination"`
	ItemDescription string          `json:"item_description,omitempty"`
	Status          string          `json:"status"`
	Error           string          `json:"error,omitempty"`
	Results         []SectionResult `json:"results,omitempty"`
}

// RowOutcomes is stored as JSONB on persisted batch runs.
type RowOutcomes []RowOutcome

// Value implements driver.Valuer for JSONB
func (o RowOutcomes) Value() (driver.Value, error) {
	return json.Marshal(o)
}

// Scan implements sql.Scanner for JSONB
func (o *RowOutcomes) Scan(value interface{}) error {
	if value == nil {
		*o = make(RowOutcomes, 0)
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		*o = make(RowOutcomes, 0)
		return nil
	}

	if len(bytes) == 0 {
		*o = make(RowOutcomes, 0)
		return nil
	}

	return json.Unmarshal(bytes, o)
}

// BatchResult is the aggregate of one bulk upload. Created fresh per request;
// a copy may be persisted as a BatchRun but the response itself is transient.
type BatchResult struct {
	TotalShipments int         `json:"total_shipments"`
	Processed      int         `json:"processed"`
	Failed         int         `json:"failed"`
	Compliant      int         `json:"compliant"`
	NonCompliant   int         `json:"non_compliant"`
	Results        RowOutcomes `json:"results"`
}
