package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"shipcompliance-backend/models"
	"shipcompliance-backend/repository"
	"shipcompliance-backend/storage"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

var (
	ErrEmptyCSV        = errors.New("CSV file contains no data rows")
	ErrMissingColumns  = errors.New("CSV must contain 'source' and 'destination' columns")
	ErrNoEvaluator     = errors.New("no evaluator configured")
	ErrHistoryDisabled = errors.New("batch history persistence is not configured")
)

// Ceiling on concurrent row evaluations for one bulk upload.
const maxRowWorkers = 20

// Evaluator is the slice of ComplianceService the batch pipeline needs.
type Evaluator interface {
	EvaluateRules(ctx context.Context, rules []string, shipment any, apiKey string) *models.EvaluationResult
}

// BatchService runs bulk CSV compliance checks: parse rows, fan evaluations
// out over a bounded worker pool, aggregate, and optionally persist the run.
// A single malformed or failing row never aborts the batch.
type BatchService struct {
	rules     *repository.RuleRepository
	keyring   *Keyring
	evaluator Evaluator
	runs      *repository.BatchRunRepository
	audit     *repository.AuditLogRepository
	store     storage.Storage
}

// BatchServiceOption is a functional option for BatchService
type BatchServiceOption func(*BatchService)

// BatchWithRuleRepository sets the route rule store
func BatchWithRuleRepository(r *repository.RuleRepository) BatchServiceOption {
	return func(s *BatchService) {
		s.rules = r
	}
}

// BatchWithKeyring sets the credential rotator
func BatchWithKeyring(k *Keyring) BatchServiceOption {
	return func(s *BatchService) {
		s.keyring = k
	}
}

// BatchWithEvaluator sets the per-row evaluator
func BatchWithEvaluator(e Evaluator) BatchServiceOption {
	return func(s *BatchService) {
		s.evaluator = e
	}
}

// BatchWithRunRepository enables batch run persistence
func BatchWithRunRepository(r *repository.BatchRunRepository) BatchServiceOption {
	return func(s *BatchService) {
		s.runs = r
	}
}

// BatchWithAuditLog enables audit trail recording
func BatchWithAuditLog(a *repository.AuditLogRepository) BatchServiceOption {
	return func(s *BatchService) {
		s.audit = a
	}
}

// BatchWithStorage enables artifact archiving for uploaded CSVs and results
func BatchWithStorage(st storage.Storage) BatchServiceOption {
	return func(s *BatchService) {
		s.store = st
	}
}

// NewBatchService creates a new batch service
func NewBatchService(opts ...BatchServiceOption) *BatchService {
	s := &BatchService{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ParseShipmentCSV reads and validates an uploaded CSV. The header row must
// include source and destination columns; header names are lowercased and
// trimmed. Rows whose cells are all blank are skipped.
func (s *BatchService) ParseShipmentCSV(r io.Reader) ([]models.ShipmentRow, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return nil, ErrEmptyCSV
		}
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	columns := make([]string, len(header))
	hasSource, hasDestination := false, false
	for i, name := range header {
		columns[i] = strings.ToLower(strings.TrimSpace(name))
		switch columns[i] {
		case "source":
			hasSource = true
		case "destination":
			hasDestination = true
		}
	}
	if !hasSource || !hasDestination {
		return nil, ErrMissingColumns
	}

	rows := make([]models.ShipmentRow, 0)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV row: %w", err)
		}

		row := make(models.ShipmentRow, len(columns))
		blank := true
		for i, value := range record {
			if i >= len(columns) {
				break
			}
			value = strings.TrimSpace(value)
			row[columns[i]] = value
			if value != "" {
				blank = false
			}
		}
		if blank {
			continue
		}
		rows = append(rows, row)
	}

	if len(rows) == 0 {
		return nil, ErrEmptyCSV
	}
	return rows, nil
}

// RunBatch evaluates every row concurrently and aggregates the outcome.
// Results preserve input order; each carries its 1-based row index and the
// caller's shipment_id for correlation.
func (s *BatchService) RunBatch(ctx context.Context, rows []models.ShipmentRow) *models.BatchResult {
	outcomes := make(models.RowOutcomes, len(rows))

	workers := len(rows)
	if s.keyring != nil && s.keyring.Size()*2 < workers {
		workers = s.keyring.Size() * 2
	}
	if workers > maxRowWorkers {
		workers = maxRowWorkers
	}
	if workers < 1 {
		workers = 1
	}

	g := new(errgroup.Group)
	g.SetLimit(workers)

	for i := range rows {
		i := i
		row := rows[i]

		// Invalid rows fail without occupying a worker slot.
		if err := row.Validate(); err != nil {
			outcomes[i] = models.RowOutcome{
				Row:         i + 1,
				ShipmentID:  row.ShipmentID(),
				Source:      row.Source(),
				Destination: row.Destination(),
				Status:      models.RowStatusFailed,
				Error:       err.Error(),
			}
			continue
		}

		g.Go(func() error {
			outcomes[i] = s.processRow(ctx, i+1, row)
			return nil
		})
	}
	g.Wait()

	result := &models.BatchResult{
		TotalShipments: len(rows),
		Results:        outcomes,
	}
	for i := range outcomes {
		if outcomes[i].Status != models.RowStatusProcessed {
			result.Failed++
			continue
		}
		result.Processed++
		compliant := false
		for _, sr := range outcomes[i].Results {
			if sr.Compliance.IsCompliant() {
				compliant = true
				break
			}
		}
		if compliant {
			result.Compliant++
		} else {
			result.NonCompliant++
		}
	}

	return result
}

// processRow evaluates one validated row. Panics in the evaluation path are
// contained here so a bad row cannot take down the pool.
func (s *BatchService) processRow(ctx context.Context, rowNum int, row models.ShipmentRow) (outcome models.RowOutcome) {
	outcome = models.RowOutcome{
		Row:             rowNum,
		ShipmentID:      row.ShipmentID(),
		Source:          row.Source(),
		Destination:     row.Destination(),
		ItemDescription: row["item_description"],
	}

	defer func() {
		if r := recover(); r != nil {
			log.Printf("Warning: panic while processing row %d: %v", rowNum, r)
			outcome.Status = models.RowStatusFailed
			outcome.Error = fmt.Sprintf("internal error: %v", r)
			outcome.Results = nil
		}
	}()

	var rules []string
	if s.rules != nil {
		rules = s.rules.Rules(row.Source(), row.Destination())
	}

	if len(rules) == 0 {
		outcome.Status = models.RowStatusProcessed
		outcome.Results = []models.SectionResult{{
			Section:    "General Compliance",
			Compliance: models.GeneralComplianceResult(),
		}}
		return outcome
	}

	if s.evaluator == nil {
		outcome.Status = models.RowStatusFailed
		outcome.Error = ErrNoEvaluator.Error()
		return outcome
	}

	var apiKey string
	if s.keyring != nil {
		apiKey = s.keyring.Next()
	}

	evaluation := s.evaluator.EvaluateRules(ctx, rules, row.Details(), apiKey)
	outcome.Status = models.RowStatusProcessed
	outcome.Results = []models.SectionResult{{
		Section:    "Trade Compliance",
		Compliance: evaluation,
	}}
	return outcome
}

// RecordRun persists a completed batch and archives its artifacts. Every step
// is best effort: persistence failures are logged and never surface to the
// upload response. Returns the stored run, or nil when persistence is off.
func (s *BatchService) RecordRun(ctx context.Context, filename string, csvData []byte, result *models.BatchResult) *models.BatchRun {
	if s.runs == nil {
		return nil
	}

	run := &models.BatchRun{
		ID:             uuid.New(),
		Filename:       filename,
		TotalShipments: result.TotalShipments,
		Processed:      result.Processed,
		Failed:         result.Failed,
		Compliant:      result.Compliant,
		NonCompliant:   result.NonCompliant,
		Results:        result.Results,
		CompletedAt:    time.Now().UTC(),
	}

	if s.store != nil {
		if path, err := s.store.Upload(ctx, run.ID, filename, bytes.NewReader(csvData)); err != nil {
			log.Printf("Warning: failed to archive uploaded CSV: %v", err)
		} else {
			run.CSVPath = &path
		}

		if resultJSON, err := json.Marshal(result); err != nil {
			log.Printf("Warning: failed to marshal batch result for archiving: %v", err)
		} else if path, err := s.store.Upload(ctx, run.ID, "results.json", bytes.NewReader(resultJSON)); err != nil {
			log.Printf("Warning: failed to archive batch results: %v", err)
		} else {
			run.ResultPath = &path
		}
	}

	if err := s.runs.Create(ctx, run); err != nil {
		log.Printf("Warning: failed to persist batch run: %v", err)
		return nil
	}

	if s.audit != nil {
		details := fmt.Sprintf("file=%s total=%d processed=%d failed=%d", filename, run.TotalShipments, run.Processed, run.Failed)
		if err := s.audit.Record(ctx, repository.ActionBatchProcessed, details); err != nil {
			log.Printf("Warning: failed to record audit entry: %v", err)
		}
	}

	return run
}

// GetRun returns one persisted batch run.
func (s *BatchService) GetRun(ctx context.Context, id uuid.UUID) (*models.BatchRun, error) {
	if s.runs == nil {
		return nil, ErrHistoryDisabled
	}
	return s.runs.GetByID(ctx, id)
}

// ListRuns returns recent persisted batch runs without row results.
func (s *BatchService) ListRuns(ctx context.Context, limit int) ([]models.BatchRun, error) {
	if s.runs == nil {
		return nil, ErrHistoryDisabled
	}
	return s.runs.ListRecent(ctx, limit)
}
