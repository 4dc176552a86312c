package repository

import (
	"context"

	"shipcompliance-backend/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// BatchRunRepository handles database operations for persisted bulk runs
type BatchRunRepository struct {
	db *pgxpool.Pool
}

// NewBatchRunRepository creates a new batch run repository
func NewBatchRunRepository(db *pgxpool.Pool) *BatchRunRepository {
	return &BatchRunRepository{db: db}
}

// Create persists a completed batch run
func (r *BatchRunRepository) Create(ctx context.Context, run *models.BatchRun) error {
	query := `
		INSERT INTO batch_runs (
			id, filename, total_shipments, processed, failed, compliant,
			non_compliant, results, csv_path, result_path, completed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at`

	return r.db.QueryRow(
		ctx, query,
		run.ID,
		run.Filename,
		run.TotalShipments,
		run.Processed,
		run.Failed,
		run.Compliant,
		run.NonCompliant,
		run.Results,
		run.CSVPath,
		run.ResultPath,
		run.CompletedAt,
	).Scan(&run.CreatedAt)
}

// GetByID retrieves a batch run by ID
func (r *BatchRunRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.BatchRun, error) {
	run := &models.BatchRun{}
	query := `
		SELECT id, filename, total_shipments, processed, failed, compliant,
			non_compliant, results, csv_path, result_path, created_at, completed_at
		FROM batch_runs
		WHERE id = $1`

	err := r.db.QueryRow(ctx, query, id).Scan(
		&run.ID,
		&run.Filename,
		&run.TotalShipments,
		&run.Processed,
		&run.Failed,
		&run.Compliant,
		&run.NonCompliant,
		&run.Results,
		&run.CSVPath,
		&run.ResultPath,
		&run.CreatedAt,
		&run.CompletedAt,
	)

	if err != nil {
		return nil, err
	}

	if run.Results == nil {
		run.Results = make(models.RowOutcomes, 0)
	}

	return run, nil
}

// ListRecent returns the most recent batch runs without their row results.
func (r *BatchRunRepository) ListRecent(ctx context.Context, limit int) ([]models.BatchRun, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, filename, total_shipments, processed, failed, compliant,
			non_compliant, csv_path, result_path, created_at, completed_at
		FROM batch_runs
		ORDER BY created_at DESC
		LIMIT $1`

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := make([]models.BatchRun, 0)
	for rows.Next() {
		var run models.BatchRun
		err := rows.Scan(
			&run.ID,
			&run.Filename,
			&run.TotalShipments,
			&run.Processed,
			&run.Failed,
			&run.Compliant,
			&run.NonCompliant,
			&run.CSVPath,
			&run.ResultPath,
			&run.CreatedAt,
			&run.CompletedAt,
		)
		if err != nil {
			return nil, err
		}
		run.Results = make(models.RowOutcomes, 0)
		runs = append(runs, run)
	}

	return runs, rows.Err()
}
