package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"crop-estimator/internal/models"
	"crop-estimator/pkg/database"
)

const tableEstimates = "estimates"

// estimateRow stores input and result as jsonb documents
type estimateRow struct {
	ID               string    `db:"id"`
	CropID           string    `db:"crop_id"`
	SuitabilityScore float64   `db:"suitability_score"`
	Input            []byte    `db:"input"`
	Result           []byte    `db:"result"`
	CreatedAt        time.Time `db:"created_at"`
}

func (row *estimateRow) toRecord() (*models.EstimateRecord, error) {
	rec := &models.EstimateRecord{
		ID:        row.ID,
		CreatedAt: row.CreatedAt,
	}
	if err := json.Unmarshal(row.Input, &rec.Input); err != nil {
		return nil, fmt.Errorf("decode estimate %s input: %w", row.ID, err)
	}
	if err := json.Unmarshal(row.Result, &rec.Result); err != nil {
		return nil, fmt.Errorf("decode estimate %s result: %w", row.ID, err)
	}
	return rec, nil
}

// SaveEstimate stores an estimate with its input
func (r *postgresRepository) SaveEstimate(ctx context.Context, record *models.EstimateRecord) error {
	if record.Result == nil {
		return fmt.Errorf("estimate %s has no result", record.ID)
	}

	input, err := json.Marshal(record.Input)
	if err != nil {
		return fmt.Errorf("encode estimate input: %w", err)
	}
	result, err := json.Marshal(record.Result)
	if err != nil {
		return fmt.Errorf("encode estimate result: %w", err)
	}

	// lib/pq sends []byte as bytea, so jsonb values go over the wire as text
	query := database.Builder().
		Insert(tableEstimates).
		Columns("id", "crop_id", "suitability_score", "input", "result", "created_at").
		Values(record.ID, record.Result.CropID, record.Result.SuitabilityScore, string(input), string(result), record.CreatedAt)

	if _, err := r.db.Execx(ctx, "insert_estimate", query); err != nil {
		return fmt.Errorf("failed to save estimate: %w", err)
	}

	return nil
}

// GetEstimate retrieves one estimate by id
func (r *postgresRepository) GetEstimate(ctx context.Context, id string) (*models.EstimateRecord, error) {
	query := database.Builder().
		Select("id", "crop_id", "suitability_score", "input", "result", "created_at").
		From(tableEstimates).
		Where(sq.Eq{"id": id})

	var row estimateRow
	err := r.db.Getx(ctx, "get_estimate", &row, query)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &models.NotFoundError{Resource: "estimate", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get estimate: %w", err)
	}

	return row.toRecord()
}

// estimateListQueries builds the count and page queries for a filter
func estimateListQueries(filter EstimateFilter) (count sq.SelectBuilder, page sq.SelectBuilder) {
	where := sq.And{}
	if filter.CropID != nil {
		where = append(where, sq.Eq{"crop_id": *filter.CropID})
	}
	if filter.MinScore != nil {
		where = append(where, sq.GtOrEq{"suitability_score": *filter.MinScore})
	}
	if filter.StartDate != nil {
		where = append(where, sq.GtOrEq{"created_at": *filter.StartDate})
	}
	if filter.EndDate != nil {
		where = append(where, sq.LtOrEq{"created_at": *filter.EndDate})
	}

	count = database.Builder().Select("COUNT(*)").From(tableEstimates)
	page = database.Builder().
		Select("id", "crop_id", "suitability_score", "input", "result", "created_at").
		From(tableEstimates)

	if len(where) > 0 {
		count = count.Where(where)
		page = page.Where(where)
	}

	page = page.
		OrderBy("created_at DESC", "id").
		Limit(uint64(filter.Limit)).
		Offset(uint64(filter.Offset))

	return count, page
}

// ListEstimates retrieves estimate history with filtering and pagination
func (r *postgresRepository) ListEstimates(ctx context.Context, filter EstimateFilter) ([]*models.EstimateRecord, int, error) {
	countQuery, pageQuery := estimateListQueries(filter)

	var totalCount int
	if err := r.db.Getx(ctx, "count_estimates", &totalCount, countQuery); err != nil {
		return nil, 0, fmt.Errorf("failed to count estimates: %w", err)
	}

	var rows []estimateRow
	if err := r.db.Selectx(ctx, "list_estimates", &rows, pageQuery); err != nil {
		return nil, 0, fmt.Errorf("failed to list estimates: %w", err)
	}

	records := make([]*models.EstimateRecord, 0, len(rows))
	for i := range rows {
		rec, err := rows[i].toRecord()
		if err != nil {
			return nil, 0, err
		}
		records = append(records, rec)
	}

	return records, totalCount, nil
}
