package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"crop-estimator/internal/models"
	"crop-estimator/pkg/logging"
)

// CreateObservationsBatch creates multiple observations in a single transaction
func (r *postgresRepository) CreateObservationsBatch(ctx context.Context, observations []*models.ClimateObservation) error {
	if len(observations) == 0 {
		return nil
	}

	timer := time.Now()
	defer func() {
		duration := time.Since(timer)
		r.metrics.IngestionBatchSize.Observe(float64(len(observations)))
		r.logger.Debug(ctx, "[REPO_BATCH_INSERT] Batch insert completed", logging.Fields{
			"count":       len(observations),
			"duration_ms": duration.Milliseconds(),
		})
	}()

	tx, err := r.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO climate_observations (
			region, observation_date,
			max_temperature_celsius, min_temperature_celsius, precipitation_mm,
			created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (region, observation_date) DO UPDATE SET
			max_temperature_celsius = EXCLUDED.max_temperature_celsius,
			min_temperature_celsius = EXCLUDED.min_temperature_celsius,
			precipitation_mm = EXCLUDED.precipitation_mm
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, obs := range observations {
		_, err := stmt.ExecContext(ctx,
			obs.Region,
			obs.ObservationDate,
			obs.MaxTemperatureCelsius,
			obs.MinTemperatureCelsius,
			obs.PrecipitationMm,
			obs.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert observation: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// ListRegions returns every region with at least one observation
func (r *postgresRepository) ListRegions(ctx context.Context) ([]string, error) {
	var regions []string
	err := r.db.SelectContext(ctx, "list_regions", &regions,
		`SELECT DISTINCT region FROM climate_observations ORDER BY region`)
	if err != nil {
		return nil, fmt.Errorf("failed to list regions: %w", err)
	}
	return regions, nil
}

// CalculateSeasonalNormal averages every observation of region that falls in
// season. Precipitation is the mean seasonal total across the years observed.
func (r *postgresRepository) CalculateSeasonalNormal(ctx context.Context, region string, season models.Season) (*models.ClimateNormal, error) {
	timer := r.metrics.NewTimer(r.metrics.NormalsCalculationDuration)
	defer func() {
		duration := timer.ObserveDuration()
		r.logger.Debug(ctx, "[REPO_CALC_NORMAL] Seasonal normal calculated", logging.Fields{
			"region":      region,
			"season":      season,
			"duration_ms": duration.Milliseconds(),
		})
	}()

	months := models.MonthsForSeason(season)
	monthNumbers := make([]int64, len(months))
	for i, m := range months {
		monthNumbers[i] = int64(m)
	}

	query := `
		SELECT
			COUNT(*) AS observation_count,
			AVG((max_temperature_celsius + min_temperature_celsius) / 2) AS avg_temperature_celsius,
			AVG(max_temperature_celsius) AS avg_max_temperature_celsius,
			AVG(min_temperature_celsius) AS avg_min_temperature_celsius,
			SUM(precipitation_mm) / NULLIF(COUNT(DISTINCT EXTRACT(YEAR FROM observation_date)), 0) AS avg_precipitation_mm
		FROM climate_observations
		WHERE region = $1
		  AND EXTRACT(MONTH FROM observation_date)::int = ANY($2)
	`

	var result struct {
		ObservationCount         int      `db:"observation_count"`
		AvgTemperatureCelsius    *float64 `db:"avg_temperature_celsius"`
		AvgMaxTemperatureCelsius *float64 `db:"avg_max_temperature_celsius"`
		AvgMinTemperatureCelsius *float64 `db:"avg_min_temperature_celsius"`
		AvgPrecipitationMm       *float64 `db:"avg_precipitation_mm"`
	}

	err := r.db.GetContext(ctx, "calculate_normal", &result, query, region, pq.Array(monthNumbers))
	if err != nil {
		return nil, fmt.Errorf("failed to calculate seasonal normal: %w", err)
	}

	return &models.ClimateNormal{
		Region:                   region,
		Season:                   season,
		AvgTemperatureCelsius:    result.AvgTemperatureCelsius,
		AvgMaxTemperatureCelsius: result.AvgMaxTemperatureCelsius,
		AvgMinTemperatureCelsius: result.AvgMinTemperatureCelsius,
		AvgPrecipitationMm:       result.AvgPrecipitationMm,
		ObservationCount:         result.ObservationCount,
		UpdatedAt:                time.Now().UTC(),
	}, nil
}

// UpsertNormal creates or replaces a seasonal normal
func (r *postgresRepository) UpsertNormal(ctx context.Context, normal *models.ClimateNormal) error {
	query := `
		INSERT INTO climate_normals (
			region, season,
			avg_temperature_celsius, avg_max_temperature_celsius, avg_min_temperature_celsius,
			avg_precipitation_mm, observation_count, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (region, season) DO UPDATE SET
			avg_temperature_celsius = EXCLUDED.avg_temperature_celsius,
			avg_max_temperature_celsius = EXCLUDED.avg_max_temperature_celsius,
			avg_min_temperature_celsius = EXCLUDED.avg_min_temperature_celsius,
			avg_precipitation_mm = EXCLUDED.avg_precipitation_mm,
			observation_count = EXCLUDED.observation_count,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.ExecContext(ctx, "upsert_normal", query,
		normal.Region,
		string(normal.Season),
		normal.AvgTemperatureCelsius,
		normal.AvgMaxTemperatureCelsius,
		normal.AvgMinTemperatureCelsius,
		normal.AvgPrecipitationMm,
		normal.ObservationCount,
		normal.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert seasonal normal: %w", err)
	}

	return nil
}

// GetNormal retrieves the seasonal normal for a region
func (r *postgresRepository) GetNormal(ctx context.Context, region string, season models.Season) (*models.ClimateNormal, error) {
	query := `
		SELECT region, season,
		       avg_temperature_celsius, avg_max_temperature_celsius, avg_min_temperature_celsius,
		       avg_precipitation_mm, observation_count, updated_at
		FROM climate_normals
		WHERE region = $1 AND season = $2
	`

	var normal models.ClimateNormal
	err := r.db.GetContext(ctx, "get_normal", &normal, query, region, string(season))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &models.NotFoundError{
			Resource: "climate_normal",
			ID:       fmt.Sprintf("%s:%s", region, season),
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get seasonal normal: %w", err)
	}

	return &normal, nil
}
