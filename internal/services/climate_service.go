package services

import (
	"context"
	"fmt"
	"time"

	"crop-estimator/internal/models"
	"crop-estimator/internal/repository"
	"crop-estimator/pkg/logging"
	"crop-estimator/pkg/metrics"
)

// ClimateService aggregates daily observations into seasonal normals
type ClimateService struct {
	repo    repository.ClimateRepository
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewClimateService creates a new climate service
func NewClimateService(repo repository.ClimateRepository, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *ClimateService {
	return &ClimateService{
		repo:    repo,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// CalculateAllNormals recomputes the normal of every region and season and
// returns how many were stored. Seasons without observations are skipped.
func (s *ClimateService) CalculateAllNormals(ctx context.Context) (int, error) {
	startTime := time.Now()

	s.logger.Info(ctx, "[NORMALS_CALC_START] Starting seasonal normal calculation", logging.Fields{
		"stage": "INITIALIZATION",
	})

	regions, err := s.repo.ListRegions(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list regions: %w", err)
	}

	stored := 0
	for _, region := range regions {
		for _, season := range models.Seasons {
			normal, err := s.repo.CalculateSeasonalNormal(ctx, region, season)
			if err != nil {
				s.logger.Error(ctx, "[NORMALS_CALC_ERROR] Failed to calculate seasonal normal", logging.Fields{
					"region": region,
					"season": season,
				}, err)
				continue
			}

			if normal.ObservationCount == 0 {
				continue
			}

			if err := s.repo.UpsertNormal(ctx, normal); err != nil {
				s.logger.Error(ctx, "[NORMALS_SAVE_ERROR] Failed to save seasonal normal", logging.Fields{
					"region": region,
					"season": season,
				}, err)
				continue
			}
			stored++
		}

		s.logger.Info(ctx, "[NORMALS_REGION_COMPLETE] Region normals calculated", logging.Fields{
			"region": region,
		})
	}

	s.logger.Info(ctx, "[NORMALS_CALC_COMPLETE] Seasonal normal calculation completed", logging.Fields{
		"total_regions":    len(regions),
		"total_normals":    stored,
		"duration_seconds": time.Since(startTime).Seconds(),
		"stage":            "COMPLETE",
	})

	return stored, nil
}

// GetNormal returns the stored normal for a region and season
func (s *ClimateService) GetNormal(ctx context.Context, region string, season models.Season) (*models.ClimateNormal, error) {
	return s.repo.GetNormal(ctx, region, season)
}
