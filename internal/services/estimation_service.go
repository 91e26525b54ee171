package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"crop-estimator/internal/models"
	"crop-estimator/internal/repository"
	"crop-estimator/pkg/logging"
	"crop-estimator/pkg/metrics"
)

// ErrPersistenceDisabled is returned by history lookups when no database is configured
var ErrPersistenceDisabled = errors.New("estimate history is disabled: no database configured")

// EstimationService runs estimates and recommendations and keeps estimate history
type EstimationService struct {
	catalogs  *CatalogService
	climate   repository.ClimateRepository
	estimates repository.EstimateRepository
	logger    *logging.StructuredLogger
	metrics   *metrics.Collector

	now   func() time.Time
	newID func() string
}

// NewEstimationService creates an estimation service. climate and estimates may
// be nil, which disables region temperature lookup and history respectively.
func NewEstimationService(catalogs *CatalogService, climate repository.ClimateRepository, estimates repository.EstimateRepository, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *EstimationService {
	return &EstimationService{
		catalogs:  catalogs,
		climate:   climate,
		estimates: estimates,
		logger:    logger,
		metrics:   metricsCollector,
		now:       func() time.Time { return time.Now().UTC() },
		newID:     func() string { return uuid.NewString() },
	}
}

// HistoryEnabled reports whether estimates are persisted
func (s *EstimationService) HistoryEnabled() bool {
	return s.estimates != nil
}

// Estimate scores one crop for one farm. The returned record carries an ID
// only when it was persisted; a failed save is logged and does not fail the call.
func (s *EstimationService) Estimate(ctx context.Context, in models.FarmInput) (*models.EstimateRecord, error) {
	in.RegionTemperature = s.resolveTemperature(ctx, in.Region, string(in.Season), in.RegionTemperature)

	est := s.catalogs.Estimator()
	result, err := est.Estimate(in)
	if err != nil {
		outcome := classify(err)
		s.metrics.RecordEstimation(outcome)
		s.logger.Warn(ctx, "[ESTIMATE_REJECTED] Estimate rejected", logging.Fields{
			"crop_id": in.CropID,
			"outcome": outcome,
			"error":   err.Error(),
		})
		return nil, err
	}

	s.metrics.RecordEstimation("ok")
	if crop, err := est.Catalog().Get(result.CropID); err == nil {
		s.metrics.ObserveScore(string(crop.Category), result.SuitabilityScore)
	}
	if result.HasDataGap() {
		s.metrics.RecordDataGap(string(result.YieldSource))
	}

	s.logger.Info(ctx, "[ESTIMATE] Estimate computed", logging.Fields{
		"crop_id":           result.CropID,
		"area_acres":        in.AreaAcres,
		"season":            in.Season,
		"suitability_score": result.SuitabilityScore,
		"yield_source":      result.YieldSource,
		"projected_profit":  result.ProjectedProfit.String(),
	})

	record := &models.EstimateRecord{
		Input:     in,
		Result:    result,
		CreatedAt: s.now(),
	}

	if s.estimates != nil {
		record.ID = s.newID()
		if err := s.estimates.SaveEstimate(ctx, record); err != nil {
			s.logger.Error(ctx, "[ESTIMATE_SAVE_ERROR] Failed to persist estimate", logging.Fields{
				"crop_id": result.CropID,
			}, err)
			record.ID = ""
		}
	}

	return record, nil
}

// Recommend ranks catalog crops for the farm conditions
func (s *EstimationService) Recommend(ctx context.Context, cond models.FarmConditions, limit int) ([]*models.EstimationResult, error) {
	cond.RegionTemperature = s.resolveTemperature(ctx, cond.Region, string(cond.Season), cond.RegionTemperature)

	results, err := s.catalogs.Estimator().Recommend(cond, limit)
	if err != nil {
		return nil, err
	}

	s.metrics.RecommendationSize.Observe(float64(len(results)))

	fields := logging.Fields{
		"season":   cond.Season,
		"category": cond.Category,
		"returned": len(results),
	}
	if len(results) > 0 {
		fields["top_crop"] = results[0].CropID
		fields["top_score"] = results[0].SuitabilityScore
	}
	s.logger.Info(ctx, "[RECOMMEND] Recommendations computed", fields)

	return results, nil
}

// GetEstimate returns one persisted estimate
func (s *EstimationService) GetEstimate(ctx context.Context, id string) (*models.EstimateRecord, error) {
	if s.estimates == nil {
		return nil, ErrPersistenceDisabled
	}
	return s.estimates.GetEstimate(ctx, id)
}

// ListEstimates returns persisted estimates with filtering
func (s *EstimationService) ListEstimates(ctx context.Context, filter repository.EstimateFilter) ([]*models.EstimateRecord, int, error) {
	if s.estimates == nil {
		return nil, 0, ErrPersistenceDisabled
	}
	return s.estimates.ListEstimates(ctx, filter)
}

// resolveTemperature fills an absent temperature from the region's seasonal
// normal. Lookup failures leave it absent, which the estimator scores neutrally.
func (s *EstimationService) resolveTemperature(ctx context.Context, region, season string, temp *float64) *float64 {
	if temp != nil || region == "" || s.climate == nil {
		return temp
	}

	parsed, err := models.ParseSeason(season)
	if err != nil {
		return temp
	}

	normal, err := s.climate.GetNormal(ctx, region, parsed)
	if err != nil {
		if !models.IsNotFound(err) {
			s.logger.Error(ctx, "[CLIMATE_LOOKUP_ERROR] Seasonal normal lookup failed", logging.Fields{
				"region": region,
				"season": parsed,
			}, err)
		}
		return temp
	}
	if normal.AvgTemperatureCelsius == nil {
		return temp
	}

	t := *normal.AvgTemperatureCelsius
	s.logger.Debug(ctx, "[CLIMATE_LOOKUP] Using seasonal normal temperature", logging.Fields{
		"region":      region,
		"season":      parsed,
		"temperature": t,
	})
	return &t
}

func classify(err error) string {
	switch {
	case models.IsInvalidInput(err):
		return "invalid_input"
	case models.IsNotFound(err):
		return "not_found"
	default:
		return "error"
	}
}
