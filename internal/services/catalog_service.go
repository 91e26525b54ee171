package services

import (
	"context"
	"fmt"
	"sync"

	"crop-estimator/internal/catalog"
	"crop-estimator/internal/estimator"
	"crop-estimator/internal/models"
	"crop-estimator/internal/repository"
	"crop-estimator/pkg/logging"
	"crop-estimator/pkg/metrics"
)

// Catalog sources reported by LoadCatalog
const (
	SourceDatabase = "database"
	SourceFile     = "file"
	SourceEmbedded = "embedded"
)

// LoadCatalog builds the crop catalog from the first available source: the
// database when repo is non-nil and holds crops, then path, then the embedded
// default.
func LoadCatalog(ctx context.Context, repo repository.CatalogRepository, path string) (*catalog.Catalog, string, error) {
	if repo != nil {
		records, err := repo.ListCrops(ctx)
		if err != nil {
			return nil, "", fmt.Errorf("failed to load catalog from database: %w", err)
		}
		if len(records) > 0 {
			c, err := catalog.New(records)
			if err != nil {
				return nil, "", fmt.Errorf("stored catalog is invalid: %w", err)
			}
			return c, SourceDatabase, nil
		}
	}

	if path != "" {
		c, err := catalog.LoadCatalog(path)
		if err != nil {
			return nil, "", err
		}
		return c, SourceFile, nil
	}

	c, err := catalog.Default()
	if err != nil {
		return nil, "", err
	}
	return c, SourceEmbedded, nil
}

// CompatibilityReport is the outcome of the three matching predicates for one crop
type CompatibilityReport struct {
	CropID string `json:"cropId"`
	models.Compatibility
	SoilOverlap float64 `json:"soilOverlap"`
}

// CatalogService serves crop lookups and owns the estimator built over the
// current catalog. Reload swaps both atomically.
type CatalogService struct {
	mu        sync.RWMutex
	catalog   *catalog.Catalog
	estimator *estimator.Estimator
	weights   estimator.Weights

	repo    repository.CatalogRepository
	path    string
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewCatalogService creates a catalog service. repo may be nil when the
// database is disabled.
func NewCatalogService(c *catalog.Catalog, weights estimator.Weights, repo repository.CatalogRepository, path string, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) (*CatalogService, error) {
	s := &CatalogService{
		weights: weights,
		repo:    repo,
		path:    path,
		logger:  logger,
		metrics: metricsCollector,
	}
	if err := s.swap(c); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *CatalogService) swap(c *catalog.Catalog) error {
	est, err := estimator.New(c, estimator.WithWeights(s.weights))
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.catalog = c
	s.estimator = est
	s.mu.Unlock()

	counts := make(map[string]int, len(models.Categories))
	for _, cat := range models.Categories {
		counts[string(cat)] = len(c.ByCategory(cat))
	}
	s.metrics.SetCatalogSize(counts)
	return nil
}

// Catalog returns the current catalog
func (s *CatalogService) Catalog() *catalog.Catalog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.catalog
}

// Estimator returns the estimator over the current catalog
func (s *CatalogService) Estimator() *estimator.Estimator {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.estimator
}

// Reload rebuilds the catalog from its sources, keeping the current one on failure
func (s *CatalogService) Reload(ctx context.Context) error {
	c, source, err := LoadCatalog(ctx, s.repo, s.path)
	if err != nil {
		s.logger.Error(ctx, "[CATALOG_RELOAD_ERROR] Catalog reload failed, keeping current catalog", logging.Fields{}, err)
		return err
	}
	if err := s.swap(c); err != nil {
		return err
	}

	s.logger.Info(ctx, "[CATALOG_RELOAD] Catalog reloaded", logging.Fields{
		"source": source,
		"crops":  c.Len(),
	})
	return nil
}

// ListCrops returns every crop, or the crops of one category when category is non-empty
func (s *CatalogService) ListCrops(ctx context.Context, category string) ([]*models.CropRecord, error) {
	c := s.Catalog()
	if category == "" {
		return c.All(), nil
	}

	cat, err := models.ParseCategory(category)
	if err != nil {
		return nil, err
	}
	return c.ByCategory(cat), nil
}

// GetCrop returns one crop
func (s *CatalogService) GetCrop(ctx context.Context, cropID string) (*models.CropRecord, error) {
	return s.Catalog().Get(cropID)
}

// Compatibility evaluates the season, soil and temperature predicates for a crop.
// Empty soil or season inputs evaluate to false for that predicate.
func (s *CatalogService) Compatibility(ctx context.Context, cropID, soilType, season string, temperature *float64) (*CompatibilityReport, error) {
	crop, err := s.Catalog().Get(cropID)
	if err != nil {
		return nil, err
	}

	report := &CompatibilityReport{CropID: crop.ID}

	if season != "" {
		parsed, err := models.ParseSeason(season)
		if err != nil {
			return nil, err
		}
		report.SeasonOK = catalog.IsSeasonCompatible(crop, parsed)
	}

	report.SoilOverlap = catalog.SoilOverlap(crop, soilType)
	report.SoilOK = report.SoilOverlap > 0
	report.TemperatureOK = catalog.IsTemperatureCompatible(crop, temperature)

	return report, nil
}
