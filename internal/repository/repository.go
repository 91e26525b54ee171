package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"crop-estimator/internal/models"
	"crop-estimator/pkg/database"
	"crop-estimator/pkg/logging"
	"crop-estimator/pkg/metrics"
)

// CatalogRepository persists the crop catalog and mandi price quotes
type CatalogRepository interface {
	UpsertCrops(ctx context.Context, crops []*models.CropRecord) error
	ListCrops(ctx context.Context) ([]*models.CropRecord, error)
	GetCrop(ctx context.Context, cropID string) (*models.CropRecord, error)
	SaveMarketPrices(ctx context.Context, prices []*models.MarketPrice) error
	UpdateMarketPrices(ctx context.Context, pricesPerKg map[string]decimal.Decimal) (int, error)
}

// ClimateRepository persists daily regional observations and seasonal normals
type ClimateRepository interface {
	CreateObservationsBatch(ctx context.Context, observations []*models.ClimateObservation) error
	ListRegions(ctx context.Context) ([]string, error)
	CalculateSeasonalNormal(ctx context.Context, region string, season models.Season) (*models.ClimateNormal, error)
	UpsertNormal(ctx context.Context, normal *models.ClimateNormal) error
	GetNormal(ctx context.Context, region string, season models.Season) (*models.ClimateNormal, error)
}

// EstimateRepository persists estimate history
type EstimateRepository interface {
	SaveEstimate(ctx context.Context, record *models.EstimateRecord) error
	GetEstimate(ctx context.Context, id string) (*models.EstimateRecord, error)
	ListEstimates(ctx context.Context, filter EstimateFilter) ([]*models.EstimateRecord, int, error)
}

// Repository is the full Postgres-backed data access layer
type Repository interface {
	CatalogRepository
	ClimateRepository
	EstimateRepository

	HealthCheck(ctx context.Context) error
}

// EstimateFilter defines filters for querying estimate history
type EstimateFilter struct {
	CropID    *string
	MinScore  *float64
	StartDate *time.Time
	EndDate   *time.Time
	Limit     int
	Offset    int
}

// postgresRepository implements Repository
type postgresRepository struct {
	db      *database.PostgresDB
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewPostgresRepository creates a repository over a Postgres connection
func NewPostgresRepository(db *database.PostgresDB, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) Repository {
	return &postgresRepository{
		db:      db,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// HealthCheck performs a repository health check
func (r *postgresRepository) HealthCheck(ctx context.Context) error {
	return r.db.HealthCheck(ctx)
}
