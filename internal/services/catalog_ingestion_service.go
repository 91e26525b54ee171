package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"crop-estimator/internal/catalog"
	"crop-estimator/internal/models"
	"crop-estimator/internal/repository"
	"crop-estimator/pkg/logging"
	"crop-estimator/pkg/metrics"
)

// maxParallelParsers bounds concurrent catalog file parsing
const maxParallelParsers = 4

// CatalogIngestionService imports crop catalog files into the database
type CatalogIngestionService struct {
	repo    repository.CatalogRepository
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewCatalogIngestionService creates a new catalog ingestion service
func NewCatalogIngestionService(repo repository.CatalogRepository, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *CatalogIngestionService {
	return &CatalogIngestionService{
		repo:    repo,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// CatalogFiles lists the catalog files in dir in name order
func CatalogFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, err := catalog.FormatFromPath(e.Name()); err == nil {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// IngestDirectory parses every catalog file in dir concurrently, validates the
// merged set as one catalog and upserts it in batches. Any parse or validation
// failure aborts the import before anything is written.
func (s *CatalogIngestionService) IngestDirectory(ctx context.Context, dir string, batchSize int) (*IngestionResult, error) {
	if batchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", batchSize)
	}

	startTime := time.Now()

	files, err := CatalogFiles(dir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no catalog files found in %s", dir)
	}

	s.logger.Info(ctx, "[CATALOG_INGEST_START] Starting catalog ingestion", logging.Fields{
		"data_dir":   dir,
		"file_count": len(files),
		"stage":      "FILE_DISCOVERY",
	})

	parsed := make([][]*models.CropRecord, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelParsers)
	for i, path := range files {
		i, path := i, path
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			records, err := catalog.LoadFile(path)
			if err != nil {
				s.metrics.RecordIngestionError("parse_error")
				return err
			}
			parsed[i] = records

			s.logger.Debug(gctx, "[CATALOG_INGEST_FILE] Catalog file parsed", logging.Fields{
				"file_path": path,
				"records":   len(records),
				"stage":     "PARSE",
			})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to parse catalog files: %w", err)
	}

	var merged []*models.CropRecord
	for _, records := range parsed {
		merged = append(merged, records...)
	}

	validated, err := catalog.New(merged)
	if err != nil {
		s.metrics.RecordIngestionError("validation_error")
		return nil, fmt.Errorf("catalog validation failed: %w", err)
	}

	crops := validated.All()
	for start := 0; start < len(crops); start += batchSize {
		end := start + batchSize
		if end > len(crops) {
			end = len(crops)
		}
		if err := s.repo.UpsertCrops(ctx, crops[start:end]); err != nil {
			s.metrics.RecordIngestionError("db_error")
			return nil, fmt.Errorf("failed to upsert crops: %w", err)
		}
	}

	result := &IngestionResult{
		TotalFiles:        len(files),
		TotalRecords:      len(merged),
		SuccessfulRecords: len(crops),
		Duration:          time.Since(startTime),
		Errors:            make([]string, 0),
	}

	s.metrics.IngestionDuration.WithLabelValues("catalog").Observe(result.Duration.Seconds())
	s.metrics.RecordIngested("catalog", result.SuccessfulRecords)

	s.logger.Info(ctx, "[CATALOG_INGEST_COMPLETE] Catalog ingestion completed", logging.Fields{
		"total_files":      result.TotalFiles,
		"crops":            result.SuccessfulRecords,
		"duration_seconds": result.Duration.Seconds(),
		"stage":            "COMPLETE",
	})

	return result, nil
}
