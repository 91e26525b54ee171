package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	"crop-estimator/internal/catalog"
	"crop-estimator/internal/estimator"
	"crop-estimator/internal/models"
	"crop-estimator/internal/repository"
	"crop-estimator/pkg/logging"
	"crop-estimator/pkg/metrics"
)

func testDeps() (*logging.StructuredLogger, *metrics.Collector) {
	return logging.NewNopLogger(), metrics.NewCollector("crop_test", prometheus.NewRegistry())
}

func newCatalogService(t *testing.T, repo repository.CatalogRepository) *CatalogService {
	t.Helper()
	c, err := catalog.Default()
	if err != nil {
		t.Fatalf("catalog.Default() error = %v", err)
	}
	logger, m := testDeps()
	s, err := NewCatalogService(c, estimator.DefaultWeights, repo, "", logger, m)
	if err != nil {
		t.Fatalf("NewCatalogService() error = %v", err)
	}
	return s
}

type fakeCatalogRepo struct {
	mu      sync.Mutex
	crops   map[string]*models.CropRecord
	batches []int
	quotes  []*models.MarketPrice
	prices  map[string]decimal.Decimal
	listErr error
}

func newFakeCatalogRepo() *fakeCatalogRepo {
	return &fakeCatalogRepo{crops: map[string]*models.CropRecord{}}
}

func (f *fakeCatalogRepo) UpsertCrops(_ context.Context, crops []*models.CropRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, len(crops))
	for _, c := range crops {
		f.crops[c.ID] = c.Clone()
	}
	return nil
}

func (f *fakeCatalogRepo) ListCrops(context.Context) ([]*models.CropRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	ids := make([]string, 0, len(f.crops))
	for id := range f.crops {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]*models.CropRecord, 0, len(ids))
	for _, id := range ids {
		out = append(out, f.crops[id].Clone())
	}
	return out, nil
}

func (f *fakeCatalogRepo) GetCrop(_ context.Context, id string) (*models.CropRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.crops[id]
	if !ok {
		return nil, &models.NotFoundError{Resource: "crop", ID: id}
	}
	return c.Clone(), nil
}

func (f *fakeCatalogRepo) SaveMarketPrices(_ context.Context, prices []*models.MarketPrice) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.quotes = append(f.quotes, prices...)
	return nil
}

func (f *fakeCatalogRepo) UpdateMarketPrices(_ context.Context, prices map[string]decimal.Decimal) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prices = prices
	updated := 0
	for id, p := range prices {
		if c, ok := f.crops[id]; ok {
			c.MarketPrice = p.InexactFloat64()
			updated++
		}
	}
	return updated, nil
}

type fakeClimateRepo struct {
	mu           sync.Mutex
	observations []*models.ClimateObservation
	normals      map[string]*models.ClimateNormal
	batches      []int
	failBatch    bool
	getErr       error
}

func newFakeClimateRepo() *fakeClimateRepo {
	return &fakeClimateRepo{normals: map[string]*models.ClimateNormal{}}
}

func normalKey(region string, season models.Season) string {
	return fmt.Sprintf("%s:%s", region, season)
}

func (f *fakeClimateRepo) CreateObservationsBatch(_ context.Context, obs []*models.ClimateObservation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failBatch {
		return errors.New("batch insert failed")
	}
	f.batches = append(f.batches, len(obs))
	f.observations = append(f.observations, obs...)
	return nil
}

func (f *fakeClimateRepo) ListRegions(context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	seen := map[string]bool{}
	var regions []string
	for _, o := range f.observations {
		if !seen[o.Region] {
			seen[o.Region] = true
			regions = append(regions, o.Region)
		}
	}
	sort.Strings(regions)
	return regions, nil
}

func (f *fakeClimateRepo) CalculateSeasonalNormal(_ context.Context, region string, season models.Season) (*models.ClimateNormal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	normal := &models.ClimateNormal{Region: region, Season: season}
	var sum float64
	var n int
	for _, o := range f.observations {
		if o.Region != region || models.SeasonForMonth(o.ObservationDate.Month()) != season {
			continue
		}
		normal.ObservationCount++
		if mean := o.MeanTemperature(); mean != nil {
			sum += *mean
			n++
		}
	}
	if n > 0 {
		avg := sum / float64(n)
		normal.AvgTemperatureCelsius = &avg
	}
	return normal, nil
}

func (f *fakeClimateRepo) UpsertNormal(_ context.Context, n *models.ClimateNormal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.normals[normalKey(n.Region, n.Season)] = n
	return nil
}

func (f *fakeClimateRepo) GetNormal(_ context.Context, region string, season models.Season) (*models.ClimateNormal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	n, ok := f.normals[normalKey(region, season)]
	if !ok {
		return nil, &models.NotFoundError{Resource: "climate_normal", ID: normalKey(region, season)}
	}
	return n, nil
}

type fakeEstimateRepo struct {
	mu      sync.Mutex
	records map[string]*models.EstimateRecord
	saveErr error
	filter  repository.EstimateFilter
}

func newFakeEstimateRepo() *fakeEstimateRepo {
	return &fakeEstimateRepo{records: map[string]*models.EstimateRecord{}}
}

func (f *fakeEstimateRepo) SaveEstimate(_ context.Context, rec *models.EstimateRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.records[rec.ID] = rec
	return nil
}

func (f *fakeEstimateRepo) GetEstimate(_ context.Context, id string) (*models.EstimateRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[id]
	if !ok {
		return nil, &models.NotFoundError{Resource: "estimate", ID: id}
	}
	return rec, nil
}

func (f *fakeEstimateRepo) ListEstimates(_ context.Context, filter repository.EstimateFilter) ([]*models.EstimateRecord, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.filter = filter
	var out []*models.EstimateRecord
	for _, rec := range f.records {
		if filter.CropID != nil && rec.Result.CropID != *filter.CropID {
			continue
		}
		out = append(out, rec)
	}
	return out, len(out), nil
}
