// Package estimator scores how well a crop fits a farm and projects its
// yield, revenue, cost and profit.
//
// Estimate is a pure function of its input and the injected catalog: it does
// no I/O, keeps no state between calls and is safe for concurrent use.
package estimator

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"crop-estimator/internal/catalog"
	"crop-estimator/internal/models"
)

// Weights is the number of points each factor contributes to a perfect score
type Weights struct {
	Season      float64
	Soil        float64
	Temperature float64
}

// DefaultWeights lets a season mismatch dominate the score
var DefaultWeights = Weights{Season: 40, Soil: 30, Temperature: 30}

// Validate checks that the weights are non-negative and sum to 100
func (w Weights) Validate() error {
	if w.Season < 0 || w.Soil < 0 || w.Temperature < 0 {
		return fmt.Errorf("score weights must be non-negative: %+v", w)
	}
	if sum := w.Season + w.Soil + w.Temperature; math.Abs(sum-100) > 1e-9 {
		return fmt.Errorf("score weights must sum to 100, got %g", sum)
	}
	return nil
}

// Option configures an Estimator
type Option func(*Estimator)

// WithWeights overrides the default factor weights
func WithWeights(w Weights) Option {
	return func(e *Estimator) {
		e.weights = w
	}
}

// Estimator produces EstimationResults against a fixed catalog
type Estimator struct {
	catalog *catalog.Catalog
	weights Weights
}

// New creates an estimator over an immutable catalog
func New(c *catalog.Catalog, opts ...Option) (*Estimator, error) {
	if c == nil {
		return nil, fmt.Errorf("estimator requires a catalog")
	}

	e := &Estimator{
		catalog: c,
		weights: DefaultWeights,
	}
	for _, opt := range opts {
		opt(e)
	}

	if err := e.weights.Validate(); err != nil {
		return nil, err
	}
	return e, nil
}

// Catalog returns the catalog the estimator reads from
func (e *Estimator) Catalog() *catalog.Catalog {
	return e.catalog
}

// Estimate scores one crop for one farm and projects its financials.
// It fails with *models.InvalidInputError for malformed input and with
// *models.NotFoundError when the crop is not in the catalog.
func (e *Estimator) Estimate(in models.FarmInput) (*models.EstimationResult, error) {
	in, err := normalizeInput(in)
	if err != nil {
		return nil, err
	}

	crop, err := e.catalog.Get(in.CropID)
	if err != nil {
		return nil, err
	}

	return e.estimate(crop, in)
}

func (e *Estimator) estimate(crop *models.CropRecord, in models.FarmInput) (*models.EstimationResult, error) {
	seasonOK := catalog.IsSeasonCompatible(crop, in.Season)
	soilOverlap := catalog.SoilOverlap(crop, in.SoilType)
	temperatureOK := catalog.IsTemperatureCompatible(crop, in.RegionTemperature)

	breakdown := models.ScoreBreakdown{
		Soil:        e.weights.Soil * soilOverlap,
		Temperature: e.weights.Temperature * temperatureFit(crop, in.RegionTemperature),
	}
	if seasonOK {
		breakdown.Season = e.weights.Season
	}

	score := clamp(breakdown.Season+breakdown.Soil+breakdown.Temperature, 0, 100)

	result := &models.EstimationResult{
		CropID:           crop.ID,
		CropName:         crop.Name,
		SuitabilityScore: round2(score),
		ScoreBreakdown: models.ScoreBreakdown{
			Season:      round2(breakdown.Season),
			Soil:        round2(breakdown.Soil),
			Temperature: round2(breakdown.Temperature),
		},
		Compatibility: models.Compatibility{
			SeasonOK:      seasonOK,
			SoilOK:        soilOverlap > 0,
			TemperatureOK: temperatureOK,
		},
		HarvestEstimateDays: crop.GrowthDays,
		WaterRequirement:    crop.WaterRequirement,
	}

	perAcre, source, warning := e.yieldPerAcre(crop)
	result.YieldPerAcre = perAcre
	result.YieldSource = source
	if warning != nil {
		result.Warnings = append(result.Warnings, *warning)
	}

	result.ProjectedYield = in.AreaAcres * perAcre
	if math.IsInf(result.ProjectedYield, 0) || math.IsNaN(result.ProjectedYield) {
		return nil, &models.InvalidInputError{
			Field:   "areaAcres",
			Value:   fmt.Sprintf("%g", in.AreaAcres),
			Message: "area is too large to project a finite yield",
		}
	}

	revenue := decimal.NewFromFloat(result.ProjectedYield).Mul(decimal.NewFromFloat(crop.MarketPrice)).Round(2)

	cost := decimal.Zero
	if in.CostPerAcre != nil {
		cost = decimal.NewFromFloat(in.AreaAcres).Mul(decimal.NewFromFloat(*in.CostPerAcre)).Round(2)
	}

	result.ProjectedRevenue = revenue
	result.ProjectedCost = cost
	result.ProjectedProfit = revenue.Sub(cost)

	return result, nil
}

// yieldPerAcre falls back to the category average when the crop has no yield
// figure, and to zero when the whole category lacks one
func (e *Estimator) yieldPerAcre(crop *models.CropRecord) (float64, models.YieldSource, *models.DataGapWarning) {
	if crop.AvgYield != nil {
		return *crop.AvgYield, models.YieldFromCatalog, nil
	}

	if avg, ok := e.catalog.CategoryAverageYield(crop.Category); ok {
		return avg, models.YieldFromCategoryAverage, &models.DataGapWarning{
			CropID:  crop.ID,
			Field:   "avg_yield",
			Message: fmt.Sprintf("yield data missing, using %s category average of %.2f per acre", crop.Category, avg),
		}
	}

	return 0, models.YieldUnavailable, &models.DataGapWarning{
		CropID:  crop.ID,
		Field:   "avg_yield",
		Message: "yield data unavailable, projected yield and revenue are zero",
	}
}

// temperatureFit is 1 at the midpoint of the crop's range and decays linearly
// to 0 at and beyond the bounds. An unknown temperature fits fully.
func temperatureFit(crop *models.CropRecord, temp *float64) float64 {
	if temp == nil {
		return 1
	}

	halfWidth := (crop.MaxTemp - crop.MinTemp) / 2
	if halfWidth == 0 {
		if *temp == crop.MinTemp {
			return 1
		}
		return 0
	}

	mid := (crop.MinTemp + crop.MaxTemp) / 2
	return clamp(1-math.Abs(*temp-mid)/halfWidth, 0, 1)
}

// Recommend estimates every catalog crop for the farm conditions and returns
// the best matches first. Ties on score are broken by projected profit, then id.
// A limit of zero or less returns every crop.
func (e *Estimator) Recommend(cond models.FarmConditions, limit int) ([]*models.EstimationResult, error) {
	probe, err := normalizeInput(cond.ForCrop(""))
	if err != nil {
		return nil, err
	}
	cond.Season = probe.Season

	var crops []*models.CropRecord
	if cond.Category != "" {
		if !cond.Category.Valid() {
			return nil, &models.InvalidInputError{
				Field:   "category",
				Value:   string(cond.Category),
				Message: "category must be one of fruits, vegetables, grains, pulses",
			}
		}
		crops = e.catalog.ByCategory(cond.Category)
	} else {
		crops = e.catalog.All()
	}

	results := make([]*models.EstimationResult, 0, len(crops))
	for _, crop := range crops {
		res, err := e.estimate(crop, cond.ForCrop(crop.ID))
		if err != nil {
			return nil, err
		}
		results = append(results, res)
	}

	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.SuitabilityScore != b.SuitabilityScore {
			return a.SuitabilityScore > b.SuitabilityScore
		}
		if !a.ProjectedProfit.Equal(b.ProjectedProfit) {
			return a.ProjectedProfit.GreaterThan(b.ProjectedProfit)
		}
		return a.CropID < b.CropID
	})

	if limit > 0 && limit < len(results) {
		results = results[:limit]
	}
	return results, nil
}

// normalizeInput validates the request and canonicalises the season tag
func normalizeInput(in models.FarmInput) (models.FarmInput, error) {
	if math.IsNaN(in.AreaAcres) || math.IsInf(in.AreaAcres, 0) || in.AreaAcres <= 0 {
		return in, &models.InvalidInputError{
			Field:   "areaAcres",
			Value:   fmt.Sprintf("%g", in.AreaAcres),
			Message: "area must be a positive number of acres",
		}
	}

	if strings.TrimSpace(in.SoilType) == "" {
		return in, &models.InvalidInputError{
			Field:   "soilType",
			Value:   in.SoilType,
			Message: "soil type is required",
		}
	}

	season, err := models.ParseSeason(string(in.Season))
	if err != nil {
		return in, err
	}
	in.Season = season

	if t := in.RegionTemperature; t != nil && (math.IsNaN(*t) || math.IsInf(*t, 0)) {
		return in, &models.InvalidInputError{
			Field:   "regionTemperature",
			Value:   fmt.Sprintf("%g", *t),
			Message: "temperature must be a finite number",
		}
	}

	if c := in.CostPerAcre; c != nil && (math.IsNaN(*c) || math.IsInf(*c, 0) || *c < 0) {
		return in, &models.InvalidInputError{
			Field:   "costPerAcre",
			Value:   fmt.Sprintf("%g", *c),
			Message: "cost per acre must be a non-negative number",
		}
	}

	return in, nil
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
