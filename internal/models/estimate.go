package models

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Money fields are emitted as JSON numbers rather than quoted strings.
	decimal.MarshalJSONWithoutQuotes = true
}

// FarmInput is a single estimation request.
// Region is only used by the service layer to look up a seasonal climate normal
// when RegionTemperature is absent.
type FarmInput struct {
	CropID            string   `json:"cropId"`
	AreaAcres         float64  `json:"areaAcres"`
	SoilType          string   `json:"soilType"`
	Season            Season   `json:"season"`
	RegionTemperature *float64 `json:"regionTemperature,omitempty"`
	CostPerAcre       *float64 `json:"costPerAcre,omitempty"`
	Region            string   `json:"region,omitempty"`
}

// FarmConditions describes a farm without a chosen crop, used for recommendations
type FarmConditions struct {
	AreaAcres         float64  `json:"areaAcres"`
	SoilType          string   `json:"soilType"`
	Season            Season   `json:"season"`
	RegionTemperature *float64 `json:"regionTemperature,omitempty"`
	CostPerAcre       *float64 `json:"costPerAcre,omitempty"`
	Region            string   `json:"region,omitempty"`
	Category          Category `json:"category,omitempty"`
}

// ForCrop builds the FarmInput for one crop under these conditions
func (f FarmConditions) ForCrop(cropID string) FarmInput {
	return FarmInput{
		CropID:            cropID,
		AreaAcres:         f.AreaAcres,
		SoilType:          f.SoilType,
		Season:            f.Season,
		RegionTemperature: f.RegionTemperature,
		CostPerAcre:       f.CostPerAcre,
		Region:            f.Region,
	}
}

// Compatibility exposes the individual match outcomes behind a score
type Compatibility struct {
	SeasonOK      bool `json:"seasonOk"`
	SoilOK        bool `json:"soilOk"`
	TemperatureOK bool `json:"temperatureOk"`
}

// ScoreBreakdown holds the points each factor contributed
type ScoreBreakdown struct {
	Season      float64 `json:"season"`
	Soil        float64 `json:"soil"`
	Temperature float64 `json:"temperature"`
}

// YieldSource records where the per-acre yield figure came from
type YieldSource string

const (
	YieldFromCatalog         YieldSource = "catalog"
	YieldFromCategoryAverage YieldSource = "category_average"
	YieldUnavailable         YieldSource = "unavailable"
)

// EstimationResult is the derived suitability and financial projection.
// Money values are rupees rounded to paise.
type EstimationResult struct {
	CropID              string           `json:"cropId"`
	CropName            string           `json:"cropName"`
	SuitabilityScore    float64          `json:"suitabilityScore"`
	ScoreBreakdown      ScoreBreakdown   `json:"scoreBreakdown"`
	Compatibility       Compatibility    `json:"compatibility"`
	YieldPerAcre        float64          `json:"yieldPerAcre"`
	YieldSource         YieldSource      `json:"yieldSource"`
	ProjectedYield      float64          `json:"projectedYield"`
	ProjectedRevenue    decimal.Decimal  `json:"projectedRevenue"`
	ProjectedCost       decimal.Decimal  `json:"projectedCost"`
	ProjectedProfit     decimal.Decimal  `json:"projectedProfit"`
	HarvestEstimateDays int              `json:"harvestEstimateDays"`
	WaterRequirement    WaterRequirement `json:"waterRequirement"`
	Warnings            []DataGapWarning `json:"warnings,omitempty"`
}

// HasDataGap reports whether the result was computed from fallback data
func (r *EstimationResult) HasDataGap() bool {
	return len(r.Warnings) > 0
}

// EstimateRecord is a persisted estimate with the input that produced it
type EstimateRecord struct {
	ID        string            `json:"id" db:"id"`
	Input     FarmInput         `json:"input"`
	Result    *EstimationResult `json:"result"`
	CreatedAt time.Time         `json:"created_at" db:"created_at"`
}
