package estimator

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/shopspring/decimal"

	"crop-estimator/internal/catalog"
	"crop-estimator/internal/models"
)

func float64Ptr(v float64) *float64 { return &v }

func newTestEstimator(t *testing.T, opts ...Option) *Estimator {
	t.Helper()
	c, err := catalog.Default()
	if err != nil {
		t.Fatalf("catalog.Default() error = %v", err)
	}
	e, err := New(c, opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return e
}

func wheatInput() models.FarmInput {
	return models.FarmInput{
		CropID:            "wheat",
		AreaAcres:         10,
		SoilType:          "Loamy",
		Season:            models.SeasonWinter,
		RegionTemperature: float64Ptr(18),
	}
}

func TestEstimate_WheatScenario(t *testing.T) {
	e := newTestEstimator(t)

	res, err := e.Estimate(wheatInput())
	if err != nil {
		t.Fatalf("Estimate() error = %v", err)
	}

	if !res.Compatibility.SeasonOK || !res.Compatibility.TemperatureOK || !res.Compatibility.SoilOK {
		t.Errorf("Compatibility = %+v, want all true", res.Compatibility)
	}
	if res.SuitabilityScore <= 70 {
		t.Errorf("SuitabilityScore = %v, want > 70", res.SuitabilityScore)
	}
	if res.SuitabilityScore != 98 {
		t.Errorf("SuitabilityScore = %v, want 98 (40 season + 30 soil + 28 temperature)", res.SuitabilityScore)
	}

	if res.YieldSource != models.YieldFromCatalog || res.HasDataGap() {
		t.Errorf("YieldSource = %v, warnings = %v", res.YieldSource, res.Warnings)
	}
	if res.ProjectedYield != 10*3.2 {
		t.Errorf("ProjectedYield = %v, want %v", res.ProjectedYield, 10*3.2)
	}

	wantRevenue := decimal.NewFromFloat(res.ProjectedYield).Mul(decimal.NewFromInt(27)).Round(2)
	if !res.ProjectedRevenue.Equal(wantRevenue) {
		t.Errorf("ProjectedRevenue = %v, want %v", res.ProjectedRevenue, wantRevenue)
	}
	if !res.ProjectedRevenue.Equal(decimal.NewFromInt(864)) {
		t.Errorf("ProjectedRevenue = %v, want 864", res.ProjectedRevenue)
	}
	if !res.ProjectedCost.IsZero() {
		t.Errorf("ProjectedCost = %v, want 0 without a cost assumption", res.ProjectedCost)
	}
	if res.HarvestEstimateDays != 115 {
		t.Errorf("HarvestEstimateDays = %d, want 115", res.HarvestEstimateDays)
	}
}

func TestEstimate_SeasonMismatchScenario(t *testing.T) {
	e := newTestEstimator(t)

	match, err := e.Estimate(wheatInput())
	if err != nil {
		t.Fatalf("Estimate(Winter) error = %v", err)
	}

	in := wheatInput()
	in.Season = models.SeasonSummer
	mismatch, err := e.Estimate(in)
	if err != nil {
		t.Fatalf("Estimate(Summer) error = %v", err)
	}

	if mismatch.Compatibility.SeasonOK {
		t.Error("SeasonOK = true for Summer wheat")
	}
	if drop := match.SuitabilityScore - mismatch.SuitabilityScore; drop < 40-1e-9 {
		t.Errorf("score drop = %v, want >= 40", drop)
	}
}

func TestEstimate_SeasonDominance(t *testing.T) {
	e := newTestEstimator(t)

	for _, crop := range e.Catalog().All() {
		for _, season := range models.Seasons {
			if crop.HasSeason(season) {
				continue
			}

			bad := models.FarmInput{CropID: crop.ID, AreaAcres: 5, SoilType: "Sandy Loam", Season: season,
				RegionTemperature: float64Ptr((crop.MinTemp + crop.MaxTemp) / 2)}
			good := bad
			good.Season = crop.ViableSeasons[0]

			badRes, err := e.Estimate(bad)
			if err != nil {
				t.Fatalf("Estimate(%s, %s) error = %v", crop.ID, season, err)
			}
			goodRes, err := e.Estimate(good)
			if err != nil {
				t.Fatalf("Estimate(%s, %s) error = %v", crop.ID, good.Season, err)
			}

			if badRes.SuitabilityScore >= goodRes.SuitabilityScore {
				t.Errorf("%s: out-of-season score %v not below in-season score %v",
					crop.ID, badRes.SuitabilityScore, goodRes.SuitabilityScore)
			}
		}
	}
}

func TestEstimate_Bounds(t *testing.T) {
	e := newTestEstimator(t)

	soils := []string{"Loamy", "Black Soil", "Sandy Loam", "Clay", "pH 7", "Well-drained Loamy/Sandy"}
	temps := []*float64{nil, float64Ptr(-40), float64Ptr(0), float64Ptr(22), float64Ptr(60)}

	for _, crop := range e.Catalog().All() {
		for _, season := range models.Seasons {
			for _, soil := range soils {
				for _, temp := range temps {
					res, err := e.Estimate(models.FarmInput{
						CropID: crop.ID, AreaAcres: 1, SoilType: soil, Season: season, RegionTemperature: temp,
					})
					if err != nil {
						t.Fatalf("Estimate() error = %v", err)
					}
					if res.SuitabilityScore < 0 || res.SuitabilityScore > 100 {
						t.Fatalf("%s/%s/%s: score %v out of bounds", crop.ID, season, soil, res.SuitabilityScore)
					}
				}
			}
		}
	}
}

func TestEstimate_ExtremeFiniteValues(t *testing.T) {
	e := newTestEstimator(t)

	tests := []struct {
		name     string
		area     float64
		cost     *float64
		wantCost decimal.Decimal
	}{
		{name: "huge area", area: 1e300, wantCost: decimal.Zero},
		{name: "huge area and cost", area: 1e300, cost: float64Ptr(1e300), wantCost: decimal.New(1, 600)},
		{name: "huge cost", area: 1, cost: float64Ptr(math.MaxFloat64), wantCost: decimal.NewFromFloat(math.MaxFloat64)},
		{name: "tiny area", area: math.SmallestNonzeroFloat64, wantCost: decimal.Zero},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := wheatInput()
			in.AreaAcres = tt.area
			in.CostPerAcre = tt.cost

			res, err := e.Estimate(in)
			if err != nil {
				t.Fatalf("Estimate() error = %v", err)
			}
			if math.IsInf(res.ProjectedYield, 0) || math.IsNaN(res.ProjectedYield) {
				t.Errorf("ProjectedYield = %v, want finite", res.ProjectedYield)
			}
			if !res.ProjectedCost.Equal(tt.wantCost) {
				t.Errorf("ProjectedCost = %v, want %v", res.ProjectedCost, tt.wantCost)
			}
			if !res.ProjectedProfit.Equal(res.ProjectedRevenue.Sub(res.ProjectedCost)) {
				t.Error("profit is not revenue minus cost")
			}
			if _, err := json.Marshal(res); err != nil {
				t.Errorf("json.Marshal() error = %v", err)
			}
		})
	}
}

func TestRecommend_AreaOverflow(t *testing.T) {
	e := newTestEstimator(t)

	_, err := e.Recommend(models.FarmConditions{AreaAcres: math.MaxFloat64, SoilType: "Loamy", Season: models.SeasonWinter}, 5)
	if !models.IsInvalidInput(err) {
		t.Fatalf("Recommend() error = %v, want InvalidInputError", err)
	}
}

func TestEstimate_Determinism(t *testing.T) {
	e := newTestEstimator(t)

	in := wheatInput()
	in.CostPerAcre = float64Ptr(12500.75)

	first, err := e.Estimate(in)
	if err != nil {
		t.Fatalf("Estimate() error = %v", err)
	}
	firstJSON, _ := json.Marshal(first)

	for i := 0; i < 20; i++ {
		again, err := e.Estimate(in)
		if err != nil {
			t.Fatalf("Estimate() error = %v", err)
		}
		againJSON, _ := json.Marshal(again)
		if string(againJSON) != string(firstJSON) {
			t.Fatalf("run %d differs:\n%s\n%s", i, againJSON, firstJSON)
		}
	}
}

func TestEstimate_AreaLinearity(t *testing.T) {
	e := newTestEstimator(t)

	for _, cropID := range []string{"wheat", "rice", "tomato", "banana", "lentil"} {
		for _, area := range []float64{0.25, 1, 3.7, 10, 1234.5} {
			in := models.FarmInput{CropID: cropID, AreaAcres: area, SoilType: "Loamy", Season: models.SeasonWinter}
			single, err := e.Estimate(in)
			if err != nil {
				t.Fatalf("Estimate() error = %v", err)
			}

			in.AreaAcres = 2 * area
			double, err := e.Estimate(in)
			if err != nil {
				t.Fatalf("Estimate() error = %v", err)
			}

			if double.ProjectedYield != 2*single.ProjectedYield {
				t.Errorf("%s area %v: yield(2x) = %v, want %v", cropID, area, double.ProjectedYield, 2*single.ProjectedYield)
			}
		}
	}
}

func TestEstimate_ProfitIdentity(t *testing.T) {
	e := newTestEstimator(t)

	costs := []*float64{nil, float64Ptr(0), float64Ptr(999.99), float64Ptr(18000), float64Ptr(1e6)}
	for _, crop := range e.Catalog().All() {
		for _, cost := range costs {
			res, err := e.Estimate(models.FarmInput{
				CropID: crop.ID, AreaAcres: 7.3, SoilType: "Loamy", Season: models.SeasonMonsoon, CostPerAcre: cost,
			})
			if err != nil {
				t.Fatalf("Estimate() error = %v", err)
			}
			if !res.ProjectedProfit.Equal(res.ProjectedRevenue.Sub(res.ProjectedCost)) {
				t.Errorf("%s: profit %v != revenue %v - cost %v",
					crop.ID, res.ProjectedProfit, res.ProjectedRevenue, res.ProjectedCost)
			}
		}
	}
}

func TestEstimate_CostProjection(t *testing.T) {
	e := newTestEstimator(t)

	in := wheatInput()
	in.CostPerAcre = float64Ptr(15000)

	res, err := e.Estimate(in)
	if err != nil {
		t.Fatalf("Estimate() error = %v", err)
	}
	if !res.ProjectedCost.Equal(decimal.NewFromInt(150000)) {
		t.Errorf("ProjectedCost = %v, want 150000", res.ProjectedCost)
	}
	if !res.ProjectedProfit.Equal(decimal.NewFromInt(864 - 150000)) {
		t.Errorf("ProjectedProfit = %v, want %d", res.ProjectedProfit, 864-150000)
	}
}

func TestEstimate_MissingOptionalFields(t *testing.T) {
	e := newTestEstimator(t)

	for _, crop := range e.Catalog().All() {
		res, err := e.Estimate(models.FarmInput{
			CropID: crop.ID, AreaAcres: 2, SoilType: "Alluvial", Season: models.SeasonSpring,
		})
		if err != nil {
			t.Fatalf("%s: Estimate() error = %v", crop.ID, err)
		}
		if !res.Compatibility.TemperatureOK {
			t.Errorf("%s: TemperatureOK = false without a temperature", crop.ID)
		}
		if res.ScoreBreakdown.Temperature != DefaultWeights.Temperature {
			t.Errorf("%s: temperature points = %v, want full credit", crop.ID, res.ScoreBreakdown.Temperature)
		}
	}
}

func TestEstimate_YieldFallback(t *testing.T) {
	e := newTestEstimator(t)

	tests := []struct {
		name       string
		cropID     string
		wantSource models.YieldSource
		wantYield  float64
	}{
		{name: "grain without yield uses grain average", cropID: "rice", wantSource: models.YieldFromCategoryAverage, wantYield: 3.2},
		{name: "vegetable without yield uses vegetable average", cropID: "onion", wantSource: models.YieldFromCategoryAverage, wantYield: 60},
		{name: "pulse category has no yield data", cropID: "chickpea", wantSource: models.YieldUnavailable, wantYield: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := e.Estimate(models.FarmInput{CropID: tt.cropID, AreaAcres: 1, SoilType: "Loamy", Season: models.SeasonWinter})
			if err != nil {
				t.Fatalf("Estimate() error = %v", err)
			}
			if res.YieldSource != tt.wantSource {
				t.Errorf("YieldSource = %v, want %v", res.YieldSource, tt.wantSource)
			}
			if math.Abs(res.YieldPerAcre-tt.wantYield) > 1e-9 {
				t.Errorf("YieldPerAcre = %v, want %v", res.YieldPerAcre, tt.wantYield)
			}
			if len(res.Warnings) != 1 || res.Warnings[0].Field != "avg_yield" || res.Warnings[0].CropID != tt.cropID {
				t.Errorf("Warnings = %+v, want one avg_yield data gap", res.Warnings)
			}
		})
	}
}

func TestEstimate_Errors(t *testing.T) {
	e := newTestEstimator(t)

	tests := []struct {
		name         string
		mutate       func(*models.FarmInput)
		wantNotFound bool
		wantField    string
	}{
		{name: "unknown crop", mutate: func(in *models.FarmInput) { in.CropID = "nonexistent" }, wantNotFound: true},
		{name: "zero area", mutate: func(in *models.FarmInput) { in.AreaAcres = 0 }, wantField: "areaAcres"},
		{name: "negative area", mutate: func(in *models.FarmInput) { in.AreaAcres = -3 }, wantField: "areaAcres"},
		{name: "NaN area", mutate: func(in *models.FarmInput) { in.AreaAcres = math.NaN() }, wantField: "areaAcres"},
		{name: "zero area on unknown crop", mutate: func(in *models.FarmInput) { in.AreaAcres = 0; in.CropID = "x" }, wantField: "areaAcres"},
		{name: "blank soil", mutate: func(in *models.FarmInput) { in.SoilType = "  " }, wantField: "soilType"},
		{name: "bad season", mutate: func(in *models.FarmInput) { in.Season = "Autumn" }, wantField: "season"},
		{name: "infinite temperature", mutate: func(in *models.FarmInput) { in.RegionTemperature = float64Ptr(math.Inf(1)) }, wantField: "regionTemperature"},
		{name: "negative cost", mutate: func(in *models.FarmInput) { in.CostPerAcre = float64Ptr(-1) }, wantField: "costPerAcre"},
		{name: "area overflows projected yield", mutate: func(in *models.FarmInput) { in.AreaAcres = math.MaxFloat64 }, wantField: "areaAcres"},
		{name: "area overflows after multiplying by yield", mutate: func(in *models.FarmInput) { in.AreaAcres = 1e308 }, wantField: "areaAcres"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := wheatInput()
			tt.mutate(&in)

			res, err := e.Estimate(in)
			if err == nil {
				t.Fatalf("Estimate() = %+v, want error", res)
			}

			if tt.wantNotFound {
				var nf *models.NotFoundError
				if !errors.As(err, &nf) {
					t.Errorf("error = %T %v, want *NotFoundError", err, err)
				}
				return
			}

			var ie *models.InvalidInputError
			if !errors.As(err, &ie) {
				t.Fatalf("error = %T %v, want *InvalidInputError", err, err)
			}
			if ie.Field != tt.wantField {
				t.Errorf("InvalidInputError.Field = %q, want %q", ie.Field, tt.wantField)
			}
		})
	}
}

func TestEstimate_SeasonCaseInsensitive(t *testing.T) {
	e := newTestEstimator(t)

	in := wheatInput()
	in.Season = "winter"
	res, err := e.Estimate(in)
	if err != nil {
		t.Fatalf("Estimate() error = %v", err)
	}
	if !res.Compatibility.SeasonOK {
		t.Error("lower-case season tag should match")
	}
}

func TestTemperatureFit(t *testing.T) {
	wheat := &models.CropRecord{MinTemp: 10, MaxTemp: 25}
	point := &models.CropRecord{MinTemp: 20, MaxTemp: 20}

	tests := []struct {
		name string
		crop *models.CropRecord
		temp *float64
		want float64
	}{
		{name: "unknown", crop: wheat, temp: nil, want: 1},
		{name: "midpoint", crop: wheat, temp: float64Ptr(17.5), want: 1},
		{name: "halfway to bound", crop: wheat, temp: float64Ptr(13.75), want: 0.5},
		{name: "at lower bound", crop: wheat, temp: float64Ptr(10), want: 0},
		{name: "at upper bound", crop: wheat, temp: float64Ptr(25), want: 0},
		{name: "beyond bound", crop: wheat, temp: float64Ptr(40), want: 0},
		{name: "degenerate range hit", crop: point, temp: float64Ptr(20), want: 1},
		{name: "degenerate range miss", crop: point, temp: float64Ptr(20.5), want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := temperatureFit(tt.crop, tt.temp); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("temperatureFit() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWeights(t *testing.T) {
	if err := DefaultWeights.Validate(); err != nil {
		t.Errorf("DefaultWeights.Validate() error = %v", err)
	}

	c, _ := catalog.Default()
	if _, err := New(c, WithWeights(Weights{Season: 50, Soil: 30, Temperature: 30})); err == nil {
		t.Error("New() with weights summing to 110 should fail")
	}
	if _, err := New(c, WithWeights(Weights{Season: 110, Soil: -10, Temperature: 0})); err == nil {
		t.Error("New() with a negative weight should fail")
	}
	if _, err := New(nil); err == nil {
		t.Error("New(nil) should fail")
	}

	e := newTestEstimator(t, WithWeights(Weights{Season: 60, Soil: 20, Temperature: 20}))
	in := wheatInput()
	in.RegionTemperature = nil
	res, err := e.Estimate(in)
	if err != nil {
		t.Fatalf("Estimate() error = %v", err)
	}
	if res.SuitabilityScore != 100 || res.ScoreBreakdown.Season != 60 {
		t.Errorf("score = %v breakdown = %+v", res.SuitabilityScore, res.ScoreBreakdown)
	}
}

func TestRecommend(t *testing.T) {
	e := newTestEstimator(t)

	results, err := e.Recommend(models.FarmConditions{
		AreaAcres:         10,
		SoilType:          "Loamy",
		Season:            "winter",
		RegionTemperature: float64Ptr(18),
		Category:          models.CategoryGrains,
	}, 2)
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("Recommend() returned %d results, want 2", len(results))
	}
	if results[0].CropID != "wheat" {
		t.Errorf("top grain for a cool Loamy winter = %s, want wheat", results[0].CropID)
	}
	if results[0].SuitabilityScore < results[1].SuitabilityScore {
		t.Error("results are not sorted by score")
	}

	all, err := e.Recommend(models.FarmConditions{AreaAcres: 1, SoilType: "Sandy Loam", Season: models.SeasonSummer}, 0)
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}
	if len(all) != e.Catalog().Len() {
		t.Errorf("Recommend(limit 0) returned %d results, want %d", len(all), e.Catalog().Len())
	}
	for i := 1; i < len(all); i++ {
		if all[i-1].SuitabilityScore < all[i].SuitabilityScore {
			t.Fatalf("results out of order at %d", i)
		}
	}

	if _, err := e.Recommend(models.FarmConditions{AreaAcres: 0, SoilType: "Loamy", Season: models.SeasonWinter}, 5); !models.IsInvalidInput(err) {
		t.Errorf("Recommend(area 0) error = %v, want InvalidInputError", err)
	}
	if _, err := e.Recommend(models.FarmConditions{AreaAcres: 1, SoilType: "Loamy", Season: models.SeasonWinter, Category: "nuts"}, 5); !models.IsInvalidInput(err) {
		t.Errorf("Recommend(bad category) error = %v, want InvalidInputError", err)
	}
}
