// Package catalog holds the immutable crop reference dataset and the
// predicates that match a crop against farm conditions.
package catalog

import (
	"fmt"

	"crop-estimator/internal/models"
)

// Catalog is a validated, read-only set of crop records.
// It is safe for concurrent use because nothing mutates it after New returns.
type Catalog struct {
	records []*models.CropRecord
	byID    map[string]*models.CropRecord
}

// New validates records and builds a catalog. Records are copied so later
// changes to the input do not leak in.
func New(records []*models.CropRecord) (*Catalog, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("catalog must contain at least one crop")
	}

	c := &Catalog{
		records: make([]*models.CropRecord, 0, len(records)),
		byID:    make(map[string]*models.CropRecord, len(records)),
	}

	for i, rec := range records {
		if rec == nil {
			return nil, fmt.Errorf("catalog record %d is nil", i)
		}
		if err := rec.Validate(); err != nil {
			return nil, fmt.Errorf("catalog record %d: %w", i, err)
		}
		if _, exists := c.byID[rec.ID]; exists {
			return nil, &models.ValidationError{
				Field:   "id",
				Value:   rec.ID,
				Message: fmt.Sprintf("duplicate crop id %q", rec.ID),
			}
		}

		cp := rec.Clone()
		c.records = append(c.records, cp)
		c.byID[cp.ID] = cp
	}

	return c, nil
}

// Get returns a copy of the crop with the given id
func (c *Catalog) Get(cropID string) (*models.CropRecord, error) {
	rec, ok := c.byID[cropID]
	if !ok {
		return nil, &models.NotFoundError{Resource: "crop", ID: cropID}
	}
	return rec.Clone(), nil
}

// ByCategory returns the crops of one category in catalog order
func (c *Catalog) ByCategory(category models.Category) []*models.CropRecord {
	out := make([]*models.CropRecord, 0)
	for _, rec := range c.records {
		if rec.Category == category {
			out = append(out, rec.Clone())
		}
	}
	return out
}

// All returns every crop in catalog order
func (c *Catalog) All() []*models.CropRecord {
	out := make([]*models.CropRecord, len(c.records))
	for i, rec := range c.records {
		out[i] = rec.Clone()
	}
	return out
}

// IDs returns crop ids in catalog order
func (c *Catalog) IDs() []string {
	ids := make([]string, len(c.records))
	for i, rec := range c.records {
		ids[i] = rec.ID
	}
	return ids
}

// Len returns the number of crops
func (c *Catalog) Len() int {
	return len(c.records)
}

// CategoryAverageYield is the mean avg_yield over crops of the category that
// carry one. ok is false when no crop in the category has yield data.
func (c *Catalog) CategoryAverageYield(category models.Category) (avg float64, ok bool) {
	var sum float64
	var n int
	for _, rec := range c.records {
		if rec.Category == category && rec.AvgYield != nil {
			sum += *rec.AvgYield
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

// WithPrices returns a new catalog with market prices replaced for the given
// crop ids. Unknown ids are ignored; the receiver is left untouched.
func (c *Catalog) WithPrices(prices map[string]float64) (*Catalog, error) {
	records := c.All()
	for _, rec := range records {
		if p, ok := prices[rec.ID]; ok {
			rec.MarketPrice = p
		}
	}
	return New(records)
}

// IsSeasonCompatible reports exact membership of season in the crop's viable seasons
func IsSeasonCompatible(crop *models.CropRecord, season models.Season) bool {
	return crop.HasSeason(season)
}

// IsTemperatureCompatible reports whether temp lies within the crop's range,
// bounds inclusive. An unknown temperature is compatible.
func IsTemperatureCompatible(crop *models.CropRecord, temp *float64) bool {
	if temp == nil {
		return true
	}
	return crop.MinTemp <= *temp && *temp <= crop.MaxTemp
}

// IsSoilCompatible reports whether the farm soil shares at least one token
// with one of the crop's soil descriptors
func IsSoilCompatible(crop *models.CropRecord, soilType string) bool {
	return SoilOverlap(crop, soilType) > 0
}
