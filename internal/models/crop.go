package models

import (
	"fmt"
	"math"
	"strings"
)

// Category groups crops the way the catalog and the dashboards present them
type Category string

const (
	CategoryFruits     Category = "fruits"
	CategoryVegetables Category = "vegetables"
	CategoryGrains     Category = "grains"
	CategoryPulses     Category = "pulses"
)

// Categories lists every category in catalog display order
var Categories = []Category{CategoryFruits, CategoryVegetables, CategoryGrains, CategoryPulses}

// Valid reports whether c is one of the known categories
func (c Category) Valid() bool {
	switch c {
	case CategoryFruits, CategoryVegetables, CategoryGrains, CategoryPulses:
		return true
	}
	return false
}

// ParseCategory parses a category case-insensitively
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", &InvalidInputError{
			Field:   "category",
			Value:   s,
			Message: "category must be one of fruits, vegetables, grains, pulses",
		}
	}
	return c, nil
}

// Season is a coarse planting-window label
type Season string

const (
	SeasonSummer  Season = "Summer"
	SeasonMonsoon Season = "Monsoon"
	SeasonWinter  Season = "Winter"
	SeasonSpring  Season = "Spring"
)

// Seasons lists every season tag
var Seasons = []Season{SeasonSummer, SeasonMonsoon, SeasonWinter, SeasonSpring}

// Valid reports whether s is a canonical season tag
func (s Season) Valid() bool {
	switch s {
	case SeasonSummer, SeasonMonsoon, SeasonWinter, SeasonSpring:
		return true
	}
	return false
}

// ParseSeason accepts a season tag in any letter case and returns its canonical form
func ParseSeason(s string) (Season, error) {
	trimmed := strings.TrimSpace(s)
	for _, season := range Seasons {
		if strings.EqualFold(trimmed, string(season)) {
			return season, nil
		}
	}
	return "", &InvalidInputError{
		Field:   "season",
		Value:   s,
		Message: "season must be one of Summer, Monsoon, Winter, Spring",
	}
}

// WaterRequirement is the irrigation tier of a crop
type WaterRequirement string

const (
	WaterLow    WaterRequirement = "low"
	WaterMedium WaterRequirement = "medium"
	WaterHigh   WaterRequirement = "high"
)

// Valid reports whether w is a known water tier
func (w WaterRequirement) Valid() bool {
	switch w {
	case WaterLow, WaterMedium, WaterHigh:
		return true
	}
	return false
}

// CropRecord describes one crop's agronomic requirements and economics.
// AvgYield is per acre and MarketPrice is rupees per unit of yield.
type CropRecord struct {
	ID               string           `json:"id" yaml:"id" db:"id"`
	Name             string           `json:"name" yaml:"name" db:"name"`
	Category         Category         `json:"category" yaml:"category" db:"category"`
	ViableSeasons    []Season         `json:"viable_seasons" yaml:"viable_seasons"`
	ViableSoilTypes  []string         `json:"viable_soil_types" yaml:"viable_soil_types"`
	MinTemp          float64          `json:"min_temp" yaml:"min_temp" db:"min_temp"`
	MaxTemp          float64          `json:"max_temp" yaml:"max_temp" db:"max_temp"`
	WaterRequirement WaterRequirement `json:"water_requirement" yaml:"water_requirement" db:"water_requirement"`
	GrowthDays       int              `json:"growth_days" yaml:"growth_days" db:"growth_days"`
	AvgYield         *float64         `json:"avg_yield,omitempty" yaml:"avg_yield,omitempty" db:"avg_yield"`
	MarketPrice      float64          `json:"market_price" yaml:"market_price" db:"market_price"`
	Image            string           `json:"image,omitempty" yaml:"image,omitempty" db:"image"`
}

// Validate checks the record invariants
func (c *CropRecord) Validate() error {
	fail := func(field, value, message string) error {
		return &ValidationError{Field: field, Value: value, Message: fmt.Sprintf("crop %q: %s", c.ID, message)}
	}

	if strings.TrimSpace(c.ID) == "" {
		return &ValidationError{Field: "id", Message: "crop id is required"}
	}
	if strings.TrimSpace(c.Name) == "" {
		return fail("name", c.Name, "name is required")
	}
	if !c.Category.Valid() {
		return fail("category", string(c.Category), "unknown category")
	}
	if len(c.ViableSeasons) == 0 {
		return fail("viable_seasons", "", "at least one viable season is required")
	}
	for _, s := range c.ViableSeasons {
		if !s.Valid() {
			return fail("viable_seasons", string(s), "unknown season")
		}
	}
	if len(c.ViableSoilTypes) == 0 {
		return fail("viable_soil_types", "", "at least one viable soil type is required")
	}
	for _, soil := range c.ViableSoilTypes {
		if strings.TrimSpace(soil) == "" {
			return fail("viable_soil_types", soil, "soil type must not be blank")
		}
	}
	numbers := []struct {
		field string
		value *float64
	}{
		{"min_temp", &c.MinTemp},
		{"max_temp", &c.MaxTemp},
		{"avg_yield", c.AvgYield},
		{"market_price", &c.MarketPrice},
	}
	for _, n := range numbers {
		if n.value != nil && (math.IsNaN(*n.value) || math.IsInf(*n.value, 0)) {
			return fail(n.field, fmt.Sprintf("%g", *n.value), n.field+" must be a finite number")
		}
	}
	if c.MinTemp > c.MaxTemp {
		return fail("min_temp", fmt.Sprintf("%g", c.MinTemp), "min_temp must not exceed max_temp")
	}
	if !c.WaterRequirement.Valid() {
		return fail("water_requirement", string(c.WaterRequirement), "unknown water requirement")
	}
	if c.GrowthDays <= 0 {
		return fail("growth_days", fmt.Sprintf("%d", c.GrowthDays), "growth_days must be positive")
	}
	if c.AvgYield != nil && *c.AvgYield <= 0 {
		return fail("avg_yield", fmt.Sprintf("%g", *c.AvgYield), "avg_yield must be positive when present")
	}
	if c.MarketPrice <= 0 {
		return fail("market_price", fmt.Sprintf("%g", c.MarketPrice), "market_price must be positive")
	}

	return nil
}

// HasSeason reports whether season is one of the crop's viable seasons
func (c *CropRecord) HasSeason(season Season) bool {
	for _, s := range c.ViableSeasons {
		if s == season {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so callers cannot mutate shared catalog state
func (c *CropRecord) Clone() *CropRecord {
	out := *c
	out.ViableSeasons = append([]Season(nil), c.ViableSeasons...)
	out.ViableSoilTypes = append([]string(nil), c.ViableSoilTypes...)
	if c.AvgYield != nil {
		y := *c.AvgYield
		out.AvgYield = &y
	}
	return &out
}
