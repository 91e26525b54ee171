package models

import (
	"time"
)

// MissingValue marks an absent reading in regional weather files
const MissingValue = -9999

// ClimateObservation is one day of weather for a region.
// Missing readings are nil.
type ClimateObservation struct {
	ID                    int64     `json:"id" db:"id"`
	Region                string    `json:"region" db:"region"`
	ObservationDate       time.Time `json:"observation_date" db:"observation_date"`
	MaxTemperatureCelsius *float64  `json:"max_temperature_celsius,omitempty" db:"max_temperature_celsius"`
	MinTemperatureCelsius *float64  `json:"min_temperature_celsius,omitempty" db:"min_temperature_celsius"`
	PrecipitationMm       *float64  `json:"precipitation_mm,omitempty" db:"precipitation_mm"`
	CreatedAt             time.Time `json:"created_at" db:"created_at"`
}

// MeanTemperature returns the midpoint of the day's extremes when both are known
func (o *ClimateObservation) MeanTemperature() *float64 {
	if o.MaxTemperatureCelsius == nil || o.MinTemperatureCelsius == nil {
		return nil
	}
	mean := (*o.MaxTemperatureCelsius + *o.MinTemperatureCelsius) / 2
	return &mean
}

// ClimateNormal is the long-run average for one region and season
type ClimateNormal struct {
	Region                   string    `json:"region" db:"region"`
	Season                   Season    `json:"season" db:"season"`
	AvgTemperatureCelsius    *float64  `json:"avg_temperature_celsius,omitempty" db:"avg_temperature_celsius"`
	AvgMaxTemperatureCelsius *float64  `json:"avg_max_temperature_celsius,omitempty" db:"avg_max_temperature_celsius"`
	AvgMinTemperatureCelsius *float64  `json:"avg_min_temperature_celsius,omitempty" db:"avg_min_temperature_celsius"`
	AvgPrecipitationMm       *float64  `json:"avg_precipitation_mm,omitempty" db:"avg_precipitation_mm"`
	ObservationCount         int       `json:"observation_count" db:"observation_count"`
	UpdatedAt                time.Time `json:"updated_at" db:"updated_at"`
}

// SeasonForMonth maps a calendar month onto the planting seasons used by the catalog.
// Winter is Nov-Feb, Spring Mar-Apr, Summer May-Jun and Monsoon Jul-Oct.
func SeasonForMonth(m time.Month) Season {
	switch m {
	case time.November, time.December, time.January, time.February:
		return SeasonWinter
	case time.March, time.April:
		return SeasonSpring
	case time.May, time.June:
		return SeasonSummer
	default:
		return SeasonMonsoon
	}
}

// MonthsForSeason is the inverse of SeasonForMonth
func MonthsForSeason(s Season) []time.Month {
	var months []time.Month
	for m := time.January; m <= time.December; m++ {
		if SeasonForMonth(m) == s {
			months = append(months, m)
		}
	}
	return months
}

// RawClimateRecord represents a single line from a regional weather file
// Format: YYYYMMDD\tMAX_TEMP\tMIN_TEMP\tPRECIP
type RawClimateRecord struct {
	Date                 string
	MaxTemperatureTenths int // 0.1°C, may be -9999
	MinTemperatureTenths int // 0.1°C, may be -9999
	PrecipitationTenths  int // 0.1mm, may be -9999
}

// ToObservation converts the raw line into a ClimateObservation
func (r *RawClimateRecord) ToObservation(region string) (*ClimateObservation, error) {
	date, err := time.Parse("20060102", r.Date)
	if err != nil {
		return nil, &ValidationError{
			Field:   "date",
			Value:   r.Date,
			Message: "invalid date format, expected YYYYMMDD",
		}
	}

	obs := &ClimateObservation{
		Region:          region,
		ObservationDate: date,
		CreatedAt:       time.Now().UTC(),
	}

	if r.MaxTemperatureTenths != MissingValue {
		temp := float64(r.MaxTemperatureTenths) / 10.0
		obs.MaxTemperatureCelsius = &temp
	}

	if r.MinTemperatureTenths != MissingValue {
		temp := float64(r.MinTemperatureTenths) / 10.0
		obs.MinTemperatureCelsius = &temp
	}

	if r.PrecipitationTenths != MissingValue {
		precip := float64(r.PrecipitationTenths) / 10.0
		obs.PrecipitationMm = &precip
	}

	if obs.MaxTemperatureCelsius != nil && obs.MinTemperatureCelsius != nil &&
		*obs.MinTemperatureCelsius > *obs.MaxTemperatureCelsius {
		return nil, &ValidationError{
			Field:   "min_temperature",
			Value:   r.Date,
			Message: "minimum temperature exceeds maximum temperature",
		}
	}

	return obs, nil
}
