package models

import (
	"testing"
	"time"
)

func TestRawClimateRecord_ToObservation(t *testing.T) {
	tests := []struct {
		name        string
		record      RawClimateRecord
		region      string
		wantErr     bool
		checkValues func(*testing.T, *ClimateObservation)
	}{
		{
			name: "valid record with all values",
			record: RawClimateRecord{
				Date:                 "20230115",
				MaxTemperatureTenths: 250,
				MinTemperatureTenths: 150,
				PrecipitationTenths:  100,
			},
			region: "PB-LDH",
			checkValues: func(t *testing.T, obs *ClimateObservation) {
				if obs.Region != "PB-LDH" {
					t.Errorf("Region = %v, want %v", obs.Region, "PB-LDH")
				}

				expectedDate := time.Date(2023, 1, 15, 0, 0, 0, 0, time.UTC)
				if !obs.ObservationDate.Equal(expectedDate) {
					t.Errorf("ObservationDate = %v, want %v", obs.ObservationDate, expectedDate)
				}

				if obs.MaxTemperatureCelsius == nil || *obs.MaxTemperatureCelsius != 25.0 {
					t.Errorf("MaxTemperatureCelsius = %v, want 25", obs.MaxTemperatureCelsius)
				}
				if obs.MinTemperatureCelsius == nil || *obs.MinTemperatureCelsius != 15.0 {
					t.Errorf("MinTemperatureCelsius = %v, want 15", obs.MinTemperatureCelsius)
				}
				if obs.PrecipitationMm == nil || *obs.PrecipitationMm != 10.0 {
					t.Errorf("PrecipitationMm = %v, want 10", obs.PrecipitationMm)
				}

				mean := obs.MeanTemperature()
				if mean == nil || *mean != 20.0 {
					t.Errorf("MeanTemperature() = %v, want 20", mean)
				}
			},
		},
		{
			name: "missing max temperature",
			record: RawClimateRecord{
				Date:                 "20230115",
				MaxTemperatureTenths: MissingValue,
				MinTemperatureTenths: 150,
				PrecipitationTenths:  100,
			},
			region: "PB-LDH",
			checkValues: func(t *testing.T, obs *ClimateObservation) {
				if obs.MaxTemperatureCelsius != nil {
					t.Error("MaxTemperatureCelsius should be nil for -9999")
				}
				if obs.MeanTemperature() != nil {
					t.Error("MeanTemperature() should be nil when an extreme is missing")
				}
			},
		},
		{
			name: "all values missing",
			record: RawClimateRecord{
				Date:                 "20230715",
				MaxTemperatureTenths: MissingValue,
				MinTemperatureTenths: MissingValue,
				PrecipitationTenths:  MissingValue,
			},
			region: "MH-PUN",
			checkValues: func(t *testing.T, obs *ClimateObservation) {
				if obs.MaxTemperatureCelsius != nil || obs.MinTemperatureCelsius != nil || obs.PrecipitationMm != nil {
					t.Error("all readings should be nil")
				}
			},
		},
		{
			name: "precision of tenths conversion",
			record: RawClimateRecord{
				Date:                 "20230115",
				MaxTemperatureTenths: 255,
				MinTemperatureTenths: 144,
				PrecipitationTenths:  123,
			},
			region: "KA-BLR",
			checkValues: func(t *testing.T, obs *ClimateObservation) {
				if *obs.MaxTemperatureCelsius != 25.5 {
					t.Errorf("MaxTemperatureCelsius = %v, want 25.5", *obs.MaxTemperatureCelsius)
				}
				if *obs.MinTemperatureCelsius != 14.4 {
					t.Errorf("MinTemperatureCelsius = %v, want 14.4", *obs.MinTemperatureCelsius)
				}
				if *obs.PrecipitationMm != 12.3 {
					t.Errorf("PrecipitationMm = %v, want 12.3", *obs.PrecipitationMm)
				}
			},
		},
		{
			name: "invalid date format",
			record: RawClimateRecord{
				Date:                 "2023-01-15",
				MaxTemperatureTenths: 250,
				MinTemperatureTenths: 150,
			},
			region:  "PB-LDH",
			wantErr: true,
		},
		{
			name: "min above max",
			record: RawClimateRecord{
				Date:                 "20230115",
				MaxTemperatureTenths: 100,
				MinTemperatureTenths: 150,
			},
			region:  "PB-LDH",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obs, err := tt.record.ToObservation(tt.region)

			if (err != nil) != tt.wantErr {
				t.Errorf("ToObservation() error = %v, wantErr %v", err, tt.wantErr)
				return
			}

			if !tt.wantErr && tt.checkValues != nil {
				tt.checkValues(t, obs)
			}
		})
	}
}

func TestSeasonForMonth(t *testing.T) {
	tests := []struct {
		month time.Month
		want  Season
	}{
		{time.January, SeasonWinter},
		{time.February, SeasonWinter},
		{time.March, SeasonSpring},
		{time.April, SeasonSpring},
		{time.May, SeasonSummer},
		{time.June, SeasonSummer},
		{time.July, SeasonMonsoon},
		{time.October, SeasonMonsoon},
		{time.November, SeasonWinter},
		{time.December, SeasonWinter},
	}

	for _, tt := range tests {
		if got := SeasonForMonth(tt.month); got != tt.want {
			t.Errorf("SeasonForMonth(%v) = %v, want %v", tt.month, got, tt.want)
		}
	}

	total := 0
	for _, s := range Seasons {
		total += len(MonthsForSeason(s))
	}
	if total != 12 {
		t.Errorf("seasons cover %d months, want 12", total)
	}
}
