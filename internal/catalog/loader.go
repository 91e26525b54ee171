package catalog

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
	"gopkg.in/yaml.v3"

	"crop-estimator/internal/models"
)

// Format identifies a catalog file encoding
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatXLSX Format = "xlsx"
)

// FormatFromPath infers the file format from its extension
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return FormatCSV, nil
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".xlsx":
		return FormatXLSX, nil
	}
	return "", fmt.Errorf("unsupported catalog file extension: %s", filepath.Ext(path))
}

// LoadFile reads crop records from a catalog file. Records are not validated
// here; pass them to New.
func LoadFile(path string) ([]*models.CropRecord, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog file: %w", err)
	}
	defer f.Close()

	records, err := Parse(format, f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return records, nil
}

// LoadCatalog reads and validates a catalog file
func LoadCatalog(path string) (*Catalog, error) {
	records, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	return New(records)
}

// Parse decodes crop records in the given format
func Parse(format Format, r io.Reader) ([]*models.CropRecord, error) {
	switch format {
	case FormatCSV:
		return ParseCSV(r)
	case FormatJSON:
		return ParseJSON(r)
	case FormatYAML:
		return ParseYAML(r)
	case FormatXLSX:
		return ParseXLSX(r)
	}
	return nil, fmt.Errorf("unsupported catalog format: %s", format)
}

// ParseJSON decodes a JSON array of crop records
func ParseJSON(r io.Reader) ([]*models.CropRecord, error) {
	var records []*models.CropRecord
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, fmt.Errorf("failed to decode catalog json: %w", err)
	}
	return canonicalize(records), nil
}

// ParseYAML decodes either a top-level sequence of crops or a mapping with a
// "crops" key
func ParseYAML(r io.Reader) ([]*models.CropRecord, error) {
	var root yaml.Node
	if err := yaml.NewDecoder(r).Decode(&root); err != nil {
		return nil, fmt.Errorf("failed to decode catalog yaml: %w", err)
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return nil, errors.New("catalog yaml is empty")
	}

	doc := root.Content[0]
	var records []*models.CropRecord
	switch doc.Kind {
	case yaml.SequenceNode:
		if err := doc.Decode(&records); err != nil {
			return nil, fmt.Errorf("failed to decode catalog yaml: %w", err)
		}
	case yaml.MappingNode:
		var wrapped struct {
			Crops []*models.CropRecord `yaml:"crops"`
		}
		if err := doc.Decode(&wrapped); err != nil {
			return nil, fmt.Errorf("failed to decode catalog yaml: %w", err)
		}
		records = wrapped.Crops
	default:
		return nil, errors.New("catalog yaml must be a list of crops or a mapping with a crops key")
	}
	return canonicalize(records), nil
}

// ParseCSV decodes a CSV catalog with a header row
func ParseCSV(r io.Reader) ([]*models.CropRecord, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog csv: %w", err)
	}
	return parseTable(rows)
}

// ParseXLSX decodes the first sheet of a workbook laid out like the CSV format
func ParseXLSX(r io.Reader) ([]*models.CropRecord, error) {
	x, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog workbook: %w", err)
	}
	defer x.Close()

	sheets := x.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("catalog workbook has no sheets")
	}

	rows, err := x.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheets[0], err)
	}
	return parseTable(rows)
}

type columns struct {
	id, name, category, seasons, soils  int
	minTemp, maxTemp, water, growthDays int
	avgYield, marketPrice, image        int
}

func normHeader(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "\uFEFF")
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, "-", "")
	s = strings.ReplaceAll(s, "_", "")
	return s
}

func resolveColumns(head []string) (columns, error) {
	hmap := make(map[string]int, len(head))
	for i, h := range head {
		hmap[normHeader(h)] = i
	}
	findAny := func(keys ...string) int {
		for _, k := range keys {
			if idx, ok := hmap[normHeader(k)]; ok {
				return idx
			}
		}
		return -1
	}

	c := columns{
		id:          findAny("id", "crop_id"),
		name:        findAny("name", "crop", "crop_name"),
		category:    findAny("category", "type"),
		seasons:     findAny("viable_seasons", "seasons", "season"),
		soils:       findAny("viable_soil_types", "soil_types", "soils", "soil"),
		minTemp:     findAny("min_temp", "min_temperature", "tmin"),
		maxTemp:     findAny("max_temp", "max_temperature", "tmax"),
		water:       findAny("water_requirement", "water", "water_need"),
		growthDays:  findAny("growth_days", "days_to_harvest", "days"),
		avgYield:    findAny("avg_yield", "yield", "yield_per_acre"),
		marketPrice: findAny("market_price", "price", "price_per_kg"),
		image:       findAny("image", "image_url"),
	}

	required := map[string]int{
		"id": c.id, "name": c.name, "category": c.category, "viable_seasons": c.seasons,
		"viable_soil_types": c.soils, "min_temp": c.minTemp, "max_temp": c.maxTemp,
		"water_requirement": c.water, "growth_days": c.growthDays, "market_price": c.marketPrice,
	}
	var missing []string
	for _, name := range []string{"id", "name", "category", "viable_seasons", "viable_soil_types",
		"min_temp", "max_temp", "water_requirement", "growth_days", "market_price"} {
		if required[name] == -1 {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return c, fmt.Errorf("catalog header missing required columns %v, found %v", missing, head)
	}
	return c, nil
}

func parseTable(rows [][]string) ([]*models.CropRecord, error) {
	if len(rows) == 0 {
		return nil, errors.New("catalog table is empty")
	}

	cols, err := resolveColumns(rows[0])
	if err != nil {
		return nil, err
	}

	records := make([]*models.CropRecord, 0, len(rows)-1)
	for i, row := range rows[1:] {
		line := i + 2
		get := func(idx int) string {
			if idx < 0 || idx >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[idx])
		}

		if strings.Join(row, "") == "" {
			continue
		}

		rec := &models.CropRecord{
			ID:               get(cols.id),
			Name:             get(cols.name),
			Category:         models.Category(strings.ToLower(get(cols.category))),
			ViableSoilTypes:  splitList(get(cols.soils)),
			WaterRequirement: models.WaterRequirement(strings.ToLower(get(cols.water))),
			Image:            get(cols.image),
		}

		for _, s := range splitList(get(cols.seasons)) {
			rec.ViableSeasons = append(rec.ViableSeasons, models.Season(s))
		}

		if rec.MinTemp, err = parseFloat(get(cols.minTemp), "min_temp", line); err != nil {
			return nil, err
		}
		if rec.MaxTemp, err = parseFloat(get(cols.maxTemp), "max_temp", line); err != nil {
			return nil, err
		}
		if rec.MarketPrice, err = parseFloat(get(cols.marketPrice), "market_price", line); err != nil {
			return nil, err
		}
		if rec.GrowthDays, err = strconv.Atoi(get(cols.growthDays)); err != nil {
			return nil, &models.ValidationError{
				Field:   "growth_days",
				Value:   get(cols.growthDays),
				Message: fmt.Sprintf("line %d: growth_days must be an integer", line),
			}
		}
		if raw := get(cols.avgYield); raw != "" {
			y, err := parseFloat(raw, "avg_yield", line)
			if err != nil {
				return nil, err
			}
			rec.AvgYield = &y
		}

		records = append(records, rec)
	}

	return canonicalize(records), nil
}

func parseFloat(raw, field string, line int) (float64, error) {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, &models.ValidationError{
			Field:   field,
			Value:   raw,
			Message: fmt.Sprintf("line %d: %s must be a number", line, field),
		}
	}
	return v, nil
}

// splitList splits a multi-valued cell on ';' or '|'. Commas and slashes are
// kept because soil descriptors use them.
func splitList(cell string) []string {
	parts := strings.FieldsFunc(cell, func(r rune) bool { return r == ';' || r == '|' })
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// canonicalize fixes the letter case of season tags. Unknown tags are left
// alone so validation reports them.
func canonicalize(records []*models.CropRecord) []*models.CropRecord {
	for _, rec := range records {
		if rec == nil {
			continue
		}
		for i, s := range rec.ViableSeasons {
			if canon, err := models.ParseSeason(string(s)); err == nil {
				rec.ViableSeasons[i] = canon
			}
		}
		rec.Category = models.Category(strings.ToLower(string(rec.Category)))
	}
	return records
}
