package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"crop-estimator/internal/models"
	"crop-estimator/pkg/database"
	"crop-estimator/pkg/logging"
)

const (
	tableCrops        = "crops"
	tableMarketPrices = "market_prices"
)

var cropColumns = []string{
	"id", "name", "category", "viable_seasons", "viable_soil_types",
	"min_temp", "max_temp", "water_requirement", "growth_days",
	"avg_yield", "market_price", "image",
}

// cropRow is the database shape of a CropRecord
type cropRow struct {
	ID               string          `db:"id"`
	Name             string          `db:"name"`
	Category         string          `db:"category"`
	ViableSeasons    pq.StringArray  `db:"viable_seasons"`
	ViableSoilTypes  pq.StringArray  `db:"viable_soil_types"`
	MinTemp          float64         `db:"min_temp"`
	MaxTemp          float64         `db:"max_temp"`
	WaterRequirement string          `db:"water_requirement"`
	GrowthDays       int             `db:"growth_days"`
	AvgYield         sql.NullFloat64 `db:"avg_yield"`
	MarketPrice      float64         `db:"market_price"`
	Image            sql.NullString  `db:"image"`
}

func (row *cropRow) toRecord() *models.CropRecord {
	rec := &models.CropRecord{
		ID:               row.ID,
		Name:             row.Name,
		Category:         models.Category(row.Category),
		ViableSoilTypes:  []string(row.ViableSoilTypes),
		MinTemp:          row.MinTemp,
		MaxTemp:          row.MaxTemp,
		WaterRequirement: models.WaterRequirement(row.WaterRequirement),
		GrowthDays:       row.GrowthDays,
		MarketPrice:      row.MarketPrice,
		Image:            row.Image.String,
	}
	for _, s := range row.ViableSeasons {
		rec.ViableSeasons = append(rec.ViableSeasons, models.Season(s))
	}
	if row.AvgYield.Valid {
		y := row.AvgYield.Float64
		rec.AvgYield = &y
	}
	return rec
}

func seasonStrings(seasons []models.Season) []string {
	out := make([]string, len(seasons))
	for i, s := range seasons {
		out[i] = string(s)
	}
	return out
}

// upsertCropsQuery builds one multi-row upsert for a batch of crops
func upsertCropsQuery(crops []*models.CropRecord, now time.Time) sq.InsertBuilder {
	query := database.Builder().
		Insert(tableCrops).
		Columns(append(append([]string{}, cropColumns...), "updated_at")...)

	for _, c := range crops {
		query = query.Values(
			c.ID, c.Name, string(c.Category),
			pq.Array(seasonStrings(c.ViableSeasons)), pq.Array(c.ViableSoilTypes),
			c.MinTemp, c.MaxTemp, string(c.WaterRequirement), c.GrowthDays,
			c.AvgYield, c.MarketPrice, c.Image, now,
		)
	}

	return query.Suffix(`ON CONFLICT (id) DO UPDATE SET
		name = EXCLUDED.name,
		category = EXCLUDED.category,
		viable_seasons = EXCLUDED.viable_seasons,
		viable_soil_types = EXCLUDED.viable_soil_types,
		min_temp = EXCLUDED.min_temp,
		max_temp = EXCLUDED.max_temp,
		water_requirement = EXCLUDED.water_requirement,
		growth_days = EXCLUDED.growth_days,
		avg_yield = EXCLUDED.avg_yield,
		market_price = EXCLUDED.market_price,
		image = EXCLUDED.image,
		updated_at = EXCLUDED.updated_at`)
}

// UpsertCrops inserts or replaces crops in a single statement
func (r *postgresRepository) UpsertCrops(ctx context.Context, crops []*models.CropRecord) error {
	if len(crops) == 0 {
		return nil
	}

	timer := time.Now()
	defer func() {
		r.metrics.IngestionBatchSize.Observe(float64(len(crops)))
		r.logger.Debug(ctx, "[REPO_UPSERT_CROPS] Crops upserted", logging.Fields{
			"count":       len(crops),
			"duration_ms": time.Since(timer).Milliseconds(),
		})
	}()

	if _, err := r.db.Execx(ctx, "upsert_crops", upsertCropsQuery(crops, time.Now().UTC())); err != nil {
		return fmt.Errorf("failed to upsert crops: %w", err)
	}

	return nil
}

// ListCrops returns every stored crop ordered by category and id
func (r *postgresRepository) ListCrops(ctx context.Context) ([]*models.CropRecord, error) {
	query := database.Builder().
		Select(cropColumns...).
		From(tableCrops).
		OrderBy("category", "id")

	var rows []cropRow
	if err := r.db.Selectx(ctx, "list_crops", &rows, query); err != nil {
		return nil, fmt.Errorf("failed to list crops: %w", err)
	}

	crops := make([]*models.CropRecord, 0, len(rows))
	for i := range rows {
		crops = append(crops, rows[i].toRecord())
	}
	return crops, nil
}

// GetCrop retrieves one crop by id
func (r *postgresRepository) GetCrop(ctx context.Context, cropID string) (*models.CropRecord, error) {
	query := database.Builder().
		Select(cropColumns...).
		From(tableCrops).
		Where(sq.Eq{"id": cropID})

	var row cropRow
	err := r.db.Getx(ctx, "get_crop", &row, query)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &models.NotFoundError{Resource: "crop", ID: cropID}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get crop: %w", err)
	}

	return row.toRecord(), nil
}

// SaveMarketPrices stores mandi quotes in a single transaction
func (r *postgresRepository) SaveMarketPrices(ctx context.Context, prices []*models.MarketPrice) error {
	if len(prices) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO market_prices (crop_id, commodity, market, modal_price_per_quintal, observed_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (crop_id, market, observed_at) DO UPDATE SET
			commodity = EXCLUDED.commodity,
			modal_price_per_quintal = EXCLUDED.modal_price_per_quintal
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, p := range prices {
		if _, err := stmt.ExecContext(ctx, p.CropID, p.Commodity, p.Market, p.ModalPricePerQuintal, p.ObservedAt); err != nil {
			return fmt.Errorf("failed to insert market price for %s: %w", p.CropID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// UpdateMarketPrices sets the catalog price of each crop and returns how many crops changed
func (r *postgresRepository) UpdateMarketPrices(ctx context.Context, pricesPerKg map[string]decimal.Decimal) (int, error) {
	if len(pricesPerKg) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	updated := 0
	for cropID, price := range pricesPerKg {
		query, args, err := database.Builder().
			Update(tableCrops).
			Set("market_price", price).
			Set("updated_at", now).
			Where(sq.Eq{"id": cropID}).
			ToSql()
		if err != nil {
			return 0, fmt.Errorf("failed to build price update: %w", err)
		}

		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			r.metrics.RecordDBError("exec_error")
			return 0, fmt.Errorf("failed to update price for %s: %w", cropID, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			updated++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	r.logger.Info(ctx, "[REPO_UPDATE_PRICES] Market prices updated", logging.Fields{
		"requested": len(pricesPerKg),
		"updated":   updated,
	})

	return updated, nil
}
