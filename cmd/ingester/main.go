package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"

	"crop-estimator/internal/config"
	"crop-estimator/internal/repository"
	"crop-estimator/internal/services"
	"crop-estimator/pkg/database"
	"crop-estimator/pkg/logging"
	"crop-estimator/pkg/metrics"
)

const version = "1.0.0"

func main() {
	catalogDir := flag.String("catalog-dir", "", "Directory of crop catalog files (.json, .yaml, .csv, .xlsx)")
	climateDir := flag.String("climate-dir", "", "Directory of regional daily weather files (<region>.txt)")
	priceBoard := flag.String("price-board", "", "Mandi price board URL or HTML file (defaults to price_board.url)")
	batchSize := flag.Int("batch-size", 1000, "Number of records to write in each batch")
	calculateNormals := flag.Bool("calculate-normals", false, "Recalculate seasonal climate normals after ingestion")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if *priceBoard == "" {
		*priceBoard = cfg.PriceBoard.URL
	}
	if *catalogDir == "" && *climateDir == "" && *priceBoard == "" && !*calculateNormals {
		fmt.Fprintln(os.Stderr, "Nothing to do: pass -catalog-dir, -climate-dir, -price-board or -calculate-normals")
		flag.Usage()
		os.Exit(2)
	}

	logger := logging.NewStructuredLogger("crop-ingester", version, logging.ParseLevel(cfg.Logging.Level))
	defer logger.Sync()

	ctx := context.Background()
	logger.Info(ctx, "[INGESTER_START] Starting crop data ingestion", logging.Fields{
		"version":           version,
		"catalog_dir":       *catalogDir,
		"climate_dir":       *climateDir,
		"price_board":       *priceBoard,
		"batch_size":        *batchSize,
		"calculate_normals": *calculateNormals,
	})

	metricsCollector := metrics.NewCollector("crop_ingester", nil)

	db, err := database.NewPostgresDB(ctx, cfg.Database.PostgresConfig(), logger, metricsCollector)
	if err != nil {
		logger.Fatal(ctx, "[INGESTER_ERROR] Failed to connect to database", logging.Fields{}, err)
	}
	defer db.Close()

	repo := repository.NewPostgresRepository(db, logger, metricsCollector)
	failed := false

	if *catalogDir != "" {
		result, err := services.NewCatalogIngestionService(repo, logger, metricsCollector).IngestDirectory(ctx, *catalogDir, *batchSize)
		if err != nil {
			logger.Fatal(ctx, "[INGESTION_ERROR] Catalog ingestion failed", logging.Fields{"catalog_dir": *catalogDir}, err)
		}
		printResult("CATALOG INGESTION COMPLETE", result)
	}

	if *climateDir != "" {
		result, err := services.NewClimateIngestionService(repo, logger, metricsCollector).IngestDirectory(ctx, *climateDir, *batchSize)
		if err != nil {
			logger.Fatal(ctx, "[INGESTION_ERROR] Climate ingestion failed", logging.Fields{"climate_dir": *climateDir}, err)
		}
		printResult("CLIMATE INGESTION COMPLETE", result)
		failed = failed || result.FailedRecords > 0
	}

	if *priceBoard != "" {
		printHeader("PRICE BOARD IMPORT")

		crops, _, err := services.LoadCatalog(ctx, repo, cfg.Catalog.Path)
		if err != nil {
			logger.Fatal(ctx, "[PRICE_IMPORT_ERROR] Failed to load crop catalog", logging.Fields{}, err)
		}

		client := &http.Client{Timeout: cfg.PriceBoard.Timeout}
		priceSvc := services.NewPriceBoardService(repo, client, cfg.PriceBoard.MaxRetries, logger, metricsCollector)

		result, err := priceSvc.Import(ctx, *priceBoard, crops)
		if err != nil {
			logger.Error(ctx, "[PRICE_IMPORT_ERROR] Price board import failed", logging.Fields{"source": *priceBoard}, err)
			fmt.Printf("Price board import failed: %v\n", err)
			failed = true
		} else {
			fmt.Printf("Quotes:             %d\n", result.Quotes)
			fmt.Printf("Skipped Rows:       %d\n", result.Skipped)
			fmt.Printf("Crops Priced:       %d\n", len(result.PricesPerKg))
			fmt.Printf("Catalog Updated:    %d\n", result.Updated)
			if len(result.Unmatched) > 0 {
				fmt.Printf("Unmatched:          %s\n", strings.Join(result.Unmatched, ", "))
			}
		}
	}

	if *calculateNormals {
		printHeader("CALCULATING SEASONAL NORMALS")

		stored, err := services.NewClimateService(repo, logger, metricsCollector).CalculateAllNormals(ctx)
		if err != nil {
			logger.Error(ctx, "[NORMALS_ERROR] Normal calculation failed", logging.Fields{}, err)
			fmt.Printf("Normal calculation failed: %v\n", err)
			failed = true
		} else {
			fmt.Printf("Normals stored: %d\n", stored)
		}
	}

	logger.Info(ctx, "[INGESTER_COMPLETE] Ingestion finished", logging.Fields{
		"failed": failed,
	})

	if failed {
		db.Close()
		os.Exit(1)
	}
}

func printHeader(title string) {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println(title)
	fmt.Println(strings.Repeat("=", 80))
}

func printResult(title string, result *services.IngestionResult) {
	printHeader(title)
	fmt.Printf("Total Files:        %d\n", result.TotalFiles)
	fmt.Printf("Total Records:      %d\n", result.TotalRecords)
	fmt.Printf("Successful Records: %d\n", result.SuccessfulRecords)
	fmt.Printf("Failed Records:     %d\n", result.FailedRecords)
	fmt.Printf("Duration:           %v\n", result.Duration)
	if secs := result.Duration.Seconds(); secs > 0 {
		fmt.Printf("Records/Second:     %.2f\n", float64(result.SuccessfulRecords)/secs)
	}

	if len(result.Errors) > 0 {
		fmt.Printf("\nErrors (%d):\n", len(result.Errors))
		for i, errMsg := range result.Errors {
			if i < 10 {
				fmt.Printf("  - %s\n", errMsg)
			}
		}
		if len(result.Errors) > 10 {
			fmt.Printf("  ... and %d more errors\n", len(result.Errors)-10)
		}
	}
}
