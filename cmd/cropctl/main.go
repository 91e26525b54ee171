// Command cropctl scores crops for a farm from the command line, without a
// database or a running server.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"crop-estimator/internal/catalog"
	"crop-estimator/internal/estimator"
	"crop-estimator/internal/models"
	"crop-estimator/internal/services"
	"crop-estimator/pkg/logging"
	"crop-estimator/pkg/metrics"
)

const version = "1.0.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type rootOptions struct {
	catalogPath string
	priceBoard  string
	output      string
	verbose     bool
}

type farmFlags struct {
	area        float64
	soil        string
	season      string
	temperature float64
	costPerAcre float64
	category    string
	limit       int
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:          "cropctl",
		Short:        "Crop suitability, yield and profit estimates",
		Version:      version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch opts.output {
			case "text", "json":
				return nil
			default:
				return fmt.Errorf("--output must be text or json, got %q", opts.output)
			}
		},
	}

	root.PersistentFlags().StringVar(&opts.catalogPath, "catalog", "", "Catalog file (.json, .yaml, .csv, .xlsx) replacing the built-in catalog")
	root.PersistentFlags().StringVar(&opts.priceBoard, "price-board", "", "Mandi price board URL or HTML file used to refresh market prices")
	root.PersistentFlags().StringVarP(&opts.output, "output", "o", "text", "Output format: text or json")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log progress to stderr")

	root.AddCommand(newCropsCmd(opts), newEstimateCmd(opts), newRecommendCmd(opts))
	return root
}

func newCropsCmd(opts *rootOptions) *cobra.Command {
	var category string

	cmd := &cobra.Command{
		Use:   "crops",
		Short: "List catalog crops",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadCatalog(cmd, opts)
			if err != nil {
				return err
			}

			crops := c.All()
			if category != "" {
				cat, err := models.ParseCategory(category)
				if err != nil {
					return err
				}
				crops = c.ByCategory(cat)
			}

			if opts.output == "json" {
				return writeJSON(cmd.OutOrStdout(), crops)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tCATEGORY\tSEASONS\tTEMP (°C)\tPRICE (₹)")
			for _, crop := range crops {
				seasons := make([]string, len(crop.ViableSeasons))
				for i, s := range crop.ViableSeasons {
					seasons[i] = string(s)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%g-%g\t%.2f\n",
					crop.ID, crop.Name, crop.Category, strings.Join(seasons, ","), crop.MinTemp, crop.MaxTemp, crop.MarketPrice)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&category, "category", "", "Only list one category: fruits, vegetables, grains or pulses")
	return cmd
}

func addFarmFlags(cmd *cobra.Command, f *farmFlags) {
	cmd.Flags().Float64Var(&f.area, "area", 0, "Farm area in acres")
	cmd.Flags().StringVar(&f.soil, "soil", "", "Soil description, e.g. \"Red Loamy\"")
	cmd.Flags().StringVar(&f.season, "season", "", "Summer, Monsoon, Winter or Spring")
	cmd.Flags().Float64Var(&f.temperature, "temperature", 0, "Average regional temperature in °C")
	cmd.Flags().Float64Var(&f.costPerAcre, "cost-per-acre", 0, "Cultivation cost per acre in ₹")
	cmd.MarkFlagRequired("area")
	cmd.MarkFlagRequired("soil")
	cmd.MarkFlagRequired("season")
}

// conditions builds the farm description, leaving unset optional flags absent
func (f *farmFlags) conditions(cmd *cobra.Command) models.FarmConditions {
	cond := models.FarmConditions{
		AreaAcres: f.area,
		SoilType:  f.soil,
		Season:    models.Season(f.season),
	}
	if cmd.Flags().Changed("temperature") {
		t := f.temperature
		cond.RegionTemperature = &t
	}
	if cmd.Flags().Changed("cost-per-acre") {
		c := f.costPerAcre
		cond.CostPerAcre = &c
	}
	return cond
}

func newEstimateCmd(opts *rootOptions) *cobra.Command {
	var (
		farm   farmFlags
		cropID string
	)

	cmd := &cobra.Command{
		Use:   "estimate",
		Short: "Score one crop and project its yield and profit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			est, err := newEstimator(cmd, opts)
			if err != nil {
				return err
			}

			result, err := est.Estimate(farm.conditions(cmd).ForCrop(cropID))
			if err != nil {
				return err
			}

			if opts.output == "json" {
				return writeJSON(cmd.OutOrStdout(), result)
			}
			printEstimate(cmd.OutOrStdout(), result)
			return nil
		},
	}

	cmd.Flags().StringVar(&cropID, "crop", "", "Crop id, e.g. wheat")
	cmd.MarkFlagRequired("crop")
	addFarmFlags(cmd, &farm)
	return cmd
}

func newRecommendCmd(opts *rootOptions) *cobra.Command {
	var farm farmFlags

	cmd := &cobra.Command{
		Use:   "recommend",
		Short: "Rank catalog crops for a farm",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			est, err := newEstimator(cmd, opts)
			if err != nil {
				return err
			}

			cond := farm.conditions(cmd)
			if farm.category != "" {
				cat, err := models.ParseCategory(farm.category)
				if err != nil {
					return err
				}
				cond.Category = cat
			}

			results, err := est.Recommend(cond, farm.limit)
			if err != nil {
				return err
			}

			if opts.output == "json" {
				return writeJSON(cmd.OutOrStdout(), results)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "RANK\tCROP\tSCORE\tYIELD\tREVENUE (₹)\tPROFIT (₹)\tDAYS")
			for i, r := range results {
				fmt.Fprintf(tw, "%d\t%s\t%.2f\t%.2f\t%s\t%s\t%d\n",
					i+1, r.CropName, r.SuitabilityScore, r.ProjectedYield,
					r.ProjectedRevenue.StringFixed(2), r.ProjectedProfit.StringFixed(2), r.HarvestEstimateDays)
			}
			return tw.Flush()
		},
	}

	addFarmFlags(cmd, &farm)
	cmd.Flags().StringVar(&farm.category, "category", "", "Only rank one category")
	cmd.Flags().IntVar(&farm.limit, "limit", 10, "Number of crops to show, 0 for all")
	return cmd
}

func newLogger(cmd *cobra.Command, opts *rootOptions) *logging.StructuredLogger {
	level := logging.WarnLevel
	if opts.verbose {
		level = logging.DebugLevel
	}
	logger := logging.NewStructuredLogger("cropctl", version, level)
	logger.SetOutput(cmd.ErrOrStderr())
	return logger
}

// loadCatalog reads the catalog file or the built-in catalog and, when a price
// board is given, replaces market prices with the board's averages
func loadCatalog(cmd *cobra.Command, opts *rootOptions) (*catalog.Catalog, error) {
	var (
		c   *catalog.Catalog
		err error
	)
	if opts.catalogPath != "" {
		c, err = catalog.LoadCatalog(opts.catalogPath)
	} else {
		c, err = catalog.Default()
	}
	if err != nil {
		return nil, err
	}

	if opts.priceBoard == "" {
		return c, nil
	}

	logger := newLogger(cmd, opts)
	m := metrics.NewCollector("cropctl", prometheus.NewRegistry())
	priceSvc := services.NewPriceBoardService(nil, &http.Client{Timeout: 15 * time.Second}, 3, logger, m)

	ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
	defer cancel()

	imported, err := priceSvc.Import(ctx, opts.priceBoard, c)
	if err != nil {
		return nil, err
	}

	prices := make(map[string]float64, len(imported.PricesPerKg))
	for id, p := range imported.PricesPerKg {
		prices[id] = p.InexactFloat64()
	}
	return c.WithPrices(prices)
}

func newEstimator(cmd *cobra.Command, opts *rootOptions) (*estimator.Estimator, error) {
	c, err := loadCatalog(cmd, opts)
	if err != nil {
		return nil, err
	}
	return estimator.New(c)
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printEstimate(w io.Writer, r *models.EstimationResult) {
	yes := func(ok bool) string {
		if ok {
			return "yes"
		}
		return "no"
	}

	fmt.Fprintln(w, strings.Repeat("═", 64))
	fmt.Fprintf(w, "%s (%s)\n", strings.ToUpper(r.CropName), r.CropID)
	fmt.Fprintln(w, strings.Repeat("═", 64))
	fmt.Fprintf(w, "Suitability Score:   %.2f / 100\n", r.SuitabilityScore)
	fmt.Fprintf(w, "  Season:            %.2f (compatible: %s)\n", r.ScoreBreakdown.Season, yes(r.Compatibility.SeasonOK))
	fmt.Fprintf(w, "  Soil:              %.2f (compatible: %s)\n", r.ScoreBreakdown.Soil, yes(r.Compatibility.SoilOK))
	fmt.Fprintf(w, "  Temperature:       %.2f (compatible: %s)\n", r.ScoreBreakdown.Temperature, yes(r.Compatibility.TemperatureOK))
	fmt.Fprintln(w, strings.Repeat("─", 64))
	fmt.Fprintf(w, "Yield per Acre:      %.2f (%s)\n", r.YieldPerAcre, r.YieldSource)
	fmt.Fprintf(w, "Projected Yield:     %.2f\n", r.ProjectedYield)
	fmt.Fprintf(w, "Projected Revenue:   ₹%s\n", r.ProjectedRevenue.StringFixed(2))
	fmt.Fprintf(w, "Projected Cost:      ₹%s\n", r.ProjectedCost.StringFixed(2))
	fmt.Fprintf(w, "Projected Profit:    ₹%s\n", r.ProjectedProfit.StringFixed(2))
	fmt.Fprintf(w, "Harvest In:          %d days\n", r.HarvestEstimateDays)
	fmt.Fprintf(w, "Water Requirement:   %s\n", r.WaterRequirement)

	for _, warning := range r.Warnings {
		fmt.Fprintf(w, "WARNING: %s\n", warning.Message)
	}
}
