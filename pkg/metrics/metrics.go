package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector provides application metrics collection
type Collector struct {
	// API Metrics
	APIRequestsTotal   *prometheus.CounterVec
	APIRequestDuration *prometheus.HistogramVec
	APIErrorsTotal     *prometheus.CounterVec
	RateLimitedTotal   *prometheus.CounterVec

	// Estimation Metrics
	EstimationsTotal   *prometheus.CounterVec
	SuitabilityScore   *prometheus.HistogramVec
	DataGapsTotal      *prometheus.CounterVec
	RecommendationSize prometheus.Histogram

	// Ingestion Metrics
	IngestionRecordsTotal *prometheus.CounterVec
	IngestionDuration     *prometheus.HistogramVec
	IngestionErrorsTotal  *prometheus.CounterVec
	IngestionBatchSize    prometheus.Histogram

	// Price Board Metrics
	PriceBoardFetchesTotal *prometheus.CounterVec
	PricesUpdatedTotal     prometheus.Counter

	// Database Metrics
	DBQueryDuration  *prometheus.HistogramVec
	DBConnectionPool *prometheus.GaugeVec
	DBErrorsTotal    *prometheus.CounterVec

	// Climate Metrics
	NormalsCalculationDuration prometheus.Histogram

	// Catalog Metrics
	CatalogCrops *prometheus.GaugeVec
}

// NewCollector creates a new metrics collector registered on reg.
// A nil reg registers on the default Prometheus registry.
func NewCollector(namespace string, reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Collector{
		APIRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_requests_total",
				Help:      "Total number of API requests by endpoint, method, and status",
			},
			[]string{"endpoint", "method", "status"},
		),

		APIRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "api_request_duration_seconds",
				Help:      "API request duration in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.02, 0.05, 0.1, 0.2, 0.5, 1.0, 2.0, 5.0},
			},
			[]string{"endpoint"},
		),

		APIErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_errors_total",
				Help:      "Total number of API errors by type",
			},
			[]string{"error_type", "endpoint"},
		),

		RateLimitedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_rate_limited_total",
				Help:      "Requests rejected by the rate limiter",
			},
			[]string{"endpoint"},
		),

		EstimationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "estimations_total",
				Help:      "Total number of estimations by outcome",
			},
			[]string{"outcome"}, // "ok", "invalid_input", "not_found", "error"
		),

		SuitabilityScore: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "suitability_score",
				Help:      "Distribution of suitability scores by crop category",
				Buckets:   prometheus.LinearBuckets(10, 10, 10),
			},
			[]string{"category"},
		),

		DataGapsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "estimation_data_gaps_total",
				Help:      "Estimations that fell back to substitute data, by yield source",
			},
			[]string{"yield_source"},
		),

		RecommendationSize: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "recommendation_size",
				Help:      "Number of crops returned per recommendation",
				Buckets:   []float64{1, 3, 5, 10, 20, 50},
			},
		),

		IngestionRecordsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ingestion_records_processed_total",
				Help:      "Total number of records ingested by source",
			},
			[]string{"source"}, // "catalog", "climate", "prices"
		),

		IngestionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "ingestion_duration_seconds",
				Help:      "Duration of ingestion operations in seconds",
				Buckets:   []float64{0.1, 1, 5, 10, 30, 60, 120, 300, 600},
			},
			[]string{"source"},
		),

		IngestionErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ingestion_errors_total",
				Help:      "Total number of ingestion errors by type",
			},
			[]string{"error_type"},
		),

		IngestionBatchSize: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "ingestion_batch_size",
				Help:      "Number of records per batch during ingestion",
				Buckets:   []float64{10, 50, 100, 500, 1000, 5000, 10000},
			},
		),

		PriceBoardFetchesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "price_board_fetches_total",
				Help:      "Price board fetch attempts by status",
			},
			[]string{"status"},
		),

		PricesUpdatedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "market_prices_updated_total",
				Help:      "Catalog market prices updated from price boards",
			},
		),

		DBQueryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "db_query_duration_seconds",
				Help:      "Database query duration in seconds by query type",
				Buckets:   []float64{0.001, 0.002, 0.005, 0.01, 0.02, 0.05, 0.1, 0.2, 0.5},
			},
			[]string{"query_type"},
		),

		DBConnectionPool: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "db_connection_pool",
				Help:      "Database connection pool statistics",
			},
			[]string{"state"}, // "in_use", "idle", "total"
		),

		DBErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "db_errors_total",
				Help:      "Total number of database errors by type",
			},
			[]string{"error_type"},
		),

		NormalsCalculationDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "climate_normals_calculation_duration_seconds",
				Help:      "Duration of seasonal climate normal calculation in seconds",
				Buckets:   []float64{0.005, 0.01, 0.02, 0.05, 0.1, 0.2, 0.5, 1.0, 5.0},
			},
		),

		CatalogCrops: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "catalog_crops",
				Help:      "Number of crops in the loaded catalog by category",
			},
			[]string{"category"},
		),
	}
}

// Timer provides timing functionality for operations
type Timer struct {
	start    time.Time
	observer prometheus.Observer
}

// NewTimer creates a new timer
func (c *Collector) NewTimer(histogram prometheus.Observer) *Timer {
	return &Timer{
		start:    time.Now(),
		observer: histogram,
	}
}

// ObserveDuration records the elapsed time since timer creation
func (t *Timer) ObserveDuration() time.Duration {
	duration := time.Since(t.start)
	if t.observer != nil {
		t.observer.Observe(duration.Seconds())
	}
	return duration
}

// RecordAPIRequest increments API request counter
func (c *Collector) RecordAPIRequest(endpoint, method, status string) {
	c.APIRequestsTotal.WithLabelValues(endpoint, method, status).Inc()
}

// RecordAPIError increments API error counter
func (c *Collector) RecordAPIError(errorType, endpoint string) {
	c.APIErrorsTotal.WithLabelValues(errorType, endpoint).Inc()
}

// RecordRateLimited increments the rate limiter rejection counter
func (c *Collector) RecordRateLimited(endpoint string) {
	c.RateLimitedTotal.WithLabelValues(endpoint).Inc()
}

// RecordEstimation counts one estimation outcome
func (c *Collector) RecordEstimation(outcome string) {
	c.EstimationsTotal.WithLabelValues(outcome).Inc()
}

// ObserveScore records a suitability score for a crop category
func (c *Collector) ObserveScore(category string, score float64) {
	c.SuitabilityScore.WithLabelValues(category).Observe(score)
}

// RecordDataGap counts an estimation computed from fallback yield data
func (c *Collector) RecordDataGap(yieldSource string) {
	c.DataGapsTotal.WithLabelValues(yieldSource).Inc()
}

// RecordIngested adds n processed records for an ingestion source
func (c *Collector) RecordIngested(source string, n int) {
	c.IngestionRecordsTotal.WithLabelValues(source).Add(float64(n))
}

// RecordIngestionError increments ingestion error counter
func (c *Collector) RecordIngestionError(errorType string) {
	c.IngestionErrorsTotal.WithLabelValues(errorType).Inc()
}

// RecordPriceBoardFetch counts a price board fetch by status
func (c *Collector) RecordPriceBoardFetch(status string) {
	c.PriceBoardFetchesTotal.WithLabelValues(status).Inc()
}

// RecordDBError increments database error counter
func (c *Collector) RecordDBError(errorType string) {
	c.DBErrorsTotal.WithLabelValues(errorType).Inc()
}

// UpdateDBConnectionPool updates database connection pool metrics
func (c *Collector) UpdateDBConnectionPool(inUse, idle, total int) {
	c.DBConnectionPool.WithLabelValues("in_use").Set(float64(inUse))
	c.DBConnectionPool.WithLabelValues("idle").Set(float64(idle))
	c.DBConnectionPool.WithLabelValues("total").Set(float64(total))
}

// SetCatalogSize publishes the per-category crop counts
func (c *Collector) SetCatalogSize(counts map[string]int) {
	for category, n := range counts {
		c.CatalogCrops.WithLabelValues(category).Set(float64(n))
	}
}
