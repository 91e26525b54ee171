package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"github.com/cenkalti/backoff/v4"
	"github.com/shopspring/decimal"

	"crop-estimator/internal/catalog"
	"crop-estimator/internal/models"
	"crop-estimator/internal/repository"
	"crop-estimator/pkg/logging"
	"crop-estimator/pkg/metrics"
)

const maxBoardBytes = 8 << 20

// mandiAliases maps commodity names used on mandi boards to catalog ids
var mandiAliases = map[string]string{
	"paddy":         "rice",
	"dhan":          "rice",
	"bengal gram":   "chickpea",
	"gram":          "chickpea",
	"bhindi":        "okra",
	"ladies finger": "okra",
	"french beans":  "green-beans",
	"beans":         "green-beans",
	"musk melon":    "muskmelon",
	"water melon":   "watermelon",
	"litchi":        "lychee",
	"lime":          "lemon",
}

// PriceBoard is the parsed content of a mandi price table
type PriceBoard struct {
	Quotes    []*models.MarketPrice
	Unmatched []string
	Skipped   int
}

// PriceImportResult summarises one price board import
type PriceImportResult struct {
	Quotes    int
	Skipped   int
	Unmatched []string
	// PricesPerKg is the average modal price per crop, in rupees per kg
	PricesPerKg map[string]decimal.Decimal
	Updated     int
}

// PriceBoardService imports mandi price boards and updates catalog prices
type PriceBoardService struct {
	repo          repository.CatalogRepository
	client        *http.Client
	logger        *logging.StructuredLogger
	metrics       *metrics.Collector
	maxRetries    uint64
	retryInterval time.Duration
	now           func() time.Time
}

// NewPriceBoardService creates a price board service. repo may be nil, in which
// case Import only parses and averages.
func NewPriceBoardService(repo repository.CatalogRepository, client *http.Client, maxRetries uint64, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *PriceBoardService {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &PriceBoardService{
		repo:          repo,
		client:        client,
		logger:        logger,
		metrics:       metricsCollector,
		maxRetries:    maxRetries,
		retryInterval: 500 * time.Millisecond,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// Import reads a price board from an http(s) URL or a local HTML file, matches
// its rows to catalog crops and, when a repository is configured, stores the
// quotes and updates the catalog prices.
func (s *PriceBoardService) Import(ctx context.Context, source string, c *catalog.Catalog) (*PriceImportResult, error) {
	var (
		body []byte
		err  error
	)
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		body, err = s.Fetch(ctx, source)
	} else {
		body, err = os.ReadFile(source)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read price board %s: %w", source, err)
	}

	board, err := ParsePriceBoard(bytes.NewReader(body), c, s.now())
	if err != nil {
		s.metrics.RecordIngestionError("price_parse_error")
		return nil, err
	}

	result := &PriceImportResult{
		Quotes:      len(board.Quotes),
		Skipped:     board.Skipped,
		Unmatched:   board.Unmatched,
		PricesPerKg: AveragePricesPerKg(board.Quotes),
	}

	if s.repo != nil && len(board.Quotes) > 0 {
		if err := s.repo.SaveMarketPrices(ctx, board.Quotes); err != nil {
			return nil, fmt.Errorf("failed to save market prices: %w", err)
		}
		updated, err := s.repo.UpdateMarketPrices(ctx, result.PricesPerKg)
		if err != nil {
			return nil, fmt.Errorf("failed to update catalog prices: %w", err)
		}
		result.Updated = updated
		s.metrics.PricesUpdatedTotal.Add(float64(updated))
	}

	s.metrics.RecordIngested("prices", result.Quotes)

	s.logger.Info(ctx, "[PRICE_IMPORT_COMPLETE] Price board imported", logging.Fields{
		"source":    source,
		"quotes":    result.Quotes,
		"crops":     len(result.PricesPerKg),
		"skipped":   result.Skipped,
		"unmatched": len(result.Unmatched),
		"updated":   result.Updated,
	})

	return result, nil
}

// Fetch downloads a price board, retrying transport errors and 5xx/429
// responses with a constant backoff
func (s *PriceBoardService) Fetch(ctx context.Context, url string) ([]byte, error) {
	var body []byte
	attempt := 0

	err := backoff.Retry(
		func() error {
			attempt++

			req, reqErr := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if reqErr != nil {
				return backoff.Permanent(reqErr)
			}

			resp, httpErr := s.client.Do(req)
			if httpErr != nil {
				s.metrics.RecordPriceBoardFetch("transport_error")
				return fmt.Errorf("GET %s: %w", url, httpErr)
			}
			defer resp.Body.Close()

			switch {
			case resp.StatusCode == http.StatusOK:
			case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
				s.metrics.RecordPriceBoardFetch("retryable_status")
				return fmt.Errorf("status code error: %d %s", resp.StatusCode, resp.Status)
			default:
				s.metrics.RecordPriceBoardFetch("bad_status")
				return backoff.Permanent(fmt.Errorf("status code error: %d %s", resp.StatusCode, resp.Status))
			}

			data, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBoardBytes))
			if readErr != nil {
				return fmt.Errorf("read body: %w", readErr)
			}
			body = data
			return nil
		},
		backoff.WithContext(
			backoff.WithMaxRetries(backoff.NewConstantBackOff(s.retryInterval), s.maxRetries),
			ctx,
		),
	)
	if err != nil {
		s.logger.Error(ctx, "[PRICE_FETCH_ERROR] Price board fetch failed", logging.Fields{
			"url":      url,
			"attempts": attempt,
		}, err)
		return nil, err
	}

	s.metrics.RecordPriceBoardFetch("success")
	return body, nil
}

// ParsePriceBoard reads the first HTML table that has commodity and modal
// price columns. Rows whose commodity is not in the catalog are reported in
// Unmatched; rows without a usable price are counted in Skipped. observed is
// used when a row carries no date.
func ParsePriceBoard(r io.Reader, c *catalog.Catalog, observed time.Time) (*PriceBoard, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("goquery.NewDocumentFromReader: %w", err)
	}

	match := newCropMatcher(c)
	board := &PriceBoard{}
	unmatched := map[string]bool{}
	found := false

	doc.Find("table").EachWithBreak(func(_ int, table *goquery.Selection) bool {
		rows := table.Find("tr")
		if rows.Length() == 0 {
			return true
		}

		cols, ok := priceColumns(cellTexts(rows.First()))
		if !ok {
			return true
		}
		found = true

		rows.Slice(1, rows.Length()).Each(func(_ int, tr *goquery.Selection) {
			cells := cellTexts(tr)
			if len(cells) <= cols.commodity || len(cells) <= cols.modal {
				return
			}

			commodity := cells[cols.commodity]
			cropID, ok := match(commodity)
			if !ok {
				if commodity != "" && !unmatched[commodity] {
					unmatched[commodity] = true
					board.Unmatched = append(board.Unmatched, commodity)
				}
				return
			}

			price, err := parsePrice(cells[cols.modal])
			if err != nil || !price.IsPositive() {
				board.Skipped++
				return
			}

			quote := &models.MarketPrice{
				CropID:               cropID,
				Commodity:            commodity,
				ModalPricePerQuintal: price,
				ObservedAt:           observed,
			}
			if cols.market >= 0 && cols.market < len(cells) {
				quote.Market = cells[cols.market]
			}
			if cols.date >= 0 && cols.date < len(cells) {
				if d, ok := parseBoardDate(cells[cols.date]); ok {
					quote.ObservedAt = d
				}
			}
			board.Quotes = append(board.Quotes, quote)
		})
		return false
	})

	if !found {
		return nil, fmt.Errorf("no price table with commodity and modal price columns found")
	}

	sort.Strings(board.Unmatched)
	return board, nil
}

// AveragePricesPerKg averages modal quintal prices per crop and converts to
// rupees per kg, rounded to paise
func AveragePricesPerKg(quotes []*models.MarketPrice) map[string]decimal.Decimal {
	sums := map[string]decimal.Decimal{}
	counts := map[string]int64{}
	for _, q := range quotes {
		sums[q.CropID] = sums[q.CropID].Add(q.ModalPricePerQuintal)
		counts[q.CropID]++
	}

	out := make(map[string]decimal.Decimal, len(sums))
	for cropID, sum := range sums {
		avg := sum.Div(decimal.NewFromInt(counts[cropID]))
		out[cropID] = avg.Div(decimal.NewFromInt(models.KgPerQuintal)).Round(2)
	}
	return out
}

type boardColumns struct {
	commodity, market, modal, date int
}

func priceColumns(header []string) (boardColumns, bool) {
	cols := boardColumns{commodity: -1, market: -1, modal: -1, date: -1}
	for i, h := range header {
		h = strings.ToLower(h)
		switch {
		case strings.Contains(h, "commodity") && cols.commodity < 0:
			cols.commodity = i
		case strings.Contains(h, "modal") && cols.modal < 0:
			cols.modal = i
		case strings.Contains(h, "market") && cols.market < 0:
			cols.market = i
		case strings.Contains(h, "date") && cols.date < 0:
			cols.date = i
		}
	}
	return cols, cols.commodity >= 0 && cols.modal >= 0
}

func cellTexts(tr *goquery.Selection) []string {
	var cells []string
	tr.Find("th, td").Each(func(_ int, cell *goquery.Selection) {
		cells = append(cells, strings.Join(strings.Fields(cell.Text()), " "))
	})
	return cells
}

func parsePrice(raw string) (decimal.Decimal, error) {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) || r == '.' {
			return r
		}
		return -1
	}, strings.TrimPrefix(strings.TrimSpace(raw), "Rs."))
	return decimal.NewFromString(cleaned)
}

func parseBoardDate(raw string) (time.Time, bool) {
	for _, layout := range []string{"02 Jan 2006", "2006-01-02", "02/01/2006", "02-01-2006"} {
		if t, err := time.Parse(layout, strings.TrimSpace(raw)); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// newCropMatcher resolves mandi commodity names like "Bengal Gram(Gram)(Whole)"
// to catalog ids by id, by name with or without its parenthesised alias, or
// through mandiAliases
func newCropMatcher(c *catalog.Catalog) func(string) (string, bool) {
	keys := map[string]string{}
	for _, crop := range c.All() {
		keys[strings.ToLower(crop.ID)] = crop.ID
		keys[strings.ReplaceAll(strings.ToLower(crop.ID), "-", " ")] = crop.ID
		for _, part := range commodityParts(crop.Name) {
			if _, taken := keys[part]; !taken {
				keys[part] = crop.ID
			}
		}
	}

	return func(commodity string) (string, bool) {
		for _, part := range commodityParts(commodity) {
			if id, ok := keys[part]; ok {
				return id, true
			}
			if alias, ok := mandiAliases[part]; ok {
				if _, err := c.Get(alias); err == nil {
					return alias, true
				}
			}
		}
		return "", false
	}
}

// commodityParts splits "Black Gram (Urd Beans)(Whole)" into its base name and
// each parenthesised alternative, lower-cased without punctuation
func commodityParts(name string) []string {
	var parts []string
	add := func(s string) {
		s = strings.Join(strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
			return !unicode.IsLetter(r)
		}), " ")
		if s != "" {
			parts = append(parts, s)
		}
	}

	rest := name
	if i := strings.IndexByte(rest, '('); i >= 0 {
		add(rest[:i])
		rest = rest[i:]
		for {
			open := strings.IndexByte(rest, '(')
			if open < 0 {
				break
			}
			end := strings.IndexByte(rest[open:], ')')
			if end < 0 {
				add(rest[open+1:])
				break
			}
			add(rest[open+1 : open+end])
			rest = rest[open+end+1:]
		}
	} else {
		add(rest)
	}
	return parts
}
