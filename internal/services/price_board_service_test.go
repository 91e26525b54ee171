package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"

	"crop-estimator/internal/catalog"
	"crop-estimator/internal/models"
)

func mustDecimal(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatal(err)
	}
	return d
}

const mandiBoard = `<html><body>
<table class="nav"><tr><td>Home</td><td>Reports</td></tr></table>
<table id="prices">
  <thead>
    <tr><th>State</th><th>Market</th><th>Commodity</th><th>Min Price (Rs./Quintal)</th><th>Modal Price (Rs./Quintal)</th><th>Price Date</th></tr>
  </thead>
  <tbody>
    <tr><td>Maharashtra</td><td>Nashik</td><td>Wheat</td><td>2,500</td><td>2,700</td><td>15 Jan 2026</td></tr>
    <tr><td>Maharashtra</td><td>Pune</td><td>Wheat</td><td>2,800</td><td>2,900</td><td>15 Jan 2026</td></tr>
    <tr><td>Madhya Pradesh</td><td>Indore</td><td>Bengal Gram(Gram)(Whole)</td><td>5,600</td><td>6,100</td><td>15 Jan 2026</td></tr>
    <tr><td>Maharashtra</td><td>Lasalgaon</td><td>Onion</td><td>1,200</td><td>-</td><td>15 Jan 2026</td></tr>
    <tr><td>Karnataka</td><td>Kolar</td><td>Tomato</td><td>900</td><td>1,050</td><td></td></tr>
    <tr><td>Gujarat</td><td>Unjha</td><td>Cumin Seed(Jeera)</td><td>20,000</td><td>22,000</td><td>15 Jan 2026</td></tr>
    <tr><td>Punjab</td><td>Khanna</td><td>Paddy(Dhan)(Common)</td><td>2,200</td><td>2,300</td><td>15 Jan 2026</td></tr>
  </tbody>
</table>
</body></html>`

func defaultCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.Default()
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestParsePriceBoard(t *testing.T) {
	observed := time.Date(2026, 1, 20, 0, 0, 0, 0, time.UTC)
	board, err := ParsePriceBoard(strings.NewReader(mandiBoard), defaultCatalog(t), observed)
	if err != nil {
		t.Fatalf("ParsePriceBoard() error = %v", err)
	}

	if len(board.Quotes) != 5 {
		t.Fatalf("quotes = %d, want 5", len(board.Quotes))
	}
	if board.Skipped != 1 {
		t.Errorf("Skipped = %d, want 1 (onion without a modal price)", board.Skipped)
	}
	if len(board.Unmatched) != 1 || board.Unmatched[0] != "Cumin Seed(Jeera)" {
		t.Errorf("Unmatched = %v", board.Unmatched)
	}

	byMarket := map[string]*models.MarketPrice{}
	for _, q := range board.Quotes {
		byMarket[q.Market] = q
	}

	tests := []struct {
		market   string
		cropID   string
		price    string
		observed time.Time
	}{
		{"Nashik", "wheat", "2700", time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)},
		{"Indore", "chickpea", "6100", time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)},
		{"Kolar", "tomato", "1050", observed},
		{"Khanna", "rice", "2300", time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.market, func(t *testing.T) {
			q := byMarket[tt.market]
			if q == nil {
				t.Fatalf("no quote for %s", tt.market)
			}
			if q.CropID != tt.cropID {
				t.Errorf("CropID = %s, want %s", q.CropID, tt.cropID)
			}
			if !q.ModalPricePerQuintal.Equal(mustDecimal(t, tt.price)) {
				t.Errorf("price = %s, want %s", q.ModalPricePerQuintal, tt.price)
			}
			if !q.ObservedAt.Equal(tt.observed) {
				t.Errorf("ObservedAt = %v, want %v", q.ObservedAt, tt.observed)
			}
		})
	}
}

func TestParsePriceBoard_NoTable(t *testing.T) {
	_, err := ParsePriceBoard(strings.NewReader(`<table><tr><td>a</td></tr></table>`), defaultCatalog(t), time.Now())
	if err == nil {
		t.Error("expected an error when no price table is present")
	}
}

func TestAveragePricesPerKg(t *testing.T) {
	quotes := []*models.MarketPrice{
		{CropID: "wheat", ModalPricePerQuintal: mustDecimal(t, "2700")},
		{CropID: "wheat", ModalPricePerQuintal: mustDecimal(t, "2900")},
		{CropID: "tomato", ModalPricePerQuintal: mustDecimal(t, "1055")},
	}

	got := AveragePricesPerKg(quotes)
	if !got["wheat"].Equal(mustDecimal(t, "28")) {
		t.Errorf("wheat = %s, want 28", got["wheat"])
	}
	if !got["tomato"].Equal(mustDecimal(t, "10.55")) {
		t.Errorf("tomato = %s, want 10.55", got["tomato"])
	}
}

func TestCommodityParts(t *testing.T) {
	tests := map[string][]string{
		"Wheat":                         {"wheat"},
		"Black Gram (Urd Beans)(Whole)": {"black gram", "urd beans", "whole"},
		"Okra (Lady's Finger)":          {"okra", "lady s finger"},
		"Bell Pepper (Capsicum":         {"bell pepper", "capsicum"},
	}
	for in, want := range tests {
		got := commodityParts(in)
		if strings.Join(got, ",") != strings.Join(want, ",") {
			t.Errorf("commodityParts(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestPriceBoardService_ImportFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "board.html")
	if err := os.WriteFile(path, []byte(mandiBoard), 0o600); err != nil {
		t.Fatal(err)
	}

	repo := newFakeCatalogRepo()
	if err := repo.UpsertCrops(context.Background(), defaultCatalog(t).All()); err != nil {
		t.Fatal(err)
	}

	logger, m := testDeps()
	svc := NewPriceBoardService(repo, nil, 0, logger, m)

	result, err := svc.Import(context.Background(), path, defaultCatalog(t))
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}

	if result.Quotes != 5 || len(repo.quotes) != 5 {
		t.Errorf("quotes = %d, stored = %d, want 5", result.Quotes, len(repo.quotes))
	}
	if result.Updated != 4 {
		t.Errorf("Updated = %d, want 4 (wheat, chickpea, tomato, rice)", result.Updated)
	}
	if repo.crops["wheat"].MarketPrice != 28 {
		t.Errorf("wheat price = %v, want 28", repo.crops["wheat"].MarketPrice)
	}
	if got := testutil.ToFloat64(m.PricesUpdatedTotal); got != 4 {
		t.Errorf("prices updated metric = %v, want 4", got)
	}
}

func TestPriceBoardService_FetchRetries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(mandiBoard))
	}))
	defer srv.Close()

	logger, m := testDeps()
	svc := NewPriceBoardService(nil, srv.Client(), 5, logger, m)
	svc.retryInterval = time.Millisecond

	result, err := svc.Import(context.Background(), srv.URL, defaultCatalog(t))
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if atomic.LoadInt32(&calls) != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	if result.Updated != 0 {
		t.Errorf("Updated = %d, want 0 without a repository", result.Updated)
	}
	if !result.PricesPerKg["wheat"].Equal(mustDecimal(t, "28")) {
		t.Errorf("wheat = %s, want 28", result.PricesPerKg["wheat"])
	}
}

func TestPriceBoardService_FetchGivesUp(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantCalls int32
	}{
		{name: "server errors exhaust retries", status: http.StatusBadGateway, wantCalls: 3},
		{name: "client errors are permanent", status: http.StatusNotFound, wantCalls: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&calls, 1)
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			logger, m := testDeps()
			svc := NewPriceBoardService(nil, srv.Client(), 2, logger, m)
			svc.retryInterval = time.Millisecond

			if _, err := svc.Fetch(context.Background(), srv.URL); err == nil {
				t.Fatal("expected an error")
			}
			if got := atomic.LoadInt32(&calls); got != tt.wantCalls {
				t.Errorf("calls = %d, want %d", got, tt.wantCalls)
			}
		})
	}
}
