package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rewired-gh/vegprice/internal/models"
	"github.com/rewired-gh/vegprice/internal/provider"
	"github.com/rewired-gh/vegprice/internal/storage"
	"github.com/rewired-gh/vegprice/internal/vfpck"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func strPtr(s string) *string { return &s }

func seedFiles(t *testing.T) *storage.Files {
	t.Helper()
	files := storage.NewFiles(t.TempDir())

	markets := &models.Catalog{
		Data: []models.CatalogEntry{{Title: "Thrissur", ID: "11"}, {Title: "Kochi", ID: "12"}},
		Date: strPtr("16/10/2026 Thursday"),
	}
	items := &models.Catalog{Data: []models.CatalogEntry{{Title: "Tomato", ID: "42"}}}
	if err := files.SaveCatalog(models.CatalogMarkets, markets); err != nil {
		t.Fatal(err)
	}
	if err := files.SaveCatalog(models.CatalogItems, items); err != nil {
		t.Fatal(err)
	}

	var prices models.PriceMap
	prices.Set("Thrissur", models.PriceQuadruple{
		Kerala:     models.PriceInfo{WP: "20", RP: "25"},
		OutOfState: models.PriceInfo{WP: "22", RP: "27"},
	})
	prices.Set("Kochi", models.PriceQuadruple{
		Kerala:     models.PriceInfo{WP: "-", RP: "-"},
		OutOfState: models.PriceInfo{WP: "30", RP: "34"},
	})
	snap := &models.Snapshot{Date: strPtr("2024-01-01")}
	snap.Data.Set("tomato", models.LiveItem{Name: "Tomato", Data: prices, LastUpdated: strPtr("2024-01-01")})
	if err := files.SaveLive(snap); err != nil {
		t.Fatal(err)
	}

	ledger := models.NewLedger("tomato", "Tomato")
	ledger.Append(models.LedgerEntry{Date: "2024-01-01", Prices: models.Flatten(&prices)})
	if err := files.SaveLedger(ledger); err != nil {
		t.Fatal(err)
	}
	return files
}

type fakeRuns struct {
	runs  []models.Run
	limit int
}

func (f *fakeRuns) RecentRuns(limit int) ([]models.Run, error) {
	f.limit = limit
	return f.runs, nil
}

func (f *fakeRuns) GetRun(id string) (*models.Run, error) {
	for i := range f.runs {
		if f.runs[i].ID == id {
			return &f.runs[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", storage.ErrRunNotFound, id)
}

func do(t *testing.T, router http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	router.ServeHTTP(w, req)
	return w
}

func TestRoutes(t *testing.T) {
	runs := &fakeRuns{runs: []models.Run{{
		ID:        "run-1",
		Status:    models.RunUpdated,
		StartedAt: time.Now(),
		Failures:  []models.ItemFailure{{Item: "Onion", Error: "unexpected status 500"}},
	}}}
	router := NewRouter(NewHandler(provider.NewCachedSnapshotProvider(seedFiles(t)), runs))

	tests := []struct {
		name       string
		target     string
		wantStatus int
		wantBody   string
	}{
		{"health", "/health", http.StatusOK, `"status":"ok"`},
		{"markets", "/veg/markets", http.StatusOK, `"message":"Markets listed successfully"`},
		{"items", "/veg/items", http.StatusOK, `"title":"Tomato"`},
		{"live", "/veg/live", http.StatusOK, `"tomato":{"name":"Tomato"`},
		{"price by item", "/veg/prices/Tomato?market=thrissur", http.StatusOK, `"Thrissur":{"KERALA":{"wp":"20","rp":"25"}`},
		{"price by market", "/veg/markets/Kochi/prices", http.StatusOK, `"Tomato":{"KERALA":{"wp":"-","rp":"-"}`},
		{"history", "/veg/history/tomato", http.StatusOK, `"date":"2024-01-01"`},
		{"runs", "/veg/runs?limit=5", http.StatusOK, `"id":"run-1"`},
		{"run detail", "/veg/runs/run-1", http.StatusOK, `"item":"Onion"`},
		{"unknown run", "/veg/runs/run-9", http.StatusNotFound, `"error"`},
		{"unknown item", "/veg/prices/Onion", http.StatusNotFound, `"error"`},
		{"unknown history", "/veg/history/onion", http.StatusNotFound, `"error"`},
		{"bad limit", "/veg/runs?limit=abc", http.StatusBadRequest, `"error"`},
		{"limit too large", "/veg/runs?limit=1000", http.StatusBadRequest, `"error"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, router, tt.target)
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d, body: %s", w.Code, tt.wantStatus, w.Body.String())
			}
			if !strings.Contains(w.Body.String(), tt.wantBody) {
				t.Errorf("body %s does not contain %s", w.Body.String(), tt.wantBody)
			}
		})
	}

	if runs.limit != 5 {
		t.Errorf("runs limit = %d, want 5", runs.limit)
	}
}

func TestPriceKeepsMarketOrder(t *testing.T) {
	router := NewRouter(NewHandler(provider.NewCachedSnapshotProvider(seedFiles(t)), nil))
	w := do(t, router, "/veg/prices/tomato")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	body := w.Body.String()
	if strings.Index(body, "Thrissur") > strings.Index(body, "Kochi") {
		t.Errorf("market order not preserved: %s", body)
	}

	var resp struct {
		Name string  `json:"name"`
		Date *string `json:"date"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Name != "Tomato" || resp.Date == nil || *resp.Date != "2024-01-01" {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestMissingCatalogIsUnavailable(t *testing.T) {
	router := NewRouter(NewHandler(provider.NewCachedSnapshotProvider(storage.NewFiles(t.TempDir())), nil))

	for _, target := range []string{"/veg/items", "/veg/markets", "/veg/live", "/veg/runs", "/veg/runs/run-1"} {
		w := do(t, router, target)
		if w.Code != http.StatusServiceUnavailable {
			t.Errorf("%s: status = %d, want 503", target, w.Code)
		}
	}
	w := do(t, router, "/veg/items")
	if !strings.Contains(w.Body.String(), "refresh the catalog first") {
		t.Errorf("unexpected body: %s", w.Body.String())
	}
}

// stubProvider fails every price lookup with err.
type stubProvider struct {
	provider.Provider
	err error
}

func (s stubProvider) PriceFor(context.Context, string, string) (*models.PriceResponse, error) {
	return nil, s.err
}

func TestWriteErrorStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"upstream status", &vfpck.StatusError{URL: "https://www.vfpck.org/vegprice.asp?ID=42", StatusCode: 500}, http.StatusBadGateway},
		{"not found", provider.ErrNotFound, http.StatusNotFound},
		{"catalog missing", storage.ErrCatalogMissing, http.StatusServiceUnavailable},
		{"other", errors.New("disk full"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := NewRouter(NewHandler(stubProvider{err: tt.err}, nil))
			w := do(t, router, "/veg/prices/tomato")
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}
