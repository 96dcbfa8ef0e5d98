package vfpck

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

const catalogPage = `<html><body>
<table><tr><td><strong>Date: 2024-01-01</strong></td></tr></table>
<table><tr><td><a href="mwiseprice.asp?ID=11">Thrissur</a></td></tr></table>
<table><tr><td><a href="vegprice.asp?ID=42">Tomato</a></td><td><a href="vegprice.asp?ID=7">Onion</a></td></tr></table>
</body></html>`

const tomatoPage = `<html><body>
<table><tr><td><strong>Date: 2024-01-01</strong></td></tr></table>
<table>
<tr><td>Market</td></tr><tr><td>WP</td></tr>
<tr><td>Thrissur</td><td>20</td><td>25</td><td>22</td><td>27</td></tr>
<tr><td>Kochi</td><td>21</td><td>26</td><td>23</td><td>28</td></tr>
</table>
</body></html>`

type requestLog struct {
	mu   sync.Mutex
	reqs []*http.Request
}

func (l *requestLog) add(r *http.Request) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reqs = append(l.reqs, r)
}

func (l *requestLog) all() []*http.Request {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*http.Request(nil), l.reqs...)
}

func newTestServer(t *testing.T) (*httptest.Server, *requestLog) {
	t.Helper()
	seen := &requestLog{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen.add(r)
		switch {
		case r.URL.Path == "/market_price.asp":
			_, _ = w.Write([]byte(catalogPage))
		case r.URL.Path == "/vegprice.asp" && r.URL.Query().Get("ID") == "42":
			_, _ = w.Write([]byte(tomatoPage))
		case r.URL.Path == "/mwiseprice.asp" && r.URL.Query().Get("ID") == "11":
			_, _ = w.Write([]byte(tomatoPage))
		default:
			http.Error(w, "boom", http.StatusInternalServerError)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, seen
}

func newTestClient(baseURL string) *Client {
	return NewClient(baseURL, NewHTTPFetcher(ClientConfig{
		Timeout:   5 * time.Second,
		UserAgent: "vegprice-test",
	}))
}

func TestClientURLs(t *testing.T) {
	c := NewClient("https://www.vfpck.org/", nil)
	if got := c.CatalogURL(); got != "https://www.vfpck.org/market_price.asp" {
		t.Errorf("CatalogURL() = %s", got)
	}
	if got := c.ItemURL(" 42 "); got != "https://www.vfpck.org/vegprice.asp?ID=42" {
		t.Errorf("ItemURL() = %s", got)
	}
	if got := c.MarketURL("11"); got != "https://www.vfpck.org/mwiseprice.asp?ID=11" {
		t.Errorf("MarketURL() = %s", got)
	}
}

func TestFetchCatalogs(t *testing.T) {
	srv, seen := newTestServer(t)
	c := newTestClient(srv.URL)

	markets, items, err := c.FetchCatalogs(context.Background())
	if err != nil {
		t.Fatalf("FetchCatalogs: %v", err)
	}
	reqs := seen.all()
	if len(reqs) != 1 {
		t.Fatalf("catalog page fetched %d times, want 1", len(reqs))
	}
	if len(markets.Data) != 1 || markets.Data[0].Title != "Thrissur" {
		t.Errorf("unexpected markets: %+v", markets.Data)
	}
	if len(items.Data) != 2 || items.Data[1].ID != "7" {
		t.Errorf("unexpected items: %+v", items.Data)
	}
	if items.Date == nil || *items.Date != "2024-01-01" {
		t.Errorf("unexpected date: %v", items.Date)
	}
	if ua := reqs[0].Header.Get("User-Agent"); ua != "vegprice-test" {
		t.Errorf("User-Agent = %q", ua)
	}
}

func TestFetchItemPrices(t *testing.T) {
	srv, _ := newTestServer(t)
	c := newTestClient(srv.URL)

	resp, err := c.FetchItemPrices(context.Background(), "42", "")
	if err != nil {
		t.Fatalf("FetchItemPrices: %v", err)
	}
	if got := strings.Join(resp.Data.Keys(), ","); got != "Thrissur,Kochi" {
		t.Errorf("unexpected markets: %s", got)
	}

	resp, err = c.FetchItemPrices(context.Background(), "42", "kochi")
	if err != nil {
		t.Fatalf("FetchItemPrices: %v", err)
	}
	if got := strings.Join(resp.Data.Keys(), ","); got != "Kochi" {
		t.Errorf("filter not applied: %s", got)
	}
}

func TestFetchMarketPrices(t *testing.T) {
	srv, _ := newTestServer(t)
	c := newTestClient(srv.URL)

	resp, err := c.FetchMarketPrices(context.Background(), "11", "")
	if err != nil {
		t.Fatalf("FetchMarketPrices: %v", err)
	}
	if resp.Data.Len() != 2 {
		t.Errorf("got %d rows, want 2", resp.Data.Len())
	}
}

func TestFetch_StatusError(t *testing.T) {
	srv, seen := newTestServer(t)
	c := newTestClient(srv.URL)

	_, err := c.FetchItemPrices(context.Background(), "999", "")
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if statusErr.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d", statusErr.StatusCode)
	}
	if n := len(seen.all()); n != 1 {
		t.Errorf("failed request was attempted %d times, want 1", n)
	}
}

func TestFetch_Paced(t *testing.T) {
	srv, _ := newTestServer(t)
	f := NewHTTPFetcher(ClientConfig{Timeout: 5 * time.Second, RequestInterval: 100 * time.Millisecond})

	start := time.Now()
	for i := 0; i < 3; i++ {
		if _, err := f.Fetch(context.Background(), srv.URL+"/market_price.asp"); err != nil {
			t.Fatalf("Fetch: %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed < 180*time.Millisecond {
		t.Errorf("3 paced requests took %v, expected at least ~200ms", elapsed)
	}
}

func TestFetch_CancelledContext(t *testing.T) {
	srv, _ := newTestServer(t)
	f := NewHTTPFetcher(ClientConfig{Timeout: 5 * time.Second})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := f.Fetch(ctx, srv.URL+"/market_price.asp"); err == nil {
		t.Error("expected error for cancelled context")
	}
}
