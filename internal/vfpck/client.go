// Package vfpck fetches listing pages from the VFPCK market price website and
// hands them to the extractors.
package vfpck

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/rewired-gh/vegprice/internal/extract"
	"github.com/rewired-gh/vegprice/internal/models"
)

const (
	catalogPath = "/market_price.asp"
	itemPath    = "/vegprice.asp"
	marketPath  = "/mwiseprice.asp"

	// Table positions on the catalog page.
	marketTableIndex = 1
	itemTableIndex   = 2

	// maxPageSize bounds how much of a response body is read.
	maxPageSize = 8 << 20
)

// Fetcher returns the raw markup at a URL.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (string, error)
}

// StatusError reports a non-200 response from the source.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.StatusCode, e.URL)
}

// ClientConfig holds tuning for the HTTP fetcher.
type ClientConfig struct {
	Timeout         time.Duration
	RequestInterval time.Duration
	UserAgent       string
}

// HTTPFetcher is a Fetcher over net/http that spaces requests out by a fixed
// interval. Failed requests are not retried.
type HTTPFetcher struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	userAgent  string
}

// NewHTTPFetcher creates a fetcher. A zero RequestInterval disables pacing.
func NewHTTPFetcher(cfg ClientConfig) *HTTPFetcher {
	limit := rate.Inf
	if cfg.RequestInterval > 0 {
		limit = rate.Every(cfg.RequestInterval)
	}
	return &HTTPFetcher{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(limit, 1),
		userAgent:  cfg.UserAgent,
	}
}

// Fetch performs a single GET and returns the body as a string.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "text/html")
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &StatusError{URL: rawURL, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageSize))
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", rawURL, err)
	}
	return string(body), nil
}

// Client knows the source's page layout.
type Client struct {
	baseURL string
	fetcher Fetcher
}

// NewClient creates a client rooted at baseURL.
func NewClient(baseURL string, fetcher Fetcher) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		fetcher: fetcher,
	}
}

// CatalogURL is the page listing every market and item.
func (c *Client) CatalogURL() string {
	return c.baseURL + catalogPath
}

// ItemURL is the per-item price page.
func (c *Client) ItemURL(id string) string {
	return c.pageURL(itemPath, id)
}

// MarketURL is the per-market price page.
func (c *Client) MarketURL(id string) string {
	return c.pageURL(marketPath, id)
}

func (c *Client) pageURL(path, id string) string {
	return c.baseURL + path + "?ID=" + url.QueryEscape(strings.TrimSpace(id))
}

// FetchCatalogs downloads the catalog page once and extracts both the market
// and the item lists from it.
func (c *Client) FetchCatalogs(ctx context.Context) (markets, items models.Catalog, err error) {
	markup, err := c.fetcher.Fetch(ctx, c.CatalogURL())
	if err != nil {
		return markets, items, fmt.Errorf("failed to fetch catalog page: %w", err)
	}
	markets, err = extract.Catalog(markup, marketTableIndex)
	if err != nil {
		return markets, items, fmt.Errorf("failed to extract markets: %w", err)
	}
	items, err = extract.Catalog(markup, itemTableIndex)
	if err != nil {
		return markets, items, fmt.Errorf("failed to extract items: %w", err)
	}
	return markets, items, nil
}

// FetchItemPrices returns market -> prices for one item, optionally narrowed
// to a single market.
func (c *Client) FetchItemPrices(ctx context.Context, id, marketFilter string) (models.PriceResponse, error) {
	return c.fetchPrices(ctx, c.ItemURL(id), marketFilter)
}

// FetchMarketPrices returns item -> prices for one market, optionally
// narrowed to a single item.
func (c *Client) FetchMarketPrices(ctx context.Context, id, itemFilter string) (models.PriceResponse, error) {
	return c.fetchPrices(ctx, c.MarketURL(id), itemFilter)
}

func (c *Client) fetchPrices(ctx context.Context, pageURL, filter string) (models.PriceResponse, error) {
	markup, err := c.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		return models.PriceResponse{}, err
	}
	resp, err := extract.Prices(markup, filter)
	if err != nil {
		return models.PriceResponse{}, fmt.Errorf("failed to extract prices from %s: %w", pageURL, err)
	}
	return resp, nil
}
