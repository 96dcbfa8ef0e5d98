package provider

import (
	"context"
	"fmt"

	"github.com/rewired-gh/vegprice/internal/models"
	"github.com/rewired-gh/vegprice/internal/storage"
)

// LiveScrapeProvider resolves names through the persisted catalogs and
// fetches the matching price page from the source on every lookup. The live
// snapshot and histories still come from disk.
type LiveScrapeProvider struct {
	fileReader
	source PriceSource
}

// NewLiveScrapeProvider creates a provider that scrapes through source.
func NewLiveScrapeProvider(files *storage.Files, source PriceSource) *LiveScrapeProvider {
	return &LiveScrapeProvider{fileReader: fileReader{files: files}, source: source}
}

func (p *LiveScrapeProvider) PriceFor(ctx context.Context, item, market string) (*models.PriceResponse, error) {
	entry, err := p.find(ctx, models.CatalogItems, item)
	if err != nil {
		return nil, err
	}
	resp, err := p.source.FetchItemPrices(ctx, entry.ID, market)
	if err != nil {
		return nil, err
	}
	resp.Name = entry.Title
	return &resp, nil
}

func (p *LiveScrapeProvider) PriceForMarket(ctx context.Context, market, item string) (*models.PriceResponse, error) {
	entry, err := p.find(ctx, models.CatalogMarkets, market)
	if err != nil {
		return nil, err
	}
	resp, err := p.source.FetchMarketPrices(ctx, entry.ID, item)
	if err != nil {
		return nil, err
	}
	resp.Name = entry.Title
	return &resp, nil
}

func (p *LiveScrapeProvider) find(ctx context.Context, kind models.CatalogKind, name string) (models.CatalogEntry, error) {
	cat, err := p.Catalog(ctx, kind)
	if err != nil {
		return models.CatalogEntry{}, err
	}
	entry, ok := cat.Find(name)
	if !ok {
		return models.CatalogEntry{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err := entry.Validate(); err != nil {
		return models.CatalogEntry{}, fmt.Errorf("%s: %w", name, err)
	}
	return entry, nil
}
