// Package provider answers price lookups either from the persisted snapshot
// or by scraping the source on demand. Both implementations share the same
// catalog, snapshot and history readers.
package provider

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/rewired-gh/vegprice/internal/config"
	"github.com/rewired-gh/vegprice/internal/models"
	"github.com/rewired-gh/vegprice/internal/storage"
)

// ErrNotFound means no item or market matched the requested name.
var ErrNotFound = errors.New("no matching entry")

// Provider is the read interface used by the API and the CLI.
type Provider interface {
	Catalog(ctx context.Context, kind models.CatalogKind) (*models.Catalog, error)
	LiveSnapshot(ctx context.Context) (*models.Snapshot, error)
	PriceFor(ctx context.Context, item, market string) (*models.PriceResponse, error)
	PriceForMarket(ctx context.Context, market, item string) (*models.PriceResponse, error)
	History(ctx context.Context, item string) (*models.Ledger, error)
}

// PriceSource fetches price pages by source id.
type PriceSource interface {
	FetchItemPrices(ctx context.Context, id, marketFilter string) (models.PriceResponse, error)
	FetchMarketPrices(ctx context.Context, id, itemFilter string) (models.PriceResponse, error)
}

// New returns the provider selected by mode. The source is only required in
// live mode.
func New(mode string, files *storage.Files, source PriceSource) (Provider, error) {
	switch mode {
	case config.ProviderCached:
		return NewCachedSnapshotProvider(files), nil
	case config.ProviderLive:
		if source == nil {
			return nil, errors.New("live provider requires a price source")
		}
		return NewLiveScrapeProvider(files, source), nil
	default:
		return nil, fmt.Errorf("unknown provider mode %q", mode)
	}
}

// fileReader holds the lookups that always come from disk.
type fileReader struct {
	files *storage.Files
}

func (r fileReader) Catalog(_ context.Context, kind models.CatalogKind) (*models.Catalog, error) {
	return r.files.LoadCatalog(kind)
}

func (r fileReader) LiveSnapshot(_ context.Context) (*models.Snapshot, error) {
	return r.files.LoadLive()
}

// History returns the ledger for an item given its key or display name. A
// name that is not a key is resolved through the item catalog.
func (r fileReader) History(_ context.Context, item string) (*models.Ledger, error) {
	key := models.CanonicalKey(item)
	if key == "" {
		return nil, fmt.Errorf("%w: empty item name", ErrNotFound)
	}
	ledger, err := r.files.LoadLedger(key)
	if !errors.Is(err, storage.ErrLedgerMissing) {
		return ledger, err
	}

	items, cerr := r.files.LoadCatalog(models.CatalogItems)
	if cerr != nil {
		if errors.Is(cerr, storage.ErrCatalogMissing) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, item)
		}
		return nil, cerr
	}
	re := namePattern(item)
	for _, e := range items.Data {
		if !re.MatchString(e.Title) {
			continue
		}
		ledger, err = r.files.LoadLedger(models.CanonicalKey(e.Title))
		if errors.Is(err, storage.ErrLedgerMissing) {
			break
		}
		return ledger, err
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, item)
}

// namePattern builds the case-insensitive fallback matcher for a name. Names
// that are not valid expressions are matched literally.
func namePattern(name string) *regexp.Regexp {
	name = strings.TrimSpace(name)
	re, err := regexp.Compile("(?i)" + name)
	if err != nil {
		re = regexp.MustCompile("(?i)" + regexp.QuoteMeta(name))
	}
	return re
}

// sameName compares counterpart names the way the price extractor filters
// them.
func sameName(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
