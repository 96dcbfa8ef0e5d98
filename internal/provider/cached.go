package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/rewired-gh/vegprice/internal/models"
	"github.com/rewired-gh/vegprice/internal/storage"
)

// CachedSnapshotProvider answers every lookup from the files written by the
// last ingestion.
type CachedSnapshotProvider struct {
	fileReader
}

// NewCachedSnapshotProvider creates a provider over the data directory.
func NewCachedSnapshotProvider(files *storage.Files) *CachedSnapshotProvider {
	return &CachedSnapshotProvider{fileReader{files: files}}
}

// PriceFor resolves item against the live snapshot and returns its prices,
// optionally narrowed to one market. An exact canonical key wins; otherwise
// the first item, in snapshot order, whose display name matches item
// case-insensitively is used.
func (p *CachedSnapshotProvider) PriceFor(ctx context.Context, item, market string) (*models.PriceResponse, error) {
	snap, err := p.LiveSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	found, ok := resolveItem(snap, item)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, item)
	}

	resp := &models.PriceResponse{Date: found.LastUpdated, Name: found.Name}
	for place, q := range found.Data.All() {
		if market != "" && !sameName(place, market) {
			continue
		}
		resp.Data.Set(place, q)
	}
	return resp, nil
}

// PriceForMarket pivots the live snapshot: for one market it lists every
// item that has a price there, optionally narrowed to one item name.
func (p *CachedSnapshotProvider) PriceForMarket(ctx context.Context, market, item string) (*models.PriceResponse, error) {
	if strings.TrimSpace(market) == "" {
		return nil, fmt.Errorf("%w: empty market name", ErrNotFound)
	}
	snap, err := p.LiveSnapshot(ctx)
	if err != nil {
		return nil, err
	}

	resp := &models.PriceResponse{Date: snap.Date}
	seen := false
	for _, li := range snap.Data.All() {
		for place, q := range li.Data.All() {
			if !sameName(place, market) {
				continue
			}
			seen = true
			if resp.Name == "" {
				resp.Name = place
			}
			if item == "" || sameName(li.Name, item) {
				resp.Data.Set(li.Name, q)
			}
		}
	}
	if !seen {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, market)
	}
	return resp, nil
}

func resolveItem(snap *models.Snapshot, name string) (models.LiveItem, bool) {
	if strings.TrimSpace(name) == "" {
		return models.LiveItem{}, false
	}
	if li, ok := snap.Data.Get(models.CanonicalKey(name)); ok {
		return li, true
	}
	re := namePattern(name)
	for _, li := range snap.Data.All() {
		if re.MatchString(li.Name) {
			return li, true
		}
	}
	return models.LiveItem{}, false
}
