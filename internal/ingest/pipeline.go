// Package ingest builds the daily price snapshot from the source and folds it
// into the per-item historic ledgers.
//
// Items are processed one at a time. A failing item is logged and left out of
// the snapshot; only a missing catalog or an empty result fails the whole run.
// When the source still reports the date already recorded in the live
// snapshot, nothing is written, so repeated triggers on the same day leave the
// data directory untouched.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rewired-gh/vegprice/internal/logger"
	"github.com/rewired-gh/vegprice/internal/models"
	"github.com/rewired-gh/vegprice/internal/storage"
)

var (
	// ErrNoPrices means no catalog item produced a price table.
	ErrNoPrices = errors.New("no item prices could be fetched")
	// ErrEmptyCatalog means the source listed neither items nor markets.
	ErrEmptyCatalog = errors.New("catalog page listed no entries")
)

// Source is the subset of the source client the pipeline drives.
type Source interface {
	FetchCatalogs(ctx context.Context) (markets, items models.Catalog, err error)
	FetchItemPrices(ctx context.Context, id, marketFilter string) (models.PriceResponse, error)
}

// RunRecorder persists run records.
type RunRecorder interface {
	RecordRun(run *models.Run) error
}

// Notifier is told about runs that wrote a new snapshot.
type Notifier interface {
	NotifyRun(run *models.Run) error
}

// Options carries the optional collaborators of a Pipeline.
type Options struct {
	Journal  RunRecorder
	Notifier Notifier
}

// Pipeline runs catalog refreshes and price ingestions against one data
// directory.
type Pipeline struct {
	source   Source
	files    *storage.Files
	journal  RunRecorder
	notifier Notifier
	now      func() time.Time
}

// New creates a Pipeline.
func New(source Source, files *storage.Files, opts Options) *Pipeline {
	return &Pipeline{
		source:   source,
		files:    files,
		journal:  opts.Journal,
		notifier: opts.Notifier,
		now:      time.Now,
	}
}

// Refresh downloads the market and item catalogs and replaces both files.
func (p *Pipeline) Refresh(ctx context.Context) (markets, items models.Catalog, err error) {
	markets, items, err = p.source.FetchCatalogs(ctx)
	if err != nil {
		return markets, items, err
	}
	if len(markets.Data) == 0 && len(items.Data) == 0 {
		return markets, items, ErrEmptyCatalog
	}
	if err := p.files.SaveCatalog(models.CatalogMarkets, &markets); err != nil {
		return markets, items, fmt.Errorf("failed to save markets: %w", err)
	}
	if err := p.files.SaveCatalog(models.CatalogItems, &items); err != nil {
		return markets, items, fmt.Errorf("failed to save items: %w", err)
	}
	logger.Info("Catalog refreshed: %d markets, %d items (date: %s)",
		len(markets.Data), len(items.Data), models.DateString(items.Date))
	return markets, items, nil
}

// BuildSnapshot fetches prices for every catalog item in order. Items that
// fail are returned as failures and left out of the snapshot. The snapshot's
// date is the first non-nil item date. Only context cancellation aborts the
// loop.
func (p *Pipeline) BuildSnapshot(ctx context.Context, catalog *models.Catalog) (*models.Snapshot, []models.ItemFailure, error) {
	snap, failures, _, err := p.buildSnapshot(ctx, catalog, nil)
	return snap, failures, err
}

// buildSnapshot is BuildSnapshot that stops as soon as the snapshot date is
// known to equal known. The returned flag reports such an early stop.
func (p *Pipeline) buildSnapshot(ctx context.Context, catalog *models.Catalog, known *string) (*models.Snapshot, []models.ItemFailure, bool, error) {
	snap := &models.Snapshot{}
	var failures []models.ItemFailure

	for _, entry := range catalog.Data {
		if err := ctx.Err(); err != nil {
			return nil, failures, false, err
		}

		name := strings.TrimSpace(entry.Title)
		if name == "" {
			continue
		}
		if err := entry.Validate(); err != nil {
			logger.Error("Skipping %q: %v", name, err)
			failures = append(failures, models.ItemFailure{Item: name, Error: err.Error()})
			continue
		}

		resp, err := p.source.FetchItemPrices(ctx, entry.ID, "")
		if err != nil {
			logger.Error("Failed to fetch price for %q: %v", name, err)
			failures = append(failures, models.ItemFailure{Item: name, Error: err.Error()})
			continue
		}

		snap.Data.Set(models.CanonicalKey(name), models.LiveItem{
			Name:        name,
			Data:        resp.Data,
			LastUpdated: resp.Date,
		})
		logger.Debug("Fetched %d markets for %q", resp.Data.Len(), name)

		if snap.Date == nil && resp.Date != nil {
			snap.Date = resp.Date
			if models.SameDate(snap.Date, known) {
				return snap, failures, true, nil
			}
		}
	}

	return snap, failures, false, nil
}

// Run performs one ingestion: build the snapshot, compare its date with the
// live snapshot, then append ledgers and replace the live file. The crawl
// stops at the first dated item when that date is already live. The returned
// run is also recorded in the journal when one is configured.
func (p *Pipeline) Run(ctx context.Context) (*models.Run, error) {
	run := &models.Run{ID: uuid.NewString(), StartedAt: p.now()}
	logger.Info("Processing daily prices (run %s)", run.ID)

	err := p.run(ctx, run)
	if err != nil {
		run.Status = models.RunFailed
		run.Message = err.Error()
	}
	run.FinishedAt = p.now()

	if p.journal != nil {
		if jerr := p.journal.RecordRun(run); jerr != nil {
			logger.Warn("Failed to record run %s: %v", run.ID, jerr)
		}
	}
	if err == nil && run.Status == models.RunUpdated && p.notifier != nil {
		if nerr := p.notifier.NotifyRun(run); nerr != nil {
			logger.Warn("Failed to send update notification: %v", nerr)
		}
	}
	return run, err
}

func (p *Pipeline) run(ctx context.Context, run *models.Run) error {
	catalog, err := p.files.LoadCatalog(models.CatalogItems)
	if err != nil {
		return err
	}
	run.ItemsTotal = len(catalog.Data)

	var knownDate *string
	if previous := p.previousLive(); previous != nil {
		knownDate = previous.Date
	}

	snap, failures, upToDate, err := p.buildSnapshot(ctx, catalog, knownDate)
	run.Failures = failures
	if err != nil {
		return fmt.Errorf("snapshot aborted: %w", err)
	}
	run.ItemsOK = snap.Data.Len()
	run.SourceDate = snap.Date
	if upToDate {
		logger.Info("Data is already up-to-date (%s), skipping live snapshot and historic data", *snap.Date)
		run.Status = models.RunSkipped
		return nil
	}
	if snap.Data.Len() == 0 {
		return ErrNoPrices
	}
	logger.Debug("Snapshot items: %s", strings.Join(snap.Data.Keys(), ", "))

	if snap.Date == nil {
		logger.Warn("Source published no date, historic data will not be updated")
	}
	for key, item := range snap.Data.All() {
		added, err := p.MergeLedger(key, item.Name, &item.Data, snap.Date)
		if err != nil {
			logger.Error("Failed to update historic data for %q: %v", item.Name, err)
			run.Failures = append(run.Failures, models.ItemFailure{Item: item.Name, Error: err.Error()})
			continue
		}
		if added {
			run.LedgersAdded++
		}
	}

	if err := p.files.SaveLive(snap); err != nil {
		return fmt.Errorf("failed to write live snapshot: %w", err)
	}
	run.Status = models.RunUpdated
	logger.Info("Daily prices updated: %d/%d items, %d ledgers extended (date: %s)",
		run.ItemsOK, run.ItemsTotal, run.LedgersAdded, models.DateString(snap.Date))
	return nil
}

// previousLive returns the current live snapshot, or nil when there is none
// or it cannot be read.
func (p *Pipeline) previousLive() *models.Snapshot {
	prev, err := p.files.LoadLive()
	switch {
	case err == nil:
		return prev
	case errors.Is(err, storage.ErrLiveMissing):
		return nil
	default:
		logger.Warn("Failed to read existing live snapshot, will update anyway: %v", err)
		return nil
	}
}
