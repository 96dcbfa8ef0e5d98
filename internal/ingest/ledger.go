package ingest

import (
	"errors"

	"github.com/rewired-gh/vegprice/internal/logger"
	"github.com/rewired-gh/vegprice/internal/models"
	"github.com/rewired-gh/vegprice/internal/storage"
)

// MergeLedger appends one day of prices to an item's ledger unless that date
// is already recorded. A missing or undecodable ledger starts over empty. With
// no date nothing is written. It reports whether the ledger file changed.
func (p *Pipeline) MergeLedger(key, name string, prices *models.PriceMap, date *string) (bool, error) {
	if date == nil {
		logger.Warn("No valid date provided for historic data of %q", name)
		return false, nil
	}

	ledger, err := p.loadLedger(key, name)
	if err != nil {
		return false, err
	}

	entry := models.LedgerEntry{Date: *date, Prices: models.Flatten(prices)}
	if !ledger.Append(entry) {
		logger.Info("Historic data for %q on %s already exists, skipping", name, *date)
		return false, nil
	}

	if err := p.files.SaveLedger(ledger); err != nil {
		return false, err
	}
	logger.Debug("Historic data updated for %q", name)
	return true, nil
}

func (p *Pipeline) loadLedger(key, name string) (*models.Ledger, error) {
	ledger, err := p.files.LoadLedger(key)
	switch {
	case err == nil:
	case errors.Is(err, storage.ErrLedgerMissing):
		return models.NewLedger(key, name), nil
	case errors.Is(err, storage.ErrCorrupt):
		logger.Warn("Failed to parse existing historic file for %q, starting fresh: %v", name, err)
		return models.NewLedger(key, name), nil
	default:
		return nil, err
	}

	// the file name is authoritative for the id
	ledger.ID = key
	if ledger.Name == "" {
		ledger.Name = name
	}
	return ledger, nil
}
