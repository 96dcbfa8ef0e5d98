// Package storage provides persistence: the JSON data files that hold
// catalogs, the live snapshot and the historic ledgers, and a SQLite journal
// of ingestion runs.
package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rewired-gh/vegprice/internal/models"
)

const (
	liveFile   = "live.json"
	historyDir = "historic_data"
)

var (
	// ErrCatalogMissing means the catalog has never been refreshed.
	ErrCatalogMissing = errors.New("catalog not found, refresh the catalog first")
	// ErrLiveMissing means no snapshot has been written yet.
	ErrLiveMissing = errors.New("live snapshot not found, run an ingestion first")
	// ErrLedgerMissing means the item has no history yet.
	ErrLedgerMissing = errors.New("ledger not found")
	// ErrCorrupt means a persisted file exists but cannot be decoded.
	ErrCorrupt = errors.New("corrupt data file")
)

// Files reads and writes the data directory. Every write marshals the whole
// document in memory first and replaces the target file in one rename.
type Files struct {
	dir string
}

// NewFiles returns a Files rooted at dir.
func NewFiles(dir string) *Files {
	return &Files{dir: dir}
}

// Dir returns the data directory.
func (f *Files) Dir() string {
	return f.dir
}

// CatalogPath returns markets.json or items.json.
func (f *Files) CatalogPath(kind models.CatalogKind) string {
	return filepath.Join(f.dir, string(kind)+".json")
}

// LivePath returns the live snapshot path.
func (f *Files) LivePath() string {
	return filepath.Join(f.dir, liveFile)
}

// LedgerPath returns historic_data/<key>.json.
func (f *Files) LedgerPath(key string) string {
	return filepath.Join(f.dir, historyDir, key+".json")
}

// LoadCatalog reads a catalog. A missing file yields ErrCatalogMissing.
func (f *Files) LoadCatalog(kind models.CatalogKind) (*models.Catalog, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("unknown catalog kind %q", kind)
	}
	var cat models.Catalog
	err := readJSON(f.CatalogPath(kind), &cat)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", kind, ErrCatalogMissing)
	}
	if err != nil {
		return nil, err
	}
	if cat.Data == nil {
		cat.Data = []models.CatalogEntry{}
	}
	return &cat, nil
}

// SaveCatalog replaces a catalog file.
func (f *Files) SaveCatalog(kind models.CatalogKind, cat *models.Catalog) error {
	if !kind.Valid() {
		return fmt.Errorf("unknown catalog kind %q", kind)
	}
	out := *cat
	if out.Data == nil {
		out.Data = []models.CatalogEntry{}
	}
	return writeJSON(f.CatalogPath(kind), out)
}

// LoadLive reads the live snapshot. A missing file yields ErrLiveMissing and
// an undecodable one ErrCorrupt.
func (f *Files) LoadLive() (*models.Snapshot, error) {
	var snap models.Snapshot
	err := readJSON(f.LivePath(), &snap)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrLiveMissing
	}
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

// SaveLive overwrites the live snapshot.
func (f *Files) SaveLive(snap *models.Snapshot) error {
	return writeJSON(f.LivePath(), snap)
}

// LoadLedger reads an item's ledger. A missing file yields ErrLedgerMissing
// and an undecodable one ErrCorrupt.
func (f *Files) LoadLedger(key string) (*models.Ledger, error) {
	if err := checkKey(key); err != nil {
		return nil, err
	}
	var l models.Ledger
	err := readJSON(f.LedgerPath(key), &l)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", key, ErrLedgerMissing)
	}
	if err != nil {
		return nil, err
	}
	if l.Data == nil {
		return nil, fmt.Errorf("%s: %w: ledger has no data array", key, ErrCorrupt)
	}
	return &l, nil
}

// SaveLedger writes a ledger to the file named by its ID.
func (f *Files) SaveLedger(l *models.Ledger) error {
	if err := checkKey(l.ID); err != nil {
		return err
	}
	return writeJSON(f.LedgerPath(l.ID), l)
}

// checkKey keeps ledger lookups inside the history directory.
func checkKey(key string) error {
	if key == "" || key != models.CanonicalKey(key) {
		return fmt.Errorf("invalid ledger key %q", key)
	}
	return nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%s: %w: %v", filepath.Base(path), ErrCorrupt, err)
	}
	return nil
}

// writeJSON encodes v with two-space indentation and without HTML escaping,
// writes it to a temporary file beside path and renames it into place.
func writeJSON(path string, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode %s: %w", filepath.Base(path), err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", filepath.Base(path), err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("failed to chmod %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", filepath.Base(path), err)
	}
	return nil
}
