package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rewired-gh/vegprice/internal/models"
	_ "modernc.org/sqlite"
)

// ErrRunNotFound means the journal has no run with the requested id.
var ErrRunNotFound = errors.New("run not found")

// Journal is a SQLite log of ingestion runs and their per-item failures.
// It never holds price data; the JSON files remain the source of truth.
type Journal struct {
	db *sql.DB
}

// OpenJournal opens or creates the journal database at dbPath.
// An empty dbPath defaults to $TMPDIR/vegprice/journal.db.
func OpenJournal(dbPath string) (*Journal, error) {
	if dbPath == "" {
		dbPath = filepath.Join(os.TempDir(), "vegprice", "journal.db")
	}
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create journal directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // single writer; also keeps :memory: on one connection
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}
	if _, err := db.Exec(`PRAGMA foreign_keys=ON`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	j := &Journal{db: db}
	if err := j.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return j, nil
}

// Close closes the underlying database connection.
func (j *Journal) Close() error {
	return j.db.Close()
}

func (j *Journal) createTables() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id            TEXT PRIMARY KEY,
			started_at    INTEGER NOT NULL,
			finished_at   INTEGER NOT NULL,
			source_date   TEXT,
			status        TEXT NOT NULL,
			items_total   INTEGER NOT NULL DEFAULT 0,
			items_ok      INTEGER NOT NULL DEFAULT 0,
			ledgers_added INTEGER NOT NULL DEFAULT 0,
			message       TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS run_failures (
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			seq    INTEGER NOT NULL,
			item   TEXT NOT NULL,
			error  TEXT NOT NULL,
			PRIMARY KEY (run_id, seq)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at DESC)`,
	}
	for _, stmt := range stmts {
		if _, err := j.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// RecordRun stores a finished run together with its failures.
func (j *Journal) RecordRun(run *models.Run) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("invalid run: %w", err)
	}
	tx, err := j.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.Exec(`
		INSERT INTO runs
			(id, started_at, finished_at, source_date, status,
			 items_total, items_ok, ledgers_added, message)
		VALUES (?,?,?,?,?,?,?,?,?)`,
		run.ID, run.StartedAt.UnixNano(), run.FinishedAt.UnixNano(), nullString(run.SourceDate),
		string(run.Status), run.ItemsTotal, run.ItemsOK, run.LedgersAdded, run.Message,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	for i, f := range run.Failures {
		if _, err := tx.Exec(`INSERT INTO run_failures (run_id, seq, item, error) VALUES (?,?,?,?)`,
			run.ID, i, f.Item, f.Error); err != nil {
			return fmt.Errorf("failed to insert failure for %s: %w", f.Item, err)
		}
	}

	return tx.Commit()
}

// GetRun returns a run with its failures.
func (j *Journal) GetRun(id string) (*models.Run, error) {
	row := j.db.QueryRow(`SELECT `+runCols+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row.Scan)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	if run.Failures, err = j.failures(id); err != nil {
		return nil, err
	}
	return run, nil
}

// RecentRuns returns up to limit runs, newest first, without failure details.
func (j *Journal) RecentRuns(limit int) ([]models.Run, error) {
	rows, err := j.db.Query(`SELECT `+runCols+` FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	runs := []models.Run{}
	for rows.Next() {
		run, err := scanRun(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// LastUpdate returns the most recent run that wrote a snapshot, or nil.
func (j *Journal) LastUpdate() (*models.Run, error) {
	row := j.db.QueryRow(`SELECT `+runCols+` FROM runs WHERE status = ? ORDER BY started_at DESC LIMIT 1`,
		string(models.RunUpdated))
	run, err := scanRun(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get last update: %w", err)
	}
	return run, nil
}

func (j *Journal) failures(runID string) ([]models.ItemFailure, error) {
	rows, err := j.db.Query(`SELECT item, error FROM run_failures WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query failures: %w", err)
	}
	defer rows.Close()

	var out []models.ItemFailure
	for rows.Next() {
		var f models.ItemFailure
		if err := rows.Scan(&f.Item, &f.Error); err != nil {
			return nil, fmt.Errorf("failed to scan failure: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

const runCols = `id, started_at, finished_at, source_date, status,
	items_total, items_ok, ledgers_added, message`

func scanRun(scan func(...any) error) (*models.Run, error) {
	var r models.Run
	var startedNano, finishedNano int64
	var sourceDate, message sql.NullString
	var status string
	err := scan(
		&r.ID, &startedNano, &finishedNano, &sourceDate, &status,
		&r.ItemsTotal, &r.ItemsOK, &r.LedgersAdded, &message,
	)
	if err != nil {
		return nil, err
	}
	r.StartedAt = time.Unix(0, startedNano)
	r.FinishedAt = time.Unix(0, finishedNano)
	r.Status = models.RunStatus(status)
	r.Message = message.String
	if sourceDate.Valid {
		d := sourceDate.String
		r.SourceDate = &d
	}
	return &r, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
