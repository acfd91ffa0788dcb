package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/cohortlab/unionfit/internal/model"
)

// ResultDB provides SQLite-based storage for fit results.
// It manages connection pooling and provides methods for saving runs and
// querying history.
//
// Design decision: One database file holds all (sex, group) runs rather
// than a file per series. This keeps cross-run comparison a single query
// and simplifies backup.
type ResultDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures ResultDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging for better concurrent
	// performance. This is recommended for most use cases.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a ResultDB at the specified directory.
// If CreateIfNotExists is true, the directory and database file are created.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*ResultDB, error) {
	dbPath := filepath.Join(dbDir, "unionfit.db")

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// modernc.org/sqlite connection string: mode=rw prevents creating new
	// files, mode=rwc allows creation.
	var dsn string
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	} else {
		dsn = dbPath + "?mode=rw"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer; a single connection avoids lock
	// contention between the batch goroutines that save results.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	rdb := &ResultDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := rdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return rdb, nil
}

// Close closes the database connection.
func (rdb *ResultDB) Close() error {
	return rdb.db.Close()
}

// createTables creates the database schema if it doesn't exist.
func (rdb *ResultDB) createTables() error {
	schema := `
	-- One row per (sex, group, method) fit
	CREATE TABLE IF NOT EXISTS fits (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		sex TEXT NOT NULL,
		grp TEXT NOT NULL,
		method TEXT NOT NULL,
		fitted_at DATETIME NOT NULL,
		converged INTEGER NOT NULL,
		iterations INTEGER NOT NULL,
		mae REAL NOT NULL,
		start_age INTEGER NOT NULL,
		n_ages INTEGER NOT NULL,
		report_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_fits_run ON fits(sex, grp);
	CREATE INDEX IF NOT EXISTS idx_fits_fitted_at ON fits(fitted_at);

	-- Per-age rows of the fitted transition table, queryable with plain SQL
	CREATE TABLE IF NOT EXISTS fit_points (
		fit_id INTEGER NOT NULL REFERENCES fits(id) ON DELETE CASCADE,
		age INTEGER NOT NULL,
		observed REAL NOT NULL,
		reconstructed REAL NOT NULL,
		abs_error REAL NOT NULL,
		entry_prob REAL,
		exit_prob REAL,
		PRIMARY KEY (fit_id, age)
	);
	`

	_, err := rdb.db.Exec(schema)
	return err
}

// FitSummary is one stored fit's metadata, used for history listings.
type FitSummary struct {
	ID         int64
	Key        model.RunKey
	Method     string
	FittedAt   time.Time
	Converged  bool
	Iterations int
	MAE        float64
	StartAge   int
	NumAges    int
}

// SaveReport persists every result on a FitReport: one fits row plus its
// fit_points rows per method, all in a single transaction.
func (rdb *ResultDB) SaveReport(ctx context.Context, report *model.FitReport) error {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to serialize report: %w", err)
	}

	tx, err := rdb.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // No-op after Commit

	for _, result := range report.Results {
		fitID, err := insertFit(ctx, tx, report, result, string(reportJSON))
		if err != nil {
			return err
		}
		if err := insertFitPoints(ctx, tx, fitID, report, result); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit fit results: %w", err)
	}
	return nil
}

// insertFit stores the summary row for one method's result.
func insertFit(ctx context.Context, tx *sql.Tx, report *model.FitReport, result *model.FitResult, reportJSON string) (int64, error) {
	query := `
	INSERT INTO fits (sex, grp, method, fitted_at, converged, iterations, mae, start_age, n_ages, report_json)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	res, err := tx.ExecContext(ctx, query,
		report.Key.Sex.String(),
		report.Key.Group.String(),
		result.Method,
		report.FittedAt.Format(time.RFC3339Nano),
		result.Converged,
		result.Iterations,
		result.MAE,
		report.StartAge,
		len(report.Observed),
		reportJSON,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert fit: %w", err)
	}
	return res.LastInsertId()
}

// insertFitPoints stores the per-age rows for one method's result.
// The transition probabilities cover steps, so the last age carries NULLs.
func insertFitPoints(ctx context.Context, tx *sql.Tx, fitID int64, report *model.FitReport, result *model.FitResult) error {
	query := `
	INSERT INTO fit_points (fit_id, age, observed, reconstructed, abs_error, entry_prob, exit_prob)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	for i := range report.Observed {
		var entry, exit any
		if i < len(result.Estimate.EntryProb) {
			entry = result.Estimate.EntryProb[i]
		}
		if i < len(result.Estimate.ExitProb) {
			exit = result.Estimate.ExitProb[i]
		}

		_, err := tx.ExecContext(ctx, query,
			fitID,
			report.StartAge+i,
			report.Observed[i],
			result.Reconstructed[i],
			result.AbsError[i],
			entry,
			exit,
		)
		if err != nil {
			return fmt.Errorf("failed to insert fit point: %w", err)
		}
	}
	return nil
}

// ListRuns returns summaries of all stored fits for a (sex, group) run,
// newest first.
func (rdb *ResultDB) ListRuns(ctx context.Context, key model.RunKey) ([]FitSummary, error) {
	query := `
	SELECT id, method, fitted_at, converged, iterations, mae, start_age, n_ages
	FROM fits
	WHERE sex = ? AND grp = ?
	ORDER BY fitted_at DESC, id DESC
	`

	rows, err := rdb.db.QueryContext(ctx, query, key.Sex.String(), key.Group.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list fits: %w", err)
	}
	defer rows.Close() //nolint:errcheck // Read-only cursor

	var summaries []FitSummary
	for rows.Next() {
		s := FitSummary{Key: key}
		var fittedAt string
		if err := rows.Scan(&s.ID, &s.Method, &fittedAt, &s.Converged, &s.Iterations, &s.MAE, &s.StartAge, &s.NumAges); err != nil {
			return nil, fmt.Errorf("failed to scan fit summary: %w", err)
		}
		s.FittedAt = parseTimestamp(fittedAt)
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

// ListKeys returns every (sex, group) pair with stored fits.
func (rdb *ResultDB) ListKeys(ctx context.Context) ([]model.RunKey, error) {
	query := `
	SELECT DISTINCT sex, grp FROM fits
	ORDER BY sex, grp
	`

	rows, err := rdb.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}
	defer rows.Close() //nolint:errcheck // Read-only cursor

	var keys []model.RunKey
	for rows.Next() {
		var sexLabel, groupLabel string
		if err := rows.Scan(&sexLabel, &groupLabel); err != nil {
			return nil, fmt.Errorf("failed to scan key: %w", err)
		}
		sex, err := model.ParseSex(sexLabel)
		if err != nil {
			return nil, err
		}
		group, err := model.ParseGroup(groupLabel)
		if err != nil {
			return nil, err
		}
		keys = append(keys, model.RunKey{Sex: sex, Group: group})
	}
	return keys, rows.Err()
}

// GetLatestReport retrieves the most recent full report for a run.
// Returns nil without error when no fits are stored.
func (rdb *ResultDB) GetLatestReport(ctx context.Context, key model.RunKey) (*model.FitReport, error) {
	query := `
	SELECT report_json FROM fits
	WHERE sex = ? AND grp = ?
	ORDER BY fitted_at DESC, id DESC
	LIMIT 1
	`

	return rdb.queryReport(ctx, query, key.Sex.String(), key.Group.String())
}

// GetReportByFitID retrieves the full report that a stored fit belongs to.
// Returns nil without error when the ID is unknown.
func (rdb *ResultDB) GetReportByFitID(ctx context.Context, id int64) (*model.FitReport, error) {
	return rdb.queryReport(ctx, `SELECT report_json FROM fits WHERE id = ?`, id)
}

// PreviousReport retrieves the newest full report strictly older than the
// given timestamp, for run-over-run comparison. Returns nil without error
// when there is no older run.
func (rdb *ResultDB) PreviousReport(ctx context.Context, key model.RunKey, before time.Time) (*model.FitReport, error) {
	query := `
	SELECT report_json FROM fits
	WHERE sex = ? AND grp = ? AND fitted_at < ?
	ORDER BY fitted_at DESC, id DESC
	LIMIT 1
	`

	return rdb.queryReport(ctx, query, key.Sex.String(), key.Group.String(), before.Format(time.RFC3339Nano))
}

// queryReport runs a single-row report_json query and decodes the result.
func (rdb *ResultDB) queryReport(ctx context.Context, query string, args ...any) (*model.FitReport, error) {
	var reportJSON string
	err := rdb.db.QueryRowContext(ctx, query, args...).Scan(&reportJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get fit report: %w", err)
	}

	var report model.FitReport
	if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
		return nil, fmt.Errorf("failed to parse fit report: %w", err)
	}
	return &report, nil
}

// parseTimestamp handles the formats SQLite may hand back for stored
// datetimes.
func parseTimestamp(s string) time.Time {
	for _, layout := range []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
