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

	"github.com/nao1215/sitescraper/internal/analyzer"
	"github.com/nao1215/sitescraper/internal/model"
)

// FileName is the name of the history database inside the database directory.
const FileName = "sitescraper.db"

// ErrRunNotFound is returned when a crawl run ID does not exist.
var ErrRunNotFound = errors.New("crawl run not found")

// CrawlDB provides SQLite-based storage for the history of crawl runs.
// It manages connection pooling and provides methods for saving and
// loading runs.
//
// Design decision: We use a single database file for every domain rather
// than separate files per site. This keeps listing domains a single
// query and simplifies backup/restore operations.
type CrawlDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures CrawlDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging for better concurrent performance.
	// This is recommended for most use cases.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a CrawlDB in dbDir.
// If CreateIfNotExists is true, the directory and database file are created.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*CrawlDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (run a crawl first)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// mode=rw refuses to create a missing file, mode=rwc allows it.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cdb := &CrawlDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := cdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return cdb, nil
}

// Path returns the path of the database file.
func (cdb *CrawlDB) Path() string {
	return cdb.dbPath
}

// Close closes the database connection.
func (cdb *CrawlDB) Close() error {
	return cdb.db.Close()
}

// createTables creates the database schema if it doesn't exist.
func (cdb *CrawlDB) createTables() error {
	schema := `
	-- One row per crawl session
	CREATE TABLE IF NOT EXISTS crawl_runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		domain TEXT NOT NULL,
		seed_url TEXT NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL,
		page_count INTEGER NOT NULL,
		failure_count INTEGER NOT NULL,
		cancelled INTEGER NOT NULL DEFAULT 0,
		stats_json TEXT NOT NULL,
		failures_json TEXT NOT NULL DEFAULT '[]'
	);

	CREATE INDEX IF NOT EXISTS idx_runs_domain ON crawl_runs(domain);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON crawl_runs(started_at);

	-- Pages of a run, in append order
	CREATE TABLE IF NOT EXISTS crawl_pages (
		run_id INTEGER NOT NULL REFERENCES crawl_runs(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		url TEXT NOT NULL,
		title TEXT NOT NULL,
		scraped_at TEXT NOT NULL,
		fingerprint TEXT NOT NULL,
		page_json TEXT NOT NULL,
		PRIMARY KEY (run_id, position),
		UNIQUE (run_id, url)
	);

	CREATE INDEX IF NOT EXISTS idx_pages_url ON crawl_pages(url);
	`

	_, err := cdb.db.ExecContext(context.Background(), schema)
	return err
}

// RunMetadata contains summary information about a stored crawl run.
// This is used for displaying history without loading the pages.
type RunMetadata struct {
	// ID is the unique identifier of the run in the database.
	ID int64 `json:"id"`

	Domain       string            `json:"domain"`
	SeedURL      string            `json:"seed_url"`
	StartedAt    time.Time         `json:"started_at"`
	FinishedAt   time.Time         `json:"finished_at"`
	PageCount    int               `json:"page_count"`
	FailureCount int               `json:"failure_count"`
	Cancelled    bool              `json:"cancelled"`
	Stats        model.CorpusStats `json:"stats"`
}

// SaveRun stores result and its pages in one transaction and returns the
// new run ID. Stats are computed when the analyzer has not run yet.
func (cdb *CrawlDB) SaveRun(ctx context.Context, result *model.CrawlResult) (int64, error) {
	stats := result.Stats
	if stats == nil {
		s := analyzer.Analyze(result.Pages)
		stats = &s
	}
	statsJSON, err := json.Marshal(stats)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize stats: %w", err)
	}

	failures := result.Failures
	if failures == nil {
		failures = []model.FetchFailure{}
	}
	failuresJSON, err := json.Marshal(failures)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize failures: %w", err)
	}

	tx, err := cdb.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback() // no-op after Commit
	}()

	res, err := tx.ExecContext(ctx, `
	INSERT INTO crawl_runs (domain, seed_url, started_at, finished_at, page_count, failure_count, cancelled, stats_json, failures_json)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		result.Domain,
		result.SeedURL,
		formatTimestamp(result.StartedAt),
		formatTimestamp(result.FinishedAt),
		len(result.Pages),
		len(result.Failures),
		result.Cancelled,
		string(statsJSON),
		string(failuresJSON),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert crawl run: %w", err)
	}

	runID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get run id: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO crawl_pages (run_id, position, url, title, scraped_at, fingerprint, page_json)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare page insert: %w", err)
	}
	defer stmt.Close()

	for i, p := range result.Pages {
		pageJSON, err := json.Marshal(p)
		if err != nil {
			return 0, fmt.Errorf("failed to serialize page %s: %w", p.URL, err)
		}
		if _, err := stmt.ExecContext(ctx,
			runID,
			i,
			p.URL,
			p.Title,
			formatTimestamp(p.ScrapedAt),
			p.Fingerprint(),
			string(pageJSON),
		); err != nil {
			return 0, fmt.Errorf("failed to insert page %s: %w", p.URL, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit crawl run: %w", err)
	}
	return runID, nil
}

// ListDomains returns every domain with at least one stored run.
func (cdb *CrawlDB) ListDomains(ctx context.Context) ([]string, error) {
	rows, err := cdb.db.QueryContext(ctx, `
	SELECT DISTINCT domain FROM crawl_runs
	ORDER BY domain
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list domains: %w", err)
	}
	defer rows.Close()

	var domains []string
	for rows.Next() {
		var domain string
		if err := rows.Scan(&domain); err != nil {
			return nil, fmt.Errorf("failed to scan domain: %w", err)
		}
		domains = append(domains, domain)
	}

	return domains, rows.Err()
}

// ListRuns returns the metadata of every run for domain, newest first.
func (cdb *CrawlDB) ListRuns(ctx context.Context, domain string) ([]RunMetadata, error) {
	return cdb.queryRuns(ctx, `
	SELECT id, domain, seed_url, started_at, finished_at, page_count, failure_count, cancelled, stats_json
	FROM crawl_runs
	WHERE domain = ?
	ORDER BY started_at DESC, id DESC
	`, domain)
}

// GetRunMetadata returns the metadata of run id.
func (cdb *CrawlDB) GetRunMetadata(ctx context.Context, id int64) (*RunMetadata, error) {
	runs, err := cdb.queryRuns(ctx, `
	SELECT id, domain, seed_url, started_at, finished_at, page_count, failure_count, cancelled, stats_json
	FROM crawl_runs
	WHERE id = ?
	`, id)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, fmt.Errorf("%w: %d", ErrRunNotFound, id)
	}
	return &runs[0], nil
}

// queryRuns scans crawl_runs rows selected by query.
func (cdb *CrawlDB) queryRuns(ctx context.Context, query string, args ...any) ([]RunMetadata, error) {
	rows, err := cdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query crawl runs: %w", err)
	}
	defer rows.Close()

	var results []RunMetadata
	for rows.Next() {
		var meta RunMetadata
		var startedAt, finishedAt, statsJSON string

		if err := rows.Scan(
			&meta.ID,
			&meta.Domain,
			&meta.SeedURL,
			&startedAt,
			&finishedAt,
			&meta.PageCount,
			&meta.FailureCount,
			&meta.Cancelled,
			&statsJSON,
		); err != nil {
			return nil, fmt.Errorf("failed to scan crawl run: %w", err)
		}

		meta.StartedAt = parseTimestamp(startedAt)
		meta.FinishedAt = parseTimestamp(finishedAt)
		if err := json.Unmarshal([]byte(statsJSON), &meta.Stats); err != nil {
			return nil, fmt.Errorf("failed to parse stats of run %d: %w", meta.ID, err)
		}

		results = append(results, meta)
	}

	return results, rows.Err()
}

// GetRun loads run id with all of its pages.
func (cdb *CrawlDB) GetRun(ctx context.Context, id int64) (*model.CrawlResult, error) {
	meta, err := cdb.GetRunMetadata(ctx, id)
	if err != nil {
		return nil, err
	}

	var failuresJSON string
	if err := cdb.db.QueryRowContext(ctx,
		`SELECT failures_json FROM crawl_runs WHERE id = ?`, id,
	).Scan(&failuresJSON); err != nil {
		return nil, fmt.Errorf("failed to get failures of run %d: %w", id, err)
	}

	stats := meta.Stats
	result := &model.CrawlResult{
		SeedURL:    meta.SeedURL,
		Domain:     meta.Domain,
		StartedAt:  meta.StartedAt,
		FinishedAt: meta.FinishedAt,
		Pages:      make([]*model.Page, 0, meta.PageCount),
		Cancelled:  meta.Cancelled,
		Stats:      &stats,
	}
	if err := json.Unmarshal([]byte(failuresJSON), &result.Failures); err != nil {
		return nil, fmt.Errorf("failed to parse failures of run %d: %w", id, err)
	}
	if len(result.Failures) == 0 {
		result.Failures = nil
	}

	rows, err := cdb.db.QueryContext(ctx, `
	SELECT page_json FROM crawl_pages
	WHERE run_id = ?
	ORDER BY position
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query pages of run %d: %w", id, err)
	}
	defer rows.Close()

	for rows.Next() {
		var pageJSON string
		if err := rows.Scan(&pageJSON); err != nil {
			return nil, fmt.Errorf("failed to scan page: %w", err)
		}
		var page model.Page
		if err := json.Unmarshal([]byte(pageJSON), &page); err != nil {
			return nil, fmt.Errorf("failed to parse page of run %d: %w", id, err)
		}
		result.Pages = append(result.Pages, &page)
	}

	return result, rows.Err()
}

// LatestRuns loads the n most recent runs for domain, newest first.
func (cdb *CrawlDB) LatestRuns(ctx context.Context, domain string, n int) ([]*model.CrawlResult, error) {
	runs, err := cdb.ListRuns(ctx, domain)
	if err != nil {
		return nil, err
	}
	if n < len(runs) {
		runs = runs[:max(n, 0)]
	}

	results := make([]*model.CrawlResult, 0, len(runs))
	for _, meta := range runs {
		result, err := cdb.GetRun(ctx, meta.ID)
		if err != nil {
			return nil, err
		}
		results = append(results, result)
	}
	return results, nil
}

// PageFingerprints returns url → fingerprint for the pages of run id.
func (cdb *CrawlDB) PageFingerprints(ctx context.Context, id int64) (map[string]string, error) {
	rows, err := cdb.db.QueryContext(ctx, `
	SELECT url, fingerprint FROM crawl_pages
	WHERE run_id = ?
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query fingerprints: %w", err)
	}
	defer rows.Close()

	fingerprints := make(map[string]string)
	for rows.Next() {
		var u, fp string
		if err := rows.Scan(&u, &fp); err != nil {
			return nil, fmt.Errorf("failed to scan fingerprint: %w", err)
		}
		fingerprints[u] = fp
	}

	return fingerprints, rows.Err()
}

// DeleteRun removes run id and its pages.
func (cdb *CrawlDB) DeleteRun(ctx context.Context, id int64) error {
	tx, err := cdb.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback() // no-op after Commit
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM crawl_pages WHERE run_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete pages of run %d: %w", id, err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM crawl_runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete run %d: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %d", ErrRunNotFound, id)
	}

	return tx.Commit()
}

// formatTimestamp formats t for storage. Times are stored in UTC.
func formatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// timestampFormats contains the timestamp formats that may be stored.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05", // SQLite default datetime format
	"2006-01-02T15:04:05",
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
