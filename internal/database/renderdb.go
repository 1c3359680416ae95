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

	"github.com/nao1215/fieldlink/internal/model"
)

// FileName is the name of the database file inside the database directory.
const FileName = "fieldlink.db"

// RenderDB provides SQLite-based storage for rendered documents and render
// runs.
type RenderDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures RenderDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging for better concurrent performance.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a RenderDB in dbDir.
// If CreateIfNotExists is true, the directory and database file are created.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*RenderDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (render with --save first)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// mode=rw refuses to create a missing file; mode=rwc allows it.
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

	rdb := &RenderDB{
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

// Path returns the database file path.
func (rdb *RenderDB) Path() string {
	return rdb.dbPath
}

// Close closes the database connection.
func (rdb *RenderDB) Close() error {
	return rdb.db.Close()
}

// createTables creates the database schema if it doesn't exist.
func (rdb *RenderDB) createTables() error {
	schema := `
	-- Documents hold the latest rendered version of each source
	CREATE TABLE IF NOT EXISTS documents (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		source TEXT NOT NULL UNIQUE,
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
		status_code INTEGER,
		content_type TEXT,
		raw_hash TEXT,
		rendered TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_documents_timestamp ON documents(timestamp);

	-- Render runs store one report per render pass as JSON
	CREATE TABLE IF NOT EXISTS render_runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		source TEXT NOT NULL,
		raw_hash TEXT,
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
		fields INTEGER NOT NULL DEFAULT 0,
		rewritten INTEGER NOT NULL DEFAULT 0,
		links INTEGER NOT NULL DEFAULT 0,
		error TEXT,
		report_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_source ON render_runs(source);
	CREATE INDEX IF NOT EXISTS idx_runs_timestamp ON render_runs(timestamp);
	`

	_, err := rdb.db.ExecContext(context.Background(), schema)
	return err
}

// DocumentRecord represents a stored document.
type DocumentRecord struct {
	ID          int64
	Source      string
	Timestamp   time.Time
	StatusCode  int
	ContentType string
	RawHash     string
	Rendered    string
}

// UpsertDocument inserts or updates the stored version of doc.
// Uses UPSERT to handle repeated renders of the same source.
func (rdb *RenderDB) UpsertDocument(ctx context.Context, doc *model.Document) (int64, error) {
	query := `
	INSERT INTO documents (source, status_code, content_type, raw_hash, rendered)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(source) DO UPDATE SET
		status_code = excluded.status_code,
		content_type = excluded.content_type,
		raw_hash = excluded.raw_hash,
		rendered = excluded.rendered,
		timestamp = CURRENT_TIMESTAMP
	`

	result, err := rdb.db.ExecContext(ctx, query,
		doc.Source,
		doc.StatusCode,
		doc.ContentType,
		doc.Hash,
		string(doc.Rendered),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert document: %w", err)
	}

	return result.LastInsertId()
}

// GetDocument retrieves the stored document for source.
// Returns nil when the source was never stored.
func (rdb *RenderDB) GetDocument(ctx context.Context, source string) (*DocumentRecord, error) {
	query := `
	SELECT id, source, timestamp, status_code, content_type, raw_hash, rendered
	FROM documents
	WHERE source = ?
	`

	var record DocumentRecord
	var timestamp string

	err := rdb.db.QueryRowContext(ctx, query, source).Scan(
		&record.ID,
		&record.Source,
		&timestamp,
		&record.StatusCode,
		&record.ContentType,
		&record.RawHash,
		&record.Rendered,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}

	record.Timestamp = parseTimestamp(timestamp)
	return &record, nil
}

// IsUnchanged reports whether the stored document for source has the given
// hash. An unknown source or an empty hash is never unchanged.
func (rdb *RenderDB) IsUnchanged(ctx context.Context, source, hash string) (bool, error) {
	if hash == "" {
		return false, nil
	}

	record, err := rdb.GetDocument(ctx, source)
	if err != nil {
		return false, err
	}
	return record != nil && record.RawHash == hash, nil
}

// HasRecentRender checks if source was rendered within the specified duration.
func (rdb *RenderDB) HasRecentRender(ctx context.Context, source string, duration time.Duration) (bool, error) {
	query := `
	SELECT COUNT(*) FROM render_runs
	WHERE source = ? AND timestamp > datetime('now', ?)
	`

	// SQLite datetime modifier format
	modifier := fmt.Sprintf("-%d seconds", int(duration.Seconds()))

	var count int
	if err := rdb.db.QueryRowContext(ctx, query, source, modifier).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check recent render: %w", err)
	}

	return count > 0, nil
}

// SaveRenderReport saves a render report as JSON, along with its counts
// for listing without decoding.
func (rdb *RenderDB) SaveRenderReport(ctx context.Context, report *model.RenderReport) error {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to serialize report: %w", err)
	}

	query := `
	INSERT INTO render_runs (source, raw_hash, fields, rewritten, links, error, report_json)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err = rdb.db.ExecContext(ctx, query,
		report.Source,
		report.Hash,
		report.FieldCount(),
		report.RewrittenCount(),
		report.LinkCount(),
		report.ErrorMessage,
		string(reportJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to save render report: %w", err)
	}

	return nil
}

// GetLatestRenderReport retrieves the most recent report for source.
// Returns nil when the source has no runs.
func (rdb *RenderDB) GetLatestRenderReport(ctx context.Context, source string) (*model.RenderReport, error) {
	query := `
	SELECT report_json FROM render_runs
	WHERE source = ?
	ORDER BY timestamp DESC, id DESC
	LIMIT 1
	`

	var reportJSON string
	err := rdb.db.QueryRowContext(ctx, query, source).Scan(&reportJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get render report: %w", err)
	}

	return decodeReport(reportJSON)
}

// ListSources returns every source that has at least one render run.
func (rdb *RenderDB) ListSources(ctx context.Context) ([]string, error) {
	query := `
	SELECT DISTINCT source FROM render_runs
	ORDER BY source
	`

	rows, err := rdb.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}
	defer rows.Close()

	var sources []string
	for rows.Next() {
		var source string
		if err := rows.Scan(&source); err != nil {
			return nil, fmt.Errorf("failed to scan source: %w", err)
		}
		sources = append(sources, source)
	}

	return sources, rows.Err()
}

// GetRenderHistory retrieves all reports for source, newest first.
func (rdb *RenderDB) GetRenderHistory(ctx context.Context, source string) ([]*model.RenderReport, error) {
	query := `
	SELECT report_json FROM render_runs
	WHERE source = ?
	ORDER BY timestamp DESC, id DESC
	`

	rows, err := rdb.db.QueryContext(ctx, query, source)
	if err != nil {
		return nil, fmt.Errorf("failed to get render history: %w", err)
	}
	defer rows.Close()

	var reports []*model.RenderReport
	for rows.Next() {
		var reportJSON string
		if err := rows.Scan(&reportJSON); err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}

		report, err := decodeReport(reportJSON)
		if err != nil {
			continue // Skip malformed reports
		}
		reports = append(reports, report)
	}

	return reports, rows.Err()
}

// RunMetadata contains summary information about a render run.
// This is used for displaying history without loading the full report.
type RunMetadata struct {
	// ID is the unique identifier of the run in the database.
	ID int64

	// Source is the rendered document.
	Source string

	// Hash is the document hash at render time.
	Hash string

	// Timestamp is when the run was saved.
	Timestamp time.Time

	// Fields is the number of matched field elements.
	Fields int

	// Rewritten is the number of fields whose content changed.
	Rewritten int

	// Links is the number of links produced.
	Links int

	// Error is the recorded error message, if any.
	Error string
}

// GetRenderHistoryWithMetadata retrieves run metadata for source, newest
// first. An empty source lists the runs of every source.
func (rdb *RenderDB) GetRenderHistoryWithMetadata(ctx context.Context, source string) ([]RunMetadata, error) {
	query := `
	SELECT id, source, raw_hash, timestamp, fields, rewritten, links, error
	FROM render_runs
	`
	args := make([]any, 0, 1)
	if source != "" {
		query += " WHERE source = ?"
		args = append(args, source)
	}
	query += " ORDER BY timestamp DESC, id DESC"

	rows, err := rdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get render history: %w", err)
	}
	defer rows.Close()

	var results []RunMetadata
	for rows.Next() {
		var meta RunMetadata
		var timestamp string
		var hash, errMsg sql.NullString

		if err := rows.Scan(
			&meta.ID,
			&meta.Source,
			&hash,
			&timestamp,
			&meta.Fields,
			&meta.Rewritten,
			&meta.Links,
			&errMsg,
		); err != nil {
			return nil, fmt.Errorf("failed to scan metadata: %w", err)
		}

		meta.Hash = hash.String
		meta.Error = errMsg.String
		meta.Timestamp = parseTimestamp(timestamp)
		results = append(results, meta)
	}

	return results, rows.Err()
}

// GetRenderReportByID retrieves a report by its database ID.
// Returns nil when no run has that ID.
func (rdb *RenderDB) GetRenderReportByID(ctx context.Context, id int64) (*model.RenderReport, error) {
	query := `
	SELECT report_json FROM render_runs
	WHERE id = ?
	`

	var reportJSON string
	err := rdb.db.QueryRowContext(ctx, query, id).Scan(&reportJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get render report: %w", err)
	}

	return decodeReport(reportJSON)
}

// decodeReport parses a stored report.
func decodeReport(reportJSON string) (*model.RenderReport, error) {
	var report model.RenderReport
	if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}
	return &report, nil
}

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	"2006-01-02 15:04:05",     // SQLite default datetime format
	"2006-01-02T15:04:05Z",    // ISO 8601 with Z suffix
	"2006-01-02T15:04:05",     // ISO 8601 without timezone
	time.RFC3339,              // Full RFC3339 format
	time.RFC3339Nano,          // RFC3339 with nanoseconds
	"2006-01-02 15:04:05.999", // SQLite with milliseconds
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
