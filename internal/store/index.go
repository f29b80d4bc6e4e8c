package store

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

	"github.com/nao1215/onioncrawl/internal/model"
)

// IndexFileName is the database file created inside the index directory.
const IndexFileName = "onioncrawl.db"

// ErrSessionNotFound is returned when a session ID is unknown.
var ErrSessionNotFound = errors.New("session not found")

// Index is a SQLite database of crawl sessions and their results.
type Index struct {
	db     *sql.DB
	dbPath string
}

// IndexOptions configures OpenIndex.
type IndexOptions struct {
	// CreateIfNotExists creates the directory and database when missing.
	CreateIfNotExists bool

	// EnableWAL switches the journal to write-ahead logging.
	EnableWAL bool
}

// DefaultIndexOptions returns the options used by the crawl command.
func DefaultIndexOptions() IndexOptions {
	return IndexOptions{CreateIfNotExists: true, EnableWAL: true}
}

// OpenIndex opens the index database in dir.
func OpenIndex(dir string, opts IndexOptions) (*Index, error) {
	dbPath := filepath.Join(dir, IndexFileName)

	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create index directory: %w", err)
		}
		dsn = dbPath + "?mode=rwc"
	} else if _, err := os.Stat(dbPath); err != nil {
		return nil, fmt.Errorf("index not found at %s: %w", dbPath, err)
	}

	// Readers such as the report command may open the index while a crawl
	// is writing to it.
	dsn += "&_pragma=busy_timeout(5000)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open index: %w", err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	ix := &Index{db: db, dbPath: dbPath}
	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}
	if err := ix.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return ix, nil
}

// Path returns the database file path.
func (ix *Index) Path() string {
	return ix.dbPath
}

// Close closes the database.
func (ix *Index) Close() error {
	return ix.db.Close()
}

func (ix *Index) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		seed TEXT NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT,
		status TEXT NOT NULL,
		dispatched INTEGER NOT NULL DEFAULT 0,
		results INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_started ON sessions(started_at);

	CREATE TABLE IF NOT EXISTS results (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL REFERENCES sessions(id),
		url TEXT NOT NULL,
		title TEXT,
		meta TEXT NOT NULL,
		keywords TEXT NOT NULL,
		blacklisted INTEGER NOT NULL DEFAULT 0,
		screenshot_path TEXT,
		timestamp TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_results_session ON results(session_id);
	CREATE INDEX IF NOT EXISTS idx_results_url ON results(url);
	`
	_, err := ix.db.ExecContext(context.Background(), schema)
	return err
}

// StartSession records a new running session.
func (ix *Index) StartSession(ctx context.Context, id, seed string, startedAt time.Time) error {
	_, err := ix.db.ExecContext(ctx,
		`INSERT INTO sessions (id, seed, started_at, status) VALUES (?, ?, ?, ?)`,
		id, seed, formatTimestamp(startedAt), string(model.SessionRunning))
	if err != nil {
		return fmt.Errorf("failed to record session: %w", err)
	}
	return nil
}

// FinishSession stores the final status and counters of a session.
func (ix *Index) FinishSession(ctx context.Context, id string, status model.SessionStatus, dispatched int, finishedAt time.Time) error {
	res, err := ix.db.ExecContext(ctx, `
	UPDATE sessions
	SET finished_at = ?, status = ?, dispatched = ?,
		results = (SELECT COUNT(*) FROM results WHERE session_id = ?)
	WHERE id = ?`,
		formatTimestamp(finishedAt), string(status), dispatched, id, id)
	if err != nil {
		return fmt.Errorf("failed to finish session: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// Session returns one session by ID.
func (ix *Index) Session(ctx context.Context, id string) (*model.Session, error) {
	row := ix.db.QueryRowContext(ctx, `
	SELECT id, seed, started_at, finished_at, status, dispatched, results
	FROM sessions WHERE id = ?`, id)
	s, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	return s, err
}

// LatestSession returns the most recently started session.
func (ix *Index) LatestSession(ctx context.Context) (*model.Session, error) {
	row := ix.db.QueryRowContext(ctx, `
	SELECT id, seed, started_at, finished_at, status, dispatched, results
	FROM sessions ORDER BY started_at DESC LIMIT 1`)
	s, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	return s, err
}

// ListSessions returns all sessions, newest first.
func (ix *Index) ListSessions(ctx context.Context) ([]model.Session, error) {
	rows, err := ix.db.QueryContext(ctx, `
	SELECT id, seed, started_at, finished_at, status, dispatched, results
	FROM sessions ORDER BY started_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []model.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}

// SessionResults returns the results of a session in insertion order.
func (ix *Index) SessionResults(ctx context.Context, sessionID string) ([]model.Result, error) {
	rows, err := ix.db.QueryContext(ctx, `
	SELECT url, title, meta, keywords, blacklisted, screenshot_path, timestamp
	FROM results WHERE session_id = ? ORDER BY id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query results: %w", err)
	}
	defer rows.Close()

	var results []model.Result
	for rows.Next() {
		var (
			r                    model.Result
			title, shot          sql.NullString
			metaJSON, kwJSON, ts string
			blacklisted          int
		)
		if err := rows.Scan(&r.URL, &title, &metaJSON, &kwJSON, &blacklisted, &shot, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		r.Metadata.Title = title.String
		if err := json.Unmarshal([]byte(metaJSON), &r.Metadata.Meta); err != nil {
			return nil, fmt.Errorf("failed to decode meta: %w", err)
		}
		if err := json.Unmarshal([]byte(kwJSON), &r.KeywordsFound); err != nil {
			return nil, fmt.Errorf("failed to decode keywords: %w", err)
		}
		r.Blacklisted = blacklisted != 0
		r.ScreenshotPath = shot.String
		r.Timestamp = parseTimestamp(ts)
		results = append(results, r)
	}
	return results, rows.Err()
}

// ForSession returns an Appender that files results under sessionID.
func (ix *Index) ForSession(sessionID string) Appender {
	return &sessionAppender{index: ix, sessionID: sessionID}
}

type sessionAppender struct {
	index     *Index
	sessionID string
}

func (a *sessionAppender) Append(ctx context.Context, r *model.Result) error {
	meta, err := json.Marshal(r.Metadata.Meta)
	if err != nil {
		return fmt.Errorf("failed to encode meta: %w", err)
	}
	keywords, err := json.Marshal(r.KeywordsFound)
	if err != nil {
		return fmt.Errorf("failed to encode keywords: %w", err)
	}

	blacklisted := 0
	if r.Blacklisted {
		blacklisted = 1
	}
	_, err = a.index.db.ExecContext(ctx, `
	INSERT INTO results (session_id, url, title, meta, keywords, blacklisted, screenshot_path, timestamp)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.sessionID, r.URL, r.Metadata.Title, string(meta), string(keywords),
		blacklisted, r.ScreenshotPath, formatTimestamp(r.Timestamp))
	if err != nil {
		return fmt.Errorf("failed to index result: %w", err)
	}
	return nil
}

// rowScanner is implemented by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*model.Session, error) {
	var (
		s               model.Session
		started, status string
		finished        sql.NullString
	)
	if err := row.Scan(&s.ID, &s.Seed, &started, &finished, &status, &s.Dispatched, &s.Results); err != nil {
		return nil, err
	}
	s.StartedAt = parseTimestamp(started)
	if finished.Valid {
		s.FinishedAt = parseTimestamp(finished.String)
	}
	s.Status = model.SessionStatus(status)
	return &s, nil
}

// timestampFormats lists the layouts accepted when reading timestamps back.
var timestampFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.999",
}

// timestampLayout is fixed width so stored timestamps sort chronologically.
const timestampLayout = "2006-01-02T15:04:05.000000000Z"

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// parseTimestamp parses s with the first matching layout, or returns the
// zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
